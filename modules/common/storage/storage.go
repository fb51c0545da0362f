package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"storyboard-server/modules/common/config"
)

type Client struct {
	baseURL    string
	serviceKey string
	bucket     string
	publicBase string
	httpClient *http.Client
}

// NewClient - Supabase Storage 클라이언트 생성
func NewClient(cfg *config.Config) *Client {
	publicBase := cfg.SupabaseStorageBaseURL
	if publicBase == "" {
		publicBase = fmt.Sprintf("%s/storage/v1/object/public/%s/", cfg.SupabaseURL, cfg.SupabaseBucket)
	}
	if !strings.HasSuffix(publicBase, "/") {
		publicBase += "/"
	}

	return &Client{
		baseURL:    cfg.SupabaseURL,
		serviceKey: cfg.SupabaseServiceKey,
		bucket:     cfg.SupabaseBucket,
		publicBase: publicBase,
		httpClient: &http.Client{Timeout: 5 * time.Minute},
	}
}

// Upload - Storage 에 파일 업로드, 공개 URL 반환
func (c *Client) Upload(ctx context.Context, filePath string, data []byte, contentType string) (string, error) {
	log.Printf("📤 Uploading to storage: %s (%d bytes)", filePath, len(data))

	// Supabase Storage API URL
	uploadURL := fmt.Sprintf("%s/storage/v1/object/%s/%s", c.baseURL, c.bucket, filePath)

	req, err := http.NewRequestWithContext(ctx, "POST", uploadURL, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to create upload request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.serviceKey)
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to upload file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("upload failed with status %d: %s", resp.StatusCode, string(body))
	}

	publicURL := c.PublicURL(filePath)
	log.Printf("✅ File uploaded successfully: %s", publicURL)
	return publicURL, nil
}

// PublicURL - 업로드된 파일의 공개 URL
func (c *Client) PublicURL(filePath string) string {
	return c.publicBase + filePath
}
