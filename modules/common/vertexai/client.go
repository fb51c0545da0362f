package vertexai

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"cloud.google.com/go/auth/credentials"
	"google.golang.org/genai"

	"storyboard-server/modules/common/config"
)

const cloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

// NewVertexAIClient - Vertex AI 백엔드 genai 클라이언트 생성
func NewVertexAIClient(ctx context.Context, cfg *config.Config) (*genai.Client, error) {
	credsJSON, err := loadCredentialsJSON(cfg)
	if err != nil {
		return nil, err
	}

	opts := &credentials.DetectOptions{
		Scopes: []string{cloudPlatformScope},
	}
	if len(credsJSON) > 0 {
		opts.CredentialsJSON = credsJSON
	} else {
		// Application Default Credentials (ADC) 사용
		log.Println("⚠️  [VertexAI] No explicit credentials found, using Application Default Credentials")
	}

	creds, err := credentials.DetectDefault(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to detect Vertex AI credentials: %w", err)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Backend:     genai.BackendVertexAI,
		Project:     cfg.VertexProject,
		Location:    cfg.VertexLocation,
		Credentials: creds,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Vertex AI client: %w", err)
	}

	log.Printf("✅ [VertexAI] Client initialized for project=%s, location=%s", cfg.VertexProject, cfg.VertexLocation)
	return client, nil
}

// loadCredentialsJSON - VERTEXAI_CREDENTIALS_JSON 우선, 없으면 VERTEXAI_CREDENTIALS_PATH 파일
func loadCredentialsJSON(cfg *config.Config) ([]byte, error) {
	if cfg.VertexCredentialsJSON != "" {
		log.Println("✅ [VertexAI] Using VERTEXAI_CREDENTIALS_JSON from environment")
		return validJSON([]byte(cfg.VertexCredentialsJSON))
	}

	if cfg.VertexCredentialsPath != "" {
		log.Printf("✅ [VertexAI] Using credentials from file: %s", cfg.VertexCredentialsPath)
		data, err := os.ReadFile(cfg.VertexCredentialsPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read credentials file: %w", err)
		}
		return validJSON(data)
	}

	return nil, nil
}

func validJSON(data []byte) ([]byte, error) {
	var creds map[string]interface{}
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("invalid JSON credentials: %w", err)
	}
	return data, nil
}
