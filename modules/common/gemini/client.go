package gemini

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"strings"

	"google.golang.org/genai"
)

// NewClient - API 키로 Gemini API 클라이언트 생성
func NewClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("no API key provided")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	log.Printf("✅ [Gemini] Client initialized (key: %s)", MaskKey(apiKey))
	return client, nil
}

// ErrorKind - 벤더 에러 분류 (알림 문구 선택용)
type ErrorKind string

const (
	KindNone    ErrorKind = ""
	KindQuota   ErrorKind = "quota"
	KindAuth    ErrorKind = "auth"
	KindNetwork ErrorKind = "network"
	KindOther   ErrorKind = "other"
)

// Classify - 에러를 quota / auth / network / other 로 분류
func Classify(err error) ErrorKind {
	if err == nil {
		return KindNone
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == 429 || apiErr.Status == "RESOURCE_EXHAUSTED":
			return KindQuota
		case apiErr.Code == 401 || apiErr.Code == 403 ||
			apiErr.Status == "UNAUTHENTICATED" || apiErr.Status == "PERMISSION_DENIED":
			return KindAuth
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindNetwork
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindNetwork
	}

	if is429Error(err) {
		return KindQuota
	}
	lower := strings.ToLower(err.Error())
	if strings.Contains(lower, "api key not valid") ||
		strings.Contains(lower, "permission denied") ||
		strings.Contains(lower, "unauthenticated") {
		return KindAuth
	}
	return KindOther
}

// UserMessage - 분류별 사용자 알림 문구
func UserMessage(kind ErrorKind) string {
	switch kind {
	case KindQuota:
		return "The AI service is rate limited right now. Please wait a moment and try again."
	case KindAuth:
		return "The AI service rejected the API key. Please check your key and try again."
	case KindNetwork:
		return "Could not reach the AI service. Please check your connection and try again."
	default:
		return "The AI service failed to process the request. Please try again."
	}
}

// MaskKey - 로그용 키 마스킹
func MaskKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}

// is429Error - 429 Rate Limit 에러인지 확인
func is429Error(err error) bool {
	if err == nil {
		return false
	}

	errStr := err.Error()
	return strings.Contains(errStr, "429") ||
		strings.Contains(strings.ToLower(errStr), "rate limit") ||
		strings.Contains(strings.ToLower(errStr), "quota")
}
