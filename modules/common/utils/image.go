package utils

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"storyboard-server/modules/common/model"
)

// DecodeImage - data URL 또는 순수 base64 문자열을 model.Image 로 변환
// prefix 가 없으면 바이트에서 MIME 타입을 추정
func DecodeImage(s string) (model.Image, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return model.Image{}, fmt.Errorf("empty image payload")
	}

	mimeType := ""
	payload := s
	if strings.HasPrefix(s, "data:") {
		start := findBase64Start(s)
		if start == 0 {
			return model.Image{}, fmt.Errorf("data URL is not base64 encoded")
		}
		mimeType = s[len("data:") : start-len(";base64,")]
		payload = s[start:]
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return model.Image{}, fmt.Errorf("failed to decode base64 image: %w", err)
	}
	if len(data) == 0 {
		return model.Image{}, fmt.Errorf("empty image payload")
	}

	if mimeType == "" {
		mimeType = DetectMIMEType(data)
	}
	return NewImage(data, mimeType), nil
}

// NewImage - 새 ID 를 붙인 이미지 생성
func NewImage(data []byte, mimeType string) model.Image {
	if mimeType == "" {
		mimeType = DetectMIMEType(data)
	}
	return model.Image{
		ID:       uuid.NewString(),
		MIMEType: mimeType,
		Data:     data,
	}
}

// DetectMIMEType - 바이트 시그니처로 이미지 MIME 타입 추정 (기본 image/png)
func DetectMIMEType(data []byte) string {
	detected := http.DetectContentType(data)
	if strings.HasPrefix(detected, "image/") || strings.HasPrefix(detected, "video/") {
		return detected
	}
	return "image/png"
}

// ExtensionFor - MIME 타입에 맞는 파일 확장자
func ExtensionFor(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "video/mp4":
		return ".mp4"
	case "video/webm":
		return ".webm"
	case "video/quicktime":
		return ".mov"
	default:
		if strings.HasPrefix(mimeType, "video/") {
			return ".mp4"
		}
		return ".png"
	}
}

// findBase64Start - "data:image/xxx;base64," 다음 위치 (없으면 0)
func findBase64Start(s string) int {
	marker := ";base64,"
	if idx := strings.Index(s, marker); idx >= 0 {
		return idx + len(marker)
	}
	return 0
}
