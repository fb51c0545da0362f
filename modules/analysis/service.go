package analysis

import (
	"context"
	"fmt"
	"log"
	"strings"

	"storyboard-server/modules/common/fallback"
	"storyboard-server/modules/common/model"
	"storyboard-server/modules/gateway"
)

type Service struct {
	gateway   gateway.Gateway
	model     string
	textModel string
}

func NewService(gw gateway.Gateway, modelName, textModel string) *Service {
	return &Service{
		gateway:   gw,
		model:     modelName,
		textModel: textModel,
	}
}

// AnalyzeFace - 얼굴 참조 사진 설명 (빈 응답이면 기본 설명)
func (s *Service) AnalyzeFace(ctx context.Context, image model.Image) (string, error) {
	return s.describe(ctx, "face", image, faceInstruction, fallback.FaceDescription)
}

// AnalyzeScene - 장면 참조 사진 설명 (빈 응답이면 기본 설명)
func (s *Service) AnalyzeScene(ctx context.Context, image model.Image) (string, error) {
	return s.describe(ctx, "scene", image, sceneInstruction, fallback.SceneDescription)
}

func (s *Service) describe(ctx context.Context, kind string, image model.Image, instruction, fallbackText string) (string, error) {
	log.Printf("🔍 [Analysis] Describing %s image (model: %s, %d bytes)", kind, s.model, len(image.Data))

	text, err := s.gateway.Analyze(ctx, gateway.AnalyzeRequest{
		Model:       s.model,
		Image:       image,
		Instruction: instruction,
	})
	if err != nil {
		log.Printf("❌ [Analysis] %s analysis failed: %v", kind, err)
		return "", fmt.Errorf("%s analysis failed: %w", kind, err)
	}

	description := fallback.SafeString(text, fallbackText)
	if description == fallbackText {
		log.Printf("⚠️  [Analysis] Empty %s description, using fallback", kind)
	} else {
		log.Printf("✅ [Analysis] %s description: %d chars", kind, len(description))
	}
	return description, nil
}

// EstimateDuration - 대사 발화 시간(초) 추정, 실패하면 기본값 "8"
func (s *Service) EstimateDuration(ctx context.Context, script string) string {
	text, err := s.gateway.GenerateText(ctx, s.textModel, durationInstruction+strings.TrimSpace(script))
	if err != nil {
		log.Printf("⚠️  [Analysis] Duration estimate failed, using %ss: %v", fallback.Duration, err)
		return fallback.Duration
	}

	duration := fallback.SafeDuration(text)
	log.Printf("✅ [Analysis] Estimated duration: %ss (raw: %q)", duration, strings.TrimSpace(text))
	return duration
}
