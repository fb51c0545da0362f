package frames

import (
	"context"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"storyboard-server/modules/common/model"
	"storyboard-server/modules/gateway"
)

// Models - variant 별 이미지 모델 이름
type Models struct {
	Standard string
	Pro      string
}

// Resolve - variant 에 맞는 모델 이름과 이미지 크기 (pro 만 2K)
func (m Models) Resolve(v model.Variant) (string, string) {
	if v == model.VariantPro {
		return m.Pro, gateway.ProImageSize
	}
	return m.Standard, ""
}

type Service struct {
	gateway gateway.Gateway
	models  Models
	limiter *rate.Limiter
}

// NewService - interval 이 0 이면 요청 간격 제한 없음
func NewService(gw gateway.Gateway, models Models, interval time.Duration) *Service {
	var limiter *rate.Limiter
	if interval > 0 {
		limiter = rate.NewLimiter(rate.Every(interval), 2)
	}
	return &Service{
		gateway: gw,
		models:  models,
		limiter: limiter,
	}
}

// Synthesize - count 개의 keyframe 을 동시에 요청, 실패/빈 응답은 제외
// 결과 순서는 요청 순서를 따름
func (s *Service) Synthesize(ctx context.Context, pc *model.PipelineContext, count int) []model.Image {
	if count <= 0 {
		return nil
	}

	modelName, imageSize := s.models.Resolve(pc.Model)
	log.Printf("🎨 [Frames] Generating %d keyframes (model: %s)", count, modelName)

	results := make([]*model.Image, count)
	eg, egCtx := errgroup.WithContext(ctx)

	for i := 0; i < count; i++ {
		i := i
		eg.Go(func() error {
			// 개별 실패는 무시하고 나머지를 모음
			if s.limiter != nil {
				if err := s.limiter.Wait(egCtx); err != nil {
					log.Printf("⚠️  [Frames] Keyframe %d skipped: %v", i+1, err)
					return nil
				}
			}

			img, err := s.gateway.SynthesizeImage(egCtx, gateway.ImageRequest{
				Model:       modelName,
				Images:      []model.Image{pc.SceneImage, pc.FaceImage},
				Instruction: buildFrameInstruction(pc, i, count),
				ImageSize:   imageSize,
				AspectRatio: gateway.ImageAspectRatio,
			})
			if err != nil {
				log.Printf("⚠️  [Frames] Keyframe %d failed: %v", i+1, err)
				return nil
			}
			if img == nil || len(img.Data) == 0 {
				log.Printf("⚠️  [Frames] Keyframe %d returned no image", i+1)
				return nil
			}

			results[i] = img
			return nil
		})
	}
	_ = eg.Wait()

	frames := make([]model.Image, 0, count)
	for _, img := range results {
		if img != nil {
			frames = append(frames, *img)
		}
	}

	log.Printf("✅ [Frames] Generated %d/%d keyframes", len(frames), count)
	return frames
}

// Regenerate - 지시한 동작으로 끝 프레임 한 장 재생성
func (s *Service) Regenerate(ctx context.Context, pc *model.PipelineContext, action string) (*model.Image, error) {
	modelName, imageSize := s.models.Resolve(pc.Model)
	log.Printf("🎨 [Frames] Regenerating keyframe (model: %s)", modelName)

	img, err := s.gateway.SynthesizeImage(ctx, gateway.ImageRequest{
		Model:       modelName,
		Images:      []model.Image{pc.SceneImage, pc.FaceImage},
		Instruction: buildRegenerateInstruction(pc, action),
		ImageSize:   imageSize,
		AspectRatio: gateway.ImageAspectRatio,
	})
	if err != nil {
		return nil, fmt.Errorf("keyframe regeneration failed: %w", err)
	}
	if img == nil || len(img.Data) == 0 {
		return nil, fmt.Errorf("keyframe regeneration returned no image")
	}
	return img, nil
}
