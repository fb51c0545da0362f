package video

import (
	"context"
	"errors"
	"fmt"
	"log"

	"storyboard-server/modules/common/model"
	"storyboard-server/modules/gateway"
)

// ErrNoVideo - 완료된 작업에 영상 참조가 없음
var ErrNoVideo = errors.New("video job finished without a video")

// FailureMessage - 사용자에게 보여주는 고정 실패 문구
const FailureMessage = "Video generation failed. Please try again."

// Request - 씬 하나의 영상 생성 입력
type Request struct {
	BoardID string
	Scene   model.Scene
	Context *model.PipelineContext
	APIKey  string
	JobKey  string
}

type Service struct {
	gateway gateway.Gateway
	model   string
	poller  *Poller
	sink    Sink
}

func NewService(gw gateway.Gateway, modelName string, poller *Poller, sink Sink) *Service {
	return &Service{
		gateway: gw,
		model:   modelName,
		poller:  poller,
		sink:    sink,
	}
}

// Generate - 제출 → 폴링 → 다운로드 → 저장, 재생 가능한 URL 반환
func (s *Service) Generate(ctx context.Context, req Request) (string, error) {
	prompt := BuildPrompt(req.Scene, req.Context)
	log.Printf("🎬 [Video] Submitting scene %s (model: %s, prompt: %d chars)", req.Scene.ID, s.model, len(prompt))

	job, err := s.gateway.SubmitVideo(ctx, gateway.VideoRequest{
		Model:       s.model,
		Prompt:      prompt,
		Start:       req.Scene.StartImage,
		End:         req.Scene.EndImage,
		Resolution:  gateway.VideoResolution,
		AspectRatio: gateway.VideoAspectRatio,
		Count:       1,
		APIKey:      req.APIKey,
	})
	if err != nil {
		return "", err
	}

	job, err = s.poller.Wait(ctx, req.JobKey, job)
	if err != nil {
		return "", err
	}
	if len(job.Videos) == 0 {
		return "", ErrNoVideo
	}

	ref := job.Videos[0]
	data, mimeType := ref.Data, ref.MIMEType
	if len(data) == 0 {
		if ref.URI == "" {
			return "", ErrNoVideo
		}
		data, mimeType, err = s.gateway.FetchVideo(ctx, ref.URI, req.APIKey)
		if err != nil {
			return "", err
		}
	}
	if mimeType == "" {
		mimeType = "video/mp4"
	}

	url, err := s.sink.Store(ctx, req.BoardID, req.Scene.ID, data, mimeType)
	if err != nil {
		return "", fmt.Errorf("failed to store video: %w", err)
	}

	log.Printf("✅ [Video] Scene %s ready: %s", req.Scene.ID, url)
	return url, nil
}
