package gateway

import (
	"context"

	"storyboard-server/modules/common/model"
)

// 영상 요청 고정값
const (
	VideoResolution  = "1080p"
	VideoAspectRatio = "9:16"
	ImageAspectRatio = "9:16"
	ProImageSize     = "2K"
)

// AnalyzeRequest - 이미지 한 장 + 지시문으로 텍스트 설명 요청
type AnalyzeRequest struct {
	Model       string
	Image       model.Image
	Instruction string
}

// ImageRequest - 참조 이미지들 + 지시문으로 이미지 한 장 생성
type ImageRequest struct {
	Model       string
	Images      []model.Image
	Instruction string
	ImageSize   string
	AspectRatio string
}

// VideoRequest - 시작/끝 프레임 사이 영상 생성 요청
type VideoRequest struct {
	Model       string
	Prompt      string
	Start       model.Image
	End         model.Image
	Resolution  string
	AspectRatio string
	Count       int
	APIKey      string
}

// VideoRef - 완료된 작업이 돌려준 영상 참조 (URI 또는 bytes)
type VideoRef struct {
	URI      string
	Data     []byte
	MIMEType string
}

// VideoJob - 비동기 영상 작업 핸들
type VideoJob struct {
	ID     string
	APIKey string
	Done   bool
	Error  string
	Videos []VideoRef
}

// Gateway - 외부 생성형 AI 서비스 경계
type Gateway interface {
	Analyze(ctx context.Context, req AnalyzeRequest) (string, error)
	GenerateText(ctx context.Context, model, prompt string) (string, error)
	// SynthesizeImage returns a nil image when the vendor answered without one.
	SynthesizeImage(ctx context.Context, req ImageRequest) (*model.Image, error)
	SubmitVideo(ctx context.Context, req VideoRequest) (*VideoJob, error)
	PollVideo(ctx context.Context, job *VideoJob) (*VideoJob, error)
	FetchVideo(ctx context.Context, uri, apiKey string) ([]byte, string, error)
}
