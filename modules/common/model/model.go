package model

import "time"

// Image - 파이프라인에서 주고받는 이미지 (data URL prefix 없는 raw bytes)
type Image struct {
	ID       string `json:"id"`
	MIMEType string `json:"mimeType"`
	Data     []byte `json:"-"`
}

// Variant - 이미지 생성 모델 선택
type Variant string

const (
	VariantStandard Variant = "standard"
	VariantPro      Variant = "pro"
)

// Valid - 알 수 있는 variant 인지
func (v Variant) Valid() bool {
	return v == VariantStandard || v == VariantPro
}

// GenerationConfig - 파이프라인 시작 시 고정되는 입력
type GenerationConfig struct {
	ReferenceImage Image   `json:"referenceImage"`
	FaceImage      Image   `json:"faceImage"`
	FrameCount     int     `json:"frameCount"` // reference 포함 전체 keyframe 수
	Model          Variant `json:"model"`
	PoseConstraint string  `json:"poseConstraint"`
}

// Frame count 범위
const (
	DefaultFrameCount = 10
	MinFrameCount     = 2
	MaxFrameCount     = 20
)

// PipelineContext - 분석 단계 이후 모든 후속 단계에 명시적으로 전달되는 컨텍스트
type PipelineContext struct {
	SceneImage       Image   `json:"sceneImage"`
	FaceImage        Image   `json:"faceImage"`
	SceneDescription string  `json:"sceneDescription"`
	FaceDescription  string  `json:"faceDescription"`
	PoseConstraint   string  `json:"poseConstraint"`
	Model            Variant `json:"model"`
}

// GlobalDescription - 영상 프롬프트에 들어가는 씬 + 얼굴 설명
func (p *PipelineContext) GlobalDescription() string {
	if p == nil {
		return ""
	}
	return p.SceneDescription + " " + p.FaceDescription
}

// Step - 보드 진행 단계
type Step string

const (
	StepUpload           Step = "upload"
	StepGeneratingFrames Step = "generating_frames"
	StepSequencing       Step = "sequencing"
)

// SceneStatus - 씬 영상 상태
type SceneStatus string

const (
	StatusIdle            SceneStatus = "idle"
	StatusGeneratingVideo SceneStatus = "generating_video"
	StatusComplete        SceneStatus = "complete"
	StatusError           SceneStatus = "error"
)

// Resolution - 영상 목표 해상도
type Resolution string

const (
	Resolution1080p Resolution = "1080p"
	Resolution4K    Resolution = "4k"
)

// Valid - 지원 해상도인지
func (r Resolution) Valid() bool {
	return r == Resolution1080p || r == Resolution4K
}

// Scene - 인접한 두 keyframe 사이의 영상 세그먼트
type Scene struct {
	ID                  string      `json:"id"`
	Index               int         `json:"index"`
	StartImage          Image       `json:"startImage"`
	EndImage            Image       `json:"endImage"`
	Script              string      `json:"script"`
	Movement            string      `json:"movement"`
	Expression          string      `json:"expression"`
	RecommendedDuration string      `json:"recommendedDuration,omitempty"`
	TargetResolution    Resolution  `json:"targetResolution"`
	ActionPrompt        string      `json:"actionPrompt"`
	IsRegeneratingImage bool        `json:"isRegeneratingImage"`
	IsProcessing        bool        `json:"isProcessing"`
	Status              SceneStatus `json:"status"`
	GeneratedVideoURL   string      `json:"generatedVideoUrl,omitempty"`
	Error               string      `json:"error,omitempty"`
}

// Board - 하나의 스토리보드 세션
type Board struct {
	ID        string           `json:"id"`
	UserID    string           `json:"userId,omitempty"`
	Step      Step             `json:"step"`
	Config    GenerationConfig `json:"config"`
	Context   *PipelineContext `json:"context,omitempty"`
	Scenes    []Scene          `json:"scenes"`
	Error     string           `json:"error,omitempty"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

// Asset - storyboard_assets 테이블 구조
type Asset struct {
	AssetID   int64     `json:"asset_id"`
	BoardID   string    `json:"board_id"`
	SceneID   string    `json:"scene_id"`
	FilePath  string    `json:"file_path"`
	FileSize  int64     `json:"file_size"`
	FileType  string    `json:"file_type"`
	PublicURL string    `json:"public_url"`
	CreatedAt time.Time `json:"created_at"`
}
