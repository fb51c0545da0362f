package gateway

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"google.golang.org/genai"

	"storyboard-server/modules/common/gemini"
	"storyboard-server/modules/common/model"
	"storyboard-server/modules/common/utils"
)

// ClientFactory - API 키별 genai 클라이언트 생성
type ClientFactory func(ctx context.Context, apiKey string) (*genai.Client, error)

// GenAI - google.golang.org/genai 기반 Gateway 구현
type GenAI struct {
	defaultClient *genai.Client
	factory       ClientFactory

	// 사용자 키별 클라이언트, 마지막 사용 후 ttl 지나면 만료
	mu      sync.Mutex
	clients *cache.Cache

	httpClient *http.Client
}

var _ Gateway = (*GenAI)(nil)

const defaultClientTTL = 2 * time.Hour

// NewGenAI - defaultClient 는 서버 키(또는 Vertex) 클라이언트, factory 는 사용자 키용
// ttl 은 보드 TTL 과 맞춤 (0 이하면 2시간)
func NewGenAI(defaultClient *genai.Client, factory ClientFactory, ttl time.Duration) *GenAI {
	if factory == nil {
		factory = gemini.NewClient
	}
	if ttl <= 0 {
		ttl = defaultClientTTL
	}
	return &GenAI{
		defaultClient: defaultClient,
		factory:       factory,
		clients:       cache.New(ttl, 10*time.Minute),
		httpClient:    &http.Client{Timeout: 5 * time.Minute},
	}
}

func (g *GenAI) clientFor(ctx context.Context, apiKey string) (*genai.Client, error) {
	if apiKey == "" {
		if g.defaultClient == nil {
			return nil, fmt.Errorf("no default AI client configured")
		}
		return g.defaultClient, nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if cached, ok := g.clients.Get(apiKey); ok {
		client := cached.(*genai.Client)
		g.clients.SetDefault(apiKey, client)
		return client, nil
	}
	client, err := g.factory(ctx, apiKey)
	if err != nil {
		return nil, err
	}
	g.clients.SetDefault(apiKey, client)
	return client, nil
}

// Analyze - 이미지 설명 생성
func (g *GenAI) Analyze(ctx context.Context, req AnalyzeRequest) (string, error) {
	client, err := g.clientFor(ctx, "")
	if err != nil {
		return "", err
	}

	content := &genai.Content{
		Parts: []*genai.Part{
			inlinePart(req.Image),
			genai.NewPartFromText(req.Instruction),
		},
	}

	result, err := client.Models.GenerateContent(ctx, req.Model, []*genai.Content{content}, nil)
	if err != nil {
		return "", fmt.Errorf("analysis call failed: %w", err)
	}
	return result.Text(), nil
}

// GenerateText - 텍스트 전용 호출
func (g *GenAI) GenerateText(ctx context.Context, modelName, prompt string) (string, error) {
	client, err := g.clientFor(ctx, "")
	if err != nil {
		return "", err
	}

	result, err := client.Models.GenerateContent(ctx, modelName, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("text call failed: %w", err)
	}
	return result.Text(), nil
}

// SynthesizeImage - 참조 이미지 + 지시문으로 이미지 생성
func (g *GenAI) SynthesizeImage(ctx context.Context, req ImageRequest) (*model.Image, error) {
	client, err := g.clientFor(ctx, "")
	if err != nil {
		return nil, err
	}

	parts := make([]*genai.Part, 0, len(req.Images)+1)
	for _, img := range req.Images {
		parts = append(parts, inlinePart(img))
	}
	parts = append(parts, genai.NewPartFromText(req.Instruction))

	imageConfig := &genai.ImageConfig{AspectRatio: req.AspectRatio}
	if req.ImageSize != "" {
		imageConfig.ImageSize = req.ImageSize
	}

	result, err := client.Models.GenerateContent(
		ctx,
		req.Model,
		[]*genai.Content{{Parts: parts}},
		&genai.GenerateContentConfig{ImageConfig: imageConfig},
	)
	if err != nil {
		return nil, fmt.Errorf("image call failed: %w", err)
	}

	for _, candidate := range result.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			// 이미지는 InlineData로 반환됨
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				img := utils.NewImage(part.InlineData.Data, part.InlineData.MIMEType)
				return &img, nil
			}
		}
	}
	return nil, nil
}

// SubmitVideo - 영상 작업 제출 (시작 프레임 + 마지막 프레임)
func (g *GenAI) SubmitVideo(ctx context.Context, req VideoRequest) (*VideoJob, error) {
	client, err := g.clientFor(ctx, req.APIKey)
	if err != nil {
		return nil, err
	}

	count := req.Count
	if count <= 0 {
		count = 1
	}
	cfg := &genai.GenerateVideosConfig{
		NumberOfVideos: int32(count),
		Resolution:     req.Resolution,
		AspectRatio:    req.AspectRatio,
	}
	if len(req.End.Data) > 0 {
		cfg.LastFrame = &genai.Image{ImageBytes: req.End.Data, MIMEType: req.End.MIMEType}
	}

	op, err := client.Models.GenerateVideos(
		ctx,
		req.Model,
		req.Prompt,
		&genai.Image{ImageBytes: req.Start.Data, MIMEType: req.Start.MIMEType},
		cfg,
	)
	if err != nil {
		return nil, fmt.Errorf("video submit failed: %w", err)
	}

	log.Printf("📤 [Gateway] Video operation submitted: %s", op.Name)
	job := toVideoJob(op)
	job.APIKey = req.APIKey
	return job, nil
}

// PollVideo - 작업 상태 1회 조회
func (g *GenAI) PollVideo(ctx context.Context, job *VideoJob) (*VideoJob, error) {
	client, err := g.clientFor(ctx, job.APIKey)
	if err != nil {
		return nil, err
	}

	op, err := client.Operations.GetVideosOperation(ctx, &genai.GenerateVideosOperation{Name: job.ID}, nil)
	if err != nil {
		return nil, fmt.Errorf("video poll failed: %w", err)
	}

	next := toVideoJob(op)
	next.APIKey = job.APIKey
	return next, nil
}

// FetchVideo - 영상 URI 다운로드 (key 쿼리 파라미터 추가)
func (g *GenAI) FetchVideo(ctx context.Context, uri, apiKey string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", WithKey(uri, apiKey), nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create download request: %w", err)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to download video: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, "", fmt.Errorf("video download failed: status %d, body: %s", resp.StatusCode, string(body))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read video data: %w", err)
	}

	mimeType := resp.Header.Get("Content-Type")
	if mimeType == "" || !strings.HasPrefix(mimeType, "video/") {
		mimeType = "video/mp4"
	}
	log.Printf("✅ [Gateway] Video downloaded: %d bytes (%s)", len(data), mimeType)
	return data, mimeType, nil
}

// WithKey - URI 에 key 파라미터 추가 (기존 쿼리가 있으면 &)
func WithKey(uri, apiKey string) string {
	if apiKey == "" {
		return uri
	}
	sep := "?"
	if strings.Contains(uri, "?") {
		sep = "&"
	}
	return uri + sep + "key=" + url.QueryEscape(apiKey)
}

func inlinePart(img model.Image) *genai.Part {
	mimeType := img.MIMEType
	if mimeType == "" {
		mimeType = utils.DetectMIMEType(img.Data)
	}
	return &genai.Part{InlineData: &genai.Blob{MIMEType: mimeType, Data: img.Data}}
}

func toVideoJob(op *genai.GenerateVideosOperation) *VideoJob {
	job := &VideoJob{ID: op.Name, Done: op.Done}
	if len(op.Error) > 0 {
		job.Error = operationError(op.Error)
	}
	if op.Response != nil {
		for _, generated := range op.Response.GeneratedVideos {
			if generated == nil || generated.Video == nil {
				continue
			}
			job.Videos = append(job.Videos, VideoRef{
				URI:      generated.Video.URI,
				Data:     generated.Video.VideoBytes,
				MIMEType: generated.Video.MIMEType,
			})
		}
	}
	return job
}

func operationError(e map[string]any) string {
	if msg, ok := e["message"].(string); ok && msg != "" {
		return msg
	}
	return fmt.Sprintf("%v", e)
}
