// Package gatewaytest provides an in-memory gateway.Gateway for tests.
package gatewaytest

import (
	"context"
	"fmt"
	"sync"

	"storyboard-server/modules/common/model"
	"storyboard-server/modules/common/utils"
	"storyboard-server/modules/gateway"
)

// Fake records every call and answers through overridable funcs.
// Zero-valued funcs fall back to always-successful defaults.
type Fake struct {
	AnalyzeFn func(ctx context.Context, req gateway.AnalyzeRequest) (string, error)
	TextFn    func(ctx context.Context, model, prompt string) (string, error)
	ImageFn   func(ctx context.Context, req gateway.ImageRequest) (*model.Image, error)
	SubmitFn  func(ctx context.Context, req gateway.VideoRequest) (*gateway.VideoJob, error)
	PollFn    func(ctx context.Context, job *gateway.VideoJob) (*gateway.VideoJob, error)
	FetchFn   func(ctx context.Context, uri, apiKey string) ([]byte, string, error)

	mu        sync.Mutex
	analyze   []gateway.AnalyzeRequest
	text      []string
	images    []gateway.ImageRequest
	videos    []gateway.VideoRequest
	polls     int
	fetches   []string
	fetchKeys []string
	imageSeq  int
}

var _ gateway.Gateway = (*Fake)(nil)

func New() *Fake {
	return &Fake{}
}

func (f *Fake) Analyze(ctx context.Context, req gateway.AnalyzeRequest) (string, error) {
	f.mu.Lock()
	f.analyze = append(f.analyze, req)
	f.mu.Unlock()

	if f.AnalyzeFn != nil {
		return f.AnalyzeFn(ctx, req)
	}
	return "description", nil
}

func (f *Fake) GenerateText(ctx context.Context, modelName, prompt string) (string, error) {
	f.mu.Lock()
	f.text = append(f.text, prompt)
	f.mu.Unlock()

	if f.TextFn != nil {
		return f.TextFn(ctx, modelName, prompt)
	}
	return "6", nil
}

func (f *Fake) SynthesizeImage(ctx context.Context, req gateway.ImageRequest) (*model.Image, error) {
	f.mu.Lock()
	f.images = append(f.images, req)
	f.imageSeq++
	seq := f.imageSeq
	f.mu.Unlock()

	if f.ImageFn != nil {
		return f.ImageFn(ctx, req)
	}
	img := utils.NewImage([]byte(fmt.Sprintf("frame-%d", seq)), "image/png")
	return &img, nil
}

func (f *Fake) SubmitVideo(ctx context.Context, req gateway.VideoRequest) (*gateway.VideoJob, error) {
	f.mu.Lock()
	f.videos = append(f.videos, req)
	n := len(f.videos)
	f.mu.Unlock()

	if f.SubmitFn != nil {
		return f.SubmitFn(ctx, req)
	}
	return &gateway.VideoJob{ID: fmt.Sprintf("operations/%d", n), APIKey: req.APIKey}, nil
}

func (f *Fake) PollVideo(ctx context.Context, job *gateway.VideoJob) (*gateway.VideoJob, error) {
	f.mu.Lock()
	f.polls++
	f.mu.Unlock()

	if f.PollFn != nil {
		return f.PollFn(ctx, job)
	}
	return &gateway.VideoJob{
		ID:     job.ID,
		APIKey: job.APIKey,
		Done:   true,
		Videos: []gateway.VideoRef{{URI: "https://files.example/" + job.ID}},
	}, nil
}

func (f *Fake) FetchVideo(ctx context.Context, uri, apiKey string) ([]byte, string, error) {
	f.mu.Lock()
	f.fetches = append(f.fetches, uri)
	f.fetchKeys = append(f.fetchKeys, apiKey)
	f.mu.Unlock()

	if f.FetchFn != nil {
		return f.FetchFn(ctx, uri, apiKey)
	}
	return []byte("mp4"), "video/mp4", nil
}

func (f *Fake) AnalyzeRequests() []gateway.AnalyzeRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]gateway.AnalyzeRequest(nil), f.analyze...)
}

func (f *Fake) TextPrompts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.text...)
}

func (f *Fake) ImageRequests() []gateway.ImageRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]gateway.ImageRequest(nil), f.images...)
}

func (f *Fake) VideoRequests() []gateway.VideoRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]gateway.VideoRequest(nil), f.videos...)
}

func (f *Fake) Polls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.polls
}

// Fetches returns fetched URIs and the keys passed with them.
func (f *Fake) Fetches() ([]string, []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.fetches...), append([]string(nil), f.fetchKeys...)
}
