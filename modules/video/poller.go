package video

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"storyboard-server/modules/common/cancel"
	"storyboard-server/modules/gateway"
)

var (
	// ErrPollExhausted - 최대 폴링 횟수 안에 작업이 끝나지 않음
	ErrPollExhausted = errors.New("video job did not finish within the poll limit")
	// ErrCancelled - 사용자가 작업 취소
	ErrCancelled = errors.New("video job cancelled")
	// ErrJobFailed - 벤더가 작업 실패를 보고
	ErrJobFailed = errors.New("video job failed")
)

// Poller - 비동기 영상 작업 완료 대기
type Poller struct {
	gateway  gateway.Gateway
	interval time.Duration
	maxPolls int
	checker  cancel.Checker
}

// NewPoller - checker 는 nil 가능 (컨텍스트 취소만 사용)
func NewPoller(gw gateway.Gateway, interval time.Duration, maxPolls int, checker cancel.Checker) *Poller {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Poller{
		gateway:  gw,
		interval: interval,
		maxPolls: maxPolls,
		checker:  checker,
	}
}

// Wait - interval 마다 최대 maxPolls 번 상태 조회
func (p *Poller) Wait(ctx context.Context, jobKey string, job *gateway.VideoJob) (*gateway.VideoJob, error) {
	if job.Done {
		return finished(job)
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for attempt := 1; attempt <= p.maxPolls; attempt++ {
		select {
		case <-ctx.Done():
			log.Printf("🛑 [Video] Poll loop for %s stopped: %v", jobKey, ctx.Err())
			return nil, fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())
		case <-ticker.C:
		}

		if p.checker != nil && p.checker.IsCancelled(ctx, jobKey) {
			log.Printf("🛑 [Video] Job %s cancelled by flag", jobKey)
			return nil, ErrCancelled
		}

		next, err := p.gateway.PollVideo(ctx, job)
		if err != nil {
			return nil, err
		}
		if next.Done || next.Error != "" {
			log.Printf("✅ [Video] Job %s finished after %d polls", jobKey, attempt)
			return finished(next)
		}
		job = next

		if attempt%12 == 0 {
			log.Printf("⏳ [Video] Job %s still running (%d/%d polls)", jobKey, attempt, p.maxPolls)
		}
	}

	log.Printf("❌ [Video] Job %s exhausted %d polls", jobKey, p.maxPolls)
	return nil, ErrPollExhausted
}

func finished(job *gateway.VideoJob) (*gateway.VideoJob, error) {
	if job.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrJobFailed, job.Error)
	}
	return job, nil
}
