package cancel

import (
	"context"
	"log"
	"sync"
)

// Flags - 인스턴스 간 공유되는 취소 플래그 (Redis)
type Flags interface {
	SetCancelled(ctx context.Context, jobID string) error
	IsCancelled(ctx context.Context, jobID string) bool
	Clear(ctx context.Context, jobID string) error
}

// Checker - 폴링 루프에서 취소 여부 확인
type Checker interface {
	IsCancelled(ctx context.Context, jobID string) bool
}

type job struct {
	cancel context.CancelFunc
	seq    uint64
}

// Registry - 진행 중인 작업의 cancel func 보관
type Registry struct {
	mu    sync.Mutex
	jobs  map[string]job
	seq   uint64
	flags Flags
}

// NewRegistry - flags 가 nil 이면 프로세스 내부에서만 취소
func NewRegistry(flags Flags) *Registry {
	return &Registry{
		jobs:  make(map[string]job),
		flags: flags,
	}
}

// Start - 취소 가능한 컨텍스트 등록, 작업이 끝나면 done 호출
func (r *Registry) Start(parent context.Context, jobID string) (context.Context, func()) {
	ctx, cancelFn := context.WithCancel(parent)

	r.mu.Lock()
	if prev, ok := r.jobs[jobID]; ok {
		prev.cancel()
	}
	r.seq++
	seq := r.seq
	r.jobs[jobID] = job{cancel: cancelFn, seq: seq}
	r.mu.Unlock()

	if r.flags != nil {
		if err := r.flags.Clear(ctx, jobID); err != nil {
			log.Printf("⚠️  [Cancel] Failed to clear stale flag for %s: %v", jobID, err)
		}
	}

	var once sync.Once
	done := func() {
		once.Do(func() {
			r.mu.Lock()
			current, ok := r.jobs[jobID]
			owner := ok && current.seq == seq
			if owner {
				delete(r.jobs, jobID)
			}
			r.mu.Unlock()
			cancelFn()
			if owner && r.flags != nil {
				_ = r.flags.Clear(context.Background(), jobID)
			}
		})
	}
	return ctx, done
}

// Cancel - 로컬 작업 취소 + 공유 플래그 설정
// 로컬에 작업이 있거나 플래그를 남겼으면 true
func (r *Registry) Cancel(ctx context.Context, jobID string) bool {
	r.mu.Lock()
	running, ok := r.jobs[jobID]
	r.mu.Unlock()

	if ok {
		log.Printf("🛑 [Cancel] Cancelling job %s", jobID)
		running.cancel()
	}

	if r.flags != nil {
		if err := r.flags.SetCancelled(ctx, jobID); err != nil {
			log.Printf("⚠️  [Cancel] Failed to set cancel flag for %s: %v", jobID, err)
			return ok
		}
		return true
	}
	return ok
}

// IsCancelled - 공유 플래그 확인 (로컬 취소는 컨텍스트로 전달됨)
func (r *Registry) IsCancelled(ctx context.Context, jobID string) bool {
	if r.flags == nil {
		return false
	}
	return r.flags.IsCancelled(ctx, jobID)
}

// Running - 로컬에서 진행 중인 작업 수
func (r *Registry) Running() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}
