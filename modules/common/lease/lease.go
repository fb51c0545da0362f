package lease

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrHeld - 다른 요청이 이미 lease 를 잡고 있음
var ErrHeld = errors.New("lease already held")

// Locker - 씬 단위 상호 배제
type Locker interface {
	// Acquire returns a release token, or ErrHeld when another holder owns key.
	Acquire(ctx context.Context, key string, ttl time.Duration) (string, error)
	// Release is a no-op when token no longer owns key.
	Release(ctx context.Context, key, token string) error
}

// AcquireAll - 여러 키를 순서대로 잡음, 하나라도 실패하면 잡은 것 모두 해제
func AcquireAll(ctx context.Context, l Locker, keys []string, ttl time.Duration) (func(), error) {
	type held struct{ key, token string }
	acquired := make([]held, 0, len(keys))

	release := func() {
		for i := len(acquired) - 1; i >= 0; i-- {
			_ = l.Release(context.Background(), acquired[i].key, acquired[i].token)
		}
	}

	for _, key := range keys {
		token, err := l.Acquire(ctx, key, ttl)
		if err != nil {
			release()
			return nil, err
		}
		acquired = append(acquired, held{key: key, token: token})
	}
	return release, nil
}

type entry struct {
	token   string
	expires time.Time
}

// Memory - 단일 프로세스용 lease
type Memory struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

func (m *Memory) Acquire(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if e, ok := m.entries[key]; ok && (e.expires.IsZero() || now.Before(e.expires)) {
		return "", ErrHeld
	}

	e := entry{token: uuid.NewString()}
	if ttl > 0 {
		e.expires = now.Add(ttl)
	}
	m.entries[key] = e
	return e.token, nil
}

func (m *Memory) Release(_ context.Context, key, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.entries[key]; ok && e.token == token {
		delete(m.entries, key)
	}
	return nil
}
