package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"storyboard-server/modules/common/lease"
)

const leaseKeyPrefix = "storyboard:lease:"

// token 이 일치할 때만 삭제
var releaseScript = redis.NewScript(`
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('DEL', KEYS[1])
	end
	return 0
`)

// Lease - 여러 인스턴스가 공유하는 씬 lease (SET NX PX)
type Lease struct {
	rdb *redis.Client
}

var _ lease.Locker = (*Lease)(nil)

func NewLease(rdb *redis.Client) *Lease {
	return &Lease{rdb: rdb}
}

func (l *Lease) Acquire(ctx context.Context, key string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	ok, err := l.rdb.SetNX(ctx, leaseKeyPrefix+key, token, ttl).Result()
	if err != nil {
		return "", fmt.Errorf("failed to acquire lease %s: %w", key, err)
	}
	if !ok {
		return "", lease.ErrHeld
	}
	return token, nil
}

func (l *Lease) Release(ctx context.Context, key, token string) error {
	if err := releaseScript.Run(ctx, l.rdb, []string{leaseKeyPrefix + key}, token).Err(); err != nil {
		return fmt.Errorf("failed to release lease %s: %w", key, err)
	}
	return nil
}
