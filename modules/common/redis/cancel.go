package redis

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

const cancelKeyPrefix = "storyboard:cancel:"

// CancelFlags - 인스턴스 간 영상 작업 취소 플래그
type CancelFlags struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewCancelFlags(rdb *redis.Client, ttl time.Duration) *CancelFlags {
	return &CancelFlags{rdb: rdb, ttl: ttl}
}

// SetCancelled - 작업 취소 표시
func (c *CancelFlags) SetCancelled(ctx context.Context, jobID string) error {
	return c.rdb.Set(ctx, cancelKeyPrefix+jobID, "1", c.ttl).Err()
}

// IsCancelled - 취소 여부 (Redis 오류 시 false)
func (c *CancelFlags) IsCancelled(ctx context.Context, jobID string) bool {
	n, err := c.rdb.Exists(ctx, cancelKeyPrefix+jobID).Result()
	if err != nil {
		log.Printf("⚠️  [Redis] Failed to read cancel flag for %s: %v", jobID, err)
		return false
	}
	return n > 0
}

// Clear - 작업 종료 후 플래그 삭제
func (c *CancelFlags) Clear(ctx context.Context, jobID string) error {
	return c.rdb.Del(ctx, cancelKeyPrefix+jobID).Err()
}
