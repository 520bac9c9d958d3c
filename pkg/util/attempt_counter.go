package util

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// AttemptCounter 记录每条消息在某个队列上的投递次数；每次投递刷新 TTL，长时间无投递即清零
type AttemptCounter struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewAttemptCounter(rdb redis.Cmdable, ttl time.Duration) *AttemptCounter {
	return &AttemptCounter{rdb: rdb, ttl: ttl}
}

func attemptKey(queue, messageID string) string {
	return "attempts:" + queue + ":" + messageID
}

// Attempt 计数加一并返回本次是第几次投递；INCR 与 EXPIRE 在同一个 MULTI 中执行
func (a *AttemptCounter) Attempt(ctx context.Context, queue, messageID string) (int64, error) {
	key := attemptKey(queue, messageID)
	var incr *redis.IntCmd
	_, err := a.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, a.ttl)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("count attempt %s: %w", key, err)
	}
	return incr.Val(), nil
}

// Clear 消息处理结束（成功或进入 DLQ）后删除计数
func (a *AttemptCounter) Clear(ctx context.Context, queue, messageID string) error {
	if err := a.rdb.Del(ctx, attemptKey(queue, messageID)).Err(); err != nil {
		return fmt.Errorf("clear attempts %s:%s: %w", queue, messageID, err)
	}
	return nil
}
