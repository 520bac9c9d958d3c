package mqhandler

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/pkg/trace"
	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/pkg/util"
)

// Deduper *util.Deduper 满足；nil 表示不去重
type Deduper interface {
	AcquireOnce(ctx context.Context, handler, key string) bool
	Release(ctx context.Context, handler, key string)
}

// decode 解析 payload，并把 payload 里的 trace_id 放回 ctx
func decode[T any](ctx context.Context, raw json.RawMessage, traceOf func(*T) string) (context.Context, *T, error) {
	var p T
	if err := json.Unmarshal(raw, &p); err != nil {
		return ctx, nil, fmt.Errorf("bad_payload: %w", err)
	}
	if trace.FromContext(ctx) == "" {
		ctx = trace.WithContext(ctx, traceOf(&p))
	}
	return ctx, &p, nil
}

// once 用 Redis 去重包装一次处理；处理失败时释放标记以便重试
func once(ctx context.Context, d Deduper, handler, key string, log *zap.Logger, fn func() error) error {
	if d != nil && !d.AcquireOnce(ctx, handler, key) {
		log.Info("Duplicated event, skip", zap.String("dedup_key", key))
		return nil
	}
	if err := fn(); err != nil {
		retryable, errType := util.IsRetryableError(err)
		log.Error("Handler failed",
			zap.String("error_type", errType),
			zap.Bool("retryable", retryable),
			zap.Error(err),
		)
		if d != nil {
			d.Release(ctx, handler, key)
		}
		return err
	}
	return nil
}
