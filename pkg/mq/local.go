package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/pkg/metrics"
	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/pkg/otel"
)

const localQueue = "local"

// LocalBus 进程内路由，storage.driver=memory 时代替 RabbitMQ。
// 处理失败的错误原样返回，由 outbox dispatcher 负责重试。
type LocalBus struct {
	mu       sync.RWMutex
	handlers map[string][]MessageHandler
	logger   *zap.Logger
}

func NewLocalBus(logger *zap.Logger) *LocalBus {
	return &LocalBus{handlers: make(map[string][]MessageHandler), logger: logger}
}

// Subscribe 注册 routingKey 的处理函数
func (b *LocalBus) Subscribe(routingKey string, h MessageHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[routingKey] = append(b.handlers[routingKey], h)
}

// PublishRaw 同步投递给所有订阅者
func (b *LocalBus) PublishRaw(ctx context.Context, routingKey, messageID string, body []byte) error {
	b.mu.RLock()
	handlers := b.handlers[routingKey]
	b.mu.RUnlock()

	log := b.logger.With(zap.String("routing_key", routingKey), zap.String("message_id", messageID))
	if len(handlers) == 0 {
		log.Debug("No local subscriber, message dropped")
		return nil
	}

	ctx, span := otel.MQConsumeSpan(ctx, routingKey, localQueue)
	defer span.End()

	start := time.Now()
	defer func() { metrics.RecordMQConsumeLatency(routingKey, localQueue, time.Since(start)) }()

	for _, h := range handlers {
		if err := b.invoke(ctx, h, body); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			log.Warn("Local handler failed", zap.Error(err))
			return err
		}
	}
	return nil
}

func (b *LocalBus) invoke(ctx context.Context, h MessageHandler, body []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h(ctx, json.RawMessage(body))
}
