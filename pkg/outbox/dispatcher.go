package outbox

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/pkg/metrics"
	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/pkg/trace"
)

// Publisher *mq.Publisher 和进程内路由都满足
type Publisher interface {
	PublishRaw(ctx context.Context, routingKey, messageID string, body []byte) error
}

// Dispatcher 负责从 outbox 中读取事件并发布到 MQ
type Dispatcher struct {
	store      Store
	publisher  Publisher
	logger     *zap.Logger
	maxRetries int
	interval   time.Duration
	batchSize  int
}

// NewDispatcher 创建新的 Dispatcher
func NewDispatcher(store Store, publisher Publisher, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		store:      store,
		publisher:  publisher,
		logger:     logger,
		maxRetries: 5,
		interval:   time.Second,
		batchSize:  100,
	}
}

// WithMaxRetries 设置最大重试次数
func (d *Dispatcher) WithMaxRetries(maxRetries int) *Dispatcher {
	if maxRetries > 0 {
		d.maxRetries = maxRetries
	}
	return d
}

// WithInterval 设置扫描间隔
func (d *Dispatcher) WithInterval(interval time.Duration) *Dispatcher {
	if interval > 0 {
		d.interval = interval
	}
	return d
}

// WithBatchSize 设置批次大小
func (d *Dispatcher) WithBatchSize(batchSize int) *Dispatcher {
	if batchSize > 0 {
		d.batchSize = batchSize
	}
	return d
}

// Start 阻塞运行直到 ctx 取消
func (d *Dispatcher) Start(ctx context.Context) {
	d.logger.Info("Starting Outbox Dispatcher",
		zap.Int("max_retries", d.maxRetries),
		zap.Duration("interval", d.interval),
		zap.Int("batch_size", d.batchSize),
	)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("Outbox Dispatcher stopped")
			return
		case <-ticker.C:
			d.DispatchPending(ctx)
		}
	}
}

// DispatchPending 处理一批待发送事件，返回成功发送的数量
func (d *Dispatcher) DispatchPending(ctx context.Context) int {
	events, err := d.store.GetPendingEvents(ctx, d.batchSize)
	if err != nil {
		d.logger.Error("Failed to get pending events", zap.Error(err))
		return 0
	}
	if len(events) == 0 {
		return 0
	}

	d.logger.Debug("Processing pending events", zap.Int("count", len(events)))

	sent := 0
	for _, event := range events {
		if d.dispatch(ctx, event) {
			sent++
		}
	}
	return sent
}

func (d *Dispatcher) dispatch(ctx context.Context, event *Event) bool {
	log := d.logger.With(
		zap.Int64("event_id", event.ID),
		zap.String("routing_key", event.RoutingKey),
	)

	if err := publish(ctx, d.publisher, event); err != nil {
		metrics.IncrementOutboxPublish(event.RoutingKey, "error")
		log.Error("Failed to publish event", zap.Error(err))
		if err := d.store.MarkAsFailed(ctx, event.ID, err.Error(), d.maxRetries); err != nil {
			log.Error("Failed to mark event as failed", zap.Error(err))
		}
		return false
	}

	metrics.IncrementOutboxPublish(event.RoutingKey, "sent")
	if err := d.store.MarkAsSent(ctx, event.ID); err != nil {
		// 会被再次发送，消费端按 MessageId 去重
		log.Error("Failed to mark event as sent", zap.Error(err))
		return false
	}
	log.Debug("Event published successfully")
	return true
}

func publish(ctx context.Context, p Publisher, event *Event) error {
	ctx = traceFromPayload(ctx, event.Payload)
	return p.PublishRaw(ctx, event.RoutingKey, event.EventKey, event.Payload)
}

// traceFromPayload 恢复写入事件时的 trace_id
func traceFromPayload(ctx context.Context, payload json.RawMessage) context.Context {
	var envelope struct {
		TraceID string `json:"trace_id"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil || envelope.TraceID == "" {
		return ctx
	}
	return trace.WithContext(ctx, envelope.TraceID)
}
