package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/pkg/metrics"
	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/pkg/otel"
	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/pkg/trace"
	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/pkg/util"
)

type MessageHandler func(ctx context.Context, data json.RawMessage) error

// AttemptCounter 按队列和消息 ID 累计投递次数；*util.AttemptCounter 满足
type AttemptCounter interface {
	Attempt(ctx context.Context, queue, messageID string) (int64, error)
	Clear(ctx context.Context, queue, messageID string) error
}

type Consumer struct {
	channel     *amqp091.Channel
	queue       amqp091.Queue
	routingKey  string
	consumerTag string
	handler     MessageHandler
	conn        *amqp091.Connection
	logger      *zap.Logger

	counter    AttemptCounter
	maxRetries int64

	stopOnce sync.Once
	done     chan struct{}
}

// NewConsumer creates a consumer for a specific routing key.
func NewConsumer(url, exchange, queueName, routingKey string, logger *zap.Logger) (*Consumer, error) {
	exchange = exchangeOrDefault(exchange)

	conn, err := NewConnection(url)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	fail := func(format string, err error) (*Consumer, error) {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf(format, err)
	}

	if err := DeclareExchange(ch, exchange); err != nil {
		return fail("failed to declare exchange: %w", err)
	}
	if err := DeclareDLQExchange(ch); err != nil {
		return fail("failed to declare dlq exchange: %w", err)
	}
	if _, err := DeclareDLQQueue(ch, routingKey); err != nil {
		return fail("failed to declare dlq queue: %w", err)
	}

	q, err := ch.QueueDeclare(
		queueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fail("failed to declare queue: %w", err)
	}

	if err := ch.QueueBind(q.Name, routingKey, exchange, false, nil); err != nil {
		return fail("failed to bind queue: %w", err)
	}

	if err := ch.Qos(10, 0, false); err != nil {
		return fail("failed to set qos: %w", err)
	}

	logger.Info("Consumer initialized",
		zap.String("routing_key", routingKey),
		zap.String("queue", queueName),
		zap.String("exchange", exchange),
	)

	return &Consumer{
		conn:        conn,
		channel:     ch,
		queue:       q,
		routingKey:  routingKey,
		consumerTag: "worker." + queueName,
		logger:      logger,
		maxRetries:  3,
		done:        make(chan struct{}),
	}, nil
}

func (c *Consumer) SetHandler(h MessageHandler) {
	c.handler = h
}

// SetRetryPolicy 可重试错误最多重新入队 maxRetries 次，之后转入 DLQ
func (c *Consumer) SetRetryPolicy(counter AttemptCounter, maxRetries int64) {
	c.counter = counter
	if maxRetries > 0 {
		c.maxRetries = maxRetries
	}
}

// IsConnected 健康检查用
func (c *Consumer) IsConnected() bool {
	if c.conn == nil || c.channel == nil {
		return false
	}
	return !c.conn.IsClosed() && !c.channel.IsClosed()
}

// Stop 取消订阅，正在处理的消息会处理完
func (c *Consumer) Stop() {
	c.stopOnce.Do(func() {
		if c.channel != nil {
			if err := c.channel.Cancel(c.consumerTag, false); err != nil {
				c.logger.Warn("Failed to cancel consumer",
					zap.String("queue", c.queue.Name),
					zap.Error(err),
				)
			}
		}
		close(c.done)
	})
}

func (c *Consumer) Close() {
	c.Stop()
	if c.channel != nil {
		_ = c.channel.Close()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

// StartConsuming starts consuming messages. This method blocks and should be called in a goroutine.
func (c *Consumer) StartConsuming() error {
	if c.handler == nil {
		return fmt.Errorf("consumer handler not set")
	}

	deliveries, err := c.channel.Consume(
		c.queue.Name,
		c.consumerTag,
		false, // 手动ack
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	c.logger.Info("Consumer started consuming messages",
		zap.String("routing_key", c.routingKey),
		zap.String("queue", c.queue.Name),
	)

	for {
		select {
		case <-c.done:
			return nil
		case msg, ok := <-deliveries:
			if !ok {
				return nil
			}
			c.process(msg)
		}
	}
}

// process 保证每条消息都会被 ack 或 nack
func (c *Consumer) process(msg amqp091.Delivery) {
	start := time.Now()
	ctx := context.Background()
	if traceID, ok := msg.Headers[trace.HeaderName()].(string); ok {
		ctx = trace.WithContext(ctx, traceID)
	}
	ctx = otel.ExtractMQHeaders(ctx, msg.Headers)
	ctx, span := otel.MQConsumeSpan(ctx, msg.RoutingKey, c.queue.Name)
	defer span.End()

	log := c.logger.With(
		zap.String("routing_key", msg.RoutingKey),
		zap.String("queue", c.queue.Name),
		zap.String("message_id", msg.MessageId),
	)
	log.Debug("Received message", zap.Int("message_size", len(msg.Body)))

	err := c.invoke(ctx, msg.Body)
	metrics.RecordMQConsumeLatency(c.routingKey, c.queue.Name, time.Since(start))

	if err == nil {
		c.resetRetry(ctx, msg)
		if ackErr := msg.Ack(false); ackErr != nil {
			log.Error("Failed to ack message", zap.Error(ackErr))
		}
		return
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	retryable, errType := util.IsRetryableError(err)
	attempts := c.attempts(ctx, msg)
	switch decide(retryable, attempts, c.maxRetries) {
	case actionRequeue:
		log.Warn("Handler error, requeue",
			zap.String("error_type", errType),
			zap.Int64("attempt", attempts),
			zap.Error(err),
		)
		if nackErr := msg.Nack(false, true); nackErr != nil {
			log.Error("Failed to nack message", zap.Error(nackErr))
		}
	default:
		log.Error("Handler error, dead-lettering",
			zap.String("error_type", errType),
			zap.Bool("retryable", retryable),
			zap.Int64("attempt", attempts),
			zap.Error(err),
		)
		if dlqErr := publishToDLQ(ctx, c.channel, msg, c.queue.Name, err); dlqErr != nil {
			log.Error("Failed to publish to DLQ, requeue", zap.Error(dlqErr))
			_ = msg.Nack(false, true)
			return
		}
		c.resetRetry(ctx, msg)
		if ackErr := msg.Ack(false); ackErr != nil {
			log.Error("Failed to ack message", zap.Error(ackErr))
		}
	}
}

// invoke 执行业务处理，panic 视为不可重试错误
func (c *Consumer) invoke(ctx context.Context, body []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Handler panic recovered",
				zap.String("routing_key", c.routingKey),
				zap.String("queue", c.queue.Name),
				zap.Any("panic", r),
			)
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return c.handler(ctx, body)
}

// attempts 没有 retry counter 或消息无 ID 时只能依赖 Redelivered 标记
func (c *Consumer) attempts(ctx context.Context, msg amqp091.Delivery) int64 {
	if c.counter == nil || msg.MessageId == "" {
		if msg.Redelivered {
			return c.maxRetries + 1
		}
		return 1
	}
	n, err := c.counter.Attempt(ctx, c.queue.Name, msg.MessageId)
	if err != nil {
		c.logger.Warn("Retry counter unavailable", zap.Error(err))
		return 1
	}
	return n
}

func (c *Consumer) resetRetry(ctx context.Context, msg amqp091.Delivery) {
	if c.counter == nil || msg.MessageId == "" {
		return
	}
	if err := c.counter.Clear(ctx, c.queue.Name, msg.MessageId); err != nil {
		c.logger.Debug("Failed to clear attempt counter", zap.Error(err))
	}
}

type action int

const (
	actionRequeue action = iota
	actionDeadLetter
)

func decide(retryable bool, attempts, maxRetries int64) action {
	if retryable && util.ShouldRetry(attempts, maxRetries, retryable) {
		return actionRequeue
	}
	return actionDeadLetter
}
