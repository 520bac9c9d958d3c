package mq

import (
	"context"
	"errors"
	"testing"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap/zaptest"
)

func TestDecide(t *testing.T) {
	cases := []struct {
		name      string
		retryable bool
		attempts  int64
		max       int64
		want      action
	}{
		{"retryable first attempt", true, 1, 3, actionRequeue},
		{"retryable at limit", true, 3, 3, actionRequeue},
		{"retryable over limit", true, 4, 3, actionDeadLetter},
		{"non retryable", false, 1, 3, actionDeadLetter},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := decide(tc.retryable, tc.attempts, tc.max); got != tc.want {
				t.Fatalf("decide(%v, %d, %d) = %v, want %v", tc.retryable, tc.attempts, tc.max, got, tc.want)
			}
		})
	}
}

func TestExchangeOrDefault(t *testing.T) {
	if exchangeOrDefault("") != DefaultExchange {
		t.Fatalf("empty exchange should fall back to %s", DefaultExchange)
	}
	if exchangeOrDefault("custom") != "custom" {
		t.Fatalf("custom exchange overridden")
	}
}

type memCounter struct {
	counts  map[string]int64
	cleared []string
	err     error
}

func (m *memCounter) Attempt(_ context.Context, queue, id string) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	m.counts[queue+"/"+id]++
	return m.counts[queue+"/"+id], nil
}

func (m *memCounter) Clear(_ context.Context, queue, id string) error {
	delete(m.counts, queue+"/"+id)
	m.cleared = append(m.cleared, queue+"/"+id)
	return nil
}

func TestAttemptsCountPerQueueAndMessage(t *testing.T) {
	counter := &memCounter{counts: map[string]int64{}}
	c := &Consumer{queue: amqp091.Queue{Name: "notify.q"}, logger: zaptest.NewLogger(t), maxRetries: 3}
	c.SetRetryPolicy(counter, 3)
	ctx := context.Background()

	msg := amqp091.Delivery{MessageId: "m-1"}
	for want := int64(1); want <= 3; want++ {
		if got := c.attempts(ctx, msg); got != want {
			t.Fatalf("attempt = %d, want %d", got, want)
		}
	}
	if got := c.attempts(ctx, amqp091.Delivery{MessageId: "m-2"}); got != 1 {
		t.Fatalf("other message attempt = %d, want 1", got)
	}

	c.resetRetry(ctx, msg)
	if len(counter.cleared) != 1 || counter.cleared[0] != "notify.q/m-1" {
		t.Fatalf("cleared = %v", counter.cleared)
	}
	if got := c.attempts(ctx, msg); got != 1 {
		t.Fatalf("attempt after clear = %d, want 1", got)
	}
}

func TestAttemptsFallbackWithoutCounter(t *testing.T) {
	c := &Consumer{logger: zaptest.NewLogger(t), maxRetries: 2}
	ctx := context.Background()

	if got := c.attempts(ctx, amqp091.Delivery{MessageId: "m"}); got != 1 {
		t.Fatalf("first delivery = %d, want 1", got)
	}
	// 无计数器时重投的消息直接超过上限
	if got := c.attempts(ctx, amqp091.Delivery{MessageId: "m", Redelivered: true}); got <= c.maxRetries {
		t.Fatalf("redelivered attempts = %d, want > %d", got, c.maxRetries)
	}

	c.SetRetryPolicy(&memCounter{err: errors.New("redis down")}, 2)
	if got := c.attempts(ctx, amqp091.Delivery{MessageId: "m"}); got != 1 {
		t.Fatalf("counter failure attempts = %d, want 1", got)
	}
}
