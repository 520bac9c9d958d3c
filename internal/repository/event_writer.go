package repository

import (
	"context"

	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/pkg/otel"
	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/pkg/outbox"
)

// EventWriter 在业务事务内写 outbox_events
type EventWriter struct {
	db Querier
}

func NewEventWriter(db Querier) *EventWriter {
	return &EventWriter{db: db}
}

func (w *EventWriter) Enqueue(ctx context.Context, aggregateType string, aggregateID int64, routingKey string, payload any) error {
	event, err := outbox.NewEvent(aggregateType, aggregateID, routingKey, payload)
	if err != nil {
		return err
	}
	return otel.DBOp(ctx, "outbox.insert", func(ctx context.Context) error {
		return outbox.InsertEvent(ctx, w.db, event)
	})
}
