package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/internal/model"
	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/pkg/otel"
)

type NotificationRepository struct {
	db     Querier
	logger *zap.Logger
}

func NewNotificationRepository(db Querier, logger *zap.Logger) *NotificationRepository {
	return &NotificationRepository{db: db, logger: logger}
}

// Create 插入站内通知；event_key 冲突时不重复插入并返回 false
func (r *NotificationRepository) Create(ctx context.Context, n *model.Notification) (bool, error) {
	r.logger.Debug("Inserting notification",
		zap.String("recipient_type", n.RecipientType),
		zap.Int64("recipient_id", n.RecipientID),
		zap.String("type", n.Type),
		zap.String("event_key", n.EventKey),
	)

	var related *int64
	if n.RelatedProjectID > 0 {
		related = &n.RelatedProjectID
	}
	var eventKey *string
	if n.EventKey != "" {
		eventKey = &n.EventKey
	}

	created := true
	err := otel.DBOp(ctx, "notifications.insert", func(ctx context.Context) error {
		err := r.db.QueryRow(ctx, `
			INSERT INTO notifications (recipient_type, recipient_id, type, title, message, related_project_id, event_key)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (recipient_type, recipient_id, event_key) DO NOTHING
			RETURNING id, created_at
		`, n.RecipientType, n.RecipientID, n.Type, n.Title, n.Message, related, eventKey).Scan(&n.ID, &n.CreatedAt)
		if errors.Is(err, pgx.ErrNoRows) {
			created = false
			return nil
		}
		return err
	})
	if err != nil {
		r.logger.Error("Failed to insert notification", zap.Error(err))
		return false, fmt.Errorf("insert notification: %w", err)
	}
	if !created {
		r.logger.Debug("Notification already exists", zap.String("event_key", n.EventKey))
	}
	return created, nil
}
