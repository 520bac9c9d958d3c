package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/pkg/otel"
)

type ActivityLogRepository struct {
	db     Querier
	logger *zap.Logger
}

func NewActivityLogRepository(db Querier, logger *zap.Logger) *ActivityLogRepository {
	return &ActivityLogRepository{db: db, logger: logger}
}

func (r *ActivityLogRepository) Append(ctx context.Context, level, message string, metadata map[string]any) error {
	if metadata == nil {
		metadata = map[string]any{}
	}
	raw, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("marshal activity metadata: %w", err)
	}

	err = otel.DBOp(ctx, "activity_logs.insert", func(ctx context.Context) error {
		_, err := r.db.Exec(ctx, `
			INSERT INTO activity_logs (level, message, metadata)
			VALUES ($1, $2, $3)
		`, level, message, raw)
		return err
	})
	if err != nil {
		r.logger.Error("Failed to append activity log", zap.String("message", message), zap.Error(err))
		return fmt.Errorf("append activity log: %w", err)
	}
	return nil
}
