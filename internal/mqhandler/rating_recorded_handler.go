package mqhandler

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	mqcontracts "github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/contracts/mq"
	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/internal/model"
	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/pkg/logger"
)

// ActivityAppender is satisfied by the activity log repositories.
type ActivityAppender interface {
	Append(ctx context.Context, level, message string, metadata map[string]any) error
}

// RatingRecordedHandler writes an audit entry per rating.
type RatingRecordedHandler struct {
	activity ActivityAppender
	deduper  Deduper
	logger   *zap.Logger
}

func NewRatingRecordedHandler(activity ActivityAppender, deduper Deduper, logger *zap.Logger) *RatingRecordedHandler {
	return &RatingRecordedHandler{activity: activity, deduper: deduper, logger: logger}
}

func (h *RatingRecordedHandler) Handle(ctx context.Context, raw json.RawMessage) error {
	ctx, p, err := decode(ctx, raw, func(p *mqcontracts.RatingRecordedPayload) string { return p.TraceID })
	if err != nil {
		h.logger.Error("Invalid RatingRecordedPayload", zap.Error(err))
		return err
	}

	log := logger.WithTrace(ctx, h.logger).With(
		zap.Int64("rating_id", p.RatingID),
		zap.Int64("project_id", p.ProjectID),
	)
	return once(ctx, h.deduper, "rating_audit", fmt.Sprint(p.RatingID), log, func() error {
		msg := fmt.Sprintf("Mentor %d rated project %d at stage %d, %d%% (overall %d%%)",
			p.MentorID, p.ProjectID, p.Stage, p.Percentage, p.OverallProgress)
		return h.activity.Append(ctx, model.LogLevelInfo, msg, map[string]any{
			"rating_id":           p.RatingID,
			"project_id":          p.ProjectID,
			"mentor_id":           p.MentorID,
			"stage":               p.Stage,
			"percentage":          p.Percentage,
			"previous_stage":      p.PreviousStage,
			"previous_percentage": p.PreviousPercentage,
			"overall_progress":    p.OverallProgress,
		})
	})
}
