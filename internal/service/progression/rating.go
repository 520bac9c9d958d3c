package progression

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	mqcontracts "github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/contracts/mq"
	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/internal/model"
	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/internal/progress"
	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/pkg/logger"
	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/pkg/metrics"
	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/pkg/otel"
	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/pkg/trace"

	"go.uber.org/zap"
)

const (
	MaxNotesLength      = 5000
	DefaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// RatingRecorder appends mentor progress assessments.
type RatingRecorder struct {
	tx     Transactor
	logger *zap.Logger
	now    func() time.Time
}

func NewRatingRecorder(tx Transactor, logger *zap.Logger) *RatingRecorder {
	return &RatingRecorder{tx: tx, logger: logger, now: time.Now}
}

// WithClock 替换时间源（测试用）
func (r *RatingRecorder) WithClock(now func() time.Time) *RatingRecorder {
	r.now = now
	return r
}

// RecordRating validates the input, then in one transaction reads the project's
// current stage/percentage and appends a Rating carrying both old and new values.
func (r *RatingRecorder) RecordRating(ctx context.Context, in RatingInput) (*RatingResult, error) {
	const op = "record rating"
	start := time.Now()
	ctx, span := otel.StartSpan(ctx, "progression.RecordRating")
	defer span.End()

	log := logger.WithTrace(ctx, r.logger).With(
		zap.Int64("project_id", in.ProjectID),
		zap.Int64("mentor_id", in.MentorID),
		zap.Int("stage", in.Stage),
		zap.Int("percentage", in.Percentage),
	)

	result, err := r.recordRating(ctx, op, in)
	metrics.ObserveEngineOperation("record_rating", outcomeOf(err), time.Since(start))
	if err != nil {
		span.RecordError(err)
		logFailure(log, "Rating rejected", err)
		return nil, err
	}

	log.Info("Rating recorded",
		zap.Int64("rating_id", result.RatingID),
		zap.Int("previous_stage", result.Previous.Stage),
		zap.Int("previous_percentage", result.Previous.Percentage),
		zap.Int("overall_progress", result.OverallProgress),
	)
	return result, nil
}

func (r *RatingRecorder) recordRating(ctx context.Context, op string, in RatingInput) (*RatingResult, error) {
	if !model.ValidStage(in.Stage) {
		return nil, validationf(op, "stage must be between %d and %d", model.MinStage, model.MaxStage)
	}
	if !model.ValidPercentage(in.Percentage) {
		return nil, validationf(op, "percentage must be between %d and %d", model.MinPercentage, model.MaxPercentage)
	}
	notes := strings.TrimSpace(in.Notes)
	if utf8.RuneCountInString(notes) > MaxNotesLength {
		return nil, validationf(op, "notes must be at most %d characters", MaxNotesLength)
	}

	var result *RatingResult
	err := r.tx.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		p, err := tx.Projects().Get(ctx, in.ProjectID)
		if err != nil {
			return mapStoreError(op, in.ProjectID, err)
		}
		if p.IsTerminated() {
			return authorizationf(op, "project %d is terminated", p.ID)
		}
		active, err := tx.Roster().IsActive(ctx, p.ID, in.MentorID)
		if err != nil {
			return mapStoreError(op, p.ID, err)
		}
		if !active {
			return authorizationf(op, "mentor %d is not assigned to project %d", in.MentorID, p.ID)
		}
		if in.Stage > p.CurrentStage {
			return validationf(op, "cannot rate stage %d while project is at stage %d", in.Stage, p.CurrentStage)
		}

		rating := &model.Rating{
			ProjectID:          p.ID,
			MentorID:           in.MentorID,
			Stage:              in.Stage,
			Percentage:         in.Percentage,
			PreviousStage:      p.CurrentStage,
			PreviousPercentage: p.CurrentPercentage,
			RatedAt:            r.now(),
			Notes:              notes,
		}
		if err := tx.Ratings().Insert(ctx, rating); err != nil {
			return mapStoreError(op, p.ID, err)
		}

		// 只有评估当前阶段时才更新项目的当前完成度；CAS 防止与阶段推进交错
		if in.Stage == p.CurrentStage {
			if _, err := tx.Projects().UpdatePercentage(ctx, p.ID, in.Stage, in.Percentage); err != nil {
				return mapStoreError(op, p.ID, err)
			}
		}

		overall := progress.OverallProgress(in.Stage, in.Percentage)
		payload := mqcontracts.RatingRecordedPayload{
			RatingID:           rating.ID,
			ProjectID:          p.ID,
			MentorID:           in.MentorID,
			Stage:              in.Stage,
			Percentage:         in.Percentage,
			PreviousStage:      rating.PreviousStage,
			PreviousPercentage: rating.PreviousPercentage,
			OverallProgress:    overall,
			RatedAt:            rating.RatedAt,
			TraceID:            trace.FromContext(ctx),
		}
		if err := tx.Events().Enqueue(ctx, mqcontracts.AggregateRating, rating.ID, mqcontracts.RoutingRatingRecorded, payload); err != nil {
			return mapStoreError(op, p.ID, err)
		}

		result = &RatingResult{
			RatingID:        rating.ID,
			Previous:        Snapshot{Stage: rating.PreviousStage, Percentage: rating.PreviousPercentage},
			New:             Snapshot{Stage: in.Stage, Percentage: in.Percentage},
			OverallProgress: overall,
			RatedAt:         rating.RatedAt,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// History returns the project's ratings, newest first.
func (r *RatingRecorder) History(ctx context.Context, projectID int64, limit int) ([]model.Rating, error) {
	const op = "rating history"
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	var ratings []model.Rating
	err := r.tx.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		if _, err := tx.Projects().Get(ctx, projectID); err != nil {
			return mapStoreError(op, projectID, err)
		}
		var err error
		ratings, err = tx.Ratings().ListByProject(ctx, projectID, limit)
		if err != nil {
			return mapStoreError(op, projectID, err)
		}
		return nil
	})
	return ratings, err
}
