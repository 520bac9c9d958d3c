package progression

import (
	"context"
	"fmt"
	"time"

	mqcontracts "github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/contracts/mq"
	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/internal/model"
	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/pkg/logger"
	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/pkg/metrics"
	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/pkg/otel"
	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/pkg/trace"

	"go.uber.org/zap"
)

// StageController owns current_stage and status. TryAdvanceStage is safe to call
// speculatively, redundantly and concurrently.
type StageController struct {
	tx       Transactor
	activity ActivityLogSink
	logger   *zap.Logger
	now      func() time.Time
}

func NewStageController(tx Transactor, activity ActivityLogSink, logger *zap.Logger) *StageController {
	return &StageController{tx: tx, activity: activity, logger: logger, now: time.Now}
}

// WithClock 替换时间源（测试用）
func (c *StageController) WithClock(now func() time.Time) *StageController {
	c.now = now
	return c
}

// advancement is what the critical section hands back for the post-commit steps.
type advancement struct {
	projectID int64
	oldStage  int
	newStage  int
	status    string
	approved  int
	total     int
	reseeded  int
}

// TryAdvanceStage evaluates consensus under the project row lock and, when every
// active mentor approved, advances exactly one stage and reseeds approvals.
func (c *StageController) TryAdvanceStage(ctx context.Context, projectID int64) (*AdvanceResult, error) {
	const op = "advance stage"
	start := time.Now()
	ctx, span := otel.StartSpan(ctx, "progression.TryAdvanceStage")
	defer span.End()

	log := logger.WithTrace(ctx, c.logger).With(zap.Int64("project_id", projectID))

	var adv *advancement
	var skip string
	err := c.tx.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		adv, skip = nil, ""

		// Step 1: lock + guard
		p, err := tx.Projects().GetForUpdate(ctx, projectID)
		if err != nil {
			return mapStoreError(op, projectID, err)
		}
		if p.Status != model.ProjectStatusActive {
			skip = "inactive"
			return nil
		}
		if p.CurrentStage+1 > model.MaxStage {
			skip = "final_stage"
			return nil
		}
		status, err := evaluate(ctx, tx, p)
		if err != nil {
			return err
		}
		if !status.ConsensusReached || status.TotalMentors == 0 {
			skip = "no_consensus"
			return nil
		}

		// Step 2: transition
		newStage := p.CurrentStage + 1
		completed := newStage == model.MaxStage
		now := c.now()
		ok, err := tx.Projects().AdvanceStage(ctx, p.ID, p.CurrentStage, completed, now)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		if !ok {
			return consistencyf(op, "project %d left stage %d while locked", p.ID, p.CurrentStage)
		}

		// Step 3: reseed
		reseeded := 0
		for _, mentorID := range status.mentorIDs {
			created, err := tx.Approvals().Seed(ctx, p.ID, mentorID, newStage)
			if err != nil {
				return fmt.Errorf("%s: reseed mentor %d: %w", op, mentorID, err)
			}
			if created {
				reseeded++
			}
		}

		newStatus := model.ProjectStatusActive
		if completed {
			newStatus = model.ProjectStatusCompleted
		}
		payload := mqcontracts.StageAdvancedPayload{
			ProjectID:       p.ID,
			ProjectName:     p.Name,
			LeadEmail:       p.LeadEmail,
			OldStage:        p.CurrentStage,
			NewStage:        newStage,
			Status:          newStatus,
			ApprovedMentors: status.ApprovedMentors,
			TotalMentors:    status.TotalMentors,
			AdvancedAt:      now,
			TraceID:         trace.FromContext(ctx),
		}
		if err := tx.Events().Enqueue(ctx, mqcontracts.AggregateProject, p.ID, mqcontracts.RoutingStageAdvanced, payload); err != nil {
			return fmt.Errorf("%s: enqueue event: %w", op, err)
		}

		adv = &advancement{
			projectID: p.ID,
			oldStage:  p.CurrentStage,
			newStage:  newStage,
			status:    newStatus,
			approved:  status.ApprovedMentors,
			total:     status.TotalMentors,
			reseeded:  reseeded,
		}
		return nil
	})

	if err != nil {
		span.RecordError(err)
		metrics.ObserveEngineOperation("advance_stage", outcomeOf(err), time.Since(start))
		if KindOf(err) == KindConsistency {
			metrics.IncrementConsistencyViolation("advance_stage")
		}
		logFailure(log, "Stage advance failed", err)
		return nil, err
	}

	if adv == nil {
		metrics.IncrementAdvanceEvaluation(skip)
		metrics.ObserveEngineOperation("advance_stage", "success", time.Since(start))
		log.Debug("Stage not advanced", zap.String("reason", skip))
		return &AdvanceResult{Advanced: false}, nil
	}

	metrics.IncrementAdvanceEvaluation("advanced")
	metrics.IncrementStageAdvance(adv.newStage)
	metrics.ObserveEngineOperation("advance_stage", "success", time.Since(start))
	log.Info("Project advanced to next stage",
		zap.Int("old_stage", adv.oldStage),
		zap.Int("new_stage", adv.newStage),
		zap.String("status", adv.status),
		zap.Int("approved_mentors", adv.approved),
		zap.Int("total_mentors", adv.total),
		zap.Int("approvals_reseeded", adv.reseeded),
	)

	// Step 4: activity log, after commit and best-effort
	c.recordActivity(ctx, log, adv)

	return &AdvanceResult{Advanced: true, NewStage: adv.newStage}, nil
}

func (c *StageController) recordActivity(ctx context.Context, log *zap.Logger, adv *advancement) {
	if c.activity == nil {
		return
	}
	msg := fmt.Sprintf("Project %d advanced from stage %d to stage %d by mentor consensus", adv.projectID, adv.oldStage, adv.newStage)
	meta := map[string]any{
		"project_id":       adv.projectID,
		"old_stage":        adv.oldStage,
		"new_stage":        adv.newStage,
		"status":           adv.status,
		"approved_mentors": adv.approved,
		"total_mentors":    adv.total,
	}
	if err := c.activity.Append(ctx, model.LogLevelInfo, msg, meta); err != nil {
		metrics.IncrementDependencyFailure("activity_log")
		log.Warn("Failed to append activity log (ignored)",
			zap.Error(&Error{Kind: KindDependency, Op: "activity log", Err: err}),
		)
	}
}
