package progression

import (
	"context"
	"time"

	mqcontracts "github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/contracts/mq"
	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/internal/model"
	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/pkg/logger"
	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/pkg/metrics"
	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/pkg/otel"
	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/pkg/trace"

	"go.uber.org/zap"
)

// Advancer is the part of StageController the tracker triggers after each vote.
type Advancer interface {
	TryAdvanceStage(ctx context.Context, projectID int64) (*AdvanceResult, error)
}

// ConsensusTracker stores per-stage approval flags and reports the aggregate.
type ConsensusTracker struct {
	tx       Transactor
	advancer Advancer
	logger   *zap.Logger
	now      func() time.Time
}

func NewConsensusTracker(tx Transactor, advancer Advancer, logger *zap.Logger) *ConsensusTracker {
	return &ConsensusTracker{tx: tx, advancer: advancer, logger: logger, now: time.Now}
}

// WithClock 替换时间源（测试用）
func (t *ConsensusTracker) WithClock(now func() time.Time) *ConsensusTracker {
	t.now = now
	return t
}

// SetApproval upserts the mentor's flag for the project's current stage, then
// re-evaluates consensus. Advancement is a silent consequence: its failure is
// logged and never turns a stored vote into an error.
func (t *ConsensusTracker) SetApproval(ctx context.Context, in ApprovalInput) (*ApprovalResult, error) {
	const op = "set approval"
	start := time.Now()
	ctx, span := otel.StartSpan(ctx, "progression.SetApproval")
	defer span.End()

	log := logger.WithTrace(ctx, t.logger).With(
		zap.Int64("project_id", in.ProjectID),
		zap.Int64("mentor_id", in.MentorID),
		zap.Int("stage", in.Stage),
		zap.Bool("approved", in.Approved),
	)

	changed, err := t.setApproval(ctx, op, in)
	metrics.ObserveEngineOperation("set_approval", outcomeOf(err), time.Since(start))
	if err != nil {
		span.RecordError(err)
		logFailure(log, "Approval rejected", err)
		return nil, err
	}
	log.Info("Approval stored", zap.Bool("changed", changed))

	result := &ApprovalResult{Changed: changed}
	if t.advancer == nil {
		return result, nil
	}
	adv, err := t.advancer.TryAdvanceStage(ctx, in.ProjectID)
	if err != nil {
		log.Error("Consensus re-evaluation failed after vote", zap.Error(err))
		return result, nil
	}
	result.Advanced = adv.Advanced
	result.NewStage = adv.NewStage
	return result, nil
}

func (t *ConsensusTracker) setApproval(ctx context.Context, op string, in ApprovalInput) (bool, error) {
	if !model.ValidStage(in.Stage) {
		return false, validationf(op, "stage must be between %d and %d", model.MinStage, model.MaxStage)
	}

	var changed bool
	err := t.tx.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		changed = false

		p, err := tx.Projects().Get(ctx, in.ProjectID)
		if err != nil {
			return mapStoreError(op, in.ProjectID, err)
		}
		if p.IsTerminated() {
			return authorizationf(op, "project %d is terminated", p.ID)
		}
		mentorIDs, err := tx.Roster().ActiveMentorIDs(ctx, p.ID)
		if err != nil {
			return mapStoreError(op, p.ID, err)
		}
		if !containsID(mentorIDs, in.MentorID) {
			return authorizationf(op, "mentor %d is not assigned to project %d", in.MentorID, p.ID)
		}
		if p.IsCompleted() {
			return validationf(op, "project %d already completed the final stage", p.ID)
		}
		if in.Stage != p.CurrentStage {
			return validationf(op, "project %d is at stage %d, not stage %d", p.ID, p.CurrentStage, in.Stage)
		}

		now := t.now()
		changed, err = tx.Approvals().Upsert(ctx, p.ID, in.MentorID, in.Stage, in.Approved, now)
		if err != nil {
			return mapStoreError(op, p.ID, err)
		}
		if !changed || !in.Approved {
			return nil
		}

		// 新批准：通知其余在岗导师
		payload := mqcontracts.ApprovalRecordedPayload{
			ProjectID:          p.ID,
			ProjectName:        p.Name,
			MentorID:           in.MentorID,
			Stage:              in.Stage,
			RecipientMentorIDs: withoutID(mentorIDs, in.MentorID),
			ApprovedAt:         now,
			TraceID:            trace.FromContext(ctx),
		}
		if err := tx.Events().Enqueue(ctx, mqcontracts.AggregateProject, p.ID, mqcontracts.RoutingApprovalRecorded, payload); err != nil {
			return mapStoreError(op, p.ID, err)
		}
		return nil
	})
	return changed, err
}

// GetConsensusStatus reports the aggregate vote at the project's current stage.
func (t *ConsensusTracker) GetConsensusStatus(ctx context.Context, projectID int64) (*ConsensusStatus, error) {
	const op = "consensus status"
	ctx, span := otel.StartSpan(ctx, "progression.GetConsensusStatus")
	defer span.End()

	var status *ConsensusStatus
	err := t.tx.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		p, err := tx.Projects().Get(ctx, projectID)
		if err != nil {
			return mapStoreError(op, projectID, err)
		}
		status, err = evaluate(ctx, tx, p)
		return err
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return status, nil
}

// SeedApproval creates a not-approved row for (project, mentor, stage) if absent.
func (t *ConsensusTracker) SeedApproval(ctx context.Context, projectID, mentorID int64, stage int) error {
	const op = "seed approval"
	if !model.ValidStage(stage) {
		return validationf(op, "stage must be between %d and %d", model.MinStage, model.MaxStage)
	}
	return t.tx.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		if _, err := tx.Projects().Get(ctx, projectID); err != nil {
			return mapStoreError(op, projectID, err)
		}
		created, err := tx.Approvals().Seed(ctx, projectID, mentorID, stage)
		if err != nil {
			return mapStoreError(op, projectID, err)
		}
		if created {
			logger.WithTrace(ctx, t.logger).Info("Approval row seeded",
				zap.Int64("project_id", projectID),
				zap.Int64("mentor_id", mentorID),
				zap.Int("stage", stage),
			)
		}
		return nil
	})
}

// OnMentorAssigned seeds the joining mentor at the project's stage at join time.
// Assignments that are no longer active by the time the event arrives are skipped.
func (t *ConsensusTracker) OnMentorAssigned(ctx context.Context, projectID, mentorID int64) error {
	const op = "mentor assigned"
	log := logger.WithTrace(ctx, t.logger).With(
		zap.Int64("project_id", projectID),
		zap.Int64("mentor_id", mentorID),
	)
	return t.tx.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		p, err := tx.Projects().GetForUpdate(ctx, projectID)
		if err != nil {
			return mapStoreError(op, projectID, err)
		}
		active, err := tx.Roster().IsActive(ctx, projectID, mentorID)
		if err != nil {
			return mapStoreError(op, projectID, err)
		}
		if !active {
			log.Info("Mentor no longer active, seed skipped")
			return nil
		}
		created, err := tx.Approvals().Seed(ctx, projectID, mentorID, p.CurrentStage)
		if err != nil {
			return mapStoreError(op, projectID, err)
		}
		log.Info("Mentor seeded at current stage", zap.Int("stage", p.CurrentStage), zap.Bool("created", created))
		return nil
	})
}

// ListApprovals returns the approval rows at stage; stage 0 means the current stage.
func (t *ConsensusTracker) ListApprovals(ctx context.Context, projectID int64, stage int) ([]model.MentorStageApproval, error) {
	const op = "list approvals"
	if stage != 0 && !model.ValidStage(stage) {
		return nil, validationf(op, "stage must be between %d and %d", model.MinStage, model.MaxStage)
	}
	var rows []model.MentorStageApproval
	err := t.tx.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		p, err := tx.Projects().Get(ctx, projectID)
		if err != nil {
			return mapStoreError(op, projectID, err)
		}
		if stage == 0 {
			stage = p.CurrentStage
		}
		rows, err = tx.Approvals().ListByStage(ctx, projectID, stage)
		if err != nil {
			return mapStoreError(op, projectID, err)
		}
		return nil
	})
	return rows, err
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func withoutID(ids []int64, id int64) []int64 {
	out := make([]int64, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
