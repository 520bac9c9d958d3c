package mqhandler

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	mqcontracts "github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/contracts/mq"
	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/pkg/logger"
)

// MentorSeeder is satisfied by *progression.ConsensusTracker.
type MentorSeeder interface {
	OnMentorAssigned(ctx context.Context, projectID, mentorID int64) error
}

// MentorAssignedHandler seeds an approval row for a newly assigned mentor.
// Seeding is idempotent, so no dedup is needed.
type MentorAssignedHandler struct {
	seeder MentorSeeder
	logger *zap.Logger
}

func NewMentorAssignedHandler(seeder MentorSeeder, logger *zap.Logger) *MentorAssignedHandler {
	return &MentorAssignedHandler{seeder: seeder, logger: logger}
}

func (h *MentorAssignedHandler) Handle(ctx context.Context, raw json.RawMessage) error {
	ctx, p, err := decode(ctx, raw, func(p *mqcontracts.MentorAssignedPayload) string { return p.TraceID })
	if err != nil {
		h.logger.Error("Invalid MentorAssignedPayload", zap.Error(err))
		return err
	}

	log := logger.WithTrace(ctx, h.logger).With(
		zap.Int64("project_id", p.ProjectID),
		zap.Int64("mentor_id", p.MentorID),
	)
	if err := h.seeder.OnMentorAssigned(ctx, p.ProjectID, p.MentorID); err != nil {
		log.Error("Failed to seed approval for assigned mentor", zap.Error(err))
		return err
	}
	log.Info("Approval seeded for assigned mentor")
	return nil
}
