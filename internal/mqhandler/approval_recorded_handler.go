package mqhandler

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	mqcontracts "github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/contracts/mq"
	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/internal/service/notify"
	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/pkg/logger"
)

// ApprovalRecordedHandler fans a new approval out to the other mentors.
type ApprovalRecordedHandler struct {
	notifier *notify.Notifier
	deduper  Deduper
	logger   *zap.Logger
}

func NewApprovalRecordedHandler(notifier *notify.Notifier, deduper Deduper, logger *zap.Logger) *ApprovalRecordedHandler {
	return &ApprovalRecordedHandler{notifier: notifier, deduper: deduper, logger: logger}
}

func (h *ApprovalRecordedHandler) Handle(ctx context.Context, raw json.RawMessage) error {
	ctx, p, err := decode(ctx, raw, func(p *mqcontracts.ApprovalRecordedPayload) string { return p.TraceID })
	if err != nil {
		h.logger.Error("Invalid ApprovalRecordedPayload", zap.Error(err))
		return err
	}

	log := logger.WithTrace(ctx, h.logger).With(
		zap.Int64("project_id", p.ProjectID),
		zap.Int64("mentor_id", p.MentorID),
		zap.Int("stage", p.Stage),
	)
	return once(ctx, h.deduper, "approval_notify", notify.ApprovalEventKey(*p), log, func() error {
		return h.notifier.ApprovalRecorded(ctx, *p)
	})
}
