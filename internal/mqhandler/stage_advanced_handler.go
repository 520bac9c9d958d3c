package mqhandler

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	mqcontracts "github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/contracts/mq"
	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/internal/service/notify"
	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/pkg/logger"
)

// StageAdvancedHandler notifies the project lead after a stage transition.
type StageAdvancedHandler struct {
	notifier *notify.Notifier
	deduper  Deduper
	logger   *zap.Logger
}

func NewStageAdvancedHandler(notifier *notify.Notifier, deduper Deduper, logger *zap.Logger) *StageAdvancedHandler {
	return &StageAdvancedHandler{notifier: notifier, deduper: deduper, logger: logger}
}

func (h *StageAdvancedHandler) Handle(ctx context.Context, raw json.RawMessage) error {
	ctx, p, err := decode(ctx, raw, func(p *mqcontracts.StageAdvancedPayload) string { return p.TraceID })
	if err != nil {
		h.logger.Error("Invalid StageAdvancedPayload", zap.Error(err))
		return err
	}

	log := logger.WithTrace(ctx, h.logger).With(
		zap.Int64("project_id", p.ProjectID),
		zap.Int("new_stage", p.NewStage),
	)
	// 每个项目每个阶段只会推进一次
	return once(ctx, h.deduper, "stage_notify", notify.StageEventKey(*p), log, func() error {
		return h.notifier.StageAdvanced(ctx, *p)
	})
}
