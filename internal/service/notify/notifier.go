package notify

import (
	"context"
	"errors"
	"fmt"

	mqcontracts "github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/contracts/mq"
	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/internal/model"
	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/internal/progress"
	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/pkg/logger"
	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/pkg/metrics"

	"go.uber.org/zap"
)

const (
	TypeMentorApproval = "mentor_approval"
	TypeStageAdvanced  = "stage_advanced"
	TypeProjectDone    = "project_completed"
)

// NotificationSink 站内通知存储；同一接收者重复的 EventKey 返回 false
type NotificationSink interface {
	Create(ctx context.Context, n *model.Notification) (bool, error)
}

type EmailSink interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Directory 导师联系方式
type Directory interface {
	MentorsByIDs(ctx context.Context, ids []int64) ([]model.Mentor, error)
}

// Notifier turns progression events into in-app notifications and emails.
// In-app notification failures are returned so the consumer can retry; email
// failures are logged and counted only. Every notification carries the event key,
// so a redelivered event only reaches recipients that were missed before, and
// the email goes out only alongside a newly created notification.
type Notifier struct {
	notifications NotificationSink
	email         EmailSink
	directory     Directory
	catalog       *progress.Catalog
	logger        *zap.Logger
}

func NewNotifier(notifications NotificationSink, email EmailSink, directory Directory, catalog *progress.Catalog, logger *zap.Logger) *Notifier {
	if catalog == nil {
		catalog = progress.DefaultCatalog()
	}
	return &Notifier{
		notifications: notifications,
		email:         email,
		directory:     directory,
		catalog:       catalog,
		logger:        logger,
	}
}

// ApprovalRecorded 通知其他导师：某位导师已批准当前阶段
func (n *Notifier) ApprovalRecorded(ctx context.Context, p mqcontracts.ApprovalRecordedPayload) error {
	log := logger.WithTrace(ctx, n.logger).With(
		zap.Int64("project_id", p.ProjectID),
		zap.Int64("mentor_id", p.MentorID),
		zap.Int("stage", p.Stage),
	)
	if len(p.RecipientMentorIDs) == 0 {
		log.Debug("No other mentors to notify")
		return nil
	}

	ids := append(append([]int64(nil), p.RecipientMentorIDs...), p.MentorID)
	mentors, err := n.directory.MentorsByIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("load mentors: %w", err)
	}
	approver := fmt.Sprintf("Mentor #%d", p.MentorID)
	for _, m := range mentors {
		if m.ID == p.MentorID && m.Name != "" {
			approver = m.Name
		}
	}

	stageName := n.catalog.Name(p.Stage)
	title := "Stage approval recorded"
	message := fmt.Sprintf("%s approved %s to move on from stage %d (%s).", approver, projectLabel(p.ProjectName, p.ProjectID), p.Stage, stageName)

	key := ApprovalEventKey(p)
	var errs []error
	sent := 0
	for _, m := range mentors {
		if m.ID == p.MentorID {
			continue
		}
		created, err := n.create(ctx, model.RecipientTypeMentor, m.ID, TypeMentorApproval, title, message, p.ProjectID, key)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !created {
			log.Debug("Approval notification already delivered", zap.Int64("recipient_id", m.ID))
			continue
		}
		sent++
		n.sendEmail(ctx, log, m.Email, title+": "+projectLabel(p.ProjectName, p.ProjectID), message)
	}
	if len(errs) > 0 {
		log.Warn("Approval fan-out incomplete", zap.Int("sent", sent), zap.Int("failed", len(errs)))
		return errors.Join(errs...)
	}

	log.Info("Approval notifications sent", zap.Int("recipients", len(p.RecipientMentorIDs)), zap.Int("new", sent))
	return nil
}

// StageAdvanced 通知项目团队阶段推进
func (n *Notifier) StageAdvanced(ctx context.Context, p mqcontracts.StageAdvancedPayload) error {
	log := logger.WithTrace(ctx, n.logger).With(
		zap.Int64("project_id", p.ProjectID),
		zap.Int("old_stage", p.OldStage),
		zap.Int("new_stage", p.NewStage),
	)

	title, message, kind := stageMessage(n.catalog, p)
	created, err := n.create(ctx, model.RecipientTypeProject, p.ProjectID, kind, title, message, p.ProjectID, StageEventKey(p))
	if err != nil {
		return err
	}
	if !created {
		log.Debug("Stage notification already delivered")
		return nil
	}
	n.sendEmail(ctx, log, p.LeadEmail, title, message)

	log.Info("Stage advancement notification sent")
	return nil
}

func stageMessage(catalog *progress.Catalog, p mqcontracts.StageAdvancedPayload) (title, message, kind string) {
	label := projectLabel(p.ProjectName, p.ProjectID)
	if p.Status == model.ProjectStatusCompleted {
		return "Project completed",
			fmt.Sprintf("Congratulations! %s has reached the final stage (%s) with approval from %d of %d mentors.",
				label, catalog.Name(p.NewStage), p.ApprovedMentors, p.TotalMentors),
			TypeProjectDone
	}
	return fmt.Sprintf("Advanced to stage %d", p.NewStage),
		fmt.Sprintf("%s has advanced from stage %d (%s) to stage %d (%s) after all %d mentors approved.",
			label, p.OldStage, catalog.Name(p.OldStage), p.NewStage, catalog.Name(p.NewStage), p.TotalMentors),
		TypeStageAdvanced
}

func projectLabel(name string, id int64) string {
	if name == "" {
		return fmt.Sprintf("project #%d", id)
	}
	return fmt.Sprintf("%q", name)
}

// ApprovalEventKey 标识一次批准事件
func ApprovalEventKey(p mqcontracts.ApprovalRecordedPayload) string {
	return fmt.Sprintf("approval:%d:%d:%d:%d", p.ProjectID, p.MentorID, p.Stage, p.ApprovedAt.UnixNano())
}

// StageEventKey 标识一次阶段推进
func StageEventKey(p mqcontracts.StageAdvancedPayload) string {
	return fmt.Sprintf("stage:%d:%d", p.ProjectID, p.NewStage)
}

func (n *Notifier) create(ctx context.Context, recipientType string, recipientID int64, kind, title, message string, projectID int64, eventKey string) (bool, error) {
	created, err := n.notifications.Create(ctx, &model.Notification{
		RecipientType:    recipientType,
		RecipientID:      recipientID,
		Type:             kind,
		Title:            title,
		Message:          message,
		RelatedProjectID: projectID,
		EventKey:         eventKey,
	})
	if err != nil {
		metrics.IncrementNotification("in_app", "error")
		return false, fmt.Errorf("create %s notification for %s %d: %w", kind, recipientType, recipientID, err)
	}
	if !created {
		metrics.IncrementNotification("in_app", "duplicate")
		return false, nil
	}
	metrics.IncrementNotification("in_app", "sent")
	return true, nil
}

func (n *Notifier) sendEmail(ctx context.Context, log *zap.Logger, to, subject, body string) {
	if n.email == nil || to == "" {
		return
	}
	if err := n.email.Send(ctx, to, subject, body); err != nil {
		metrics.IncrementNotification("email", "error")
		metrics.IncrementDependencyFailure("email")
		log.Warn("Failed to send email (ignored)", zap.String("to", to), zap.Error(err))
		return
	}
	metrics.IncrementNotification("email", "sent")
}
