package progression

import (
	"context"
	"errors"
	"time"

	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/internal/model"
)

// ErrRecordNotFound is returned (wrapped) by stores when a row does not exist.
var ErrRecordNotFound = errors.New("record not found")

type ProjectStore interface {
	Get(ctx context.Context, projectID int64) (*model.Project, error)
	// GetForUpdate reads the project and holds an exclusive row lock until the
	// surrounding transaction ends.
	GetForUpdate(ctx context.Context, projectID int64) (*model.Project, error)
	// UpdatePercentage sets current_percentage only while current_stage still equals stage.
	UpdatePercentage(ctx context.Context, projectID int64, stage, percentage int) (bool, error)
	// AdvanceStage moves current_stage from fromStage to fromStage+1. It reports false
	// when the row was not at fromStage.
	AdvanceStage(ctx context.Context, projectID int64, fromStage int, completed bool, at time.Time) (bool, error)
}

type RatingStore interface {
	Insert(ctx context.Context, r *model.Rating) error
	ListByProject(ctx context.Context, projectID int64, limit int) ([]model.Rating, error)
}

type ApprovalStore interface {
	// Upsert stores the flag for (project, mentor, stage) and reports whether the
	// stored state changed.
	Upsert(ctx context.Context, projectID, mentorID int64, stage int, approved bool, at time.Time) (bool, error)
	// Seed creates a not-approved row when none exists and reports whether it did.
	Seed(ctx context.Context, projectID, mentorID int64, stage int) (bool, error)
	// CountApproved counts approved rows at stage belonging to active mentors.
	CountApproved(ctx context.Context, projectID int64, stage int) (int, error)
	ListByStage(ctx context.Context, projectID int64, stage int) ([]model.MentorStageApproval, error)
}

// MentorRoster 只读的导师分配名单
type MentorRoster interface {
	ActiveMentorIDs(ctx context.Context, projectID int64) ([]int64, error)
	IsActive(ctx context.Context, projectID, mentorID int64) (bool, error)
}

// EventWriter records an event in the same transaction as the state change;
// delivery happens after commit.
type EventWriter interface {
	Enqueue(ctx context.Context, aggregateType string, aggregateID int64, routingKey string, payload any) error
}

type Tx interface {
	Projects() ProjectStore
	Ratings() RatingStore
	Approvals() ApprovalStore
	Roster() MentorRoster
	Events() EventWriter
}

type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

type ActivityLogSink interface {
	Append(ctx context.Context, level, message string, metadata map[string]any) error
}
