package repository

import (
	"context"
	"time"

	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/internal/model"
	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/pkg/otel"
)

type ProjectRepository struct {
	db Querier
}

func NewProjectRepository(db Querier) *ProjectRepository {
	return &ProjectRepository{db: db}
}

const selectProject = `
	SELECT id, name, lead_email, current_stage, current_percentage, status,
	       completion_date, created_at, updated_at
	FROM projects
	WHERE id = $1
`

func (r *ProjectRepository) get(ctx context.Context, op, query string, projectID int64) (*model.Project, error) {
	var p model.Project
	err := otel.DBOp(ctx, op, func(ctx context.Context) error {
		return r.db.QueryRow(ctx, query, projectID).Scan(
			&p.ID,
			&p.Name,
			&p.LeadEmail,
			&p.CurrentStage,
			&p.CurrentPercentage,
			&p.Status,
			&p.CompletionDate,
			&p.CreatedAt,
			&p.UpdatedAt,
		)
	})
	if err != nil {
		return nil, notFoundOr(err, "project %d", projectID)
	}
	return &p, nil
}

func (r *ProjectRepository) Get(ctx context.Context, projectID int64) (*model.Project, error) {
	return r.get(ctx, "projects.get", selectProject, projectID)
}

// GetForUpdate 行锁保持到事务结束
func (r *ProjectRepository) GetForUpdate(ctx context.Context, projectID int64) (*model.Project, error) {
	return r.get(ctx, "projects.get_for_update", selectProject+" FOR UPDATE", projectID)
}

// UpdatePercentage CAS on current_stage
func (r *ProjectRepository) UpdatePercentage(ctx context.Context, projectID int64, stage, percentage int) (bool, error) {
	var updated bool
	err := otel.DBOp(ctx, "projects.update_percentage", func(ctx context.Context) error {
		tag, err := r.db.Exec(ctx, `
			UPDATE projects
			SET current_percentage = $3, updated_at = NOW()
			WHERE id = $1 AND current_stage = $2
		`, projectID, stage, percentage)
		updated = tag.RowsAffected() == 1
		return err
	})
	if err != nil {
		return false, notFoundOr(err, "update percentage of project %d", projectID)
	}
	return updated, nil
}

// AdvanceStage 条件更新：仅当 current_stage 仍为 fromStage 时 +1
func (r *ProjectRepository) AdvanceStage(ctx context.Context, projectID int64, fromStage int, completed bool, at time.Time) (bool, error) {
	var advanced bool
	err := otel.DBOp(ctx, "projects.advance_stage", func(ctx context.Context) error {
		tag, err := r.db.Exec(ctx, `
			UPDATE projects
			SET current_stage   = current_stage + 1,
			    status          = CASE WHEN $3::boolean THEN 'completed' ELSE status END,
			    completion_date = CASE WHEN $3::boolean THEN COALESCE(completion_date, $4) ELSE completion_date END,
			    updated_at      = $4
			WHERE id = $1 AND current_stage = $2
		`, projectID, fromStage, completed, at)
		advanced = tag.RowsAffected() == 1
		return err
	})
	if err != nil {
		return false, notFoundOr(err, "advance project %d", projectID)
	}
	return advanced, nil
}
