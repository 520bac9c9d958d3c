package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/internal/model"
	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/pkg/otel"
)

// ApprovalRepository mentor_stage_approvals，唯一键 (project_id, mentor_id, current_stage)
type ApprovalRepository struct {
	db Querier
}

func NewApprovalRepository(db Querier) *ApprovalRepository {
	return &ApprovalRepository{db: db}
}

// Upsert 只有插入新行或标志翻转时返回 true
func (r *ApprovalRepository) Upsert(ctx context.Context, projectID, mentorID int64, stage int, approved bool, at time.Time) (bool, error) {
	changed := true
	err := otel.DBOp(ctx, "approvals.upsert", func(ctx context.Context) error {
		var id int64
		err := r.db.QueryRow(ctx, `
			INSERT INTO mentor_stage_approvals
			       (project_id, mentor_id, current_stage, approved_for_next_stage, approval_date)
			VALUES ($1, $2, $3, $4::boolean, CASE WHEN $4::boolean THEN $5::timestamptz END)
			ON CONFLICT (project_id, mentor_id, current_stage) DO UPDATE
			SET approved_for_next_stage = EXCLUDED.approved_for_next_stage,
			    approval_date           = EXCLUDED.approval_date
			WHERE mentor_stage_approvals.approved_for_next_stage IS DISTINCT FROM EXCLUDED.approved_for_next_stage
			RETURNING id
		`, projectID, mentorID, stage, approved, at).Scan(&id)
		if errors.Is(err, pgx.ErrNoRows) {
			changed = false
			return nil
		}
		return err
	})
	if err != nil {
		return false, fmt.Errorf("upsert approval project=%d mentor=%d stage=%d: %w", projectID, mentorID, stage, err)
	}
	return changed, nil
}

func (r *ApprovalRepository) Seed(ctx context.Context, projectID, mentorID int64, stage int) (bool, error) {
	var created bool
	err := otel.DBOp(ctx, "approvals.seed", func(ctx context.Context) error {
		tag, err := r.db.Exec(ctx, `
			INSERT INTO mentor_stage_approvals (project_id, mentor_id, current_stage, approved_for_next_stage)
			VALUES ($1, $2, $3, FALSE)
			ON CONFLICT (project_id, mentor_id, current_stage) DO NOTHING
		`, projectID, mentorID, stage)
		created = tag.RowsAffected() == 1
		return err
	})
	if err != nil {
		return false, fmt.Errorf("seed approval project=%d mentor=%d stage=%d: %w", projectID, mentorID, stage, err)
	}
	return created, nil
}

// CountApproved 只统计当前在册导师的赞成票
func (r *ApprovalRepository) CountApproved(ctx context.Context, projectID int64, stage int) (int, error) {
	var n int
	err := otel.DBOp(ctx, "approvals.count_approved", func(ctx context.Context) error {
		return r.db.QueryRow(ctx, `
			SELECT COUNT(*)
			FROM mentor_stage_approvals a
			JOIN project_mentors pm
			  ON pm.project_id = a.project_id AND pm.mentor_id = a.mentor_id AND pm.is_active
			WHERE a.project_id = $1 AND a.current_stage = $2 AND a.approved_for_next_stage
		`, projectID, stage).Scan(&n)
	})
	if err != nil {
		return 0, fmt.Errorf("count approvals project=%d stage=%d: %w", projectID, stage, err)
	}
	return n, nil
}

func (r *ApprovalRepository) ListByStage(ctx context.Context, projectID int64, stage int) ([]model.MentorStageApproval, error) {
	var out []model.MentorStageApproval
	err := otel.DBOp(ctx, "approvals.list_by_stage", func(ctx context.Context) error {
		rows, err := r.db.Query(ctx, `
			SELECT id, project_id, mentor_id, current_stage, approved_for_next_stage, approval_date
			FROM mentor_stage_approvals
			WHERE project_id = $1 AND current_stage = $2
			ORDER BY mentor_id
		`, projectID, stage)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var a model.MentorStageApproval
			if err := rows.Scan(&a.ID, &a.ProjectID, &a.MentorID, &a.Stage, &a.Approved, &a.ApprovalDate); err != nil {
				return err
			}
			out = append(out, a)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("list approvals project=%d stage=%d: %w", projectID, stage, err)
	}
	return out, nil
}
