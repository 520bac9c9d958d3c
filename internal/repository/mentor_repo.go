package repository

import (
	"context"
	"fmt"

	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/internal/model"
	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/pkg/otel"
)

// MentorRepository 只读：导师名单与联系方式
type MentorRepository struct {
	db Querier
}

func NewMentorRepository(db Querier) *MentorRepository {
	return &MentorRepository{db: db}
}

func (r *MentorRepository) ActiveMentorIDs(ctx context.Context, projectID int64) ([]int64, error) {
	var ids []int64
	err := otel.DBOp(ctx, "project_mentors.active_ids", func(ctx context.Context) error {
		rows, err := r.db.Query(ctx, `
			SELECT mentor_id
			FROM project_mentors
			WHERE project_id = $1 AND is_active
			ORDER BY mentor_id
		`, projectID)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("active mentors of project %d: %w", projectID, err)
	}
	return ids, nil
}

func (r *MentorRepository) IsActive(ctx context.Context, projectID, mentorID int64) (bool, error) {
	var active bool
	err := otel.DBOp(ctx, "project_mentors.is_active", func(ctx context.Context) error {
		return r.db.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM project_mentors
				WHERE project_id = $1 AND mentor_id = $2 AND is_active
			)
		`, projectID, mentorID).Scan(&active)
	})
	if err != nil {
		return false, fmt.Errorf("mentor %d on project %d: %w", mentorID, projectID, err)
	}
	return active, nil
}

// MentorsByIDs 用于通知发送，忽略不存在的 ID
func (r *MentorRepository) MentorsByIDs(ctx context.Context, ids []int64) ([]model.Mentor, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var out []model.Mentor
	err := otel.DBOp(ctx, "mentors.by_ids", func(ctx context.Context) error {
		rows, err := r.db.Query(ctx, `
			SELECT id, name, email FROM mentors WHERE id = ANY($1) ORDER BY id
		`, ids)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var m model.Mentor
			if err := rows.Scan(&m.ID, &m.Name, &m.Email); err != nil {
				return err
			}
			out = append(out, m)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("load mentors: %w", err)
	}
	return out, nil
}
