package repository

import (
	"context"
	"fmt"

	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/internal/model"
	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/pkg/otel"
)

// RatingRepository ratings 表只追加
type RatingRepository struct {
	db Querier
}

func NewRatingRepository(db Querier) *RatingRepository {
	return &RatingRepository{db: db}
}

func (r *RatingRepository) Insert(ctx context.Context, rating *model.Rating) error {
	err := otel.DBOp(ctx, "ratings.insert", func(ctx context.Context) error {
		return r.db.QueryRow(ctx, `
			INSERT INTO ratings (project_id, mentor_id, stage, percentage,
			                     previous_stage, previous_percentage, rated_at, notes)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING id
		`,
			rating.ProjectID,
			rating.MentorID,
			rating.Stage,
			rating.Percentage,
			rating.PreviousStage,
			rating.PreviousPercentage,
			rating.RatedAt,
			rating.Notes,
		).Scan(&rating.ID)
	})
	if err != nil {
		return fmt.Errorf("insert rating for project %d: %w", rating.ProjectID, err)
	}
	return nil
}

// ListByProject newest first, ordered by id
func (r *RatingRepository) ListByProject(ctx context.Context, projectID int64, limit int) ([]model.Rating, error) {
	var out []model.Rating
	err := otel.DBOp(ctx, "ratings.list_by_project", func(ctx context.Context) error {
		rows, err := r.db.Query(ctx, `
			SELECT id, project_id, mentor_id, stage, percentage,
			       previous_stage, previous_percentage, rated_at, notes
			FROM ratings
			WHERE project_id = $1
			ORDER BY id DESC
			LIMIT $2
		`, projectID, limit)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var rt model.Rating
			if err := rows.Scan(
				&rt.ID,
				&rt.ProjectID,
				&rt.MentorID,
				&rt.Stage,
				&rt.Percentage,
				&rt.PreviousStage,
				&rt.PreviousPercentage,
				&rt.RatedAt,
				&rt.Notes,
			); err != nil {
				return err
			}
			out = append(out, rt)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("list ratings of project %d: %w", projectID, err)
	}
	return out, nil
}
