package model

import "time"

// Rating is one immutable progress assessment. Rows are never updated or deleted;
// ordering between rows of the same project uses ID, not RatedAt.
type Rating struct {
	ID                 int64     `json:"id"`
	ProjectID          int64     `json:"project_id"`
	MentorID           int64     `json:"mentor_id"`
	Stage              int       `json:"stage"`
	Percentage         int       `json:"percentage"`
	PreviousStage      int       `json:"previous_stage"`
	PreviousPercentage int       `json:"previous_percentage"`
	RatedAt            time.Time `json:"rated_at"`
	Notes              string    `json:"notes"`
}
