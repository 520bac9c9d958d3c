package model

import "time"

// MentorStageApproval 某位导师对项目在某一阶段的推进投票
type MentorStageApproval struct {
	ID           int64      `json:"id"`
	ProjectID    int64      `json:"project_id"`
	MentorID     int64      `json:"mentor_id"`
	Stage        int        `json:"current_stage"`
	Approved     bool       `json:"approved_for_next_stage"`
	ApprovalDate *time.Time `json:"approval_date,omitempty"`
}
