package mq

import "time"

// Routing keys
const (
	RoutingRatingRecorded   = "rating.recorded"
	RoutingApprovalRecorded = "approval.recorded"
	RoutingStageAdvanced    = "project.stage_advanced"
	RoutingMentorAssigned   = "mentor.assigned"
)

// Aggregate types stored with outbox rows
const (
	AggregateProject = "project"
	AggregateRating  = "rating"
)

type RatingRecordedPayload struct {
	RatingID           int64     `json:"rating_id"`
	ProjectID          int64     `json:"project_id"`
	MentorID           int64     `json:"mentor_id"`
	Stage              int       `json:"stage"`
	Percentage         int       `json:"percentage"`
	PreviousStage      int       `json:"previous_stage"`
	PreviousPercentage int       `json:"previous_percentage"`
	OverallProgress    int       `json:"overall_progress"`
	RatedAt            time.Time `json:"rated_at"`
	TraceID            string    `json:"trace_id,omitempty"`
}

// ApprovalRecordedPayload 导师新增批准时发出，RecipientMentorIDs 为投票时其他在岗导师快照
type ApprovalRecordedPayload struct {
	ProjectID          int64     `json:"project_id"`
	ProjectName        string    `json:"project_name"`
	MentorID           int64     `json:"mentor_id"`
	Stage              int       `json:"stage"`
	RecipientMentorIDs []int64   `json:"recipient_mentor_ids"`
	ApprovedAt         time.Time `json:"approved_at"`
	TraceID            string    `json:"trace_id,omitempty"`
}

type StageAdvancedPayload struct {
	ProjectID       int64     `json:"project_id"`
	ProjectName     string    `json:"project_name"`
	LeadEmail       string    `json:"lead_email"`
	OldStage        int       `json:"old_stage"`
	NewStage        int       `json:"new_stage"`
	Status          string    `json:"status"`
	ApprovedMentors int       `json:"approved_mentors"`
	TotalMentors    int       `json:"total_mentors"`
	AdvancedAt      time.Time `json:"advanced_at"`
	TraceID         string    `json:"trace_id,omitempty"`
}

// MentorAssignedPayload is published by the admin screens when a mentor joins a project.
type MentorAssignedPayload struct {
	ProjectID int64  `json:"project_id"`
	MentorID  int64  `json:"mentor_id"`
	TraceID   string `json:"trace_id,omitempty"`
}
