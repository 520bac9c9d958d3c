package progression

import "time"

type RatingInput struct {
	ProjectID  int64
	MentorID   int64
	Stage      int
	Percentage int
	Notes      string
}

type Snapshot struct {
	Stage      int `json:"stage"`
	Percentage int `json:"percentage"`
}

type RatingResult struct {
	RatingID        int64     `json:"rating_id"`
	Previous        Snapshot  `json:"previous"`
	New             Snapshot  `json:"new"`
	OverallProgress int       `json:"overall_progress"`
	RatedAt         time.Time `json:"rated_at"`
}

type ApprovalInput struct {
	ProjectID int64
	MentorID  int64
	Stage     int
	Approved  bool
}

// ApprovalResult is internal bookkeeping; API callers only see success.
type ApprovalResult struct {
	Changed  bool
	Advanced bool
	NewStage int
}

type ConsensusStatus struct {
	ProjectID        int64 `json:"project_id"`
	CurrentStage     int   `json:"current_stage"`
	TotalMentors     int   `json:"total_mentors"`
	ApprovedMentors  int   `json:"approved_mentors"`
	ConsensusReached bool  `json:"consensus_reached"`

	mentorIDs []int64
}

type AdvanceResult struct {
	Advanced bool `json:"advanced"`
	NewStage int  `json:"new_stage,omitempty"`
}
