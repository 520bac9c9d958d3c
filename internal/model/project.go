package model

import "time"

const (
	MinStage = 1
	MaxStage = 6

	MinPercentage = 0
	MaxPercentage = 100
)

const (
	ProjectStatusActive     = "active"
	ProjectStatusCompleted  = "completed"
	ProjectStatusTerminated = "terminated"
)

type Project struct {
	ID                int64      `json:"id"`
	Name              string     `json:"name"`
	LeadEmail         string     `json:"lead_email"`
	CurrentStage      int        `json:"current_stage"`
	CurrentPercentage int        `json:"current_percentage"`
	Status            string     `json:"status"` // active / completed / terminated
	CompletionDate    *time.Time `json:"completion_date,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// IsTerminated 项目已终止，不再接受评分、投票或阶段推进
func (p *Project) IsTerminated() bool {
	return p.Status == ProjectStatusTerminated
}

// IsCompleted 项目已到达最后阶段
func (p *Project) IsCompleted() bool {
	return p.Status == ProjectStatusCompleted
}

// ValidStage reports whether stage is inside the fixed pipeline.
func ValidStage(stage int) bool {
	return stage >= MinStage && stage <= MaxStage
}

// ValidPercentage reports whether pct is a legal in-stage percentage.
func ValidPercentage(pct int) bool {
	return pct >= MinPercentage && pct <= MaxPercentage
}
