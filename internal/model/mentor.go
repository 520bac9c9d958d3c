package model

import "time"

type Mentor struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// ProjectMentor is a roster row. The roster itself is owned by the admin screens;
// the engine only reads it.
type ProjectMentor struct {
	ProjectID  int64     `json:"project_id"`
	MentorID   int64     `json:"mentor_id"`
	IsActive   bool      `json:"is_active"`
	AssignedAt time.Time `json:"assigned_at"`
}
