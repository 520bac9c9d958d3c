package model

import "time"

const (
	LogLevelInfo    = "info"
	LogLevelWarning = "warning"
	LogLevelError   = "error"
)

const (
	RecipientTypeProject = "project"
	RecipientTypeMentor  = "mentor"
)

type ActivityLog struct {
	ID        int64          `json:"id"`
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Metadata  map[string]any `json:"metadata"`
	CreatedAt time.Time      `json:"created_at"`
}

type Notification struct {
	ID               int64     `json:"id"`
	RecipientType    string    `json:"recipient_type"` // project / mentor
	RecipientID      int64     `json:"recipient_id"`
	Type             string    `json:"type"`
	Title            string    `json:"title"`
	Message          string    `json:"message"`
	RelatedProjectID int64     `json:"related_project_id"`
	EventKey         string    `json:"event_key,omitempty"` // 同一接收者同一事件只落一行
	IsRead           bool      `json:"is_read"`
	CreatedAt        time.Time `json:"created_at"`
}
