package dto

import (
	"encoding/json"
	"time"
)

const (
	ProjectStatusQueued    = "queued"
	ProjectStatusUnchanged = "unchanged"
)

// ProjectEnqueueResponse is returned for a submitted project. MessageID is
// only set when the project was queued for summarizing.
type ProjectEnqueueResponse struct {
	Status    string `json:"status"`
	MessageID int64  `json:"message_id,omitempty"`
	Queue     string `json:"queue"`
}

type RedriveRequest struct {
	Limit int `json:"limit" validate:"gte=0,lte=10000"`
}

type RedriveResponse struct {
	Moved int `json:"moved"`
}

type PurgeResponse struct {
	Purged int64 `json:"purged"`
}

type DeadLetterDTO struct {
	ID          int64           `json:"id"`
	QueueName   string          `json:"queue_name"`
	Payload     json.RawMessage `json:"payload"`
	Attempts    int             `json:"attempts"`
	CreatedAt   time.Time       `json:"created_at"`
	LastAttempt *time.Time      `json:"last_attempt,omitempty"`
	MovedAt     time.Time       `json:"moved_at"`
	ErrorText   string          `json:"error_text"`
}

type DeadLetterListResponse struct {
	Queue       string          `json:"queue"`
	DeadLetters []DeadLetterDTO `json:"dead_letters"`
}
