package model

import "time"

// DeadLetterMessage is a quarantined queue message persisted in the DeadLetterQueue table.
type DeadLetterMessage struct {
	QueueMessage
	MovedAt   time.Time `db:"moved_at" json:"moved_at"`
	ErrorText string    `db:"error_text" json:"error_text"`
}
