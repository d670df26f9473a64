package model

import "time"

// QueueMessage is a row of the Queue table. Payload is the serialized form of
// whatever the owning queue carries; repositories never look inside it.
type QueueMessage struct {
	ID          int64      `db:"id" json:"id"`
	QueueName   string     `db:"queue_name" json:"queue_name"`
	Payload     []byte     `db:"payload" json:"-"`
	Attempts    int        `db:"attempts" json:"attempts"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	LastAttempt *time.Time `db:"last_attempt" json:"last_attempt,omitempty"`
}

