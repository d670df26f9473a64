package queue

import "time"

// Message is a unit of work carried by a Queue.
type Message[T any] struct {
	ID          int64
	QueueName   string
	Payload     T
	Attempts    int
	CreatedAt   time.Time
	LastAttempt *time.Time
}

// Retry returns a copy of m ready to be pushed again after a failed attempt.
func (m Message[T]) Retry(now time.Time) Message[T] {
	next := m
	next.ID = 0
	next.Attempts++
	next.LastAttempt = &now
	return next
}

// DeadLetter is a Message quarantined after exhausting its retries.
type DeadLetter[T any] struct {
	Message[T]
	MovedAt   time.Time
	ErrorText string
}
