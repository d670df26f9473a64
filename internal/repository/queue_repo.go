package repository

import (
	"context"
	"errors"
	"time"

	"rezoning/internal/model"
)

// ErrRejected is returned by QueueRepository.Dequeue when the accept callback
// refused the head message. The message has already been moved to the
// dead-letter table in the same transaction.
var ErrRejected = errors.New("message rejected and dead-lettered")

// AcceptFunc inspects a message inside the dequeue transaction, before it is
// removed. Returning an error aborts normal delivery of that message.
type AcceptFunc[M any] func(M) error

// QueueRepository persists live queue messages.
type QueueRepository interface {
	// Enqueue inserts msg and returns the id assigned by the store.
	Enqueue(ctx context.Context, msg *model.QueueMessage) (int64, error)
	// EnqueueBatch inserts every message in one transaction, returning ids in
	// input order. Either all messages are stored or none is.
	EnqueueBatch(ctx context.Context, msgs []*model.QueueMessage) ([]int64, error)
	// Dequeue removes and returns the lowest-id message of queueName in a single
	// transaction. ok is false when the queue is empty. A message refused by
	// accept is dead-lettered with moved_at set to now.
	Dequeue(ctx context.Context, queueName string, now time.Time, accept AcceptFunc[model.QueueMessage]) (msg model.QueueMessage, ok bool, err error)
	Count(ctx context.Context, queueName string) (int64, error)
	// Delete removes the message with id from queueName. Missing ids are not an error.
	Delete(ctx context.Context, queueName string, id int64) error
}

// DLQRepository persists messages that exhausted their retries.
type DLQRepository interface {
	Create(ctx context.Context, msg *model.DeadLetterMessage) (int64, error)
	// Dequeue removes and returns the oldest dead letter of queueName. If accept
	// fails the transaction is rolled back and the dead letter stays put.
	Dequeue(ctx context.Context, queueName string, accept AcceptFunc[model.DeadLetterMessage]) (msg model.DeadLetterMessage, ok bool, err error)
	Count(ctx context.Context, queueName string) (int64, error)
	// List returns up to limit dead letters, oldest first, without removing them.
	List(ctx context.Context, queueName string, limit int) ([]model.DeadLetterMessage, error)
	Purge(ctx context.Context, queueName string) (int64, error)
	// Redrive moves up to limit dead letters back onto the live queue in one
	// transaction, resetting attempts. limit <= 0 moves all of them.
	Redrive(ctx context.Context, queueName string, limit int) (int, error)
}

func unixOrNil(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Unix()
}

func fromUnix(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}

func fromNullableUnix(sec *int64) *time.Time {
	if sec == nil {
		return nil
	}
	t := fromUnix(*sec)
	return &t
}

func redriveLimit(limit int) int {
	if limit <= 0 {
		return 1<<31 - 1
	}
	return limit
}
