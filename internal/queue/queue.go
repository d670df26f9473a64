// Package queue implements named, FIFO, persistent work queues with a
// dead-letter store. A Queue holds no locks of its own: every dequeue is a
// select-and-delete inside one store transaction, so the store's isolation is
// what keeps two consumers from taking the same message.
package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rezoning/internal/model"
	"rezoning/internal/repository"
)

var (
	// ErrSerialization wraps payload encode and decode failures.
	ErrSerialization = errors.New("queue: payload serialization failed")
	ErrInvalidName   = errors.New("queue: name must not be empty")
	// ErrMixedStores is returned by PushAll for queues backed by different repositories.
	ErrMixedStores   = errors.New("queue: PushAll needs queues sharing one store")
)

type Option[T any] func(*Queue[T])

func WithCodec[T any](c Codec[T]) Option[T] {
	return func(q *Queue[T]) {
		if c != nil {
			q.codec = c
		}
	}
}

func WithClock[T any](now func() time.Time) Option[T] {
	return func(q *Queue[T]) {
		if now != nil {
			q.now = now
		}
	}
}

// Queue is a named mailbox of T values. Many queues with different names can
// share the same repositories.
type Queue[T any] struct {
	name  string
	live  repository.QueueRepository
	dead  repository.DLQRepository
	codec Codec[T]
	now   func() time.Time
}

func New[T any](name string, live repository.QueueRepository, dead repository.DLQRepository, opts ...Option[T]) (*Queue[T], error) {
	if name == "" {
		return nil, ErrInvalidName
	}
	q := &Queue[T]{
		name:  name,
		live:  live,
		dead:  dead,
		codec: JSONCodec[T]{},
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q, nil
}

// NewFromStore is New with both repositories taken from s.
func NewFromStore[T any](name string, s *repository.Store, opts ...Option[T]) (*Queue[T], error) {
	return New(name, s.Queue, s.DLQ, opts...)
}

func (q *Queue[T]) Name() string { return q.name }

// Now returns the queue's clock reading, truncated to the stored resolution.
func (q *Queue[T]) Now() time.Time {
	return q.now().UTC().Truncate(time.Second)
}

// Push enqueues item as a fresh message and returns its id.
func (q *Queue[T]) Push(ctx context.Context, item T) (int64, error) {
	return q.PushMessage(ctx, Message[T]{
		Payload:   item,
		CreatedAt: q.Now(),
	})
}

// PushMessage enqueues a caller-built message, keeping its attempts,
// created_at and last_attempt. The stored message always gets a new id, so a
// retried message lands behind everything already waiting.
func (q *Queue[T]) PushMessage(ctx context.Context, msg Message[T]) (int64, error) {
	payload, err := q.encode(msg.Payload)
	if err != nil {
		return 0, err
	}
	createdAt := msg.CreatedAt
	if createdAt.IsZero() {
		createdAt = q.Now()
	}
	id, err := q.live.Enqueue(ctx, &model.QueueMessage{
		QueueName:   q.name,
		Payload:     payload,
		Attempts:    msg.Attempts,
		CreatedAt:   createdAt,
		LastAttempt: msg.LastAttempt,
	})
	if err != nil {
		return 0, fmt.Errorf("pushing to queue %s: %w", q.name, err)
	}
	return id, nil
}

// PushAll enqueues item on every queue in one store transaction, so either
// all queues receive it or none does. Ids are returned in the order of queues.
func PushAll[T any](ctx context.Context, item T, queues ...*Queue[T]) ([]int64, error) {
	if len(queues) == 0 {
		return nil, nil
	}
	live := queues[0].live
	rows := make([]*model.QueueMessage, 0, len(queues))
	for _, q := range queues {
		if q.live != live {
			return nil, ErrMixedStores
		}
		payload, err := q.encode(item)
		if err != nil {
			return nil, err
		}
		rows = append(rows, &model.QueueMessage{
			QueueName: q.name,
			Payload:   payload,
			CreatedAt: q.Now(),
		})
	}

	ids, err := live.EnqueueBatch(ctx, rows)
	if err != nil {
		return nil, fmt.Errorf("pushing to %d queues: %w", len(queues), err)
	}
	return ids, nil
}

// Pop removes and returns the oldest message. ok is false when the queue is
// empty. A message whose payload cannot be decoded is moved to the dead-letter
// store in the same transaction and reported as ErrSerialization.
func (q *Queue[T]) Pop(ctx context.Context) (Message[T], bool, error) {
	var payload T
	accept := func(row model.QueueMessage) error {
		v, err := q.codec.Decode(row.Payload)
		if err != nil {
			return fmt.Errorf("payload decode: %w", err)
		}
		payload = v
		return nil
	}

	row, ok, err := q.live.Dequeue(ctx, q.name, q.Now(), accept)
	if errors.Is(err, repository.ErrRejected) {
		return Message[T]{}, false, fmt.Errorf("%w: %w", ErrSerialization, err)
	}
	if err != nil {
		return Message[T]{}, false, fmt.Errorf("popping from queue %s: %w", q.name, err)
	}
	if !ok {
		return Message[T]{}, false, nil
	}
	return messageFromRow(row, payload), true, nil
}

// Depth is the number of live messages waiting in the queue.
func (q *Queue[T]) Depth(ctx context.Context) (int64, error) {
	n, err := q.live.Count(ctx, q.name)
	if err != nil {
		return 0, fmt.Errorf("reading depth of queue %s: %w", q.name, err)
	}
	return n, nil
}

// Remove deletes the live message with id from this queue, if present.
func (q *Queue[T]) Remove(ctx context.Context, id int64) error {
	if err := q.live.Delete(ctx, q.name, id); err != nil {
		return fmt.Errorf("removing message %d from queue %s: %w", id, q.name, err)
	}
	return nil
}

func (q *Queue[T]) encode(v T) ([]byte, error) {
	data, err := q.codec.Encode(v)
	if err != nil {
		return nil, fmt.Errorf("%w: payload encode for queue %s: %w", ErrSerialization, q.name, err)
	}
	return data, nil
}

func messageFromRow[T any](row model.QueueMessage, payload T) Message[T] {
	return Message[T]{
		ID:          row.ID,
		QueueName:   row.QueueName,
		Payload:     payload,
		Attempts:    row.Attempts,
		CreatedAt:   row.CreatedAt,
		LastAttempt: row.LastAttempt,
	}
}
