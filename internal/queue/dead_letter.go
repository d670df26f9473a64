package queue

import (
	"context"
	"fmt"

	"rezoning/internal/model"
)

// PushToDeadLetter quarantines msg with errorText. It does not touch the live
// queue; callers pop the message before deciding its fate.
func (q *Queue[T]) PushToDeadLetter(ctx context.Context, msg Message[T], errorText string) (int64, error) {
	payload, err := q.encode(msg.Payload)
	if err != nil {
		return 0, err
	}
	createdAt := msg.CreatedAt
	if createdAt.IsZero() {
		createdAt = q.Now()
	}
	id, err := q.dead.Create(ctx, &model.DeadLetterMessage{
		QueueMessage: model.QueueMessage{
			QueueName:   q.name,
			Payload:     payload,
			Attempts:    msg.Attempts,
			CreatedAt:   createdAt,
			LastAttempt: msg.LastAttempt,
		},
		MovedAt:   q.Now(),
		ErrorText: errorText,
	})
	if err != nil {
		return 0, fmt.Errorf("dead-lettering message from queue %s: %w", q.name, err)
	}
	return id, nil
}

// PopFromDeadLetter removes and returns the oldest dead letter. A dead letter
// whose payload cannot be decoded is left in place and reported as
// ErrSerialization.
func (q *Queue[T]) PopFromDeadLetter(ctx context.Context) (DeadLetter[T], bool, error) {
	var (
		payload   T
		decodeErr error
	)
	accept := func(row model.DeadLetterMessage) error {
		payload, decodeErr = q.codec.Decode(row.Payload)
		return decodeErr
	}

	row, ok, err := q.dead.Dequeue(ctx, q.name, accept)
	if decodeErr != nil {
		return DeadLetter[T]{}, false, fmt.Errorf("%w: %w", ErrSerialization, err)
	}
	if err != nil {
		return DeadLetter[T]{}, false, fmt.Errorf("popping dead letter from queue %s: %w", q.name, err)
	}
	if !ok {
		return DeadLetter[T]{}, false, nil
	}
	return DeadLetter[T]{
		Message:   messageFromRow(row.QueueMessage, payload),
		MovedAt:   row.MovedAt,
		ErrorText: row.ErrorText,
	}, true, nil
}

func (q *Queue[T]) DeadLetterDepth(ctx context.Context) (int64, error) {
	n, err := q.dead.Count(ctx, q.name)
	if err != nil {
		return 0, fmt.Errorf("reading dead-letter depth of queue %s: %w", q.name, err)
	}
	return n, nil
}

// PurgeDeadLetters deletes every dead letter of this queue and returns how many were removed.
func (q *Queue[T]) PurgeDeadLetters(ctx context.Context) (int64, error) {
	n, err := q.dead.Purge(ctx, q.name)
	if err != nil {
		return 0, fmt.Errorf("purging dead letters of queue %s: %w", q.name, err)
	}
	return n, nil
}

// Redrive moves up to limit dead letters back to the tail of the live queue
// with attempts reset. limit <= 0 moves all of them.
func (q *Queue[T]) Redrive(ctx context.Context, limit int) (int, error) {
	n, err := q.dead.Redrive(ctx, q.name, limit)
	if err != nil {
		return 0, fmt.Errorf("redriving dead letters of queue %s: %w", q.name, err)
	}
	return n, nil
}

// ListDeadLetters returns up to limit dead letters, oldest first, without removing them.
func (q *Queue[T]) ListDeadLetters(ctx context.Context, limit int) ([]DeadLetter[T], error) {
	rows, err := q.dead.List(ctx, q.name, limit)
	if err != nil {
		return nil, fmt.Errorf("listing dead letters of queue %s: %w", q.name, err)
	}
	letters := make([]DeadLetter[T], 0, len(rows))
	for _, row := range rows {
		payload, err := q.codec.Decode(row.Payload)
		if err != nil {
			return nil, fmt.Errorf("%w: dead letter %d: %w", ErrSerialization, row.ID, err)
		}
		letters = append(letters, DeadLetter[T]{
			Message:   messageFromRow(row.QueueMessage, payload),
			MovedAt:   row.MovedAt,
			ErrorText: row.ErrorText,
		})
	}
	return letters, nil
}
