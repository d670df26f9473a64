package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rezoning/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type postgresQueueRepo struct {
	pool *pgxpool.Pool
}

// NewPostgresQueueRepo returns a QueueRepository backed by a pgx pool.
func NewPostgresQueueRepo(pool *pgxpool.Pool) QueueRepository {
	return &postgresQueueRepo{pool: pool}
}

func (r *postgresQueueRepo) Enqueue(ctx context.Context, msg *model.QueueMessage) (int64, error) {
	const q = `
		INSERT INTO Queue (queue_name, payload, attempts, created_at, last_attempt)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	var id int64
	err := r.pool.QueryRow(ctx, q,
		msg.QueueName,
		string(msg.Payload),
		msg.Attempts,
		msg.CreatedAt.Unix(),
		unixOrNil(msg.LastAttempt),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("inserting message into queue %s: %w", msg.QueueName, err)
	}
	return id, nil
}

func (r *postgresQueueRepo) EnqueueBatch(ctx context.Context, msgs []*model.QueueMessage) ([]int64, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("starting batch enqueue: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	const q = `
		INSERT INTO Queue (queue_name, payload, attempts, created_at, last_attempt)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	batch := &pgx.Batch{}
	for _, msg := range msgs {
		batch.Queue(q,
			msg.QueueName,
			string(msg.Payload),
			msg.Attempts,
			msg.CreatedAt.Unix(),
			unixOrNil(msg.LastAttempt),
		)
	}

	results := tx.SendBatch(ctx, batch)
	ids := make([]int64, len(msgs))
	for i, msg := range msgs {
		if err := results.QueryRow().Scan(&ids[i]); err != nil {
			_ = results.Close()
			return nil, fmt.Errorf("inserting message into queue %s: %w", msg.QueueName, err)
		}
	}
	if err := results.Close(); err != nil {
		return nil, fmt.Errorf("closing batch enqueue: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing batch enqueue: %w", err)
	}
	return ids, nil
}

// Dequeue locks the head row with FOR UPDATE SKIP LOCKED, so concurrent
// consumers each take a different row and no row is delivered twice.
func (r *postgresQueueRepo) Dequeue(ctx context.Context, queueName string, now time.Time, accept AcceptFunc[model.QueueMessage]) (model.QueueMessage, bool, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return model.QueueMessage{}, false, fmt.Errorf("starting dequeue transaction for %s: %w", queueName, err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	const selectQ = `
		SELECT id, queue_name, payload, attempts, created_at, last_attempt
		FROM Queue
		WHERE queue_name = $1
		ORDER BY id ASC
		LIMIT 1
		FOR UPDATE SKIP LOCKED
	`
	msg, err := scanPostgresMessage(tx.QueryRow(ctx, selectQ, queueName))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.QueueMessage{}, false, nil
	}
	if err != nil {
		return model.QueueMessage{}, false, fmt.Errorf("selecting head of queue %s: %w", queueName, err)
	}

	if accept != nil {
		if acceptErr := accept(msg); acceptErr != nil {
			const moveQ = `
				INSERT INTO DeadLetterQueue (queue_name, payload, attempts, created_at, last_attempt, moved_at, error_text)
				SELECT queue_name, payload, attempts, created_at, last_attempt, $1, $2
				FROM Queue
				WHERE id = $3
			`
			if _, err := tx.Exec(ctx, moveQ, now.Unix(), acceptErr.Error(), msg.ID); err != nil {
				return model.QueueMessage{}, false, fmt.Errorf("dead-lettering rejected message %d: %w", msg.ID, err)
			}
			if err := postgresDeleteMessage(ctx, tx, queueName, msg.ID); err != nil {
				return model.QueueMessage{}, false, err
			}
			if err := tx.Commit(ctx); err != nil {
				return model.QueueMessage{}, false, fmt.Errorf("committing rejection of message %d: %w", msg.ID, err)
			}
			return msg, false, fmt.Errorf("%w: message %d in %s: %w", ErrRejected, msg.ID, queueName, acceptErr)
		}
	}

	if err := postgresDeleteMessage(ctx, tx, queueName, msg.ID); err != nil {
		return model.QueueMessage{}, false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return model.QueueMessage{}, false, fmt.Errorf("committing dequeue from %s: %w", queueName, err)
	}
	return msg, true, nil
}

func (r *postgresQueueRepo) Count(ctx context.Context, queueName string) (int64, error) {
	var count int64
	const q = `SELECT COUNT(*) FROM Queue WHERE queue_name = $1`
	if err := r.pool.QueryRow(ctx, q, queueName).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting messages in queue %s: %w", queueName, err)
	}
	return count, nil
}

func (r *postgresQueueRepo) Delete(ctx context.Context, queueName string, id int64) error {
	const q = `DELETE FROM Queue WHERE id = $1 AND queue_name = $2`
	if _, err := r.pool.Exec(ctx, q, id, queueName); err != nil {
		return fmt.Errorf("deleting message %d from queue %s: %w", id, queueName, err)
	}
	return nil
}

func postgresDeleteMessage(ctx context.Context, tx pgx.Tx, queueName string, id int64) error {
	const q = `DELETE FROM Queue WHERE id = $1 AND queue_name = $2`
	if _, err := tx.Exec(ctx, q, id, queueName); err != nil {
		return fmt.Errorf("deleting message %d from queue %s: %w", id, queueName, err)
	}
	return nil
}

func scanPostgresMessage(row pgx.Row) (model.QueueMessage, error) {
	var (
		msg         model.QueueMessage
		payload     string
		createdAt   int64
		lastAttempt *int64
	)
	if err := row.Scan(&msg.ID, &msg.QueueName, &payload, &msg.Attempts, &createdAt, &lastAttempt); err != nil {
		return model.QueueMessage{}, err
	}
	msg.Payload = []byte(payload)
	msg.CreatedAt = fromUnix(createdAt)
	msg.LastAttempt = fromNullableUnix(lastAttempt)
	return msg, nil
}
