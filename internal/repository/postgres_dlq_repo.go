package repository

import (
	"context"
	"errors"
	"fmt"

	"rezoning/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type postgresDLQRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresDLQRepo(pool *pgxpool.Pool) DLQRepository {
	return &postgresDLQRepo{pool: pool}
}

const postgresDeadLetterColumns = `id, queue_name, payload, attempts, created_at, last_attempt, moved_at, error_text`

func (r *postgresDLQRepo) Create(ctx context.Context, msg *model.DeadLetterMessage) (int64, error) {
	const q = `
		INSERT INTO DeadLetterQueue (queue_name, payload, attempts, created_at, last_attempt, moved_at, error_text)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	var id int64
	err := r.pool.QueryRow(ctx, q,
		msg.QueueName,
		string(msg.Payload),
		msg.Attempts,
		msg.CreatedAt.Unix(),
		unixOrNil(msg.LastAttempt),
		msg.MovedAt.Unix(),
		msg.ErrorText,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("creating dead letter for queue %s: %w", msg.QueueName, err)
	}
	return id, nil
}

func (r *postgresDLQRepo) Dequeue(ctx context.Context, queueName string, accept AcceptFunc[model.DeadLetterMessage]) (model.DeadLetterMessage, bool, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return model.DeadLetterMessage{}, false, fmt.Errorf("starting dead-letter dequeue for %s: %w", queueName, err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	selectQ := `SELECT ` + postgresDeadLetterColumns + `
		FROM DeadLetterQueue
		WHERE queue_name = $1
		ORDER BY id ASC
		LIMIT 1
		FOR UPDATE SKIP LOCKED`
	msg, err := scanPostgresDeadLetter(tx.QueryRow(ctx, selectQ, queueName))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.DeadLetterMessage{}, false, nil
	}
	if err != nil {
		return model.DeadLetterMessage{}, false, fmt.Errorf("selecting head of dead letters for %s: %w", queueName, err)
	}

	if accept != nil {
		if err := accept(msg); err != nil {
			return model.DeadLetterMessage{}, false, fmt.Errorf("dead letter %d in %s: %w", msg.ID, queueName, err)
		}
	}

	const deleteQ = `DELETE FROM DeadLetterQueue WHERE id = $1 AND queue_name = $2`
	if _, err := tx.Exec(ctx, deleteQ, msg.ID, queueName); err != nil {
		return model.DeadLetterMessage{}, false, fmt.Errorf("deleting dead letter %d: %w", msg.ID, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return model.DeadLetterMessage{}, false, fmt.Errorf("committing dead-letter dequeue for %s: %w", queueName, err)
	}
	return msg, true, nil
}

func (r *postgresDLQRepo) Count(ctx context.Context, queueName string) (int64, error) {
	var count int64
	const q = `SELECT COUNT(*) FROM DeadLetterQueue WHERE queue_name = $1`
	if err := r.pool.QueryRow(ctx, q, queueName).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting dead letters for %s: %w", queueName, err)
	}
	return count, nil
}

func (r *postgresDLQRepo) List(ctx context.Context, queueName string, limit int) ([]model.DeadLetterMessage, error) {
	q := `SELECT ` + postgresDeadLetterColumns + `
		FROM DeadLetterQueue
		WHERE queue_name = $1
		ORDER BY id ASC
		LIMIT $2`
	rows, err := r.pool.Query(ctx, q, queueName, redriveLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("listing dead letters for %s: %w", queueName, err)
	}
	defer rows.Close()

	messages := []model.DeadLetterMessage{}
	for rows.Next() {
		msg, err := scanPostgresDeadLetter(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning dead letter row: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return messages, nil
}

func (r *postgresDLQRepo) Purge(ctx context.Context, queueName string) (int64, error) {
	const q = `DELETE FROM DeadLetterQueue WHERE queue_name = $1`
	tag, err := r.pool.Exec(ctx, q, queueName)
	if err != nil {
		return 0, fmt.Errorf("purging dead letters for %s: %w", queueName, err)
	}
	return tag.RowsAffected(), nil
}

func (r *postgresDLQRepo) Redrive(ctx context.Context, queueName string, limit int) (int, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return 0, fmt.Errorf("starting redrive for %s: %w", queueName, err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	// Selecting and deleting in one statement keeps the locked rows and the
	// moved rows identical; ORDER BY id on insert keeps the original order.
	const q = `
		WITH moved AS (
			DELETE FROM DeadLetterQueue
			WHERE id IN (
				SELECT id FROM DeadLetterQueue
				WHERE queue_name = $1
				ORDER BY id ASC
				LIMIT $2
				FOR UPDATE SKIP LOCKED
			)
			RETURNING id, queue_name, payload, created_at, moved_at
		)
		INSERT INTO Queue (queue_name, payload, attempts, created_at, last_attempt)
		SELECT queue_name, payload, 0, created_at, moved_at
		FROM moved
		ORDER BY id ASC
	`
	tag, err := tx.Exec(ctx, q, queueName, redriveLimit(limit))
	if err != nil {
		return 0, fmt.Errorf("redriving dead letters for %s: %w", queueName, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("committing redrive for %s: %w", queueName, err)
	}
	return int(tag.RowsAffected()), nil
}

func scanPostgresDeadLetter(row pgx.Row) (model.DeadLetterMessage, error) {
	var (
		msg         model.DeadLetterMessage
		payload     string
		createdAt   int64
		lastAttempt *int64
		movedAt     int64
	)
	if err := row.Scan(
		&msg.ID,
		&msg.QueueName,
		&payload,
		&msg.Attempts,
		&createdAt,
		&lastAttempt,
		&movedAt,
		&msg.ErrorText,
	); err != nil {
		return model.DeadLetterMessage{}, err
	}
	msg.Payload = []byte(payload)
	msg.CreatedAt = fromUnix(createdAt)
	msg.LastAttempt = fromNullableUnix(lastAttempt)
	msg.MovedAt = fromUnix(movedAt)
	return msg, nil
}
