package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"rezoning/internal/model"
)

type sqliteDLQRepo struct {
	db *sql.DB
}

func NewSQLiteDLQRepo(db *sql.DB) DLQRepository {
	return &sqliteDLQRepo{db: db}
}

const sqliteDeadLetterColumns = `id, queue_name, payload, attempts, created_at, last_attempt, moved_at, error_text`

func (r *sqliteDLQRepo) Create(ctx context.Context, msg *model.DeadLetterMessage) (int64, error) {
	const q = `
		INSERT INTO DeadLetterQueue (queue_name, payload, attempts, created_at, last_attempt, moved_at, error_text)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	res, err := r.db.ExecContext(ctx, q,
		msg.QueueName,
		string(msg.Payload),
		msg.Attempts,
		msg.CreatedAt.Unix(),
		unixOrNil(msg.LastAttempt),
		msg.MovedAt.Unix(),
		msg.ErrorText,
	)
	if err != nil {
		return 0, fmt.Errorf("creating dead letter for queue %s: %w", msg.QueueName, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading id of dead letter for queue %s: %w", msg.QueueName, err)
	}
	return id, nil
}

func (r *sqliteDLQRepo) Dequeue(ctx context.Context, queueName string, accept AcceptFunc[model.DeadLetterMessage]) (model.DeadLetterMessage, bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return model.DeadLetterMessage{}, false, fmt.Errorf("starting dead-letter dequeue for %s: %w", queueName, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	selectQ := `SELECT ` + sqliteDeadLetterColumns + `
		FROM DeadLetterQueue
		WHERE queue_name = ?
		ORDER BY id ASC
		LIMIT 1`
	msg, err := scanSQLiteDeadLetter(tx.QueryRowContext(ctx, selectQ, queueName))
	if errors.Is(err, sql.ErrNoRows) {
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

	const deleteQ = `DELETE FROM DeadLetterQueue WHERE id = ? AND queue_name = ?`
	if _, err := tx.ExecContext(ctx, deleteQ, msg.ID, queueName); err != nil {
		return model.DeadLetterMessage{}, false, fmt.Errorf("deleting dead letter %d: %w", msg.ID, err)
	}
	if err := tx.Commit(); err != nil {
		return model.DeadLetterMessage{}, false, fmt.Errorf("committing dead-letter dequeue for %s: %w", queueName, err)
	}
	return msg, true, nil
}

func (r *sqliteDLQRepo) Count(ctx context.Context, queueName string) (int64, error) {
	var count int64
	const q = `SELECT COUNT(*) FROM DeadLetterQueue WHERE queue_name = ?`
	if err := r.db.QueryRowContext(ctx, q, queueName).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting dead letters for %s: %w", queueName, err)
	}
	return count, nil
}

func (r *sqliteDLQRepo) List(ctx context.Context, queueName string, limit int) ([]model.DeadLetterMessage, error) {
	q := `SELECT ` + sqliteDeadLetterColumns + `
		FROM DeadLetterQueue
		WHERE queue_name = ?
		ORDER BY id ASC
		LIMIT ?`
	rows, err := r.db.QueryContext(ctx, q, queueName, redriveLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("listing dead letters for %s: %w", queueName, err)
	}
	defer rows.Close()

	messages := []model.DeadLetterMessage{}
	for rows.Next() {
		msg, err := scanSQLiteDeadLetter(rows)
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

func (r *sqliteDLQRepo) Purge(ctx context.Context, queueName string) (int64, error) {
	const q = `DELETE FROM DeadLetterQueue WHERE queue_name = ?`
	res, err := r.db.ExecContext(ctx, q, queueName)
	if err != nil {
		return 0, fmt.Errorf("purging dead letters for %s: %w", queueName, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reading purge count for %s: %w", queueName, err)
	}
	return n, nil
}

func (r *sqliteDLQRepo) Redrive(ctx context.Context, queueName string, limit int) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("starting redrive for %s: %w", queueName, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	const selectQ = `SELECT id FROM DeadLetterQueue WHERE queue_name = ? ORDER BY id ASC LIMIT ?`
	rows, err := tx.QueryContext(ctx, selectQ, queueName, redriveLimit(limit))
	if err != nil {
		return 0, fmt.Errorf("selecting dead letters to redrive for %s: %w", queueName, err)
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scanning dead letter id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, fmt.Errorf("row iteration error: %w", err)
	}
	rows.Close()

	// last_attempt takes the quarantine time so the redriven message still
	// shows it has failed before.
	const moveQ = `
		INSERT INTO Queue (queue_name, payload, attempts, created_at, last_attempt)
		SELECT queue_name, payload, 0, created_at, moved_at
		FROM DeadLetterQueue
		WHERE id = ?
	`
	const deleteQ = `DELETE FROM DeadLetterQueue WHERE id = ?`
	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, moveQ, id); err != nil {
			return 0, fmt.Errorf("requeueing dead letter %d: %w", id, err)
		}
		if _, err := tx.ExecContext(ctx, deleteQ, id); err != nil {
			return 0, fmt.Errorf("deleting redriven dead letter %d: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing redrive for %s: %w", queueName, err)
	}
	return len(ids), nil
}

func scanSQLiteDeadLetter(row rowScanner) (model.DeadLetterMessage, error) {
	var (
		msg         model.DeadLetterMessage
		payload     string
		createdAt   int64
		lastAttempt sql.NullInt64
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
	if lastAttempt.Valid {
		msg.LastAttempt = fromNullableUnix(&lastAttempt.Int64)
	}
	msg.MovedAt = fromUnix(movedAt)
	return msg, nil
}
