package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"rezoning/internal/model"
)

type sqliteQueueRepo struct {
	db *sql.DB
}

// NewSQLiteQueueRepo returns a QueueRepository backed by a SQLite handle
// opened with database.OpenSQLite.
func NewSQLiteQueueRepo(db *sql.DB) QueueRepository {
	return &sqliteQueueRepo{db: db}
}

func (r *sqliteQueueRepo) Enqueue(ctx context.Context, msg *model.QueueMessage) (int64, error) {
	const q = `
		INSERT INTO Queue (queue_name, payload, attempts, created_at, last_attempt)
		VALUES (?, ?, ?, ?, ?)
	`
	res, err := r.db.ExecContext(ctx, q,
		msg.QueueName,
		string(msg.Payload),
		msg.Attempts,
		msg.CreatedAt.Unix(),
		unixOrNil(msg.LastAttempt),
	)
	if err != nil {
		return 0, fmt.Errorf("inserting message into queue %s: %w", msg.QueueName, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading id of message in queue %s: %w", msg.QueueName, err)
	}
	return id, nil
}

func (r *sqliteQueueRepo) EnqueueBatch(ctx context.Context, msgs []*model.QueueMessage) ([]int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("starting batch enqueue: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO Queue (queue_name, payload, attempts, created_at, last_attempt)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return nil, fmt.Errorf("preparing batch enqueue: %w", err)
	}
	defer stmt.Close()

	ids := make([]int64, 0, len(msgs))
	for _, msg := range msgs {
		res, err := stmt.ExecContext(ctx,
			msg.QueueName,
			string(msg.Payload),
			msg.Attempts,
			msg.CreatedAt.Unix(),
			unixOrNil(msg.LastAttempt),
		)
		if err != nil {
			return nil, fmt.Errorf("inserting message into queue %s: %w", msg.QueueName, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("reading id of message in queue %s: %w", msg.QueueName, err)
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing batch enqueue: %w", err)
	}
	return ids, nil
}

func (r *sqliteQueueRepo) Dequeue(ctx context.Context, queueName string, now time.Time, accept AcceptFunc[model.QueueMessage]) (model.QueueMessage, bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return model.QueueMessage{}, false, fmt.Errorf("starting dequeue transaction for %s: %w", queueName, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	const selectQ = `
		SELECT id, queue_name, payload, attempts, created_at, last_attempt
		FROM Queue
		WHERE queue_name = ?
		ORDER BY id ASC
		LIMIT 1
	`
	msg, err := scanSQLiteMessage(tx.QueryRowContext(ctx, selectQ, queueName))
	if errors.Is(err, sql.ErrNoRows) {
		return model.QueueMessage{}, false, nil
	}
	if err != nil {
		return model.QueueMessage{}, false, fmt.Errorf("selecting head of queue %s: %w", queueName, err)
	}

	if accept != nil {
		if acceptErr := accept(msg); acceptErr != nil {
			const moveQ = `
				INSERT INTO DeadLetterQueue (queue_name, payload, attempts, created_at, last_attempt, moved_at, error_text)
				SELECT queue_name, payload, attempts, created_at, last_attempt, ?, ?
				FROM Queue
				WHERE id = ?
			`
			if _, err := tx.ExecContext(ctx, moveQ, now.Unix(), acceptErr.Error(), msg.ID); err != nil {
				return model.QueueMessage{}, false, fmt.Errorf("dead-lettering rejected message %d: %w", msg.ID, err)
			}
			if err := sqliteDeleteMessage(ctx, tx, queueName, msg.ID); err != nil {
				return model.QueueMessage{}, false, err
			}
			if err := tx.Commit(); err != nil {
				return model.QueueMessage{}, false, fmt.Errorf("committing rejection of message %d: %w", msg.ID, err)
			}
			return msg, false, fmt.Errorf("%w: message %d in %s: %w", ErrRejected, msg.ID, queueName, acceptErr)
		}
	}

	if err := sqliteDeleteMessage(ctx, tx, queueName, msg.ID); err != nil {
		return model.QueueMessage{}, false, err
	}
	if err := tx.Commit(); err != nil {
		return model.QueueMessage{}, false, fmt.Errorf("committing dequeue from %s: %w", queueName, err)
	}
	return msg, true, nil
}

func (r *sqliteQueueRepo) Count(ctx context.Context, queueName string) (int64, error) {
	var count int64
	const q = `SELECT COUNT(*) FROM Queue WHERE queue_name = ?`
	if err := r.db.QueryRowContext(ctx, q, queueName).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting messages in queue %s: %w", queueName, err)
	}
	return count, nil
}

func (r *sqliteQueueRepo) Delete(ctx context.Context, queueName string, id int64) error {
	const q = `DELETE FROM Queue WHERE id = ? AND queue_name = ?`
	if _, err := r.db.ExecContext(ctx, q, id, queueName); err != nil {
		return fmt.Errorf("deleting message %d from queue %s: %w", id, queueName, err)
	}
	return nil
}

func sqliteDeleteMessage(ctx context.Context, tx *sql.Tx, queueName string, id int64) error {
	const q = `DELETE FROM Queue WHERE id = ? AND queue_name = ?`
	if _, err := tx.ExecContext(ctx, q, id, queueName); err != nil {
		return fmt.Errorf("deleting message %d from queue %s: %w", id, queueName, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteMessage(row rowScanner) (model.QueueMessage, error) {
	var (
		msg         model.QueueMessage
		payload     string
		createdAt   int64
		lastAttempt sql.NullInt64
	)
	if err := row.Scan(&msg.ID, &msg.QueueName, &payload, &msg.Attempts, &createdAt, &lastAttempt); err != nil {
		return model.QueueMessage{}, err
	}
	msg.Payload = []byte(payload)
	msg.CreatedAt = fromUnix(createdAt)
	if lastAttempt.Valid {
		msg.LastAttempt = fromNullableUnix(&lastAttempt.Int64)
	}
	return msg, nil
}
