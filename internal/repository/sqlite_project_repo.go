package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"rezoning/internal/model"
)

type sqliteProjectRepo struct {
	db *sql.DB
}

func NewSQLiteProjectRepo(db *sql.DB) ProjectRepository {
	return &sqliteProjectRepo{db: db}
}

func (r *sqliteProjectRepo) Get(ctx context.Context, id string) (model.ProjectRecord, bool, error) {
	const q = `SELECT id, payload, updated_at FROM Projects WHERE id = ?`
	var (
		rec       model.ProjectRecord
		payload   string
		updatedAt int64
	)
	err := r.db.QueryRowContext(ctx, q, id).Scan(&rec.ID, &payload, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ProjectRecord{}, false, nil
	}
	if err != nil {
		return model.ProjectRecord{}, false, fmt.Errorf("reading project %s: %w", id, err)
	}
	rec.Payload = []byte(payload)
	rec.UpdatedAt = fromUnix(updatedAt)
	return rec, true, nil
}

func (r *sqliteProjectRepo) Upsert(ctx context.Context, rec *model.ProjectRecord) error {
	const q = `
		INSERT INTO Projects (id, payload, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at
	`
	if _, err := r.db.ExecContext(ctx, q, rec.ID, string(rec.Payload), rec.UpdatedAt.Unix()); err != nil {
		return fmt.Errorf("saving project %s: %w", rec.ID, err)
	}
	return nil
}
