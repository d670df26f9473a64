package repository

import (
	"context"
	"errors"
	"fmt"

	"rezoning/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type postgresProjectRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresProjectRepo(pool *pgxpool.Pool) ProjectRepository {
	return &postgresProjectRepo{pool: pool}
}

func (r *postgresProjectRepo) Get(ctx context.Context, id string) (model.ProjectRecord, bool, error) {
	const q = `SELECT id, payload, updated_at FROM Projects WHERE id = $1`
	var (
		rec       model.ProjectRecord
		payload   string
		updatedAt int64
	)
	err := r.pool.QueryRow(ctx, q, id).Scan(&rec.ID, &payload, &updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.ProjectRecord{}, false, nil
	}
	if err != nil {
		return model.ProjectRecord{}, false, fmt.Errorf("reading project %s: %w", id, err)
	}
	rec.Payload = []byte(payload)
	rec.UpdatedAt = fromUnix(updatedAt)
	return rec, true, nil
}

func (r *postgresProjectRepo) Upsert(ctx context.Context, rec *model.ProjectRecord) error {
	const q = `
		INSERT INTO Projects (id, payload, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at
	`
	if _, err := r.pool.Exec(ctx, q, rec.ID, string(rec.Payload), rec.UpdatedAt.Unix()); err != nil {
		return fmt.Errorf("saving project %s: %w", rec.ID, err)
	}
	return nil
}
