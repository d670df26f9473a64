package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"rezoning/internal/config"
	"rezoning/internal/database"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrUnsupportedDriver is returned by OpenStore for an unknown DB_DRIVER.
var ErrUnsupportedDriver = errors.New("unsupported database driver")

// Store bundles the repositories that share one database.
type Store struct {
	Queue    QueueRepository
	DLQ      DLQRepository
	Projects ProjectRepository

	close func()
}

func NewSQLiteStore(db *sql.DB) *Store {
	return &Store{
		Queue:    NewSQLiteQueueRepo(db),
		DLQ:      NewSQLiteDLQRepo(db),
		Projects: NewSQLiteProjectRepo(db),
		close:    func() { _ = db.Close() },
	}
}

func NewPostgresStore(pool *pgxpool.Pool) *Store {
	return &Store{
		Queue:    NewPostgresQueueRepo(pool),
		DLQ:      NewPostgresDLQRepo(pool),
		Projects: NewPostgresProjectRepo(pool),
		close:    pool.Close,
	}
}

// OpenStore connects to the database selected by cfg.DBDriver and applies the schema.
func OpenStore(ctx context.Context, cfg *config.Config) (*Store, error) {
	switch cfg.DBDriver {
	case "sqlite":
		db, err := database.OpenSQLite(ctx, cfg.DBPath)
		if err != nil {
			return nil, err
		}
		return NewSQLiteStore(db), nil
	case "postgres":
		pool, err := database.OpenPostgres(ctx, cfg.DBConnectionString)
		if err != nil {
			return nil, err
		}
		return NewPostgresStore(pool), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, cfg.DBDriver)
	}
}

func (s *Store) Close() {
	if s.close != nil {
		s.close()
	}
}
