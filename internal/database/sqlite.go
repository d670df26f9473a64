package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// OpenSQLite opens (or creates) the SQLite database at path and applies the
// queue schema. Pass MemoryPath for a throwaway database.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	dsn, inMemory := sqliteDSN(path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database %s: %w", path, err)
	}

	if inMemory {
		// Every connection to :memory: is its own database, so the pool must
		// hold exactly one connection for the lifetime of the handle.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
		db.SetConnMaxIdleTime(0)
	} else {
		db.SetMaxOpenConns(8)
		db.SetConnMaxIdleTime(5 * time.Minute)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging sqlite database %s: %w", path, err)
	}

	for _, stmt := range sqliteSchema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("initializing sqlite schema: %w", err)
		}
	}
	return db, nil
}

// sqliteDSN builds the driver DSN. File databases take the write lock when a
// transaction begins (_txlock=immediate) so two dequeuers cannot both read the
// same head row, and wait on a busy timeout instead of failing immediately.
func sqliteDSN(path string) (string, bool) {
	if path == MemoryPath || path == "" {
		return MemoryPath, true
	}
	if strings.Contains(path, "?") {
		return path, false
	}
	return "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate", false
}
