package database

// Both dialects keep timestamps as integer epoch seconds and index the
// partition key together with id so the head of a queue is a range scan.

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS Queue (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		queue_name TEXT NOT NULL,
		payload TEXT NOT NULL,
		attempts INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		last_attempt INTEGER
	)`,
	`CREATE TABLE IF NOT EXISTS DeadLetterQueue (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		queue_name TEXT NOT NULL,
		payload TEXT NOT NULL,
		attempts INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		last_attempt INTEGER,
		moved_at INTEGER NOT NULL,
		error_text TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS Projects (
		id TEXT PRIMARY KEY,
		payload TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_queue_name ON Queue(queue_name, id)`,
	`CREATE INDEX IF NOT EXISTS idx_dlq_queue_name ON DeadLetterQueue(queue_name, id)`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS Queue (
		id BIGSERIAL PRIMARY KEY,
		queue_name TEXT NOT NULL,
		payload TEXT NOT NULL,
		attempts INTEGER NOT NULL DEFAULT 0,
		created_at BIGINT NOT NULL,
		last_attempt BIGINT
	)`,
	`CREATE TABLE IF NOT EXISTS DeadLetterQueue (
		id BIGSERIAL PRIMARY KEY,
		queue_name TEXT NOT NULL,
		payload TEXT NOT NULL,
		attempts INTEGER NOT NULL,
		created_at BIGINT NOT NULL,
		last_attempt BIGINT,
		moved_at BIGINT NOT NULL,
		error_text TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS Projects (
		id TEXT PRIMARY KEY,
		payload TEXT NOT NULL,
		updated_at BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_queue_name ON Queue(queue_name, id)`,
	`CREATE INDEX IF NOT EXISTS idx_dlq_queue_name ON DeadLetterQueue(queue_name, id)`,
}
