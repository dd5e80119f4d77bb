// Package migrations provides SQL migration generation for the sealed event
// store tables.
package migrations

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config configures migration generation.
type Config struct {
	// OutputFolder is the directory where the migration file will be written
	OutputFolder string

	// OutputFilename is the name of the migration file
	OutputFilename string

	// EventsTable is the name of the events table
	EventsTable string

	// CheckpointsTable is the name of the chain checkpoints table
	CheckpointsTable string
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	timestamp := time.Now().Format("20060102150405")
	return Config{
		OutputFolder:     "migrations",
		OutputFilename:   fmt.Sprintf("%s_init_event_store.sql", timestamp),
		EventsTable:      "events",
		CheckpointsTable: "chain_checkpoints",
	}
}

// GeneratePostgres generates a PostgreSQL migration file.
func GeneratePostgres(config *Config) error {
	// Ensure output folder exists
	if err := os.MkdirAll(config.OutputFolder, 0o755); err != nil {
		return fmt.Errorf("failed to create output folder: %w", err)
	}

	sql := generatePostgresSQL(config)

	outputPath := filepath.Join(config.OutputFolder, config.OutputFilename)
	if err := os.WriteFile(outputPath, []byte(sql), 0o600); err != nil {
		return fmt.Errorf("failed to write migration file: %w", err)
	}

	return nil
}

func generatePostgresSQL(config *Config) string {
	return fmt.Sprintf(`-- Sealed Event Store Migration
-- Generated: %s

-- Events table stores encrypted, hash-chained domain events in
-- append-only fashion
CREATE TABLE IF NOT EXISTS %s (
    global_sequence BIGSERIAL PRIMARY KEY,
    id UUID NOT NULL UNIQUE,
    stream_id UUID NOT NULL,
    event_type TEXT NOT NULL,
    payload BYTEA NOT NULL,
    version BIGINT NOT NULL,
    occurred_at TIMESTAMPTZ NOT NULL,
    chain_hash BYTEA NOT NULL,
    previous_hash BYTEA,

    -- Ensure version uniqueness per stream
    UNIQUE (stream_id, version)
);

-- Index for stream reads
CREATE INDEX IF NOT EXISTS idx_%s_stream
    ON %s (stream_id, version);

-- Index for event type queries
CREATE INDEX IF NOT EXISTS idx_%s_event_type
    ON %s (event_type, global_sequence);

-- Chain checkpoints table records the last verified position of each stream
CREATE TABLE IF NOT EXISTS %s (
    stream_id UUID PRIMARY KEY,
    version BIGINT NOT NULL,
    chain_hash BYTEA NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

-- Index for checkpoint staleness queries
CREATE INDEX IF NOT EXISTS idx_%s_updated
    ON %s (updated_at);
`,
		time.Now().Format(time.RFC3339),
		config.EventsTable,
		config.EventsTable, config.EventsTable,
		config.EventsTable, config.EventsTable,
		config.CheckpointsTable,
		config.CheckpointsTable, config.CheckpointsTable,
	)
}

// GenerateSQLite generates a SQLite migration file.
func GenerateSQLite(config *Config) error {
	// Ensure output folder exists
	if err := os.MkdirAll(config.OutputFolder, 0o755); err != nil {
		return fmt.Errorf("failed to create output folder: %w", err)
	}

	sql := generateSQLiteSQL(config)

	outputPath := filepath.Join(config.OutputFolder, config.OutputFilename)
	if err := os.WriteFile(outputPath, []byte(sql), 0o600); err != nil {
		return fmt.Errorf("failed to write migration file: %w", err)
	}

	return nil
}

func generateSQLiteSQL(config *Config) string {
	return fmt.Sprintf(`-- Sealed Event Store Migration for SQLite
-- Generated: %s

-- Events table stores encrypted, hash-chained domain events in
-- append-only fashion
CREATE TABLE IF NOT EXISTS %s (
    global_sequence INTEGER PRIMARY KEY AUTOINCREMENT,
    id TEXT NOT NULL UNIQUE,
    stream_id TEXT NOT NULL,
    event_type TEXT NOT NULL,
    payload BLOB NOT NULL,
    version INTEGER NOT NULL,
    occurred_at TEXT NOT NULL,
    chain_hash BLOB NOT NULL,
    previous_hash BLOB,

    -- Ensure version uniqueness per stream
    UNIQUE (stream_id, version)
);

-- Index for stream reads
CREATE INDEX IF NOT EXISTS idx_%s_stream
    ON %s (stream_id, version);

-- Index for event type queries
CREATE INDEX IF NOT EXISTS idx_%s_event_type
    ON %s (event_type, global_sequence);

-- Chain checkpoints table records the last verified position of each stream
CREATE TABLE IF NOT EXISTS %s (
    stream_id TEXT PRIMARY KEY,
    version INTEGER NOT NULL,
    chain_hash BLOB NOT NULL,
    updated_at TEXT NOT NULL DEFAULT (datetime('now'))
);

-- Index for checkpoint staleness queries
CREATE INDEX IF NOT EXISTS idx_%s_updated
    ON %s (updated_at);
`,
		time.Now().Format(time.RFC3339),
		config.EventsTable,
		config.EventsTable, config.EventsTable,
		config.EventsTable, config.EventsTable,
		config.CheckpointsTable,
		config.CheckpointsTable, config.CheckpointsTable,
	)
}

// GenerateMySQL generates a MySQL/MariaDB migration file.
func GenerateMySQL(config *Config) error {
	// Ensure output folder exists
	if err := os.MkdirAll(config.OutputFolder, 0o755); err != nil {
		return fmt.Errorf("failed to create output folder: %w", err)
	}

	sql := generateMySQLSQL(config)

	outputPath := filepath.Join(config.OutputFolder, config.OutputFilename)
	if err := os.WriteFile(outputPath, []byte(sql), 0o600); err != nil {
		return fmt.Errorf("failed to write migration file: %w", err)
	}

	return nil
}

func generateMySQLSQL(config *Config) string {
	return fmt.Sprintf(`-- Sealed Event Store Migration for MySQL/MariaDB
-- Generated: %s

-- Events table stores encrypted, hash-chained domain events in
-- append-only fashion
CREATE TABLE IF NOT EXISTS %s (
    global_sequence BIGINT AUTO_INCREMENT PRIMARY KEY,
    id CHAR(36) NOT NULL UNIQUE,
    stream_id CHAR(36) NOT NULL,
    event_type VARCHAR(255) NOT NULL,
    payload BLOB NOT NULL,
    version BIGINT NOT NULL,
    occurred_at TIMESTAMP(6) NOT NULL,
    chain_hash VARBINARY(64) NOT NULL,
    previous_hash VARBINARY(64),

    -- Ensure version uniqueness per stream
    UNIQUE KEY unique_stream_version (stream_id, version)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;

-- Index for stream reads
CREATE INDEX idx_%s_stream
    ON %s (stream_id, version);

-- Index for event type queries
CREATE INDEX idx_%s_event_type
    ON %s (event_type, global_sequence);

-- Chain checkpoints table records the last verified position of each stream
CREATE TABLE IF NOT EXISTS %s (
    stream_id CHAR(36) PRIMARY KEY,
    version BIGINT NOT NULL,
    chain_hash VARBINARY(64) NOT NULL,
    updated_at TIMESTAMP(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6) ON UPDATE CURRENT_TIMESTAMP(6)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;

-- Index for checkpoint staleness queries
CREATE INDEX idx_%s_updated
    ON %s (updated_at);
`,
		time.Now().Format(time.RFC3339),
		config.EventsTable,
		config.EventsTable, config.EventsTable,
		config.EventsTable, config.EventsTable,
		config.CheckpointsTable,
		config.CheckpointsTable, config.CheckpointsTable,
	)
}
