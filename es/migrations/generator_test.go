package migrations

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestGeneratePostgres(t *testing.T) {
	tmpDir := t.TempDir()

	config := Config{
		OutputFolder:     tmpDir,
		OutputFilename:   "test_migration.sql",
		EventsTable:      "events",
		CheckpointsTable: "chain_checkpoints",
	}

	err := GeneratePostgres(&config)
	if err != nil {
		t.Fatalf("GeneratePostgres failed: %v", err)
	}

	// Verify file was created
	outputPath := filepath.Join(tmpDir, config.OutputFilename)
	content, err := os.ReadFile(outputPath)
	if err != nil {
		t.Fatalf("Failed to read generated file: %v", err)
	}

	sql := string(content)

	// Verify essential components are present
	requiredStrings := []string{
		"CREATE TABLE IF NOT EXISTS events",
		"global_sequence BIGSERIAL PRIMARY KEY",
		"id UUID NOT NULL UNIQUE",
		"stream_id UUID NOT NULL",
		"event_type TEXT NOT NULL",
		"payload BYTEA NOT NULL",
		"version BIGINT NOT NULL",
		"occurred_at TIMESTAMPTZ NOT NULL",
		"chain_hash BYTEA NOT NULL",
		"previous_hash BYTEA",
		"UNIQUE (stream_id, version)",
		"CREATE TABLE IF NOT EXISTS chain_checkpoints",
		"stream_id UUID PRIMARY KEY",
		"updated_at TIMESTAMPTZ NOT NULL",
	}

	for _, required := range requiredStrings {
		if !strings.Contains(sql, required) {
			t.Errorf("Generated SQL missing required string: %s", required)
		}
	}
}

func TestGenerateSQLite(t *testing.T) {
	tmpDir := t.TempDir()

	config := Config{
		OutputFolder:     tmpDir,
		OutputFilename:   "test_migration.sql",
		EventsTable:      "events",
		CheckpointsTable: "chain_checkpoints",
	}

	err := GenerateSQLite(&config)
	if err != nil {
		t.Fatalf("GenerateSQLite failed: %v", err)
	}

	outputPath := filepath.Join(tmpDir, config.OutputFilename)
	content, err := os.ReadFile(outputPath)
	if err != nil {
		t.Fatalf("Failed to read generated file: %v", err)
	}

	sql := string(content)

	requiredStrings := []string{
		"CREATE TABLE IF NOT EXISTS events",
		"global_sequence INTEGER PRIMARY KEY AUTOINCREMENT",
		"id TEXT NOT NULL UNIQUE",
		"stream_id TEXT NOT NULL",
		"payload BLOB NOT NULL",
		"version INTEGER NOT NULL",
		"chain_hash BLOB NOT NULL",
		"previous_hash BLOB",
		"UNIQUE (stream_id, version)",
		"CREATE TABLE IF NOT EXISTS chain_checkpoints",
		"stream_id TEXT PRIMARY KEY",
	}

	for _, required := range requiredStrings {
		if !strings.Contains(sql, required) {
			t.Errorf("Generated SQL missing required string: %s", required)
		}
	}
}

func TestGenerateMySQL(t *testing.T) {
	tmpDir := t.TempDir()

	config := Config{
		OutputFolder:     tmpDir,
		OutputFilename:   "test_migration.sql",
		EventsTable:      "events",
		CheckpointsTable: "chain_checkpoints",
	}

	err := GenerateMySQL(&config)
	if err != nil {
		t.Fatalf("GenerateMySQL failed: %v", err)
	}

	outputPath := filepath.Join(tmpDir, config.OutputFilename)
	content, err := os.ReadFile(outputPath)
	if err != nil {
		t.Fatalf("Failed to read generated file: %v", err)
	}

	sql := string(content)

	requiredStrings := []string{
		"CREATE TABLE IF NOT EXISTS events",
		"global_sequence BIGINT AUTO_INCREMENT PRIMARY KEY",
		"id CHAR(36) NOT NULL UNIQUE",
		"stream_id CHAR(36) NOT NULL",
		"payload BLOB NOT NULL",
		"version BIGINT NOT NULL",
		"chain_hash VARBINARY(64) NOT NULL",
		"previous_hash VARBINARY(64)",
		"UNIQUE KEY unique_stream_version (stream_id, version)",
		"CREATE TABLE IF NOT EXISTS chain_checkpoints",
		"stream_id CHAR(36) PRIMARY KEY",
		"ENGINE=InnoDB",
	}

	for _, required := range requiredStrings {
		if !strings.Contains(sql, required) {
			t.Errorf("Generated SQL missing required string: %s", required)
		}
	}
}

func TestCustomTableNames(t *testing.T) {
	tmpDir := t.TempDir()

	config := Config{
		OutputFolder:     tmpDir,
		OutputFilename:   "custom.sql",
		EventsTable:      "ledger_events",
		CheckpointsTable: "ledger_checkpoints",
	}

	if err := GeneratePostgres(&config); err != nil {
		t.Fatalf("GeneratePostgres failed: %v", err)
	}

	content, err := os.ReadFile(filepath.Join(tmpDir, config.OutputFilename))
	if err != nil {
		t.Fatalf("Failed to read generated file: %v", err)
	}

	sql := string(content)
	if !strings.Contains(sql, "CREATE TABLE IF NOT EXISTS ledger_events") {
		t.Error("Generated SQL does not use the custom events table name")
	}
	if !strings.Contains(sql, "CREATE TABLE IF NOT EXISTS ledger_checkpoints") {
		t.Error("Generated SQL does not use the custom checkpoints table name")
	}
	// Match table references only; prose in SQL comments may mention the
	// word "events".
	if strings.Contains(sql, "CREATE TABLE IF NOT EXISTS events") ||
		strings.Contains(sql, "CREATE TABLE IF NOT EXISTS chain_checkpoints") {
		t.Error("Generated SQL still creates the default tables")
	}
	if strings.Contains(sql, "ON events (") || strings.Contains(sql, "ON chain_checkpoints (") {
		t.Error("Generated SQL still indexes the default tables")
	}
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()
	if config.OutputFolder != "migrations" {
		t.Errorf("OutputFolder = %q, want %q", config.OutputFolder, "migrations")
	}
	if !strings.HasSuffix(config.OutputFilename, "_init_event_store.sql") {
		t.Errorf("OutputFilename = %q, want a timestamped _init_event_store.sql", config.OutputFilename)
	}
	if config.EventsTable != "events" {
		t.Errorf("EventsTable = %q, want %q", config.EventsTable, "events")
	}
	if config.CheckpointsTable != "chain_checkpoints" {
		t.Errorf("CheckpointsTable = %q, want %q", config.CheckpointsTable, "chain_checkpoints")
	}
}
