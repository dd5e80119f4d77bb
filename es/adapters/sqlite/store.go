// Package sqlite provides a SQLite row mapper for the sealed event store,
// backed by the modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/ledgerlock/ledgerlock/es"
	"github.com/ledgerlock/ledgerlock/es/store"
)

const (
	// sqliteDateTimeFormat is the format used for timestamp storage/parsing
	sqliteDateTimeFormat = "2006-01-02 15:04:05.999999"
)

// sqliteDateTimeFormats lists common SQLite datetime formats for parsing
var sqliteDateTimeFormats = []string{
	sqliteDateTimeFormat,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05.999999Z",
	"2006-01-02T15:04:05Z",
	time.RFC3339,
	time.RFC3339Nano,
}

// StoreConfig contains configuration for the SQLite record store.
// Configuration is immutable after construction.
type StoreConfig struct {
	// EventsTable is the name of the events table
	EventsTable string

	// CheckpointsTable is the name of the chain checkpoints table
	CheckpointsTable string
}

// DefaultStoreConfig returns the default configuration.
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		EventsTable:      "events",
		CheckpointsTable: "chain_checkpoints",
	}
}

// Store is a SQLite-backed record store. UUIDs are stored as TEXT and
// timestamps as datetime strings.
type Store struct {
	config StoreConfig
}

var _ store.RecordStore = (*Store)(nil)

// NewStore creates a new SQLite record store with the given configuration.
func NewStore(config StoreConfig) *Store {
	return &Store{config: config}
}

// MaxVersion implements store.RecordStore.
func (s *Store) MaxVersion(ctx context.Context, tx es.DBTX, streamID uuid.UUID) (int64, error) {
	query := fmt.Sprintf(`
		SELECT MAX(version) FROM %s WHERE stream_id = ?
	`, s.config.EventsTable)

	var version sql.NullInt64
	err := tx.QueryRowContext(ctx, query, streamID.String()).Scan(&version)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("failed to query max version: %w", err)
	}
	if !version.Valid {
		return -1, nil
	}
	return version.Int64, nil
}

// SelectRecord implements store.RecordStore.
func (s *Store) SelectRecord(ctx context.Context, tx es.DBTX, streamID uuid.UUID, version int64) (es.StoredEvent, error) {
	query := fmt.Sprintf(`
		SELECT global_sequence, id, stream_id, event_type, payload,
		       version, occurred_at, chain_hash, previous_hash
		FROM %s
		WHERE stream_id = ? AND version = ?
	`, s.config.EventsTable)

	row := tx.QueryRowContext(ctx, query, streamID.String(), version)
	e, err := scanRecord(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return es.StoredEvent{}, store.ErrRecordNotFound
	}
	if err != nil {
		return es.StoredEvent{}, err
	}
	return e, nil
}

// SelectRecords implements store.RecordStore.
func (s *Store) SelectRecords(ctx context.Context, tx es.DBTX, streamID uuid.UUID, fromVersion int64) ([]es.StoredEvent, error) {
	query := fmt.Sprintf(`
		SELECT global_sequence, id, stream_id, event_type, payload,
		       version, occurred_at, chain_hash, previous_hash
		FROM %s
		WHERE stream_id = ? AND version >= ?
		ORDER BY version ASC
	`, s.config.EventsTable)

	rows, err := tx.QueryContext(ctx, query, streamID.String(), fromVersion)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var records []es.StoredEvent
	for rows.Next() {
		e, err := scanRecord(rows.Scan)
		if err != nil {
			return nil, err
		}
		records = append(records, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return records, nil
}

// InsertRecords implements store.RecordStore. A unique constraint violation
// on (stream_id, version) is translated to store.ErrConcurrencyConflict.
func (s *Store) InsertRecords(ctx context.Context, tx es.DBTX, records []es.StoredEvent) ([]int64, error) {
	insertQuery := fmt.Sprintf(`
		INSERT INTO %s (
			id, stream_id, event_type, payload,
			version, occurred_at, chain_hash, previous_hash
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, s.config.EventsTable)

	sequences := make([]int64, len(records))
	for i := range records {
		record := &records[i]
		result, err := tx.ExecContext(ctx, insertQuery,
			record.ID.String(),
			record.StreamID.String(),
			record.EventType,
			record.Payload,
			record.Version,
			record.OccurredAt.UTC().Format(sqliteDateTimeFormat),
			record.ChainHash,
			record.PreviousHash,
		)
		if err != nil {
			if IsConstraintViolation(err) {
				return nil, store.ErrConcurrencyConflict
			}
			return nil, fmt.Errorf("failed to insert record %d: %w", i, err)
		}
		sequences[i], err = result.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("failed to get last insert id: %w", err)
		}
	}
	return sequences, nil
}

// ListStreams implements store.RecordStore.
func (s *Store) ListStreams(ctx context.Context, tx es.DBTX) ([]uuid.UUID, error) {
	query := fmt.Sprintf(`
		SELECT DISTINCT stream_id FROM %s ORDER BY stream_id
	`, s.config.EventsTable)

	rows, err := tx.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query streams: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan stream id: %w", err)
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to parse stream id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return ids, nil
}

// GetCheckpoint implements store.RecordStore.
func (s *Store) GetCheckpoint(ctx context.Context, tx es.DBTX, streamID uuid.UUID) (store.Checkpoint, bool, error) {
	query := fmt.Sprintf(`
		SELECT stream_id, version, chain_hash, updated_at
		FROM %s
		WHERE stream_id = ?
	`, s.config.CheckpointsTable)

	var cp store.Checkpoint
	var rawID, rawUpdatedAt string
	err := tx.QueryRowContext(ctx, query, streamID.String()).Scan(
		&rawID,
		&cp.Version,
		&cp.ChainHash,
		&rawUpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Checkpoint{}, false, nil
	}
	if err != nil {
		return store.Checkpoint{}, false, fmt.Errorf("failed to scan checkpoint: %w", err)
	}
	if cp.StreamID, err = uuid.Parse(rawID); err != nil {
		return store.Checkpoint{}, false, fmt.Errorf("failed to parse stream id: %w", err)
	}
	if cp.UpdatedAt, err = parseTimestamp(rawUpdatedAt); err != nil {
		return store.Checkpoint{}, false, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return cp, true, nil
}

// SaveCheckpoint implements store.RecordStore (UPSERT pattern for SQLite).
func (s *Store) SaveCheckpoint(ctx context.Context, tx es.DBTX, cp store.Checkpoint) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (stream_id, version, chain_hash, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (stream_id)
		DO UPDATE SET
			version = excluded.version,
			chain_hash = excluded.chain_hash,
			updated_at = excluded.updated_at
	`, s.config.CheckpointsTable)

	_, err := tx.ExecContext(ctx, query,
		cp.StreamID.String(),
		cp.Version,
		cp.ChainHash,
		cp.UpdatedAt.UTC().Format(sqliteDateTimeFormat),
	)
	if err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}

func scanRecord(scan func(...interface{}) error) (es.StoredEvent, error) {
	var e es.StoredEvent
	var rawID, rawStreamID, rawOccurredAt string
	err := scan(
		&e.GlobalSequence,
		&rawID,
		&rawStreamID,
		&e.EventType,
		&e.Payload,
		&e.Version,
		&rawOccurredAt,
		&e.ChainHash,
		&e.PreviousHash,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return es.StoredEvent{}, err
		}
		return es.StoredEvent{}, fmt.Errorf("failed to scan record: %w", err)
	}
	if e.ID, err = uuid.Parse(rawID); err != nil {
		return es.StoredEvent{}, fmt.Errorf("failed to parse event id: %w", err)
	}
	if e.StreamID, err = uuid.Parse(rawStreamID); err != nil {
		return es.StoredEvent{}, fmt.Errorf("failed to parse stream id: %w", err)
	}
	if e.OccurredAt, err = parseTimestamp(rawOccurredAt); err != nil {
		return es.StoredEvent{}, fmt.Errorf("failed to parse occurred_at: %w", err)
	}
	return e, nil
}

// parseTimestamp parses SQLite datetime strings to time.Time
func parseTimestamp(s string) (time.Time, error) {
	for _, format := range sqliteDateTimeFormats {
		t, err := time.Parse(format, s)
		if err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse timestamp: %s", s)
}

// IsConstraintViolation checks if an error is a SQLite unique or primary
// key constraint violation. This is exported for testing purposes.
func IsConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	code := sqliteErr.Code()
	return code == sqlite3.SQLITE_CONSTRAINT ||
		code == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
		code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}
