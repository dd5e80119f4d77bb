// Package mysql provides a MySQL/MariaDB row mapper for the sealed event
// store.
package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"

	"github.com/ledgerlock/ledgerlock/es"
	"github.com/ledgerlock/ledgerlock/es/store"
)

// StoreConfig contains configuration for the MySQL record store.
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

// Store is a MySQL-backed record store. UUIDs are stored as CHAR(36); open
// the connection with parseTime=true so timestamps scan into time.Time.
type Store struct {
	config StoreConfig
}

var _ store.RecordStore = (*Store)(nil)

// NewStore creates a new MySQL record store with the given configuration.
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

// InsertRecords implements store.RecordStore. ER_DUP_ENTRY on
// (stream_id, version) is translated to store.ErrConcurrencyConflict.
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
			record.OccurredAt,
			record.ChainHash,
			record.PreviousHash,
		)
		if err != nil {
			if IsUniqueViolation(err) {
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
	var rawID string
	err := tx.QueryRowContext(ctx, query, streamID.String()).Scan(
		&rawID,
		&cp.Version,
		&cp.ChainHash,
		&cp.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Checkpoint{}, false, nil
	}
	if err != nil {
		return store.Checkpoint{}, false, fmt.Errorf("failed to scan checkpoint: %w", err)
	}
	cp.StreamID, err = uuid.Parse(rawID)
	if err != nil {
		return store.Checkpoint{}, false, fmt.Errorf("failed to parse stream id: %w", err)
	}
	return cp, true, nil
}

// SaveCheckpoint implements store.RecordStore (UPSERT pattern for MySQL).
func (s *Store) SaveCheckpoint(ctx context.Context, tx es.DBTX, cp store.Checkpoint) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (stream_id, version, chain_hash, updated_at)
		VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE version = ?, chain_hash = ?, updated_at = ?
	`, s.config.CheckpointsTable)

	_, err := tx.ExecContext(ctx, query,
		cp.StreamID.String(), cp.Version, cp.ChainHash, cp.UpdatedAt,
		cp.Version, cp.ChainHash, cp.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}

func scanRecord(scan func(...interface{}) error) (es.StoredEvent, error) {
	var e es.StoredEvent
	var rawID, rawStreamID string
	err := scan(
		&e.GlobalSequence,
		&rawID,
		&rawStreamID,
		&e.EventType,
		&e.Payload,
		&e.Version,
		&e.OccurredAt,
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
	return e, nil
}

// IsUniqueViolation checks if an error is a MySQL unique constraint
// violation. This is exported for testing purposes.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062 // ER_DUP_ENTRY
	}
	return false
}
