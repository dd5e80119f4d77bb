// Package postgres provides a PostgreSQL row mapper for the sealed event
// store.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/ledgerlock/ledgerlock/es"
	"github.com/ledgerlock/ledgerlock/es/store"
)

// StoreConfig contains configuration for the Postgres record store.
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

// Store is a PostgreSQL-backed record store. It maps StoredEvent records to
// rows and translates driver errors; sealing and verification happen in
// store.Store.
type Store struct {
	config StoreConfig
}

var _ store.RecordStore = (*Store)(nil)

// NewStore creates a new Postgres record store with the given configuration.
func NewStore(config StoreConfig) *Store {
	return &Store{config: config}
}

// MaxVersion implements store.RecordStore.
func (s *Store) MaxVersion(ctx context.Context, tx es.DBTX, streamID uuid.UUID) (int64, error) {
	query := fmt.Sprintf(`
		SELECT MAX(version) FROM %s WHERE stream_id = $1
	`, s.config.EventsTable)

	var version sql.NullInt64
	err := tx.QueryRowContext(ctx, query, streamID).Scan(&version)
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
		WHERE stream_id = $1 AND version = $2
	`, s.config.EventsTable)

	var e es.StoredEvent
	err := tx.QueryRowContext(ctx, query, streamID, version).Scan(
		&e.GlobalSequence,
		&e.ID,
		&e.StreamID,
		&e.EventType,
		&e.Payload,
		&e.Version,
		&e.OccurredAt,
		&e.ChainHash,
		&e.PreviousHash,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return es.StoredEvent{}, store.ErrRecordNotFound
	}
	if err != nil {
		return es.StoredEvent{}, fmt.Errorf("failed to scan record: %w", err)
	}
	return e, nil
}

// SelectRecords implements store.RecordStore.
func (s *Store) SelectRecords(ctx context.Context, tx es.DBTX, streamID uuid.UUID, fromVersion int64) ([]es.StoredEvent, error) {
	query := fmt.Sprintf(`
		SELECT global_sequence, id, stream_id, event_type, payload,
		       version, occurred_at, chain_hash, previous_hash
		FROM %s
		WHERE stream_id = $1 AND version >= $2
		ORDER BY version ASC
	`, s.config.EventsTable)

	rows, err := tx.QueryContext(ctx, query, streamID, fromVersion)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var records []es.StoredEvent
	for rows.Next() {
		var e es.StoredEvent
		err := rows.Scan(
			&e.GlobalSequence,
			&e.ID,
			&e.StreamID,
			&e.EventType,
			&e.Payload,
			&e.Version,
			&e.OccurredAt,
			&e.ChainHash,
			&e.PreviousHash,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return records, nil
}

// InsertRecords implements store.RecordStore. A unique constraint violation
// on (stream_id, version) means a concurrent writer won the race and is
// reported as store.ErrConcurrencyConflict.
func (s *Store) InsertRecords(ctx context.Context, tx es.DBTX, records []es.StoredEvent) ([]int64, error) {
	insertQuery := fmt.Sprintf(`
		INSERT INTO %s (
			id, stream_id, event_type, payload,
			version, occurred_at, chain_hash, previous_hash
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING global_sequence
	`, s.config.EventsTable)

	sequences := make([]int64, len(records))
	for i := range records {
		record := &records[i]
		err := tx.QueryRowContext(ctx, insertQuery,
			record.ID,
			record.StreamID,
			record.EventType,
			record.Payload,
			record.Version,
			record.OccurredAt,
			record.ChainHash,
			record.PreviousHash,
		).Scan(&sequences[i])
		if err != nil {
			if IsUniqueViolation(err) {
				return nil, store.ErrConcurrencyConflict
			}
			return nil, fmt.Errorf("failed to insert record %d: %w", i, err)
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
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan stream id: %w", err)
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
		WHERE stream_id = $1
	`, s.config.CheckpointsTable)

	var cp store.Checkpoint
	err := tx.QueryRowContext(ctx, query, streamID).Scan(
		&cp.StreamID,
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
	return cp, true, nil
}

// SaveCheckpoint implements store.RecordStore (UPSERT pattern).
func (s *Store) SaveCheckpoint(ctx context.Context, tx es.DBTX, cp store.Checkpoint) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (stream_id, version, chain_hash, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (stream_id)
		DO UPDATE SET version = $2, chain_hash = $3, updated_at = $4
	`, s.config.CheckpointsTable)

	_, err := tx.ExecContext(ctx, query, cp.StreamID, cp.Version, cp.ChainHash, cp.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}

// IsUniqueViolation checks if an error is a PostgreSQL unique constraint
// violation. This is exported for testing purposes.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505" // unique_violation
	}
	return false
}
