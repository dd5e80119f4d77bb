package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerlock/ledgerlock/es"
	"github.com/ledgerlock/ledgerlock/es/codec"
	"github.com/ledgerlock/ledgerlock/es/crypto"
)

// Config contains configuration for the sealed store.
// Configuration is immutable after construction.
type Config struct {
	// Logger is an optional logger for observability.
	// If nil, logging is disabled (zero overhead).
	Logger es.Logger

	// VerifyOnRead controls whether GetEvents re-derives and checks the
	// chain hash of every record it returns. Enabled by default.
	VerifyOnRead bool
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Logger:       nil, // No logging by default
		VerifyOnRead: true,
	}
}

// Option is a functional option for configuring a Store.
type Option func(*Config)

// WithLogger sets a logger for the store.
func WithLogger(logger es.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithReadVerification toggles chain verification on GetEvents.
func WithReadVerification(enabled bool) Option {
	return func(c *Config) {
		c.VerifyOnRead = enabled
	}
}

// Store is the sealed event store. It serializes events through the codec
// registry, seals them with the crypto suite, chains each record to its
// predecessor and delegates row persistence to a RecordStore adapter.
//
// The store is stateless aside from the persisted log; operations may be
// invoked concurrently against the same or different streams. Optimistic
// concurrency (expected version plus the (stream_id, version) unique
// constraint) is the sole coordination mechanism.
type Store struct {
	records  RecordStore
	registry *codec.Registry
	suite    *crypto.Suite
	config   Config
}

// New creates a sealed store over the given record store, codec registry and
// crypto suite.
func New(records RecordStore, registry *codec.Registry, suite *crypto.Suite, opts ...Option) *Store {
	config := DefaultConfig()
	for _, opt := range opts {
		opt(&config)
	}
	return &Store{
		records:  records,
		registry: registry,
		suite:    suite,
		config:   config,
	}
}

// Append serializes, seals and persists the events at the tail of the
// stream. expected states the stream version the caller last observed
// (NoStream for a fresh stream); a mismatch returns ErrConcurrencyConflict
// before anything is written. Wrap multi-event appends in a single
// transaction so a partial chain is never visible.
func (s *Store) Append(ctx context.Context, tx es.DBTX, streamID uuid.UUID, events []codec.Event, expected es.ExpectedVersion) (es.AppendResult, error) {
	if len(events) == 0 {
		return es.AppendResult{}, ErrNoEvents
	}

	if s.config.Logger != nil {
		s.config.Logger.Debug(ctx, "append starting",
			"stream_id", streamID,
			"event_count", len(events),
			"expected_version", expected.String())
	}

	currentVersion, err := s.records.MaxVersion(ctx, tx, streamID)
	if err != nil {
		return es.AppendResult{}, fmt.Errorf("check current version: %w", err)
	}

	if !expected.Matches(currentVersion) {
		if s.config.Logger != nil {
			s.config.Logger.Error(ctx, "expected version validation failed",
				"stream_id", streamID,
				"current_version", currentVersion,
				"expected_version", expected.String())
		}
		return es.AppendResult{}, ErrConcurrencyConflict
	}

	// Seed the running previous hash from the stream's current tip.
	var previous []byte
	if currentVersion >= 0 {
		tip, err := s.records.SelectRecord(ctx, tx, streamID, currentVersion)
		if err != nil {
			return es.AppendResult{}, fmt.Errorf("read stream tip: %w", err)
		}
		previous = tip.ChainHash
	}

	records := make([]es.StoredEvent, len(events))
	for i, event := range events {
		plaintext, err := s.registry.Marshal(event)
		if err != nil {
			return es.AppendResult{}, err
		}
		sealed, err := s.suite.Cipher.Encrypt(plaintext)
		if err != nil {
			return es.AppendResult{}, fmt.Errorf("seal event %d: %w", i, err)
		}
		chainHash := s.suite.MAC.ChainHash(previous, plaintext)

		records[i] = es.StoredEvent{
			ID:           event.EventID(),
			StreamID:     streamID,
			EventType:    event.EventType(),
			Payload:      sealed,
			Version:      currentVersion + 1 + int64(i),
			OccurredAt:   event.OccurredAt(),
			ChainHash:    chainHash,
			PreviousHash: previous,
		}
		previous = chainHash
	}

	sequences, err := s.records.InsertRecords(ctx, tx, records)
	if err != nil {
		if errors.Is(err, ErrConcurrencyConflict) {
			// A concurrent writer won the race between the version check
			// and the insert.
			if s.config.Logger != nil {
				s.config.Logger.Error(ctx, "optimistic concurrency conflict",
					"stream_id", streamID,
					"expected_version", expected.String())
			}
			return es.AppendResult{}, ErrConcurrencyConflict
		}
		return es.AppendResult{}, fmt.Errorf("insert records: %w", err)
	}
	for i := range records {
		records[i].GlobalSequence = sequences[i]
	}

	if s.config.Logger != nil {
		s.config.Logger.Info(ctx, "events appended",
			"stream_id", streamID,
			"event_count", len(records),
			"version_range", fmt.Sprintf("%d-%d", records[0].Version, records[len(records)-1].Version),
			"sequences", sequences)
	}

	return es.AppendResult{Records: records, GlobalSequences: sequences}, nil
}

// GetEvents reads and decodes the stream's events in version order.
// fromVersion 0 reads the whole stream; fromVersion > 0 reads the records
// strictly after it, seeding the running hash from the record at exactly
// fromVersion. When read verification is enabled, any decrypt failure or
// chain mismatch returns an *IntegrityError immediately and no partially
// verified data.
func (s *Store) GetEvents(ctx context.Context, tx es.DBTX, streamID uuid.UUID, fromVersion int64) ([]codec.Event, error) {
	if fromVersion < 0 {
		return nil, fmt.Errorf("from version must be non-negative, got %d", fromVersion)
	}

	var seed []byte
	selectFrom := fromVersion
	if fromVersion > 0 {
		base, err := s.records.SelectRecord(ctx, tx, streamID, fromVersion)
		if err != nil {
			return nil, fmt.Errorf("read chain seed at version %d: %w", fromVersion, err)
		}
		seed = base.ChainHash
		selectFrom = fromVersion + 1
	}

	records, err := s.records.SelectRecords(ctx, tx, streamID, selectFrom)
	if err != nil {
		return nil, fmt.Errorf("read stream: %w", err)
	}

	events := make([]codec.Event, 0, len(records))
	previous := seed
	for _, record := range records {
		plaintext, err := s.suite.Cipher.Decrypt(record.Payload)
		if err != nil {
			// Decryption failure is an integrity failure, not a missing-key
			// error.
			return nil, s.integrityViolation(ctx, record, "payload authentication failed")
		}
		if s.config.VerifyOnRead {
			if !s.suite.MAC.VerifyChainHash(previous, plaintext, record.ChainHash) {
				return nil, s.integrityViolation(ctx, record, "chain hash mismatch")
			}
		}
		event, err := s.registry.Unmarshal(plaintext, record.EventType)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
		previous = record.ChainHash
	}

	if s.config.Logger != nil {
		s.config.Logger.Debug(ctx, "events read",
			"stream_id", streamID,
			"from_version", fromVersion,
			"count", len(events))
	}
	return events, nil
}

// GetStream returns the stream's stored records, verified but still sealed.
// It is the raw counterpart of GetEvents for callers that inspect records
// rather than replay events, such as audit tooling. An absent stream yields
// an empty Stream.
func (s *Store) GetStream(ctx context.Context, tx es.DBTX, streamID uuid.UUID) (es.Stream, error) {
	records, err := s.records.SelectRecords(ctx, tx, streamID, 0)
	if err != nil {
		return es.Stream{}, fmt.Errorf("read stream: %w", err)
	}

	var previous []byte
	for _, record := range records {
		plaintext, err := s.suite.Cipher.Decrypt(record.Payload)
		if err != nil {
			return es.Stream{}, s.integrityViolation(ctx, record, "payload authentication failed")
		}
		if !s.suite.MAC.VerifyChainHash(previous, plaintext, record.ChainHash) {
			return es.Stream{}, s.integrityViolation(ctx, record, "chain hash mismatch")
		}
		previous = record.ChainHash
	}
	return es.Stream{StreamID: streamID, Records: records}, nil
}

// GetVersion returns the stream's current maximum version, or -1 if the
// stream does not exist.
func (s *Store) GetVersion(ctx context.Context, tx es.DBTX, streamID uuid.UUID) (int64, error) {
	return s.records.MaxVersion(ctx, tx, streamID)
}

// VerifyHashChain walks the full stream from version 0 and reports whether
// the chain is intact. An empty stream verifies trivially. Integrity
// problems (version gaps, previous-hash mismatches, decrypt failures, chain
// hash mismatches) are reported as false, never as an error; the error
// return is reserved for storage access failures.
func (s *Store) VerifyHashChain(ctx context.Context, tx es.DBTX, streamID uuid.UUID) (bool, error) {
	records, err := s.records.SelectRecords(ctx, tx, streamID, 0)
	if err != nil {
		return false, fmt.Errorf("read stream: %w", err)
	}
	return s.verifyRecords(ctx, streamID, records, 0, nil), nil
}

// VerifyAndCheckpoint verifies the stream from its last known-good
// checkpoint forward and, on success, persists a new checkpoint at the
// stream's tip. Streams without a checkpoint are verified in full. The
// boolean carries the integrity verdict exactly as VerifyHashChain.
func (s *Store) VerifyAndCheckpoint(ctx context.Context, tx es.DBTX, streamID uuid.UUID) (bool, error) {
	cp, found, err := s.records.GetCheckpoint(ctx, tx, streamID)
	if err != nil {
		return false, fmt.Errorf("read checkpoint: %w", err)
	}

	fromVersion := int64(0)
	var seed []byte
	if found {
		// The checkpointed record must still exist and carry the hash we
		// recorded; a mismatch means the already-verified prefix changed.
		base, err := s.records.SelectRecord(ctx, tx, streamID, cp.Version)
		if err != nil {
			if errors.Is(err, ErrRecordNotFound) {
				return false, nil
			}
			return false, fmt.Errorf("read checkpointed record: %w", err)
		}
		if !crypto.Equal(base.ChainHash, cp.ChainHash) {
			return false, nil
		}
		fromVersion = cp.Version + 1
		seed = cp.ChainHash
	}

	records, err := s.records.SelectRecords(ctx, tx, streamID, fromVersion)
	if err != nil {
		return false, fmt.Errorf("read stream: %w", err)
	}
	if !s.verifyRecords(ctx, streamID, records, fromVersion, seed) {
		return false, nil
	}

	tipVersion := cp.Version
	tipHash := cp.ChainHash
	if len(records) > 0 {
		tip := records[len(records)-1]
		tipVersion = tip.Version
		tipHash = tip.ChainHash
	} else if !found {
		// Empty stream: nothing to checkpoint.
		return true, nil
	}

	err = s.records.SaveCheckpoint(ctx, tx, Checkpoint{
		StreamID:  streamID,
		Version:   tipVersion,
		ChainHash: tipHash,
		UpdatedAt: time.Now().UTC(),
	})
	if err != nil {
		return true, fmt.Errorf("save checkpoint: %w", err)
	}
	return true, nil
}

// verifyRecords walks records, which must start at fromVersion, checking
// version contiguity, the structural previous-hash link and the re-derived
// chain hash of every record. previous seeds the running hash.
func (s *Store) verifyRecords(ctx context.Context, streamID uuid.UUID, records []es.StoredEvent, fromVersion int64, previous []byte) bool {
	for i, record := range records {
		if record.Version != fromVersion+int64(i) {
			s.logViolation(ctx, streamID, record.Version, "version gap")
			return false
		}
		// Structural link check catches deletions and substitutions of
		// earlier records.
		if !crypto.Equal(record.PreviousHash, previous) {
			s.logViolation(ctx, streamID, record.Version, "previous hash mismatch")
			return false
		}
		plaintext, err := s.suite.Cipher.Decrypt(record.Payload)
		if err != nil {
			s.logViolation(ctx, streamID, record.Version, "payload authentication failed")
			return false
		}
		if !s.suite.MAC.VerifyChainHash(previous, plaintext, record.ChainHash) {
			s.logViolation(ctx, streamID, record.Version, "chain hash mismatch")
			return false
		}
		previous = record.ChainHash
	}
	return true
}

func (s *Store) integrityViolation(ctx context.Context, record es.StoredEvent, reason string) error {
	s.logViolation(ctx, record.StreamID, record.Version, reason)
	return &IntegrityError{
		StreamID: record.StreamID,
		Version:  record.Version,
		Reason:   reason,
	}
}

func (s *Store) logViolation(ctx context.Context, streamID uuid.UUID, version int64, reason string) {
	if s.config.Logger != nil {
		s.config.Logger.Error(ctx, "integrity violation detected",
			"stream_id", streamID,
			"version", version,
			"reason", reason)
	}
}
