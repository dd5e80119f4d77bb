// Package memory provides an in-memory record store. It is intended for
// tests and examples and keeps all records in process memory.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/ledgerlock/ledgerlock/es"
	"github.com/ledgerlock/ledgerlock/es/store"
)

// Store is an in-memory record store. It is safe for concurrent use and
// ignores the DBTX argument entirely, so a nil transaction is fine.
type Store struct {
	mu          sync.RWMutex
	streams     map[uuid.UUID][]es.StoredEvent
	checkpoints map[uuid.UUID]store.Checkpoint
	sequence    int64
}

var _ store.RecordStore = (*Store)(nil)

// NewStore creates a new empty in-memory record store.
func NewStore() *Store {
	return &Store{
		streams:     make(map[uuid.UUID][]es.StoredEvent),
		checkpoints: make(map[uuid.UUID]store.Checkpoint),
	}
}

// MaxVersion implements store.RecordStore.
func (s *Store) MaxVersion(_ context.Context, _ es.DBTX, streamID uuid.UUID) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := s.streams[streamID]
	if len(records) == 0 {
		return -1, nil
	}
	return records[len(records)-1].Version, nil
}

// SelectRecord implements store.RecordStore.
func (s *Store) SelectRecord(_ context.Context, _ es.DBTX, streamID uuid.UUID, version int64) (es.StoredEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, record := range s.streams[streamID] {
		if record.Version == version {
			return cloneRecord(record), nil
		}
	}
	return es.StoredEvent{}, store.ErrRecordNotFound
}

// SelectRecords implements store.RecordStore.
func (s *Store) SelectRecords(_ context.Context, _ es.DBTX, streamID uuid.UUID, fromVersion int64) ([]es.StoredEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var records []es.StoredEvent
	for _, record := range s.streams[streamID] {
		if record.Version >= fromVersion {
			records = append(records, cloneRecord(record))
		}
	}
	return records, nil
}

// InsertRecords implements store.RecordStore. An insert for an existing
// (stream, version) pair fails with store.ErrConcurrencyConflict and leaves
// the stream unchanged.
func (s *Store) InsertRecords(_ context.Context, _ es.DBTX, records []es.StoredEvent) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, record := range records {
		for _, existing := range s.streams[record.StreamID] {
			if existing.Version == record.Version {
				return nil, store.ErrConcurrencyConflict
			}
		}
	}

	sequences := make([]int64, len(records))
	for i, record := range records {
		s.sequence++
		stored := cloneRecord(record)
		stored.GlobalSequence = s.sequence
		s.streams[record.StreamID] = append(s.streams[record.StreamID], stored)
		sequences[i] = s.sequence
	}
	return sequences, nil
}

// ListStreams implements store.RecordStore.
func (s *Store) ListStreams(_ context.Context, _ es.DBTX) ([]uuid.UUID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]uuid.UUID, 0, len(s.streams))
	for id := range s.streams {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return ids[i].String() < ids[j].String()
	})
	return ids, nil
}

// GetCheckpoint implements store.RecordStore.
func (s *Store) GetCheckpoint(_ context.Context, _ es.DBTX, streamID uuid.UUID) (store.Checkpoint, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cp, ok := s.checkpoints[streamID]
	if !ok {
		return store.Checkpoint{}, false, nil
	}
	cp.ChainHash = cloneBytes(cp.ChainHash)
	return cp, true, nil
}

// SaveCheckpoint implements store.RecordStore.
func (s *Store) SaveCheckpoint(_ context.Context, _ es.DBTX, cp store.Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp.ChainHash = cloneBytes(cp.ChainHash)
	s.checkpoints[cp.StreamID] = cp
	return nil
}

// Corrupt overwrites the payload of a stored record in place. It exists so
// tests can simulate tampering with the underlying storage.
func (s *Store) Corrupt(streamID uuid.UUID, version int64, payload []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := s.streams[streamID]
	for i := range records {
		if records[i].Version == version {
			records[i].Payload = cloneBytes(payload)
			return true
		}
	}
	return false
}

// CorruptChainHash overwrites the chain hash of a stored record in place,
// simulating tampering with the hash column itself.
func (s *Store) CorruptChainHash(streamID uuid.UUID, version int64, chainHash []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := s.streams[streamID]
	for i := range records {
		if records[i].Version == version {
			records[i].ChainHash = cloneBytes(chainHash)
			return true
		}
	}
	return false
}

func cloneRecord(record es.StoredEvent) es.StoredEvent {
	record.Payload = cloneBytes(record.Payload)
	record.ChainHash = cloneBytes(record.ChainHash)
	record.PreviousHash = cloneBytes(record.PreviousHash)
	return record
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
