// Package integration_test contains integration tests for the SQLite adapter.
// These tests require SQLite (which is embedded).
//
// Run with: go test -tags=integration ./es/adapters/sqlite/integration_test/...
//
//go:build integration

package integration_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/ledgerlock/ledgerlock/es"
	"github.com/ledgerlock/ledgerlock/es/adapters/sqlite"
	"github.com/ledgerlock/ledgerlock/es/crypto"
	"github.com/ledgerlock/ledgerlock/es/migrations"
	"github.com/ledgerlock/ledgerlock/es/store"
	"github.com/ledgerlock/ledgerlock/transaction"
)

func getTestDB(t *testing.T) *sql.DB {
	t.Helper()

	// Create a temporary database file
	dbFile := fmt.Sprintf("/tmp/ledgerlock_test_%d.db", time.Now().UnixNano())
	t.Cleanup(func() {
		os.Remove(dbFile)
	})

	db, err := sql.Open("sqlite", dbFile)
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	// Enable foreign keys and WAL mode for better concurrency
	_, err = db.Exec("PRAGMA foreign_keys = ON; PRAGMA journal_mode = WAL;")
	if err != nil {
		t.Fatalf("Failed to configure database: %v", err)
	}

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		t.Fatalf("Failed to ping database: %v", err)
	}

	return db
}

func setupTestTables(t *testing.T, db *sql.DB) {
	t.Helper()

	// Generate and execute migration
	tmpDir := t.TempDir()
	config := migrations.Config{
		OutputFolder:     tmpDir,
		OutputFilename:   "test.sql",
		EventsTable:      "events",
		CheckpointsTable: "chain_checkpoints",
	}

	if err := migrations.GenerateSQLite(&config); err != nil {
		t.Fatalf("Failed to generate migration: %v", err)
	}

	migrationSQL, err := os.ReadFile(fmt.Sprintf("%s/%s", tmpDir, config.OutputFilename))
	if err != nil {
		t.Fatalf("Failed to read migration: %v", err)
	}

	_, err = db.Exec(string(migrationSQL))
	if err != nil {
		t.Fatalf("Failed to execute migration: %v", err)
	}
}

func testSuite(t *testing.T) *crypto.Suite {
	t.Helper()
	encryptionKey := make([]byte, crypto.KeySize)
	macKey := make([]byte, crypto.KeySize)
	for i := range encryptionKey {
		encryptionKey[i] = byte(i)
		macKey[i] = byte(i + 128)
	}
	suite, err := crypto.NewSuite(encryptionKey, macKey)
	if err != nil {
		t.Fatalf("Failed to build crypto suite: %v", err)
	}
	t.Cleanup(suite.Close)
	return suite
}

func newSealedStore(t *testing.T) (*sql.DB, *store.Store) {
	t.Helper()
	db := getTestDB(t)
	setupTestTables(t, db)
	sealed := store.New(sqlite.NewStore(sqlite.DefaultStoreConfig()), transaction.NewRegistry(), testSuite(t))
	return db, sealed
}

func TestRepository_Lifecycle(t *testing.T) {
	ctx := context.Background()
	db, sealed := newSealedStore(t)
	repo := transaction.NewRepository(db, sealed)

	txn, err := transaction.New(uuid.New(), uuid.New(), transaction.NewMoney(1050, transaction.USD), "INT-1")
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	if err := repo.Save(ctx, txn); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	loaded, err := repo.Load(ctx, txn.ID())
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if loaded.Status() != transaction.StatusInitiated {
		t.Errorf("Status() = %s, want %s", loaded.Status(), transaction.StatusInitiated)
	}
	if loaded.Amount() != txn.Amount() {
		t.Errorf("Amount() = %s, want %s", loaded.Amount(), txn.Amount())
	}

	if err := loaded.Authorize("AUTH-1"); err != nil {
		t.Fatalf("Authorize() failed: %v", err)
	}
	if err := loaded.Complete(); err != nil {
		t.Fatalf("Complete() failed: %v", err)
	}
	if err := repo.Save(ctx, loaded); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	replayed, err := repo.Load(ctx, txn.ID())
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if replayed.Status() != transaction.StatusCompleted {
		t.Errorf("Status() = %s, want %s", replayed.Status(), transaction.StatusCompleted)
	}
	if replayed.Version() != 2 {
		t.Errorf("Version() = %d, want 2", replayed.Version())
	}

	ok, err := repo.Verify(ctx, txn.ID())
	if err != nil {
		t.Fatalf("Verify() failed: %v", err)
	}
	if !ok {
		t.Error("Verify() = false for an intact stream")
	}
}

func TestRepository_LoadMissing(t *testing.T) {
	db, sealed := newSealedStore(t)
	repo := transaction.NewRepository(db, sealed)

	_, err := repo.Load(context.Background(), uuid.New())
	if !errors.Is(err, transaction.ErrNotFound) {
		t.Errorf("Load() error = %v, want ErrNotFound", err)
	}
}

func TestRepository_StaleSaveConflicts(t *testing.T) {
	ctx := context.Background()
	db, sealed := newSealedStore(t)
	repo := transaction.NewRepository(db, sealed)

	txn, err := transaction.New(uuid.New(), uuid.New(), transaction.NewMoney(500, transaction.EUR), "")
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	if err := repo.Save(ctx, txn); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	// Two copies of the same aggregate race.
	first, err := repo.Load(ctx, txn.ID())
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	second, err := repo.Load(ctx, txn.ID())
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if err := first.Authorize("AUTH-A"); err != nil {
		t.Fatalf("Authorize() failed: %v", err)
	}
	if err := repo.Save(ctx, first); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	if err := second.Authorize("AUTH-B"); err != nil {
		t.Fatalf("Authorize() failed: %v", err)
	}
	if err := repo.Save(ctx, second); !errors.Is(err, store.ErrConcurrencyConflict) {
		t.Errorf("Save() error = %v, want ErrConcurrencyConflict", err)
	}

	// The winner's code is the one persisted.
	final, err := repo.Load(ctx, txn.ID())
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if final.AuthorizationCode() != "AUTH-A" {
		t.Errorf("AuthorizationCode() = %q, want %q", final.AuthorizationCode(), "AUTH-A")
	}
}

func TestStore_TamperingDetected(t *testing.T) {
	ctx := context.Background()
	db, sealed := newSealedStore(t)
	repo := transaction.NewRepository(db, sealed)

	txn, err := transaction.New(uuid.New(), uuid.New(), transaction.NewMoney(999, transaction.GBP), "")
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	if err := txn.Authorize("AUTH-1"); err != nil {
		t.Fatalf("Authorize() failed: %v", err)
	}
	if err := repo.Save(ctx, txn); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	// Corrupt the sealed payload of the authorization record in place.
	res, err := db.Exec(
		`UPDATE events SET payload = X'00010203040506070809' WHERE stream_id = ? AND version = 1`,
		txn.ID().String(),
	)
	if err != nil {
		t.Fatalf("Failed to tamper with record: %v", err)
	}
	if n, _ := res.RowsAffected(); n != 1 {
		t.Fatalf("tampering update affected %d rows, want 1", n)
	}

	if _, err := repo.Load(ctx, txn.ID()); !errors.Is(err, store.ErrIntegrity) {
		t.Errorf("Load() error = %v, want ErrIntegrity", err)
	}

	ok, err := sealed.VerifyHashChain(ctx, db, txn.ID())
	if err != nil {
		t.Fatalf("VerifyHashChain() failed: %v", err)
	}
	if ok {
		t.Error("VerifyHashChain() = true for a tampered stream")
	}
}

func TestStore_TamperedChainHashDetected(t *testing.T) {
	ctx := context.Background()
	db, sealed := newSealedStore(t)
	repo := transaction.NewRepository(db, sealed)

	txn, err := transaction.New(uuid.New(), uuid.New(), transaction.NewMoney(999, transaction.GBP), "")
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	if err := txn.Authorize("AUTH-1"); err != nil {
		t.Fatalf("Authorize() failed: %v", err)
	}
	if err := repo.Save(ctx, txn); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	// Flip a single bit of the stored chain hash.
	var chainHash []byte
	err = db.QueryRow(
		`SELECT chain_hash FROM events WHERE stream_id = ? AND version = 1`,
		txn.ID().String(),
	).Scan(&chainHash)
	if err != nil {
		t.Fatalf("Failed to read chain hash: %v", err)
	}
	chainHash[0] ^= 0x01
	res, err := db.Exec(
		`UPDATE events SET chain_hash = ? WHERE stream_id = ? AND version = 1`,
		chainHash, txn.ID().String(),
	)
	if err != nil {
		t.Fatalf("Failed to tamper with record: %v", err)
	}
	if n, _ := res.RowsAffected(); n != 1 {
		t.Fatalf("tampering update affected %d rows, want 1", n)
	}

	if _, err := repo.Load(ctx, txn.ID()); !errors.Is(err, store.ErrIntegrity) {
		t.Errorf("Load() error = %v, want ErrIntegrity", err)
	}

	ok, err := sealed.VerifyHashChain(ctx, db, txn.ID())
	if err != nil {
		t.Fatalf("VerifyHashChain() failed: %v", err)
	}
	if ok {
		t.Error("VerifyHashChain() = true for a tampered chain hash")
	}
}

func TestStore_DeletedRecordDetected(t *testing.T) {
	ctx := context.Background()
	db, sealed := newSealedStore(t)
	repo := transaction.NewRepository(db, sealed)

	txn, err := transaction.New(uuid.New(), uuid.New(), transaction.NewMoney(100, transaction.USD), "")
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	if err := txn.Authorize("AUTH-1"); err != nil {
		t.Fatalf("Authorize() failed: %v", err)
	}
	if err := txn.Complete(); err != nil {
		t.Fatalf("Complete() failed: %v", err)
	}
	if err := repo.Save(ctx, txn); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	// Remove the middle record; the gap and the broken link must fail
	// verification.
	if _, err := db.Exec(
		`DELETE FROM events WHERE stream_id = ? AND version = 1`,
		txn.ID().String(),
	); err != nil {
		t.Fatalf("Failed to delete record: %v", err)
	}

	ok, err := sealed.VerifyHashChain(ctx, db, txn.ID())
	if err != nil {
		t.Fatalf("VerifyHashChain() failed: %v", err)
	}
	if ok {
		t.Error("VerifyHashChain() = true for a stream with a deleted record")
	}
}

func TestStore_VerifyAndCheckpoint(t *testing.T) {
	ctx := context.Background()
	db, sealed := newSealedStore(t)
	repo := transaction.NewRepository(db, sealed)

	txn, err := transaction.New(uuid.New(), uuid.New(), transaction.NewMoney(777, transaction.USD), "")
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	if err := repo.Save(ctx, txn); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	ok, err := sealed.VerifyAndCheckpoint(ctx, db, txn.ID())
	if err != nil {
		t.Fatalf("VerifyAndCheckpoint() failed: %v", err)
	}
	if !ok {
		t.Fatal("VerifyAndCheckpoint() = false for an intact stream")
	}

	var version int64
	err = db.QueryRow(
		`SELECT version FROM chain_checkpoints WHERE stream_id = ?`,
		txn.ID().String(),
	).Scan(&version)
	if err != nil {
		t.Fatalf("Failed to read checkpoint: %v", err)
	}
	if version != 0 {
		t.Errorf("checkpoint version = %d, want 0", version)
	}
}

func TestAdapter_UniqueConstraintMapsToConflict(t *testing.T) {
	ctx := context.Background()
	db := getTestDB(t)
	setupTestTables(t, db)
	records := sqlite.NewStore(sqlite.DefaultStoreConfig())

	streamID := uuid.New()
	base := es.StoredEvent{
		ID:         uuid.New(),
		StreamID:   streamID,
		EventType:  "transaction.initiated",
		Payload:    []byte("sealed"),
		Version:    0,
		OccurredAt: time.Now().UTC(),
		ChainHash:  []byte("hash"),
	}
	if _, err := records.InsertRecords(ctx, db, []es.StoredEvent{base}); err != nil {
		t.Fatalf("InsertRecords() failed: %v", err)
	}

	dup := base
	dup.ID = uuid.New()
	if _, err := records.InsertRecords(ctx, db, []es.StoredEvent{dup}); !errors.Is(err, store.ErrConcurrencyConflict) {
		t.Errorf("InsertRecords() error = %v, want ErrConcurrencyConflict", err)
	}
}

func TestAdapter_TimestampsSurviveRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := getTestDB(t)
	setupTestTables(t, db)
	records := sqlite.NewStore(sqlite.DefaultStoreConfig())

	occurredAt := time.Date(2024, 3, 15, 9, 30, 0, 123456000, time.UTC)
	streamID := uuid.New()
	event := es.StoredEvent{
		ID:         uuid.New(),
		StreamID:   streamID,
		EventType:  "transaction.initiated",
		Payload:    []byte("sealed"),
		Version:    0,
		OccurredAt: occurredAt,
		ChainHash:  []byte("hash"),
	}
	if _, err := records.InsertRecords(ctx, db, []es.StoredEvent{event}); err != nil {
		t.Fatalf("InsertRecords() failed: %v", err)
	}

	got, err := records.SelectRecord(ctx, db, streamID, 0)
	if err != nil {
		t.Fatalf("SelectRecord() failed: %v", err)
	}
	if !got.OccurredAt.Equal(occurredAt) {
		t.Errorf("OccurredAt = %v, want %v", got.OccurredAt, occurredAt)
	}
	if got.PreviousHash != nil {
		t.Errorf("PreviousHash = %v for genesis record, want nil", got.PreviousHash)
	}
}
