// Package ledgerlock provides a tamper-evident, encrypted event store for
// financial transaction histories.
//
// This package serves as the main entry point for the ledgerlock library.
// For the core functionality, see the es package and its subpackages:
//
//	es            - Core types and interfaces
//	es/crypto     - AES-GCM payload sealing and HMAC hash chaining
//	es/codec      - Event type registry and payload codecs
//	es/store      - The sealed event store
//	es/adapters/postgres - PostgreSQL implementation
//	es/adapters/mysql    - MySQL/MariaDB implementation
//	es/adapters/sqlite   - SQLite implementation
//	es/adapters/memory   - In-memory implementation for tests
//	es/migrations - Migration generation
//	transaction   - The financial transaction aggregate
//
// Quick Start:
//
//  1. Generate migrations:
//     go run github.com/ledgerlock/ledgerlock/cmd/migrate-gen -output migrations
//
//  2. Create a sealed store and a repository:
//     suite, err := crypto.NewSuite(encryptionKey, macKey)
//     sealed := store.New(postgres.NewStore(postgres.DefaultStoreConfig()), transaction.NewRegistry(), suite)
//     repo := transaction.NewRepository(db, sealed)
//
//  3. Run a transaction through its lifecycle:
//     txn, err := transaction.New(source, destination, amount, reference)
//     err = repo.Save(ctx, txn)
//
// See the examples directory for complete working examples.
package ledgerlock

// Version returns the current version of the library.
func Version() string {
	return "0.1.0-dev"
}
