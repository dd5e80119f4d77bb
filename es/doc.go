// Package es provides the core types of a tamper-evident, append-only
// event store for financial-transaction aggregates.
//
// # Overview
//
// Every domain event is serialized to a deterministic plaintext, sealed with
// AES-256-GCM, and bound to its predecessor through an HMAC-SHA512 chain
// hash computed over the plaintext. Appends are guarded by optimistic
// concurrency: the caller states the version it last observed, and a unique
// constraint on (stream_id, version) is the backstop against racing writers.
//
// The packages split as follows:
//   - es: StoredEvent, Stream, ExpectedVersion, DBTX, Logger
//   - es/crypto: authenticated encryption, keyed hashing, chain hashes
//   - es/codec: the closed event-type registry and payload codecs
//   - es/store: the sealed store orchestrating codec, crypto and persistence
//   - es/adapters/*: row mappers for Postgres, MySQL, SQLite and memory
//   - es/migrations: schema generation for the three SQL dialects
//
// # Transaction Control
//
// The store operates on the DBTX interface instead of managing transactions.
// This gives you full control over transaction boundaries; a multi-event
// append must be wrapped in a single transaction so partial chains are never
// visible. The transaction.Repository facade does this for you.
//
// # Versions
//
// Stream versions are contiguous integers starting at 0. An absent stream
// has version -1, and the genesis event (version 0) is the only record with
// a nil previous hash.
//
// # Error Taxonomy
//
// Business validation failures are returned as data by the aggregate,
// store.ErrConcurrencyConflict is expected under contention and retried by
// the caller, store.ErrIntegrity signals tampering or key loss and must halt
// processing, and codec decode errors indicate a schema mismatch. None of
// these are ever downgraded to a generic error.
package es
