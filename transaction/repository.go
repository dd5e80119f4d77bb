package transaction

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/ledgerlock/ledgerlock/es"
	"github.com/ledgerlock/ledgerlock/es/codec"
	"github.com/ledgerlock/ledgerlock/es/store"
)

// ErrNotFound indicates the requested transaction has no event stream.
var ErrNotFound = errors.New("transaction: not found")

// Repository is the collaborator-facing interface over the sealed store:
// save pending events, load an aggregate by replay, verify a stream for
// audit tooling. It owns the transaction boundary so a multi-event save is
// one atomic write.
type Repository struct {
	db     *sql.DB
	store  *store.Store
	logger es.Logger
}

// RepositoryOption configures a Repository.
type RepositoryOption func(*Repository)

// WithRepositoryLogger sets a logger for the repository.
func WithRepositoryLogger(logger es.Logger) RepositoryOption {
	return func(r *Repository) {
		r.logger = logger
	}
}

// NewRepository creates a repository over db and the sealed store.
func NewRepository(db *sql.DB, st *store.Store, opts ...RepositoryOption) *Repository {
	r := &Repository{db: db, store: st}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Save appends the aggregate's pending events in one transaction and clears
// them on success. A concurrent writer that got there first surfaces as
// store.ErrConcurrencyConflict: reload the transaction, redo the operation
// and save again. Saving an aggregate without pending events is a no-op.
func (r *Repository) Save(ctx context.Context, txn *Transaction) error {
	pending := txn.PendingEvents()
	if len(pending) == 0 {
		return nil
	}

	events := make([]codec.Event, len(pending))
	for i, e := range pending {
		events[i] = e
	}
	// The aggregate's version already includes pending events.
	expected := es.At(txn.Version() - int64(len(pending)))

	dbtx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = dbtx.Rollback() }()

	if _, err := r.store.Append(ctx, dbtx, txn.ID(), events, expected); err != nil {
		return err
	}
	if err := dbtx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	txn.MarkCommitted()
	if r.logger != nil {
		r.logger.Debug(ctx, "transaction saved",
			"transaction_id", txn.ID(),
			"version", txn.Version(),
			"status", txn.Status().String())
	}
	return nil
}

// Load rebuilds a transaction by replaying its verified event stream.
// Returns ErrNotFound for an absent stream.
func (r *Repository) Load(ctx context.Context, id uuid.UUID) (*Transaction, error) {
	decoded, err := r.store.GetEvents(ctx, r.db, id, 0)
	if err != nil {
		return nil, err
	}
	if len(decoded) == 0 {
		return nil, ErrNotFound
	}

	events := make([]Event, len(decoded))
	for i, e := range decoded {
		evt, ok := e.(Event)
		if !ok {
			return nil, &codec.DecodeError{
				EventType: e.EventType(),
				Err:       fmt.Errorf("not a transaction event"),
			}
		}
		events[i] = evt
	}
	return LoadFromHistory(events), nil
}

// Verify walks the transaction's full hash chain and reports whether it is
// intact. Intended for audit and compliance tooling.
func (r *Repository) Verify(ctx context.Context, id uuid.UUID) (bool, error) {
	return r.store.VerifyHashChain(ctx, r.db, id)
}
