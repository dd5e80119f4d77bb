// Command verify-chain audits the hash chains of a sealed event store.
//
// It walks every stream (or a single stream when EVENTSTORE_STREAM is set),
// verifies each chain from its last checkpoint forward and records a new
// checkpoint at the verified tip. The process exits non-zero when any
// stream fails verification.
//
// Configuration is taken from the environment:
//
//	EVENTSTORE_DRIVER              postgres, mysql or sqlite (default sqlite)
//	EVENTSTORE_DSN                 database connection string (required)
//	EVENTSTORE_ENCRYPTION_KEY      hex-encoded 32-byte AES key (required)
//	EVENTSTORE_MAC_KEY             hex-encoded MAC key, 32 bytes minimum (required)
//	EVENTSTORE_STREAM              optional stream UUID to verify alone
//	EVENTSTORE_EVENTS_TABLE        events table name (default events)
//	EVENTSTORE_CHECKPOINTS_TABLE   checkpoints table name (default chain_checkpoints)
//	LOG_MODE                       dev or prod (default dev)
package main

import (
	"context"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/ledgerlock/ledgerlock/es"
	"github.com/ledgerlock/ledgerlock/es/adapters/mysql"
	"github.com/ledgerlock/ledgerlock/es/adapters/postgres"
	"github.com/ledgerlock/ledgerlock/es/adapters/sqlite"
	"github.com/ledgerlock/ledgerlock/es/crypto"
	"github.com/ledgerlock/ledgerlock/es/store"
	"github.com/ledgerlock/ledgerlock/logging"
	"github.com/ledgerlock/ledgerlock/transaction"
)

type config struct {
	Driver           string `env:"EVENTSTORE_DRIVER" envDefault:"sqlite"`
	DSN              string `env:"EVENTSTORE_DSN,required"`
	EncryptionKey    string `env:"EVENTSTORE_ENCRYPTION_KEY,required"`
	MACKey           string `env:"EVENTSTORE_MAC_KEY,required"`
	Stream           string `env:"EVENTSTORE_STREAM"`
	EventsTable      string `env:"EVENTSTORE_EVENTS_TABLE" envDefault:"events"`
	CheckpointsTable string `env:"EVENTSTORE_CHECKPOINTS_TABLE" envDefault:"chain_checkpoints"`
	LogMode          string `env:"LOG_MODE" envDefault:"dev"`
}

func main() {
	if err := run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "verify-chain: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	var cfg config
	if err := env.Parse(&cfg); err != nil {
		return fmt.Errorf("parse environment: %w", err)
	}

	logger, err := logging.New(cfg.LogMode)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync()

	suite, err := buildSuite(cfg)
	if err != nil {
		return err
	}
	defer suite.Close()

	records, err := buildRecordStore(cfg)
	if err != nil {
		return err
	}

	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	sealed := store.New(records, transaction.NewRegistry(), suite, store.WithLogger(logger))

	streams, err := resolveStreams(ctx, cfg, records, db)
	if err != nil {
		return err
	}
	if len(streams) == 0 {
		logger.Info(ctx, "no streams to verify")
		return nil
	}

	failed := 0
	for _, streamID := range streams {
		ok, err := sealed.VerifyAndCheckpoint(ctx, db, streamID)
		if err != nil {
			return fmt.Errorf("verify stream %s: %w", streamID, err)
		}
		if ok {
			logger.Info(ctx, "chain verified", "stream_id", streamID)
		} else {
			logger.Error(ctx, "chain verification failed", "stream_id", streamID)
			failed++
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d streams failed verification", failed, len(streams))
	}
	logger.Info(ctx, "all chains verified", "stream_count", len(streams))
	return nil
}

func buildSuite(cfg config) (*crypto.Suite, error) {
	encryptionKey, err := hex.DecodeString(cfg.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("decode encryption key: %w", err)
	}
	defer crypto.Wipe(encryptionKey)

	macKey, err := hex.DecodeString(cfg.MACKey)
	if err != nil {
		return nil, fmt.Errorf("decode mac key: %w", err)
	}
	defer crypto.Wipe(macKey)

	suite, err := crypto.NewSuite(encryptionKey, macKey)
	if err != nil {
		return nil, fmt.Errorf("build crypto suite: %w", err)
	}
	return suite, nil
}

func buildRecordStore(cfg config) (store.RecordStore, error) {
	switch cfg.Driver {
	case "postgres":
		return postgres.NewStore(postgres.StoreConfig{
			EventsTable:      cfg.EventsTable,
			CheckpointsTable: cfg.CheckpointsTable,
		}), nil
	case "mysql":
		return mysql.NewStore(mysql.StoreConfig{
			EventsTable:      cfg.EventsTable,
			CheckpointsTable: cfg.CheckpointsTable,
		}), nil
	case "sqlite":
		return sqlite.NewStore(sqlite.StoreConfig{
			EventsTable:      cfg.EventsTable,
			CheckpointsTable: cfg.CheckpointsTable,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported driver %q, expected postgres, mysql or sqlite", cfg.Driver)
	}
}

func resolveStreams(ctx context.Context, cfg config, records store.RecordStore, db es.DBTX) ([]uuid.UUID, error) {
	if cfg.Stream != "" {
		streamID, err := uuid.Parse(cfg.Stream)
		if err != nil {
			return nil, fmt.Errorf("parse stream id: %w", err)
		}
		return []uuid.UUID{streamID}, nil
	}
	streams, err := records.ListStreams(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("list streams: %w", err)
	}
	return streams, nil
}
