// Copyright 2025 Astria Sequencer Contributors
//
// Optional archival index (§6: GetSequencerBlock/GetFilteredSequencerBlock
// serve historical heights a live versioned store does not keep around
// indefinitely). Adapts the teacher's pkg/database/client.go connection
// pooling idiom against lib/pq, storing one row per finalized block with
// its rollup transaction set JSON-encoded for replay by the gRPC
// surface. Nothing in the consensus-critical path depends on this
// package: a node with no DATABASE_URL configured simply runs without
// an archive and GetSequencerBlock returns grpcserver.ErrBlockNotFound.

package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/astriaorg/astria-go-sequencer/pkg/grpcserver"
)

// Config configures the archive's connection pool.
type Config struct {
	DatabaseURL     string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Store is a Postgres-backed archive of finalized blocks.
type Store struct {
	db     *sql.DB
	logger *log.Logger
}

// Open connects to cfg.DatabaseURL, configures the pool, and verifies
// the connection with a ping, the way database.NewClient does.
func Open(cfg Config) (*Store, error) {
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("archive: database URL cannot be empty")
	}
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("archive: open database: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("archive: ping database: %w", err)
	}

	s := &Store{db: db, logger: log.New(log.Writer(), "[archive] ", log.LstdFlags)}
	s.logger.Printf("connected to archive database")
	return s, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates the blocks table if it does not already exist. Called
// once at startup; the schema is intentionally a single wide table since
// the archive only ever serves point lookups by height.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS sequencer_blocks (
	height BIGINT PRIMARY KEY,
	block_hash BYTEA NOT NULL,
	rollup_datas_root BYTEA NOT NULL,
	rollup_ids_root BYTEA NOT NULL,
	rollup_transactions JSONB NOT NULL,
	applied_upgrades JSONB NOT NULL,
	validator_updates JSONB NOT NULL,
	recorded_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`)
	if err != nil {
		return fmt.Errorf("archive: migrate: %w", err)
	}
	return nil
}

// RecordBlock upserts a finalized block's archival record. Called from
// the ABCI driver's FinalizeBlock step, after the block's store commit has
// succeeded, so a re-run of FinalizeBlock at the same height overwrites
// the earlier row.
func (s *Store) RecordBlock(ctx context.Context, blk *grpcserver.SequencerBlock) error {
	rollupTxs, err := json.Marshal(blk.RollupTransactions)
	if err != nil {
		return err
	}
	upgrades, err := json.Marshal(blk.AppliedUpgrades)
	if err != nil {
		return err
	}
	validatorUpdates, err := json.Marshal(blk.ValidatorUpdates)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
INSERT INTO sequencer_blocks (height, block_hash, rollup_datas_root, rollup_ids_root, rollup_transactions, applied_upgrades, validator_updates)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (height) DO UPDATE SET
	block_hash = EXCLUDED.block_hash,
	rollup_datas_root = EXCLUDED.rollup_datas_root,
	rollup_ids_root = EXCLUDED.rollup_ids_root,
	rollup_transactions = EXCLUDED.rollup_transactions,
	applied_upgrades = EXCLUDED.applied_upgrades,
	validator_updates = EXCLUDED.validator_updates`,
		blk.Height, blk.BlockHash, blk.RollupDatasRoot, blk.RollupIDsRoot, rollupTxs, upgrades, validatorUpdates)
	if err != nil {
		return fmt.Errorf("archive: record block %d: %w", blk.Height, err)
	}
	return nil
}

// GetBlock implements grpcserver.BlockArchive.
func (s *Store) GetBlock(ctx context.Context, height int64) (*grpcserver.SequencerBlock, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT height, block_hash, rollup_datas_root, rollup_ids_root, rollup_transactions, applied_upgrades, validator_updates
FROM sequencer_blocks WHERE height = $1`, height)

	var rollupTxsRaw, upgradesRaw, validatorUpdatesRaw []byte
	var out grpcserver.SequencerBlock
	if err := row.Scan(&out.Height, &out.BlockHash, &out.RollupDatasRoot, &out.RollupIDsRoot, &rollupTxsRaw, &upgradesRaw, &validatorUpdatesRaw); err != nil {
		if err == sql.ErrNoRows {
			return nil, grpcserver.ErrBlockNotFound
		}
		return nil, fmt.Errorf("archive: get block %d: %w", height, err)
	}
	if err := json.Unmarshal(rollupTxsRaw, &out.RollupTransactions); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(upgradesRaw, &out.AppliedUpgrades); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(validatorUpdatesRaw, &out.ValidatorUpdates); err != nil {
		return nil, err
	}
	return &out, nil
}
