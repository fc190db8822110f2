// Package postgres persists price snapshots to Postgres.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/fd1az/dexprice/business/pricing/app"
	"github.com/fd1az/dexprice/business/pricing/domain"
	"github.com/fd1az/dexprice/internal/apperror"
	"github.com/fd1az/dexprice/internal/logger"
)

// Ensure Store implements SnapshotSink.
var _ app.SnapshotSink = (*Store)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS bundle_prices (
	chain_id      BIGINT      NOT NULL,
	block_number  BIGINT      NOT NULL,
	block_ts      TIMESTAMPTZ NOT NULL,
	eth_price_usd NUMERIC     NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (chain_id, block_number)
);

CREATE TABLE IF NOT EXISTS token_prices (
	chain_id     BIGINT      NOT NULL,
	block_number BIGINT      NOT NULL,
	token_id     TEXT        NOT NULL,
	symbol       TEXT        NOT NULL,
	derived_eth  NUMERIC     NOT NULL,
	price_usd    NUMERIC     NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (chain_id, block_number, token_id)
);

CREATE INDEX IF NOT EXISTS token_prices_token_block_idx
	ON token_prices (chain_id, token_id, block_number DESC);
`

const upsertBundleSQL = `
	INSERT INTO bundle_prices (chain_id, block_number, block_ts, eth_price_usd)
	VALUES ($1, $2, $3, $4::numeric)
	ON CONFLICT (chain_id, block_number)
	DO UPDATE SET eth_price_usd = EXCLUDED.eth_price_usd, block_ts = EXCLUDED.block_ts
`

const upsertTokenSQL = `
	INSERT INTO token_prices (chain_id, block_number, token_id, symbol, derived_eth, price_usd, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric, now(), now())
	ON CONFLICT (chain_id, block_number, token_id)
	DO UPDATE SET
		symbol = EXCLUDED.symbol,
		derived_eth = EXCLUDED.derived_eth,
		price_usd = EXCLUDED.price_usd,
		updated_at = now()
`

// DB is the subset of *pgxpool.Pool the store uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Store provides Postgres persistence for price snapshots.
type Store struct {
	db      DB
	pool    *pgxpool.Pool
	chainID uint64
	logger  logger.LoggerInterface
}

// NewStore connects to dsn.
func NewStore(ctx context.Context, dsn string, maxConns int32, chainID uint64, log logger.LoggerInterface) (*Store, error) {
	if dsn == "" {
		return nil, apperror.New(apperror.CodeConfigurationError, apperror.WithContext("postgres dsn is required"))
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, apperror.New(apperror.CodeConfigurationError, apperror.WithCause(err), apperror.WithContext("postgres dsn"))
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, apperror.External(apperror.CodeStorageConnectionFailed, "postgres", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, apperror.External(apperror.CodeStorageConnectionFailed, "postgres", err)
	}

	s := NewStoreWithDB(pool, chainID, log)
	s.pool = pool
	return s, nil
}

// NewStoreWithDB wraps an existing connection.
func NewStoreWithDB(db DB, chainID uint64, log logger.LoggerInterface) *Store {
	return &Store{db: db, chainID: chainID, logger: log}
}

// Close releases the pool, if the store owns one.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Migrate creates the price tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return apperror.Internal(apperror.CodeMigrationFailed, "price tables", err)
	}
	return nil
}

// SaveSnapshot upserts the bundle price and every token row in one batch.
func (s *Store) SaveSnapshot(ctx context.Context, snapshot *domain.PriceSnapshot) error {
	if snapshot == nil {
		return nil
	}

	batch := buildSnapshotBatch(s.chainID, snapshot)

	br := s.db.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			return apperror.Internal(apperror.CodeStorageWriteFailed,
				fmt.Sprintf("snapshot block %d", snapshot.BlockNumber), err)
		}
	}

	s.logger.Debug(ctx, "snapshot stored", "block", snapshot.BlockNumber, "tokens", len(snapshot.Tokens))
	return nil
}

// LatestPrice returns the most recent stored row for tokenID.
func (s *Store) LatestPrice(ctx context.Context, tokenID string) (domain.TokenPrice, uint64, bool, error) {
	var (
		row        domain.TokenPrice
		block      int64
		derivedETH string
		priceUSD   string
	)

	err := s.db.QueryRow(ctx, `
		SELECT token_id, symbol, block_number, derived_eth::text, price_usd::text
		FROM token_prices
		WHERE chain_id = $1 AND token_id = $2
		ORDER BY block_number DESC
		LIMIT 1
	`, int64(s.chainID), tokenID).Scan(&row.TokenID, &row.Symbol, &block, &derivedETH, &priceUSD)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.TokenPrice{}, 0, false, nil
		}
		return domain.TokenPrice{}, 0, false, err
	}

	if row.DerivedETH, err = decimal.NewFromString(derivedETH); err != nil {
		return domain.TokenPrice{}, 0, false, fmt.Errorf("derived_eth: %w", err)
	}
	if row.PriceUSD, err = decimal.NewFromString(priceUSD); err != nil {
		return domain.TokenPrice{}, 0, false, fmt.Errorf("price_usd: %w", err)
	}
	return row, uint64(block), true, nil
}

func buildSnapshotBatch(chainID uint64, snapshot *domain.PriceSnapshot) *pgx.Batch {
	batch := &pgx.Batch{}

	batch.Queue(upsertBundleSQL,
		int64(chainID),
		int64(snapshot.BlockNumber),
		snapshot.Timestamp.UTC(),
		snapshot.EthPriceUSD.String(),
	)

	for _, t := range snapshot.Tokens {
		batch.Queue(upsertTokenSQL,
			int64(chainID),
			int64(snapshot.BlockNumber),
			t.TokenID,
			t.Symbol,
			t.DerivedETH.String(),
			t.PriceUSD.String(),
		)
	}

	return batch
}
