// Package app contains application services and port definitions for the pricing context.
package app

import (
	"context"
	"math/big"
	"time"

	"github.com/fd1az/dexprice/business/pricing/domain"
	"github.com/shopspring/decimal"
)

// PoolReader looks up pools by id.
type PoolReader interface {
	Pool(ctx context.Context, id string) (domain.Pool, bool)
}

// TokenReader looks up tokens by id.
type TokenReader interface {
	Token(ctx context.Context, id string) (domain.Token, bool)
}

// BundleReader returns the ETH/USD bundle, if one has been stored.
type BundleReader interface {
	Bundle(ctx context.Context) (domain.Bundle, bool)
}

// StateReader is the read side the Pricer works against.
type StateReader interface {
	PoolReader
	TokenReader
	BundleReader
}

// StateStore is the snapshot the Refresher maintains.
type StateStore interface {
	StateReader

	PutPool(ctx context.Context, pool domain.Pool)
	PutToken(ctx context.Context, token domain.Token)
	PutBundle(ctx context.Context, bundle domain.Bundle)

	// SetDerivedETH updates a stored token's price; it reports false when
	// the token is unknown.
	SetDerivedETH(ctx context.Context, tokenID string, derivedETH decimal.Decimal) bool

	// Tokens lists stored tokens sorted by id.
	Tokens(ctx context.Context) []domain.Token
}

// PoolStateSource reads a pool and both of its tokens from chain state.
// block may be nil for the latest block. Returned tokens carry metadata only.
type PoolStateSource interface {
	ReadPool(ctx context.Context, poolID string, block *big.Int) (domain.Pool, []domain.Token, error)
}

// SnapshotSink receives every price snapshot the Refresher produces.
type SnapshotSink interface {
	SaveSnapshot(ctx context.Context, snapshot *domain.PriceSnapshot) error
}

// Reporter defines the interface for displaying prices.
type Reporter interface {
	// Start initializes the reporter.
	Start(ctx context.Context) error

	// UpdatePrices updates the current price display.
	UpdatePrices(snapshot *domain.PriceSnapshot)

	// UpdateConnectionStatus updates a connection status display.
	UpdateConnectionStatus(name string, connected bool, latency time.Duration)

	// Stop gracefully shuts down the reporter.
	Stop() error
}
