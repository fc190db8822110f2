package domain

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// BundleID is the id of the single ETH/USD bundle.
const BundleID = "1"

// Token is a fungible token as seen by the pricing core. IDs are lower-case
// hex addresses.
type Token struct {
	ID       string
	Symbol   string
	Decimals uint8

	// DerivedETH is the token's price in the reference token. Only meaningful
	// after the resolver has computed it.
	DerivedETH decimal.Decimal

	// WhitelistPools are the candidate pools for pricing, in order.
	WhitelistPools []string
}

// Pool is a concentrated liquidity pool.
type Pool struct {
	ID     string
	Token0 string
	Token1 string

	// Liquidity is the in-range liquidity; zero means no tradable reserves.
	Liquidity    *big.Int
	SqrtPriceX96 *big.Int

	TotalValueLockedToken0 decimal.Decimal
	TotalValueLockedToken1 decimal.Decimal

	// Token0Price is token0 per token1, Token1Price is token1 per token0.
	Token0Price decimal.Decimal
	Token1Price decimal.Decimal
}

// HasLiquidity reports whether the pool has positive in-range liquidity.
func (p Pool) HasLiquidity() bool {
	return p.Liquidity != nil && p.Liquidity.Sign() > 0
}

// Other returns the id of the token paired with tokenID and whether tokenID
// is one of the pool's tokens.
func (p Pool) Other(tokenID string) (string, bool) {
	switch tokenID {
	case p.Token0:
		return p.Token1, true
	case p.Token1:
		return p.Token0, true
	}
	return "", false
}

// Bundle carries the ETH/USD price.
type Bundle struct {
	ID          string
	EthPriceUSD decimal.Decimal
}

// NewBundle returns the bundle with the fixed id.
func NewBundle(ethPriceUSD decimal.Decimal) Bundle {
	return Bundle{ID: BundleID, EthPriceUSD: ethPriceUSD}
}
