package app

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/fd1az/dexprice/business/pricing/domain"
	"github.com/fd1az/dexprice/internal/logger"
)

// Pricer derives reference prices from pool state. All methods are pure
// reads over the injected state and never fail: anything unresolved prices
// at zero.
type Pricer struct {
	state StateReader
	table domain.PricingTable
	log   logger.LoggerInterface
}

// NewPricer creates a new Pricer.
func NewPricer(state StateReader, table domain.PricingTable, log logger.LoggerInterface) *Pricer {
	return &Pricer{
		state: state,
		table: table,
		log:   log,
	}
}

// Table returns the pricing table in use.
func (p *Pricer) Table() domain.PricingTable {
	return p.table
}

// EthPriceInUSD returns the USD price of the reference token, read from the
// designated USD pool. Zero when the pool is unknown.
func (p *Pricer) EthPriceInUSD(ctx context.Context) decimal.Decimal {
	pool, ok := p.state.Pool(ctx, p.table.USDPool)
	if !ok {
		return decimal.Zero
	}
	return pool.Token1Price
}

// FindEthPerToken returns how many reference tokens one unit of token is
// worth, using the whitelisted pool with the most ETH locked above the
// minimum.
func (p *Pricer) FindEthPerToken(ctx context.Context, token domain.Token) decimal.Decimal {
	if token.ID == p.table.ReferenceToken {
		return domain.One
	}

	bundle, ok := p.state.Bundle(ctx)
	if !ok {
		return decimal.Zero
	}

	if p.table.IsStableCoin(token.ID) {
		return domain.SafeDiv(domain.One, bundle.EthPriceUSD)
	}

	largestLiquidityETH := decimal.Zero
	priceSoFar := decimal.Zero

	for _, poolID := range token.WhitelistPools {
		pool, ok := p.state.Pool(ctx, poolID)
		if !ok {
			p.log.Debug(ctx, "whitelist pool missing", "token", token.ID, "pool", poolID)
			return decimal.Zero
		}

		if !pool.HasLiquidity() {
			continue
		}

		// Both sides are checked independently; a pool pairing a token with
		// itself is priced through each.
		if pool.Token0 == token.ID {
			token1, ok := p.state.Token(ctx, pool.Token1)
			if !ok {
				p.log.Debug(ctx, "paired token missing", "token", token.ID, "pool", poolID, "paired", pool.Token1)
				return decimal.Zero
			}
			ethLocked := pool.TotalValueLockedToken1.Mul(token1.DerivedETH)
			if ethLocked.GreaterThan(largestLiquidityETH) && ethLocked.GreaterThan(p.table.MinimumEthLocked) {
				largestLiquidityETH = ethLocked
				priceSoFar = pool.Token1Price.Mul(token1.DerivedETH)
			}
		}

		if pool.Token1 == token.ID {
			token0, ok := p.state.Token(ctx, pool.Token0)
			if !ok {
				p.log.Debug(ctx, "paired token missing", "token", token.ID, "pool", poolID, "paired", pool.Token0)
				return decimal.Zero
			}
			ethLocked := pool.TotalValueLockedToken0.Mul(token0.DerivedETH)
			if ethLocked.GreaterThan(largestLiquidityETH) && ethLocked.GreaterThan(p.table.MinimumEthLocked) {
				largestLiquidityETH = ethLocked
				priceSoFar = pool.Token0Price.Mul(token0.DerivedETH)
			}
		}
	}

	return priceSoFar
}

// TrackedAmountUSD returns the USD value of a trade that counts toward
// tracked volume. Only whitelisted sides are valued; a single whitelisted
// side is doubled.
func (p *Pricer) TrackedAmountUSD(ctx context.Context, amount0 decimal.Decimal, token0 domain.Token, amount1 decimal.Decimal, token1 domain.Token) decimal.Decimal {
	bundle, ok := p.state.Bundle(ctx)
	if !ok {
		return decimal.Zero
	}

	price0USD := token0.DerivedETH.Mul(bundle.EthPriceUSD)
	price1USD := token1.DerivedETH.Mul(bundle.EthPriceUSD)

	white0 := p.table.IsWhitelisted(token0.ID)
	white1 := p.table.IsWhitelisted(token1.ID)

	switch {
	case white0 && white1:
		return amount0.Mul(price0USD).Add(amount1.Mul(price1USD))
	case white0:
		return amount0.Mul(price0USD).Mul(two)
	case white1:
		return amount1.Mul(price1USD).Mul(two)
	default:
		return decimal.Zero
	}
}

var two = decimal.NewFromInt(2)
