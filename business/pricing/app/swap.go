package app

import (
	"context"
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/fd1az/dexprice/business/pricing/domain"
)

// ValueSwap values a swap on poolID from its raw signed token deltas. Tokens
// must already carry their DerivedETH. Unknown pools or tokens value at zero.
func (p *Pricer) ValueSwap(ctx context.Context, poolID string, amount0Raw, amount1Raw *big.Int) domain.SwapValuation {
	pool, ok := p.state.Pool(ctx, poolID)
	if !ok {
		return domain.SwapValuation{}
	}
	token0, ok0 := p.state.Token(ctx, pool.Token0)
	token1, ok1 := p.state.Token(ctx, pool.Token1)
	if !ok0 || !ok1 {
		p.log.Debug(ctx, "swap tokens missing", "pool", poolID)
		return domain.SwapValuation{}
	}

	amount0 := domain.ConvertTokenToDecimal(abs(amount0Raw), token0.Decimals)
	amount1 := domain.ConvertTokenToDecimal(abs(amount1Raw), token1.Decimals)

	ethPriceUSD := decimal.Zero
	if bundle, ok := p.state.Bundle(ctx); ok {
		ethPriceUSD = bundle.EthPriceUSD
	}

	amount0USD := amount0.Mul(token0.DerivedETH).Mul(ethPriceUSD)
	amount1USD := amount1.Mul(token1.DerivedETH).Mul(ethPriceUSD)

	trackedUSD := domain.SafeDiv(p.TrackedAmountUSD(ctx, amount0, token0, amount1, token1), two)

	return domain.SwapValuation{
		AmountUSD:          trackedUSD,
		AmountETH:          domain.SafeDiv(trackedUSD, ethPriceUSD),
		AmountUSDUntracked: domain.SafeDiv(amount0USD.Add(amount1USD), two),
	}
}

func abs(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Abs(v)
}
