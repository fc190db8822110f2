package domain

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// SqrtPriceX96ToTokenPrices converts a pool's Q64.96 square-root price into
// decimal-adjusted prices. price1 is token1 per token0, price0 its inverse.
//
//	price1 = sqrtPriceX96² · 10^(decimals0-decimals1) / 2^192
//
// Both prices are divided from the exact integer ratio and keep
// DivisionPrecision significant digits, so prices near the tick bounds do not
// round to zero. A nil or zero sqrtPriceX96 yields zero for both prices.
func SqrtPriceX96ToTokenPrices(sqrtPriceX96 *big.Int, decimals0, decimals1 uint8) (price0, price1 decimal.Decimal) {
	if sqrtPriceX96 == nil || sqrtPriceX96.Sign() == 0 {
		return decimal.Zero, decimal.Zero
	}

	num := new(big.Int).Mul(sqrtPriceX96, sqrtPriceX96)
	denom := new(big.Int).Lsh(big.NewInt(1), 192)

	// Fold the decimal shift into whichever side keeps both integers.
	if decimals0 > decimals1 {
		num.Mul(num, pow10(int64(decimals0-decimals1)))
	} else if decimals1 > decimals0 {
		denom.Mul(denom, pow10(int64(decimals1-decimals0)))
	}

	return divSignificant(denom, num), divSignificant(num, denom)
}

func pow10(n int64) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(n), nil)
}
