package domain

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// DivisionPrecision is the number of decimal places kept by SafeDiv, and
// the number of significant digits kept by sqrt price conversion.
const DivisionPrecision int32 = 48

// One is the decimal 1.
var One = decimal.NewFromInt(1)

// SafeDiv returns a/b rounded to DivisionPrecision places, or zero when b is zero.
func SafeDiv(a, b decimal.Decimal) decimal.Decimal {
	if b.IsZero() {
		return decimal.Zero
	}
	return a.DivRound(b, DivisionPrecision)
}

// divSignificant returns n/d for positive integers, rounded to
// DivisionPrecision places past the first significant digit.
func divSignificant(n, d *big.Int) decimal.Decimal {
	places := DivisionPrecision
	if n.Cmp(d) < 0 {
		// k is the smallest shift with n·10^k >= d; the quotient's first
		// significant digit sits at decimal place k.
		k := len(d.String()) - len(n.String())
		if new(big.Int).Mul(n, pow10(int64(k))).Cmp(d) < 0 {
			k++
		}
		places += int32(k) - 1
	}
	return decimal.NewFromBigInt(n, 0).DivRound(decimal.NewFromBigInt(d, 0), places)
}

// ExponentToDecimal returns 10^decimals.
func ExponentToDecimal(decimals uint8) decimal.Decimal {
	return decimal.New(1, int32(decimals))
}

// ConvertTokenToDecimal scales a raw integer token amount by its decimals.
// A nil amount converts to zero.
func ConvertTokenToDecimal(amount *big.Int, decimals uint8) decimal.Decimal {
	if amount == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(amount, -int32(decimals))
}
