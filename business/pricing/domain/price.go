// Package domain contains the core domain types for the pricing context.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TokenPrice is one token row of a price snapshot.
type TokenPrice struct {
	TokenID    string
	Symbol     string
	DerivedETH decimal.Decimal
	PriceUSD   decimal.Decimal
}

// PriceSnapshot contains every priced token after a refresh.
type PriceSnapshot struct {
	BlockNumber uint64
	Timestamp   time.Time
	EthPriceUSD decimal.Decimal
	Tokens      []TokenPrice
}

// Token returns the row for tokenID.
func (s *PriceSnapshot) Token(tokenID string) (TokenPrice, bool) {
	for _, t := range s.Tokens {
		if t.TokenID == tokenID {
			return t, true
		}
	}
	return TokenPrice{}, false
}

// SwapValuation is the USD and ETH value of one swap.
type SwapValuation struct {
	// AmountUSD counts toward tracked volume.
	AmountUSD decimal.Decimal
	// AmountETH is AmountUSD in the reference token.
	AmountETH          decimal.Decimal
	AmountUSDUntracked decimal.Decimal
}
