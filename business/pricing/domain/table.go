package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultMinimumEthLocked is the ETH locked a pool needs before it can price
// a token.
var DefaultMinimumEthLocked = decimal.NewFromInt(2)

// AddressSet is a set of lower-case hex ids.
type AddressSet map[string]struct{}

// NewAddressSet builds a set from ids, lower-casing each.
func NewAddressSet(ids ...string) AddressSet {
	s := make(AddressSet, len(ids))
	for _, id := range ids {
		s[strings.ToLower(id)] = struct{}{}
	}
	return s
}

// Contains reports exact membership.
func (s AddressSet) Contains(id string) bool {
	_, ok := s[id]
	return ok
}

// Len returns the number of ids.
func (s AddressSet) Len() int {
	return len(s)
}

// PricingTable is the chain-specific configuration the pricing core reads.
type PricingTable struct {
	ReferenceToken   string
	USDPool          string
	Whitelist        AddressSet
	StableCoins      AddressSet
	MinimumEthLocked decimal.Decimal
}

// IsWhitelisted reports whether the token may anchor prices for others.
func (t PricingTable) IsWhitelisted(tokenID string) bool {
	return t.Whitelist.Contains(tokenID)
}

// IsStableCoin reports whether the token is priced as one USD.
func (t PricingTable) IsStableCoin(tokenID string) bool {
	return t.StableCoins.Contains(tokenID)
}
