// Package asset holds ERC20 token metadata keyed by chain and address. The
// registry starts with well-known tokens and learns the rest as pools are
// read, so decimals and symbols are fetched from chain once per process.
package asset

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// maxDecimals bounds token decimals; 10^78 overflows uint256.
const maxDecimals = 77

// ID identifies a token by chain and contract address.
type ID struct {
	ChainID uint64
	Address common.Address
}

// Key returns the lower-case hex address used as token id by the pricing
// core.
func (id ID) Key() string {
	return strings.ToLower(id.Address.Hex())
}

func (id ID) String() string {
	return fmt.Sprintf("chain:%d/%s", id.ChainID, id.Address.Hex())
}

// Asset is the metadata of one token.
type Asset struct {
	id       ID
	symbol   string
	decimals uint8
}

// NewToken validates and creates a token asset. Metadata read from arbitrary
// contracts goes through here, so bad values are errors, not panics.
func NewToken(chainID uint64, address common.Address, symbol string, decimals uint8) (*Asset, error) {
	if address == (common.Address{}) {
		return nil, fmt.Errorf("asset: zero token address")
	}
	if decimals > maxDecimals {
		return nil, fmt.Errorf("asset: %s reports %d decimals", address.Hex(), decimals)
	}
	if symbol == "" {
		symbol = address.Hex()[:8]
	}
	return &Asset{
		id:       ID{ChainID: chainID, Address: address},
		symbol:   symbol,
		decimals: decimals,
	}, nil
}

// MustToken is NewToken for compile-time constants.
func MustToken(chainID uint64, address common.Address, symbol string, decimals uint8) *Asset {
	a, err := NewToken(chainID, address, symbol, decimals)
	if err != nil {
		panic(err)
	}
	return a
}

func (a *Asset) ID() ID {
	return a.id
}

func (a *Asset) Symbol() string {
	return a.symbol
}

func (a *Asset) Decimals() uint8 {
	return a.decimals
}

func (a *Asset) String() string {
	return a.symbol
}
