// Package memstore implements the pricing state store in memory.
package memstore

import (
	"context"
	"math/big"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/fd1az/dexprice/business/pricing/app"
	"github.com/fd1az/dexprice/business/pricing/domain"
)

// Ensure Store implements StateStore.
var _ app.StateStore = (*Store)(nil)

// Store keeps pools, tokens and the bundle behind a RWMutex. Values are
// copied in and out so callers never share slices or big.Ints with it.
type Store struct {
	mu     sync.RWMutex
	pools  map[string]domain.Pool
	tokens map[string]domain.Token
	bundle *domain.Bundle
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		pools:  make(map[string]domain.Pool),
		tokens: make(map[string]domain.Token),
	}
}

// Pool implements app.PoolReader.
func (s *Store) Pool(_ context.Context, id string) (domain.Pool, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.pools[id]
	if !ok {
		return domain.Pool{}, false
	}
	return copyPool(p), true
}

// Token implements app.TokenReader.
func (s *Store) Token(_ context.Context, id string) (domain.Token, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tokens[id]
	if !ok {
		return domain.Token{}, false
	}
	return copyToken(t), true
}

// Bundle implements app.BundleReader.
func (s *Store) Bundle(_ context.Context) (domain.Bundle, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.bundle == nil {
		return domain.Bundle{}, false
	}
	return *s.bundle, true
}

// PutPool stores or replaces a pool.
func (s *Store) PutPool(_ context.Context, pool domain.Pool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pools[pool.ID] = copyPool(pool)
}

// PutToken stores or replaces a token.
func (s *Store) PutToken(_ context.Context, token domain.Token) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[token.ID] = copyToken(token)
}

// PutBundle stores the bundle.
func (s *Store) PutBundle(_ context.Context, bundle domain.Bundle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := bundle
	s.bundle = &b
}

// SetDerivedETH updates a stored token's reference price.
func (s *Store) SetDerivedETH(_ context.Context, tokenID string, derivedETH decimal.Decimal) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[tokenID]
	if !ok {
		return false
	}
	t.DerivedETH = derivedETH
	s.tokens[tokenID] = t
	return true
}

// Tokens lists stored tokens sorted by id.
func (s *Store) Tokens(_ context.Context) []domain.Token {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Token, 0, len(s.tokens))
	for _, t := range s.tokens {
		out = append(out, copyToken(t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Pools lists stored pools sorted by id.
func (s *Store) Pools(_ context.Context) []domain.Pool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Pool, 0, len(s.pools))
	for _, p := range s.pools {
		out = append(out, copyPool(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func copyToken(t domain.Token) domain.Token {
	if t.WhitelistPools != nil {
		t.WhitelistPools = append([]string(nil), t.WhitelistPools...)
	}
	return t
}

func copyPool(p domain.Pool) domain.Pool {
	p.Liquidity = copyBig(p.Liquidity)
	p.SqrtPriceX96 = copyBig(p.SqrtPriceX96)
	return p
}

func copyBig(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}
