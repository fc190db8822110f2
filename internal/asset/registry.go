package asset

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Registry is a thread-safe set of known tokens.
type Registry struct {
	mu   sync.RWMutex
	byID map[ID]*Asset
}

// NewRegistry creates a new empty asset registry.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[ID]*Asset)}
}

// Register adds a well-known asset. It panics on a duplicate id.
func (r *Registry) Register(a *Asset) {
	if a == nil {
		panic("asset: cannot register nil asset")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[a.id]; exists {
		panic(fmt.Sprintf("asset: %s already registered", a.id))
	}
	r.byID[a.id] = a
}

// Remember stores a learned asset unless one with the same id exists, and
// returns whichever is stored. Concurrent readers of the same token agree on
// one value.
func (r *Registry) Remember(a *Asset) *Asset {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.byID[a.id]; ok {
		return existing
	}
	r.byID[a.id] = a
	return a
}

// GetToken retrieves a token by chain and address.
func (r *Registry) GetToken(chainID uint64, address common.Address) (*Asset, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.byID[ID{ChainID: chainID, Address: address}]
	return a, ok
}

// Len returns the number of known assets.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}
