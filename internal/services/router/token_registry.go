package router

import (
	"sync"
	"sync/atomic"

	"github.com/gagliardetto/solana-go"
)

// TokenID is a compact integer identifier for tokens
type TokenID uint32

// PoolID is a compact integer identifier for pools
type PoolID uint32

// InvalidTokenID represents an invalid/unknown token
const InvalidTokenID TokenID = 0xFFFFFFFF

// TokenRegistry maps mint addresses to compact integer IDs for flat-array
// access in the search hot path. IDs are never reused.
type TokenRegistry struct {
	mu       sync.RWMutex
	toID     map[solana.PublicKey]TokenID // mint -> ID (write path)
	toMint   []solana.PublicKey           // ID -> mint (read path)
	decimals []uint8                      // ID -> decimals
	nextID   atomic.Uint32
}

// NewTokenRegistry creates a new token registry
func NewTokenRegistry() *TokenRegistry {
	return &TokenRegistry{
		toID:     make(map[solana.PublicKey]TokenID, 1024),
		toMint:   make([]solana.PublicKey, 0, 1024),
		decimals: make([]uint8, 0, 1024),
	}
}

// GetOrCreate returns the ID for a mint, creating one if it doesn't exist
func (r *TokenRegistry) GetOrCreate(mint solana.PublicKey, decimals uint8) TokenID {
	// Fast path: read lock check
	r.mu.RLock()
	if id, ok := r.toID[mint]; ok {
		r.mu.RUnlock()
		return id
	}
	r.mu.RUnlock()

	// Slow path: write lock to create
	r.mu.Lock()
	defer r.mu.Unlock()

	// Double check after acquiring write lock
	if id, ok := r.toID[mint]; ok {
		return id
	}

	id := TokenID(r.nextID.Add(1) - 1)
	r.toID[mint] = id
	r.toMint = append(r.toMint, mint)
	r.decimals = append(r.decimals, decimals)
	return id
}

// GetID returns the ID for a mint, or InvalidTokenID if not found
func (r *TokenRegistry) GetID(mint solana.PublicKey) (TokenID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.toID[mint]
	if !ok {
		return InvalidTokenID, false
	}
	return id, true
}

// GetMint returns the mint for an ID
func (r *TokenRegistry) GetMint(id TokenID) solana.PublicKey {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if int(id) >= len(r.toMint) {
		return solana.PublicKey{}
	}
	return r.toMint[id]
}

// GetDecimals returns the decimals for an ID
func (r *TokenRegistry) GetDecimals(id TokenID) uint8 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if int(id) >= len(r.decimals) {
		return 0
	}
	return r.decimals[id]
}

// Size returns the number of registered tokens
func (r *TokenRegistry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.toMint)
}
