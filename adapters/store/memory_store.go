package store

import (
	"context"
	"sync"
	"time"

	"github.com/layer-3/walletauth/internal/clock"
	"github.com/layer-3/walletauth/ports"
)

// MemoryStore is an in-memory implementation of the TokenStore interface
type MemoryStore struct {
	invalidatedTokens map[string]time.Time
	clock             clock.Clock
	mu                sync.RWMutex
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore(clk clock.Clock) ports.TokenStore {
	return &MemoryStore{
		invalidatedTokens: make(map[string]time.Time),
		clock:             clk,
	}
}

// InvalidateToken marks a token as invalidated until expiry elapses
func (s *MemoryStore) InvalidateToken(ctx context.Context, tokenID string, expiry time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	expiryTime := s.clock.Now().Add(expiry)
	if stored, exists := s.invalidatedTokens[tokenID]; exists && stored.After(expiryTime) {
		return nil
	}
	s.invalidatedTokens[tokenID] = expiryTime

	return nil
}

// IsTokenInvalidated checks if a token is invalidated
func (s *MemoryStore) IsTokenInvalidated(ctx context.Context, tokenID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	expiryTime, exists := s.invalidatedTokens[tokenID]
	if !exists {
		return false, nil
	}

	// Check if the token invalidation has expired
	if s.clock.Now().After(expiryTime) {
		return false, nil
	}

	return true, nil
}

// SweepExpired drops invalidation records that outlived their token
func (s *MemoryStore) SweepExpired(ctx context.Context) (int, error) {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for tokenID, expiryTime := range s.invalidatedTokens {
		if now.After(expiryTime) {
			delete(s.invalidatedTokens, tokenID)
			removed++
		}
	}

	return removed, nil
}
