package store

import (
	"context"
	"sync"

	"github.com/layer-3/walletauth/core"
	"github.com/layer-3/walletauth/internal/clock"
	"github.com/layer-3/walletauth/ports"
)

// MemoryChallengeStore keeps challenges in a process-local map
type MemoryChallengeStore struct {
	challenges map[string]core.Challenge
	clock      clock.Clock
	mu         sync.RWMutex
}

// NewMemoryChallengeStore creates a new in-memory challenge store
func NewMemoryChallengeStore(clk clock.Clock) ports.ChallengeStore {
	return &MemoryChallengeStore{
		challenges: make(map[string]core.Challenge),
		clock:      clk,
	}
}

// Put stores a copy of the challenge, overwriting any previous one
func (s *MemoryChallengeStore) Put(ctx context.Context, challenge *core.Challenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.challenges[core.NormalizeAddress(challenge.Address)] = *challenge
	return nil
}

// Get returns the live challenge for an address
func (s *MemoryChallengeStore) Get(ctx context.Context, address string) (*core.Challenge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	challenge, ok := s.challenges[core.NormalizeAddress(address)]
	if !ok || challenge.Expired(s.clock.Now()) {
		return nil, core.ErrChallengeNotFound
	}

	return &challenge, nil
}

// Delete removes the challenge if its nonce still matches
func (s *MemoryChallengeStore) Delete(ctx context.Context, address, nonce string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := core.NormalizeAddress(address)
	challenge, ok := s.challenges[key]
	if !ok || challenge.Nonce != nonce {
		return false, nil
	}

	delete(s.challenges, key)
	return true, nil
}

// SweepExpired removes all expired challenges
func (s *MemoryChallengeStore) SweepExpired(ctx context.Context) (int, error) {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, challenge := range s.challenges {
		if challenge.Expired(now) {
			delete(s.challenges, key)
			removed++
		}
	}

	return removed, nil
}

// Count returns the number of stored challenges
func (s *MemoryChallengeStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.challenges), nil
}
