package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/layer-3/walletauth/core"
	"github.com/layer-3/walletauth/internal/clock"
	"github.com/layer-3/walletauth/ports"
	"github.com/redis/go-redis/v9"
)

// deleteIfNonce removes KEYS[1] only when its stored nonce equals ARGV[1].
var deleteIfNonce = redis.NewScript(`
local value = redis.call('GET', KEYS[1])
if not value then
	return 0
end
local challenge = cjson.decode(value)
if challenge['nonce'] ~= ARGV[1] then
	return 0
end
redis.call('DEL', KEYS[1])
return 1
`)

// RedisChallengeStore is a Redis implementation of the ChallengeStore
// interface, shared by every instance pointing at the same Redis
type RedisChallengeStore struct {
	client *redis.Client
	clock  clock.Clock
	prefix string
}

// NewRedisChallengeStore creates a new Redis challenge store
func NewRedisChallengeStore(client *redis.Client, clk clock.Clock) ports.ChallengeStore {
	return &RedisChallengeStore{
		client: client,
		clock:  clk,
		prefix: "walletauth:challenge:",
	}
}

func (s *RedisChallengeStore) key(address string) string {
	return s.prefix + core.NormalizeAddress(address)
}

// Put stores the challenge with a TTL matching its expiry
func (s *RedisChallengeStore) Put(ctx context.Context, challenge *core.Challenge) error {
	ttl := challenge.ExpiresAt.Sub(s.clock.Now())
	if ttl <= 0 {
		return nil
	}

	payload, err := json.Marshal(challenge)
	if err != nil {
		return fmt.Errorf("failed to marshal challenge: %w", err)
	}

	if err := s.client.Set(ctx, s.key(challenge.Address), payload, ttl).Err(); err != nil {
		return fmt.Errorf("%w: failed to store challenge: %w", core.ErrStoreUnavailable, err)
	}

	return nil
}

// Get returns the live challenge for an address
func (s *RedisChallengeStore) Get(ctx context.Context, address string) (*core.Challenge, error) {
	payload, err := s.client.Get(ctx, s.key(address)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, core.ErrChallengeNotFound
		}
		return nil, fmt.Errorf("%w: failed to load challenge: %w", core.ErrStoreUnavailable, err)
	}

	var challenge core.Challenge
	if err := json.Unmarshal(payload, &challenge); err != nil {
		return nil, core.ErrChallengeNotFound
	}

	// Redis expiry has millisecond resolution, the clock is authoritative
	if challenge.Expired(s.clock.Now()) {
		return nil, core.ErrChallengeNotFound
	}

	return &challenge, nil
}

// Delete removes the challenge atomically if its nonce still matches
func (s *RedisChallengeStore) Delete(ctx context.Context, address, nonce string) (bool, error) {
	removed, err := deleteIfNonce.Run(ctx, s.client, []string{s.key(address)}, nonce).Int()
	if err != nil {
		return false, fmt.Errorf("%w: failed to delete challenge: %w", core.ErrStoreUnavailable, err)
	}

	return removed == 1, nil
}

// SweepExpired is a no-op, Redis evicts expired keys itself
func (s *RedisChallengeStore) SweepExpired(ctx context.Context) (int, error) {
	return 0, nil
}

// Count returns the number of challenge keys
func (s *RedisChallengeStore) Count(ctx context.Context) (int, error) {
	count := 0
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		count++
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("%w: failed to count challenges: %w", core.ErrStoreUnavailable, err)
	}

	return count, nil
}
