package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/layer-3/walletauth/core"
	"github.com/layer-3/walletauth/internal/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newChallenge(clk clock.Clock, address, nonce string, ttl time.Duration) *core.Challenge {
	now := clk.Now()
	return &core.Challenge{
		ID:        "id-" + nonce,
		Address:   address,
		Nonce:     nonce,
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
		Message:   core.BuildMessage("test", address, nonce, now),
	}
}

func TestMemoryChallengeStore_PutGet(t *testing.T) {
	ctx := context.Background()
	clk := clock.Fake(time.Now())
	s := NewMemoryChallengeStore(clk)

	_, err := s.Get(ctx, "0xabc")
	assert.ErrorIs(t, err, core.ErrChallengeNotFound)

	require.NoError(t, s.Put(ctx, newChallenge(clk, "0xabc", "n1", time.Minute)))

	got, err := s.Get(ctx, "0xABC")
	require.NoError(t, err)
	assert.Equal(t, "n1", got.Nonce)

	// A returned challenge is a copy
	got.Nonce = "mutated"
	again, err := s.Get(ctx, "0xabc")
	require.NoError(t, err)
	assert.Equal(t, "n1", again.Nonce)
}

func TestMemoryChallengeStore_Overwrite(t *testing.T) {
	ctx := context.Background()
	clk := clock.Fake(time.Now())
	s := NewMemoryChallengeStore(clk)

	require.NoError(t, s.Put(ctx, newChallenge(clk, "0xabc", "n1", time.Minute)))
	require.NoError(t, s.Put(ctx, newChallenge(clk, "0xabc", "n2", time.Minute)))

	got, err := s.Get(ctx, "0xabc")
	require.NoError(t, err)
	assert.Equal(t, "n2", got.Nonce)

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMemoryChallengeStore_ExpiredIsAbsent(t *testing.T) {
	ctx := context.Background()
	clk := clock.Fake(time.Now())
	s := NewMemoryChallengeStore(clk)

	require.NoError(t, s.Put(ctx, newChallenge(clk, "0xabc", "n1", time.Minute)))
	clk.Advance(time.Minute)

	_, err := s.Get(ctx, "0xabc")
	assert.ErrorIs(t, err, core.ErrChallengeNotFound)

	// Still counted until swept
	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMemoryChallengeStore_Delete(t *testing.T) {
	ctx := context.Background()
	clk := clock.Fake(time.Now())
	s := NewMemoryChallengeStore(clk)

	require.NoError(t, s.Put(ctx, newChallenge(clk, "0xabc", "n1", time.Minute)))

	removed, err := s.Delete(ctx, "0xabc", "other")
	require.NoError(t, err)
	assert.False(t, removed)

	removed, err = s.Delete(ctx, "0xABC", "n1")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = s.Delete(ctx, "0xabc", "n1")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestMemoryChallengeStore_SweepExpired(t *testing.T) {
	ctx := context.Background()
	clk := clock.Fake(time.Now())
	s := NewMemoryChallengeStore(clk)

	require.NoError(t, s.Put(ctx, newChallenge(clk, "0x1", "a", time.Minute)))
	require.NoError(t, s.Put(ctx, newChallenge(clk, "0x2", "b", 10*time.Minute)))
	clk.Advance(2 * time.Minute)

	removed, err := s.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	_, err = s.Get(ctx, "0x2")
	assert.NoError(t, err)
}

func TestMemoryChallengeStore_ConcurrentDeleteIsSingleUse(t *testing.T) {
	ctx := context.Background()
	clk := clock.Fake(time.Now())
	s := NewMemoryChallengeStore(clk)
	require.NoError(t, s.Put(ctx, newChallenge(clk, "0xabc", "n1", time.Minute)))

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			removed, err := s.Delete(ctx, "0xabc", "n1")
			assert.NoError(t, err)
			if removed {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, winners)
}

func TestMemoryChallengeStore_IndependentAddresses(t *testing.T) {
	ctx := context.Background()
	clk := clock.Fake(time.Now())
	s := NewMemoryChallengeStore(clk)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			addr := fmt.Sprintf("0x%040x", i)
			assert.NoError(t, s.Put(ctx, newChallenge(clk, addr, fmt.Sprint(i), time.Minute)))
		}(i)
	}
	wg.Wait()

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 32, count)
}
