package store

import (
	"context"
	"testing"
	"time"

	"github.com/layer-3/walletauth/internal/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_Invalidate(t *testing.T) {
	ctx := context.Background()
	clk := clock.Fake(time.Now())
	s := NewMemoryStore(clk)

	invalidated, err := s.IsTokenInvalidated(ctx, "jti")
	require.NoError(t, err)
	assert.False(t, invalidated)

	require.NoError(t, s.InvalidateToken(ctx, "jti", time.Hour))

	invalidated, err = s.IsTokenInvalidated(ctx, "jti")
	require.NoError(t, err)
	assert.True(t, invalidated)

	clk.Advance(2 * time.Hour)

	invalidated, err = s.IsTokenInvalidated(ctx, "jti")
	require.NoError(t, err)
	assert.False(t, invalidated)
}

func TestMemoryStore_ShorterInvalidationKeepsLonger(t *testing.T) {
	ctx := context.Background()
	clk := clock.Fake(time.Now())
	s := NewMemoryStore(clk)

	require.NoError(t, s.InvalidateToken(ctx, "jti", time.Hour))
	require.NoError(t, s.InvalidateToken(ctx, "jti", time.Minute))
	clk.Advance(30 * time.Minute)

	invalidated, err := s.IsTokenInvalidated(ctx, "jti")
	require.NoError(t, err)
	assert.True(t, invalidated)
}

func TestMemoryStore_SweepExpired(t *testing.T) {
	ctx := context.Background()
	clk := clock.Fake(time.Now())
	s := NewMemoryStore(clk)

	require.NoError(t, s.InvalidateToken(ctx, "short", time.Minute))
	require.NoError(t, s.InvalidateToken(ctx, "long", time.Hour))
	clk.Advance(2 * time.Minute)

	removed, err := s.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	invalidated, err := s.IsTokenInvalidated(ctx, "long")
	require.NoError(t, err)
	assert.True(t, invalidated)
}
