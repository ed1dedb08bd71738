package ports

import (
	"context"
	"time"

	"github.com/layer-3/walletauth/core"
)

// ChallengeStore holds at most one outstanding challenge per address
type ChallengeStore interface {
	// Put stores the challenge under its address, replacing any previous one.
	Put(ctx context.Context, challenge *core.Challenge) error
	// Get returns the live challenge for the address or core.ErrChallengeNotFound.
	Get(ctx context.Context, address string) (*core.Challenge, error)
	// Delete removes the challenge for the address only if it still carries
	// nonce, and reports whether it did.
	Delete(ctx context.Context, address, nonce string) (bool, error)
	// SweepExpired drops expired challenges and returns how many were removed.
	SweepExpired(ctx context.Context) (int, error)
	// Count returns the number of stored challenges, expired ones included.
	Count(ctx context.Context) (int, error)
}

// TokenStore interface for token invalidation
type TokenStore interface {
	InvalidateToken(ctx context.Context, tokenID string, expiry time.Duration) error
	IsTokenInvalidated(ctx context.Context, tokenID string) (bool, error)
	SweepExpired(ctx context.Context) (int, error)
}
