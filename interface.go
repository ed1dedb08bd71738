// Package walletauth authenticates Ethereum wallet owners with single-use,
// time-bounded signed challenges.
package walletauth

import (
	"context"

	"github.com/layer-3/walletauth/adapters/store"
	"github.com/layer-3/walletauth/core"
	"github.com/layer-3/walletauth/internal/clock"
	"github.com/layer-3/walletauth/service"
)

// Authenticator is what a session layer needs from the challenge flow
type Authenticator interface {
	// GenerateChallenge issues a message for address to sign, replacing any
	// outstanding challenge for it
	GenerateChallenge(ctx context.Context, address string) (*core.Challenge, error)

	// VerifySignature reports whether address signed its live challenge
	// message, consuming the challenge on success
	VerifySignature(ctx context.Context, address, signature, message string) (bool, error)

	// ActiveChallengeCount returns the number of stored challenges
	ActiveChallengeCount(ctx context.Context) int
}

var _ Authenticator = (*service.Challenger)(nil)

// NewInMemory returns an Authenticator keeping challenges in process memory
// together with the store's sweep function, which the caller schedules.
// The store expires entries by wall time.
func NewInMemory(appName string, opts ...service.ChallengerOption) (Authenticator, service.SweepFunc) {
	challenges := store.NewMemoryChallengeStore(clock.Real())
	return service.NewChallenger(challenges, appName, opts...), challenges.SweepExpired
}
