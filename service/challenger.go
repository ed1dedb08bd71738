package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/layer-3/walletauth/core"
	"github.com/layer-3/walletauth/internal/clock"
	"github.com/layer-3/walletauth/internal/eth"
	"github.com/layer-3/walletauth/internal/metrics"
	"github.com/layer-3/walletauth/ports"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultChallengeTTL is how long a challenge can be signed and submitted
	DefaultChallengeTTL = 5 * time.Minute

	nonceSize = 32
)

// Challenger issues wallet sign-in challenges and verifies the signed answers
type Challenger struct {
	store   ports.ChallengeStore
	clock   clock.Clock
	log     logrus.FieldLogger
	random  io.Reader
	appName string
	ttl     time.Duration
}

// ChallengerOption customizes a Challenger
type ChallengerOption func(*Challenger)

// WithChallengeTTL sets the challenge lifetime; non-positive values are ignored
func WithChallengeTTL(ttl time.Duration) ChallengerOption {
	return func(c *Challenger) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClock replaces the wall clock
func WithClock(clk clock.Clock) ChallengerOption {
	return func(c *Challenger) { c.clock = clk }
}

// WithLogger sets the logger
func WithLogger(log logrus.FieldLogger) ChallengerOption {
	return func(c *Challenger) { c.log = log }
}

// NewChallenger creates a Challenger whose messages name appName
func NewChallenger(store ports.ChallengeStore, appName string, opts ...ChallengerOption) *Challenger {
	c := &Challenger{
		store:   store,
		clock:   clock.Real(),
		log:     logrus.StandardLogger(),
		random:  rand.Reader,
		appName: appName,
		ttl:     DefaultChallengeTTL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GenerateChallenge issues a fresh challenge for address, replacing any
// outstanding one. The address is trusted to be well formed.
func (c *Challenger) GenerateChallenge(ctx context.Context, address string) (*core.Challenge, error) {
	nonceBytes := make([]byte, nonceSize)
	if _, err := io.ReadFull(c.random, nonceBytes); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	address = core.NormalizeAddress(address)
	nonce := hex.EncodeToString(nonceBytes)
	now := c.clock.Now()

	challenge := &core.Challenge{
		ID:        uuid.New().String(),
		Address:   address,
		Nonce:     nonce,
		IssuedAt:  now,
		ExpiresAt: now.Add(c.ttl),
		Message:   core.BuildMessage(c.appName, address, nonce, now),
	}

	if err := c.store.Put(ctx, challenge); err != nil {
		return nil, fmt.Errorf("failed to store challenge: %w", err)
	}

	metrics.ChallengeIssued()
	c.log.WithField("address", address).Debug("challenge issued")

	return challenge, nil
}

// VerifySignature reports whether address signed the message of its live
// challenge, consuming the challenge on success. Every authentication failure
// is reported as false; only store failures return an error.
func (c *Challenger) VerifySignature(ctx context.Context, address, signature, message string) (bool, error) {
	log := c.log.WithField("address", core.NormalizeAddress(address))

	challenge, err := c.store.Get(ctx, address)
	if err != nil {
		if errors.Is(err, core.ErrChallengeNotFound) {
			c.reject(log, metrics.ResultNoChallenge)
			return false, nil
		}
		metrics.Verification(metrics.ResultError)
		return false, fmt.Errorf("failed to load challenge: %w", err)
	}

	if challenge.Message != message {
		c.reject(log, metrics.ResultMismatch)
		return false, nil
	}

	ok, err := eth.VerifySignatureAgainstAddress(message, signature, address)
	if err != nil {
		c.reject(log.WithError(err), metrics.ResultMalformed)
		return false, nil
	}
	if !ok {
		c.reject(log, metrics.ResultWrongSigner)
		return false, nil
	}

	removed, err := c.store.Delete(ctx, address, challenge.Nonce)
	if err != nil {
		metrics.Verification(metrics.ResultError)
		return false, fmt.Errorf("failed to consume challenge: %w", err)
	}
	if !removed {
		// Consumed or replaced between lookup and delete
		c.reject(log, metrics.ResultReplayed)
		return false, nil
	}

	metrics.Verification(metrics.ResultSuccess)
	log.Debug("signature verified")

	return true, nil
}

// ActiveChallengeCount returns the number of stored challenges. Store errors
// are logged and reported as zero.
func (c *Challenger) ActiveChallengeCount(ctx context.Context) int {
	count, err := c.store.Count(ctx)
	if err != nil {
		c.log.WithError(err).Warn("failed to count challenges")
		return 0
	}
	return count
}

func (c *Challenger) reject(log logrus.FieldLogger, reason string) {
	metrics.Verification(reason)
	log.WithField("reason", reason).Debug("signature rejected")
}
