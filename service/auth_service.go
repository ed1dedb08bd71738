package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/layer-3/walletauth/core"
	"github.com/layer-3/walletauth/internal/clock"
	"github.com/layer-3/walletauth/ports"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultAccessTTL is the lifetime of an access token
	DefaultAccessTTL = 5 * time.Minute
	// DefaultRefreshTTL is the lifetime of a refresh token
	DefaultRefreshTTL = 5 * 24 * time.Hour

	// expiredLogoutTTL keeps an already expired refresh token invalidated
	// for a while to absorb clock skew
	expiredLogoutTTL = time.Hour
)

// AuthService handles authentication business logic
type AuthService struct {
	verifier  ports.SignatureVerifier
	tokenizer ports.Tokenizer
	store     ports.TokenStore
	eventPub  ports.EventPublisher
	clock     clock.Clock
	log       logrus.FieldLogger

	accessTTL  time.Duration
	refreshTTL time.Duration
}

// AuthConfig holds the optional settings of an AuthService
type AuthConfig struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Clock      clock.Clock
	Logger     logrus.FieldLogger
}

// NewAuthService creates a new authentication service
func NewAuthService(
	verifier ports.SignatureVerifier,
	tokenizer ports.Tokenizer,
	store ports.TokenStore,
	eventPub ports.EventPublisher,
	cfg AuthConfig,
) *AuthService {
	s := &AuthService{
		verifier:   verifier,
		tokenizer:  tokenizer,
		store:      store,
		eventPub:   eventPub,
		clock:      cfg.Clock,
		log:        cfg.Logger,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
	}
	if s.clock == nil {
		s.clock = clock.Real()
	}
	if s.log == nil {
		s.log = logrus.StandardLogger()
	}
	if s.accessTTL <= 0 {
		s.accessTTL = DefaultAccessTTL
	}
	if s.refreshTTL <= 0 {
		s.refreshTTL = DefaultRefreshTTL
	}
	return s
}

// Login exchanges a signed challenge message for a new session
func (s *AuthService) Login(ctx context.Context, address, signature, message string) (string, string, error) {
	verified, err := s.verifier.VerifySignature(ctx, address, signature, message)
	if err != nil {
		return "", "", fmt.Errorf("signature verification failed: %w", err)
	}
	if !verified {
		return "", "", core.ErrInvalidSignature
	}

	session := s.newSession(core.NormalizeAddress(address))

	accessToken, refreshToken, err := s.issue(session)
	if err != nil {
		return "", "", err
	}

	if err := s.eventPub.PublishLogin(ctx, session.Address, session.ID); err != nil {
		s.log.WithError(err).WithField("address", session.Address).Warn("failed to publish login event")
	}

	return accessToken, refreshToken, nil
}

// Refresh rotates the refresh token and issues new access and refresh tokens
func (s *AuthService) Refresh(ctx context.Context, refreshTokenStr string) (string, string, error) {
	session, err := s.tokenizer.RefreshTokenToSession(refreshTokenStr)
	if err != nil {
		return "", "", err
	}

	if s.clock.Now().After(session.RefreshExpiry) {
		return "", "", core.ErrTokenExpired
	}

	invalidated, err := s.store.IsTokenInvalidated(ctx, session.RefreshID)
	if err != nil {
		return "", "", fmt.Errorf("failed to check token invalidation: %w", err)
	}
	if invalidated {
		return "", "", core.ErrTokenInvalidated
	}

	// The old refresh token stays invalid for the rest of its lifetime
	remainingTime := session.RefreshExpiry.Sub(s.clock.Now())
	if err := s.store.InvalidateToken(ctx, session.RefreshID, remainingTime); err != nil {
		return "", "", fmt.Errorf("failed to invalidate old token: %w", err)
	}

	return s.issue(s.newSession(session.Address))
}

// Logout invalidates a refresh token and every access token tied to it
func (s *AuthService) Logout(ctx context.Context, refreshTokenStr string) error {
	session, err := s.tokenizer.RefreshTokenToSession(refreshTokenStr)
	if err != nil {
		return err
	}

	remainingTime := session.RefreshExpiry.Sub(s.clock.Now())
	if remainingTime <= 0 {
		remainingTime = expiredLogoutTTL
	}

	if err := s.store.InvalidateToken(ctx, session.RefreshID, remainingTime); err != nil {
		return fmt.Errorf("failed to invalidate token: %w", err)
	}

	// The token is already invalidated, a lost event only delays other instances
	if err := s.eventPub.PublishLogout(ctx, session.Address, session.RefreshID); err != nil {
		s.log.WithError(err).WithField("address", session.Address).Warn("failed to publish logout event")
	}

	return nil
}

// ValidateAccessToken returns the session of a valid, non revoked access token
func (s *AuthService) ValidateAccessToken(ctx context.Context, accessToken string) (*core.Session, error) {
	session, err := s.tokenizer.AccessTokenToSession(accessToken)
	if err != nil {
		return nil, err
	}

	if s.clock.Now().After(session.AccessExpiry) {
		return nil, core.ErrTokenExpired
	}

	if session.RefreshID != "" {
		invalidated, err := s.store.IsTokenInvalidated(ctx, session.RefreshID)
		if err != nil {
			return nil, fmt.Errorf("failed to check token invalidation: %w", err)
		}
		if invalidated {
			return nil, core.ErrTokenInvalidated
		}
	}

	return session, nil
}

// AccessTTL returns the lifetime of issued access tokens
func (s *AuthService) AccessTTL() time.Duration {
	return s.accessTTL
}

func (s *AuthService) newSession(address string) *core.Session {
	now := s.clock.Now()
	return &core.Session{
		ID:            uuid.New().String(),
		Address:       address,
		IssuedAt:      now,
		RefreshExpiry: now.Add(s.refreshTTL),
		AccessExpiry:  now.Add(s.accessTTL),
		RefreshID:     uuid.New().String(),
	}
}

func (s *AuthService) issue(session *core.Session) (string, string, error) {
	accessToken, err := s.tokenizer.SessionToAccessToken(session)
	if err != nil {
		return "", "", fmt.Errorf("failed to create access token: %w", err)
	}

	refreshToken, err := s.tokenizer.SessionToRefreshToken(session)
	if err != nil {
		return "", "", fmt.Errorf("failed to create refresh token: %w", err)
	}

	return accessToken, refreshToken, nil
}
