package core

import "errors"

var (
	ErrTokenExpired      = errors.New("token has expired")
	ErrTokenInvalidated  = errors.New("token has been invalidated")
	ErrInvalidSignature  = errors.New("invalid signature")
	ErrInvalidToken      = errors.New("invalid token")
	ErrInvalidAddress    = errors.New("invalid ethereum address")
	ErrChallengeNotFound = errors.New("challenge not found")
	ErrStoreUnavailable  = errors.New("store unavailable")
)
