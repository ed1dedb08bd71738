package core

import "time"

// Challenge represents an authentication challenge
type Challenge struct {
	ID        string    `json:"id"`         // Unique identifier for the challenge
	Address   string    `json:"address"`    // Lowercase ethereum address of the user
	Nonce     string    `json:"nonce"`      // Random nonce embedded in the message
	IssuedAt  time.Time `json:"issued_at"`  // When the challenge was created
	ExpiresAt time.Time `json:"expires_at"` // When the challenge expires
	Message   string    `json:"message"`    // Exact text the wallet has to sign
}

// Expired reports whether the challenge is no longer live at now.
func (c *Challenge) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// Session represents an authenticated user session
type Session struct {
	ID            string    // Unique session identifier
	Address       string    // Ethereum address of the user
	IssuedAt      time.Time // When the session was created
	RefreshExpiry time.Time // When the refresh capability expires
	AccessExpiry  time.Time // When the access capability expires
	RefreshID     string    // Unique identifier for the refresh token
}
