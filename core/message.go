package core

import (
	"fmt"
	"strings"
	"time"
)

const messageTemplate = "Sign this message to authenticate with %s.\nAddress: %s\nNonce: %s\nTimestamp: %s"

// NormalizeAddress returns the canonical store key for an address.
func NormalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// BuildMessage renders the text a wallet signs for a challenge. The output
// depends only on its arguments.
func BuildMessage(app, address, nonce string, issuedAt time.Time) string {
	return fmt.Sprintf(messageTemplate, app, address, nonce, issuedAt.UTC().Format(time.RFC3339))
}
