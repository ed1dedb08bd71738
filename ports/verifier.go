package ports

import "context"

// SignatureVerifier decides whether address signed the live challenge message.
// A false result covers every authentication failure; err is reserved for
// infrastructure problems.
type SignatureVerifier interface {
	VerifySignature(ctx context.Context, address, signature, message string) (bool, error)
}
