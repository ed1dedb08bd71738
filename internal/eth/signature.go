// Package eth holds the Ethereum signing primitives used to authenticate
// wallet owners.
package eth

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// SignatureLength is the size of an R || S || V signature.
const SignatureLength = 65

var ErrMalformedSignature = errors.New("malformed signature")

// DecodeSignature parses a hex signature with or without the 0x prefix and
// normalizes V to 0/1.
func DecodeSignature(signature string) ([]byte, error) {
	signature = strings.TrimSpace(signature)
	if !strings.HasPrefix(signature, "0x") && !strings.HasPrefix(signature, "0X") {
		signature = "0x" + signature
	}
	sig, err := hexutil.Decode(signature)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSignature, err)
	}
	if len(sig) != SignatureLength {
		return nil, fmt.Errorf("%w: signature must be %d bytes, got %d", ErrMalformedSignature, SignatureLength, len(sig))
	}

	switch sig[crypto.RecoveryIDOffset] {
	case 0, 1:
	case 27, 28:
		sig[crypto.RecoveryIDOffset] -= 27
	default:
		return nil, fmt.Errorf("%w: invalid recovery id %d", ErrMalformedSignature, sig[crypto.RecoveryIDOffset])
	}

	return sig, nil
}

// RecoverAddress returns the address that produced signature over message
// using the personal_sign (EIP-191) scheme.
func RecoverAddress(message, signature string) (common.Address, error) {
	sig, err := DecodeSignature(signature)
	if err != nil {
		return common.Address{}, err
	}

	pub, err := crypto.SigToPub(accounts.TextHash([]byte(message)), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to recover public key: %w", err)
	}

	return crypto.PubkeyToAddress(*pub), nil
}

// VerifySignatureAgainstAddress reports whether expected signed message.
func VerifySignatureAgainstAddress(message, signature, expected string) (bool, error) {
	if !common.IsHexAddress(expected) {
		return false, fmt.Errorf("invalid address %q", expected)
	}

	recovered, err := RecoverAddress(message, signature)
	if err != nil {
		return false, err
	}

	return strings.EqualFold(recovered.Hex(), common.HexToAddress(expected).Hex()), nil
}

// SignMessage signs message the way a wallet does for personal_sign. V is
// returned as 27/28.
func SignMessage(message string, key *ecdsa.PrivateKey) (string, error) {
	sig, err := crypto.Sign(accounts.TextHash([]byte(message)), key)
	if err != nil {
		return "", err
	}
	sig[crypto.RecoveryIDOffset] += 27
	return hexutil.Encode(sig), nil
}
