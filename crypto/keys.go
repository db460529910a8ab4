package crypto

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/gagliardetto/solana-go"
)

// ErrInvalidAddress is returned when an address string cannot be decoded.
var ErrInvalidAddress = errors.New("crypto: invalid address")

// GeneratePrivateKey returns a fresh ed25519 signing key.
func GeneratePrivateKey() (solana.PrivateKey, error) {
	key, err := solana.NewRandomPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("crypto: generate key: %w", err)
	}
	return key, nil
}

// Sign produces an ed25519 signature over msg.
func Sign(key solana.PrivateKey, msg []byte) (solana.Signature, error) {
	if len(key) != ed25519.PrivateKeySize {
		return solana.Signature{}, errors.New("crypto: invalid private key length")
	}
	return key.Sign(msg)
}

// Verify reports whether sig is a valid signature of msg by pub.
func Verify(pub solana.PublicKey, msg []byte, sig solana.Signature) bool {
	return ed25519.Verify(ed25519.PublicKey(pub[:]), msg, sig[:])
}

// ParseAddress decodes a base58 address, tolerating surrounding whitespace.
func ParseAddress(raw string) (solana.PublicKey, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return solana.PublicKey{}, fmt.Errorf("%w: empty", ErrInvalidAddress)
	}
	pk, err := solana.PublicKeyFromBase58(trimmed)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	return pk, nil
}

// NativeProgramID derives the well-known id of a built-in program from its
// name. The id is a hash, so it has no corresponding private key.
func NativeProgramID(name string) solana.PublicKey {
	return solana.PublicKeyFromBytes(ethcrypto.Keccak256([]byte("nftstake/program/" + name)))
}
