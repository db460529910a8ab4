package crypto

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// ErrDerivationMismatch is returned when seeds and bump do not re-derive the
// expected program address.
var ErrDerivationMismatch = errors.New("crypto: program address derivation mismatch")

// FindProgramAddress searches bumps from 255 downwards for the first seed
// combination that hashes to a point off the ed25519 curve. The returned
// address therefore has no private key and can only sign through its program.
func FindProgramAddress(seeds [][]byte, programID solana.PublicKey) (solana.PublicKey, uint8, error) {
	addr, bump, err := solana.FindProgramAddress(seeds, programID)
	if err != nil {
		return solana.PublicKey{}, 0, fmt.Errorf("crypto: find program address: %w", err)
	}
	return addr, bump, nil
}

// CreateProgramAddress derives the address for a complete seed list, the bump
// included as the final seed.
func CreateProgramAddress(seeds [][]byte, programID solana.PublicKey) (solana.PublicKey, error) {
	return solana.CreateProgramAddress(seeds, programID)
}

// WithBump returns a copy of seeds with the bump appended.
func WithBump(seeds [][]byte, bump uint8) [][]byte {
	out := make([][]byte, 0, len(seeds)+1)
	out = append(out, seeds...)
	return append(out, []byte{bump})
}

// VerifyProgramAddress checks that seeds plus bump derive expected under
// programID.
func VerifyProgramAddress(seeds [][]byte, bump uint8, programID, expected solana.PublicKey) error {
	derived, err := solana.CreateProgramAddress(WithBump(seeds, bump), programID)
	if err != nil {
		return fmt.Errorf("%w: bump %d: %v", ErrDerivationMismatch, bump, err)
	}
	if !derived.Equals(expected) {
		return fmt.Errorf("%w: bump %d derives %s, want %s", ErrDerivationMismatch, bump, derived, expected)
	}
	return nil
}
