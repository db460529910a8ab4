package staking

import (
	"errors"
	"fmt"

	"nftstake/crypto"
)

// Error classes. Every error returned by the program wraps exactly one of
// these, so callers can test the class with errors.Is.
var (
	ErrPreconditionViolation = errors.New("staking: precondition violation")
	ErrDerivationMismatch    = crypto.ErrDerivationMismatch
	ErrInsufficientCustody   = errors.New("staking: insufficient custody")
	ErrCapacityExceeded      = errors.New("staking: capacity exceeded")
)

var (
	ErrInvalidInstruction     = fmt.Errorf("%w: invalid instruction data", ErrPreconditionViolation)
	ErrMissingSigner          = fmt.Errorf("%w: missing required signer", ErrPreconditionViolation)
	ErrAccountNotWritable     = fmt.Errorf("%w: account not writable", ErrPreconditionViolation)
	ErrAlreadyInitialized     = fmt.Errorf("%w: account already initialized", ErrPreconditionViolation)
	ErrNotInitialized         = fmt.Errorf("%w: account not initialized", ErrPreconditionViolation)
	ErrInvalidAccountOwner    = fmt.Errorf("%w: account has unexpected owner", ErrPreconditionViolation)
	ErrInvalidProgram         = fmt.Errorf("%w: unexpected program account", ErrPreconditionViolation)
	ErrInvalidAccountData     = fmt.Errorf("%w: malformed account data", ErrPreconditionViolation)
	ErrUnauthorized           = fmt.Errorf("%w: signer is not the pool owner", ErrPreconditionViolation)
	ErrNotAdmin               = fmt.Errorf("%w: signer is not the admin", ErrPreconditionViolation)
	ErrInvalidStakeMode       = fmt.Errorf("%w: invalid stake mode", ErrPreconditionViolation)
	ErrInvalidCapacity        = fmt.Errorf("%w: invalid pool capacity", ErrPreconditionViolation)
	ErrInvalidRewardConfig    = fmt.Errorf("%w: invalid reward config", ErrPreconditionViolation)
	ErrInvalidMint            = fmt.Errorf("%w: mint is not a non-fungible token", ErrPreconditionViolation)
	ErrInvalidTokenAccount    = fmt.Errorf("%w: token account does not match mint or owner", ErrPreconditionViolation)
	ErrSlotOutOfRange         = fmt.Errorf("%w: slot index out of range", ErrPreconditionViolation)
	ErrSlotOccupied           = fmt.Errorf("%w: slot already occupied", ErrPreconditionViolation)
	ErrNftNotStaked           = fmt.Errorf("%w: mint is not staked in this pool", ErrPreconditionViolation)
	ErrLockPeriodActive       = fmt.Errorf("%w: lock period has not elapsed", ErrPreconditionViolation)
	ErrNothingToClaim         = fmt.Errorf("%w: pool has no staked NFT or pending reward", ErrPreconditionViolation)
	ErrPoolNotEmpty           = fmt.Errorf("%w: pool still holds NFTs or reward", ErrPreconditionViolation)
	ErrArithmeticOverflow     = fmt.Errorf("%w: arithmetic overflow", ErrPreconditionViolation)
	ErrGlobalMismatch         = fmt.Errorf("%w: global authority", ErrDerivationMismatch)
	ErrPoolMismatch           = fmt.Errorf("%w: user pool", ErrDerivationMismatch)
	ErrEscrowMismatch         = fmt.Errorf("%w: escrow account", ErrDerivationMismatch)
	ErrRewardVaultMismatch    = fmt.Errorf("%w: reward vault", ErrDerivationMismatch)
	ErrInsufficientNft        = fmt.Errorf("%w: source account holds no unit of the NFT", ErrInsufficientCustody)
	ErrInsufficientEscrow     = fmt.Errorf("%w: escrow does not hold the NFT", ErrInsufficientCustody)
	ErrInsufficientRewardPool = fmt.Errorf("%w: reward vault balance too low", ErrInsufficientCustody)
	ErrPoolFull               = fmt.Errorf("%w: every slot is occupied", ErrCapacityExceeded)
)
