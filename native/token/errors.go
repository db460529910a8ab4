package token

import "errors"

var (
	ErrInvalidInstruction    = errors.New("token: invalid instruction")
	ErrInvalidAccountData    = errors.New("token: invalid account data")
	ErrIncorrectProgramID    = errors.New("token: account not owned by token program")
	ErrAlreadyInitialized    = errors.New("token: account already initialized")
	ErrUninitializedState    = errors.New("token: account not initialized")
	ErrNotRentExempt         = errors.New("token: account not rent exempt")
	ErrOwnerMismatch         = errors.New("token: owner does not match")
	ErrMintMismatch          = errors.New("token: account mint mismatch")
	ErrFixedSupply           = errors.New("token: mint has no authority")
	ErrInsufficientFunds     = errors.New("token: insufficient funds")
	ErrOverflow              = errors.New("token: amount overflow")
	ErrAccountFrozen         = errors.New("token: account frozen")
	ErrMissingRequiredSigner = errors.New("token: missing required signature")
	ErrAccountNotWritable    = errors.New("token: account not writable")
	ErrNotEnoughAccountKeys  = errors.New("token: not enough account keys")
)
