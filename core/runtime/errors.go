package runtime

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

var (
	ErrDuplicateTransaction     = errors.New("runtime: transaction already processed")
	ErrNotAdmitted              = errors.New("runtime: transaction not admitted")
	ErrUnknownProgram           = errors.New("runtime: unknown program")
	ErrProgramRegistered        = errors.New("runtime: program already registered")
	ErrMissingRequiredSignature = errors.New("runtime: missing required signature")
	ErrAccountNotWritable       = errors.New("runtime: account not writable")
	ErrAccountAlreadyInUse      = errors.New("runtime: account already in use")
	ErrReadonlyModified         = errors.New("runtime: read-only account modified")
	ErrExternalAccountModified  = errors.New("runtime: account modified by a program that does not own it")
	ErrInvalidOwnerChange       = errors.New("runtime: invalid account owner change")
	ErrUnbalancedInstruction    = errors.New("runtime: instruction changed total lamports")
	ErrInvalidSeeds             = errors.New("runtime: invalid program signer seeds")
	ErrPrivilegeEscalation      = errors.New("runtime: cross-program privilege escalation")
	ErrCallDepth                = errors.New("runtime: call depth exceeded")
	ErrReentrancy               = errors.New("runtime: reentrant program invocation")
	ErrMissingAccount           = errors.New("runtime: account not provided to instruction")
	ErrNotEnoughAccountKeys     = errors.New("runtime: not enough account keys")
	ErrInsufficientFunds        = errors.New("runtime: insufficient lamports")
	ErrInvalidInstructionData   = errors.New("runtime: invalid instruction data")
	ErrInvalidAccountData       = errors.New("runtime: invalid account data")
	ErrAccountDataTooLarge      = errors.New("runtime: account data too large")
	ErrGenesisApplied           = errors.New("runtime: genesis already applied")
)

// InstructionError reports which top-level instruction aborted a transaction.
type InstructionError struct {
	Index   int
	Program solana.PublicKey
	Err     error
}

func (e *InstructionError) Error() string {
	return fmt.Sprintf("instruction %d (program %s): %v", e.Index, e.Program, e.Err)
}

func (e *InstructionError) Unwrap() error { return e.Err }
