package runtime

import (
	"encoding/binary"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"nftstake/core/types"
)

// SystemProgramID owns every fresh account and is the only program that can
// allocate data and assign ownership.
var SystemProgramID = solana.SystemProgramID

const (
	SystemInstructionCreateAccount uint32 = 0
	SystemInstructionAssign        uint32 = 1
	SystemInstructionTransfer      uint32 = 2

	// MaxAccountDataSize caps the data buffer of a single account.
	MaxAccountDataSize = 10 * 1024 * 1024

	accountStorageOverhead = 128
	lamportsPerByteYear    = 3480
	exemptionThresholdYear = 2
)

// RentExemptMinimum is the balance an account of the given data size must
// hold to be created.
func RentExemptMinimum(space uint64) uint64 {
	return (space + accountStorageOverhead) * lamportsPerByteYear * exemptionThresholdYear
}

// SystemProgram creates accounts, assigns them to programs and moves lamports.
type SystemProgram struct{}

func (SystemProgram) ID() solana.PublicKey { return SystemProgramID }

func (SystemProgram) Name() string { return "system" }

// CreateAccountArgs funds, sizes and assigns a new account.
type CreateAccountArgs struct {
	Lamports uint64
	Space    uint64
	Owner    solana.PublicKey
}

// NewCreateAccountInstruction builds CreateAccount. Both from and newAccount
// must sign; a program-derived newAccount signs through Invoke seeds.
func NewCreateAccountInstruction(from, newAccount, owner solana.PublicKey, lamports, space uint64) types.Instruction {
	data := binary.LittleEndian.AppendUint32(make([]byte, 0, 4+8+8+solana.PublicKeyLength), SystemInstructionCreateAccount)
	data = binary.LittleEndian.AppendUint64(data, lamports)
	data = binary.LittleEndian.AppendUint64(data, space)
	data = append(data, owner[:]...)
	return types.Instruction{
		ProgramID: SystemProgramID,
		Accounts: []types.AccountMeta{
			types.NewAccountMeta(from, true, true),
			types.NewAccountMeta(newAccount, true, true),
		},
		Data: data,
	}
}

// NewTransferInstruction moves lamports between system-owned accounts.
func NewTransferInstruction(from, to solana.PublicKey, lamports uint64) types.Instruction {
	data := binary.LittleEndian.AppendUint32(make([]byte, 0, 4+8), SystemInstructionTransfer)
	data = binary.LittleEndian.AppendUint64(data, lamports)
	return types.Instruction{
		ProgramID: SystemProgramID,
		Accounts: []types.AccountMeta{
			types.NewAccountMeta(from, true, true),
			types.NewAccountMeta(to, true, false),
		},
		Data: data,
	}
}

// NewAssignInstruction reassigns a system-owned, data-less account.
func NewAssignInstruction(account, owner solana.PublicKey) types.Instruction {
	data := binary.LittleEndian.AppendUint32(make([]byte, 0, 4+solana.PublicKeyLength), SystemInstructionAssign)
	data = append(data, owner[:]...)
	return types.Instruction{
		ProgramID: SystemProgramID,
		Accounts:  []types.AccountMeta{types.NewAccountMeta(account, true, true)},
		Data:      data,
	}
}

// Execute dispatches on the little-endian u32 discriminator.
func (p SystemProgram) Execute(ctx *InvokeContext, data []byte) error {
	dec := bin.NewBinDecoder(data)
	discriminator, err := dec.ReadUint32(bin.LE)
	if err != nil {
		return fmt.Errorf("%w: system discriminator: %v", ErrInvalidInstructionData, err)
	}
	switch discriminator {
	case SystemInstructionCreateAccount:
		var args CreateAccountArgs
		if args.Lamports, err = dec.ReadUint64(bin.LE); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidInstructionData, err)
		}
		if args.Space, err = dec.ReadUint64(bin.LE); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidInstructionData, err)
		}
		owner, err := dec.ReadBytes(solana.PublicKeyLength)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidInstructionData, err)
		}
		args.Owner = solana.PublicKeyFromBytes(owner)
		return p.createAccount(ctx, args)
	case SystemInstructionAssign:
		owner, err := dec.ReadBytes(solana.PublicKeyLength)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidInstructionData, err)
		}
		return p.assign(ctx, solana.PublicKeyFromBytes(owner))
	case SystemInstructionTransfer:
		lamports, err := dec.ReadUint64(bin.LE)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidInstructionData, err)
		}
		return p.transfer(ctx, lamports)
	default:
		return fmt.Errorf("%w: unknown system instruction %d", ErrInvalidInstructionData, discriminator)
	}
}

func (SystemProgram) createAccount(ctx *InvokeContext, args CreateAccountArgs) error {
	from, to, err := signedPair(ctx)
	if err != nil {
		return err
	}
	if !to.IsSigner {
		return fmt.Errorf("%w: new account %s", ErrMissingRequiredSignature, to.Key)
	}
	if to.Lamports > 0 || len(to.Data) > 0 || !to.Owner.Equals(SystemProgramID) {
		return fmt.Errorf("%w: %s", ErrAccountAlreadyInUse, to.Key)
	}
	if args.Space > MaxAccountDataSize {
		return fmt.Errorf("%w: %d bytes", ErrAccountDataTooLarge, args.Space)
	}
	if minimum := RentExemptMinimum(args.Space); args.Lamports < minimum {
		return fmt.Errorf("%w: %d lamports below rent-exempt minimum %d", ErrInsufficientFunds, args.Lamports, minimum)
	}
	if err := debit(from, args.Lamports); err != nil {
		return err
	}
	to.Lamports = args.Lamports
	to.Data = make([]byte, args.Space)
	to.Owner = args.Owner
	ctx.Logf("create account %s space=%d owner=%s", to.Key, args.Space, args.Owner)
	return nil
}

func (SystemProgram) assign(ctx *InvokeContext, owner solana.PublicKey) error {
	account, err := ctx.Account(0)
	if err != nil {
		return err
	}
	if !account.IsSigner {
		return fmt.Errorf("%w: %s", ErrMissingRequiredSignature, account.Key)
	}
	if !account.IsWritable {
		return fmt.Errorf("%w: %s", ErrAccountNotWritable, account.Key)
	}
	if !account.Owner.Equals(SystemProgramID) {
		return fmt.Errorf("%w: %s is not system owned", ErrInvalidOwnerChange, account.Key)
	}
	account.Owner = owner
	return nil
}

func (SystemProgram) transfer(ctx *InvokeContext, lamports uint64) error {
	from, to, err := signedPair(ctx)
	if err != nil {
		return err
	}
	if len(from.Data) > 0 {
		return fmt.Errorf("%w: transfer source %s carries data", ErrInvalidAccountData, from.Key)
	}
	if err := debit(from, lamports); err != nil {
		return err
	}
	to.Lamports += lamports
	return nil
}

func signedPair(ctx *InvokeContext) (*AccountInfo, *AccountInfo, error) {
	from, err := ctx.Account(0)
	if err != nil {
		return nil, nil, err
	}
	to, err := ctx.Account(1)
	if err != nil {
		return nil, nil, err
	}
	if !from.IsSigner {
		return nil, nil, fmt.Errorf("%w: %s", ErrMissingRequiredSignature, from.Key)
	}
	if !from.IsWritable || !to.IsWritable {
		return nil, nil, ErrAccountNotWritable
	}
	return from, to, nil
}

func debit(from *AccountInfo, lamports uint64) error {
	if !from.Owner.Equals(SystemProgramID) {
		return fmt.Errorf("%w: %s is not system owned", ErrExternalAccountModified, from.Key)
	}
	if from.Lamports < lamports {
		return fmt.Errorf("%w: %s holds %d, needs %d", ErrInsufficientFunds, from.Key, from.Lamports, lamports)
	}
	from.Lamports -= lamports
	return nil
}
