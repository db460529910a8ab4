package token

import (
	"encoding/binary"

	"github.com/gagliardetto/solana-go"

	"nftstake/core/runtime"
	"nftstake/core/types"
)

// ProgramID is the address the token program is registered under.
var ProgramID = solana.TokenProgramID

const (
	InstructionInitializeMint    uint8 = 0
	InstructionInitializeAccount uint8 = 1
	InstructionTransfer          uint8 = 3
	InstructionMintTo            uint8 = 7
)

// NewInitializeMintInstruction initialises mint with the given decimals and
// mint authority. The mint account must already be allocated to the program.
func NewInitializeMintInstruction(mint, authority solana.PublicKey, decimals uint8) types.Instruction {
	data := make([]byte, 0, 2+solana.PublicKeyLength)
	data = append(data, InstructionInitializeMint, decimals)
	data = append(data, authority[:]...)
	return types.Instruction{
		ProgramID: ProgramID,
		Accounts:  []types.AccountMeta{types.NewAccountMeta(mint, true, false)},
		Data:      data,
	}
}

// NewInitializeAccountInstruction binds account to mint and owner.
func NewInitializeAccountInstruction(account, mint, owner solana.PublicKey) types.Instruction {
	return types.Instruction{
		ProgramID: ProgramID,
		Accounts: []types.AccountMeta{
			types.NewAccountMeta(account, true, false),
			types.NewAccountMeta(mint, false, false),
			types.NewAccountMeta(owner, false, false),
		},
		Data: []byte{InstructionInitializeAccount},
	}
}

// NewTransferInstruction moves amount from source to destination, authorised
// by the source owner.
func NewTransferInstruction(source, destination, owner solana.PublicKey, amount uint64) types.Instruction {
	return types.Instruction{
		ProgramID: ProgramID,
		Accounts: []types.AccountMeta{
			types.NewAccountMeta(source, true, false),
			types.NewAccountMeta(destination, true, false),
			types.NewAccountMeta(owner, false, true),
		},
		Data: amountData(InstructionTransfer, amount),
	}
}

// NewMintToInstruction issues amount new units into destination.
func NewMintToInstruction(mint, destination, authority solana.PublicKey, amount uint64) types.Instruction {
	return types.Instruction{
		ProgramID: ProgramID,
		Accounts: []types.AccountMeta{
			types.NewAccountMeta(mint, true, false),
			types.NewAccountMeta(destination, true, false),
			types.NewAccountMeta(authority, false, true),
		},
		Data: amountData(InstructionMintTo, amount),
	}
}

func amountData(op uint8, amount uint64) []byte {
	return binary.LittleEndian.AppendUint64(append(make([]byte, 0, 9), op), amount)
}

// CreateMintInstructions allocates and initialises a mint in one transaction.
// Both payer and mint must sign it.
func CreateMintInstructions(payer, mint, authority solana.PublicKey, decimals uint8) []types.Instruction {
	return []types.Instruction{
		runtime.NewCreateAccountInstruction(payer, mint, ProgramID, runtime.RentExemptMinimum(MintSize), MintSize),
		NewInitializeMintInstruction(mint, authority, decimals),
	}
}

// CreateTokenAccountInstructions allocates and initialises a token account for
// owner. Both payer and account must sign it.
func CreateTokenAccountInstructions(payer, account, mint, owner solana.PublicKey) []types.Instruction {
	return []types.Instruction{
		runtime.NewCreateAccountInstruction(payer, account, ProgramID, runtime.RentExemptMinimum(AccountSize), AccountSize),
		NewInitializeAccountInstruction(account, mint, owner),
	}
}
