package token

import (
	"fmt"
	"math"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"nftstake/core/events"
	"nftstake/core/runtime"
)

// Program implements mints and token accounts: the custody primitive every
// NFT and reward movement goes through.
type Program struct{}

// New returns the token program.
func New() *Program { return &Program{} }

func (*Program) ID() solana.PublicKey { return ProgramID }

func (*Program) Name() string { return "token" }

// Execute dispatches on the leading instruction byte.
func (p *Program) Execute(ctx *runtime.InvokeContext, data []byte) error {
	dec := bin.NewBinDecoder(data)
	op, err := dec.ReadUint8()
	if err != nil {
		return fmt.Errorf("%w: empty data", ErrInvalidInstruction)
	}
	switch op {
	case InstructionInitializeMint:
		decimals, err := dec.ReadUint8()
		if err != nil {
			return fmt.Errorf("%w: decimals: %v", ErrInvalidInstruction, err)
		}
		raw, err := dec.ReadBytes(solana.PublicKeyLength)
		if err != nil {
			return fmt.Errorf("%w: authority: %v", ErrInvalidInstruction, err)
		}
		return p.initializeMint(ctx, decimals, solana.PublicKeyFromBytes(raw))
	case InstructionInitializeAccount:
		return p.initializeAccount(ctx)
	case InstructionTransfer, InstructionMintTo:
		amount, err := dec.ReadUint64(bin.LE)
		if err != nil {
			return fmt.Errorf("%w: amount: %v", ErrInvalidInstruction, err)
		}
		if op == InstructionTransfer {
			return p.transfer(ctx, amount)
		}
		return p.mintTo(ctx, amount)
	default:
		return fmt.Errorf("%w: unknown op %d", ErrInvalidInstruction, op)
	}
}

func accounts(ctx *runtime.InvokeContext, n int) ([]*runtime.AccountInfo, error) {
	if ctx.AccountCount() < n {
		return nil, fmt.Errorf("%w: need %d, have %d", ErrNotEnoughAccountKeys, n, ctx.AccountCount())
	}
	out := make([]*runtime.AccountInfo, n)
	for i := range out {
		info, err := ctx.Account(i)
		if err != nil {
			return nil, err
		}
		out[i] = info
	}
	return out, nil
}

func requireProgramOwned(info *runtime.AccountInfo) error {
	if !info.Owner.Equals(ProgramID) {
		return fmt.Errorf("%w: %s", ErrIncorrectProgramID, info.Key)
	}
	return nil
}

func requireWritable(info *runtime.AccountInfo) error {
	if !info.IsWritable {
		return fmt.Errorf("%w: %s", ErrAccountNotWritable, info.Key)
	}
	return nil
}

func loadMint(info *runtime.AccountInfo) (*Mint, error) {
	if err := requireProgramOwned(info); err != nil {
		return nil, err
	}
	mint, err := DecodeMint(info.Data)
	if err != nil {
		return nil, err
	}
	if !mint.IsInitialized {
		return nil, fmt.Errorf("%w: mint %s", ErrUninitializedState, info.Key)
	}
	return mint, nil
}

func loadTokenAccount(info *runtime.AccountInfo) (*TokenAccount, error) {
	if err := requireProgramOwned(info); err != nil {
		return nil, err
	}
	account, err := DecodeTokenAccount(info.Data)
	if err != nil {
		return nil, err
	}
	switch account.State {
	case AccountUninitialized:
		return nil, fmt.Errorf("%w: %s", ErrUninitializedState, info.Key)
	case AccountFrozen:
		return nil, fmt.Errorf("%w: %s", ErrAccountFrozen, info.Key)
	}
	return account, nil
}

func (p *Program) initializeMint(ctx *runtime.InvokeContext, decimals uint8, authority solana.PublicKey) error {
	infos, err := accounts(ctx, 1)
	if err != nil {
		return err
	}
	mintInfo := infos[0]
	if err := requireWritable(mintInfo); err != nil {
		return err
	}
	if err := requireProgramOwned(mintInfo); err != nil {
		return err
	}
	existing, err := DecodeMint(mintInfo.Data)
	if err != nil {
		return err
	}
	if existing.IsInitialized {
		return fmt.Errorf("%w: mint %s", ErrAlreadyInitialized, mintInfo.Key)
	}
	if mintInfo.Lamports < runtime.RentExemptMinimum(MintSize) {
		return fmt.Errorf("%w: mint %s", ErrNotRentExempt, mintInfo.Key)
	}
	data, err := EncodeMint(&Mint{
		MintAuthorityOption: optionSome,
		MintAuthority:       authority,
		Decimals:            decimals,
		IsInitialized:       true,
	})
	if err != nil {
		return err
	}
	mintInfo.Data = data
	ctx.Logf("initialize mint %s decimals=%d", mintInfo.Key, decimals)
	return nil
}

func (p *Program) initializeAccount(ctx *runtime.InvokeContext) error {
	infos, err := accounts(ctx, 3)
	if err != nil {
		return err
	}
	accountInfo, mintInfo, ownerInfo := infos[0], infos[1], infos[2]
	if err := requireWritable(accountInfo); err != nil {
		return err
	}
	if err := requireProgramOwned(accountInfo); err != nil {
		return err
	}
	existing, err := DecodeTokenAccount(accountInfo.Data)
	if err != nil {
		return err
	}
	if existing.State != AccountUninitialized {
		return fmt.Errorf("%w: token account %s", ErrAlreadyInitialized, accountInfo.Key)
	}
	if accountInfo.Lamports < runtime.RentExemptMinimum(AccountSize) {
		return fmt.Errorf("%w: token account %s", ErrNotRentExempt, accountInfo.Key)
	}
	if _, err := loadMint(mintInfo); err != nil {
		return err
	}
	data, err := EncodeTokenAccount(&TokenAccount{
		Mint:  mintInfo.Key,
		Owner: ownerInfo.Key,
		State: AccountInitialized,
	})
	if err != nil {
		return err
	}
	accountInfo.Data = data
	return nil
}

func (p *Program) transfer(ctx *runtime.InvokeContext, amount uint64) error {
	infos, err := accounts(ctx, 3)
	if err != nil {
		return err
	}
	sourceInfo, destInfo, authority := infos[0], infos[1], infos[2]
	if err := requireWritable(sourceInfo); err != nil {
		return err
	}
	if err := requireWritable(destInfo); err != nil {
		return err
	}
	source, err := loadTokenAccount(sourceInfo)
	if err != nil {
		return err
	}
	dest, err := loadTokenAccount(destInfo)
	if err != nil {
		return err
	}
	if !source.Mint.Equals(dest.Mint) {
		return fmt.Errorf("%w: %s vs %s", ErrMintMismatch, source.Mint, dest.Mint)
	}
	if !source.Owner.Equals(authority.Key) {
		return fmt.Errorf("%w: %s does not own %s", ErrOwnerMismatch, authority.Key, sourceInfo.Key)
	}
	if !authority.IsSigner {
		return fmt.Errorf("%w: %s", ErrMissingRequiredSigner, authority.Key)
	}
	if source.Amount < amount {
		return fmt.Errorf("%w: %s holds %d, needs %d", ErrInsufficientFunds, sourceInfo.Key, source.Amount, amount)
	}
	if sourceInfo.Key.Equals(destInfo.Key) {
		return nil
	}
	if dest.Amount > math.MaxUint64-amount {
		return ErrOverflow
	}
	source.Amount -= amount
	dest.Amount += amount
	if sourceInfo.Data, err = EncodeTokenAccount(source); err != nil {
		return err
	}
	if destInfo.Data, err = EncodeTokenAccount(dest); err != nil {
		return err
	}
	ctx.Emit(events.TokenTransferred{
		Mint:        source.Mint,
		Source:      sourceInfo.Key,
		Destination: destInfo.Key,
		Authority:   authority.Key,
		Amount:      amount,
	})
	return nil
}

func (p *Program) mintTo(ctx *runtime.InvokeContext, amount uint64) error {
	infos, err := accounts(ctx, 3)
	if err != nil {
		return err
	}
	mintInfo, destInfo, authority := infos[0], infos[1], infos[2]
	if err := requireWritable(mintInfo); err != nil {
		return err
	}
	if err := requireWritable(destInfo); err != nil {
		return err
	}
	mint, err := loadMint(mintInfo)
	if err != nil {
		return err
	}
	dest, err := loadTokenAccount(destInfo)
	if err != nil {
		return err
	}
	if !dest.Mint.Equals(mintInfo.Key) {
		return fmt.Errorf("%w: %s holds %s", ErrMintMismatch, destInfo.Key, dest.Mint)
	}
	if !mint.HasMintAuthority() {
		return ErrFixedSupply
	}
	if !mint.MintAuthority.Equals(authority.Key) {
		return fmt.Errorf("%w: %s is not the mint authority", ErrOwnerMismatch, authority.Key)
	}
	if !authority.IsSigner {
		return fmt.Errorf("%w: %s", ErrMissingRequiredSigner, authority.Key)
	}
	if mint.Supply > math.MaxUint64-amount || dest.Amount > math.MaxUint64-amount {
		return ErrOverflow
	}
	mint.Supply += amount
	dest.Amount += amount
	if mintInfo.Data, err = EncodeMint(mint); err != nil {
		return err
	}
	if destInfo.Data, err = EncodeTokenAccount(dest); err != nil {
		return err
	}
	ctx.Emit(events.TokenMinted{Mint: mintInfo.Key, Destination: destInfo.Key, Amount: amount, Supply: mint.Supply})
	return nil
}
