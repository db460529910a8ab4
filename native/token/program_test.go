package token

import (
	"context"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"

	"nftstake/core/runtime"
	"nftstake/core/state"
	"nftstake/core/types"
	"nftstake/storage"
)

type fixture struct {
	t      *testing.T
	ledger *runtime.Ledger
	payer  solana.PrivateKey
	nonce  uint64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := state.NewStore(storage.NewMemDB())
	require.NoError(t, err)
	ledger := runtime.New(store)
	require.NoError(t, ledger.Register(New()))
	payer := solana.NewWallet().PrivateKey
	require.NoError(t, ledger.Genesis(map[solana.PublicKey]uint64{payer.PublicKey(): 10_000_000_000}))
	return &fixture{t: t, ledger: ledger, payer: payer}
}

func (f *fixture) send(signers []solana.PrivateKey, ixs ...types.Instruction) error {
	f.t.Helper()
	f.nonce++
	tx := types.NewTransaction(f.payer.PublicKey(), f.nonce, ixs...)
	require.NoError(f.t, tx.Sign(append([]solana.PrivateKey{f.payer}, signers...)...))
	_, err := f.ledger.Execute(context.Background(), tx)
	return err
}

func (f *fixture) createMint(authority solana.PublicKey, decimals uint8) solana.PublicKey {
	f.t.Helper()
	mint := solana.NewWallet().PrivateKey
	require.NoError(f.t, f.send([]solana.PrivateKey{mint}, CreateMintInstructions(f.payer.PublicKey(), mint.PublicKey(), authority, decimals)...))
	return mint.PublicKey()
}

func (f *fixture) createAccount(mint, owner solana.PublicKey) solana.PublicKey {
	f.t.Helper()
	account := solana.NewWallet().PrivateKey
	require.NoError(f.t, f.send([]solana.PrivateKey{account}, CreateTokenAccountInstructions(f.payer.PublicKey(), account.PublicKey(), mint, owner)...))
	return account.PublicKey()
}

func (f *fixture) balance(addr solana.PublicKey) uint64 {
	f.t.Helper()
	acc, err := f.ledger.Account(addr)
	require.NoError(f.t, err)
	tokenAcc, err := DecodeTokenAccount(acc.Data)
	require.NoError(f.t, err)
	return tokenAcc.Amount
}

func TestMintAndTransfer(t *testing.T) {
	f := newFixture(t)
	owner := solana.NewWallet().PrivateKey
	mint := f.createMint(f.payer.PublicKey(), 0)
	src := f.createAccount(mint, owner.PublicKey())
	dst := f.createAccount(mint, solana.NewWallet().PublicKey())

	require.NoError(t, f.send(nil, NewMintToInstruction(mint, src, f.payer.PublicKey(), 10)))
	require.Equal(t, uint64(10), f.balance(src))

	mintAcc, err := f.ledger.Account(mint)
	require.NoError(t, err)
	decoded, err := DecodeMint(mintAcc.Data)
	require.NoError(t, err)
	require.Equal(t, uint64(10), decoded.Supply)
	require.Equal(t, ProgramID, mintAcc.Owner)

	require.NoError(t, f.send([]solana.PrivateKey{owner}, NewTransferInstruction(src, dst, owner.PublicKey(), 4)))
	require.Equal(t, uint64(6), f.balance(src))
	require.Equal(t, uint64(4), f.balance(dst))
}

func TestTransferFailuresLeaveBalances(t *testing.T) {
	f := newFixture(t)
	owner := solana.NewWallet().PrivateKey
	mint := f.createMint(f.payer.PublicKey(), 0)
	otherMint := f.createMint(f.payer.PublicKey(), 0)
	src := f.createAccount(mint, owner.PublicKey())
	dst := f.createAccount(mint, f.payer.PublicKey())
	foreign := f.createAccount(otherMint, f.payer.PublicKey())
	require.NoError(t, f.send(nil, NewMintToInstruction(mint, src, f.payer.PublicKey(), 1)))

	err := f.send([]solana.PrivateKey{owner}, NewTransferInstruction(src, dst, owner.PublicKey(), 2))
	require.ErrorIs(t, err, ErrInsufficientFunds)

	err = f.send(nil, NewTransferInstruction(src, dst, f.payer.PublicKey(), 1))
	require.ErrorIs(t, err, ErrOwnerMismatch)

	err = f.send([]solana.PrivateKey{owner}, NewTransferInstruction(src, foreign, owner.PublicKey(), 1))
	require.ErrorIs(t, err, ErrMintMismatch)

	require.Equal(t, uint64(1), f.balance(src))
	require.Equal(t, uint64(0), f.balance(dst))
}

func TestMintToRequiresAuthority(t *testing.T) {
	f := newFixture(t)
	mint := f.createMint(f.payer.PublicKey(), 6)
	dst := f.createAccount(mint, f.payer.PublicKey())
	impostor := solana.NewWallet().PrivateKey

	err := f.send([]solana.PrivateKey{impostor}, NewMintToInstruction(mint, dst, impostor.PublicKey(), 5))
	require.ErrorIs(t, err, ErrOwnerMismatch)
}

func TestInitializeTwiceFails(t *testing.T) {
	f := newFixture(t)
	mint := f.createMint(f.payer.PublicKey(), 0)
	err := f.send(nil, NewInitializeMintInstruction(mint, f.payer.PublicKey(), 0))
	require.ErrorIs(t, err, ErrAlreadyInitialized)

	account := f.createAccount(mint, f.payer.PublicKey())
	err = f.send(nil, NewInitializeAccountInstruction(account, mint, f.payer.PublicKey()))
	require.ErrorIs(t, err, ErrAlreadyInitialized)
}

func TestLayoutSizes(t *testing.T) {
	data, err := EncodeMint(&Mint{IsInitialized: true, Supply: 3})
	require.NoError(t, err)
	require.Len(t, data, MintSize)

	data, err = EncodeTokenAccount(&TokenAccount{State: AccountInitialized, Amount: 9})
	require.NoError(t, err)
	require.Len(t, data, AccountSize)
	decoded, err := DecodeTokenAccount(data)
	require.NoError(t, err)
	require.Equal(t, uint64(9), decoded.Amount)

	_, err = DecodeMint([]byte{1, 2})
	require.ErrorIs(t, err, ErrInvalidAccountData)
}

func TestInstructionDataLayout(t *testing.T) {
	mint := solana.NewWallet().PublicKey()
	authority := solana.NewWallet().PublicKey()

	initMint := NewInitializeMintInstruction(mint, authority, 6).Data
	require.Equal(t, []byte{InstructionInitializeMint, 6}, initMint[:2])
	require.Equal(t, authority[:], initMint[2:])

	mintTo := NewMintToInstruction(mint, solana.NewWallet().PublicKey(), authority, 0x0102).Data
	require.Equal(t, []byte{InstructionMintTo, 0x02, 0x01, 0, 0, 0, 0, 0, 0}, mintTo)

	transfer := NewTransferInstruction(solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey(), authority, 1).Data
	require.Equal(t, []byte{InstructionTransfer, 1, 0, 0, 0, 0, 0, 0, 0}, transfer)
}
