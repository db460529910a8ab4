package staking

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"

	"nftstake/core/events"
	"nftstake/core/runtime"
	"nftstake/core/state"
	"nftstake/core/types"
	"nftstake/crypto"
	"nftstake/native/token"
	"nftstake/storage"
)

const (
	genesisTime  int64  = 1_700_000_000
	vaultFunding uint64 = 1_000_000_000
)

type fixture struct {
	t          *testing.T
	ledger     *runtime.Ledger
	bus        *events.Bus
	admin      solana.PrivateKey
	rewardMint solana.PublicKey
	deployment *Deployment
	clock      atomic.Int64
	nonce      atomic.Uint64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := state.NewStore(storage.NewMemDB())
	require.NoError(t, err)
	f := &fixture{
		t:      t,
		ledger: runtime.New(store),
		bus:    events.NewBus(),
		admin:  solana.NewWallet().PrivateKey,
	}
	f.clock.Store(genesisTime)
	f.ledger.SetNowFunc(f.clock.Load)
	f.ledger.SetEmitter(f.bus)
	require.NoError(t, f.ledger.Register(token.New()))
	require.NoError(t, f.ledger.Register(New()))
	require.NoError(t, f.ledger.Genesis(map[solana.PublicKey]uint64{f.admin.PublicKey(): 1_000_000_000_000}))

	f.rewardMint = f.createMint(f.admin.PublicKey(), 6)
	f.deployment, err = NewDeployment(f.rewardMint)
	require.NoError(t, err)
	_, err = f.send(f.admin, nil, f.deployment.Initialize(f.admin.PublicKey(), DefaultRewardConfig()))
	require.NoError(t, err)
	_, err = f.send(f.admin, nil, token.NewMintToInstruction(f.rewardMint, f.deployment.RewardVault, f.admin.PublicKey(), vaultFunding))
	require.NoError(t, err)
	return f
}

func (f *fixture) advance(seconds int64) { f.clock.Add(seconds) }

// send signs with payer and extra and executes. It does not use require so it
// is safe to call from worker goroutines.
func (f *fixture) send(payer solana.PrivateKey, extra []solana.PrivateKey, ixs ...types.Instruction) (*runtime.Receipt, error) {
	tx := types.NewTransaction(payer.PublicKey(), f.nonce.Add(1), ixs...)
	if err := tx.Sign(append([]solana.PrivateKey{payer}, extra...)...); err != nil {
		return nil, err
	}
	return f.ledger.Execute(context.Background(), tx)
}

func (f *fixture) newUser() solana.PrivateKey {
	f.t.Helper()
	user := solana.NewWallet().PrivateKey
	_, err := f.ledger.Airdrop(context.Background(), user.PublicKey(), 10_000_000_000)
	require.NoError(f.t, err)
	return user
}

func (f *fixture) createMint(authority solana.PublicKey, decimals uint8) solana.PublicKey {
	f.t.Helper()
	mint := solana.NewWallet().PrivateKey
	_, err := f.send(f.admin, []solana.PrivateKey{mint}, token.CreateMintInstructions(f.admin.PublicKey(), mint.PublicKey(), authority, decimals)...)
	require.NoError(f.t, err)
	return mint.PublicKey()
}

func (f *fixture) createTokenAccount(mint, owner solana.PublicKey) solana.PublicKey {
	f.t.Helper()
	account := solana.NewWallet().PrivateKey
	_, err := f.send(f.admin, []solana.PrivateKey{account}, token.CreateTokenAccountInstructions(f.admin.PublicKey(), account.PublicKey(), mint, owner)...)
	require.NoError(f.t, err)
	return account.PublicKey()
}

// mintNft creates a zero-decimal mint with supply units held by owner.
func (f *fixture) mintNft(owner solana.PublicKey, supply uint64) (mint, account solana.PublicKey) {
	f.t.Helper()
	mint = f.createMint(f.admin.PublicKey(), 0)
	account = f.createTokenAccount(mint, owner)
	_, err := f.send(f.admin, nil, token.NewMintToInstruction(mint, account, f.admin.PublicKey(), supply))
	require.NoError(f.t, err)
	return mint, account
}

func (f *fixture) initPool(user solana.PrivateKey, mode StakeMode, capacity uint8) solana.PublicKey {
	f.t.Helper()
	ix, pool, err := f.deployment.InitUserPool(user.PublicKey(), solana.NewWallet().PublicKey(), mode, capacity)
	require.NoError(f.t, err)
	_, err = f.send(user, nil, ix)
	require.NoError(f.t, err)
	return pool
}

func (f *fixture) stake(user solana.PrivateKey, pool, source, mint solana.PublicKey, slot uint8) (*runtime.Receipt, error) {
	ix, err := f.deployment.StakeNft(user.PublicKey(), pool, source, mint, slot)
	if err != nil {
		return nil, err
	}
	return f.send(user, nil, ix)
}

func (f *fixture) unstake(user solana.PrivateKey, pool, dest, mint solana.PublicKey) (*runtime.Receipt, error) {
	ix, err := f.deployment.UnstakeNft(user.PublicKey(), pool, dest, mint)
	if err != nil {
		return nil, err
	}
	return f.send(user, nil, ix)
}

func (f *fixture) claim(user solana.PrivateKey, pool, dest solana.PublicKey) (*runtime.Receipt, error) {
	return f.send(user, nil, f.deployment.ClaimReward(user.PublicKey(), pool, dest))
}

func (f *fixture) balance(addr solana.PublicKey) uint64 {
	f.t.Helper()
	acc, err := f.ledger.Account(addr)
	require.NoError(f.t, err)
	if acc.IsEmpty() {
		return 0
	}
	decoded, err := token.DecodeTokenAccount(acc.Data)
	require.NoError(f.t, err)
	return decoded.Amount
}

func (f *fixture) lamports(addr solana.PublicKey) uint64 {
	f.t.Helper()
	acc, err := f.ledger.Account(addr)
	require.NoError(f.t, err)
	return acc.Lamports
}

func (f *fixture) pool(addr solana.PublicKey) *UserPool {
	f.t.Helper()
	acc, err := f.ledger.Account(addr)
	require.NoError(f.t, err)
	require.Equal(f.t, ProgramID, acc.Owner)
	pool, err := DecodeUserPool(acc.Data)
	require.NoError(f.t, err)
	return pool
}

func (f *fixture) global() *GlobalAuthority {
	f.t.Helper()
	acc, err := f.ledger.Account(f.deployment.Global)
	require.NoError(f.t, err)
	global, err := DecodeGlobalAuthority(acc.Data)
	require.NoError(f.t, err)
	return global
}

func (f *fixture) escrow(mint solana.PublicKey) solana.PublicKey {
	f.t.Helper()
	addr, _, err := EscrowAddress(mint)
	require.NoError(f.t, err)
	return addr
}

func eventTypes(receipt *runtime.Receipt) []string {
	out := make([]string, 0, len(receipt.Events))
	for _, evt := range receipt.Events {
		out = append(out, evt.Type)
	}
	return out
}

func TestInitializeCreatesGlobalAndVault(t *testing.T) {
	f := newFixture(t)

	global := f.global()
	require.Equal(t, f.deployment.GlobalBump, global.Bump)
	require.Equal(t, f.admin.PublicKey(), global.Admin)
	require.Equal(t, f.rewardMint, global.RewardMint)
	require.Equal(t, f.deployment.RewardVault, global.RewardVault)
	require.Equal(t, DefaultRewardConfig(), global.Config)
	require.Zero(t, global.TotalStaked)

	acc, err := f.ledger.Account(f.deployment.RewardVault)
	require.NoError(t, err)
	require.Equal(t, token.ProgramID, acc.Owner)
	vault, err := token.DecodeTokenAccount(acc.Data)
	require.NoError(t, err)
	require.Equal(t, f.deployment.Global, vault.Owner)
	require.Equal(t, f.rewardMint, vault.Mint)
	require.Equal(t, vaultFunding, vault.Amount)

	_, err = f.send(f.admin, nil, f.deployment.Initialize(f.admin.PublicKey(), DefaultRewardConfig()))
	require.ErrorIs(t, err, ErrAlreadyInitialized)
	require.ErrorIs(t, err, ErrPreconditionViolation)
}

func TestInitUserPool(t *testing.T) {
	f := newFixture(t)
	user := f.newUser()
	discriminator := solana.NewWallet().PublicKey()

	ix, poolAddr, err := f.deployment.InitUserPool(user.PublicKey(), discriminator, ModePassive7, DefaultPoolCapacity)
	require.NoError(t, err)
	receipt, err := f.send(user, nil, ix)
	require.NoError(t, err)
	require.Contains(t, eventTypes(receipt), events.TypeStakePoolInitialized)

	pool := f.pool(poolAddr)
	require.Equal(t, user.PublicKey(), pool.Owner)
	require.Equal(t, discriminator, pool.Discriminator)
	require.Equal(t, ModePassive7, pool.Mode)
	require.Equal(t, uint8(DefaultPoolCapacity), pool.Capacity)
	require.Zero(t, pool.ItemCount)
	require.Zero(t, pool.RewardAmount)
	require.Equal(t, genesisTime, pool.CreatedAt)
	require.Len(t, pool.Slots, DefaultPoolCapacity)
	for _, slot := range pool.Slots {
		require.True(t, slot.IsZero())
	}

	acc, err := f.ledger.Account(poolAddr)
	require.NoError(t, err)
	require.Len(t, acc.Data, UserPoolSize(DefaultPoolCapacity))

	_, err = f.send(user, nil, ix)
	require.ErrorIs(t, err, ErrAlreadyInitialized)
}

func TestInitUserPoolRejectsBadArguments(t *testing.T) {
	f := newFixture(t)
	user := f.newUser()
	discriminator := solana.NewWallet().PublicKey()
	poolAddr, bump, err := UserPoolAddress(user.PublicKey(), discriminator)
	require.NoError(t, err)

	cases := []struct {
		name string
		args InitUserPoolArgs
		want error
	}{
		{"wrong bump", InitUserPoolArgs{Discriminator: discriminator, Bump: bump - 1, Capacity: 4}, ErrPoolMismatch},
		{"other discriminator", InitUserPoolArgs{Discriminator: solana.NewWallet().PublicKey(), Bump: bump, Capacity: 4}, ErrDerivationMismatch},
		{"zero capacity", InitUserPoolArgs{Discriminator: discriminator, Bump: bump}, ErrInvalidCapacity},
		{"capacity above maximum", InitUserPoolArgs{Discriminator: discriminator, Bump: bump, Capacity: MaxPoolCapacity + 1}, ErrInvalidCapacity},
		{"unknown mode", InitUserPoolArgs{Discriminator: discriminator, Bump: bump, Mode: 3, Capacity: 4}, ErrInvalidStakeMode},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.send(user, nil, NewInitUserPoolInstruction(user.PublicKey(), poolAddr, tc.args))
			require.ErrorIs(t, err, tc.want)
		})
	}

	acc, err := f.ledger.Account(poolAddr)
	require.NoError(t, err)
	require.True(t, acc.IsEmpty())
}

// offCurveBumpBelow returns the highest bump under canonical that still
// derives a valid program address for the pool seeds.
func offCurveBumpBelow(t *testing.T, owner, discriminator solana.PublicKey, canonical uint8) (uint8, solana.PublicKey) {
	t.Helper()
	seeds := userPoolSeeds(owner, discriminator)
	for b := int(canonical) - 1; b >= 0; b-- {
		addr, err := crypto.CreateProgramAddress(crypto.WithBump(seeds, uint8(b)), ProgramID)
		if err == nil {
			return uint8(b), addr
		}
	}
	t.Fatal("no off-curve bump below the canonical one")
	return 0, solana.PublicKey{}
}

func TestInitUserPoolRejectsNonCanonicalBump(t *testing.T) {
	f := newFixture(t)
	user := f.newUser()
	discriminator := solana.NewWallet().PublicKey()
	canonicalAddr, canonical, err := UserPoolAddress(user.PublicKey(), discriminator)
	require.NoError(t, err)
	bump, addr := offCurveBumpBelow(t, user.PublicKey(), discriminator, canonical)
	require.NotEqual(t, canonicalAddr, addr)

	args := InitUserPoolArgs{Discriminator: discriminator, Bump: bump, Mode: ModeActive, Capacity: 4}
	_, err = f.send(user, nil, NewInitUserPoolInstruction(user.PublicKey(), addr, args))
	require.ErrorIs(t, err, ErrPoolMismatch)
	acc, err := f.ledger.Account(addr)
	require.NoError(t, err)
	require.True(t, acc.IsEmpty())

	// The canonical pool can still be created, and only once.
	ix, pool, err := f.deployment.InitUserPool(user.PublicKey(), discriminator, ModeActive, 4)
	require.NoError(t, err)
	require.Equal(t, canonicalAddr, pool)
	_, err = f.send(user, nil, ix)
	require.NoError(t, err)
	_, err = f.send(user, nil, NewInitUserPoolInstruction(user.PublicKey(), addr, args))
	require.ErrorIs(t, err, ErrPoolMismatch)
}

func TestStakeMovesExactlyOneUnitIntoEscrow(t *testing.T) {
	f := newFixture(t)
	user := f.newUser()
	pool := f.initPool(user, ModeActive, 4)
	mint, source := f.mintNft(user.PublicKey(), 1)

	receipt, err := f.stake(user, pool, source, mint, AnySlot)
	require.NoError(t, err)
	require.Contains(t, eventTypes(receipt), events.TypeStakeNftStaked)
	require.Contains(t, eventTypes(receipt), events.TypeTokenTransferred)

	require.Zero(t, f.balance(source))
	require.Equal(t, uint64(1), f.balance(f.escrow(mint)))

	acc, err := f.ledger.Account(f.escrow(mint))
	require.NoError(t, err)
	escrow, err := token.DecodeTokenAccount(acc.Data)
	require.NoError(t, err)
	require.Equal(t, f.deployment.Global, escrow.Owner)

	state := f.pool(pool)
	require.Equal(t, uint8(1), state.ItemCount)
	require.Equal(t, Slot{Occupied: true, Mint: mint, StakedAt: genesisTime, AccruedFrom: genesisTime}, state.Slots[0])
	require.Equal(t, uint64(1), f.global().TotalStaked)
}

func TestStakeRejections(t *testing.T) {
	f := newFixture(t)
	user := f.newUser()
	other := f.newUser()
	pool := f.initPool(user, ModeActive, 2)
	staked, stakedSource := f.mintNft(user.PublicKey(), 1)
	_, err := f.stake(user, pool, stakedSource, staked, 0)
	require.NoError(t, err)
	mint, source := f.mintNft(user.PublicKey(), 1)
	fungible := f.createMint(f.admin.PublicKey(), 2)
	fungibleSource := f.createTokenAccount(fungible, user.PublicKey())
	_, err = f.send(f.admin, nil, token.NewMintToInstruction(fungible, fungibleSource, f.admin.PublicKey(), 100))
	require.NoError(t, err)

	feed, cancel := f.bus.Subscribe("test", 16)
	defer cancel()

	_, err = f.stake(user, pool, stakedSource, staked, AnySlot)
	require.ErrorIs(t, err, ErrInsufficientCustody)

	_, err = f.stake(user, pool, source, mint, 0)
	require.ErrorIs(t, err, ErrSlotOccupied)

	_, err = f.stake(user, pool, source, mint, 2)
	require.ErrorIs(t, err, ErrSlotOutOfRange)

	ix, err := f.deployment.StakeNft(other.PublicKey(), pool, source, mint, AnySlot)
	require.NoError(t, err)
	_, err = f.send(other, nil, ix)
	require.ErrorIs(t, err, ErrUnauthorized)

	ix, err = f.deployment.StakeNft(user.PublicKey(), pool, source, mint, AnySlot)
	require.NoError(t, err)
	ix.Data[discriminatorSize] = f.deployment.GlobalBump - 1
	_, err = f.send(user, nil, ix)
	require.ErrorIs(t, err, ErrDerivationMismatch)

	_, err = f.stake(user, pool, fungibleSource, fungible, AnySlot)
	require.ErrorIs(t, err, ErrInvalidMint)

	require.Equal(t, uint64(1), f.balance(source))
	require.Equal(t, uint8(1), f.pool(pool).ItemCount)
	require.Equal(t, uint64(1), f.global().TotalStaked)
	require.Len(t, feed, 0)
}

func TestStakeIntoFullPoolIsCapacityExceeded(t *testing.T) {
	f := newFixture(t)
	user := f.newUser()
	pool := f.initPool(user, ModeActive, 2)
	for i := 0; i < 2; i++ {
		mint, source := f.mintNft(user.PublicKey(), 1)
		_, err := f.stake(user, pool, source, mint, AnySlot)
		require.NoError(t, err)
	}

	mint, source := f.mintNft(user.PublicKey(), 1)
	_, err := f.stake(user, pool, source, mint, AnySlot)
	require.ErrorIs(t, err, ErrCapacityExceeded)
	require.True(t, errors.Is(err, ErrPoolFull))
	require.Equal(t, uint64(1), f.balance(source))
	require.Equal(t, uint8(2), f.pool(pool).ItemCount)
}

func TestTenSlotScenario(t *testing.T) {
	f := newFixture(t)
	user := f.newUser()
	pool := f.initPool(user, ModeActive, 10)
	mint, source := f.mintNft(user.PublicKey(), 10)
	rewards := f.createTokenAccount(f.rewardMint, user.PublicKey())

	for i := 0; i < 10; i++ {
		_, err := f.stake(user, pool, source, mint, AnySlot)
		require.NoError(t, err)
	}
	require.Zero(t, f.balance(source))
	require.Equal(t, uint64(10), f.balance(f.escrow(mint)))
	require.Equal(t, uint64(10), f.global().TotalStaked)

	f.advance(100)
	receipt, err := f.claim(user, pool, rewards)
	require.NoError(t, err)
	require.Contains(t, eventTypes(receipt), events.TypeStakeRewardClaimed)

	rate := DefaultRewardConfig().RewardRates[ModeActive]
	require.Equal(t, 10*rate*100, f.balance(rewards))
	require.Equal(t, vaultFunding-10*rate*100, f.balance(f.deployment.RewardVault))
	state := f.pool(pool)
	require.Equal(t, 10*rate*100, state.TotalClaimed)
	require.Zero(t, state.RewardAmount)
	require.Equal(t, genesisTime+100, state.LastClaimedAt)
	for _, slot := range state.Slots {
		require.Equal(t, rate*100, slot.RewardAmount)
		require.Equal(t, genesisTime+100, slot.AccruedFrom)
	}

	_, err = f.unstake(user, pool, source, mint)
	require.NoError(t, err)
	require.Equal(t, uint64(1), f.balance(source))
	require.Equal(t, uint64(9), f.balance(f.escrow(mint)))
	state = f.pool(pool)
	require.Equal(t, uint8(9), state.ItemCount)
	require.True(t, state.Slots[0].IsZero())
	require.Equal(t, uint64(9), f.global().TotalStaked)
}

func TestClaimDoesNotDoubleAccrue(t *testing.T) {
	f := newFixture(t)
	user := f.newUser()
	pool := f.initPool(user, ModePassive30, 3)
	mint, source := f.mintNft(user.PublicKey(), 1)
	rewards := f.createTokenAccount(f.rewardMint, user.PublicKey())
	_, err := f.stake(user, pool, source, mint, AnySlot)
	require.NoError(t, err)

	rate := DefaultRewardConfig().RewardRates[ModePassive30]
	f.advance(50)
	_, err = f.claim(user, pool, rewards)
	require.NoError(t, err)
	require.Equal(t, 50*rate, f.balance(rewards))

	receipt, err := f.claim(user, pool, rewards)
	require.NoError(t, err)
	require.Equal(t, "0", receipt.Events[len(receipt.Events)-1].Attributes["amount"])
	require.Equal(t, 50*rate, f.balance(rewards))

	f.advance(10)
	_, err = f.claim(user, pool, rewards)
	require.NoError(t, err)
	require.Equal(t, 60*rate, f.balance(rewards))
	require.Equal(t, 60*rate, f.pool(pool).TotalClaimed)
}

func TestClaimRequiresStakeOrPendingReward(t *testing.T) {
	f := newFixture(t)
	user := f.newUser()
	pool := f.initPool(user, ModeActive, 1)
	rewards := f.createTokenAccount(f.rewardMint, user.PublicKey())

	_, err := f.claim(user, pool, rewards)
	require.ErrorIs(t, err, ErrNothingToClaim)
}

func TestClaimBeyondVaultRollsBackAccrual(t *testing.T) {
	f := newFixture(t)
	user := f.newUser()
	pool := f.initPool(user, ModeActive, 1)
	mint, source := f.mintNft(user.PublicKey(), 1)
	rewards := f.createTokenAccount(f.rewardMint, user.PublicKey())
	_, err := f.stake(user, pool, source, mint, AnySlot)
	require.NoError(t, err)

	cfg := DefaultRewardConfig()
	cfg.RewardRates[ModeActive] = vaultFunding
	_, err = f.send(f.admin, nil, f.deployment.SetRewardConfig(f.admin.PublicKey(), cfg))
	require.NoError(t, err)

	f.advance(2)
	_, err = f.claim(user, pool, rewards)
	require.ErrorIs(t, err, ErrInsufficientCustody)

	state := f.pool(pool)
	require.Zero(t, state.RewardAmount)
	require.Equal(t, genesisTime, state.Slots[0].AccruedFrom)
	require.Zero(t, f.balance(rewards))
	require.Equal(t, vaultFunding, f.balance(f.deployment.RewardVault))
}

func TestUnstakeUnknownMintChangesNothing(t *testing.T) {
	f := newFixture(t)
	user := f.newUser()
	pool := f.initPool(user, ModeActive, 2)
	mint, source := f.mintNft(user.PublicKey(), 1)
	_, err := f.stake(user, pool, source, mint, AnySlot)
	require.NoError(t, err)
	before := f.pool(pool)

	other, otherSource := f.mintNft(user.PublicKey(), 1)
	_, err = f.unstake(user, pool, otherSource, other)
	require.ErrorIs(t, err, ErrNftNotStaked)
	require.ErrorIs(t, err, ErrPreconditionViolation)

	require.Equal(t, before, f.pool(pool))
	require.Equal(t, uint64(1), f.balance(otherSource))
	require.Equal(t, uint64(1), f.global().TotalStaked)
}

func TestStakeUnstakeRoundTrip(t *testing.T) {
	f := newFixture(t)
	user := f.newUser()
	pool := f.initPool(user, ModeActive, 3)
	mint, source := f.mintNft(user.PublicKey(), 1)
	before := f.global().TotalStaked

	_, err := f.stake(user, pool, source, mint, 1)
	require.NoError(t, err)
	f.advance(40)
	receipt, err := f.unstake(user, pool, source, mint)
	require.NoError(t, err)

	rate := DefaultRewardConfig().RewardRates[ModeActive]
	settled := receipt.Events[len(receipt.Events)-1]
	require.Equal(t, events.TypeStakeNftUnstaked, settled.Type)
	require.Equal(t, "1", settled.Attributes["slot"])

	require.Equal(t, before, f.global().TotalStaked)
	require.Equal(t, uint64(1), f.balance(source))
	require.Zero(t, f.balance(f.escrow(mint)))
	state := f.pool(pool)
	require.Zero(t, state.ItemCount)
	require.Equal(t, 40*rate, state.RewardAmount)
	for _, slot := range state.Slots {
		require.True(t, slot.IsZero())
	}

	pending, err := PendingReward(state, rate, genesisTime+1000)
	require.NoError(t, err)
	require.Equal(t, 40*rate, pending)
}

func TestUnstakeHonoursLockPeriod(t *testing.T) {
	f := newFixture(t)
	user := f.newUser()
	pool := f.initPool(user, ModePassive7, 1)
	mint, source := f.mintNft(user.PublicKey(), 1)
	_, err := f.stake(user, pool, source, mint, AnySlot)
	require.NoError(t, err)

	f.advance(7*Day - 1)
	_, err = f.unstake(user, pool, source, mint)
	require.ErrorIs(t, err, ErrLockPeriodActive)
	require.Equal(t, uint64(1), f.balance(f.escrow(mint)))

	f.advance(1)
	_, err = f.unstake(user, pool, source, mint)
	require.NoError(t, err)
	require.Equal(t, uint64(1), f.balance(source))
	require.Equal(t, uint64(7*Day)*DefaultRewardConfig().RewardRates[ModePassive7], f.pool(pool).RewardAmount)
}

func TestSetRewardConfigIsAdminOnly(t *testing.T) {
	f := newFixture(t)
	intruder := f.newUser()
	cfg := RewardConfig{RewardRates: [3]uint64{10, 20, 30}, LockPeriods: [3]int64{0, Day, 2 * Day}}

	_, err := f.send(intruder, nil, f.deployment.SetRewardConfig(intruder.PublicKey(), cfg))
	require.ErrorIs(t, err, ErrNotAdmin)
	require.Equal(t, DefaultRewardConfig(), f.global().Config)

	bad := cfg
	bad.LockPeriods[1] = -1
	_, err = f.send(f.admin, nil, f.deployment.SetRewardConfig(f.admin.PublicKey(), bad))
	require.ErrorIs(t, err, ErrInvalidRewardConfig)

	receipt, err := f.send(f.admin, nil, f.deployment.SetRewardConfig(f.admin.PublicKey(), cfg))
	require.NoError(t, err)
	require.Equal(t, []string{events.TypeStakeRewardConfigUpdated}, eventTypes(receipt))
	require.Equal(t, cfg, f.global().Config)
}

func TestCloseUserPool(t *testing.T) {
	f := newFixture(t)
	user := f.newUser()
	pool := f.initPool(user, ModeActive, 2)
	mint, source := f.mintNft(user.PublicKey(), 1)
	_, err := f.stake(user, pool, source, mint, AnySlot)
	require.NoError(t, err)

	_, err = f.send(user, nil, f.deployment.CloseUserPool(user.PublicKey(), pool))
	require.ErrorIs(t, err, ErrPoolNotEmpty)

	_, err = f.unstake(user, pool, source, mint)
	require.NoError(t, err)

	rent := f.lamports(pool)
	before := f.lamports(user.PublicKey())
	receipt, err := f.send(user, nil, f.deployment.CloseUserPool(user.PublicKey(), pool))
	require.NoError(t, err)
	require.Equal(t, []string{events.TypeStakePoolClosed}, eventTypes(receipt))

	acc, err := f.ledger.Account(pool)
	require.NoError(t, err)
	require.True(t, acc.IsEmpty())
	require.Equal(t, before+rent, f.lamports(user.PublicKey()))

	owned, err := f.ledger.AccountsByOwner(ProgramID)
	require.NoError(t, err)
	for _, keyed := range owned {
		require.NotEqual(t, pool, keyed.Address)
	}
}

func TestParallelStakesOnDistinctPools(t *testing.T) {
	f := newFixture(t)
	const users = 8

	type staker struct {
		key    solana.PrivateKey
		pool   solana.PublicKey
		mint   solana.PublicKey
		source solana.PublicKey
	}
	stakers := make([]staker, users)
	for i := range stakers {
		key := f.newUser()
		mint, source := f.mintNft(key.PublicKey(), 1)
		stakers[i] = staker{key: key, pool: f.initPool(key, ModeActive, 1), mint: mint, source: source}
	}

	var wg sync.WaitGroup
	errs := make([]error, users)
	for i := range stakers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s := stakers[i]
			_, errs[i] = f.stake(s.key, s.pool, s.source, s.mint, AnySlot)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "staker %d", i)
		require.Equal(t, uint8(1), f.pool(stakers[i].pool).ItemCount)
		require.Equal(t, uint64(1), f.balance(f.escrow(stakers[i].mint)))
	}
	require.Equal(t, uint64(users), f.global().TotalStaked)
}
