package staking

import (
	"fmt"
	"math"

	"github.com/gagliardetto/solana-go"

	"nftstake/core/events"
	"nftstake/core/runtime"
	"nftstake/crypto"
	"nftstake/native/token"
)

// Program is the NFT staking program. It keeps no state of its own: every
// record lives in ledger accounts owned by ProgramID.
type Program struct{}

// New returns the staking program.
func New() *Program { return &Program{} }

func (*Program) ID() solana.PublicKey { return ProgramID }

func (*Program) Name() string { return "staking" }

// Execute dispatches on the eight byte instruction discriminator.
func (p *Program) Execute(ctx *runtime.InvokeContext, data []byte) error {
	disc, dec, err := decodeArgs(data)
	if err != nil {
		return err
	}
	switch disc {
	case initializeDiscriminator:
		cfg, err := readConfig(dec)
		if err != nil {
			return fmt.Errorf("%w: initialize: %v", ErrInvalidInstruction, err)
		}
		return p.initialize(ctx, cfg)
	case initUserPoolDiscriminator:
		args, err := decodeInitUserPoolArgs(dec)
		if err != nil {
			return fmt.Errorf("%w: init_user_pool: %v", ErrInvalidInstruction, err)
		}
		return p.initUserPool(ctx, args)
	case stakeNftDiscriminator:
		args, err := decodeStakeNftArgs(dec)
		if err != nil {
			return fmt.Errorf("%w: stake_nft: %v", ErrInvalidInstruction, err)
		}
		return p.stakeNft(ctx, args)
	case claimRewardDiscriminator, unstakeNftDiscriminator:
		bump, err := dec.ReadUint8()
		if err != nil {
			return fmt.Errorf("%w: global bump: %v", ErrInvalidInstruction, err)
		}
		if disc == claimRewardDiscriminator {
			return p.claimReward(ctx, bump)
		}
		return p.unstakeNft(ctx, bump)
	case setRewardConfigDiscriminator:
		args, err := decodeSetRewardConfigArgs(dec)
		if err != nil {
			return fmt.Errorf("%w: set_reward_config: %v", ErrInvalidInstruction, err)
		}
		return p.setRewardConfig(ctx, args)
	case closeUserPoolDiscriminator:
		return p.closeUserPool(ctx)
	default:
		return fmt.Errorf("%w: unknown discriminator %x", ErrInvalidInstruction, disc)
	}
}

func accounts(ctx *runtime.InvokeContext, n int) ([]*runtime.AccountInfo, error) {
	if ctx.AccountCount() < n {
		return nil, fmt.Errorf("%w: need %d accounts, have %d", ErrInvalidInstruction, n, ctx.AccountCount())
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

func requireSigner(info *runtime.AccountInfo) error {
	if !info.IsSigner {
		return fmt.Errorf("%w: %s", ErrMissingSigner, info.Key)
	}
	return nil
}

func requireWritable(infos ...*runtime.AccountInfo) error {
	for _, info := range infos {
		if !info.IsWritable {
			return fmt.Errorf("%w: %s", ErrAccountNotWritable, info.Key)
		}
	}
	return nil
}

func requireProgram(info *runtime.AccountInfo, id solana.PublicKey) error {
	if !info.Key.Equals(id) {
		return fmt.Errorf("%w: got %s, want %s", ErrInvalidProgram, info.Key, id)
	}
	return nil
}

// loadGlobal checks that info is the global authority derived with bump and
// decodes it.
func loadGlobal(info *runtime.AccountInfo, bump uint8) (*GlobalAuthority, error) {
	if err := crypto.VerifyProgramAddress(globalSeeds(), bump, ProgramID, info.Key); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGlobalMismatch, err)
	}
	if !info.Owner.Equals(ProgramID) {
		return nil, fmt.Errorf("%w: global %s", ErrNotInitialized, info.Key)
	}
	global, err := DecodeGlobalAuthority(info.Data)
	if err != nil {
		return nil, err
	}
	if global.Bump != bump {
		return nil, fmt.Errorf("%w: stored bump %d, got %d", ErrGlobalMismatch, global.Bump, bump)
	}
	return global, nil
}

// loadPool decodes the pool at info and checks that owner signed for it.
func loadPool(info, owner *runtime.AccountInfo) (*UserPool, error) {
	if !info.Owner.Equals(ProgramID) {
		return nil, fmt.Errorf("%w: pool %s", ErrNotInitialized, info.Key)
	}
	pool, err := DecodeUserPool(info.Data)
	if err != nil {
		return nil, err
	}
	if err := crypto.VerifyProgramAddress(userPoolSeeds(pool.Owner, pool.Discriminator), pool.Bump, ProgramID, info.Key); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPoolMismatch, err)
	}
	if !pool.Owner.Equals(owner.Key) {
		return nil, fmt.Errorf("%w: pool %s belongs to %s", ErrUnauthorized, info.Key, pool.Owner)
	}
	if err := requireSigner(owner); err != nil {
		return nil, err
	}
	return pool, nil
}

func loadTokenAccount(info *runtime.AccountInfo, mint, owner solana.PublicKey) (*token.TokenAccount, error) {
	if !info.Owner.Equals(token.ProgramID) {
		return nil, fmt.Errorf("%w: %s is not a token account", ErrInvalidTokenAccount, info.Key)
	}
	account, err := token.DecodeTokenAccount(info.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTokenAccount, err)
	}
	if account.State != token.AccountInitialized {
		return nil, fmt.Errorf("%w: %s is not usable", ErrInvalidTokenAccount, info.Key)
	}
	if !account.Mint.Equals(mint) || !account.Owner.Equals(owner) {
		return nil, fmt.Errorf("%w: %s holds %s for %s", ErrInvalidTokenAccount, info.Key, account.Mint, account.Owner)
	}
	return account, nil
}

func loadMint(info *runtime.AccountInfo) (*token.Mint, error) {
	if !info.Owner.Equals(token.ProgramID) {
		return nil, fmt.Errorf("%w: %s is not a mint", ErrInvalidMint, info.Key)
	}
	mint, err := token.DecodeMint(info.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMint, err)
	}
	if !mint.IsInitialized {
		return nil, fmt.Errorf("%w: %s is not initialized", ErrInvalidMint, info.Key)
	}
	return mint, nil
}

func writeGlobal(info *runtime.AccountInfo, global *GlobalAuthority) error {
	data, err := EncodeGlobalAuthority(global)
	if err != nil {
		return err
	}
	info.Data = data
	return nil
}

func writePool(info *runtime.AccountInfo, pool *UserPool) error {
	data, err := EncodeUserPool(pool)
	if err != nil {
		return err
	}
	info.Data = data
	return nil
}

func (p *Program) initialize(ctx *runtime.InvokeContext, cfg RewardConfig) error {
	infos, err := accounts(ctx, 6)
	if err != nil {
		return err
	}
	admin, globalInfo, mintInfo, vaultInfo := infos[0], infos[1], infos[2], infos[3]
	if err := requireSigner(admin); err != nil {
		return err
	}
	if err := requireWritable(admin, globalInfo, vaultInfo); err != nil {
		return err
	}
	if err := requireProgram(infos[4], runtime.SystemProgramID); err != nil {
		return err
	}
	if err := requireProgram(infos[5], token.ProgramID); err != nil {
		return err
	}
	globalAddr, bump, err := GlobalAddress()
	if err != nil {
		return err
	}
	if !globalInfo.Key.Equals(globalAddr) {
		return fmt.Errorf("%w: got %s, want %s", ErrGlobalMismatch, globalInfo.Key, globalAddr)
	}
	if !globalInfo.IsEmpty() {
		return fmt.Errorf("%w: global %s", ErrAlreadyInitialized, globalInfo.Key)
	}
	if _, err := loadMint(mintInfo); err != nil {
		return err
	}
	vaultAddr, vaultBump, err := RewardVaultAddress(mintInfo.Key)
	if err != nil {
		return err
	}
	if !vaultInfo.Key.Equals(vaultAddr) {
		return fmt.Errorf("%w: got %s, want %s", ErrRewardVaultMismatch, vaultInfo.Key, vaultAddr)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	createGlobal := runtime.NewCreateAccountInstruction(admin.Key, globalAddr, ProgramID,
		runtime.RentExemptMinimum(GlobalAuthoritySize), GlobalAuthoritySize)
	if err := ctx.Invoke(createGlobal, crypto.WithBump(globalSeeds(), bump)); err != nil {
		return err
	}
	createVault := runtime.NewCreateAccountInstruction(admin.Key, vaultAddr, token.ProgramID,
		runtime.RentExemptMinimum(token.AccountSize), token.AccountSize)
	if err := ctx.Invoke(createVault, crypto.WithBump(rewardVaultSeeds(mintInfo.Key), vaultBump)); err != nil {
		return err
	}
	if err := ctx.Invoke(token.NewInitializeAccountInstruction(vaultAddr, mintInfo.Key, globalAddr)); err != nil {
		return err
	}

	global := &GlobalAuthority{
		Bump:        bump,
		Admin:       admin.Key,
		RewardMint:  mintInfo.Key,
		RewardVault: vaultAddr,
		VaultBump:   vaultBump,
		Config:      cfg,
	}
	if err := writeGlobal(globalInfo, global); err != nil {
		return err
	}
	ctx.Logf("initialize global=%s admin=%s reward_mint=%s", globalAddr, admin.Key, mintInfo.Key)
	ctx.Emit(events.StakeGlobalInitialized{
		Global:      globalAddr,
		Admin:       admin.Key,
		RewardMint:  mintInfo.Key,
		RewardVault: vaultAddr,
	})
	return nil
}

func (p *Program) initUserPool(ctx *runtime.InvokeContext, args InitUserPoolArgs) error {
	infos, err := accounts(ctx, 3)
	if err != nil {
		return err
	}
	owner, poolInfo := infos[0], infos[1]
	if err := requireSigner(owner); err != nil {
		return err
	}
	if err := requireWritable(owner, poolInfo); err != nil {
		return err
	}
	if err := requireProgram(infos[2], runtime.SystemProgramID); err != nil {
		return err
	}
	if !args.Mode.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidStakeMode, args.Mode)
	}
	if args.Capacity == 0 || args.Capacity > MaxPoolCapacity {
		return fmt.Errorf("%w: %d not in 1..%d", ErrInvalidCapacity, args.Capacity, MaxPoolCapacity)
	}
	// Only the canonical bump is accepted so each (owner, discriminator)
	// pair maps to exactly one pool.
	expected, canonical, err := UserPoolAddress(owner.Key, args.Discriminator)
	if err != nil {
		return err
	}
	if args.Bump != canonical {
		return fmt.Errorf("%w: bump %d is not the canonical bump %d", ErrPoolMismatch, args.Bump, canonical)
	}
	if !expected.Equals(poolInfo.Key) {
		return fmt.Errorf("%w: derives %s, got %s", ErrPoolMismatch, expected, poolInfo.Key)
	}
	seeds := userPoolSeeds(owner.Key, args.Discriminator)
	if !poolInfo.IsEmpty() {
		return fmt.Errorf("%w: pool %s", ErrAlreadyInitialized, poolInfo.Key)
	}

	size := uint64(UserPoolSize(args.Capacity))
	create := runtime.NewCreateAccountInstruction(owner.Key, poolInfo.Key, ProgramID, runtime.RentExemptMinimum(size), size)
	if err := ctx.Invoke(create, crypto.WithBump(seeds, args.Bump)); err != nil {
		return err
	}
	pool := NewUserPool(owner.Key, args.Discriminator, args.Bump, args.Mode, args.Capacity, ctx.Now())
	if err := writePool(poolInfo, pool); err != nil {
		return err
	}
	ctx.Logf("init pool %s owner=%s mode=%s capacity=%d", poolInfo.Key, owner.Key, args.Mode, args.Capacity)
	ctx.Emit(events.StakePoolInitialized{
		Pool:     poolInfo.Key,
		Owner:    owner.Key,
		Mode:     uint8(args.Mode),
		Capacity: args.Capacity,
	})
	return nil
}

func (p *Program) stakeNft(ctx *runtime.InvokeContext, args StakeNftArgs) error {
	infos, err := accounts(ctx, 8)
	if err != nil {
		return err
	}
	owner, poolInfo, globalInfo, sourceInfo, escrowInfo, mintInfo := infos[0], infos[1], infos[2], infos[3], infos[4], infos[5]
	if err := requireWritable(owner, poolInfo, globalInfo, sourceInfo, escrowInfo); err != nil {
		return err
	}
	if err := requireProgram(infos[6], token.ProgramID); err != nil {
		return err
	}
	if err := requireProgram(infos[7], runtime.SystemProgramID); err != nil {
		return err
	}
	pool, err := loadPool(poolInfo, owner)
	if err != nil {
		return err
	}
	global, err := loadGlobal(globalInfo, args.GlobalBump)
	if err != nil {
		return err
	}
	mint, err := loadMint(mintInfo)
	if err != nil {
		return err
	}
	if mint.Decimals != 0 {
		return fmt.Errorf("%w: %s has %d decimals", ErrInvalidMint, mintInfo.Key, mint.Decimals)
	}
	escrowAddr, escrowBump, err := EscrowAddress(mintInfo.Key)
	if err != nil {
		return err
	}
	if !escrowInfo.Key.Equals(escrowAddr) {
		return fmt.Errorf("%w: got %s, want %s", ErrEscrowMismatch, escrowInfo.Key, escrowAddr)
	}

	slot := int(args.SlotIndex)
	if args.SlotIndex == AnySlot {
		if slot = pool.FirstEmptySlot(); slot < 0 {
			return fmt.Errorf("%w: pool %s holds %d", ErrPoolFull, poolInfo.Key, pool.ItemCount)
		}
	} else {
		if slot >= int(pool.Capacity) {
			return fmt.Errorf("%w: %d of %d", ErrSlotOutOfRange, slot, pool.Capacity)
		}
		if pool.Slots[slot].Occupied {
			return fmt.Errorf("%w: slot %d holds %s", ErrSlotOccupied, slot, pool.Slots[slot].Mint)
		}
	}
	if global.TotalStaked == math.MaxUint64 {
		return fmt.Errorf("%w: total staked", ErrArithmeticOverflow)
	}

	source, err := loadTokenAccount(sourceInfo, mintInfo.Key, owner.Key)
	if err != nil {
		return err
	}
	if source.Amount < 1 {
		return fmt.Errorf("%w: %s", ErrInsufficientNft, sourceInfo.Key)
	}
	if escrowInfo.IsEmpty() {
		create := runtime.NewCreateAccountInstruction(owner.Key, escrowAddr, token.ProgramID,
			runtime.RentExemptMinimum(token.AccountSize), token.AccountSize)
		if err := ctx.Invoke(create, crypto.WithBump(escrowSeeds(mintInfo.Key), escrowBump)); err != nil {
			return err
		}
		if err := ctx.Invoke(token.NewInitializeAccountInstruction(escrowAddr, mintInfo.Key, globalInfo.Key)); err != nil {
			return err
		}
	} else if _, err := loadTokenAccount(escrowInfo, mintInfo.Key, globalInfo.Key); err != nil {
		return fmt.Errorf("%w: %v", ErrEscrowMismatch, err)
	}
	if err := ctx.Invoke(token.NewTransferInstruction(sourceInfo.Key, escrowAddr, owner.Key, 1)); err != nil {
		return err
	}

	now := ctx.Now()
	pool.Slots[slot] = Slot{Occupied: true, Mint: mintInfo.Key, StakedAt: now, AccruedFrom: now}
	pool.ItemCount++
	global.TotalStaked++
	if err := writePool(poolInfo, pool); err != nil {
		return err
	}
	if err := writeGlobal(globalInfo, global); err != nil {
		return err
	}
	ctx.Logf("stake %s into pool %s slot %d", mintInfo.Key, poolInfo.Key, slot)
	ctx.Emit(events.StakeNftStaked{
		Pool:        poolInfo.Key,
		Owner:       owner.Key,
		Mint:        mintInfo.Key,
		Slot:        slot,
		StakedAt:    now,
		TotalStaked: global.TotalStaked,
	})
	return nil
}

// settle accrues every occupied slot up to now into the pool's claimable
// amount and moves each slot's reference point forward.
func settle(pool *UserPool, rate uint64, now int64) error {
	for i := range pool.Slots {
		slot := &pool.Slots[i]
		if !slot.Occupied {
			continue
		}
		if err := settleSlot(pool, slot, rate, now); err != nil {
			return err
		}
	}
	return nil
}

func settleSlot(pool *UserPool, slot *Slot, rate uint64, now int64) error {
	reward, err := accrue(rate, slot.AccruedFrom, now)
	if err != nil {
		return err
	}
	if slot.RewardAmount, err = addReward(slot.RewardAmount, reward); err != nil {
		return err
	}
	if pool.RewardAmount, err = addReward(pool.RewardAmount, reward); err != nil {
		return err
	}
	if now > slot.AccruedFrom {
		slot.AccruedFrom = now
	}
	return nil
}

func (p *Program) claimReward(ctx *runtime.InvokeContext, globalBump uint8) error {
	infos, err := accounts(ctx, 6)
	if err != nil {
		return err
	}
	owner, poolInfo, globalInfo, vaultInfo, destInfo := infos[0], infos[1], infos[2], infos[3], infos[4]
	if err := requireWritable(poolInfo, vaultInfo, destInfo); err != nil {
		return err
	}
	if err := requireProgram(infos[5], token.ProgramID); err != nil {
		return err
	}
	pool, err := loadPool(poolInfo, owner)
	if err != nil {
		return err
	}
	global, err := loadGlobal(globalInfo, globalBump)
	if err != nil {
		return err
	}
	if !vaultInfo.Key.Equals(global.RewardVault) {
		return fmt.Errorf("%w: got %s, want %s", ErrRewardVaultMismatch, vaultInfo.Key, global.RewardVault)
	}
	if pool.ItemCount == 0 && pool.RewardAmount == 0 {
		return fmt.Errorf("%w: pool %s", ErrNothingToClaim, poolInfo.Key)
	}

	now := ctx.Now()
	if err := settle(pool, global.Rate(pool.Mode), now); err != nil {
		return err
	}
	amount := pool.RewardAmount
	if amount > 0 {
		vault, err := loadTokenAccount(vaultInfo, global.RewardMint, globalInfo.Key)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrRewardVaultMismatch, err)
		}
		if _, err := token.DecodeTokenAccount(destInfo.Data); err != nil || !destInfo.Owner.Equals(token.ProgramID) {
			return fmt.Errorf("%w: %s", ErrInvalidTokenAccount, destInfo.Key)
		}
		if vault.Amount < amount {
			return fmt.Errorf("%w: vault holds %d, claim is %d", ErrInsufficientRewardPool, vault.Amount, amount)
		}
		transfer := token.NewTransferInstruction(vaultInfo.Key, destInfo.Key, globalInfo.Key, amount)
		if err := ctx.Invoke(transfer, crypto.WithBump(globalSeeds(), global.Bump)); err != nil {
			return err
		}
	}
	if pool.TotalClaimed, err = addReward(pool.TotalClaimed, amount); err != nil {
		return err
	}
	pool.RewardAmount = 0
	pool.LastClaimedAt = now
	if err := writePool(poolInfo, pool); err != nil {
		return err
	}
	ctx.Logf("claim %d from pool %s", amount, poolInfo.Key)
	ctx.Emit(events.StakeRewardClaimed{
		Pool:         poolInfo.Key,
		Owner:        owner.Key,
		Amount:       amount,
		TotalClaimed: pool.TotalClaimed,
		ClaimedAt:    now,
	})
	return nil
}

func (p *Program) unstakeNft(ctx *runtime.InvokeContext, globalBump uint8) error {
	infos, err := accounts(ctx, 7)
	if err != nil {
		return err
	}
	owner, poolInfo, globalInfo, destInfo, escrowInfo, mintInfo := infos[0], infos[1], infos[2], infos[3], infos[4], infos[5]
	if err := requireWritable(poolInfo, globalInfo, destInfo, escrowInfo); err != nil {
		return err
	}
	if err := requireProgram(infos[6], token.ProgramID); err != nil {
		return err
	}
	pool, err := loadPool(poolInfo, owner)
	if err != nil {
		return err
	}
	global, err := loadGlobal(globalInfo, globalBump)
	if err != nil {
		return err
	}
	escrowAddr, _, err := EscrowAddress(mintInfo.Key)
	if err != nil {
		return err
	}
	if !escrowInfo.Key.Equals(escrowAddr) {
		return fmt.Errorf("%w: got %s, want %s", ErrEscrowMismatch, escrowInfo.Key, escrowAddr)
	}
	idx := pool.FindMint(mintInfo.Key)
	if idx < 0 {
		return fmt.Errorf("%w: %s in pool %s", ErrNftNotStaked, mintInfo.Key, poolInfo.Key)
	}
	slot := &pool.Slots[idx]
	now := ctx.Now()
	if lock := global.LockPeriod(pool.Mode); now-slot.StakedAt < lock {
		return fmt.Errorf("%w: %ds of %ds elapsed", ErrLockPeriodActive, now-slot.StakedAt, lock)
	}
	escrow, err := loadTokenAccount(escrowInfo, mintInfo.Key, globalInfo.Key)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEscrowMismatch, err)
	}
	if escrow.Amount < 1 {
		return fmt.Errorf("%w: %s", ErrInsufficientEscrow, escrowInfo.Key)
	}
	if _, err := loadTokenAccount(destInfo, mintInfo.Key, owner.Key); err != nil {
		return err
	}
	if global.TotalStaked == 0 {
		return fmt.Errorf("%w: total staked is zero", ErrInvalidAccountData)
	}

	before := pool.RewardAmount
	if err := settleSlot(pool, slot, global.Rate(pool.Mode), now); err != nil {
		return err
	}
	transfer := token.NewTransferInstruction(escrowAddr, destInfo.Key, globalInfo.Key, 1)
	if err := ctx.Invoke(transfer, crypto.WithBump(globalSeeds(), global.Bump)); err != nil {
		return err
	}

	pool.Slots[idx] = Slot{}
	pool.ItemCount--
	global.TotalStaked--
	if err := writePool(poolInfo, pool); err != nil {
		return err
	}
	if err := writeGlobal(globalInfo, global); err != nil {
		return err
	}
	ctx.Logf("unstake %s from pool %s slot %d", mintInfo.Key, poolInfo.Key, idx)
	ctx.Emit(events.StakeNftUnstaked{
		Pool:        poolInfo.Key,
		Owner:       owner.Key,
		Mint:        mintInfo.Key,
		Slot:        idx,
		Settled:     pool.RewardAmount - before,
		TotalStaked: global.TotalStaked,
	})
	return nil
}

func (p *Program) setRewardConfig(ctx *runtime.InvokeContext, args SetRewardConfigArgs) error {
	infos, err := accounts(ctx, 2)
	if err != nil {
		return err
	}
	admin, globalInfo := infos[0], infos[1]
	if err := requireSigner(admin); err != nil {
		return err
	}
	if err := requireWritable(globalInfo); err != nil {
		return err
	}
	global, err := loadGlobal(globalInfo, args.GlobalBump)
	if err != nil {
		return err
	}
	if !global.Admin.Equals(admin.Key) {
		return fmt.Errorf("%w: %s", ErrNotAdmin, admin.Key)
	}
	if err := args.Config.Validate(); err != nil {
		return err
	}
	global.Config = args.Config
	if err := writeGlobal(globalInfo, global); err != nil {
		return err
	}
	ctx.Emit(events.StakeRewardConfigUpdated{
		Admin:       admin.Key,
		RewardRates: args.Config.RewardRates,
		LockPeriods: args.Config.LockPeriods,
	})
	return nil
}

func (p *Program) closeUserPool(ctx *runtime.InvokeContext) error {
	infos, err := accounts(ctx, 2)
	if err != nil {
		return err
	}
	owner, poolInfo := infos[0], infos[1]
	if err := requireWritable(owner, poolInfo); err != nil {
		return err
	}
	pool, err := loadPool(poolInfo, owner)
	if err != nil {
		return err
	}
	if pool.ItemCount != 0 || pool.RewardAmount != 0 {
		return fmt.Errorf("%w: %d staked, %d unclaimed", ErrPoolNotEmpty, pool.ItemCount, pool.RewardAmount)
	}
	refunded := poolInfo.Lamports
	if owner.Lamports > math.MaxUint64-refunded {
		return fmt.Errorf("%w: owner lamports", ErrArithmeticOverflow)
	}
	owner.Lamports += refunded
	poolInfo.Lamports = 0
	poolInfo.Data = []byte{}
	poolInfo.Owner = runtime.SystemProgramID
	ctx.Logf("close pool %s refund=%d", poolInfo.Key, refunded)
	ctx.Emit(events.StakePoolClosed{Pool: poolInfo.Key, Owner: owner.Key, Refunded: refunded})
	return nil
}
