package staking

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"nftstake/core/runtime"
	"nftstake/core/types"
	"nftstake/native/token"
)

var (
	initializeDiscriminator      = instructionDiscriminator("initialize")
	initUserPoolDiscriminator    = instructionDiscriminator("init_user_pool")
	stakeNftDiscriminator        = instructionDiscriminator("stake_nft")
	claimRewardDiscriminator     = instructionDiscriminator("claim_reward")
	unstakeNftDiscriminator      = instructionDiscriminator("unstake_nft")
	setRewardConfigDiscriminator = instructionDiscriminator("set_reward_config")
	closeUserPoolDiscriminator   = instructionDiscriminator("close_user_pool")
)

func instructionDiscriminator(name string) [discriminatorSize]byte {
	sum := sha256.Sum256([]byte("global:" + name))
	var out [discriminatorSize]byte
	copy(out[:], sum[:discriminatorSize])
	return out
}

// InitializeArgs carries the initial reward parameters.
type InitializeArgs struct {
	Config RewardConfig
}

// InitUserPoolArgs names the pool to create and proves its address.
type InitUserPoolArgs struct {
	Discriminator solana.PublicKey
	Bump          uint8
	Mode          StakeMode
	Capacity      uint8
}

// StakeNftArgs selects a slot; AnySlot picks the first empty one.
type StakeNftArgs struct {
	GlobalBump uint8
	SlotIndex  uint8
}

// GlobalBumpArgs is the payload of claimReward and unstakeNft.
type GlobalBumpArgs struct {
	GlobalBump uint8
}

// SetRewardConfigArgs replaces the reward parameters.
type SetRewardConfigArgs struct {
	GlobalBump uint8
	Config     RewardConfig
}

// rewardConfigSize is the encoded size of a RewardConfig: three u64 rates
// followed by three i64 lock periods.
const rewardConfigSize = 3*8 + 3*8

func instructionData(disc [discriminatorSize]byte, size int) []byte {
	return append(make([]byte, 0, discriminatorSize+size), disc[:]...)
}

func appendConfig(data []byte, cfg RewardConfig) []byte {
	for _, rate := range cfg.RewardRates {
		data = binary.LittleEndian.AppendUint64(data, rate)
	}
	for _, lock := range cfg.LockPeriods {
		data = binary.LittleEndian.AppendUint64(data, uint64(lock))
	}
	return data
}

func readConfig(dec *bin.Decoder) (RewardConfig, error) {
	var cfg RewardConfig
	var err error
	for i := range cfg.RewardRates {
		if cfg.RewardRates[i], err = dec.ReadUint64(bin.LE); err != nil {
			return cfg, err
		}
	}
	for i := range cfg.LockPeriods {
		if cfg.LockPeriods[i], err = dec.ReadInt64(bin.LE); err != nil {
			return cfg, err
		}
	}
	return cfg, nil
}

// Encode returns the instruction data.
func (a InitializeArgs) Encode() []byte {
	return appendConfig(instructionData(initializeDiscriminator, rewardConfigSize), a.Config)
}

// Encode returns the instruction data.
func (a InitUserPoolArgs) Encode() []byte {
	data := instructionData(initUserPoolDiscriminator, solana.PublicKeyLength+3)
	data = append(data, a.Discriminator[:]...)
	return append(data, a.Bump, uint8(a.Mode), a.Capacity)
}

// Encode returns the instruction data.
func (a StakeNftArgs) Encode() []byte {
	return append(instructionData(stakeNftDiscriminator, 2), a.GlobalBump, a.SlotIndex)
}

func (a GlobalBumpArgs) encode(disc [discriminatorSize]byte) []byte {
	return append(instructionData(disc, 1), a.GlobalBump)
}

// EncodeClaim returns claimReward instruction data.
func (a GlobalBumpArgs) EncodeClaim() []byte { return a.encode(claimRewardDiscriminator) }

// EncodeUnstake returns unstakeNft instruction data.
func (a GlobalBumpArgs) EncodeUnstake() []byte { return a.encode(unstakeNftDiscriminator) }

// Encode returns the instruction data.
func (a SetRewardConfigArgs) Encode() []byte {
	data := append(instructionData(setRewardConfigDiscriminator, 1+rewardConfigSize), a.GlobalBump)
	return appendConfig(data, a.Config)
}

// Deployment caches the derived addresses of one staking deployment so
// instruction builders do not repeat the bump search.
type Deployment struct {
	Global      solana.PublicKey
	GlobalBump  uint8
	RewardMint  solana.PublicKey
	RewardVault solana.PublicKey
	VaultBump   uint8
}

// NewDeployment derives the global authority and the reward vault for
// rewardMint.
func NewDeployment(rewardMint solana.PublicKey) (*Deployment, error) {
	global, globalBump, err := GlobalAddress()
	if err != nil {
		return nil, err
	}
	vault, vaultBump, err := RewardVaultAddress(rewardMint)
	if err != nil {
		return nil, err
	}
	return &Deployment{
		Global:      global,
		GlobalBump:  globalBump,
		RewardMint:  rewardMint,
		RewardVault: vault,
		VaultBump:   vaultBump,
	}, nil
}

func meta(pk solana.PublicKey, writable, signer bool) types.AccountMeta {
	return types.NewAccountMeta(pk, writable, signer)
}

// Initialize creates the global authority and the reward vault.
func (d *Deployment) Initialize(admin solana.PublicKey, cfg RewardConfig) types.Instruction {
	return types.Instruction{
		ProgramID: ProgramID,
		Accounts: []types.AccountMeta{
			meta(admin, true, true),
			meta(d.Global, true, false),
			meta(d.RewardMint, false, false),
			meta(d.RewardVault, true, false),
			meta(runtime.SystemProgramID, false, false),
			meta(token.ProgramID, false, false),
		},
		Data: InitializeArgs{Config: cfg}.Encode(),
	}
}

// InitUserPool derives the pool address for (owner, discriminator) and
// returns the creating instruction together with that address.
func (d *Deployment) InitUserPool(owner, discriminator solana.PublicKey, mode StakeMode, capacity uint8) (types.Instruction, solana.PublicKey, error) {
	pool, bump, err := UserPoolAddress(owner, discriminator)
	if err != nil {
		return types.Instruction{}, solana.PublicKey{}, err
	}
	return NewInitUserPoolInstruction(owner, pool, InitUserPoolArgs{
		Discriminator: discriminator,
		Bump:          bump,
		Mode:          mode,
		Capacity:      capacity,
	}), pool, nil
}

// NewInitUserPoolInstruction builds initUserPool with caller-supplied
// arguments, the bump included.
func NewInitUserPoolInstruction(owner, pool solana.PublicKey, args InitUserPoolArgs) types.Instruction {
	return types.Instruction{
		ProgramID: ProgramID,
		Accounts: []types.AccountMeta{
			meta(owner, true, true),
			meta(pool, true, false),
			meta(runtime.SystemProgramID, false, false),
		},
		Data: args.Encode(),
	}
}

// StakeNft moves one unit of mint from ownerNftAccount into escrow.
func (d *Deployment) StakeNft(owner, pool, ownerNftAccount, mint solana.PublicKey, slot uint8) (types.Instruction, error) {
	escrow, _, err := EscrowAddress(mint)
	if err != nil {
		return types.Instruction{}, err
	}
	return types.Instruction{
		ProgramID: ProgramID,
		Accounts: []types.AccountMeta{
			meta(owner, true, true),
			meta(pool, true, false),
			meta(d.Global, true, false),
			meta(ownerNftAccount, true, false),
			meta(escrow, true, false),
			meta(mint, false, false),
			meta(token.ProgramID, false, false),
			meta(runtime.SystemProgramID, false, false),
		},
		Data: StakeNftArgs{GlobalBump: d.GlobalBump, SlotIndex: slot}.Encode(),
	}, nil
}

// ClaimReward pays the pool's accrued reward into ownerRewardAccount. The
// global authority is passed read-only.
func (d *Deployment) ClaimReward(owner, pool, ownerRewardAccount solana.PublicKey) types.Instruction {
	return types.Instruction{
		ProgramID: ProgramID,
		Accounts: []types.AccountMeta{
			meta(owner, false, true),
			meta(pool, true, false),
			meta(d.Global, false, false),
			meta(d.RewardVault, true, false),
			meta(ownerRewardAccount, true, false),
			meta(token.ProgramID, false, false),
		},
		Data: GlobalBumpArgs{GlobalBump: d.GlobalBump}.EncodeClaim(),
	}
}

// UnstakeNft returns one unit of mint from escrow to ownerNftAccount.
func (d *Deployment) UnstakeNft(owner, pool, ownerNftAccount, mint solana.PublicKey) (types.Instruction, error) {
	escrow, _, err := EscrowAddress(mint)
	if err != nil {
		return types.Instruction{}, err
	}
	return types.Instruction{
		ProgramID: ProgramID,
		Accounts: []types.AccountMeta{
			meta(owner, false, true),
			meta(pool, true, false),
			meta(d.Global, true, false),
			meta(ownerNftAccount, true, false),
			meta(escrow, true, false),
			meta(mint, false, false),
			meta(token.ProgramID, false, false),
		},
		Data: GlobalBumpArgs{GlobalBump: d.GlobalBump}.EncodeUnstake(),
	}, nil
}

// SetRewardConfig replaces reward rates and lock periods; admin only.
func (d *Deployment) SetRewardConfig(admin solana.PublicKey, cfg RewardConfig) types.Instruction {
	return types.Instruction{
		ProgramID: ProgramID,
		Accounts: []types.AccountMeta{
			meta(admin, false, true),
			meta(d.Global, true, false),
		},
		Data: SetRewardConfigArgs{GlobalBump: d.GlobalBump, Config: cfg}.Encode(),
	}
}

// CloseUserPool removes an empty pool and refunds its lamports to owner.
func (d *Deployment) CloseUserPool(owner, pool solana.PublicKey) types.Instruction {
	return types.Instruction{
		ProgramID: ProgramID,
		Accounts: []types.AccountMeta{
			meta(owner, true, true),
			meta(pool, true, false),
		},
		Data: closeUserPoolDiscriminator[:],
	}
}

func decodeArgs(data []byte) ([discriminatorSize]byte, *bin.Decoder, error) {
	var disc [discriminatorSize]byte
	if len(data) < discriminatorSize {
		return disc, nil, fmt.Errorf("%w: %d bytes", ErrInvalidInstruction, len(data))
	}
	copy(disc[:], data[:discriminatorSize])
	return disc, bin.NewBorshDecoder(data[discriminatorSize:]), nil
}

func decodeInitUserPoolArgs(dec *bin.Decoder) (InitUserPoolArgs, error) {
	var args InitUserPoolArgs
	if err := readKey(dec, &args.Discriminator); err != nil {
		return args, err
	}
	var err error
	if args.Bump, err = dec.ReadUint8(); err != nil {
		return args, err
	}
	mode, err := dec.ReadUint8()
	if err != nil {
		return args, err
	}
	args.Mode = StakeMode(mode)
	args.Capacity, err = dec.ReadUint8()
	return args, err
}

func decodeStakeNftArgs(dec *bin.Decoder) (StakeNftArgs, error) {
	var args StakeNftArgs
	var err error
	if args.GlobalBump, err = dec.ReadUint8(); err != nil {
		return args, err
	}
	args.SlotIndex, err = dec.ReadUint8()
	return args, err
}

func decodeSetRewardConfigArgs(dec *bin.Decoder) (SetRewardConfigArgs, error) {
	var args SetRewardConfigArgs
	var err error
	if args.GlobalBump, err = dec.ReadUint8(); err != nil {
		return args, err
	}
	args.Config, err = readConfig(dec)
	return args, err
}
