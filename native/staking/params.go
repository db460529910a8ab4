package staking

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"nftstake/crypto"
)

// ProgramID is the address of the staking program.
var ProgramID = crypto.NativeProgramID("staking")

const (
	GlobalAuthoritySeed = "global-authority"
	UserPoolSeed        = "user-pool"
	StakedNftSeed       = "staked-nft"
	RewardVaultSeed     = "reward-vault"

	// MaxPoolCapacity bounds the slot table so a pool record stays small.
	MaxPoolCapacity     = 50
	DefaultPoolCapacity = 10
	// AnySlot asks stakeNft to use the first empty slot.
	AnySlot uint8 = 255

	Day int64 = 24 * 60 * 60
)

// StakeMode selects the reward rate and lock period a pool uses.
type StakeMode uint8

const (
	ModeActive StakeMode = iota
	ModePassive7
	ModePassive30

	modeCount = 3
)

// Valid reports whether the mode is one of the known modes.
func (m StakeMode) Valid() bool { return m < modeCount }

func (m StakeMode) String() string {
	switch m {
	case ModeActive:
		return "active"
	case ModePassive7:
		return "passive-7d"
	case ModePassive30:
		return "passive-30d"
	default:
		return fmt.Sprintf("mode(%d)", uint8(m))
	}
}

// ParseStakeMode maps the textual mode names accepted by the CLI and config.
func ParseStakeMode(raw string) (StakeMode, error) {
	switch raw {
	case "active", "0":
		return ModeActive, nil
	case "passive-7d", "passive7", "1":
		return ModePassive7, nil
	case "passive-30d", "passive30", "2":
		return ModePassive30, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidStakeMode, raw)
}

// RewardConfig holds the per-mode parameters stored on the global authority.
type RewardConfig struct {
	// RewardRates are reward token base units per second per occupied slot.
	RewardRates [modeCount]uint64
	// LockPeriods are the minimum seconds between stake and unstake.
	LockPeriods [modeCount]int64
}

// DefaultRewardConfig mirrors the launch parameters: passive modes earn more
// but lock NFTs for seven or thirty days.
func DefaultRewardConfig() RewardConfig {
	return RewardConfig{
		RewardRates: [modeCount]uint64{3, 5, 7},
		LockPeriods: [modeCount]int64{0, 7 * Day, 30 * Day},
	}
}

// Validate rejects negative lock periods.
func (c RewardConfig) Validate() error {
	for i, lock := range c.LockPeriods {
		if lock < 0 {
			return fmt.Errorf("%w: lock period for %s is negative", ErrInvalidRewardConfig, StakeMode(i))
		}
	}
	return nil
}

func globalSeeds() [][]byte {
	return [][]byte{[]byte(GlobalAuthoritySeed)}
}

func userPoolSeeds(owner, discriminator solana.PublicKey) [][]byte {
	return [][]byte{[]byte(UserPoolSeed), owner.Bytes(), discriminator.Bytes()}
}

func escrowSeeds(mint solana.PublicKey) [][]byte {
	return [][]byte{[]byte(StakedNftSeed), mint.Bytes()}
}

func rewardVaultSeeds(rewardMint solana.PublicKey) [][]byte {
	return [][]byte{[]byte(RewardVaultSeed), rewardMint.Bytes()}
}

// GlobalAddress derives the singleton global authority.
func GlobalAddress() (solana.PublicKey, uint8, error) {
	return crypto.FindProgramAddress(globalSeeds(), ProgramID)
}

// UserPoolAddress derives the pool owned by owner under discriminator.
func UserPoolAddress(owner, discriminator solana.PublicKey) (solana.PublicKey, uint8, error) {
	return crypto.FindProgramAddress(userPoolSeeds(owner, discriminator), ProgramID)
}

// EscrowAddress derives the token account that holds staked units of mint.
func EscrowAddress(mint solana.PublicKey) (solana.PublicKey, uint8, error) {
	return crypto.FindProgramAddress(escrowSeeds(mint), ProgramID)
}

// RewardVaultAddress derives the token account rewards are paid from.
func RewardVaultAddress(rewardMint solana.PublicKey) (solana.PublicKey, uint8, error) {
	return crypto.FindProgramAddress(rewardVaultSeeds(rewardMint), ProgramID)
}
