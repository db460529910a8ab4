package events

import (
	"strconv"

	"github.com/gagliardetto/solana-go"

	"nftstake/core/types"
)

const (
	// TypeStakeGlobalInitialized is emitted once when the global authority is created.
	TypeStakeGlobalInitialized = "stake.globalInitialized"
	// TypeStakePoolInitialized captures the creation of a user pool.
	TypeStakePoolInitialized = "stake.poolInitialized"
	// TypeStakeNftStaked is emitted when an NFT moves into escrow and fills a slot.
	TypeStakeNftStaked = "stake.nftStaked"
	// TypeStakeRewardClaimed is emitted when accrued reward is paid to the owner.
	TypeStakeRewardClaimed = "stake.rewardClaimed"
	// TypeStakeNftUnstaked is emitted when an NFT leaves escrow.
	TypeStakeNftUnstaked = "stake.nftUnstaked"
	// TypeStakeRewardConfigUpdated is emitted on admin parameter changes.
	TypeStakeRewardConfigUpdated = "stake.rewardConfigUpdated"
	// TypeStakePoolClosed captures the removal of an empty pool.
	TypeStakePoolClosed = "stake.poolClosed"
)

// StakeGlobalInitialized records the deployment parameters.
type StakeGlobalInitialized struct {
	Global      solana.PublicKey
	Admin       solana.PublicKey
	RewardMint  solana.PublicKey
	RewardVault solana.PublicKey
}

// EventType satisfies the Event interface.
func (StakeGlobalInitialized) EventType() string { return TypeStakeGlobalInitialized }

// Event converts the structured payload into a broadcastable event.
func (e StakeGlobalInitialized) Event() *types.Event {
	return &types.Event{Type: TypeStakeGlobalInitialized, Attributes: map[string]string{
		"global":      e.Global.String(),
		"admin":       e.Admin.String(),
		"rewardMint":  e.RewardMint.String(),
		"rewardVault": e.RewardVault.String(),
	}}
}

// StakePoolInitialized captures a new user pool.
type StakePoolInitialized struct {
	Pool     solana.PublicKey
	Owner    solana.PublicKey
	Mode     uint8
	Capacity uint8
}

// EventType satisfies the Event interface.
func (StakePoolInitialized) EventType() string { return TypeStakePoolInitialized }

// Event converts the structured payload into a broadcastable event.
func (e StakePoolInitialized) Event() *types.Event {
	return &types.Event{Type: TypeStakePoolInitialized, Attributes: map[string]string{
		"pool":     e.Pool.String(),
		"owner":    e.Owner.String(),
		"mode":     strconv.FormatUint(uint64(e.Mode), 10),
		"capacity": strconv.FormatUint(uint64(e.Capacity), 10),
	}}
}

// StakeNftStaked records a filled slot.
type StakeNftStaked struct {
	Pool        solana.PublicKey
	Owner       solana.PublicKey
	Mint        solana.PublicKey
	Slot        int
	StakedAt    int64
	TotalStaked uint64
}

// EventType satisfies the Event interface.
func (StakeNftStaked) EventType() string { return TypeStakeNftStaked }

// Event converts the structured payload into a broadcastable event.
func (e StakeNftStaked) Event() *types.Event {
	return &types.Event{Type: TypeStakeNftStaked, Attributes: map[string]string{
		"pool":        e.Pool.String(),
		"owner":       e.Owner.String(),
		"mint":        e.Mint.String(),
		"slot":        strconv.Itoa(e.Slot),
		"stakedAt":    strconv.FormatInt(e.StakedAt, 10),
		"totalStaked": strconv.FormatUint(e.TotalStaked, 10),
	}}
}

// StakeRewardClaimed records a reward payout.
type StakeRewardClaimed struct {
	Pool         solana.PublicKey
	Owner        solana.PublicKey
	Amount       uint64
	TotalClaimed uint64
	ClaimedAt    int64
}

// EventType satisfies the Event interface.
func (StakeRewardClaimed) EventType() string { return TypeStakeRewardClaimed }

// Event converts the structured payload into a broadcastable event.
func (e StakeRewardClaimed) Event() *types.Event {
	return &types.Event{Type: TypeStakeRewardClaimed, Attributes: map[string]string{
		"pool":         e.Pool.String(),
		"owner":        e.Owner.String(),
		"amount":       strconv.FormatUint(e.Amount, 10),
		"totalClaimed": strconv.FormatUint(e.TotalClaimed, 10),
		"claimedAt":    strconv.FormatInt(e.ClaimedAt, 10),
	}}
}

// StakeNftUnstaked records a cleared slot. Settled is the reward moved into
// the pool's claimable balance by the withdrawal.
type StakeNftUnstaked struct {
	Pool        solana.PublicKey
	Owner       solana.PublicKey
	Mint        solana.PublicKey
	Slot        int
	Settled     uint64
	TotalStaked uint64
}

// EventType satisfies the Event interface.
func (StakeNftUnstaked) EventType() string { return TypeStakeNftUnstaked }

// Event converts the structured payload into a broadcastable event.
func (e StakeNftUnstaked) Event() *types.Event {
	return &types.Event{Type: TypeStakeNftUnstaked, Attributes: map[string]string{
		"pool":        e.Pool.String(),
		"owner":       e.Owner.String(),
		"mint":        e.Mint.String(),
		"slot":        strconv.Itoa(e.Slot),
		"settled":     strconv.FormatUint(e.Settled, 10),
		"totalStaked": strconv.FormatUint(e.TotalStaked, 10),
	}}
}

// StakeRewardConfigUpdated records new reward rates and lock periods.
type StakeRewardConfigUpdated struct {
	Admin       solana.PublicKey
	RewardRates [3]uint64
	LockPeriods [3]int64
}

// EventType satisfies the Event interface.
func (StakeRewardConfigUpdated) EventType() string { return TypeStakeRewardConfigUpdated }

// Event converts the structured payload into a broadcastable event.
func (e StakeRewardConfigUpdated) Event() *types.Event {
	attrs := map[string]string{"admin": e.Admin.String()}
	for i := range e.RewardRates {
		mode := strconv.Itoa(i)
		attrs["rate"+mode] = strconv.FormatUint(e.RewardRates[i], 10)
		attrs["lock"+mode] = strconv.FormatInt(e.LockPeriods[i], 10)
	}
	return &types.Event{Type: TypeStakeRewardConfigUpdated, Attributes: attrs}
}

// StakePoolClosed records a pool returned to the system program.
type StakePoolClosed struct {
	Pool     solana.PublicKey
	Owner    solana.PublicKey
	Refunded uint64
}

// EventType satisfies the Event interface.
func (StakePoolClosed) EventType() string { return TypeStakePoolClosed }

// Event converts the structured payload into a broadcastable event.
func (e StakePoolClosed) Event() *types.Event {
	return &types.Event{Type: TypeStakePoolClosed, Attributes: map[string]string{
		"pool":     e.Pool.String(),
		"owner":    e.Owner.String(),
		"refunded": strconv.FormatUint(e.Refunded, 10),
	}}
}
