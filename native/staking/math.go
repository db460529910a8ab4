package staking

import (
	"fmt"

	"github.com/holiman/uint256"
)

// accrue returns rate × (now − from). Time never runs backwards for accrual:
// a reference point in the future yields zero.
func accrue(rate uint64, from, now int64) (uint64, error) {
	if now <= from || rate == 0 {
		return 0, nil
	}
	elapsed := uint256.NewInt(uint64(now - from))
	reward, overflow := new(uint256.Int).MulOverflow(uint256.NewInt(rate), elapsed)
	if overflow || !reward.IsUint64() {
		return 0, fmt.Errorf("%w: %d × %ds", ErrArithmeticOverflow, rate, now-from)
	}
	return reward.Uint64(), nil
}

func addReward(a, b uint64) (uint64, error) {
	sum, overflow := new(uint256.Int).AddOverflow(uint256.NewInt(a), uint256.NewInt(b))
	if overflow || !sum.IsUint64() {
		return 0, fmt.Errorf("%w: %d + %d", ErrArithmeticOverflow, a, b)
	}
	return sum.Uint64(), nil
}

// PendingReward computes what claimReward would pay at now without touching
// the pool. It is used by read paths.
func PendingReward(pool *UserPool, rate uint64, now int64) (uint64, error) {
	total := pool.RewardAmount
	for _, slot := range pool.Slots {
		if !slot.Occupied {
			continue
		}
		reward, err := accrue(rate, slot.AccruedFrom, now)
		if err != nil {
			return 0, err
		}
		if total, err = addReward(total, reward); err != nil {
			return 0, err
		}
	}
	return total, nil
}
