package config

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"nftstake/crypto"
	"nftstake/native/staking"
)

// RewardConfig converts the configured staking parameters.
func (s Staking) RewardConfig() (staking.RewardConfig, error) {
	cfg := staking.RewardConfig{RewardRates: s.RewardRates, LockPeriods: s.LockPeriodSeconds}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// RewardMintAddress parses RewardMint. The boolean is false when unset.
func (s Staking) RewardMintAddress() (solana.PublicKey, bool, error) {
	if s.RewardMint == "" {
		return solana.PublicKey{}, false, nil
	}
	addr, err := crypto.ParseAddress(s.RewardMint)
	if err != nil {
		return solana.PublicKey{}, false, fmt.Errorf("%w: staking.RewardMint: %v", ErrInvalidConfig, err)
	}
	return addr, true, nil
}

// GenesisAllocations parses the configured genesis balances. When operator is
// non-nil it is credited with OperatorLamports on top of the listed entries.
func (c *Config) GenesisAllocations(operator *solana.PublicKey) (map[solana.PublicKey]uint64, error) {
	out := make(map[solana.PublicKey]uint64, len(c.Genesis.Allocations)+1)
	for raw, lamports := range c.Genesis.Allocations {
		addr, err := crypto.ParseAddress(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: genesis allocation %q: %v", ErrInvalidConfig, raw, err)
		}
		out[addr] += lamports
	}
	if operator != nil && c.Genesis.OperatorLamports > 0 {
		out[*operator] += c.Genesis.OperatorLamports
	}
	return out, nil
}
