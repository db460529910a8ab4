package config

import (
	"errors"
	"fmt"
	"strings"

	"nftstake/native/staking"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("config: invalid")

// Validate checks the values the daemon cannot recover from at runtime.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.RPCAddress) == "" {
		return fmt.Errorf("%w: RPCAddress is empty", ErrInvalidConfig)
	}
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("%w: DataDir is empty", ErrInvalidConfig)
	}
	if c.RPC.RequestsPerSecond < 0 || c.RPC.Burst < 0 {
		return fmt.Errorf("%w: rpc rate limits must not be negative", ErrInvalidConfig)
	}
	if c.RPC.RequestsPerSecond > 0 && c.RPC.Burst == 0 {
		return fmt.Errorf("%w: rpc.Burst must be positive when RequestsPerSecond is set", ErrInvalidConfig)
	}
	if c.RPC.EnableFaucet && c.RPC.FaucetLamports == 0 {
		return fmt.Errorf("%w: rpc.FaucetLamports must be positive when the faucet is enabled", ErrInvalidConfig)
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("%w: telemetry.SampleRatio %v not in [0,1]", ErrInvalidConfig, c.Telemetry.SampleRatio)
	}
	switch c.Indexer.Driver {
	case "", DriverSQLite:
	case DriverPostgres:
		if strings.TrimSpace(c.Indexer.DSN) == "" {
			return fmt.Errorf("%w: indexer.DSN is required for postgres", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown indexer driver %q", ErrInvalidConfig, c.Indexer.Driver)
	}
	if _, err := c.Staking.RewardConfig(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.Staking.PoolCapacity == 0 || c.Staking.PoolCapacity > staking.MaxPoolCapacity {
		return fmt.Errorf("%w: staking.PoolCapacity %d not in 1..%d", ErrInvalidConfig, c.Staking.PoolCapacity, staking.MaxPoolCapacity)
	}
	if _, _, err := c.Staking.RewardMintAddress(); err != nil {
		return err
	}
	if _, err := c.GenesisAllocations(nil); err != nil {
		return err
	}
	return nil
}
