package config

import "nftstake/native/staking"

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Log controls the structured logger.
type Log struct {
	Level      string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Telemetry configures the OTLP exporters.
type Telemetry struct {
	Traces      bool
	Metrics     bool
	Endpoint    string
	Insecure    bool
	Headers     string // key=value,key2=value2
	SampleRatio float64
}

// RPC bounds the JSON-RPC server. Timeouts are in seconds.
type RPC struct {
	RequestsPerSecond float64
	Burst             int
	TrustProxyHeaders bool
	ReadHeaderTimeout int
	ReadTimeout       int
	WriteTimeout      int
	IdleTimeout       int
	// EnableFaucet exposes stake_requestAirdrop; never enable it outside
	// development networks.
	EnableFaucet   bool
	FaucetLamports uint64
}

// Indexer selects the SQL backend for committed events. An empty driver
// disables indexing.
type Indexer struct {
	Driver string
	DSN    string
}

// Staking holds the deployment defaults read by the nftstake CLI for
// initialize, init-pool and set-reward-config.
type Staking struct {
	RewardMint        string
	RewardRates       [3]uint64
	LockPeriodSeconds [3]int64
	PoolCapacity      uint8
}

// Genesis lists lamport balances credited when the ledger is empty. Keys are
// base58 addresses.
type Genesis struct {
	OperatorLamports uint64
	Allocations      map[string]uint64
}

// DefaultRewardRates returns the launch reward rates per stake mode.
func DefaultRewardRates() [3]uint64 {
	return staking.DefaultRewardConfig().RewardRates
}

// DefaultLockPeriods returns the launch lock periods per stake mode.
func DefaultLockPeriods() [3]int64 {
	return staking.DefaultRewardConfig().LockPeriods
}
