package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"

	"nftstake/crypto"
)

func TestLoadCreatesDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:8899", cfg.RPCAddress)
	require.Equal(t, filepath.Join(dir, "operator.json"), cfg.OperatorKeypairPath)
	require.FileExists(t, path)

	key, err := crypto.LoadKeypair(cfg.OperatorKeypairPath)
	require.NoError(t, err)

	reloaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg.OperatorKeypairPath, reloaded.OperatorKeypairPath)

	operator := key.PublicKey()
	allocs, err := reloaded.GenesisAllocations(&operator)
	require.NoError(t, err)
	require.Equal(t, map[solana.PublicKey]uint64{operator: reloaded.Genesis.OperatorLamports}, allocs)
}

func TestLoadParsesSettings(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	funded := solana.NewWallet().PublicKey()
	contents := `Environment = "staging"
RPCAddress = "0.0.0.0:9000"
DataDir = "` + filepath.ToSlash(filepath.Join(dir, "data")) + `"

[log]
Level = "debug"
File = "node.log"

[telemetry]
Traces = true
Endpoint = "otel:4318"
Headers = "authorization=token"
SampleRatio = 0.25

[rpc]
RequestsPerSecond = 5
Burst = 10
EnableFaucet = true
FaucetLamports = 42

[indexer]
Driver = "postgres"
DSN = "postgres://stake:secret@db/stake"

[staking]
RewardRates = [1, 2, 3]
LockPeriodSeconds = [0, 60, 120]
PoolCapacity = 25

[genesis]
OperatorLamports = 0

[genesis.Allocations]
"` + funded.String() + `" = 500
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "staging", cfg.Environment)
	require.Equal(t, "debug", cfg.Log.Level)
	require.True(t, cfg.Telemetry.Traces)
	require.Equal(t, 0.25, cfg.Telemetry.SampleRatio)
	require.Equal(t, 10, cfg.RPC.Burst)
	require.True(t, cfg.RPC.EnableFaucet)
	require.Equal(t, DriverPostgres, cfg.Indexer.Driver)
	require.Equal(t, "postgres://stake:secret@db/stake", cfg.IndexerDSN())
	require.Equal(t, uint8(25), cfg.Staking.PoolCapacity)
	require.Equal(t, filepath.Join(dir, "operator.json"), cfg.OperatorKeypairPath)

	rewards, err := cfg.Staking.RewardConfig()
	require.NoError(t, err)
	require.Equal(t, [3]uint64{1, 2, 3}, rewards.RewardRates)
	require.Equal(t, [3]int64{0, 60, 120}, rewards.LockPeriods)

	allocs, err := cfg.GenesisAllocations(nil)
	require.NoError(t, err)
	require.Equal(t, map[solana.PublicKey]uint64{funded: 500}, allocs)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("RPCAddress = \":1\"\nValidatorKey = \"abc\"\n"), 0o600))
	_, err := Load(path)
	require.ErrorContains(t, err, "ValidatorKey")
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty rpc address", func(c *Config) { c.RPCAddress = "" }},
		{"burst missing", func(c *Config) { c.RPC.Burst = 0 }},
		{"faucet without amount", func(c *Config) { c.RPC.EnableFaucet = true; c.RPC.FaucetLamports = 0 }},
		{"sample ratio", func(c *Config) { c.Telemetry.SampleRatio = 2 }},
		{"unknown driver", func(c *Config) { c.Indexer.Driver = "mysql" }},
		{"postgres without dsn", func(c *Config) { c.Indexer.Driver = DriverPostgres }},
		{"negative lock", func(c *Config) { c.Staking.LockPeriodSeconds[1] = -1 }},
		{"pool capacity", func(c *Config) { c.Staking.PoolCapacity = 51 }},
		{"bad allocation", func(c *Config) { c.Genesis.Allocations = map[string]uint64{"nope": 1} }},
	}
	require.NoError(t, Default().Validate())
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			require.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestIndexerDSNDefaultsIntoDataDir(t *testing.T) {
	cfg := Default()
	cfg.DataDir = "/var/lib/nftstake"
	require.Equal(t, filepath.Join("/var/lib/nftstake", "events.db"), cfg.IndexerDSN())
	cfg.Indexer.Driver = ""
	require.Empty(t, cfg.IndexerDSN())
}

func TestReadDoesNotCreateFiles(t *testing.T) {
	dir := t.TempDir()
	_, err := Read(filepath.Join(dir, "missing.toml"))
	require.Error(t, err)

	path := filepath.Join(dir, "client.toml")
	mint := solana.NewWallet().PublicKey()
	contents := `[staking]
RewardMint = "` + mint.String() + `"
RewardRates = [2, 4, 6]
LockPeriodSeconds = [0, 60, 120]
PoolCapacity = 3
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	cfg, err := Read(path)
	require.NoError(t, err)
	require.Empty(t, cfg.OperatorKeypairPath)
	require.NoFileExists(t, filepath.Join(dir, "operator.json"))

	addr, ok, err := cfg.Staking.RewardMintAddress()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, mint, addr)
	rewards, err := cfg.Staking.RewardConfig()
	require.NoError(t, err)
	require.Equal(t, [3]uint64{2, 4, 6}, rewards.RewardRates)
	require.Equal(t, uint8(3), cfg.Staking.PoolCapacity)
}

func TestValidateRejectsBadRewardMint(t *testing.T) {
	cfg := Default()
	_, ok, err := cfg.Staking.RewardMintAddress()
	require.NoError(t, err)
	require.False(t, ok)

	cfg.Staking.RewardMint = "not-base58!"
	require.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
}
