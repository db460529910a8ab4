package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"nftstake/crypto"
)

// Config is the daemon configuration persisted as TOML.
type Config struct {
	Environment         string    `toml:"Environment"`
	RPCAddress          string    `toml:"RPCAddress"`
	DataDir             string    `toml:"DataDir"`
	OperatorKeypairPath string    `toml:"OperatorKeypairPath"`
	Log                 Log       `toml:"log"`
	Telemetry           Telemetry `toml:"telemetry"`
	RPC                 RPC       `toml:"rpc"`
	Indexer             Indexer   `toml:"indexer"`
	Staking             Staking   `toml:"staking"`
	Genesis             Genesis   `toml:"genesis"`
}

// Load loads the configuration from the given path. A missing file is
// replaced by the defaults, which are written back so operators can edit them.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return createDefault(path)
	} else if err != nil {
		return nil, err
	}

	cfg, err := decode(path)
	if err != nil {
		return nil, err
	}
	if err := ensureOperatorKeypair(path, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Read parses an existing configuration without creating files or keys.
// Clients use it to pick up the [staking] defaults of a deployment.
func Read(path string) (*Config, error) {
	cfg, err := decode(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(path string) (*Config, error) {
	cfg := Default()
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		return nil, fmt.Errorf("config: %s has unknown keys: %s", path, strings.Join(keys, ", "))
	}
	if strings.TrimSpace(cfg.Environment) == "" {
		cfg.Environment = "local"
	}
	if cfg.Genesis.Allocations == nil {
		cfg.Genesis.Allocations = map[string]uint64{}
	}
	return cfg, nil
}

// Default returns the configuration written for a fresh node.
func Default() *Config {
	return &Config{
		Environment: "local",
		RPCAddress:  "127.0.0.1:8899",
		DataDir:     "./nftstake-data",
		Log: Log{
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 14,
		},
		Telemetry: Telemetry{
			Endpoint:    "localhost:4318",
			Insecure:    true,
			SampleRatio: 1,
		},
		RPC: RPC{
			RequestsPerSecond: 20,
			Burst:             40,
			ReadHeaderTimeout: 5,
			ReadTimeout:       15,
			WriteTimeout:      15,
			IdleTimeout:       60,
			FaucetLamports:    10_000_000_000,
		},
		Indexer: Indexer{
			Driver: "sqlite",
			DSN:    "",
		},
		Staking: Staking{
			RewardRates:       DefaultRewardRates(),
			LockPeriodSeconds: DefaultLockPeriods(),
			PoolCapacity:      10,
		},
		Genesis: Genesis{
			OperatorLamports: 1_000_000_000_000,
			Allocations:      map[string]uint64{},
		},
	}
}

// IndexerDSN resolves the indexer data source, placing the SQLite database
// inside DataDir when no DSN is configured.
func (c *Config) IndexerDSN() string {
	if dsn := strings.TrimSpace(c.Indexer.DSN); dsn != "" {
		return dsn
	}
	if c.Indexer.Driver == DriverSQLite {
		return filepath.Join(c.DataDir, "events.db")
	}
	return ""
}

// StatePath is the LevelDB directory holding accounts.
func (c *Config) StatePath() string {
	return filepath.Join(c.DataDir, "state")
}

func ensureOperatorKeypair(configPath string, cfg *Config) error {
	keyPath := cfg.OperatorKeypairPath
	if keyPath == "" {
		keyPath = defaultKeypairPath(configPath)
	}

	if _, err := os.Stat(keyPath); errors.Is(err, os.ErrNotExist) {
		key, genErr := crypto.GeneratePrivateKey()
		if genErr != nil {
			return genErr
		}
		if err := crypto.SaveKeypair(keyPath, key); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	if cfg.OperatorKeypairPath != keyPath {
		cfg.OperatorKeypairPath = keyPath
		return persist(configPath, cfg)
	}
	return nil
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}
	keyPath := defaultKeypairPath(path)
	if err := crypto.SaveKeypair(keyPath, key); err != nil {
		return nil, err
	}

	cfg := Default()
	cfg.OperatorKeypairPath = keyPath
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

func defaultKeypairPath(configPath string) string {
	dir := filepath.Dir(configPath)
	if dir == "." || dir == "" {
		dir = ""
	}
	return filepath.Join(dir, "operator.json")
}
