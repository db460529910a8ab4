package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"

	"nftstake/core/events"
	"nftstake/core/runtime"
	"nftstake/core/state"
	"nftstake/crypto"
	"nftstake/native/staking"
	"nftstake/native/token"
	"nftstake/rpc"
	"nftstake/sdk/stakeclient"
	"nftstake/storage"
)

type harness struct {
	t       *testing.T
	url     string
	keypair string
	config  string
	admin   solana.PrivateKey
	clock   *atomic.Int64
	client  *stakeclient.Client
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	st, err := state.NewStore(storage.NewMemDB())
	require.NoError(t, err)
	ledger := runtime.New(st)
	clock := new(atomic.Int64)
	clock.Store(1_700_000_000)
	ledger.SetNowFunc(clock.Load)
	ledger.SetEmitter(events.NewBus())
	require.NoError(t, ledger.Register(token.New()))
	require.NoError(t, ledger.Register(staking.New()))

	admin := solana.NewWallet().PrivateKey
	require.NoError(t, ledger.Genesis(map[solana.PublicKey]uint64{admin.PublicKey(): 1_000_000_000_000}))
	keypair := filepath.Join(t.TempDir(), "admin.json")
	require.NoError(t, crypto.SaveKeypair(keypair, admin))

	srv := httptest.NewServer(rpc.NewServer(ledger, nil, nil, rpc.ServerConfig{}, nil).Handler())
	t.Cleanup(srv.Close)
	return &harness{
		t:       t,
		url:     srv.URL,
		keypair: keypair,
		admin:   admin,
		clock:   clock,
		client:  stakeclient.New(srv.URL),
	}
}

func (h *harness) run(args ...string) (string, error) {
	h.t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = io.Discard
	global := []string{"nftstake", "--rpc", h.url, "--keypair", h.keypair}
	if h.config != "" {
		global = append(global, "--config", h.config)
	}
	err := app.Run(append(global, args...))
	return out.String(), err
}

func (h *harness) tx(args ...string) txOutput {
	h.t.Helper()
	out, err := h.run(args...)
	require.NoError(h.t, err, out)
	var decoded txOutput
	require.NoError(h.t, json.Unmarshal([]byte(out), &decoded))
	require.NotEmpty(h.t, decoded.Signature)
	return decoded
}

func (h *harness) tokenAmount(addr string) uint64 {
	h.t.Helper()
	pk, err := crypto.ParseAddress(addr)
	require.NoError(h.t, err)
	acct, err := h.client.TokenAccount(context.Background(), pk)
	require.NoError(h.t, err)
	return acct.Amount
}

func TestKeygenAndAddress(t *testing.T) {
	h := newHarness(t)
	path := filepath.Join(t.TempDir(), "user.json")

	out, err := h.run("keygen", "--out", path)
	require.NoError(t, err)
	var generated map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &generated))
	require.Equal(t, path, generated["path"])

	_, err = h.run("keygen", "--out", path)
	require.ErrorContains(t, err, "already exists")

	h.keypair = path
	out, err = h.run("address")
	require.NoError(t, err)
	require.Equal(t, generated["address"], strings.TrimSpace(out))
}

func TestParseRatesAndLocks(t *testing.T) {
	rates, err := parseRates("1, 2,3", 3)
	require.NoError(t, err)
	require.Equal(t, [3]uint64{1, 2, 3}, rates)
	locks, err := parseLocks("0,10,20", 3)
	require.NoError(t, err)
	require.Equal(t, int64(20), locks[staking.ModePassive30])

	_, err = parseRates("1,2", 3)
	require.Error(t, err)
	_, err = parseLocks("0,x,20", 3)
	require.Error(t, err)
}

func TestInitializeUsesConfiguredStakingDefaults(t *testing.T) {
	h := newHarness(t)
	rewardMint := h.tx("create-mint", "--decimals", "6").Addresses["mint"]

	h.config = filepath.Join(t.TempDir(), "stakingd.toml")
	contents := `[staking]
RewardMint = "` + rewardMint + `"
RewardRates = [2, 4, 6]
LockPeriodSeconds = [0, 60, 120]
PoolCapacity = 3
`
	require.NoError(t, os.WriteFile(h.config, []byte(contents), 0o600))

	h.tx("initialize")
	out, err := h.run("global")
	require.NoError(t, err)
	var global rpc.GlobalResult
	require.NoError(t, json.Unmarshal([]byte(out), &global))
	require.Equal(t, rewardMint, global.RewardMint)
	require.Equal(t, uint64(2), global.Config.RewardRates[staking.ModeActive.String()])
	require.Equal(t, int64(120), global.Config.LockPeriods[staking.ModePassive30.String()])

	pool := h.tx("init-pool").Addresses["pool"]
	out, err = h.run("pool", pool)
	require.NoError(t, err)
	var view rpc.PoolResult
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	require.Equal(t, uint8(3), view.Capacity)

	// Flags override the file.
	h.tx("set-reward-config", "--rates", "9,9,9")
	out, err = h.run("global")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &global))
	require.Equal(t, uint64(9), global.Config.RewardRates[staking.ModePassive7.String()])
	require.Equal(t, int64(60), global.Config.LockPeriods[staking.ModePassive7.String()])
}

func TestInitializeRequiresRewardMint(t *testing.T) {
	h := newHarness(t)
	_, err := h.run("initialize")
	require.ErrorContains(t, err, "--reward-mint is required")
}

func TestStakingLifecycle(t *testing.T) {
	h := newHarness(t)

	rewardMint := h.tx("create-mint", "--decimals", "6").Addresses["mint"]
	deployed := h.tx("initialize", "--reward-mint", rewardMint)
	h.tx("mint-to", "--mint", rewardMint, "--account", deployed.Addresses["rewardVault"], "--amount", "1000000")

	out, err := h.run("global")
	require.NoError(t, err)
	var global rpc.GlobalResult
	require.NoError(t, json.Unmarshal([]byte(out), &global))
	require.Equal(t, deployed.Addresses["global"], global.Address)
	require.Equal(t, rewardMint, global.RewardMint)
	require.Equal(t, uint64(1_000_000), global.VaultAmount)

	nft := h.tx("create-mint").Addresses["mint"]
	nftAccount := h.tx("create-token-account", "--mint", nft).Addresses["account"]
	h.tx("mint-to", "--mint", nft, "--account", nftAccount)
	rewardAccount := h.tx("create-token-account", "--mint", rewardMint).Addresses["account"]

	pool := h.tx("init-pool", "--mode", "active", "--capacity", "2").Addresses["pool"]
	staked := h.tx("stake", "--pool", pool, "--mint", nft, "--account", nftAccount)
	require.Equal(t, uint64(1), h.tokenAmount(staked.Addresses["escrow"]))
	require.Zero(t, h.tokenAmount(nftAccount))

	h.clock.Add(100)
	out, err = h.run("pool", pool)
	require.NoError(t, err)
	var view rpc.PoolResult
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	require.Equal(t, uint8(1), view.ItemCount)
	require.Equal(t, uint64(300), view.PendingReward)

	out, err = h.run("pool")
	require.NoError(t, err)
	var pools []rpc.PoolResult
	require.NoError(t, json.Unmarshal([]byte(out), &pools))
	require.Len(t, pools, 1)

	h.tx("claim", "--pool", pool, "--account", rewardAccount)
	require.Equal(t, uint64(300), h.tokenAmount(rewardAccount))

	h.tx("unstake", "--pool", pool, "--mint", nft, "--account", nftAccount)
	require.Equal(t, uint64(1), h.tokenAmount(nftAccount))

	h.tx("set-reward-config", "--rates", "1,2,3")
	out, err = h.run("global")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &global))
	require.Equal(t, uint64(1), global.Config.RewardRates[staking.ModeActive.String()])

	h.tx("close-pool", "--pool", pool)
	_, err = h.run("pool", pool)
	require.Error(t, err)
}

func TestStakeRequiresFlags(t *testing.T) {
	h := newHarness(t)
	_, err := h.run("stake", "--pool", solana.NewWallet().PublicKey().String())
	require.ErrorContains(t, err, "--mint is required")
}
