package main

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"nftstake/config"
	"nftstake/crypto"
	"nftstake/indexer"
	"nftstake/observability/logging"
	"nftstake/sdk/stakeclient"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg, err := config.Load(filepath.Join(dir, "config.toml"))
	require.NoError(t, err)
	cfg.DataDir = filepath.Join(dir, "data")
	cfg.RPC.RequestsPerSecond = 0
	return cfg
}

func startDaemon(t *testing.T, cfg *config.Config) (*stakeclient.Client, func()) {
	t.Helper()
	d, err := newDaemon(cfg, logging.Discard())
	require.NoError(t, err)
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.run(ctx, listener) }()

	stop := func() {
		cancel()
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("daemon did not stop")
		}
		d.close()
	}
	return stakeclient.New("http://" + listener.Addr().String()), stop
}

func TestDaemonFundsOperatorAtGenesis(t *testing.T) {
	cfg := testConfig(t)
	operator, err := crypto.LoadKeypair(cfg.OperatorKeypairPath)
	require.NoError(t, err)

	client, stop := startDaemon(t, cfg)
	ctx := context.Background()
	acct, err := client.Account(ctx, operator.PublicKey())
	require.NoError(t, err)
	require.Equal(t, cfg.Genesis.OperatorLamports, acct.Lamports)

	events, err := client.ListEvents(ctx, indexer.Filter{})
	require.NoError(t, err)
	require.Empty(t, events)
	stop()

	// State survives a restart and genesis is not applied twice.
	client, stop = startDaemon(t, cfg)
	defer stop()
	acct, err = client.Account(ctx, operator.PublicKey())
	require.NoError(t, err)
	require.Equal(t, cfg.Genesis.OperatorLamports, acct.Lamports)
}

func TestDaemonWithoutIndexer(t *testing.T) {
	cfg := testConfig(t)
	cfg.Indexer.Driver = ""
	client, stop := startDaemon(t, cfg)
	defer stop()

	_, err := client.ListEvents(context.Background(), indexer.Filter{})
	require.Error(t, err)
}
