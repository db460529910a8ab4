package stakeclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"

	"nftstake/core/events"
	"nftstake/core/runtime"
	"nftstake/core/state"
	"nftstake/indexer"
	"nftstake/native/staking"
	"nftstake/native/token"
	"nftstake/rpc"
	"nftstake/storage"
)

func TestCallDecodesRPCError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpc.RPCRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "stake_getGlobal", req.Method)
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32004,"message":"global authority not initialized"}}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL).Global(context.Background())
	var rpcErr *rpc.RPCError
	require.True(t, errors.As(err, &rpcErr))
	require.Equal(t, -32004, rpcErr.Code)
}

func TestCallRejectsEmptyResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL).Account(context.Background(), solana.NewWallet().PublicKey())
	require.ErrorIs(t, err, ErrEmptyResult)
}

func TestClientAgainstServer(t *testing.T) {
	st, err := state.NewStore(storage.NewMemDB())
	require.NoError(t, err)
	ledger := runtime.New(st)
	ledger.SetEmitter(events.NewBus())
	require.NoError(t, ledger.Register(token.New()))
	require.NoError(t, ledger.Register(staking.New()))
	admin := solana.NewWallet().PrivateKey
	require.NoError(t, ledger.Genesis(map[solana.PublicKey]uint64{admin.PublicKey(): 1_000_000_000_000}))

	server := rpc.NewServer(ledger, nil, nil, rpc.ServerConfig{EnableFaucet: true, FaucetLamports: 10_000_000_000}, nil)
	httpSrv := httptest.NewServer(server.Handler())
	defer httpSrv.Close()

	ctx := context.Background()
	client := New(httpSrv.URL)

	mint := solana.NewWallet().PrivateKey
	_, err = client.SignAndSend(ctx, admin, []solana.PrivateKey{mint},
		token.CreateMintInstructions(admin.PublicKey(), mint.PublicKey(), admin.PublicKey(), 6)...)
	require.NoError(t, err)
	deployment, err := staking.NewDeployment(mint.PublicKey())
	require.NoError(t, err)
	receipt, err := client.SignAndSend(ctx, admin, nil, deployment.Initialize(admin.PublicKey(), staking.DefaultRewardConfig()))
	require.NoError(t, err)
	require.NotEmpty(t, receipt.Signature)

	global, err := client.Global(ctx)
	require.NoError(t, err)
	require.Equal(t, deployment.Global.String(), global.Address)
	require.Equal(t, deployment.RewardVault.String(), global.RewardVault)

	user := solana.NewWallet().PrivateKey
	_, err = client.RequestAirdrop(ctx, user.PublicKey(), 0)
	require.NoError(t, err)
	acct, err := client.Account(ctx, user.PublicKey())
	require.NoError(t, err)
	require.Equal(t, uint64(10_000_000_000), acct.Lamports)

	ix, pool, err := deployment.InitUserPool(user.PublicKey(), solana.NewWallet().PublicKey(), staking.ModePassive7, 3)
	require.NoError(t, err)
	_, err = client.SignAndSend(ctx, user, nil, ix)
	require.NoError(t, err)

	pools, err := client.ListPools(ctx, user.PublicKey())
	require.NoError(t, err)
	require.Len(t, pools, 1)
	require.Equal(t, pool.String(), pools[0].Address)
	require.Equal(t, staking.ModePassive7.String(), pools[0].Mode)
	require.Equal(t, uint8(3), pools[0].Capacity)

	_, err = client.ListEvents(ctx, indexer.Filter{})
	var rpcErr *rpc.RPCError
	require.True(t, errors.As(err, &rpcErr))
}
