// Package stakeclient is a typed JSON-RPC client for the staking daemon.
package stakeclient

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gagliardetto/solana-go"

	"nftstake/core/types"
	"nftstake/indexer"
	"nftstake/rpc"
)

// ErrEmptyResult is returned when the server answers without result or error.
var ErrEmptyResult = errors.New("stakeclient: empty response")

// Client issues JSON-RPC calls against a single endpoint.
type Client struct {
	endpoint string
	http     *http.Client
	nextID   atomic.Uint64
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// New returns a client for endpoint, e.g. "http://127.0.0.1:8899".
func New(endpoint string, opts ...Option) *Client {
	c := &Client{
		endpoint: strings.TrimRight(strings.TrimSpace(endpoint), "/") + "/",
		http:     &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Call invokes method and decodes the result into out. Server-side failures
// are returned as *rpc.RPCError.
func (c *Client) Call(ctx context.Context, method string, out interface{}, params ...interface{}) error {
	raw := make([]json.RawMessage, 0, len(params))
	for _, p := range params {
		encoded, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("stakeclient: encode %s params: %w", method, err)
		}
		raw = append(raw, encoded)
	}
	body, err := json.Marshal(rpc.RPCRequest{JSONRPC: "2.0", Method: method, Params: raw, ID: c.nextID.Add(1)})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("stakeclient: %s: %w", method, err)
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("stakeclient: read %s response: %w", method, err)
	}

	var decoded struct {
		Result json.RawMessage `json:"result"`
		Error  *rpc.RPCError   `json:"error"`
	}
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return fmt.Errorf("stakeclient: %s: http %d: %w", method, resp.StatusCode, err)
	}
	if decoded.Error != nil {
		return decoded.Error
	}
	if len(decoded.Result) == 0 {
		return ErrEmptyResult
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(decoded.Result, out)
}

// SendTransaction submits a signed transaction and waits for its receipt.
func (c *Client) SendTransaction(ctx context.Context, tx *types.Transaction) (*rpc.ReceiptResult, error) {
	raw, err := tx.MarshalBinary()
	if err != nil {
		return nil, err
	}
	var receipt rpc.ReceiptResult
	if err := c.Call(ctx, "stake_sendTransaction", &receipt, base64.StdEncoding.EncodeToString(raw)); err != nil {
		return nil, err
	}
	return &receipt, nil
}

// SignAndSend builds a transaction paid by payer, signs it with payer and
// extra, and submits it.
func (c *Client) SignAndSend(ctx context.Context, payer solana.PrivateKey, extra []solana.PrivateKey, ixs ...types.Instruction) (*rpc.ReceiptResult, error) {
	tx := types.NewTransaction(payer.PublicKey(), uint64(time.Now().UnixNano())+c.nextID.Add(1), ixs...)
	if err := tx.Sign(append([]solana.PrivateKey{payer}, extra...)...); err != nil {
		return nil, err
	}
	return c.SendTransaction(ctx, tx)
}

func (c *Client) Account(ctx context.Context, addr solana.PublicKey) (*rpc.AccountResult, error) {
	var out rpc.AccountResult
	if err := c.Call(ctx, "stake_getAccount", &out, addr.String()); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) TokenAccount(ctx context.Context, addr solana.PublicKey) (*rpc.TokenAccountResult, error) {
	var out rpc.TokenAccountResult
	if err := c.Call(ctx, "stake_getTokenAccount", &out, addr.String()); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Global(ctx context.Context) (*rpc.GlobalResult, error) {
	var out rpc.GlobalResult
	if err := c.Call(ctx, "stake_getGlobal", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Pool(ctx context.Context, addr solana.PublicKey) (*rpc.PoolResult, error) {
	var out rpc.PoolResult
	if err := c.Call(ctx, "stake_getPool", &out, addr.String()); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListPools returns every pool owned by owner.
func (c *Client) ListPools(ctx context.Context, owner solana.PublicKey) ([]rpc.PoolResult, error) {
	var out []rpc.PoolResult
	if err := c.Call(ctx, "stake_listPools", &out, owner.String()); err != nil {
		return nil, err
	}
	return out, nil
}

// ListEvents queries the event index.
func (c *Client) ListEvents(ctx context.Context, filter indexer.Filter) ([]rpc.EventResult, error) {
	var out []rpc.EventResult
	if err := c.Call(ctx, "stake_listEvents", &out, filter); err != nil {
		return nil, err
	}
	return out, nil
}

// RequestAirdrop asks the development faucet for lamports. Zero requests the
// faucet default.
func (c *Client) RequestAirdrop(ctx context.Context, addr solana.PublicKey, lamports uint64) (*rpc.ReceiptResult, error) {
	params := []interface{}{addr.String()}
	if lamports > 0 {
		params = append(params, lamports)
	}
	var out rpc.ReceiptResult
	if err := c.Call(ctx, "stake_requestAirdrop", &out, params...); err != nil {
		return nil, err
	}
	return &out, nil
}
