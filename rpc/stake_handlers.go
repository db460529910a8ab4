package rpc

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gagliardetto/solana-go"

	"nftstake/core/types"
	"nftstake/crypto"
	"nftstake/indexer"
	"nftstake/native/staking"
	"nftstake/native/token"
)

var errGlobalNotInitialized = errors.New("global authority not initialized")

func parseAddressParam(raw json.RawMessage) (solana.PublicKey, error) {
	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		return solana.PublicKey{}, fmt.Errorf("address must be a base58 string")
	}
	return crypto.ParseAddress(text)
}

// singleAddress validates a params list holding exactly one address.
func singleAddress(w http.ResponseWriter, req *RPCRequest) (solana.PublicKey, bool) {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "exactly one address parameter expected", nil)
		return solana.PublicKey{}, false
	}
	addr, err := parseAddressParam(req.Params[0])
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid address", err.Error())
		return solana.PublicKey{}, false
	}
	return addr, true
}

func (s *Server) handleSendTransaction(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "transaction parameter required", nil)
		return
	}
	var encoded string
	if err := json.Unmarshal(req.Params[0], &encoded); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "transaction must be a base64 string", err.Error())
		return
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid base64 transaction", err.Error())
		return
	}
	var tx types.Transaction
	if err := tx.UnmarshalBinary(raw); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid transaction format", err.Error())
		return
	}
	receipt, err := s.ledger.Execute(r.Context(), &tx)
	if err != nil {
		writeTxError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, receiptResultFrom(receipt))
}

func (s *Server) handleGetAccount(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	addr, ok := singleAddress(w, req)
	if !ok {
		return
	}
	acct, err := s.ledger.Account(addr)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "failed to load account", err.Error())
		return
	}
	writeResult(w, req.ID, accountResultFrom(addr, acct))
}

func (s *Server) handleGetTokenAccount(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	addr, ok := singleAddress(w, req)
	if !ok {
		return
	}
	acct, err := s.loadTokenAccount(addr)
	if err != nil {
		writeError(w, http.StatusNotFound, req.ID, codeNotFound, "token account not found", err.Error())
		return
	}
	writeResult(w, req.ID, tokenAccountResultFrom(addr, acct))
}

func (s *Server) loadTokenAccount(addr solana.PublicKey) (*token.TokenAccount, error) {
	acct, err := s.ledger.Account(addr)
	if err != nil {
		return nil, err
	}
	if !acct.Owner.Equals(token.ProgramID) {
		return nil, fmt.Errorf("%s is not owned by the token program", addr)
	}
	return token.DecodeTokenAccount(acct.Data)
}

func (s *Server) loadGlobal() (solana.PublicKey, *staking.GlobalAuthority, error) {
	addr, _, err := staking.GlobalAddress()
	if err != nil {
		return addr, nil, err
	}
	acct, err := s.ledger.Account(addr)
	if err != nil {
		return addr, nil, err
	}
	if !acct.Owner.Equals(staking.ProgramID) {
		return addr, nil, errGlobalNotInitialized
	}
	global, err := staking.DecodeGlobalAuthority(acct.Data)
	if err != nil {
		return addr, nil, err
	}
	return addr, global, nil
}

func (s *Server) handleGetGlobal(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 0 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "no parameters expected", nil)
		return
	}
	addr, global, err := s.loadGlobal()
	if errors.Is(err, errGlobalNotInitialized) {
		writeError(w, http.StatusNotFound, req.ID, codeNotFound, err.Error(), addr.String())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "failed to load global authority", err.Error())
		return
	}
	result := GlobalResult{
		Address:     addr.String(),
		Bump:        global.Bump,
		Admin:       global.Admin.String(),
		RewardMint:  global.RewardMint.String(),
		RewardVault: global.RewardVault.String(),
		VaultBump:   global.VaultBump,
		Config:      rewardConfigResultFrom(global.Config),
		TotalStaked: global.TotalStaked,
	}
	if vault, err := s.loadTokenAccount(global.RewardVault); err == nil {
		result.VaultAmount = vault.Amount
	}
	writeResult(w, req.ID, result)
}

// pendingFor previews the claimable amount of pool at the ledger clock. When
// the global record is unreadable only the settled amount is reported.
func (s *Server) pendingFor(pool *staking.UserPool) (uint64, error) {
	_, global, err := s.loadGlobal()
	if err != nil {
		return pool.RewardAmount, nil
	}
	return staking.PendingReward(pool, global.Rate(pool.Mode), s.ledger.Now())
}

func (s *Server) handleGetPool(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	addr, ok := singleAddress(w, req)
	if !ok {
		return
	}
	acct, err := s.ledger.Account(addr)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "failed to load pool", err.Error())
		return
	}
	if !acct.Owner.Equals(staking.ProgramID) {
		writeError(w, http.StatusNotFound, req.ID, codeNotFound, "pool not found", addr.String())
		return
	}
	pool, err := staking.DecodeUserPool(acct.Data)
	if err != nil {
		writeError(w, http.StatusNotFound, req.ID, codeNotFound, "account is not a user pool", err.Error())
		return
	}
	pending, err := s.pendingFor(pool)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "failed to compute pending reward", err.Error())
		return
	}
	writeResult(w, req.ID, poolResultFrom(addr, pool, pending))
}

func (s *Server) handleListPools(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	owner, ok := singleAddress(w, req)
	if !ok {
		return
	}
	accounts, err := s.ledger.AccountsByOwner(staking.ProgramID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "failed to list pools", err.Error())
		return
	}
	pools := []PoolResult{}
	for _, keyed := range accounts {
		pool, err := staking.DecodeUserPool(keyed.Account.Data)
		if err != nil || !pool.Owner.Equals(owner) {
			continue
		}
		pending, err := s.pendingFor(pool)
		if err != nil {
			writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "failed to compute pending reward", err.Error())
			return
		}
		pools = append(pools, poolResultFrom(keyed.Address, pool, pending))
	}
	writeResult(w, req.ID, pools)
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if len(req.Params) > 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "too many parameters", nil)
		return
	}
	if s.events == nil {
		writeError(w, http.StatusServiceUnavailable, req.ID, codeServerError, "event index unavailable", nil)
		return
	}
	var filter indexer.Filter
	if len(req.Params) == 1 {
		dec := json.NewDecoder(bytes.NewReader(req.Params[0]))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&filter); err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid filter", err.Error())
			return
		}
	}
	records, err := s.events.List(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "failed to list events", err.Error())
		return
	}
	out := make([]EventResult, 0, len(records))
	for _, rec := range records {
		evt, err := eventResultFrom(rec)
		if err != nil {
			writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "corrupt event record", err.Error())
			return
		}
		out = append(out, evt)
	}
	writeResult(w, req.ID, out)
}

func (s *Server) handleRequestAirdrop(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if !s.cfg.EnableFaucet {
		writeError(w, http.StatusForbidden, req.ID, codeFaucetDisabled, "faucet disabled", nil)
		return
	}
	if len(req.Params) == 0 || len(req.Params) > 2 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "expected address and optional lamports", nil)
		return
	}
	addr, err := parseAddressParam(req.Params[0])
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid address", err.Error())
		return
	}
	lamports := s.cfg.FaucetLamports
	if len(req.Params) == 2 {
		if err := json.Unmarshal(req.Params[1], &lamports); err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "lamports must be an unsigned integer", err.Error())
			return
		}
		if lamports > s.cfg.FaucetLamports {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "airdrop exceeds faucet limit", s.cfg.FaucetLamports)
			return
		}
	}
	receipt, err := s.ledger.Airdrop(r.Context(), addr, lamports)
	if err != nil {
		writeTxError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, receiptResultFrom(receipt))
}

func (s *Server) handleGetSequence(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	writeResult(w, req.ID, map[string]interface{}{
		"sequence": s.ledger.Sequence(),
		"time":     s.ledger.Now(),
	})
}
