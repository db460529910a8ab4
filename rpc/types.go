package rpc

import (
	"encoding/json"
	"time"

	"github.com/gagliardetto/solana-go"

	"nftstake/core/runtime"
	"nftstake/core/types"
	"nftstake/indexer"
	"nftstake/native/staking"
	"nftstake/native/token"
)

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      interface{}       `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *RPCError) Error() string { return e.Message }

type ReceiptResult struct {
	Signature  string        `json:"signature"`
	Sequence   uint64        `json:"sequence"`
	ExecutedAt int64         `json:"executedAt"`
	Events     []types.Event `json:"events"`
	Logs       []string      `json:"logs"`
}

func receiptResultFrom(r *runtime.Receipt) ReceiptResult {
	out := ReceiptResult{
		Signature:  r.Signature.String(),
		Sequence:   r.Sequence,
		ExecutedAt: r.ExecutedAt,
		Events:     r.Events,
		Logs:       r.Logs,
	}
	if out.Events == nil {
		out.Events = []types.Event{}
	}
	if out.Logs == nil {
		out.Logs = []string{}
	}
	return out
}

type AccountResult struct {
	Address  string `json:"address"`
	Exists   bool   `json:"exists"`
	Lamports uint64 `json:"lamports"`
	Owner    string `json:"owner"`
	Data     []byte `json:"data"`
}

func accountResultFrom(addr solana.PublicKey, acct *types.Account) AccountResult {
	return AccountResult{
		Address:  addr.String(),
		Exists:   !acct.IsEmpty(),
		Lamports: acct.Lamports,
		Owner:    acct.Owner.String(),
		Data:     acct.Data,
	}
}

type RewardConfigResult struct {
	RewardRates map[string]uint64 `json:"rewardRates"`
	LockPeriods map[string]int64  `json:"lockPeriods"`
}

func rewardConfigResultFrom(cfg staking.RewardConfig) RewardConfigResult {
	out := RewardConfigResult{
		RewardRates: make(map[string]uint64, len(cfg.RewardRates)),
		LockPeriods: make(map[string]int64, len(cfg.LockPeriods)),
	}
	for i := range cfg.RewardRates {
		mode := staking.StakeMode(i).String()
		out.RewardRates[mode] = cfg.RewardRates[i]
		out.LockPeriods[mode] = cfg.LockPeriods[i]
	}
	return out
}

type GlobalResult struct {
	Address     string             `json:"address"`
	Bump        uint8              `json:"bump"`
	Admin       string             `json:"admin"`
	RewardMint  string             `json:"rewardMint"`
	RewardVault string             `json:"rewardVault"`
	VaultBump   uint8              `json:"vaultBump"`
	Config      RewardConfigResult `json:"config"`
	TotalStaked uint64             `json:"totalStaked"`
	VaultAmount uint64             `json:"vaultAmount"`
}

type SlotResult struct {
	Index        int    `json:"index"`
	Mint         string `json:"mint"`
	StakedAt     int64  `json:"stakedAt"`
	AccruedFrom  int64  `json:"accruedFrom"`
	RewardAmount uint64 `json:"rewardAmount"`
}

type PoolResult struct {
	Address       string       `json:"address"`
	Owner         string       `json:"owner"`
	Discriminator string       `json:"discriminator"`
	Bump          uint8        `json:"bump"`
	Mode          string       `json:"mode"`
	Capacity      uint8        `json:"capacity"`
	ItemCount     uint8        `json:"itemCount"`
	RewardAmount  uint64       `json:"rewardAmount"`
	PendingReward uint64       `json:"pendingReward"`
	TotalClaimed  uint64       `json:"totalClaimed"`
	LastClaimedAt int64        `json:"lastClaimedAt"`
	CreatedAt     int64        `json:"createdAt"`
	Slots         []SlotResult `json:"slots"`
}

func poolResultFrom(addr solana.PublicKey, pool *staking.UserPool, pending uint64) PoolResult {
	out := PoolResult{
		Address:       addr.String(),
		Owner:         pool.Owner.String(),
		Discriminator: pool.Discriminator.String(),
		Bump:          pool.Bump,
		Mode:          pool.Mode.String(),
		Capacity:      pool.Capacity,
		ItemCount:     pool.ItemCount,
		RewardAmount:  pool.RewardAmount,
		PendingReward: pending,
		TotalClaimed:  pool.TotalClaimed,
		LastClaimedAt: pool.LastClaimedAt,
		CreatedAt:     pool.CreatedAt,
		Slots:         []SlotResult{},
	}
	for i, slot := range pool.Slots {
		if !slot.Occupied {
			continue
		}
		out.Slots = append(out.Slots, SlotResult{
			Index:        i,
			Mint:         slot.Mint.String(),
			StakedAt:     slot.StakedAt,
			AccruedFrom:  slot.AccruedFrom,
			RewardAmount: slot.RewardAmount,
		})
	}
	return out
}

type TokenAccountResult struct {
	Address string `json:"address"`
	Mint    string `json:"mint"`
	Owner   string `json:"owner"`
	Amount  uint64 `json:"amount"`
}

func tokenAccountResultFrom(addr solana.PublicKey, acct *token.TokenAccount) TokenAccountResult {
	return TokenAccountResult{
		Address: addr.String(),
		Mint:    acct.Mint.String(),
		Owner:   acct.Owner.String(),
		Amount:  acct.Amount,
	}
}

type EventResult struct {
	Signature  string            `json:"signature"`
	Position   int               `json:"position"`
	Sequence   uint64            `json:"sequence"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
	ExecutedAt time.Time         `json:"executedAt"`
}

func eventResultFrom(rec indexer.EventRecord) (EventResult, error) {
	attrs, err := indexer.DecodeAttributes(rec)
	if err != nil {
		return EventResult{}, err
	}
	return EventResult{
		Signature:  rec.Signature,
		Position:   rec.Position,
		Sequence:   rec.Sequence,
		Type:       rec.Type,
		Attributes: attrs,
		ExecutedAt: rec.ExecutedAt,
	}, nil
}

// StreamEvent is the websocket frame for one committed event.
type StreamEvent struct {
	Signature  string            `json:"signature"`
	Sequence   uint64            `json:"sequence"`
	Position   int               `json:"position"`
	ExecutedAt int64             `json:"executedAt"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}
