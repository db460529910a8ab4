package events

import (
	"strconv"

	"github.com/gagliardetto/solana-go"

	"nftstake/core/types"
)

const (
	// TypeTokenMinted is emitted when new supply is credited to an account.
	TypeTokenMinted = "token.minted"
	// TypeTokenTransferred is emitted for every movement between token accounts.
	TypeTokenTransferred = "token.transferred"
)

type TokenMinted struct {
	Mint        solana.PublicKey
	Destination solana.PublicKey
	Amount      uint64
	Supply      uint64
}

func (TokenMinted) EventType() string { return TypeTokenMinted }

func (e TokenMinted) Event() *types.Event {
	return &types.Event{Type: TypeTokenMinted, Attributes: map[string]string{
		"mint":        e.Mint.String(),
		"destination": e.Destination.String(),
		"amount":      strconv.FormatUint(e.Amount, 10),
		"supply":      strconv.FormatUint(e.Supply, 10),
	}}
}

type TokenTransferred struct {
	Mint        solana.PublicKey
	Source      solana.PublicKey
	Destination solana.PublicKey
	Authority   solana.PublicKey
	Amount      uint64
}

func (TokenTransferred) EventType() string { return TypeTokenTransferred }

func (e TokenTransferred) Event() *types.Event {
	return &types.Event{Type: TypeTokenTransferred, Attributes: map[string]string{
		"mint":        e.Mint.String(),
		"source":      e.Source.String(),
		"destination": e.Destination.String(),
		"authority":   e.Authority.String(),
		"amount":      strconv.FormatUint(e.Amount, 10),
	}}
}
