package types

import (
	"bytes"

	"github.com/gagliardetto/solana-go"
)

// Account is the ledger's unit of state: a lamport balance, the program that
// owns the account, and an opaque data buffer only that program may write.
type Account struct {
	Lamports uint64           `json:"lamports"`
	Owner    solana.PublicKey `json:"owner"`
	Data     []byte           `json:"data"`
}

// NewEmptyAccount returns the value observed at an address that holds nothing:
// zero lamports, no data, owned by the system program.
func NewEmptyAccount() *Account {
	return &Account{Owner: solana.SystemProgramID, Data: []byte{}}
}

// Clone returns a deep copy so callers can mutate it without touching the
// stored instance.
func (a *Account) Clone() *Account {
	if a == nil {
		return NewEmptyAccount()
	}
	clone := *a
	clone.Data = append([]byte{}, a.Data...)
	return &clone
}

// IsEmpty reports whether the account has never been created or was closed.
func (a *Account) IsEmpty() bool {
	if a == nil {
		return true
	}
	return a.Lamports == 0 && len(a.Data) == 0 && a.Owner.Equals(solana.SystemProgramID)
}

// Equal compares balance, owner and data.
func (a *Account) Equal(other *Account) bool {
	if a == nil || other == nil {
		return a == other
	}
	return a.Lamports == other.Lamports && a.Owner.Equals(other.Owner) && bytes.Equal(a.Data, other.Data)
}

// KeyedAccount pairs an account with its address.
type KeyedAccount struct {
	Address solana.PublicKey `json:"address"`
	Account *Account         `json:"account"`
}
