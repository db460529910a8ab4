package state

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/gagliardetto/solana-go"

	"nftstake/core/types"
	"nftstake/storage"
)

// Store persists accounts, an owner index and the set of processed
// transaction signatures on top of a key-value database.
type Store struct {
	db storage.Database

	// commitMu serialises batches so the sequence counter stays monotonic.
	commitMu sync.Mutex
	sequence uint64
}

// txRecord marks a processed signature. rlp has no signed integers, so the
// execution time is stored as unsigned seconds; pre-epoch clocks clamp to zero.
type txRecord struct {
	Sequence   uint64
	ExecutedAt uint64
}

func unixSeconds(ts int64) uint64 {
	if ts < 0 {
		return 0
	}
	return uint64(ts)
}

// NewStore opens the account store and restores the commit sequence.
func NewStore(db storage.Database) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("state: database required")
	}
	s := &Store{db: db}
	raw, err := db.Get(sequenceKey)
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		return nil, fmt.Errorf("state: load sequence: %w", err)
	default:
		if len(raw) != 8 {
			return nil, fmt.Errorf("state: corrupt sequence record")
		}
		s.sequence = binary.BigEndian.Uint64(raw)
	}
	return s, nil
}

// Sequence returns the number of committed transactions.
func (s *Store) Sequence() uint64 {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()
	return s.sequence
}

// Account loads the account at addr. Missing addresses yield an empty
// system-owned account rather than an error.
func (s *Store) Account(addr solana.PublicKey) (*types.Account, error) {
	raw, err := s.db.Get(accountKey(addr))
	if errors.Is(err, storage.ErrNotFound) {
		return types.NewEmptyAccount(), nil
	}
	if err != nil {
		return nil, err
	}
	account := new(types.Account)
	if err := rlp.DecodeBytes(raw, account); err != nil {
		return nil, fmt.Errorf("state: decode account %s: %w", addr, err)
	}
	if account.Data == nil {
		account.Data = []byte{}
	}
	return account, nil
}

// AccountsByOwner returns every stored account owned by the given program.
func (s *Store) AccountsByOwner(owner solana.PublicKey) ([]types.KeyedAccount, error) {
	prefix := ownerPrefix(owner)
	var addrs []solana.PublicKey
	err := s.db.Iterate(prefix, func(key, _ []byte) bool {
		if addr, ok := addressFromOwnerIndex(prefix, key); ok {
			addrs = append(addrs, addr)
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	out := make([]types.KeyedAccount, 0, len(addrs))
	for _, addr := range addrs {
		account, err := s.Account(addr)
		if err != nil {
			return nil, err
		}
		if account.IsEmpty() || !account.Owner.Equals(owner) {
			continue
		}
		out = append(out, types.KeyedAccount{Address: addr, Account: account})
	}
	return out, nil
}

// SeenTransaction reports whether a transaction with this signature was
// already committed.
func (s *Store) SeenTransaction(sig solana.Signature) (bool, error) {
	return s.db.Has(transactionKey(sig))
}

// Commit writes the modified accounts and the transaction marker in a single
// batch. Empty accounts are deleted. It returns the transaction's sequence.
func (s *Store) Commit(accounts map[solana.PublicKey]*types.Account, sig solana.Signature, executedAt int64) (uint64, error) {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	batch := s.db.NewBatch()
	for addr, account := range accounts {
		previous, err := s.Account(addr)
		if err != nil {
			return 0, err
		}
		if !previous.IsEmpty() && !previous.Owner.Equals(account.Owner) {
			batch.Delete(ownerIndexKey(previous.Owner, addr))
		}
		if account.IsEmpty() {
			batch.Delete(accountKey(addr))
			batch.Delete(ownerIndexKey(previous.Owner, addr))
			continue
		}
		encoded, err := rlp.EncodeToBytes(account)
		if err != nil {
			return 0, fmt.Errorf("state: encode account %s: %w", addr, err)
		}
		batch.Put(accountKey(addr), encoded)
		batch.Put(ownerIndexKey(account.Owner, addr), []byte{})
	}

	next := s.sequence + 1
	record, err := rlp.EncodeToBytes(&txRecord{Sequence: next, ExecutedAt: unixSeconds(executedAt)})
	if err != nil {
		return 0, fmt.Errorf("state: encode transaction record: %w", err)
	}
	batch.Put(transactionKey(sig), record)
	seq := make([]byte, 8)
	binary.BigEndian.PutUint64(seq, next)
	batch.Put(sequenceKey, seq)

	if err := batch.Write(); err != nil {
		return 0, fmt.Errorf("state: commit: %w", err)
	}
	s.sequence = next
	return next, nil
}
