package state

import (
	"github.com/gagliardetto/solana-go"
)

var (
	accountKeyPrefix     = []byte("accounts/")
	ownerIndexPrefix     = []byte("owners/")
	transactionKeyPrefix = []byte("txs/")
	sequenceKey          = []byte("meta/sequence")
)

func prefixed(prefix []byte, parts ...[]byte) []byte {
	size := len(prefix)
	for _, part := range parts {
		size += len(part)
	}
	key := make([]byte, 0, size)
	key = append(key, prefix...)
	for _, part := range parts {
		key = append(key, part...)
	}
	return key
}

func accountKey(addr solana.PublicKey) []byte {
	return prefixed(accountKeyPrefix, addr.Bytes())
}

// ownerPrefix scopes an iteration to the accounts indexed under owner. Owner
// keys are fixed width so one owner's range never covers another's.
func ownerPrefix(owner solana.PublicKey) []byte {
	return prefixed(ownerIndexPrefix, owner.Bytes())
}

func ownerIndexKey(owner, addr solana.PublicKey) []byte {
	return prefixed(ownerIndexPrefix, owner.Bytes(), addr.Bytes())
}

// addressFromOwnerIndex extracts the account address from an owner index key.
func addressFromOwnerIndex(prefix, key []byte) (solana.PublicKey, bool) {
	if len(key) != len(prefix)+solana.PublicKeyLength {
		return solana.PublicKey{}, false
	}
	return solana.PublicKeyFromBytes(key[len(prefix):]), true
}

func transactionKey(sig solana.Signature) []byte {
	return prefixed(transactionKeyPrefix, sig[:])
}
