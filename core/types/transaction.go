package types

import (
	"errors"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/gagliardetto/solana-go"

	"nftstake/crypto"
)

var (
	ErrNoInstructions     = errors.New("transaction: no instructions")
	ErrMissingSignature   = errors.New("transaction: missing signature")
	ErrInvalidSignature   = errors.New("transaction: invalid signature")
	ErrSignatureCount     = errors.New("transaction: signature count mismatch")
	ErrUnknownSigningKey  = errors.New("transaction: key is not a required signer")
	ErrZeroFeePayer       = errors.New("transaction: fee payer required")
)

const (
	MaxInstructionsPerTx  = 16
	MaxAccountsPerMessage = 64
)

// AccountMeta declares an account an instruction touches and the privileges
// it requires.
type AccountMeta struct {
	PublicKey  solana.PublicKey `json:"pubkey"`
	IsSigner   bool             `json:"isSigner"`
	IsWritable bool             `json:"isWritable"`
}

// NewAccountMeta builds an AccountMeta.
func NewAccountMeta(pk solana.PublicKey, writable, signer bool) AccountMeta {
	return AccountMeta{PublicKey: pk, IsSigner: signer, IsWritable: writable}
}

// Instruction invokes one program with an ordered account list and opaque
// instruction data.
type Instruction struct {
	ProgramID solana.PublicKey `json:"programId"`
	Accounts  []AccountMeta    `json:"accounts"`
	Data      []byte           `json:"data"`
}

// Message is the signed portion of a transaction. The nonce only makes
// otherwise identical messages distinct.
type Message struct {
	FeePayer     solana.PublicKey `json:"feePayer"`
	Nonce        uint64           `json:"nonce"`
	Instructions []Instruction    `json:"instructions"`
}

// Encode returns the canonical RLP encoding that signers commit to.
func (m *Message) Encode() ([]byte, error) {
	return rlp.EncodeToBytes(m)
}

// Hash returns the keccak256 hash of the encoded message.
func (m *Message) Hash() ([]byte, error) {
	encoded, err := m.Encode()
	if err != nil {
		return nil, err
	}
	return ethcrypto.Keccak256(encoded), nil
}

// Signers lists the keys that must sign, fee payer first, then in order of
// first appearance as a signer meta.
func (m *Message) Signers() []solana.PublicKey {
	seen := map[solana.PublicKey]struct{}{m.FeePayer: {}}
	out := []solana.PublicKey{m.FeePayer}
	for _, ix := range m.Instructions {
		for _, meta := range ix.Accounts {
			if !meta.IsSigner {
				continue
			}
			if _, ok := seen[meta.PublicKey]; ok {
				continue
			}
			seen[meta.PublicKey] = struct{}{}
			out = append(out, meta.PublicKey)
		}
	}
	return out
}

// AccountKeys splits every referenced account into the writable and read-only
// sets. An account is writable if any instruction marks it writable; the fee
// payer is always writable.
func (m *Message) AccountKeys() (writable, readonly []solana.PublicKey) {
	flags := map[solana.PublicKey]bool{m.FeePayer: true}
	order := []solana.PublicKey{m.FeePayer}
	for _, ix := range m.Instructions {
		if _, ok := flags[ix.ProgramID]; !ok {
			flags[ix.ProgramID] = false
			order = append(order, ix.ProgramID)
		}
		for _, meta := range ix.Accounts {
			w, ok := flags[meta.PublicKey]
			if !ok {
				order = append(order, meta.PublicKey)
			}
			flags[meta.PublicKey] = w || meta.IsWritable
		}
	}
	for _, key := range order {
		if flags[key] {
			writable = append(writable, key)
		} else {
			readonly = append(readonly, key)
		}
	}
	return writable, readonly
}

// Transaction is a message plus one signature per required signer, in the
// order returned by Message.Signers.
type Transaction struct {
	Message    Message            `json:"message"`
	Signatures []solana.Signature `json:"signatures"`
}

// NewTransaction assembles an unsigned transaction.
func NewTransaction(feePayer solana.PublicKey, nonce uint64, instructions ...Instruction) *Transaction {
	return &Transaction{Message: Message{FeePayer: feePayer, Nonce: nonce, Instructions: instructions}}
}

// Sign signs the message with every supplied key. Keys that are not required
// signers are rejected; missing signers are detected by Verify.
func (tx *Transaction) Sign(keys ...solana.PrivateKey) error {
	msg, err := tx.Message.Encode()
	if err != nil {
		return err
	}
	signers := tx.Message.Signers()
	if len(tx.Signatures) != len(signers) {
		tx.Signatures = make([]solana.Signature, len(signers))
	}
	for _, key := range keys {
		pub := key.PublicKey()
		idx := -1
		for i, signer := range signers {
			if signer.Equals(pub) {
				idx = i
				break
			}
		}
		if idx < 0 {
			return fmt.Errorf("%w: %s", ErrUnknownSigningKey, pub)
		}
		sig, err := crypto.Sign(key, msg)
		if err != nil {
			return err
		}
		tx.Signatures[idx] = sig
	}
	return nil
}

// Verify checks structural limits and every required signature.
func (tx *Transaction) Verify() error {
	if tx == nil || len(tx.Message.Instructions) == 0 {
		return ErrNoInstructions
	}
	if tx.Message.FeePayer.IsZero() {
		return ErrZeroFeePayer
	}
	if len(tx.Message.Instructions) > MaxInstructionsPerTx {
		return fmt.Errorf("transaction: %d instructions exceeds limit %d", len(tx.Message.Instructions), MaxInstructionsPerTx)
	}
	writable, readonly := tx.Message.AccountKeys()
	if n := len(writable) + len(readonly); n > MaxAccountsPerMessage {
		return fmt.Errorf("transaction: %d accounts exceeds limit %d", n, MaxAccountsPerMessage)
	}
	signers := tx.Message.Signers()
	if len(tx.Signatures) != len(signers) {
		return fmt.Errorf("%w: have %d, need %d", ErrSignatureCount, len(tx.Signatures), len(signers))
	}
	msg, err := tx.Message.Encode()
	if err != nil {
		return err
	}
	for i, signer := range signers {
		if tx.Signatures[i].IsZero() {
			return fmt.Errorf("%w: %s", ErrMissingSignature, signer)
		}
		if !crypto.Verify(signer, msg, tx.Signatures[i]) {
			return fmt.Errorf("%w: %s", ErrInvalidSignature, signer)
		}
	}
	return nil
}

// ID returns the fee payer's signature, which identifies the transaction.
func (tx *Transaction) ID() solana.Signature {
	if tx == nil || len(tx.Signatures) == 0 {
		return solana.Signature{}
	}
	return tx.Signatures[0]
}

// MarshalBinary encodes the transaction with RLP.
func (tx *Transaction) MarshalBinary() ([]byte, error) {
	return rlp.EncodeToBytes(tx)
}

// UnmarshalBinary decodes an RLP encoded transaction.
func (tx *Transaction) UnmarshalBinary(data []byte) error {
	return rlp.DecodeBytes(data, tx)
}
