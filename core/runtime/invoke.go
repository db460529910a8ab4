package runtime

import (
	"bytes"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/holiman/uint256"

	"nftstake/core/events"
	"nftstake/core/types"
	"nftstake/crypto"
	"nftstake/observability"
)

// AccountInfo is one entry of an instruction's account list. Programs mutate
// the embedded account in place; the runtime checks the result against the
// ownership rules once the program returns.
type AccountInfo struct {
	Key        solana.PublicKey
	IsSigner   bool
	IsWritable bool
	*types.Account
}

// execution is the copy-on-write overlay of a single transaction.
type execution struct {
	ledger    *Ledger
	now       int64
	declared  map[solana.PublicKey]bool
	originals map[solana.PublicKey]*types.Account
	accounts  map[solana.PublicKey]*types.Account
	stack     []solana.PublicKey
	events    []types.Event
	logs      []string
}

func newExecution(l *Ledger, tx *types.Transaction, writable, readonly []solana.PublicKey, now int64) *execution {
	declared := make(map[solana.PublicKey]bool, len(writable)+len(readonly))
	for _, key := range writable {
		declared[key] = true
	}
	for _, key := range readonly {
		declared[key] = false
	}
	return &execution{
		ledger:    l,
		now:       now,
		declared:  declared,
		originals: make(map[solana.PublicKey]*types.Account),
		accounts:  make(map[solana.PublicKey]*types.Account),
		events:    []types.Event{},
		logs:      []string{},
	}
}

func (e *execution) load(key solana.PublicKey) (*types.Account, error) {
	if account, ok := e.accounts[key]; ok {
		return account.Clone(), nil
	}
	if _, ok := e.declared[key]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingAccount, key)
	}
	account, err := e.ledger.store.Account(key)
	if err != nil {
		return nil, err
	}
	e.originals[key] = account.Clone()
	e.accounts[key] = account
	return account.Clone(), nil
}

// dirty returns the writable accounts whose state differs from the store.
func (e *execution) dirty() map[solana.PublicKey]*types.Account {
	out := make(map[solana.PublicKey]*types.Account)
	for key, account := range e.accounts {
		if !e.declared[key] {
			continue
		}
		if original, ok := e.originals[key]; ok && original.Equal(account) {
			continue
		}
		out[key] = account
	}
	return out
}

func (e *execution) run(programID solana.PublicKey, metas []types.AccountMeta, data []byte) error {
	program, ok := e.ledger.program(programID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownProgram, programID)
	}
	if len(e.stack) >= e.ledger.maxDepth {
		return fmt.Errorf("%w: depth %d", ErrCallDepth, len(e.stack))
	}
	for i, caller := range e.stack {
		if caller.Equals(programID) && i != len(e.stack)-1 {
			return fmt.Errorf("%w: %s", ErrReentrancy, programID)
		}
	}

	ictx := &InvokeContext{
		exec:      e,
		programID: programID,
		accounts:  make([]*AccountInfo, len(metas)),
		unique:    make(map[solana.PublicKey]*AccountInfo, len(metas)),
		pre:       make(map[solana.PublicKey]*types.Account, len(metas)),
	}
	for i, meta := range metas {
		if info, ok := ictx.unique[meta.PublicKey]; ok {
			info.IsSigner = info.IsSigner || meta.IsSigner
			info.IsWritable = info.IsWritable || meta.IsWritable
			ictx.accounts[i] = info
			continue
		}
		account, err := e.load(meta.PublicKey)
		if err != nil {
			return err
		}
		info := &AccountInfo{Key: meta.PublicKey, IsSigner: meta.IsSigner, IsWritable: meta.IsWritable, Account: account}
		ictx.unique[meta.PublicKey] = info
		ictx.pre[meta.PublicKey] = account.Clone()
		ictx.accounts[i] = info
	}

	e.stack = append(e.stack, programID)
	err := program.Execute(ictx, data)
	e.stack = e.stack[:len(e.stack)-1]
	observability.Ledger().RecordInstruction(programName(program), err)
	if err != nil {
		return err
	}
	return ictx.flush()
}

// InvokeContext is the view a program has of the instruction it executes.
type InvokeContext struct {
	exec      *execution
	programID solana.PublicKey
	accounts  []*AccountInfo
	unique    map[solana.PublicKey]*AccountInfo
	pre       map[solana.PublicKey]*types.Account
}

// ProgramID returns the id of the executing program.
func (c *InvokeContext) ProgramID() solana.PublicKey { return c.programID }

// AccountCount returns the number of entries in the account list.
func (c *InvokeContext) AccountCount() int { return len(c.accounts) }

// Account returns the i-th account of the instruction.
func (c *InvokeContext) Account(i int) (*AccountInfo, error) {
	if i < 0 || i >= len(c.accounts) {
		return nil, fmt.Errorf("%w: index %d of %d", ErrNotEnoughAccountKeys, i, len(c.accounts))
	}
	return c.accounts[i], nil
}

// Now returns the unix timestamp of the transaction.
func (c *InvokeContext) Now() int64 { return c.exec.now }

// Depth is the number of programs on the call stack, this one included.
func (c *InvokeContext) Depth() int { return len(c.exec.stack) }

// Emit records an event that is published only if the transaction commits.
func (c *InvokeContext) Emit(evt events.Event) {
	if evt == nil {
		return
	}
	c.exec.events = append(c.exec.events, events.ToTypes(evt))
}

// Logf appends a program log line to the receipt.
func (c *InvokeContext) Logf(format string, args ...any) {
	c.exec.logs = append(c.exec.logs, fmt.Sprintf("Program %s: %s", c.programID, fmt.Sprintf(format, args...)))
}

// Invoke runs ix as a nested instruction. Every account it names must already
// be available to the caller with at least the requested privileges, except
// that addresses derived from signerSeeds under the caller's program id are
// granted signer status.
func (c *InvokeContext) Invoke(ix types.Instruction, signerSeeds ...[][]byte) error {
	if err := c.flush(); err != nil {
		return err
	}
	derived := make(map[solana.PublicKey]struct{}, len(signerSeeds))
	for _, seeds := range signerSeeds {
		addr, err := crypto.CreateProgramAddress(seeds, c.programID)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidSeeds, err)
		}
		derived[addr] = struct{}{}
	}
	if _, ok := c.unique[ix.ProgramID]; !ok {
		return fmt.Errorf("%w: program %s", ErrMissingAccount, ix.ProgramID)
	}
	for _, meta := range ix.Accounts {
		info, ok := c.unique[meta.PublicKey]
		if !ok {
			return fmt.Errorf("%w: %s", ErrMissingAccount, meta.PublicKey)
		}
		if meta.IsWritable && !info.IsWritable {
			return fmt.Errorf("%w: %s is not writable", ErrPrivilegeEscalation, meta.PublicKey)
		}
		if meta.IsSigner && !info.IsSigner {
			if _, ok := derived[meta.PublicKey]; !ok {
				return fmt.Errorf("%w: %s did not sign", ErrPrivilegeEscalation, meta.PublicKey)
			}
		}
	}
	if err := c.exec.run(ix.ProgramID, ix.Accounts, ix.Data); err != nil {
		return err
	}
	for key, info := range c.unique {
		fresh, err := c.exec.load(key)
		if err != nil {
			return err
		}
		*info.Account = *fresh
		c.pre[key] = fresh.Clone()
	}
	return nil
}

// flush checks the program's changes since the last checkpoint and writes
// them into the transaction overlay.
func (c *InvokeContext) flush() error {
	var before, after uint256.Int
	for key, info := range c.unique {
		pre := c.pre[key]
		post := info.Account
		before.Add(&before, uint256.NewInt(pre.Lamports))
		after.Add(&after, uint256.NewInt(post.Lamports))

		if pre.Equal(post) {
			continue
		}
		if !info.IsWritable {
			return fmt.Errorf("%w: %s", ErrReadonlyModified, key)
		}
		owned := pre.Owner.Equals(c.programID)
		if !pre.Owner.Equals(post.Owner) && (!owned || !isZeroed(post.Data)) {
			return fmt.Errorf("%w: %s", ErrInvalidOwnerChange, key)
		}
		if !owned && !bytes.Equal(pre.Data, post.Data) {
			return fmt.Errorf("%w: data of %s", ErrExternalAccountModified, key)
		}
		if !owned && post.Lamports < pre.Lamports {
			return fmt.Errorf("%w: lamports of %s", ErrExternalAccountModified, key)
		}
		if len(post.Data) > MaxAccountDataSize {
			return fmt.Errorf("%w: %s", ErrAccountDataTooLarge, key)
		}
	}
	if !before.Eq(&after) {
		return fmt.Errorf("%w: %s -> %s", ErrUnbalancedInstruction, before.Dec(), after.Dec())
	}
	for key, info := range c.unique {
		if !info.IsWritable {
			continue
		}
		if info.Data == nil {
			info.Data = []byte{}
		}
		c.exec.accounts[key] = info.Account.Clone()
		c.pre[key] = info.Account.Clone()
	}
	return nil
}

func isZeroed(data []byte) bool {
	for _, b := range data {
		if b != 0 {
			return false
		}
	}
	return true
}
