package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"nftstake/core/events"
	"nftstake/core/state"
	"nftstake/core/types"
	"nftstake/observability"
	"nftstake/observability/logging"
	telemetry "nftstake/observability/otel"
)

// DefaultMaxInvokeDepth bounds nested cross-program invocations.
const DefaultMaxInvokeDepth = 4

// Program is native code that owns accounts and processes instructions
// addressed to its id.
type Program interface {
	ID() solana.PublicKey
	Execute(ctx *InvokeContext, data []byte) error
}

// Named programs label metrics and logs with a readable name.
type Named interface {
	Name() string
}

// Receipt describes a committed transaction.
type Receipt struct {
	Signature  solana.Signature `json:"signature"`
	Sequence   uint64           `json:"sequence"`
	ExecutedAt int64            `json:"executedAt"`
	Events     []types.Event    `json:"events"`
	Logs       []string         `json:"logs"`
}

// CommittedEvent wraps an event emitted by a program once its transaction has
// been durably committed.
type CommittedEvent struct {
	Signature  solana.Signature
	Sequence   uint64
	Index      int
	ExecutedAt int64
	Payload    types.Event
}

// EventType satisfies events.Event.
func (e CommittedEvent) EventType() string { return e.Payload.Type }

// Event exposes the wire payload.
func (e CommittedEvent) Event() *types.Event {
	out := e.Payload
	return &out
}

// Ledger executes signed transactions atomically against the account store.
// Transactions whose declared accounts do not overlap run in parallel.
type Ledger struct {
	store *state.Store
	locks *lockTable

	mu       sync.RWMutex
	programs map[solana.PublicKey]Program

	emitter  events.Emitter
	logger   *slog.Logger
	nowFn    func() int64
	tracer   trace.Tracer
	maxDepth int
}

// New creates a ledger over store with the system program registered.
func New(store *state.Store) *Ledger {
	l := &Ledger{
		store:    store,
		locks:    newLockTable(),
		programs: make(map[solana.PublicKey]Program),
		emitter:  events.NoopEmitter{},
		logger:   logging.Discard(),
		nowFn:    func() int64 { return time.Now().Unix() },
		tracer:   telemetry.Tracer("ledger"),
		maxDepth: DefaultMaxInvokeDepth,
	}
	l.programs[SystemProgramID] = SystemProgram{}
	return l
}

// Register installs a program under its id.
func (l *Ledger) Register(p Program) error {
	if p == nil {
		return fmt.Errorf("runtime: nil program")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.programs[p.ID()]; exists {
		return fmt.Errorf("%w: %s", ErrProgramRegistered, p.ID())
	}
	l.programs[p.ID()] = p
	return nil
}

// SetNowFunc overrides the clock observed by programs. Primarily intended for
// tests to provide deterministic timestamps.
func (l *Ledger) SetNowFunc(now func() int64) {
	if now == nil {
		l.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	l.nowFn = now
}

// SetEmitter configures where committed events are published. Passing nil
// resets to a no-op emitter.
func (l *Ledger) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		l.emitter = events.NoopEmitter{}
		return
	}
	l.emitter = emitter
}

// SetLogger configures the transaction logger.
func (l *Ledger) SetLogger(logger *slog.Logger) {
	if logger == nil {
		l.logger = logging.Discard()
		return
	}
	l.logger = logging.Component(logger, "ledger")
}

// Now returns the ledger clock.
func (l *Ledger) Now() int64 { return l.nowFn() }

// Sequence returns the number of committed transactions.
func (l *Ledger) Sequence() uint64 { return l.store.Sequence() }

// Account returns the committed state of addr.
func (l *Ledger) Account(addr solana.PublicKey) (*types.Account, error) {
	return l.store.Account(addr)
}

// AccountsByOwner lists the committed accounts owned by a program.
func (l *Ledger) AccountsByOwner(owner solana.PublicKey) ([]types.KeyedAccount, error) {
	return l.store.AccountsByOwner(owner)
}

func (l *Ledger) program(id solana.PublicKey) (Program, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	p, ok := l.programs[id]
	return p, ok
}

func programName(p Program) string {
	if named, ok := p.(Named); ok {
		return named.Name()
	}
	return p.ID().String()
}

// Execute verifies, locks and runs tx. Either every instruction succeeds and
// the resulting account set is committed in one batch, or nothing is
// persisted and no event is published.
func (l *Ledger) Execute(ctx context.Context, tx *types.Transaction) (*Receipt, error) {
	started := time.Now()
	metrics := observability.Ledger()
	ctx, span := l.tracer.Start(ctx, "ledger.Execute")
	defer span.End()

	fail := func(outcome string, err error) (*Receipt, error) {
		span.RecordError(err)
		span.SetAttributes(telemetry.OutcomeKey.String(outcome))
		span.SetStatus(codes.Error, outcome)
		metrics.ObserveTransaction(outcome, time.Since(started))
		l.logger.Debug("transaction rejected",
			"outcome", outcome,
			logging.MaskStringer("payer", tx.Message.FeePayer),
			"error", err)
		return nil, err
	}

	if err := tx.Verify(); err != nil {
		return fail("invalid", err)
	}
	sig := tx.ID()
	span.SetAttributes(
		telemetry.SignatureKey.String(sig.String()),
		telemetry.FeePayerKey.String(tx.Message.FeePayer.String()),
		telemetry.InstructionsKey.Int(len(tx.Message.Instructions)),
	)

	writable, readonly := tx.Message.AccountKeys()
	waitStart := time.Now()
	if err := l.locks.acquire(ctx, writable, readonly); err != nil {
		return fail("not_admitted", fmt.Errorf("%w: %v", ErrNotAdmitted, err))
	}
	metrics.ObserveLockWait(time.Since(waitStart))
	metrics.TrackInflight(1)
	defer func() {
		l.locks.release(writable, readonly)
		metrics.TrackInflight(-1)
	}()

	seen, err := l.store.SeenTransaction(sig)
	if err != nil {
		return fail("error", err)
	}
	if seen {
		return fail("duplicate", fmt.Errorf("%w: %s", ErrDuplicateTransaction, sig))
	}

	now := l.nowFn()
	exec := newExecution(l, tx, writable, readonly, now)
	for i, ix := range tx.Message.Instructions {
		if err := exec.run(ix.ProgramID, ix.Accounts, ix.Data); err != nil {
			return fail("failed", &InstructionError{Index: i, Program: ix.ProgramID, Err: err})
		}
	}

	seq, err := l.store.Commit(exec.dirty(), sig, now)
	if err != nil {
		return fail("error", err)
	}
	receipt := &Receipt{
		Signature:  sig,
		Sequence:   seq,
		ExecutedAt: now,
		Events:     exec.events,
		Logs:       exec.logs,
	}
	l.publish(receipt)

	metrics.ObserveTransaction("committed", time.Since(started))
	span.SetAttributes(
		telemetry.OutcomeKey.String("committed"),
		telemetry.SequenceKey.Int64(int64(seq)),
	)
	span.SetStatus(codes.Ok, "")
	l.logger.Info("transaction committed",
		logging.MaskStringer("signature", sig),
		logging.MaskStringer("payer", tx.Message.FeePayer),
		"sequence", seq,
		"instructions", len(tx.Message.Instructions),
		"events", len(receipt.Events))
	return receipt, nil
}

func (l *Ledger) publish(receipt *Receipt) {
	for i, evt := range receipt.Events {
		observability.Events().RecordEmitted(evt.Type)
		l.logger.Debug("event emitted",
			"event", evt.Type,
			"sequence", receipt.Sequence,
			logging.MaskField("pool", evt.Attributes["pool"]),
			logging.MaskField("owner", evt.Attributes["owner"]),
			logging.MaskField("mint", evt.Attributes["mint"]))
		l.emitter.Emit(CommittedEvent{
			Signature:  receipt.Signature,
			Sequence:   receipt.Sequence,
			Index:      i,
			ExecutedAt: receipt.ExecutedAt,
			Payload:    evt,
		})
	}
}

// Genesis funds system-owned accounts on an empty ledger.
func (l *Ledger) Genesis(allocations map[solana.PublicKey]uint64) error {
	if l.store.Sequence() != 0 {
		return ErrGenesisApplied
	}
	accounts := make(map[solana.PublicKey]*types.Account, len(allocations))
	for addr, lamports := range allocations {
		if lamports == 0 {
			continue
		}
		accounts[addr] = &types.Account{Lamports: lamports, Owner: SystemProgramID, Data: []byte{}}
	}
	_, err := l.store.Commit(accounts, syntheticSignature("genesis", nil), l.nowFn())
	return err
}

// Airdrop credits lamports to addr outside of any signed transaction. It is a
// development faucet; callers gate it.
func (l *Ledger) Airdrop(ctx context.Context, addr solana.PublicKey, lamports uint64) (*Receipt, error) {
	if lamports == 0 {
		return nil, fmt.Errorf("%w: zero airdrop", ErrInvalidInstructionData)
	}
	keys := []solana.PublicKey{addr}
	if err := l.locks.acquire(ctx, keys, nil); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotAdmitted, err)
	}
	defer l.locks.release(keys, nil)

	account, err := l.store.Account(addr)
	if err != nil {
		return nil, err
	}
	if account.Lamports > math.MaxUint64-lamports {
		return nil, fmt.Errorf("%w: balance overflow", ErrInvalidAccountData)
	}
	account.Lamports += lamports
	sig := syntheticSignature("airdrop", addr[:])
	now := l.nowFn()
	seq, err := l.store.Commit(map[solana.PublicKey]*types.Account{addr: account}, sig, now)
	if err != nil {
		return nil, err
	}
	l.logger.Info("airdrop committed", logging.MaskStringer("address", addr), "lamports", lamports)
	return &Receipt{Signature: sig, Sequence: seq, ExecutedAt: now, Events: []types.Event{}, Logs: []string{}}, nil
}

func syntheticSignature(kind string, salt []byte) solana.Signature {
	var sig solana.Signature
	nonce := uuid.New()
	copy(sig[:32], ethcrypto.Keccak256([]byte(kind), nonce[:]))
	copy(sig[32:], ethcrypto.Keccak256(salt, nonce[:]))
	return sig
}

// IsDuplicate reports whether err marks a replayed transaction.
func IsDuplicate(err error) bool { return errors.Is(err, ErrDuplicateTransaction) }
