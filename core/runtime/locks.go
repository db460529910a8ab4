package runtime

import (
	"context"
	"sync"

	"github.com/gagliardetto/solana-go"
)

// lockTable grants account locks all-or-nothing: a transaction waits until
// every writable key is free and no read-only key is held exclusively, then
// takes them in one step. No partial holds means no lock-order deadlocks.
type lockTable struct {
	mu      sync.Mutex
	writers map[solana.PublicKey]struct{}
	readers map[solana.PublicKey]int
	changed chan struct{}
}

func newLockTable() *lockTable {
	return &lockTable{
		writers: make(map[solana.PublicKey]struct{}),
		readers: make(map[solana.PublicKey]int),
		changed: make(chan struct{}),
	}
}

func (t *lockTable) acquire(ctx context.Context, writable, readonly []solana.PublicKey) error {
	for {
		t.mu.Lock()
		if t.available(writable, readonly) {
			for _, key := range writable {
				t.writers[key] = struct{}{}
			}
			for _, key := range readonly {
				t.readers[key]++
			}
			t.mu.Unlock()
			return nil
		}
		wait := t.changed
		t.mu.Unlock()

		select {
		case <-wait:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (t *lockTable) available(writable, readonly []solana.PublicKey) bool {
	for _, key := range writable {
		if _, held := t.writers[key]; held {
			return false
		}
		if t.readers[key] > 0 {
			return false
		}
	}
	for _, key := range readonly {
		if _, held := t.writers[key]; held {
			return false
		}
	}
	return true
}

func (t *lockTable) release(writable, readonly []solana.PublicKey) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, key := range writable {
		delete(t.writers, key)
	}
	for _, key := range readonly {
		if t.readers[key] <= 1 {
			delete(t.readers, key)
			continue
		}
		t.readers[key]--
	}
	close(t.changed)
	t.changed = make(chan struct{})
}
