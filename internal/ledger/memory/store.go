// Package memory is an in-process ledger store for tests and single-node devnets.
package memory

import (
	"bytes"
	"context"
	"slices"
	"sync"
	"time"

	"subvault/internal/ledger"
)

var _ ledger.Store = (*Store)(nil)

type Store struct {
	mu       sync.RWMutex
	accounts map[ledger.Address]*ledger.Account
	events   []ledger.Event
	now      func() time.Time
}

type Option func(*Store)

// WithClock replaces the wall clock used for transaction timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func NewStore(opts ...Option) *Store {
	s := &Store{
		accounts: make(map[ledger.Address]*ledger.Account),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Update runs fn against a private overlay and merges it only on success.
// Updates are serialized.
func (s *Store) Update(ctx context.Context, fn func(tx ledger.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{store: s, writes: make(map[ledger.Address]*ledger.Account), now: s.now(), writable: true}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	for addr, acc := range tx.writes {
		s.accounts[addr] = acc
	}
	s.events = append(s.events, tx.events...)
	return nil
}

func (s *Store) View(ctx context.Context, fn func(tx ledger.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(&memTx{store: s, now: s.now()})
}

func (s *Store) Events(ctx context.Context, limit int) ([]ledger.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	start := 0
	if limit > 0 && len(s.events) > limit {
		start = len(s.events) - limit
	}
	return slices.Clone(s.events[start:]), nil
}

type memTx struct {
	store    *Store
	writes   map[ledger.Address]*ledger.Account
	events   []ledger.Event
	now      time.Time
	writable bool
}

func (t *memTx) Get(ctx context.Context, addr ledger.Address) (*ledger.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if acc, ok := t.writes[addr]; ok {
		return acc.Clone(), nil
	}
	if acc, ok := t.store.accounts[addr]; ok {
		return acc.Clone(), nil
	}
	return nil, ledger.ErrAccountNotFound
}

func (t *memTx) Put(ctx context.Context, acc *ledger.Account) error {
	if !t.writable {
		return ledger.ErrReadOnly
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	t.writes[acc.Address] = acc.Clone()
	return nil
}

func (t *memTx) ListByOwner(ctx context.Context, program ledger.Address) ([]*ledger.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []*ledger.Account
	for addr, acc := range t.store.accounts {
		if _, shadowed := t.writes[addr]; shadowed {
			continue
		}
		if acc.Owner == program {
			out = append(out, acc.Clone())
		}
	}
	for _, acc := range t.writes {
		if acc.Owner == program {
			out = append(out, acc.Clone())
		}
	}
	slices.SortFunc(out, func(a, b *ledger.Account) int {
		return bytes.Compare(a.Address[:], b.Address[:])
	})
	return out, nil
}

func (t *memTx) Emit(ctx context.Context, ev ledger.Event) error {
	if !t.writable {
		return ledger.ErrReadOnly
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	t.events = append(t.events, ev)
	return nil
}

func (t *memTx) Now() time.Time { return t.now }
