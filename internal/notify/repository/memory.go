package repository

import (
	"context"
	"sync"

	"subvault/internal/ledger"
	"subvault/internal/notify"
)

var _ notify.ContactRepository = (*MemoryContactRepository)(nil)

type MemoryContactRepository struct {
	mu       sync.RWMutex
	contacts map[ledger.Address]notify.StoredContact
}

func NewMemoryContactRepository() *MemoryContactRepository {
	return &MemoryContactRepository{contacts: make(map[ledger.Address]notify.StoredContact)}
}

func (r *MemoryContactRepository) Save(_ context.Context, c notify.StoredContact) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.contacts[c.Wallet] = c
	return nil
}

func (r *MemoryContactRepository) Get(_ context.Context, wallet ledger.Address) (*notify.StoredContact, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.contacts[wallet]
	if !ok {
		return nil, notify.ErrContactNotFound
	}
	return &c, nil
}

func (r *MemoryContactRepository) Delete(_ context.Context, wallet ledger.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.contacts[wallet]; !ok {
		return notify.ErrContactNotFound
	}
	delete(r.contacts, wallet)
	return nil
}
