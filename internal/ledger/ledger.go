// Package ledger is the host runtime the subscription program runs on:
// accounts keyed by address, atomic transactions, signer capabilities and
// the token, system and stake programs.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	ErrAccountNotFound      = errors.New("account not found")
	ErrAccountExists        = errors.New("account already in use")
	ErrInsufficientLamports = errors.New("insufficient lamports")
	ErrNotRentExempt        = errors.New("account would not be rent exempt")
	ErrOwnerMismatch        = errors.New("account owner mismatch")
	ErrMissingSigner        = errors.New("missing required signature")
	ErrLamportOverflow      = errors.New("lamport balance overflow")
	ErrReadOnly             = errors.New("write in read-only transaction")
)

// Account is the unit of ledger state. Owner is the program allowed to
// mutate Data and debit Lamports.
type Account struct {
	Address  Address `json:"address"`
	Lamports uint64  `json:"lamports"`
	Owner    Address `json:"owner"`
	Data     []byte  `json:"data,omitempty"`
}

// Clone returns a deep copy so callers never alias stored state.
func (a *Account) Clone() *Account {
	c := *a
	if a.Data != nil {
		c.Data = append([]byte(nil), a.Data...)
	}
	return &c
}

// Event is a program log entry persisted with the transaction that emitted it.
type Event struct {
	Program   Address         `json:"program"`
	Name      string          `json:"name"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

// NewEvent serializes payload into an Event.
func NewEvent(program Address, name string, ts int64, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("encode event %s: %w", name, err)
	}
	return Event{Program: program, Name: name, Data: data, Timestamp: ts}, nil
}

// Tx is a view of the ledger inside one all-or-nothing transaction.
// Nothing written through a Tx is visible outside it until the enclosing
// Update returns nil.
type Tx interface {
	// Get returns a copy of the account or ErrAccountNotFound.
	Get(ctx context.Context, addr Address) (*Account, error)
	// Put creates or replaces an account.
	Put(ctx context.Context, acc *Account) error
	// ListByOwner returns all accounts owned by program.
	ListByOwner(ctx context.Context, program Address) ([]*Account, error)
	// Emit appends an event to the transaction log.
	Emit(ctx context.Context, ev Event) error
	// Now is the ledger clock for this transaction.
	Now() time.Time
}

// Store runs transactions against persistent ledger state.
type Store interface {
	// Update runs fn in a read-write transaction; it commits only if fn
	// returns nil and discards every write otherwise.
	Update(ctx context.Context, fn func(tx Tx) error) error
	// View runs fn in a read-only transaction.
	View(ctx context.Context, fn func(tx Tx) error) error
	// Events returns the most recent events, newest last.
	Events(ctx context.Context, limit int) ([]Event, error)
}

// Signer is proof that a transaction is authorized by an address. It can
// only be produced by host signature verification (Verified) or by
// recomputing a program-derived address from its seeds (SignerFromSeeds).
type Signer struct {
	addr    Address
	program Address
	derived bool
}

// Verified wraps an address whose signature the host has already checked.
func Verified(addr Address) Signer {
	return Signer{addr: addr}
}

// SignerFromSeeds recomputes the program address for seeds+bump and returns
// a signer for it.
func SignerFromSeeds(programID Address, seeds [][]byte, bump uint8) (Signer, error) {
	full := make([][]byte, 0, len(seeds)+1)
	full = append(full, seeds...)
	full = append(full, []byte{bump})
	addr, err := CreateProgramAddress(full, programID)
	if err != nil {
		return Signer{}, err
	}
	return Signer{addr: addr, program: programID, derived: true}, nil
}

func (s Signer) Address() Address { return s.addr }

// Derived reports whether the signer is a program-derived authority.
func (s Signer) Derived() bool { return s.derived }

// Program is the deriving program for derived signers.
func (s Signer) Program() Address { return s.program }

// Valid reports whether the signer was built by one of the constructors.
func (s Signer) Valid() bool { return !s.addr.IsZero() }

func requireSigner(s Signer, want Address) error {
	if !s.Valid() || s.addr != want {
		return fmt.Errorf("%w: %s", ErrMissingSigner, want)
	}
	return nil
}

// MinimumBalance is the rent-exempt minimum for an account with space bytes of data.
func MinimumBalance(space int) uint64 {
	const (
		accountOverhead   = 128
		lamportsPerByteYr = 3480
		exemptionYears    = 2
	)
	return uint64(accountOverhead+space) * lamportsPerByteYr * exemptionYears
}

// GetOrEmpty returns the account at addr or a zero-lamport system account.
func GetOrEmpty(ctx context.Context, tx Tx, addr Address) (*Account, error) {
	acc, err := tx.Get(ctx, addr)
	if errors.Is(err, ErrAccountNotFound) {
		return &Account{Address: addr, Owner: SystemProgramID}, nil
	}
	return acc, err
}
