package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"subvault/internal/ledger"
)

func addr(b byte) ledger.Address {
	var a ledger.Address
	a[0] = b
	return a
}

func TestUpdateCommitsOnSuccess(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)
	s := NewStore(WithClock(func() time.Time { return now }))
	program := addr(9)

	err := s.Update(ctx, func(tx ledger.Tx) error {
		assert.Equal(t, now, tx.Now())
		if err := tx.Put(ctx, &ledger.Account{Address: addr(1), Lamports: 10, Owner: program}); err != nil {
			return err
		}
		return tx.Emit(ctx, ledger.Event{Program: program, Name: "Created", Timestamp: now.Unix()})
	})
	require.NoError(t, err)

	require.NoError(t, s.View(ctx, func(tx ledger.Tx) error {
		acc, err := tx.Get(ctx, addr(1))
		require.NoError(t, err)
		assert.Equal(t, uint64(10), acc.Lamports)
		return nil
	}))

	events, err := s.Events(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Created", events[0].Name)
}

func TestUpdateDiscardsOnError(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	boom := errors.New("boom")

	err := s.Update(ctx, func(tx ledger.Tx) error {
		require.NoError(t, tx.Put(ctx, &ledger.Account{Address: addr(1), Lamports: 10}))
		require.NoError(t, tx.Emit(ctx, ledger.Event{Name: "Lost"}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	require.NoError(t, s.View(ctx, func(tx ledger.Tx) error {
		_, err := tx.Get(ctx, addr(1))
		assert.ErrorIs(t, err, ledger.ErrAccountNotFound)
		return nil
	}))
	events, err := s.Events(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestGetReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	require.NoError(t, s.Update(ctx, func(tx ledger.Tx) error {
		return tx.Put(ctx, &ledger.Account{Address: addr(1), Data: []byte{1, 2, 3}})
	}))

	require.NoError(t, s.View(ctx, func(tx ledger.Tx) error {
		acc, err := tx.Get(ctx, addr(1))
		require.NoError(t, err)
		acc.Data[0] = 42
		return nil
	}))

	require.NoError(t, s.View(ctx, func(tx ledger.Tx) error {
		acc, err := tx.Get(ctx, addr(1))
		require.NoError(t, err)
		assert.Equal(t, []byte{1, 2, 3}, acc.Data)
		return nil
	}))
}

func TestViewIsReadOnly(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	err := s.View(ctx, func(tx ledger.Tx) error {
		return tx.Put(ctx, &ledger.Account{Address: addr(1)})
	})
	assert.ErrorIs(t, err, ledger.ErrReadOnly)

	err = s.View(ctx, func(tx ledger.Tx) error {
		return tx.Emit(ctx, ledger.Event{Name: "x"})
	})
	assert.ErrorIs(t, err, ledger.ErrReadOnly)
}

func TestListByOwnerSeesPendingWrites(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	program, other := addr(7), addr(8)
	require.NoError(t, s.Update(ctx, func(tx ledger.Tx) error {
		if err := tx.Put(ctx, &ledger.Account{Address: addr(3), Owner: program}); err != nil {
			return err
		}
		return tx.Put(ctx, &ledger.Account{Address: addr(4), Owner: other})
	}))

	require.NoError(t, s.Update(ctx, func(tx ledger.Tx) error {
		if err := tx.Put(ctx, &ledger.Account{Address: addr(1), Owner: program}); err != nil {
			return err
		}
		if err := tx.Put(ctx, &ledger.Account{Address: addr(4), Owner: program}); err != nil {
			return err
		}
		accounts, err := tx.ListByOwner(ctx, program)
		require.NoError(t, err)
		require.Len(t, accounts, 3)
		assert.Equal(t, addr(1), accounts[0].Address)
		assert.Equal(t, addr(3), accounts[1].Address)
		assert.Equal(t, addr(4), accounts[2].Address)
		return nil
	}))
}

func TestEventsLimitKeepsNewest(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	for _, name := range []string{"a", "b", "c"} {
		require.NoError(t, s.Update(ctx, func(tx ledger.Tx) error {
			return tx.Emit(ctx, ledger.Event{Name: name})
		}))
	}
	events, err := s.Events(ctx, 2)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "b", events[0].Name)
	assert.Equal(t, "c", events[1].Name)
}

func TestCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := NewStore()
	err := s.Update(ctx, func(tx ledger.Tx) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}
