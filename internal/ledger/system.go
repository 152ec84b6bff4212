package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/bits"
)

// CreateAccount allocates a new account of space bytes owned by owner and
// funds it with lamports drawn from payer.
func CreateAccount(ctx context.Context, tx Tx, payer Signer, addr Address, lamports uint64, space int, owner Address) error {
	if _, err := tx.Get(ctx, addr); err == nil {
		return fmt.Errorf("%w: %s", ErrAccountExists, addr)
	} else if !errors.Is(err, ErrAccountNotFound) {
		return err
	}
	if lamports < MinimumBalance(space) {
		return fmt.Errorf("%w: %s needs %d lamports", ErrNotRentExempt, addr, MinimumBalance(space))
	}

	from, err := GetOrEmpty(ctx, tx, payer.Address())
	if err != nil {
		return err
	}
	if err := debit(from, payer, lamports); err != nil {
		return err
	}
	if err := tx.Put(ctx, from); err != nil {
		return err
	}
	return tx.Put(ctx, &Account{
		Address:  addr,
		Lamports: lamports,
		Owner:    owner,
		Data:     make([]byte, space),
	})
}

// TransferLamports moves native balance from the signer's account to to.
func TransferLamports(ctx context.Context, tx Tx, from Signer, to Address, amount uint64) error {
	if from.Address() == to {
		return nil
	}
	src, err := GetOrEmpty(ctx, tx, from.Address())
	if err != nil {
		return err
	}
	if err := debit(src, from, amount); err != nil {
		return err
	}
	dst, err := GetOrEmpty(ctx, tx, to)
	if err != nil {
		return err
	}
	if err := Credit(dst, amount); err != nil {
		return err
	}
	if err := tx.Put(ctx, src); err != nil {
		return err
	}
	return tx.Put(ctx, dst)
}

// Airdrop mints native balance out of thin air. Only the devnet faucet uses it.
func Airdrop(ctx context.Context, tx Tx, to Address, amount uint64) error {
	dst, err := GetOrEmpty(ctx, tx, to)
	if err != nil {
		return err
	}
	if err := Credit(dst, amount); err != nil {
		return err
	}
	return tx.Put(ctx, dst)
}

// Credit adds lamports to acc without wrapping.
func Credit(acc *Account, amount uint64) error {
	sum, carry := bits.Add64(acc.Lamports, amount, 0)
	if carry != 0 {
		return fmt.Errorf("%w: %s", ErrLamportOverflow, acc.Address)
	}
	acc.Lamports = sum
	return nil
}

// debit removes lamports from acc. System accounts may be debited by their
// own key; program accounts only by a signer derived from the owning
// program, and never below their rent-exempt minimum.
func debit(acc *Account, signer Signer, amount uint64) error {
	if err := requireSigner(signer, acc.Address); err != nil {
		return err
	}
	if acc.Owner != SystemProgramID && !(signer.Derived() && signer.Program() == acc.Owner) {
		return fmt.Errorf("%w: %s is owned by %s", ErrOwnerMismatch, acc.Address, acc.Owner)
	}
	if acc.Lamports < amount {
		return fmt.Errorf("%w: %s has %d, needs %d", ErrInsufficientLamports, acc.Address, acc.Lamports, amount)
	}
	remaining := acc.Lamports - amount
	if len(acc.Data) > 0 && remaining < MinimumBalance(len(acc.Data)) {
		return fmt.Errorf("%w: %s would keep %d", ErrNotRentExempt, acc.Address, remaining)
	}
	acc.Lamports = remaining
	return nil
}
