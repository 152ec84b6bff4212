package ledger

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math/bits"
)

// TokenAccountSize is the data length of a token account: mint, authority, amount.
const TokenAccountSize = AddressSize*2 + 8

var (
	ErrNotTokenAccount    = errors.New("not a token account")
	ErrMintMismatch       = errors.New("token mint mismatch")
	ErrInsufficientTokens = errors.New("insufficient token balance")
	ErrTokenOverflow      = errors.New("token balance overflow")
)

// TokenAccount holds a fungible token balance controlled by Authority.
type TokenAccount struct {
	Address   Address `json:"address"`
	Mint      Address `json:"mint"`
	Authority Address `json:"authority"`
	Amount    uint64  `json:"amount"`
}

func (t *TokenAccount) encode() []byte {
	buf := make([]byte, TokenAccountSize)
	copy(buf[0:32], t.Mint[:])
	copy(buf[32:64], t.Authority[:])
	binary.LittleEndian.PutUint64(buf[64:72], t.Amount)
	return buf
}

// DecodeTokenAccount reads token account data from a ledger account.
func DecodeTokenAccount(acc *Account) (*TokenAccount, error) {
	if acc.Owner != TokenProgramID || len(acc.Data) < TokenAccountSize {
		return nil, fmt.Errorf("%w: %s", ErrNotTokenAccount, acc.Address)
	}
	t := &TokenAccount{Address: acc.Address}
	copy(t.Mint[:], acc.Data[0:32])
	copy(t.Authority[:], acc.Data[32:64])
	t.Amount = binary.LittleEndian.Uint64(acc.Data[64:72])
	return t, nil
}

// LoadTokenAccount fetches and decodes the token account at addr.
func LoadTokenAccount(ctx context.Context, tx Tx, addr Address) (*TokenAccount, *Account, error) {
	acc, err := tx.Get(ctx, addr)
	if err != nil {
		return nil, nil, err
	}
	t, err := DecodeTokenAccount(acc)
	if err != nil {
		return nil, nil, err
	}
	return t, acc, nil
}

func storeTokenAccount(ctx context.Context, tx Tx, acc *Account, t *TokenAccount) error {
	acc.Data = t.encode()
	return tx.Put(ctx, acc)
}

// CreateTokenAccount allocates a rent-exempt token account at addr, paid for by payer.
func CreateTokenAccount(ctx context.Context, tx Tx, payer Signer, addr, mint, authority Address) error {
	if err := CreateAccount(ctx, tx, payer, addr, MinimumBalance(TokenAccountSize), TokenAccountSize, TokenProgramID); err != nil {
		return err
	}
	acc, err := tx.Get(ctx, addr)
	if err != nil {
		return err
	}
	return storeTokenAccount(ctx, tx, acc, &TokenAccount{Address: addr, Mint: mint, Authority: authority})
}

// EnsureAssociatedTokenAccount returns the associated token account of owner,
// creating it at payer's expense when missing.
func EnsureAssociatedTokenAccount(ctx context.Context, tx Tx, payer Signer, owner, mint Address) (Address, error) {
	addr := AssociatedTokenAddress(owner, mint)
	t, _, err := LoadTokenAccount(ctx, tx, addr)
	switch {
	case err == nil:
		if t.Mint != mint {
			return Address{}, fmt.Errorf("%w: %s", ErrMintMismatch, addr)
		}
		return addr, nil
	case errors.Is(err, ErrAccountNotFound):
		return addr, CreateTokenAccount(ctx, tx, payer, addr, mint, owner)
	default:
		return Address{}, err
	}
}

// TransferTokens moves amount from one token account to another. authority
// must be the source account's token authority.
func TransferTokens(ctx context.Context, tx Tx, from, to Address, authority Signer, amount uint64) error {
	src, srcAcc, err := LoadTokenAccount(ctx, tx, from)
	if err != nil {
		return fmt.Errorf("source: %w", err)
	}
	if !authority.Valid() || authority.Address() != src.Authority {
		return fmt.Errorf("%w: %s is not the authority of %s", ErrOwnerMismatch, authority.Address(), from)
	}
	if from == to {
		return nil
	}
	dst, dstAcc, err := LoadTokenAccount(ctx, tx, to)
	if err != nil {
		return fmt.Errorf("destination: %w", err)
	}
	if src.Mint != dst.Mint {
		return fmt.Errorf("%w: %s -> %s", ErrMintMismatch, from, to)
	}
	if src.Amount < amount {
		return fmt.Errorf("%w: %s has %d, needs %d", ErrInsufficientTokens, from, src.Amount, amount)
	}
	sum, carry := bits.Add64(dst.Amount, amount, 0)
	if carry != 0 {
		return fmt.Errorf("%w: %s", ErrTokenOverflow, to)
	}
	src.Amount -= amount
	dst.Amount = sum

	if err := storeTokenAccount(ctx, tx, srcAcc, src); err != nil {
		return err
	}
	return storeTokenAccount(ctx, tx, dstAcc, dst)
}

// MintTokens credits a token account directly. Only the devnet faucet uses it.
func MintTokens(ctx context.Context, tx Tx, to Address, amount uint64) error {
	dst, acc, err := LoadTokenAccount(ctx, tx, to)
	if err != nil {
		return err
	}
	sum, carry := bits.Add64(dst.Amount, amount, 0)
	if carry != 0 {
		return fmt.Errorf("%w: %s", ErrTokenOverflow, to)
	}
	dst.Amount = sum
	return storeTokenAccount(ctx, tx, acc, dst)
}
