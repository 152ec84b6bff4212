package ledger

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
)

// StakeStateSize is the fixed data length of a stake account.
const StakeStateSize = 200

// StakeStatus is the lifecycle position of a stake account.
type StakeStatus uint8

const (
	StakeUninitialized StakeStatus = iota
	StakeInitialized
	StakeDelegated
)

func (s StakeStatus) String() string {
	switch s {
	case StakeInitialized:
		return "initialized"
	case StakeDelegated:
		return "delegated"
	default:
		return "uninitialized"
	}
}

var (
	ErrNotStakeAccount         = errors.New("not a stake account")
	ErrStakeAlreadyInitialized = errors.New("stake account already initialized")
	ErrStakeNotInitialized     = errors.New("stake account not initialized")
	ErrStakeAlreadyDelegated   = errors.New("stake account already delegated")
	ErrStakeNotDelegated       = errors.New("stake account not delegated")
	ErrStakeAlreadyDeactivated = errors.New("stake already deactivated")
	ErrInsufficientStake       = errors.New("insufficient delegated stake")
	ErrInvalidVoteAccount      = errors.New("invalid vote account")
	ErrWithdrawToSelf          = errors.New("cannot withdraw a stake account into itself")
)

// StakeState is the decoded data of a stake account.
type StakeState struct {
	Status        StakeStatus `json:"status"`
	Staker        Address     `json:"staker"`
	Withdrawer    Address     `json:"withdrawer"`
	Voter         Address     `json:"voter"`
	Stake         uint64      `json:"stake"`
	ActivatedAt   int64       `json:"activated_at"`
	DeactivatedAt int64       `json:"deactivated_at"`
	Deactivated   bool        `json:"deactivated"`
}

func (s *StakeState) encode() []byte {
	buf := make([]byte, StakeStateSize)
	buf[0] = byte(s.Status)
	copy(buf[1:33], s.Staker[:])
	copy(buf[33:65], s.Withdrawer[:])
	copy(buf[65:97], s.Voter[:])
	binary.LittleEndian.PutUint64(buf[97:105], s.Stake)
	binary.LittleEndian.PutUint64(buf[105:113], uint64(s.ActivatedAt))
	binary.LittleEndian.PutUint64(buf[113:121], uint64(s.DeactivatedAt))
	if s.Deactivated {
		buf[121] = 1
	}
	return buf
}

// DecodeStakeState reads stake data from a ledger account.
func DecodeStakeState(acc *Account) (*StakeState, error) {
	if acc.Owner != StakeProgramID || len(acc.Data) != StakeStateSize {
		return nil, fmt.Errorf("%w: %s", ErrNotStakeAccount, acc.Address)
	}
	d := acc.Data
	s := &StakeState{Status: StakeStatus(d[0])}
	copy(s.Staker[:], d[1:33])
	copy(s.Withdrawer[:], d[33:65])
	copy(s.Voter[:], d[65:97])
	s.Stake = binary.LittleEndian.Uint64(d[97:105])
	s.ActivatedAt = int64(binary.LittleEndian.Uint64(d[105:113]))
	s.DeactivatedAt = int64(binary.LittleEndian.Uint64(d[113:121]))
	s.Deactivated = d[121] == 1
	return s, nil
}

// LoadStakeAccount fetches and decodes the stake account at addr.
func LoadStakeAccount(ctx context.Context, tx Tx, addr Address) (*StakeState, *Account, error) {
	acc, err := tx.Get(ctx, addr)
	if err != nil {
		return nil, nil, err
	}
	st, err := DecodeStakeState(acc)
	if err != nil {
		return nil, nil, err
	}
	return st, acc, nil
}

func storeStake(ctx context.Context, tx Tx, acc *Account, st *StakeState) error {
	acc.Data = st.encode()
	return tx.Put(ctx, acc)
}

// InitializeStake sets the staker and withdrawer of a freshly created stake account.
func InitializeStake(ctx context.Context, tx Tx, addr, staker, withdrawer Address) error {
	st, acc, err := LoadStakeAccount(ctx, tx, addr)
	if err != nil {
		return err
	}
	if st.Status != StakeUninitialized {
		return fmt.Errorf("%w: %s", ErrStakeAlreadyInitialized, addr)
	}
	st.Status = StakeInitialized
	st.Staker = staker
	st.Withdrawer = withdrawer
	return storeStake(ctx, tx, acc, st)
}

// DelegateStake delegates everything above the rent-exempt reserve to vote.
func DelegateStake(ctx context.Context, tx Tx, addr Address, staker Signer, vote Address) error {
	if vote.IsZero() {
		return ErrInvalidVoteAccount
	}
	st, acc, err := LoadStakeAccount(ctx, tx, addr)
	if err != nil {
		return err
	}
	switch st.Status {
	case StakeUninitialized:
		return fmt.Errorf("%w: %s", ErrStakeNotInitialized, addr)
	case StakeDelegated:
		return fmt.Errorf("%w: %s", ErrStakeAlreadyDelegated, addr)
	}
	if err := requireSigner(staker, st.Staker); err != nil {
		return err
	}
	reserve := MinimumBalance(StakeStateSize)
	if acc.Lamports <= reserve {
		return fmt.Errorf("%w: %s holds %d lamports", ErrInsufficientStake, addr, acc.Lamports)
	}
	st.Status = StakeDelegated
	st.Voter = vote
	st.Stake = acc.Lamports - reserve
	st.ActivatedAt = tx.Now().Unix()
	return storeStake(ctx, tx, acc, st)
}

// DeactivateStake stops a delegation.
func DeactivateStake(ctx context.Context, tx Tx, addr Address, staker Signer) error {
	st, acc, err := LoadStakeAccount(ctx, tx, addr)
	if err != nil {
		return err
	}
	if st.Status != StakeDelegated {
		return fmt.Errorf("%w: %s", ErrStakeNotDelegated, addr)
	}
	if err := requireSigner(staker, st.Staker); err != nil {
		return err
	}
	if st.Deactivated {
		return fmt.Errorf("%w: %s", ErrStakeAlreadyDeactivated, addr)
	}
	st.Deactivated = true
	st.DeactivatedAt = tx.Now().Unix()
	return storeStake(ctx, tx, acc, st)
}

// WithdrawAll moves every lamport of a stake account to to and returns the
// amount moved. The account keeps its state with a zero balance.
func WithdrawAll(ctx context.Context, tx Tx, addr Address, withdrawer Signer, to Address) (uint64, error) {
	if to == addr {
		return 0, ErrWithdrawToSelf
	}
	st, acc, err := LoadStakeAccount(ctx, tx, addr)
	if err != nil {
		return 0, err
	}
	if err := requireSigner(withdrawer, st.Withdrawer); err != nil {
		return 0, err
	}
	if st.Status == StakeDelegated && !st.Deactivated {
		return 0, fmt.Errorf("%w: %s is still active", ErrStakeNotDelegated, addr)
	}
	dst, err := GetOrEmpty(ctx, tx, to)
	if err != nil {
		return 0, err
	}
	moved := acc.Lamports
	if err := Credit(dst, moved); err != nil {
		return 0, err
	}
	acc.Lamports = 0
	if err := tx.Put(ctx, acc); err != nil {
		return 0, err
	}
	if err := tx.Put(ctx, dst); err != nil {
		return 0, err
	}
	return moved, nil
}
