package service

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"subvault/internal/ledger"
	"subvault/internal/subscription"
)

func TestTotalRequired(t *testing.T) {
	total, fee, err := TotalRequired(FixedFee(DefaultFeeAmount), 10_000_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(10_000), fee)
	assert.Equal(t, uint64(10_010_000), total)

	_, _, err = TotalRequired(FixedFee(DefaultFeeAmount), math.MaxUint64-9_999)
	assert.ErrorIs(t, err, subscription.ErrArithmeticOverflow)
}

func TestProgramErrorMapping(t *testing.T) {
	tests := []struct {
		in   error
		want error
	}{
		{ledger.ErrInsufficientTokens, subscription.ErrInsufficientFunds},
		{ledger.ErrInsufficientLamports, subscription.ErrInsufficientGasFeeFunds},
		{ledger.ErrNotRentExempt, subscription.ErrInsufficientGasFeeFunds},
		{ledger.ErrOwnerMismatch, subscription.ErrUnauthorized},
		{ledger.ErrMissingSigner, subscription.ErrUnauthorized},
		{ledger.ErrTokenOverflow, subscription.ErrArithmeticOverflow},
		{ledger.ErrMintMismatch, subscription.ErrInvalidSubscriptionState},
		{subscription.ErrStakeFailed, subscription.ErrStakeFailed},
	}
	for _, tt := range tests {
		got := programError(tt.in)
		assert.ErrorIs(t, got, tt.want)
		assert.ErrorIs(t, got, tt.in)
	}
	assert.Nil(t, programError(nil))
}

func TestAuthorityVerify(t *testing.T) {
	program := ledger.Address{9}
	owner := ledger.Address{1}
	addr, bump, err := subscription.SubscriptionAddress(program, owner)
	require.NoError(t, err)

	auth, err := ResolveAuthority(program, owner, bump)
	require.NoError(t, err)
	assert.Equal(t, addr, auth.Address())
	assert.True(t, auth.Signer().Derived())
	assert.NoError(t, auth.Verify(addr))
	assert.ErrorIs(t, auth.Verify(owner), subscription.ErrUnauthorized)

	rec := &subscription.SubscriptionRecord{Address: addr, Owner: owner, AuthorityBump: bump}
	_, err = authorityFor(program, rec)
	assert.NoError(t, err)

	rec.Owner = ledger.Address{2}
	_, err = authorityFor(program, rec)
	assert.ErrorIs(t, err, subscription.ErrUnauthorized)
}
