package subscription_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"subvault/internal/subscription"
)

func TestErrorCodes(t *testing.T) {
	tests := []struct {
		err  *subscription.Error
		code uint32
		cat  subscription.Category
	}{
		{subscription.ErrSubscriptionInactive, 6000, subscription.CategoryState},
		{subscription.ErrInsufficientFunds, 6001, subscription.CategoryFunds},
		{subscription.ErrUnauthorized, 6004, subscription.CategoryAuthorization},
		{subscription.ErrInsufficientGasFeeFunds, 6006, subscription.CategoryFunds},
		{subscription.ErrEscrowAccountNotFound, 6009, subscription.CategoryLookup},
		{subscription.ErrUnstakeFailed, 6012, subscription.CategoryOperation},
		{subscription.ErrConfigAlreadyExists, 6016, subscription.CategoryState},
		{subscription.ErrTokenAccountNotFound, 6018, subscription.CategoryLookup},
	}
	for _, tt := range tests {
		t.Run(tt.err.Name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.cat, tt.err.Category)
		})
	}
}

func TestErrorWrapping(t *testing.T) {
	err := fmt.Errorf("%w: escrow holds 1, needs 2", subscription.ErrInsufficientFunds)
	assert.ErrorIs(t, err, subscription.ErrInsufficientFunds)
	assert.NotErrorIs(t, err, subscription.ErrInvalidAmount)

	var pe *subscription.Error
	assert.True(t, errors.As(err, &pe))
	assert.Equal(t, "InsufficientFunds", pe.Name)
	assert.Contains(t, pe.Error(), "6001")
}
