package service

import (
	"math/bits"

	"subvault/internal/subscription"
)

// DefaultFeeAmount is 0.01 of a 6-decimal token.
const DefaultFeeAmount uint64 = 10_000

type FeeCalculator interface {
	Fee(amount uint64) uint64
}

// FixedFee charges the same fee regardless of the payment amount.
type FixedFee uint64

func (f FixedFee) Fee(uint64) uint64 { return uint64(f) }

// TotalRequired returns amount plus its fee, failing instead of wrapping.
func TotalRequired(fees FeeCalculator, amount uint64) (total, fee uint64, err error) {
	fee = fees.Fee(amount)
	total, carry := bits.Add64(amount, fee, 0)
	if carry != 0 {
		return 0, 0, subscription.ErrArithmeticOverflow
	}
	return total, fee, nil
}
