package service

import (
	"context"
	"errors"
	"fmt"

	"subvault/internal/event"
	"subvault/internal/ledger"
	"subvault/internal/metrics"
	"subvault/internal/subscription"
)

// ProcessPayment runs one billing cycle for user's subscription: the monthly
// amount goes to recipient and the fixed fee to feeTokenAccount, both drawn
// from escrow under the derived authority. Anyone may trigger it.
func (s *Service) ProcessPayment(ctx context.Context, user, recipient, feeTokenAccount ledger.Address) (*subscription.PaymentProcessed, error) {
	var (
		paid     *subscription.PaymentProcessed
		required uint64
		held     uint64
		at       int64
	)
	err := s.update(ctx, "process_payment", func(o *opTx) error {
		at = o.tx.Now().Unix()
		rec, err := o.loadSubscription(user)
		if err != nil {
			return err
		}
		if !rec.IsActive {
			return subscription.ErrSubscriptionInactive
		}

		total, fee, err := TotalRequired(s.fees, rec.MonthlyAmount)
		if err != nil {
			return err
		}
		required = total

		escrow, err := o.loadEscrow(rec)
		if err != nil {
			return err
		}
		held = escrow.Amount
		if escrow.Amount < total {
			return fmt.Errorf("%w: escrow holds %d, needs %d", subscription.ErrInsufficientFunds, escrow.Amount, total)
		}

		auth, err := authorityFor(s.programID, rec)
		if err != nil {
			return err
		}
		if escrow.Authority != auth.Address() {
			return fmt.Errorf("%w: escrow %s is not controlled by the subscription authority", subscription.ErrUnauthorized, escrow.Address)
		}

		if recipient == rec.EscrowAccount || feeTokenAccount == rec.EscrowAccount {
			return fmt.Errorf("%w: escrow cannot pay itself", subscription.ErrInvalidSubscriptionState)
		}
		if _, err := o.loadTokenAccount(recipient); err != nil {
			return err
		}
		feeAcc, err := o.loadTokenAccount(feeTokenAccount)
		if err != nil {
			return err
		}
		if feeAcc.Authority != rec.FeeWallet {
			return fmt.Errorf("%w: %s belongs to %s, not %s", subscription.ErrFeeWalletMismatch, feeTokenAccount, feeAcc.Authority, rec.FeeWallet)
		}

		// principal first, then fee
		if err := ledger.TransferTokens(ctx, o.tx, rec.EscrowAccount, recipient, auth.Signer(), rec.MonthlyAmount); err != nil {
			return programError(err)
		}
		if err := ledger.TransferTokens(ctx, o.tx, rec.EscrowAccount, feeTokenAccount, auth.Signer(), fee); err != nil {
			return programError(err)
		}

		now := o.tx.Now().Unix()
		rec.LastPaymentTimestamp = &now
		if err := o.repo.SaveSubscription(ctx, rec); err != nil {
			return err
		}

		paid = &subscription.PaymentProcessed{
			User:      rec.Owner,
			Amount:    rec.MonthlyAmount,
			Fee:       fee,
			FeeWallet: rec.FeeWallet,
			Recipient: recipient,
			Timestamp: now,
		}
		return o.emit(subscription.EventPaymentProcessed, event.PaymentProcessed, paid)
	})
	if err != nil {
		metrics.PaymentsTotal.WithLabelValues(resultLabel(err)).Inc()
		s.paymentFailed(ctx, user, err, required, held, at)
		return nil, err
	}

	metrics.PaymentsTotal.WithLabelValues("ok").Inc()
	metrics.PaymentVolume.Add(float64(paid.Amount))
	metrics.FeesCollected.Add(float64(paid.Fee))
	s.log.InfoContext(ctx, "payment processed", "owner", user, "amount", paid.Amount, "fee", paid.Fee)
	return paid, nil
}

// paymentFailed publishes a PaymentFailed notification for fund errors,
// stamped with the ledger clock of the rolled-back attempt. Nothing is
// written to the ledger.
func (s *Service) paymentFailed(ctx context.Context, user ledger.Address, err error, required, held uint64, at int64) {
	var pe *subscription.Error
	if !errors.As(err, &pe) || pe.Category != subscription.CategoryFunds {
		return
	}
	s.publish(ctx, event.New(event.PaymentFailed, subscription.PaymentFailed{
		User:      user,
		Reason:    pe.Msg,
		Code:      pe.Code,
		Required:  required,
		Available: held,
		Timestamp: at,
	}))
}
