package service

import (
	"context"
	"fmt"

	"subvault/internal/event"
	"subvault/internal/ledger"
	"subvault/internal/metrics"
	"subvault/internal/subscription"
)

// CancelSubscription deactivates user's subscription for good and refunds
// the whole escrow balance to destination. It fails with
// ErrInvalidSubscriptionState while lamports are still staked: Unstake needs
// an active record, so those lamports must come back first.
func (s *Service) CancelSubscription(ctx context.Context, user ledger.Signer, destination ledger.Address) (*subscription.SubscriptionCanceled, error) {
	if err := requireWallet(user); err != nil {
		return nil, err
	}
	var canceled *subscription.SubscriptionCanceled
	err := s.update(ctx, "cancel_subscription", func(o *opTx) error {
		rec, err := o.loadSubscription(user.Address())
		if err != nil {
			return err
		}
		if rec.Owner != user.Address() {
			return subscription.ErrUnauthorized
		}
		if !rec.IsActive {
			return subscription.ErrSubscriptionInactive
		}
		if rec.Staked() > 0 {
			return fmt.Errorf("%w: %d lamports still staked, unstake first", subscription.ErrInvalidSubscriptionState, rec.Staked())
		}

		escrow, err := o.loadEscrow(rec)
		if err != nil {
			return err
		}
		refund := escrow.Amount
		if refund > 0 {
			if destination == rec.EscrowAccount {
				return fmt.Errorf("%w: refund destination is the escrow", subscription.ErrInvalidSubscriptionState)
			}
			if _, err := o.loadTokenAccount(destination); err != nil {
				return err
			}
			auth, err := authorityFor(s.programID, rec)
			if err != nil {
				return err
			}
			if err := ledger.TransferTokens(ctx, o.tx, rec.EscrowAccount, destination, auth.Signer(), refund); err != nil {
				return programError(err)
			}
		}

		rec.IsActive = false
		if err := o.repo.SaveSubscription(ctx, rec); err != nil {
			return err
		}
		canceled = &subscription.SubscriptionCanceled{
			User:           rec.Owner,
			RefundedAmount: refund,
			Timestamp:      o.tx.Now().Unix(),
		}
		return o.emit(subscription.EventSubscriptionCanceled, event.SubscriptionCanceled, canceled)
	})
	if err != nil {
		return nil, err
	}
	metrics.CancellationsTotal.Inc()
	s.log.InfoContext(ctx, "subscription canceled", "owner", canceled.User, "refunded", canceled.RefundedAmount)
	return canceled, nil
}
