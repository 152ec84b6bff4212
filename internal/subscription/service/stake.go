package service

import (
	"context"
	"errors"
	"fmt"
	"math/bits"

	"subvault/internal/event"
	"subvault/internal/ledger"
	"subvault/internal/metrics"
	"subvault/internal/subscription"
)

// StakeEscrow delegates lamports from the subscription authority's native
// balance to the configured validator through stakeAccount. Each step
// (create, initialize, delegate) is skipped when stakeAccount already shows
// it done, so a retry with the same stake account finishes the job.
func (s *Service) StakeEscrow(ctx context.Context, user, stakeAccount ledger.Address, lamports uint64) (*subscription.StakeResult, error) {
	var res *subscription.StakeResult
	err := s.update(ctx, "stake_escrow", func(o *opTx) error {
		rec, err := o.loadSubscription(user)
		if err != nil {
			return err
		}
		if !rec.IsActive {
			return subscription.ErrSubscriptionInactive
		}
		if lamports == 0 {
			return fmt.Errorf("%w: stake amount must be positive", subscription.ErrInvalidAmount)
		}
		auth, err := authorityFor(s.programID, rec)
		if err != nil {
			return err
		}
		if s.validator.IsZero() {
			return fmt.Errorf("%w: no validator configured", subscription.ErrStakeFailed)
		}

		res = &subscription.StakeResult{
			User:         rec.Owner,
			StakeAccount: stakeAccount,
			Validator:    s.validator,
			Timestamp:    o.tx.Now().Unix(),
		}

		st, acc, err := ledger.LoadStakeAccount(ctx, o.tx, stakeAccount)
		switch {
		case errors.Is(err, ledger.ErrAccountNotFound):
			if err := s.fundStakeAccount(o, rec, auth, stakeAccount, lamports); err != nil {
				return err
			}
			if st, acc, err = ledger.LoadStakeAccount(ctx, o.tx, stakeAccount); err != nil {
				return fmt.Errorf("%w: %w", subscription.ErrStakeFailed, err)
			}
		case errors.Is(err, ledger.ErrNotStakeAccount):
			return fmt.Errorf("%w: %s is not a stake account", subscription.ErrInvalidSigner, stakeAccount)
		case err != nil:
			return err
		}

		if st.Status == ledger.StakeUninitialized {
			if err := ledger.InitializeStake(ctx, o.tx, stakeAccount, auth.Address(), auth.Address()); err != nil {
				return fmt.Errorf("%w: initialize: %w", subscription.ErrStakeFailed, err)
			}
			st.Status, st.Staker, st.Withdrawer = ledger.StakeInitialized, auth.Address(), auth.Address()
		}
		if st.Staker != auth.Address() || st.Withdrawer != auth.Address() {
			return fmt.Errorf("%w: %s is controlled by %s", subscription.ErrInvalidSigner, stakeAccount, st.Staker)
		}

		if st.Status == ledger.StakeDelegated {
			if st.Voter != s.validator || st.Deactivated {
				return fmt.Errorf("%w: %s is already delegated elsewhere or deactivated", subscription.ErrStakeFailed, stakeAccount)
			}
			res.AlreadyStaked = true
			res.Lamports = acc.Lamports
			res.StakedBalance = rec.Staked()
			return nil
		}

		if err := ledger.DelegateStake(ctx, o.tx, stakeAccount, auth.Signer(), s.validator); err != nil {
			return fmt.Errorf("%w: delegate: %w", subscription.ErrStakeFailed, err)
		}

		staked, carry := bits.Add64(rec.Staked(), acc.Lamports, 0)
		if carry != 0 {
			return subscription.ErrArithmeticOverflow
		}
		rec.StakedBalance = &staked
		if err := o.repo.SaveSubscription(ctx, rec); err != nil {
			return err
		}
		res.Lamports = acc.Lamports
		res.StakedBalance = staked
		o.notify(event.EscrowStaked, res)
		return nil
	})
	if err != nil {
		metrics.StakeOperationsTotal.WithLabelValues("stake", resultLabel(err)).Inc()
		return nil, err
	}
	metrics.StakeOperationsTotal.WithLabelValues("stake", "ok").Inc()
	s.log.InfoContext(ctx, "escrow staked", "owner", user, "stake_account", stakeAccount, "lamports", res.Lamports, "already_staked", res.AlreadyStaked)
	return res, nil
}

// fundStakeAccount creates stakeAccount with lamports drawn from the
// authority's own balance, which must stay rent exempt.
func (s *Service) fundStakeAccount(o *opTx, rec *subscription.SubscriptionRecord, auth Authority, stakeAccount ledger.Address, lamports uint64) error {
	if lamports <= ledger.MinimumBalance(ledger.StakeStateSize) {
		return fmt.Errorf("%w: stake must exceed the %d lamport reserve", subscription.ErrInvalidAmount, ledger.MinimumBalance(ledger.StakeStateSize))
	}
	authAcc, err := o.tx.Get(o.ctx, rec.Address)
	if err != nil {
		return err
	}
	needed, carry := bits.Add64(lamports, ledger.MinimumBalance(len(authAcc.Data)), 0)
	if carry != 0 || authAcc.Lamports < needed {
		return fmt.Errorf("%w: authority holds %d lamports, needs %d", subscription.ErrInsufficientGasFeeFunds, authAcc.Lamports, needed)
	}
	err = ledger.CreateAccount(o.ctx, o.tx, auth.Signer(), stakeAccount, lamports, ledger.StakeStateSize, ledger.StakeProgramID)
	if err != nil {
		return fmt.Errorf("%w: create: %w", subscription.ErrStakeFailed, err)
	}
	return nil
}

// Unstake deactivates stakeAccount and moves every lamport it holds back to
// the subscription owner. Anyone may trigger it; recipient must be the owner
// or zero, which means the owner. The account is left with its state and a
// zero balance.
func (s *Service) Unstake(ctx context.Context, user, stakeAccount, recipient ledger.Address) (*subscription.UnstakeResult, error) {
	var res *subscription.UnstakeResult
	err := s.update(ctx, "unstake", func(o *opTx) error {
		rec, err := o.loadSubscription(user)
		if err != nil {
			return err
		}
		if !rec.IsActive {
			return subscription.ErrSubscriptionInactive
		}
		auth, err := authorityFor(s.programID, rec)
		if err != nil {
			return err
		}

		st, acc, err := ledger.LoadStakeAccount(ctx, o.tx, stakeAccount)
		if errors.Is(err, ledger.ErrAccountNotFound) || errors.Is(err, ledger.ErrNotStakeAccount) {
			return fmt.Errorf("%w: %s is not a stake account of this subscription", subscription.ErrInvalidSigner, stakeAccount)
		}
		if err != nil {
			return err
		}
		if st.Status == ledger.StakeUninitialized || st.Staker != auth.Address() || st.Withdrawer != auth.Address() {
			return fmt.Errorf("%w: %s is controlled by %s", subscription.ErrInvalidSigner, stakeAccount, st.Staker)
		}
		if acc.Lamports == 0 {
			return fmt.Errorf("%w: stake account %s is empty", subscription.ErrInsufficientFunds, stakeAccount)
		}
		if recipient.IsZero() {
			recipient = rec.Owner
		}
		if recipient != rec.Owner {
			return fmt.Errorf("%w: unstaked lamports go to the owner %s, not %s", subscription.ErrInvalidSubscriptionState, rec.Owner, recipient)
		}

		if st.Status == ledger.StakeDelegated && !st.Deactivated {
			if err := ledger.DeactivateStake(ctx, o.tx, stakeAccount, auth.Signer()); err != nil {
				return fmt.Errorf("%w: deactivate: %w", subscription.ErrUnstakeFailed, err)
			}
		}
		moved, err := ledger.WithdrawAll(ctx, o.tx, stakeAccount, auth.Signer(), recipient)
		if err != nil {
			return fmt.Errorf("%w: withdraw: %w", subscription.ErrUnstakeFailed, err)
		}

		staked := rec.Staked()
		if moved >= staked {
			staked = 0
		} else {
			staked -= moved
		}
		rec.StakedBalance = &staked
		if err := o.repo.SaveSubscription(ctx, rec); err != nil {
			return err
		}
		res = &subscription.UnstakeResult{
			User:          rec.Owner,
			StakeAccount:  stakeAccount,
			Recipient:     recipient,
			Lamports:      moved,
			StakedBalance: staked,
			Timestamp:     o.tx.Now().Unix(),
		}
		o.notify(event.EscrowUnstaked, res)
		return nil
	})
	if err != nil {
		metrics.StakeOperationsTotal.WithLabelValues("unstake", resultLabel(err)).Inc()
		return nil, err
	}
	metrics.StakeOperationsTotal.WithLabelValues("unstake", "ok").Inc()
	s.log.InfoContext(ctx, "escrow unstaked", "owner", user, "stake_account", stakeAccount, "lamports", res.Lamports)
	return res, nil
}
