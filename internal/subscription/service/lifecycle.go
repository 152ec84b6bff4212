package service

import (
	"context"
	"errors"
	"fmt"

	"subvault/internal/event"
	"subvault/internal/ledger"
	"subvault/internal/subscription"
)

// InitPlatformConfig creates the platform config singleton and binds admin
// to it. It succeeds once per deployment.
func (s *Service) InitPlatformConfig(ctx context.Context, admin ledger.Signer, feeWallet ledger.Address) (*subscription.PlatformConfigRecord, error) {
	if err := requireWallet(admin); err != nil {
		return nil, err
	}
	addr, bump, err := subscription.PlatformConfigAddress(s.programID)
	if err != nil {
		return nil, err
	}
	cfg := &subscription.PlatformConfigRecord{
		Address:   addr,
		FeeWallet: feeWallet,
		Admin:     admin.Address(),
		Bump:      bump,
	}

	err = s.update(ctx, "init_platform_config", func(o *opTx) error {
		err := ledger.CreateAccount(ctx, o.tx, admin, addr,
			ledger.MinimumBalance(subscription.PlatformConfigRecordSize),
			subscription.PlatformConfigRecordSize, s.programID)
		if errors.Is(err, ledger.ErrAccountExists) {
			return fmt.Errorf("%w: %s", subscription.ErrConfigAlreadyExists, addr)
		}
		if err != nil {
			return programError(err)
		}
		return o.repo.SavePlatformConfig(ctx, cfg)
	})
	if err != nil {
		return nil, err
	}
	s.log.InfoContext(ctx, "platform config initialized", "admin", cfg.Admin, "fee_wallet", cfg.FeeWallet)
	return cfg, nil
}

// InitializeSubscription creates the subscription record of user and its
// escrow token account. The user pays rent for both. A zero feeWallet
// captures the platform's current fee wallet.
func (s *Service) InitializeSubscription(ctx context.Context, user ledger.Signer, monthlyAmount uint64, feeWallet ledger.Address) (*subscription.SubscriptionRecord, error) {
	if err := requireWallet(user); err != nil {
		return nil, err
	}
	if monthlyAmount == 0 {
		return nil, fmt.Errorf("%w: monthly amount must be positive", subscription.ErrInvalidAmount)
	}
	if _, _, err := TotalRequired(s.fees, monthlyAmount); err != nil {
		return nil, err
	}
	owner := user.Address()
	recAddr, bump, err := subscription.SubscriptionAddress(s.programID, owner)
	if err != nil {
		return nil, err
	}
	escrowAddr, _, err := subscription.EscrowAddress(s.programID, owner)
	if err != nil {
		return nil, err
	}

	var rec *subscription.SubscriptionRecord
	err = s.update(ctx, "initialize_subscription", func(o *opTx) error {
		cfg, err := o.loadPlatformConfig()
		if err != nil {
			return err
		}
		if feeWallet.IsZero() {
			feeWallet = cfg.FeeWallet
		}

		err = ledger.CreateAccount(ctx, o.tx, user, recAddr,
			ledger.MinimumBalance(subscription.SubscriptionRecordSize),
			subscription.SubscriptionRecordSize, s.programID)
		if errors.Is(err, ledger.ErrAccountExists) {
			return fmt.Errorf("%w: %s", subscription.ErrSubscriptionAlreadyExists, recAddr)
		}
		if err != nil {
			return programError(err)
		}

		err = ledger.CreateTokenAccount(ctx, o.tx, user, escrowAddr, s.mint, recAddr)
		if errors.Is(err, ledger.ErrAccountExists) {
			return fmt.Errorf("%w: escrow %s", subscription.ErrSubscriptionAlreadyExists, escrowAddr)
		}
		if err != nil {
			return programError(err)
		}

		rec = &subscription.SubscriptionRecord{
			Address:       recAddr,
			Owner:         owner,
			EscrowAccount: escrowAddr,
			MonthlyAmount: monthlyAmount,
			IsActive:      true,
			AuthorityBump: bump,
			FeeWallet:     feeWallet,
		}
		if err := o.repo.SaveSubscription(ctx, rec); err != nil {
			return err
		}
		o.notify(event.SubscriptionCreated, subscription.SubscriptionCreated{
			User:          owner,
			Subscription:  recAddr,
			Escrow:        escrowAddr,
			MonthlyAmount: monthlyAmount,
			FeeWallet:     feeWallet,
			Timestamp:     o.tx.Now().Unix(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.InfoContext(ctx, "subscription initialized", "owner", owner, "monthly_amount", monthlyAmount)
	return rec, nil
}
