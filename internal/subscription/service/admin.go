package service

import (
	"context"
	"fmt"

	"subvault/internal/event"
	"subvault/internal/ledger"
	"subvault/internal/subscription"
)

// UpdateFeeWallet points future subscriptions at newFeeWallet. Records
// created earlier keep the wallet they captured.
func (s *Service) UpdateFeeWallet(ctx context.Context, admin ledger.Signer, newFeeWallet ledger.Address) (*subscription.PlatformConfigRecord, error) {
	if err := requireWallet(admin); err != nil {
		return nil, fmt.Errorf("%w: %w", subscription.ErrUnauthorizedFeeWalletUpdate, err)
	}
	var cfg *subscription.PlatformConfigRecord
	err := s.update(ctx, "update_fee_wallet", func(o *opTx) error {
		var err error
		cfg, err = o.loadPlatformConfig()
		if err != nil {
			return err
		}
		if cfg.Admin != admin.Address() {
			return fmt.Errorf("%w: %s is not the platform admin", subscription.ErrUnauthorizedFeeWalletUpdate, admin.Address())
		}
		previous := cfg.FeeWallet
		cfg.FeeWallet = newFeeWallet
		if err := o.repo.SavePlatformConfig(ctx, cfg); err != nil {
			return err
		}
		o.notify(event.FeeWalletUpdated, subscription.FeeWalletUpdated{
			Admin:     cfg.Admin,
			Previous:  previous,
			FeeWallet: newFeeWallet,
			Timestamp: o.tx.Now().Unix(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.InfoContext(ctx, "fee wallet updated", "fee_wallet", newFeeWallet)
	return cfg, nil
}
