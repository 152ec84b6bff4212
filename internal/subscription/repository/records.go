package repository

import (
	"context"
	"errors"
	"fmt"

	"subvault/internal/ledger"
	"subvault/internal/subscription"
)

// ErrRecordNotFound is returned when no record exists at the derived address.
var ErrRecordNotFound = errors.New("record not found")

// TxRecordRepository reads and writes program records inside one ledger transaction.
type TxRecordRepository struct {
	tx        ledger.Tx
	programID ledger.Address
}

func NewTxRecordRepository(tx ledger.Tx, programID ledger.Address) *TxRecordRepository {
	return &TxRecordRepository{tx: tx, programID: programID}
}

// GetSubscription loads the record of owner together with its raw account.
func (r *TxRecordRepository) GetSubscription(ctx context.Context, owner ledger.Address) (*subscription.SubscriptionRecord, *ledger.Account, error) {
	addr, _, err := subscription.SubscriptionAddress(r.programID, owner)
	if err != nil {
		return nil, nil, err
	}
	return r.GetSubscriptionAt(ctx, addr)
}

func (r *TxRecordRepository) GetSubscriptionAt(ctx context.Context, addr ledger.Address) (*subscription.SubscriptionRecord, *ledger.Account, error) {
	acc, err := r.tx.Get(ctx, addr)
	if err != nil {
		if errors.Is(err, ledger.ErrAccountNotFound) {
			return nil, nil, fmt.Errorf("%w: subscription %s", ErrRecordNotFound, addr)
		}
		return nil, nil, err
	}
	rec, err := r.decodeSubscription(acc)
	if err != nil {
		return nil, nil, err
	}
	return rec, acc, nil
}

// SaveSubscription rewrites the record data, keeping the account balance.
func (r *TxRecordRepository) SaveSubscription(ctx context.Context, rec *subscription.SubscriptionRecord) error {
	acc, err := r.tx.Get(ctx, rec.Address)
	if err != nil {
		return err
	}
	if acc.Owner != r.programID {
		return fmt.Errorf("%w: %s", ledger.ErrOwnerMismatch, rec.Address)
	}
	data, err := rec.MarshalBinary()
	if err != nil {
		return err
	}
	acc.Data = data
	return r.tx.Put(ctx, acc)
}

// ListSubscriptions returns every subscription record owned by the program.
func (r *TxRecordRepository) ListSubscriptions(ctx context.Context) ([]*subscription.SubscriptionRecord, error) {
	accounts, err := r.tx.ListByOwner(ctx, r.programID)
	if err != nil {
		return nil, err
	}
	var records []*subscription.SubscriptionRecord
	for _, acc := range accounts {
		if !subscription.IsSubscriptionRecord(acc.Data) {
			continue
		}
		rec, err := r.decodeSubscription(acc)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func (r *TxRecordRepository) GetPlatformConfig(ctx context.Context) (*subscription.PlatformConfigRecord, error) {
	addr, _, err := subscription.PlatformConfigAddress(r.programID)
	if err != nil {
		return nil, err
	}
	acc, err := r.tx.Get(ctx, addr)
	if err != nil {
		if errors.Is(err, ledger.ErrAccountNotFound) {
			return nil, fmt.Errorf("%w: platform config", ErrRecordNotFound)
		}
		return nil, err
	}
	if acc.Owner != r.programID {
		return nil, fmt.Errorf("%w: %s", ledger.ErrOwnerMismatch, addr)
	}
	cfg := &subscription.PlatformConfigRecord{Address: addr}
	if err := cfg.UnmarshalBinary(acc.Data); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (r *TxRecordRepository) SavePlatformConfig(ctx context.Context, cfg *subscription.PlatformConfigRecord) error {
	acc, err := r.tx.Get(ctx, cfg.Address)
	if err != nil {
		return err
	}
	if acc.Owner != r.programID {
		return fmt.Errorf("%w: %s", ledger.ErrOwnerMismatch, cfg.Address)
	}
	data, err := cfg.MarshalBinary()
	if err != nil {
		return err
	}
	acc.Data = data
	return r.tx.Put(ctx, acc)
}

func (r *TxRecordRepository) decodeSubscription(acc *ledger.Account) (*subscription.SubscriptionRecord, error) {
	if acc.Owner != r.programID {
		return nil, fmt.Errorf("%w: %s", ledger.ErrOwnerMismatch, acc.Address)
	}
	rec := &subscription.SubscriptionRecord{Address: acc.Address}
	if err := rec.UnmarshalBinary(acc.Data); err != nil {
		return nil, err
	}
	return rec, nil
}
