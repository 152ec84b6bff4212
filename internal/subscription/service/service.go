package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"subvault/internal/event"
	"subvault/internal/ledger"
	"subvault/internal/metrics"
	"subvault/internal/subscription"
	"subvault/internal/subscription/repository"
)

type Publisher interface {
	Publish(ctx context.Context, ev event.Event) error
}

type Config struct {
	ProgramID     ledger.Address
	Mint          ledger.Address
	ValidatorVote ledger.Address
	FeeAmount     uint64
}

type Service struct {
	store     ledger.Store
	programID ledger.Address
	mint      ledger.Address
	validator ledger.Address
	fees      FeeCalculator
	bus       Publisher
	log       *slog.Logger
}

func NewService(store ledger.Store, cfg Config, bus Publisher, log *slog.Logger) *Service {
	if cfg.FeeAmount == 0 {
		cfg.FeeAmount = DefaultFeeAmount
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		store:     store,
		programID: cfg.ProgramID,
		mint:      cfg.Mint,
		validator: cfg.ValidatorVote,
		fees:      FixedFee(cfg.FeeAmount),
		bus:       bus,
		log:       log.With("component", "subscription"),
	}
}

func (s *Service) ProgramID() ledger.Address { return s.programID }
func (s *Service) Mint() ledger.Address      { return s.mint }
func (s *Service) Fees() FeeCalculator       { return s.fees }

// Status is a read-only view of a subscription and the balances backing it.
type Status struct {
	Record            *subscription.SubscriptionRecord `json:"record"`
	EscrowBalance     uint64                           `json:"escrow_balance"`
	AuthorityLamports uint64                           `json:"authority_lamports"`
	Fee               uint64                           `json:"fee"`
	TotalRequired     uint64                           `json:"total_required"`
}

// Covered reports whether the escrow can pay the next cycle.
func (st *Status) Covered() bool {
	return st.EscrowBalance >= st.TotalRequired
}

// opTx carries the record repository of one ledger transaction and the bus
// events to publish once it commits.
type opTx struct {
	ctx     context.Context
	tx      ledger.Tx
	repo    *repository.TxRecordRepository
	program ledger.Address
	pending []event.Event
}

// emit persists a program event in the ledger log and queues it for the bus.
func (o *opTx) emit(name string, t event.Type, payload any) error {
	ev, err := ledger.NewEvent(o.program, name, o.tx.Now().Unix(), payload)
	if err != nil {
		return err
	}
	if err := o.tx.Emit(o.ctx, ev); err != nil {
		return err
	}
	o.notify(t, payload)
	return nil
}

// notify queues a bus-only event.
func (o *opTx) notify(t event.Type, payload any) {
	o.pending = append(o.pending, event.New(t, payload))
}

// update runs fn in one ledger transaction and publishes its events after commit.
func (s *Service) update(ctx context.Context, op string, fn func(o *opTx) error) error {
	start := time.Now()
	var pending []event.Event
	err := s.store.Update(ctx, func(tx ledger.Tx) error {
		o := &opTx{ctx: ctx, tx: tx, repo: repository.NewTxRecordRepository(tx, s.programID), program: s.programID}
		if err := fn(o); err != nil {
			return err
		}
		pending = o.pending
		return nil
	})
	s.observe(ctx, op, start, err)
	if err != nil {
		return err
	}
	s.publish(ctx, pending...)
	return nil
}

func (s *Service) view(ctx context.Context, fn func(o *opTx) error) error {
	return s.store.View(ctx, func(tx ledger.Tx) error {
		return fn(&opTx{ctx: ctx, tx: tx, repo: repository.NewTxRecordRepository(tx, s.programID), program: s.programID})
	})
}

func (s *Service) publish(ctx context.Context, events ...event.Event) {
	if s.bus == nil {
		return
	}
	for _, ev := range events {
		if err := s.bus.Publish(ctx, ev); err != nil {
			s.log.WarnContext(ctx, "event handler failed", "event", ev.Type, "error", err)
		}
	}
}

func (s *Service) observe(ctx context.Context, op string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = resultLabel(err)
		s.log.InfoContext(ctx, "operation rejected", "operation", op, "error", err)
	} else {
		s.log.DebugContext(ctx, "operation committed", "operation", op)
	}
	metrics.OperationDuration.WithLabelValues(op, result).Observe(time.Since(start).Seconds())
}

func resultLabel(err error) string {
	var pe *subscription.Error
	if errors.As(err, &pe) {
		return pe.Name
	}
	return "error"
}

// loadSubscription returns the record of owner or ErrSubscriptionNotFound.
func (o *opTx) loadSubscription(owner ledger.Address) (*subscription.SubscriptionRecord, error) {
	rec, _, err := o.repo.GetSubscription(o.ctx, owner)
	if errors.Is(err, repository.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: owner %s", subscription.ErrSubscriptionNotFound, owner)
	}
	return rec, err
}

func (o *opTx) loadPlatformConfig() (*subscription.PlatformConfigRecord, error) {
	cfg, err := o.repo.GetPlatformConfig(o.ctx)
	if errors.Is(err, repository.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: platform config is not initialized", subscription.ErrInvalidSubscriptionState)
	}
	return cfg, err
}

func (o *opTx) loadEscrow(rec *subscription.SubscriptionRecord) (*ledger.TokenAccount, error) {
	escrow, _, err := ledger.LoadTokenAccount(o.ctx, o.tx, rec.EscrowAccount)
	if errors.Is(err, ledger.ErrAccountNotFound) || errors.Is(err, ledger.ErrNotTokenAccount) {
		return nil, fmt.Errorf("%w: %s", subscription.ErrEscrowAccountNotFound, rec.EscrowAccount)
	}
	return escrow, err
}

func (o *opTx) loadTokenAccount(addr ledger.Address) (*ledger.TokenAccount, error) {
	ta, _, err := ledger.LoadTokenAccount(o.ctx, o.tx, addr)
	if errors.Is(err, ledger.ErrAccountNotFound) || errors.Is(err, ledger.ErrNotTokenAccount) {
		return nil, fmt.Errorf("%w: %s", subscription.ErrTokenAccountNotFound, addr)
	}
	return ta, err
}

// programError maps host ledger failures onto program errors. Program
// errors and unknown errors pass through.
func programError(err error) error {
	if err == nil {
		return nil
	}
	var pe *subscription.Error
	if errors.As(err, &pe) {
		return err
	}
	switch {
	case errors.Is(err, ledger.ErrInsufficientTokens):
		return fmt.Errorf("%w: %w", subscription.ErrInsufficientFunds, err)
	case errors.Is(err, ledger.ErrInsufficientLamports), errors.Is(err, ledger.ErrNotRentExempt):
		return fmt.Errorf("%w: %w", subscription.ErrInsufficientGasFeeFunds, err)
	case errors.Is(err, ledger.ErrOwnerMismatch), errors.Is(err, ledger.ErrMissingSigner):
		return fmt.Errorf("%w: %w", subscription.ErrUnauthorized, err)
	case errors.Is(err, ledger.ErrTokenOverflow), errors.Is(err, ledger.ErrLamportOverflow):
		return fmt.Errorf("%w: %w", subscription.ErrArithmeticOverflow, err)
	case errors.Is(err, ledger.ErrMintMismatch):
		return fmt.Errorf("%w: %w", subscription.ErrInvalidSubscriptionState, err)
	}
	return err
}

func requireWallet(signer ledger.Signer) error {
	if !signer.Valid() || signer.Derived() {
		return fmt.Errorf("%w: a wallet signature is required", subscription.ErrUnauthorized)
	}
	return nil
}

// GetSubscription returns the record of owner.
func (s *Service) GetSubscription(ctx context.Context, owner ledger.Address) (*subscription.SubscriptionRecord, error) {
	var rec *subscription.SubscriptionRecord
	err := s.view(ctx, func(o *opTx) error {
		var err error
		rec, err = o.loadSubscription(owner)
		return err
	})
	return rec, err
}

// GetStatus returns the record of owner with its escrow and authority balances.
func (s *Service) GetStatus(ctx context.Context, owner ledger.Address) (*Status, error) {
	var st *Status
	err := s.view(ctx, func(o *opTx) error {
		rec, err := o.loadSubscription(owner)
		if err != nil {
			return err
		}
		st, err = s.status(o, rec)
		return err
	})
	return st, err
}

func (s *Service) GetPlatformConfig(ctx context.Context) (*subscription.PlatformConfigRecord, error) {
	var cfg *subscription.PlatformConfigRecord
	err := s.view(ctx, func(o *opTx) error {
		var err error
		cfg, err = o.loadPlatformConfig()
		return err
	})
	return cfg, err
}

func (s *Service) ListSubscriptions(ctx context.Context) ([]*subscription.SubscriptionRecord, error) {
	var records []*subscription.SubscriptionRecord
	err := s.view(ctx, func(o *opTx) error {
		var err error
		records, err = o.repo.ListSubscriptions(ctx)
		return err
	})
	return records, err
}

// ListStatuses returns a Status for every subscription, active or not.
func (s *Service) ListStatuses(ctx context.Context) ([]*Status, error) {
	var out []*Status
	err := s.view(ctx, func(o *opTx) error {
		records, err := o.repo.ListSubscriptions(ctx)
		if err != nil {
			return err
		}
		for _, rec := range records {
			st, err := s.status(o, rec)
			if err != nil {
				return err
			}
			out = append(out, st)
		}
		return nil
	})
	return out, err
}

func (s *Service) status(o *opTx, rec *subscription.SubscriptionRecord) (*Status, error) {
	st := &Status{Record: rec}
	total, fee, err := TotalRequired(s.fees, rec.MonthlyAmount)
	if err != nil {
		return nil, err
	}
	st.Fee, st.TotalRequired = fee, total
	escrow, err := o.loadEscrow(rec)
	switch {
	case err == nil:
		st.EscrowBalance = escrow.Amount
	case !errors.Is(err, subscription.ErrEscrowAccountNotFound):
		return nil, err
	}
	acc, err := ledger.GetOrEmpty(o.ctx, o.tx, rec.Address)
	if err != nil {
		return nil, err
	}
	st.AuthorityLamports = acc.Lamports
	return st, nil
}
