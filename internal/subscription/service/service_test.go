package service_test

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"subvault/internal/event"
	"subvault/internal/ledger"
	"subvault/internal/ledger/memory"
	"subvault/internal/subscription"
	"subvault/internal/subscription/service"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newKey(t *testing.T, seed byte) ledger.Address {
	t.Helper()
	pub := ed25519.NewKeyFromSeed(bytes.Repeat([]byte{seed}, ed25519.SeedSize)).Public().(ed25519.PublicKey)
	var a ledger.Address
	copy(a[:], pub)
	return a
}

type recorder struct {
	mu     sync.Mutex
	events []event.Event
}

func (r *recorder) handle(_ context.Context, ev event.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) ofType(t event.Type) []event.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []event.Event
	for _, ev := range r.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

type fixture struct {
	t   *testing.T
	ctx context.Context

	store *memory.Store
	svc   *service.Service
	rec   *recorder

	programID, mint, validator ledger.Address
	admin, feeWallet           ledger.Address
	user, merchant             ledger.Address

	userATA, merchantATA, feeATA ledger.Address
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		t:         t,
		ctx:       context.Background(),
		store:     memory.NewStore(memory.WithClock(func() time.Time { return fixedNow })),
		rec:       &recorder{},
		programID: newKey(t, 100),
		mint:      newKey(t, 101),
		validator: newKey(t, 102),
		admin:     newKey(t, 1),
		feeWallet: newKey(t, 2),
		user:      newKey(t, 3),
		merchant:  newKey(t, 4),
	}
	bus := event.NewMemoryBus()
	for _, typ := range []event.Type{
		event.PaymentProcessed, event.PaymentFailed, event.SubscriptionCanceled,
		event.SubscriptionCreated, event.EscrowStaked, event.EscrowUnstaked, event.FeeWalletUpdated,
	} {
		bus.Subscribe(typ, f.rec.handle)
	}
	f.svc = service.NewService(f.store, service.Config{
		ProgramID:     f.programID,
		Mint:          f.mint,
		ValidatorVote: f.validator,
	}, bus, nil)

	f.update(func(tx ledger.Tx) error {
		for _, addr := range []ledger.Address{f.admin, f.user} {
			if err := ledger.Airdrop(f.ctx, tx, addr, 10_000_000_000); err != nil {
				return err
			}
		}
		var err error
		payer := ledger.Verified(f.admin)
		if f.userATA, err = ledger.EnsureAssociatedTokenAccount(f.ctx, tx, payer, f.user, f.mint); err != nil {
			return err
		}
		if f.merchantATA, err = ledger.EnsureAssociatedTokenAccount(f.ctx, tx, payer, f.merchant, f.mint); err != nil {
			return err
		}
		f.feeATA, err = ledger.EnsureAssociatedTokenAccount(f.ctx, tx, payer, f.feeWallet, f.mint)
		return err
	})

	_, err := f.svc.InitPlatformConfig(f.ctx, ledger.Verified(f.admin), f.feeWallet)
	require.NoError(t, err)
	return f
}

func (f *fixture) update(fn func(tx ledger.Tx) error) {
	f.t.Helper()
	require.NoError(f.t, f.store.Update(f.ctx, fn))
}

// subscribe creates the user's subscription and deposits escrow tokens into it.
func (f *fixture) subscribe(monthly, deposit uint64) *subscription.SubscriptionRecord {
	f.t.Helper()
	rec, err := f.svc.InitializeSubscription(f.ctx, ledger.Verified(f.user), monthly, ledger.Address{})
	require.NoError(f.t, err)
	if deposit > 0 {
		f.update(func(tx ledger.Tx) error {
			return ledger.MintTokens(f.ctx, tx, rec.EscrowAccount, deposit)
		})
	}
	return rec
}

func (f *fixture) tokens(addr ledger.Address) uint64 {
	f.t.Helper()
	var amount uint64
	require.NoError(f.t, f.store.View(f.ctx, func(tx ledger.Tx) error {
		ta, _, err := ledger.LoadTokenAccount(f.ctx, tx, addr)
		if err != nil {
			return err
		}
		amount = ta.Amount
		return nil
	}))
	return amount
}

func (f *fixture) lamports(addr ledger.Address) uint64 {
	f.t.Helper()
	var lamports uint64
	require.NoError(f.t, f.store.View(f.ctx, func(tx ledger.Tx) error {
		acc, err := ledger.GetOrEmpty(f.ctx, tx, addr)
		if err != nil {
			return err
		}
		lamports = acc.Lamports
		return nil
	}))
	return lamports
}

func (f *fixture) record() *subscription.SubscriptionRecord {
	f.t.Helper()
	rec, err := f.svc.GetSubscription(f.ctx, f.user)
	require.NoError(f.t, err)
	return rec
}

func TestInitializeSubscription(t *testing.T) {
	f := newFixture(t)

	rec := f.subscribe(10_000_000, 0)
	assert.True(t, rec.IsActive)
	assert.Equal(t, f.user, rec.Owner)
	assert.Equal(t, f.feeWallet, rec.FeeWallet)
	assert.Nil(t, rec.LastPaymentTimestamp)
	assert.Nil(t, rec.ExpirationTimestamp)
	assert.Nil(t, rec.StakedBalance)

	wantAddr, bump, err := subscription.SubscriptionAddress(f.programID, f.user)
	require.NoError(t, err)
	assert.Equal(t, wantAddr, rec.Address)
	assert.Equal(t, bump, rec.AuthorityBump)

	stored := f.record()
	assert.Equal(t, rec.EscrowAccount, stored.EscrowAccount)
	assert.Equal(t, uint64(10_000_000), stored.MonthlyAmount)

	assert.Len(t, f.rec.ofType(event.SubscriptionCreated), 1)
}

func TestInitializeSubscriptionRejections(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.InitializeSubscription(f.ctx, ledger.Verified(f.user), 0, ledger.Address{})
	assert.ErrorIs(t, err, subscription.ErrInvalidAmount)

	broke := newKey(t, 50)
	_, err = f.svc.InitializeSubscription(f.ctx, ledger.Verified(broke), 1_000, ledger.Address{})
	assert.ErrorIs(t, err, subscription.ErrInsufficientGasFeeFunds)

	_, err = f.svc.InitializeSubscription(f.ctx, ledger.Signer{}, 1_000, ledger.Address{})
	assert.ErrorIs(t, err, subscription.ErrUnauthorized)

	f.subscribe(1_000, 0)
	_, err = f.svc.InitializeSubscription(f.ctx, ledger.Verified(f.user), 1_000, ledger.Address{})
	assert.ErrorIs(t, err, subscription.ErrSubscriptionAlreadyExists)
}

func TestInitializeSubscriptionWithoutPlatformConfig(t *testing.T) {
	f := newFixture(t)
	svc := service.NewService(f.store, service.Config{ProgramID: newKey(t, 90), Mint: f.mint}, nil, nil)

	_, err := svc.InitializeSubscription(f.ctx, ledger.Verified(f.user), 1_000, ledger.Address{})
	assert.ErrorIs(t, err, subscription.ErrInvalidSubscriptionState)
}

func TestReinitializeAfterCancelIsRejected(t *testing.T) {
	f := newFixture(t)
	f.subscribe(1_000, 0)
	_, err := f.svc.CancelSubscription(f.ctx, ledger.Verified(f.user), f.userATA)
	require.NoError(t, err)

	_, err = f.svc.InitializeSubscription(f.ctx, ledger.Verified(f.user), 1_000, ledger.Address{})
	assert.ErrorIs(t, err, subscription.ErrSubscriptionAlreadyExists)
}

func TestInitPlatformConfigOnce(t *testing.T) {
	f := newFixture(t)

	cfg, err := f.svc.GetPlatformConfig(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, f.admin, cfg.Admin)
	assert.Equal(t, f.feeWallet, cfg.FeeWallet)

	_, err = f.svc.InitPlatformConfig(f.ctx, ledger.Verified(f.user), f.user)
	assert.ErrorIs(t, err, subscription.ErrConfigAlreadyExists)

	cfg, err = f.svc.GetPlatformConfig(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, f.admin, cfg.Admin)
}

func TestProcessPaymentExactBalance(t *testing.T) {
	f := newFixture(t)
	rec := f.subscribe(10_000_000, 10_010_000)

	paid, err := f.svc.ProcessPayment(f.ctx, f.user, f.merchantATA, f.feeATA)
	require.NoError(t, err)
	assert.Equal(t, uint64(10_000_000), paid.Amount)
	assert.Equal(t, uint64(10_000), paid.Fee)
	assert.Equal(t, f.feeWallet, paid.FeeWallet)
	assert.Equal(t, fixedNow.Unix(), paid.Timestamp)

	assert.Zero(t, f.tokens(rec.EscrowAccount))
	assert.Equal(t, uint64(10_000_000), f.tokens(f.merchantATA))
	assert.Equal(t, uint64(10_000), f.tokens(f.feeATA))

	stored := f.record()
	require.NotNil(t, stored.LastPaymentTimestamp)
	assert.Equal(t, fixedNow.Unix(), *stored.LastPaymentTimestamp)

	logged, err := f.store.Events(f.ctx, 10)
	require.NoError(t, err)
	require.Len(t, logged, 1)
	assert.Equal(t, subscription.EventPaymentProcessed, logged[0].Name)

	published := f.rec.ofType(event.PaymentProcessed)
	require.Len(t, published, 1)
	got, err := event.DecodePayload[subscription.PaymentProcessed](published[0].Payload)
	require.NoError(t, err)
	assert.Equal(t, f.user, got.User)
}

func TestProcessPaymentInsufficientFunds(t *testing.T) {
	f := newFixture(t)
	rec := f.subscribe(10_000_000, 9_999_999)

	_, err := f.svc.ProcessPayment(f.ctx, f.user, f.merchantATA, f.feeATA)
	require.ErrorIs(t, err, subscription.ErrInsufficientFunds)

	assert.Equal(t, uint64(9_999_999), f.tokens(rec.EscrowAccount))
	assert.Zero(t, f.tokens(f.merchantATA))
	assert.Zero(t, f.tokens(f.feeATA))
	assert.Nil(t, f.record().LastPaymentTimestamp)

	failed := f.rec.ofType(event.PaymentFailed)
	require.Len(t, failed, 1)
	got, err := event.DecodePayload[subscription.PaymentFailed](failed[0].Payload)
	require.NoError(t, err)
	assert.Equal(t, uint64(10_010_000), got.Required)
	assert.Equal(t, uint64(9_999_999), got.Available)
	assert.Equal(t, subscription.ErrInsufficientFunds.Code, got.Code)
	assert.Equal(t, fixedNow.Unix(), got.Timestamp)
	assert.Empty(t, f.rec.ofType(event.PaymentProcessed))
}

func TestProcessPaymentInactive(t *testing.T) {
	f := newFixture(t)
	rec := f.subscribe(1_000, 0)
	_, err := f.svc.CancelSubscription(f.ctx, ledger.Verified(f.user), f.userATA)
	require.NoError(t, err)
	f.update(func(tx ledger.Tx) error {
		return ledger.MintTokens(f.ctx, tx, rec.EscrowAccount, 50_000)
	})

	_, err = f.svc.ProcessPayment(f.ctx, f.user, f.merchantATA, f.feeATA)
	require.ErrorIs(t, err, subscription.ErrSubscriptionInactive)
	assert.Equal(t, uint64(50_000), f.tokens(rec.EscrowAccount))
	assert.Zero(t, f.tokens(f.merchantATA))
	assert.Nil(t, f.record().LastPaymentTimestamp)
	assert.Empty(t, f.rec.ofType(event.PaymentFailed))
}

func TestProcessPaymentRejectsForeignFeeAccount(t *testing.T) {
	f := newFixture(t)
	rec := f.subscribe(1_000, 100_000)

	_, err := f.svc.ProcessPayment(f.ctx, f.user, f.merchantATA, f.userATA)
	assert.ErrorIs(t, err, subscription.ErrFeeWalletMismatch)

	_, err = f.svc.ProcessPayment(f.ctx, f.user, rec.EscrowAccount, f.feeATA)
	assert.ErrorIs(t, err, subscription.ErrInvalidSubscriptionState)

	_, err = f.svc.ProcessPayment(f.ctx, f.user, newKey(t, 60), f.feeATA)
	assert.ErrorIs(t, err, subscription.ErrTokenAccountNotFound)

	_, err = f.svc.ProcessPayment(f.ctx, newKey(t, 61), f.merchantATA, f.feeATA)
	assert.ErrorIs(t, err, subscription.ErrSubscriptionNotFound)

	assert.Equal(t, uint64(100_000), f.tokens(rec.EscrowAccount))
}

func TestProcessPaymentIsAtomic(t *testing.T) {
	f := newFixture(t)
	rec := f.subscribe(1_000, 100_000)

	// fee account has the right owner but the wrong mint, so only the
	// second transfer fails
	var wrongMintFee ledger.Address
	f.update(func(tx ledger.Tx) error {
		var err error
		wrongMintFee, err = ledger.EnsureAssociatedTokenAccount(f.ctx, tx, ledger.Verified(f.admin), f.feeWallet, newKey(t, 70))
		return err
	})

	_, err := f.svc.ProcessPayment(f.ctx, f.user, f.merchantATA, wrongMintFee)
	require.Error(t, err)
	assert.Equal(t, uint64(100_000), f.tokens(rec.EscrowAccount))
	assert.Zero(t, f.tokens(f.merchantATA))
	assert.Nil(t, f.record().LastPaymentTimestamp)
}

func TestCancelSubscriptionRefundsOnce(t *testing.T) {
	f := newFixture(t)
	rec := f.subscribe(1_000, 42_000)

	canceled, err := f.svc.CancelSubscription(f.ctx, ledger.Verified(f.user), f.userATA)
	require.NoError(t, err)
	assert.Equal(t, uint64(42_000), canceled.RefundedAmount)
	assert.Zero(t, f.tokens(rec.EscrowAccount))
	assert.Equal(t, uint64(42_000), f.tokens(f.userATA))
	assert.False(t, f.record().IsActive)

	_, err = f.svc.CancelSubscription(f.ctx, ledger.Verified(f.user), f.userATA)
	assert.ErrorIs(t, err, subscription.ErrSubscriptionInactive)
	assert.Equal(t, uint64(42_000), f.tokens(f.userATA))
	assert.Len(t, f.rec.ofType(event.SubscriptionCanceled), 1)
}

func TestCancelSubscriptionWithEmptyEscrow(t *testing.T) {
	f := newFixture(t)
	f.subscribe(1_000, 0)

	canceled, err := f.svc.CancelSubscription(f.ctx, ledger.Verified(f.user), newKey(t, 80))
	require.NoError(t, err)
	assert.Zero(t, canceled.RefundedAmount)
	assert.False(t, f.record().IsActive)
}

func TestCancelSubscriptionNeedsOwnerWallet(t *testing.T) {
	f := newFixture(t)
	rec := f.subscribe(1_000, 5_000)

	auth, err := service.ResolveAuthority(f.programID, f.user, rec.AuthorityBump)
	require.NoError(t, err)
	_, err = f.svc.CancelSubscription(f.ctx, auth.Signer(), f.userATA)
	assert.ErrorIs(t, err, subscription.ErrUnauthorized)

	_, err = f.svc.CancelSubscription(f.ctx, ledger.Verified(f.merchant), f.merchantATA)
	assert.ErrorIs(t, err, subscription.ErrSubscriptionNotFound)

	assert.True(t, f.record().IsActive)
	assert.Equal(t, uint64(5_000), f.tokens(rec.EscrowAccount))
}

func TestUpdateFeeWallet(t *testing.T) {
	f := newFixture(t)
	rec := f.subscribe(1_000, 0)
	newWallet := newKey(t, 20)

	_, err := f.svc.UpdateFeeWallet(f.ctx, ledger.Verified(f.user), newWallet)
	assert.ErrorIs(t, err, subscription.ErrUnauthorizedFeeWalletUpdate)
	cfg, err := f.svc.GetPlatformConfig(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, f.feeWallet, cfg.FeeWallet)
	assert.Empty(t, f.rec.ofType(event.FeeWalletUpdated))

	cfg, err = f.svc.UpdateFeeWallet(f.ctx, ledger.Verified(f.admin), newWallet)
	require.NoError(t, err)
	assert.Equal(t, newWallet, cfg.FeeWallet)
	assert.Len(t, f.rec.ofType(event.FeeWalletUpdated), 1)

	assert.Equal(t, f.feeWallet, f.record().FeeWallet, "existing records keep the captured wallet")
	assert.Equal(t, rec.FeeWallet, f.record().FeeWallet)
}

func TestPaymentAfterFeeWalletUpdateReportsCapturedWallet(t *testing.T) {
	f := newFixture(t)
	f.subscribe(10_000_000, 10_010_000)
	_, err := f.svc.UpdateFeeWallet(f.ctx, ledger.Verified(f.admin), newKey(t, 20))
	require.NoError(t, err)

	paid, err := f.svc.ProcessPayment(f.ctx, f.user, f.merchantATA, f.feeATA)
	require.NoError(t, err)
	assert.Equal(t, f.feeWallet, paid.FeeWallet)
	assert.Equal(t, uint64(10_000), f.tokens(f.feeATA))
}

func TestUpdateFeeWalletWithoutConfig(t *testing.T) {
	f := newFixture(t)
	svc := service.NewService(f.store, service.Config{ProgramID: newKey(t, 91), Mint: f.mint}, nil, nil)

	_, err := svc.UpdateFeeWallet(f.ctx, ledger.Verified(f.admin), newKey(t, 20))
	assert.ErrorIs(t, err, subscription.ErrInvalidSubscriptionState)
}

func TestGetStatus(t *testing.T) {
	f := newFixture(t)
	f.subscribe(1_000, 11_000)

	st, err := f.svc.GetStatus(f.ctx, f.user)
	require.NoError(t, err)
	assert.Equal(t, uint64(11_000), st.EscrowBalance)
	assert.Equal(t, uint64(11_000), st.TotalRequired)
	assert.True(t, st.Covered())

	statuses, err := f.svc.ListStatuses(f.ctx)
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	assert.Equal(t, f.user, statuses[0].Record.Owner)

	_, err = f.svc.GetStatus(f.ctx, f.merchant)
	assert.ErrorIs(t, err, subscription.ErrSubscriptionNotFound)
}
