package subscription

import "subvault/internal/ledger"

// Ledger event names.
const (
	EventPaymentProcessed     = "PaymentProcessed"
	EventSubscriptionCanceled = "SubscriptionCanceled"
)

type PaymentProcessed struct {
	User      ledger.Address `json:"user"`
	Amount    uint64         `json:"amount"`
	Fee       uint64         `json:"fee"`
	FeeWallet ledger.Address `json:"fee_wallet"`
	Recipient ledger.Address `json:"recipient"`
	Timestamp int64          `json:"timestamp"`
}

type SubscriptionCanceled struct {
	User           ledger.Address `json:"user"`
	RefundedAmount uint64         `json:"refunded_amount"`
	Timestamp      int64          `json:"timestamp"`
}

// PaymentFailed is published off-ledger when a payment attempt is rejected
// for lack of funds. It is never persisted.
type PaymentFailed struct {
	User      ledger.Address `json:"user"`
	Reason    string         `json:"reason"`
	Code      uint32         `json:"code"`
	Required  uint64         `json:"required"`
	Available uint64         `json:"available"`
	Timestamp int64          `json:"timestamp"`
}

type SubscriptionCreated struct {
	User          ledger.Address `json:"user"`
	Subscription  ledger.Address `json:"subscription"`
	Escrow        ledger.Address `json:"escrow"`
	MonthlyAmount uint64         `json:"monthly_amount"`
	FeeWallet     ledger.Address `json:"fee_wallet"`
	Timestamp     int64          `json:"timestamp"`
}

type StakeResult struct {
	User          ledger.Address `json:"user"`
	StakeAccount  ledger.Address `json:"stake_account"`
	Validator     ledger.Address `json:"validator"`
	Lamports      uint64         `json:"lamports"`
	StakedBalance uint64         `json:"staked_balance"`
	AlreadyStaked bool           `json:"already_staked"`
	Timestamp     int64          `json:"timestamp"`
}

type UnstakeResult struct {
	User          ledger.Address `json:"user"`
	StakeAccount  ledger.Address `json:"stake_account"`
	Recipient     ledger.Address `json:"recipient"`
	Lamports      uint64         `json:"lamports"`
	StakedBalance uint64         `json:"staked_balance"`
	Timestamp     int64          `json:"timestamp"`
}

type FeeWalletUpdated struct {
	Admin     ledger.Address `json:"admin"`
	Previous  ledger.Address `json:"previous"`
	FeeWallet ledger.Address `json:"fee_wallet"`
	Timestamp int64          `json:"timestamp"`
}
