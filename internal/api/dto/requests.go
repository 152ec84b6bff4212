package dto

import (
	"github.com/go-playground/validator/v10"

	"subvault/internal/ledger"
)

type ChallengeRequest struct {
	Wallet ledger.Address `json:"wallet" validate:"required"`
}

type VerifyRequest struct {
	ChallengeID string         `json:"challenge_id" validate:"required,uuid4"`
	Wallet      ledger.Address `json:"wallet" validate:"required"`
	Signature   string         `json:"signature" validate:"required,max=128"`
}

type InitPlatformConfigRequest struct {
	FeeWallet ledger.Address `json:"fee_wallet" validate:"required"`
}

type UpdateFeeWalletRequest struct {
	FeeWallet ledger.Address `json:"fee_wallet" validate:"required"`
}

// CreateSubscriptionRequest leaves monthly_amount unchecked so a zero amount
// reaches the program and fails with its own error code.
type CreateSubscriptionRequest struct {
	MonthlyAmount uint64         `json:"monthly_amount"`
	FeeWallet     ledger.Address `json:"fee_wallet"`
}

type ProcessPaymentRequest struct {
	Recipient  ledger.Address `json:"recipient" validate:"required"`
	FeeAccount ledger.Address `json:"fee_account" validate:"required"`
}

type CancelSubscriptionRequest struct {
	Destination ledger.Address `json:"destination" validate:"required"`
}

type StakeRequest struct {
	StakeAccount ledger.Address `json:"stake_account" validate:"required"`
	Lamports     uint64         `json:"lamports"`
}

// UnstakeRequest withdraws to the subscription owner; Recipient may be
// omitted and is rejected when it names anyone else.
type UnstakeRequest struct {
	StakeAccount ledger.Address `json:"stake_account" validate:"required"`
	Recipient    ledger.Address `json:"recipient"`
}

// TransferRequest moves native lamports, or tokens between token accounts
// when Mint is set.
type TransferRequest struct {
	To     ledger.Address `json:"to" validate:"required"`
	Amount uint64         `json:"amount" validate:"required,gt=0"`
	Mint   ledger.Address `json:"mint"`
	From   ledger.Address `json:"from" validate:"required_with=Mint"`
}

// AirdropRequest credits native lamports to Address, or mints Tokens into
// Address when it is a token account.
type AirdropRequest struct {
	Address  ledger.Address `json:"address" validate:"required"`
	Lamports uint64         `json:"lamports" validate:"required_without=Tokens,lte=100000000000"`
	Tokens   uint64         `json:"tokens" validate:"lte=1000000000000"`
}

type ContactRequest struct {
	Email string `json:"email" validate:"required,email,max=254"`
}

var Validate = validator.New(validator.WithRequiredStructEnabled())
