// Package notify emails subscription owners about payments, cancellations,
// failed payments and low escrow balances.
package notify

import (
	"errors"
	"time"

	"subvault/internal/ledger"
)

var ErrContactNotFound = errors.New("contact not found")

// Contact is a wallet's notification address in clear text.
type Contact struct {
	Wallet    ledger.Address `json:"wallet"`
	Email     string         `json:"email"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// StoredContact is a Contact as persisted: the email is sealed with Cipher.
type StoredContact struct {
	Wallet         ledger.Address
	EmailEncrypted string
	UpdatedAt      time.Time
}

// Kinds label notifications in logs and metrics.
const (
	KindReceipt       = "receipt"
	KindCanceled      = "canceled"
	KindPaymentFailed = "payment_failed"
	KindLowBalance    = "low_balance"
)
