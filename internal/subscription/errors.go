package subscription

import "fmt"

// Category groups program errors for callers that map them to transport
// status codes.
type Category string

const (
	CategoryState         Category = "state"
	CategoryAuthorization Category = "authorization"
	CategoryFunds         Category = "funds"
	CategoryLookup        Category = "lookup"
	CategoryOperation     Category = "operation"
)

// Error is a structured program error. Values are compared by identity,
// so wrap them with %w and match with errors.Is.
type Error struct {
	Code     uint32   `json:"code"`
	Name     string   `json:"name"`
	Category Category `json:"category"`
	Msg      string   `json:"error"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Name, e.Code, e.Msg)
}

const errorCodeOffset = 6000

var codes uint32 = errorCodeOffset

func newError(name string, cat Category, msg string) *Error {
	e := &Error{Code: codes, Name: name, Category: cat, Msg: msg}
	codes++
	return e
}

// Declaration order fixes the numeric codes.
var (
	ErrSubscriptionInactive        = newError("SubscriptionInactive", CategoryState, "The subscription is inactive.")
	ErrInsufficientFunds           = newError("InsufficientFunds", CategoryFunds, "Insufficient funds in the escrow account.")
	ErrSubscriptionAlreadyPaused   = newError("SubscriptionAlreadyPaused", CategoryState, "The subscription is already paused.")
	ErrSubscriptionAlreadyCanceled = newError("SubscriptionAlreadyCanceled", CategoryState, "The subscription has already been canceled.")
	ErrUnauthorized                = newError("Unauthorized", CategoryAuthorization, "Unauthorized access.")
	ErrInvalidSubscriptionState    = newError("InvalidSubscriptionState", CategoryState, "Invalid subscription state.")
	ErrInsufficientGasFeeFunds     = newError("InsufficientGasFeeFunds", CategoryFunds, "Insufficient gas fee funds.")
	ErrUnauthorizedFeeWalletUpdate = newError("UnauthorizedFeeWalletUpdate", CategoryAuthorization, "The platform fee wallet cannot be updated.")
	ErrInvalidAmount               = newError("InvalidAmount", CategoryFunds, "Invalid amount specified.")
	ErrEscrowAccountNotFound       = newError("EscrowAccountNotFound", CategoryLookup, "Escrow account does not exist.")
	ErrSubscriptionAlreadyExists   = newError("SubscriptionAlreadyExists", CategoryState, "Subscription already exists.")
	ErrStakeFailed                 = newError("StakeFailed", CategoryOperation, "Unable to stake the escrow funds.")
	ErrUnstakeFailed               = newError("UnstakeFailed", CategoryOperation, "Unable to unstake the escrow funds.")
	ErrInvalidSigner               = newError("InvalidSigner", CategoryAuthorization, "The stake account is not controlled by the subscription authority.")
	ErrArithmeticOverflow          = newError("ArithmeticOverflow", CategoryFunds, "Amount overflows.")
	ErrFeeWalletMismatch           = newError("FeeWalletMismatch", CategoryAuthorization, "Fee account does not belong to the subscription fee wallet.")
	ErrConfigAlreadyExists         = newError("ConfigAlreadyExists", CategoryState, "Platform config already exists.")
	ErrSubscriptionNotFound        = newError("SubscriptionNotFound", CategoryLookup, "Subscription does not exist.")
	ErrTokenAccountNotFound        = newError("TokenAccountNotFound", CategoryLookup, "Token account does not exist.")
)
