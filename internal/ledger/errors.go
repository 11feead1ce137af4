package ledger

import (
	"github.com/Aidin1998/accountmanager/common/errors"
)

// Error kinds. Sentinels match by kind, so errors.Is(err, ErrInsufficientFunds)
// holds for any explained or wrapped copy.
const (
	KindInvalidAmount       = "InvalidAmount"
	KindInsufficientFunds   = "InsufficientFunds"
	KindAccountNotFound     = "AccountNotFound"
	KindCustomerNotFound    = "CustomerNotFound"
	KindInvalidCurrency     = "InvalidCurrency"
	KindTimeout             = "Timeout"
	KindStoreUnavailable    = "StoreUnavailable"
	KindConcurrencyConflict = "ConcurrencyConflict"
)

var (
	ErrInvalidAmount       = errors.Invalid.Reason(KindInvalidAmount).Explain("amount must be greater than zero")
	ErrInsufficientFunds   = errors.Unprocessable.Reason(KindInsufficientFunds).Explain("insufficient funds")
	ErrAccountNotFound     = errors.NotFound.Reason(KindAccountNotFound).Explain("account not found")
	ErrCustomerNotFound    = errors.NotFound.Reason(KindCustomerNotFound).Explain("customer not found")
	ErrInvalidCurrency     = errors.Invalid.Reason(KindInvalidCurrency).Explain("currency must be an ISO 4217 code")
	ErrTimeout             = errors.GatewayTimeout.Reason(KindTimeout).Explain("operation timed out")
	ErrStoreUnavailable    = errors.Unavailable.Reason(KindStoreUnavailable).Explain("account store unavailable")
	ErrConcurrencyConflict = errors.Conflict.Reason(KindConcurrencyConflict).Explain("account was modified concurrently")
)

// Retryable reports whether the caller may retry the same request later.
// Business rejections are final; infrastructure failures are not.
func Retryable(err error) bool {
	return errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrStoreUnavailable) ||
		errors.Is(err, ErrConcurrencyConflict)
}
