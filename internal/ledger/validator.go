package ledger

import (
	"github.com/Aidin1998/accountmanager/pkg/money"
)

// ValidatePositive rejects zero and negative amounts.
func ValidatePositive(amount money.Amount) error {
	if amount.Sign() <= 0 {
		return ErrInvalidAmount.Explain("amount must be greater than zero, got %s", amount)
	}
	return nil
}

// Precision limits for amounts and balances. Anything finer or larger is
// rejected instead of being rounded by a store.
const (
	MaxScale         = 18
	MaxIntegerDigits = 30
)

// ValidatePrecision rejects amounts with more than MaxScale fractional
// digits or more than MaxIntegerDigits integer digits.
func ValidatePrecision(amount money.Amount) error {
	if amount.Scale() > MaxScale {
		return ErrInvalidAmount.Explain("amount %s has more than %d decimal places", amount, MaxScale)
	}
	if amount.IntegerDigits() > MaxIntegerDigits {
		return ErrInvalidAmount.Explain("amount %s exceeds %d integer digits", amount, MaxIntegerDigits)
	}
	return nil
}

// validateResultingBalance rejects a credit that would push the balance past
// MaxIntegerDigits.
func validateResultingBalance(balance money.Amount) error {
	if balance.IntegerDigits() > MaxIntegerDigits {
		return ErrInvalidAmount.Explain("resulting balance %s exceeds %d integer digits", balance, MaxIntegerDigits)
	}
	return nil
}

// ValidateSufficientFunds rejects a debit larger than the balance. A debit of
// exactly the balance is allowed.
func ValidateSufficientFunds(balance, amount money.Amount) error {
	if balance.LessThan(amount) {
		return ErrInsufficientFunds.Explain("insufficient funds, cannot withdraw %s, balance %s", amount, balance)
	}
	return nil
}

// ValidateNonNegative is used for opening balances, where zero is allowed.
func ValidateNonNegative(amount money.Amount) error {
	if amount.IsNegative() {
		return ErrInvalidAmount.Explain("initial deposit must not be negative, got %s", amount)
	}
	return ValidatePrecision(amount)
}
