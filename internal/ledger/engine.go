package ledger

import (
	"github.com/Aidin1998/accountmanager/pkg/money"
)

// validateAmount runs the amount-only checks: positivity, then precision.
func validateAmount(amount money.Amount) error {
	if err := ValidatePositive(amount); err != nil {
		return err
	}
	return ValidatePrecision(amount)
}

// ApplyDeposit returns acc with amount added to its balance.
func ApplyDeposit(acc Account, amount money.Amount) (Account, error) {
	if err := validateAmount(amount); err != nil {
		return Account{}, err
	}
	balance := acc.Balance.Add(amount)
	if err := validateResultingBalance(balance); err != nil {
		return Account{}, err
	}
	acc.Balance = balance
	return acc, nil
}

// ApplyWithdraw returns acc with amount removed from its balance. Positivity
// is checked before sufficiency.
func ApplyWithdraw(acc Account, amount money.Amount) (Account, error) {
	if err := validateAmount(amount); err != nil {
		return Account{}, err
	}
	if err := ValidateSufficientFunds(acc.Balance, amount); err != nil {
		return Account{}, err
	}
	acc.Balance = acc.Balance.Sub(amount)
	return acc, nil
}

// ApplyTransfer moves amount from one account to another. Either both legs
// are returned or neither is. A transfer to the same account is validated
// like any other and leaves the balance unchanged.
func ApplyTransfer(from, to Account, amount money.Amount) (Account, Account, error) {
	if err := validateAmount(amount); err != nil {
		return Account{}, Account{}, err
	}
	if err := ValidateSufficientFunds(from.Balance, amount); err != nil {
		return Account{}, Account{}, err
	}
	if from.ID == to.ID {
		return from, from, nil
	}

	credited := to.Balance.Add(amount)
	if err := validateResultingBalance(credited); err != nil {
		return Account{}, Account{}, err
	}
	from.Balance = from.Balance.Sub(amount)
	to.Balance = credited
	return from, to, nil
}

// Apply dispatches op against the snapshots it names. accounts must contain
// every id returned by op.AccountIDs(). The updated snapshots are returned
// keyed by id.
func Apply(op Operation, accounts map[int64]Account) (map[int64]Account, error) {
	for _, id := range op.AccountIDs() {
		if _, ok := accounts[id]; !ok {
			return nil, ErrAccountNotFound.Explain("account %d not found", id)
		}
	}

	switch op.Kind {
	case OpDeposit:
		acc, err := ApplyDeposit(accounts[op.AccountID], op.Amount)
		if err != nil {
			return nil, err
		}
		return map[int64]Account{acc.ID: acc}, nil
	case OpWithdraw:
		acc, err := ApplyWithdraw(accounts[op.AccountID], op.Amount)
		if err != nil {
			return nil, err
		}
		return map[int64]Account{acc.ID: acc}, nil
	case OpTransfer:
		from, to, err := ApplyTransfer(accounts[op.AccountID], accounts[op.ToAccountID], op.Amount)
		if err != nil {
			return nil, err
		}
		return map[int64]Account{from.ID: from, to.ID: to}, nil
	default:
		return nil, ErrInvalidAmount.Reason("UnknownOperation").Explain("unknown operation %q", op.Kind)
	}
}
