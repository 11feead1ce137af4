// Package ledger holds the account snapshot type and the pure rules that turn
// a snapshot plus an amount into a new snapshot. Nothing here touches storage
// or locks; callers own the transaction boundary.
package ledger

import (
	"time"

	"github.com/Aidin1998/accountmanager/pkg/money"
)

// Account is an immutable value snapshot of a persisted account. Mutations
// produce new snapshots; the input is never modified.
type Account struct {
	ID         int64        `json:"accountId"`
	Balance    money.Amount `json:"balance"`
	Currency   string       `json:"currency"`
	CustomerID int64        `json:"customerId"`
	CreatedAt  time.Time    `json:"createdAt"`
	UpdatedAt  time.Time    `json:"updatedAt"`
	Version    int64        `json:"-"`
}

// OperationKind names a ledger mutation.
type OperationKind string

const (
	OpDeposit  OperationKind = "deposit"
	OpWithdraw OperationKind = "withdraw"
	OpTransfer OperationKind = "transfer"
)

// Operation describes a requested mutation. It is never persisted.
type Operation struct {
	Kind        OperationKind
	AccountID   int64
	ToAccountID int64
	Amount      money.Amount
}

// AccountIDs returns the accounts the operation touches, in ascending order
// and without duplicates.
func (op Operation) AccountIDs() []int64 {
	if op.Kind != OpTransfer || op.AccountID == op.ToAccountID {
		return []int64{op.AccountID}
	}
	if op.AccountID < op.ToAccountID {
		return []int64{op.AccountID, op.ToAccountID}
	}
	return []int64{op.ToAccountID, op.AccountID}
}

// Customer owns accounts. Only its existence matters to the ledger.
type Customer struct {
	ID        int64     `json:"customerId"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	CreatedAt time.Time `json:"createdAt"`
}
