package server

import (
	"net/http"
	"time"

	"github.com/Aidin1998/accountmanager/common/errors"
	"github.com/Aidin1998/accountmanager/internal/ledger"
	"github.com/Aidin1998/accountmanager/pkg/money"
)

type createCustomerRequest struct {
	FirstName string `json:"firstName" binding:"required,max=100"`
	LastName  string `json:"lastName" binding:"required,max=100"`
}

type createAccountRequest struct {
	CustomerID     int64         `json:"customerId" binding:"required"`
	Currency       string        `json:"currency" binding:"required"`
	InitialDeposit *money.Amount `json:"initialDeposit"`
}

// amountRequest is the body of deposit, withdraw and transfer.
type amountRequest struct {
	Amount *money.Amount `json:"amount" binding:"required"`
}

// accountResponse is the balance view of an account.
type accountResponse struct {
	AccountID int64        `json:"accountId"`
	Balance   money.Amount `json:"balance"`
	Currency  string       `json:"currency"`
	Timestamp time.Time    `json:"timestamp"`
}

type transferResponse struct {
	From accountResponse `json:"from"`
	To   accountResponse `json:"to"`
}

func newAccountResponse(acc ledger.Account) accountResponse {
	return accountResponse{
		AccountID: acc.ID,
		Balance:   acc.Balance,
		Currency:  acc.Currency,
		Timestamp: time.Now().UTC(),
	}
}

func notFoundProblem(path string) *errors.ProblemDetails {
	return errors.NotFound.Explain("no route for %s", path).ToProblemDetails(path)
}

func methodNotAllowedProblem(path string) *errors.ProblemDetails {
	return errors.Status(http.StatusMethodNotAllowed).Explain("method not allowed").ToProblemDetails(path)
}
