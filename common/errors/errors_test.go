package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReasonKeepsStatus(t *testing.T) {
	err := Unprocessable.Reason("InsufficientFunds").Explain("balance %s is lower than %s", "10", "20")

	assert.Equal(t, "InsufficientFunds", err.Kind)
	assert.Equal(t, "balance 10 is lower than 20", err.Message)
	assert.Equal(t, http.StatusUnprocessableEntity, err.StatusCode())
	assert.Equal(t, "[InsufficientFunds] balance 10 is lower than 20", err.Error())
}

func TestWrapDoesNotMutateSentinel(t *testing.T) {
	sentinel := NotFound.Reason("AccountNotFound")
	cause := fmt.Errorf("record not found")

	wrapped := sentinel.Wrap(cause)

	assert.Nil(t, sentinel.Unwrap())
	assert.Equal(t, cause, wrapped.Unwrap())
	assert.Equal(t, http.StatusNotFound, wrapped.StatusCode())
}

func TestIsMatchesByKind(t *testing.T) {
	sentinel := Invalid.Reason("InvalidAmount")
	err := fmt.Errorf("deposit: %w", sentinel.Explain("amount must be greater than zero"))

	assert.True(t, Is(err, sentinel))
	assert.False(t, Is(err, Invalid.Reason("Other")))
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, http.StatusOK, StatusOf(nil))
	assert.Equal(t, http.StatusGatewayTimeout, StatusOf(fmt.Errorf("x: %w", GatewayTimeout)))
	assert.Equal(t, http.StatusConflict, StatusOf(StatusCode(http.StatusConflict)))
	assert.Equal(t, http.StatusInternalServerError, StatusOf(fmt.Errorf("boom")))
	assert.Equal(t, http.StatusBadGateway, StatusOf(Wrap(StatusCode(http.StatusBadGateway))))
}

func TestWithFieldCopies(t *testing.T) {
	base := Invalid.Explain("validation error")
	first := base.WithField("required", "amount", "")
	second := first.WithField("gt", "amount", "")

	assert.Empty(t, base.Fields)
	assert.Len(t, first.Fields, 1)
	assert.Len(t, second.Fields, 2)
}

func TestToProblemDetails(t *testing.T) {
	err := Unprocessable.Reason("InsufficientFunds").Explain("not enough money")

	pd := ToProblemDetails(fmt.Errorf("withdraw: %w", err), "/account/1/withdraw")
	require.NotNil(t, pd)
	assert.Equal(t, http.StatusUnprocessableEntity, pd.Status)
	assert.Equal(t, typeBaseURI+"insufficient-funds", pd.Type)
	assert.Equal(t, "InsufficientFunds", pd.Kind)
	assert.Equal(t, "not enough money", pd.Detail)
	assert.Equal(t, "/account/1/withdraw", pd.Instance)
}

func TestToProblemDetailsHidesInternalDetail(t *testing.T) {
	pd := ToProblemDetails(fmt.Errorf("dial tcp: connection refused"), "/account/1")
	assert.Equal(t, http.StatusInternalServerError, pd.Status)
	assert.Equal(t, TypeInternalError, pd.Type)
	assert.NotContains(t, pd.Detail, "connection refused")

	pd = ToProblemDetails(Invalid.Explain("bad body").WithField("required", "amount", "amount is required"), "/x")
	assert.Equal(t, TypeValidationError, pd.Type)
	require.Len(t, pd.Errors, 1)
	assert.Equal(t, "amount", pd.Errors[0].Field)
}
