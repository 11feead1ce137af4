package errors

import (
	"net/http"
)

type StatusCode int

// Error implements error
func (status StatusCode) Error() string {
	return http.StatusText(int(status))
}

func Status(code int) *Error {
	return &Error{Kind: http.StatusText(code), status: StatusCode(code)}
}

var (
	Invalid        *Error = Status(http.StatusBadRequest)
	NotFound       *Error = Status(http.StatusNotFound)
	Conflict       *Error = Status(http.StatusConflict)
	Unprocessable  *Error = Status(http.StatusUnprocessableEntity)
	Internal       *Error = Status(http.StatusInternalServerError)
	BadGateway     *Error = Status(http.StatusBadGateway)
	Unavailable    *Error = Status(http.StatusServiceUnavailable)
	GatewayTimeout *Error = Status(http.StatusGatewayTimeout)
)

// StatusOf returns the HTTP status for any error.
func StatusOf(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var e *Error
	if As(err, &e) {
		return e.StatusCode()
	}
	var status StatusCode
	if As(err, &status) {
		return int(status)
	}
	return http.StatusInternalServerError
}
