package errors

import (
	"fmt"
	"io"
	"maps"
	"net/http"
)

// Error is a structured error with a code, a message, an optional cause and
// optional details. Messages may reach callers and must not contain tokens,
// key material or internal addresses; put those in Cause or Details, which
// are only logged.
type Error struct {
	Code    Code
	Message string
	Cause   error

	// Details is logged, never rendered: the downstream status, the
	// offending key id and the like.
	Details map[string]any
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := string(e.Code) + ": " + e.Message
	if e.Cause == nil {
		return msg
	}
	return msg + ": " + e.Cause.Error()
}

// Unwrap exposes Cause to errors.Is and errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// statusByCategory maps code categories to HTTP statuses. Upstream
// failures stay 500: callers only distinguish 200, 400, 401 and 500.
var statusByCategory = map[string]int{
	"VAL":     http.StatusBadRequest,
	"AUTH":    http.StatusUnauthorized,
	"NF":      http.StatusNotFound,
	"UNAVAIL": http.StatusServiceUnavailable,
	"TIMEOUT": http.StatusGatewayTimeout,
}

// HTTPStatus returns the HTTP status for the error's category, 500 when
// the category has no mapping.
func (e *Error) HTTPStatus() int {
	if status, ok := statusByCategory[e.Code.Category()]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// Label returns the caller-visible label for the error's code.
func (e *Error) Label() string {
	return e.Code.Label()
}

// WithDetail returns a copy of e with Details[key] = value, leaving e
// untouched.
func (e *Error) WithDetail(key string, value any) *Error {
	out := *e
	out.Details = maps.Clone(e.Details)
	if out.Details == nil {
		out.Details = make(map[string]any, 1)
	}
	out.Details[key] = value
	return &out
}

// Format implements fmt.Formatter. %+v adds details and the cause chain.
func (e *Error) Format(s fmt.State, verb rune) {
	if verb == 'v' && s.Flag('+') {
		fmt.Fprintf(s, "Error{Code: %q, Message: %q", e.Code, e.Message)
		if len(e.Details) > 0 {
			fmt.Fprintf(s, ", Details: %v", e.Details)
		}
		if e.Cause != nil {
			fmt.Fprintf(s, ", Cause: %+v", e.Cause)
		}
		_, _ = io.WriteString(s, "}")
		return
	}
	switch verb {
	case 'v', 's':
		_, _ = io.WriteString(s, e.Error())
	case 'q':
		fmt.Fprintf(s, "%q", e.Error())
	}
}
