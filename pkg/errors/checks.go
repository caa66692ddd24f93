package errors

import (
	"errors"
)

// AsError finds the first *Error in err's chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// GetCode returns the code of the first *Error in err's chain, or "" when
// there is none.
func GetCode(err error) Code {
	if e, ok := AsError(err); ok {
		return e.Code
	}
	return ""
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code Code) bool {
	return GetCode(err) == code
}

func hasCategory(err error, category string) bool {
	e, ok := AsError(err)
	return ok && e.Code.Category() == category
}

// IsValidation reports whether err is a VAL_xxx error.
func IsValidation(err error) bool {
	return hasCategory(err, "VAL")
}

// IsAuthentication reports whether err is an AUTH_xxx error, including
// every token validation failure kind.
func IsAuthentication(err error) bool {
	return hasCategory(err, "AUTH")
}

// IsNotFound reports whether err is an NF_xxx error.
func IsNotFound(err error) bool {
	return hasCategory(err, "NF")
}

// IsUpstream reports whether err is an UPSTREAM_xxx error.
func IsUpstream(err error) bool {
	return hasCategory(err, "UPSTREAM")
}

// IsInternal reports whether err is an INT_xxx error.
func IsInternal(err error) bool {
	return hasCategory(err, "INT")
}

// IsUnavailable reports whether err is an UNAVAIL_xxx error.
func IsUnavailable(err error) bool {
	return hasCategory(err, "UNAVAIL")
}

// IsTimeout reports whether err is a TIMEOUT_xxx error or an upstream
// timeout.
func IsTimeout(err error) bool {
	return hasCategory(err, "TIMEOUT") || HasCode(err, CodeUpstreamTimeout)
}

// IsClientError reports whether err describes a problem with the caller's
// request (4xx).
func IsClientError(err error) bool {
	e, ok := AsError(err)
	if !ok {
		return false
	}
	switch e.Code.Category() {
	case "VAL", "AUTH", "NF":
		return true
	default:
		return false
	}
}
