package errors

import "fmt"

// New returns an Error with code and message and no cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf is New with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap attaches code and message to err. A nil err yields nil so callers
// can wrap unconditionally.
func Wrap(err error, code Code, message string) *Error {
	if err == nil {
		return nil
	}
	e := New(code, message)
	e.Cause = err
	return e
}

// Wrapf is Wrap with a formatted message.
func Wrapf(err error, code Code, format string, args ...any) *Error {
	if err == nil {
		return nil
	}
	return Wrap(err, code, fmt.Sprintf(format, args...))
}

// Validation creates a VAL_001 error.
func Validation(message string) *Error {
	return New(CodeValidation, message)
}

// Unauthenticated creates an AUTH_001 error.
func Unauthenticated(message string) *Error {
	return New(CodeAuthentication, message)
}

// Internal creates an INT_001 error.
func Internal(message string) *Error {
	return New(CodeInternal, message)
}

// Upstream creates an UPSTREAM_001 error recording the runtime's status.
func Upstream(status int) *Error {
	return Newf(CodeUpstreamStatus, "agent runtime returned status %d", status).
		WithDetail("status", status)
}

// FromError finds the first *Error in err's chain. Anything else becomes
// INT_001 with a generic message; raw failure text never reaches callers.
func FromError(err error) *Error {
	if e, ok := AsError(err); ok || err == nil {
		return e
	}
	return Wrap(err, CodeInternal, "an unexpected error occurred")
}
