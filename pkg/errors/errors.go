// Package errors provides the structured error type shared by every agentgate
// package. Each error carries a machine-readable [Code] whose category decides
// both the HTTP status and the caller-visible label written by the gateway.
//
// # Categories
//
//   - VAL: request input failed validation (400, "BadRequest")
//   - AUTH: credentials missing or rejected (401, "Unauthenticated")
//   - NF: a requested resource does not exist (404, "NotFound")
//   - UPSTREAM: the agent runtime failed or timed out (500, "UpstreamError")
//   - INT, UNAVAIL, TIMEOUT: failures inside the gateway or its data stores
//     (500/503/504, "InternalError")
//
// Token validation failures each have their own AUTH code so logs and
// metrics can tell a forged key id from an expired token, while callers only
// ever see the "Unauthenticated" label.
//
// # Usage
//
//	err := errors.New(errors.CodeValidationRequired, "prompt is required")
//
//	err = errors.Wrap(cause, errors.CodeUpstreamTransport, "runtime: request failed")
//
//	if errors.IsAuthentication(err) {
//	    // 401
//	}
package errors
