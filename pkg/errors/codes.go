package errors

// Code is a machine-readable error code of the form CATEGORY_NNN. Codes are
// stable once assigned; the category prefix drives [Error.HTTPStatus] and
// [Error.Label].
type Code string

// Validation errors (VAL_xxx), HTTP 400.
const (
	// CodeValidation indicates a general validation failure.
	CodeValidation Code = "VAL_001"

	// CodeValidationRequired indicates a required field is missing or blank.
	CodeValidationRequired Code = "VAL_002"

	// CodeValidationFormat indicates a field or body has an invalid format.
	CodeValidationFormat Code = "VAL_003"

	// CodeValidationRange indicates a value is outside its accepted range.
	CodeValidationRange Code = "VAL_004"
)

// Authentication errors (AUTH_xxx), HTTP 401. AUTH_002 through AUTH_007 are
// the token validation failure kinds.
const (
	// CodeAuthentication indicates credentials are missing or were rejected
	// for a reason not covered by a more specific code.
	CodeAuthentication Code = "AUTH_001"

	// CodeTokenMalformed indicates the token is not a structurally valid
	// signed JWT.
	CodeTokenMalformed Code = "AUTH_002"

	// CodeTokenSignature indicates the signature did not verify against the
	// published key, or the token used an algorithm other than RS256.
	CodeTokenSignature Code = "AUTH_003"

	// CodeTokenUnknownKey indicates the token's key id is absent from the
	// identity provider's key set even after a refresh.
	CodeTokenUnknownKey Code = "AUTH_004"

	// CodeTokenIssuer indicates the iss claim does not match the configured
	// user pool.
	CodeTokenIssuer Code = "AUTH_005"

	// CodeTokenExpired indicates the exp claim is missing or in the past.
	CodeTokenExpired Code = "AUTH_006"

	// CodeTokenUse indicates the token_use claim is not the expected value.
	CodeTokenUse Code = "AUTH_007"
)

// Not found errors (NF_xxx), HTTP 404.
const (
	// CodeNotFound indicates a general not found error.
	CodeNotFound Code = "NF_001"

	// CodeNotFoundKey indicates a signing key id is not in the key set.
	CodeNotFoundKey Code = "NF_002"

	// CodeNotFoundStrategy indicates a memory strategy is not registered.
	CodeNotFoundStrategy Code = "NF_003"
)

// Upstream errors (UPSTREAM_xxx). These describe failures of the agent
// runtime and are reported to callers as HTTP 500.
const (
	// CodeUpstreamStatus indicates the runtime answered with a non-2xx status.
	CodeUpstreamStatus Code = "UPSTREAM_001"

	// CodeUpstreamTransport indicates the request never produced a response.
	CodeUpstreamTransport Code = "UPSTREAM_002"

	// CodeUpstreamTimeout indicates the runtime did not answer in time.
	CodeUpstreamTimeout Code = "UPSTREAM_003"
)

// Internal errors (INT_xxx), HTTP 500.
const (
	// CodeInternal indicates a general internal error.
	CodeInternal Code = "INT_001"

	// CodeInternalStore indicates a data store (Redis, Qdrant, Postgres)
	// operation failed.
	CodeInternalStore Code = "INT_002"

	// CodeInternalConfiguration indicates a configuration error.
	CodeInternalConfiguration Code = "INT_003"
)

// Unavailable errors (UNAVAIL_xxx), HTTP 503.
const (
	// CodeUnavailable indicates the service is not ready to serve.
	CodeUnavailable Code = "UNAVAIL_001"

	// CodeUnavailableDependency indicates a dependency could not be reached.
	CodeUnavailableDependency Code = "UNAVAIL_002"
)

// Timeout errors (TIMEOUT_xxx), HTTP 504.
const (
	// CodeTimeout indicates a general timeout.
	CodeTimeout Code = "TIMEOUT_001"

	// CodeTimeoutStore indicates a data store operation timed out.
	CodeTimeoutStore Code = "TIMEOUT_002"
)

// String returns the string representation of the error code.
func (c Code) String() string {
	return string(c)
}

// Category returns the prefix before the first underscore ("AUTH" for
// "AUTH_004"). A code without an underscore is its own category.
func (c Code) Category() string {
	s := string(c)
	for i, r := range s {
		if r == '_' {
			return s[:i]
		}
	}
	return s
}

// Caller-visible labels written into the "error" field of gateway responses.
const (
	LabelBadRequest      = "BadRequest"
	LabelUnauthenticated = "Unauthenticated"
	LabelNotFound        = "NotFound"
	LabelUpstreamError   = "UpstreamError"
	LabelInternalError   = "InternalError"
)

// Label maps the code's category to the label exposed to callers. The
// specific code never leaves the process.
func (c Code) Label() string {
	switch c.Category() {
	case "VAL":
		return LabelBadRequest
	case "AUTH":
		return LabelUnauthenticated
	case "NF":
		return LabelNotFound
	case "UPSTREAM":
		return LabelUpstreamError
	default:
		return LabelInternalError
	}
}
