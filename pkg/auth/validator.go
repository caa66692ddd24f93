package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	sserr "github.com/StricklySoft/agentgate/pkg/errors"
)

// ---------------------------------------------------------------------------
// ValidatorConfig
// ---------------------------------------------------------------------------

// DefaultTokenUse is the token_use claim value required by default. Cognito
// stamps "access" on access tokens and "id" on ID tokens.
const DefaultTokenUse = "access"

// maxTokenSize is the largest token accepted, in bytes.
const maxTokenSize = 8192

// ValidatorConfig configures a [TokenValidator].
//
// The expected issuer is derived from Region and UserPoolID as
// https://cognito-idp.{region}.amazonaws.com/{userPoolId} unless IssuerURL
// is set. The JWKS endpoint defaults to {issuer}/.well-known/jwks.json
// unless JWKSURL is set.
type ValidatorConfig struct {
	// Region is the AWS region hosting the user pool (e.g., "eu-west-1").
	Region string `json:"region" yaml:"region" env:"REGION"`

	// UserPoolID is the Cognito user pool id (e.g., "eu-west-1_AbCdEf123").
	UserPoolID string `json:"user_pool_id" yaml:"user_pool_id" env:"USER_POOL_ID"`

	// IssuerURL overrides the derived issuer. Useful for non-Cognito
	// issuers and tests.
	IssuerURL string `json:"issuer_url,omitempty" yaml:"issuer_url,omitempty" env:"ISSUER_URL"`

	// JWKSURL overrides the derived JWKS endpoint.
	JWKSURL string `json:"jwks_url,omitempty" yaml:"jwks_url,omitempty" env:"JWKS_URL"`

	// TokenUse is the required token_use claim. Defaults to "access".
	TokenUse string `json:"token_use" yaml:"token_use" env:"TOKEN_USE" envDefault:"access"`

	// ClockSkew tolerates issuer clock drift when checking exp. Defaults
	// to zero: a token is expired the moment exp passes.
	ClockSkew time.Duration `json:"clock_skew" yaml:"clock_skew" env:"CLOCK_SKEW" envDefault:"0s"`

	// FetchTimeout bounds a single JWKS fetch. Defaults to 10 seconds.
	FetchTimeout time.Duration `json:"fetch_timeout" yaml:"fetch_timeout" env:"JWKS_FETCH_TIMEOUT" envDefault:"10s"`
}

// Validate checks the configuration and fills in defaults for zero values.
func (c *ValidatorConfig) Validate() error {
	if c.IssuerURL == "" && (c.Region == "" || c.UserPoolID == "") {
		return sserr.New(sserr.CodeValidationRequired,
			"auth: either issuer_url or both region and user_pool_id must be set")
	}
	if c.TokenUse == "" {
		c.TokenUse = DefaultTokenUse
	}
	if c.ClockSkew < 0 {
		return sserr.New(sserr.CodeValidationRange, "auth: clock skew must be non-negative")
	}
	if c.FetchTimeout < 0 {
		return sserr.New(sserr.CodeValidationRange, "auth: fetch timeout must be non-negative")
	}
	if c.FetchTimeout == 0 {
		c.FetchTimeout = DefaultFetchTimeout
	}
	return nil
}

// Issuer returns the exact iss value tokens must carry.
func (c *ValidatorConfig) Issuer() string {
	if c.IssuerURL != "" {
		return c.IssuerURL
	}
	return fmt.Sprintf("https://cognito-idp.%s.amazonaws.com/%s", c.Region, c.UserPoolID)
}

// KeySetURL returns the JWKS endpoint for the issuer.
func (c *ValidatorConfig) KeySetURL() string {
	if c.JWKSURL != "" {
		return c.JWKSURL
	}
	return strings.TrimRight(c.Issuer(), "/") + "/.well-known/jwks.json"
}

// ---------------------------------------------------------------------------
// FailureKind
// ---------------------------------------------------------------------------

// FailureKind names why a token was rejected. The set is closed; each kind
// corresponds to exactly one error code.
type FailureKind string

const (
	// FailureMalformedToken: not a three-part signed JWT with decodable
	// header and claims, or missing its subject.
	FailureMalformedToken FailureKind = "MalformedToken"

	// FailureInvalidSignature: the signature does not verify, or the token
	// is not RS256.
	FailureInvalidSignature FailureKind = "InvalidSignature"

	// FailureUnknownKey: the key id is not published by the provider, or
	// the key set could not be refreshed.
	FailureUnknownKey FailureKind = "UnknownKey"

	// FailureWrongIssuer: iss differs from the configured issuer.
	FailureWrongIssuer FailureKind = "WrongIssuer"

	// FailureExpired: exp is absent or in the past.
	FailureExpired FailureKind = "Expired"

	// FailureWrongTokenUse: token_use differs from the expected value.
	FailureWrongTokenUse FailureKind = "WrongTokenUse"
)

var kindCodes = map[FailureKind]sserr.Code{
	FailureMalformedToken:   sserr.CodeTokenMalformed,
	FailureInvalidSignature: sserr.CodeTokenSignature,
	FailureUnknownKey:       sserr.CodeTokenUnknownKey,
	FailureWrongIssuer:      sserr.CodeTokenIssuer,
	FailureExpired:          sserr.CodeTokenExpired,
	FailureWrongTokenUse:    sserr.CodeTokenUse,
}

// Code returns the error code that carries this kind.
func (k FailureKind) Code() sserr.Code {
	if c, ok := kindCodes[k]; ok {
		return c
	}
	return sserr.CodeAuthentication
}

// String returns the kind name.
func (k FailureKind) String() string {
	return string(k)
}

// KindOf reports the failure kind carried by err, if err came from
// [TokenValidator.Validate].
func KindOf(err error) (FailureKind, bool) {
	code := sserr.GetCode(err)
	for kind, c := range kindCodes {
		if c == code {
			return kind, true
		}
	}
	return "", false
}

func fail(kind FailureKind, message string, cause error) *sserr.Error {
	if cause != nil {
		return sserr.Wrap(cause, kind.Code(), message)
	}
	return sserr.New(kind.Code(), message)
}

// ---------------------------------------------------------------------------
// ParsedToken
// ---------------------------------------------------------------------------

// ParsedToken is a structurally decoded, not yet verified token. None of
// its claims may be trusted until the signature has been checked.
type ParsedToken struct {
	KeyID        string
	Algorithm    string
	Claims       jwt.MapClaims
	SigningInput string
	Signature    []byte
}

// ParseToken decodes the three segments of a compact JWS without verifying
// it.
func ParseToken(raw string) (*ParsedToken, error) {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	token, parts, err := parser.ParseUnverified(raw, claims)
	// An unregistered alg is still a well-formed token; the algorithm is
	// rejected later, as a signature failure.
	if err != nil && !(errors.Is(err, jwt.ErrTokenUnverifiable) && token != nil && len(parts) == 3) {
		return nil, err
	}
	sig, err := parser.DecodeSegment(parts[2])
	if err != nil {
		return nil, fmt.Errorf("%w: could not decode signature: %v", jwt.ErrTokenMalformed, err)
	}
	if len(sig) == 0 {
		return nil, fmt.Errorf("%w: empty signature", jwt.ErrTokenMalformed)
	}
	kid, _ := token.Header["kid"].(string)
	alg, _ := token.Header["alg"].(string)
	return &ParsedToken{
		KeyID:        kid,
		Algorithm:    alg,
		Claims:       claims,
		SigningInput: parts[0] + "." + parts[1],
		Signature:    sig,
	}, nil
}

// ---------------------------------------------------------------------------
// TokenValidator
// ---------------------------------------------------------------------------

// TokenValidator validates RS256 bearer tokens against one issuer.
//
// TokenValidator holds no per-request state and is safe for concurrent use
// by multiple goroutines; the only shared mutable state is the resolver's
// key set cache.
type TokenValidator struct {
	issuer    string
	tokenUse  string
	clockSkew time.Duration
	resolver  Resolver
	tracer    trace.Tracer
	logger    *slog.Logger
	now       func() time.Time
}

// Option customizes a [TokenValidator].
type Option func(*validatorOptions)

type validatorOptions struct {
	httpClient HTTPClient
	resolver   Resolver
	logger     *slog.Logger
	now        func() time.Time
	onRefresh  RefreshHook
}

// WithHTTPClient sets the client used to fetch the JWKS document.
func WithHTTPClient(c HTTPClient) Option {
	return func(o *validatorOptions) { o.httpClient = c }
}

// WithResolver replaces the default JWKS-backed resolver.
func WithResolver(r Resolver) Option {
	return func(o *validatorOptions) { o.resolver = r }
}

// WithLogger sets the logger. Defaults to [slog.Default].
func WithLogger(l *slog.Logger) Option {
	return func(o *validatorOptions) { o.logger = l }
}

// WithClock sets the time source used for the expiry check.
func WithClock(now func() time.Time) Option {
	return func(o *validatorOptions) { o.now = now }
}

// WithRefreshHook observes key set refreshes of the default resolver.
func WithRefreshHook(h RefreshHook) Option {
	return func(o *validatorOptions) { o.onRefresh = h }
}

// NewTokenValidator creates a validator for cfg. Unless [WithResolver] is
// given, it builds a [KeyResolver] over a fresh [KeySetCache] that fetches
// from cfg.KeySetURL().
func NewTokenValidator(cfg ValidatorConfig, opts ...Option) (*TokenValidator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := validatorOptions{
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}

	resolver := o.resolver
	if resolver == nil {
		client := o.httpClient
		if client == nil {
			client = &http.Client{Timeout: cfg.FetchTimeout}
		}
		kr := NewKeyResolver(NewKeySetCache(),
			NewJWKSFetcher(cfg.KeySetURL(), client, cfg.FetchTimeout, o.logger), o.logger)
		kr.OnRefresh(o.onRefresh)
		resolver = kr
	}

	return &TokenValidator{
		issuer:    cfg.Issuer(),
		tokenUse:  cfg.TokenUse,
		clockSkew: cfg.ClockSkew,
		resolver:  resolver,
		tracer:    otel.Tracer(tracerName),
		logger:    o.logger,
		now:       o.now,
	}, nil
}

// Resolver returns the resolver the validator uses.
func (v *TokenValidator) Resolver() Resolver {
	return v.resolver
}

// Issuer returns the issuer tokens must carry.
func (v *TokenValidator) Issuer() string {
	return v.issuer
}

// Validate checks rawToken (optionally prefixed with "Bearer ") and returns
// the principal it proves. Checks run in order and stop at the first
// failure:
//
//  1. structure → [FailureMalformedToken]
//  2. key id resolution → [FailureUnknownKey]
//  3. RS256 signature → [FailureInvalidSignature]
//  4. issuer → [FailureWrongIssuer]
//  5. expiry → [FailureExpired]
//  6. token use → [FailureWrongTokenUse]
//
// No claim is read before the signature has been verified. The returned
// error is an *errors.Error whose code identifies the kind; see [KindOf].
func (v *TokenValidator) Validate(ctx context.Context, rawToken string) (*Principal, error) {
	ctx, span := v.tracer.Start(ctx, "auth.Validate")
	defer span.End()

	p, err := v.validate(ctx, rawToken)
	if err != nil {
		kind, _ := KindOf(err)
		span.SetAttributes(attribute.String("auth.failure_kind", kind.String()))
		span.RecordError(err)
		span.SetStatus(codes.Error, string(kind))
		return nil, err
	}
	span.SetAttributes(attribute.String("auth.subject", p.Subject))
	return p, nil
}

func (v *TokenValidator) validate(ctx context.Context, rawToken string) (*Principal, error) {
	raw := StripBearer(rawToken)
	if raw == "" {
		return nil, fail(FailureMalformedToken, "auth: token is empty", nil)
	}
	if len(raw) > maxTokenSize {
		return nil, fail(FailureMalformedToken, "auth: token exceeds maximum size", nil)
	}

	tok, err := ParseToken(raw)
	if err != nil {
		return nil, fail(FailureMalformedToken, "auth: token is malformed", err)
	}

	if tok.KeyID == "" {
		return nil, fail(FailureUnknownKey, "auth: token header has no key id", nil)
	}
	key, err := v.resolver.Resolve(ctx, tok.KeyID)
	if err != nil {
		v.logger.WarnContext(ctx, "auth: signing key unavailable",
			"kid", tok.KeyID,
			"error", err,
		)
		return nil, fail(FailureUnknownKey, "auth: signing key not found", err)
	}

	// Only RS256 is accepted. This rules out alg "none" and HMAC confusion
	// with the RSA public key.
	if tok.Algorithm != jwt.SigningMethodRS256.Alg() {
		return nil, fail(FailureInvalidSignature,
			fmt.Sprintf("auth: signing algorithm %q is not permitted", tok.Algorithm), nil)
	}
	if err := jwt.SigningMethodRS256.Verify(tok.SigningInput, tok.Signature, key.Key); err != nil {
		return nil, fail(FailureInvalidSignature, "auth: token signature is invalid", err)
	}

	// Claims are trustworthy from here on.
	iss, _ := tok.Claims["iss"].(string)
	if iss != v.issuer {
		return nil, fail(FailureWrongIssuer, "auth: token issuer is invalid", nil)
	}

	exp, err := tok.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, fail(FailureExpired, "auth: token has no valid expiry", err)
	}
	if !v.now().Before(exp.Time.Add(v.clockSkew)) {
		return nil, fail(FailureExpired, "auth: token has expired", nil)
	}

	use, _ := tok.Claims["token_use"].(string)
	if use != v.tokenUse {
		return nil, fail(FailureWrongTokenUse, "auth: token use claim is invalid", nil)
	}

	sub, _ := tok.Claims["sub"].(string)
	if sub == "" {
		return nil, fail(FailureMalformedToken, "auth: token has no subject", nil)
	}

	return newPrincipal(sub, map[string]any(tok.Claims)), nil
}

// IsValidationFailure reports whether err is a token validation failure as
// opposed to some other error.
func IsValidationFailure(err error) bool {
	_, ok := KindOf(err)
	return ok
}
