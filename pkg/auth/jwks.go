package auth

import (
	"context"
	"crypto/rsa"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
)

// maxJWKSSize caps the JWKS response body read from the provider.
const maxJWKSSize = 1 << 20

// DefaultFetchTimeout bounds a single key set fetch when the caller's
// context has no deadline of its own.
const DefaultFetchTimeout = 10 * time.Second

// HTTPClient abstracts the client used to fetch the JWKS document. The
// standard [http.Client] satisfies this interface.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// KeySetFetcher retrieves the complete, current key set from the identity
// provider.
type KeySetFetcher interface {
	FetchKeySet(ctx context.Context) (*KeySet, error)
}

// JWKSFetcher fetches a JSON Web Key Set over HTTP. It makes exactly one
// request per call and never retries; the endpoint requires no
// authentication.
type JWKSFetcher struct {
	url     string
	client  HTTPClient
	timeout time.Duration
	logger  *slog.Logger
	now     func() time.Time
}

// Compile-time interface compliance check.
var _ KeySetFetcher = (*JWKSFetcher)(nil)

// NewJWKSFetcher returns a fetcher for the given JWKS URL. A nil client
// uses an [http.Client] with [DefaultFetchTimeout]; a non-positive timeout
// uses [DefaultFetchTimeout].
func NewJWKSFetcher(url string, client HTTPClient, timeout time.Duration, logger *slog.Logger) *JWKSFetcher {
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &JWKSFetcher{
		url:     url,
		client:  client,
		timeout: timeout,
		logger:  logger,
		now:     time.Now,
	}
}

// URL returns the JWKS endpoint the fetcher reads from.
func (f *JWKSFetcher) URL() string {
	return f.url
}

// FetchKeySet downloads and parses the JWKS document. Only RSA keys that
// carry a key id and are usable for signatures are kept; other keys are
// skipped and logged at debug level.
func (f *JWKSFetcher) FetchKeySet(ctx context.Context) (*KeySet, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, fmt.Errorf("auth: failed to create JWKS request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("auth: JWKS request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("auth: JWKS endpoint returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxJWKSSize))
	if err != nil {
		return nil, fmt.Errorf("auth: failed to read JWKS response: %w", err)
	}

	set, err := jwk.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("auth: failed to parse JWKS document: %w", err)
	}

	keys := make([]SigningKey, 0, set.Len())
	for i := 0; i < set.Len(); i++ {
		key, ok := set.Key(i)
		if !ok {
			continue
		}
		sk, err := signingKeyFromJWK(key)
		if err != nil {
			f.logger.DebugContext(ctx, "auth: skipping JWKS entry",
				"kid", key.KeyID(),
				"error", err,
			)
			continue
		}
		keys = append(keys, sk)
	}

	return NewKeySet(keys, f.now()), nil
}

// signingKeyFromJWK converts a parsed JWK into a SigningKey.
func signingKeyFromJWK(key jwk.Key) (SigningKey, error) {
	kid := key.KeyID()
	if kid == "" {
		return SigningKey{}, fmt.Errorf("key has no kid")
	}
	if key.KeyType() != jwa.RSA {
		return SigningKey{}, fmt.Errorf("unsupported key type %q", key.KeyType())
	}
	if use := key.KeyUsage(); use != "" && use != string(jwk.ForSignature) {
		return SigningKey{}, fmt.Errorf("key use %q is not sig", use)
	}

	var raw any
	if err := key.Raw(&raw); err != nil {
		return SigningKey{}, fmt.Errorf("failed to export key material: %w", err)
	}
	pub, ok := raw.(*rsa.PublicKey)
	if !ok {
		return SigningKey{}, fmt.Errorf("key material is %T, not an RSA public key", raw)
	}

	alg := key.Algorithm().String()
	if alg == "" {
		alg = jwa.RS256.String()
	}
	return SigningKey{KeyID: kid, Algorithm: alg, Key: pub}, nil
}
