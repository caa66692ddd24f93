// Package fixtures provides shared test data for agentgate packages: the
// identity of a test user pool, and a token issuer that signs RS256 access
// tokens and serves its JWKS over httptest.
package fixtures

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/stretchr/testify/require"
)

// Test user pool identity.
const (
	Region     = "us-east-1"
	UserPoolID = "us-east-1_Fixture01"
	Issuer     = "https://cognito-idp.us-east-1.amazonaws.com/us-east-1_Fixture01"
	ClientID   = "fixture-app-client"
)

// Standard caller values.
const (
	Subject  = "5f1c2a9e-7d4b-4c8e-9a61-2b3c4d5e6f70"
	Username = "alice"

	// SessionID is a caller-supplied session id long enough to be accepted.
	SessionID = "session-0123456789abcdef0123456789abcdef"

	// RuntimeARN is the agent runtime the gateway forwards to in tests.
	RuntimeARN = "arn:aws:bedrock-agentcore:us-east-1:123456789012:runtime/fixture_agent-AbCdEf1234"

	MemoryID = "fixture_memory-XyZ987"
)

// TokenIssuer signs tokens with an RSA key and serves the public half as
// a JWKS document. Keys can be rotated while the server runs.
type TokenIssuer struct {
	Server *httptest.Server

	key   atomic.Pointer[rsa.PrivateKey]
	kid   atomic.Pointer[string]
	hits  atomic.Int64
	doc   atomic.Pointer[[]byte]
	fails atomic.Bool
}

// NewTokenIssuer starts a JWKS server for a fresh key with id kid. The
// server is closed when the test ends.
func NewTokenIssuer(t testing.TB, kid string) *TokenIssuer {
	t.Helper()
	ti := &TokenIssuer{}
	ti.Rotate(t, kid)
	ti.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		ti.hits.Add(1)
		if ti.fails.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(*ti.doc.Load())
	}))
	t.Cleanup(ti.Server.Close)
	return ti
}

// Rotate replaces the signing key. Only the new key is published.
func (ti *TokenIssuer) Rotate(t testing.TB, kid string) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err, "failed to generate RSA key")

	jwkKey, err := jwk.FromRaw(&key.PublicKey)
	require.NoError(t, err)
	require.NoError(t, jwkKey.Set(jwk.KeyIDKey, kid))
	require.NoError(t, jwkKey.Set(jwk.AlgorithmKey, jwa.RS256))
	require.NoError(t, jwkKey.Set(jwk.KeyUsageKey, "sig"))

	set := jwk.NewSet()
	require.NoError(t, set.AddKey(jwkKey))
	doc, err := json.Marshal(set)
	require.NoError(t, err)

	ti.key.Store(key)
	ti.kid.Store(&kid)
	ti.doc.Store(&doc)
}

// JWKSURL returns the URL of the served key set.
func (ti *TokenIssuer) JWKSURL() string {
	return ti.Server.URL
}

// Fetches returns how many times the key set was requested.
func (ti *TokenIssuer) Fetches() int64 {
	return ti.hits.Load()
}

// SetFailing makes the JWKS endpoint answer 503 while failing is true.
func (ti *TokenIssuer) SetFailing(failing bool) {
	ti.fails.Store(failing)
}

// Sign returns an RS256 token over claims, signed with the current key.
func (ti *TokenIssuer) Sign(t testing.TB, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = *ti.kid.Load()
	s, err := token.SignedString(ti.key.Load())
	require.NoError(t, err, "failed to sign token")
	return s
}

// AccessToken returns a valid access token for [Subject].
func (ti *TokenIssuer) AccessToken(t testing.TB) string {
	t.Helper()
	return ti.Sign(t, AccessClaims(Subject))
}

// AccessClaims returns a valid access-token claim set for sub, expiring in
// one hour.
func AccessClaims(sub string) jwt.MapClaims {
	now := time.Now()
	return jwt.MapClaims{
		"sub":       sub,
		"iss":       Issuer,
		"token_use": "access",
		"client_id": ClientID,
		"username":  Username,
		"scope":     "agent/invoke",
		"iat":       now.Unix(),
		"exp":       now.Add(time.Hour).Unix(),
	}
}
