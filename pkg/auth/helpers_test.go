package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

const (
	testRegion     = "eu-west-1"
	testUserPoolID = "eu-west-1_TestPool1"
	testIssuer     = "https://cognito-idp.eu-west-1.amazonaws.com/eu-west-1_TestPool1"
)

// testGenerateRSAKey generates a 2048-bit RSA key for testing.
func testGenerateRSAKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err, "failed to generate RSA key")
	return key
}

// testSignToken creates an RS256-signed JWT with the given claims and kid.
func testSignToken(t *testing.T, key *rsa.PrivateKey, kid string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	if kid != "" {
		token.Header["kid"] = kid
	}
	s, err := token.SignedString(key)
	require.NoError(t, err, "failed to sign token")
	return s
}

// testAccessClaims returns a valid access-token claim set for sub.
func testAccessClaims(sub string) jwt.MapClaims {
	return jwt.MapClaims{
		"sub":       sub,
		"iss":       testIssuer,
		"token_use": "access",
		"exp":       time.Now().Add(time.Hour).Unix(),
		"iat":       time.Now().Unix(),
		"client_id": "app-client-1",
		"username":  "alice",
		"scope":     "agent/invoke openid",
	}
}

// testJWKSDocument renders RSA public keys as a JWKS document.
func testJWKSDocument(t *testing.T, keys map[string]*rsa.PublicKey) []byte {
	t.Helper()

	type jwkEntry struct {
		Kty string `json:"kty"`
		Kid string `json:"kid"`
		Alg string `json:"alg,omitempty"`
		Use string `json:"use,omitempty"`
		N   string `json:"n"`
		E   string `json:"e"`
	}

	entries := make([]jwkEntry, 0, len(keys))
	for kid, pub := range keys {
		entries = append(entries, jwkEntry{
			Kty: "RSA",
			Kid: kid,
			Alg: "RS256",
			Use: "sig",
			N:   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
			E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
		})
	}
	doc, err := json.Marshal(map[string]any{"keys": entries})
	require.NoError(t, err, "failed to marshal JWKS")
	return doc
}

// testJWKSServer serves a JWKS document whose contents can be swapped at
// runtime, and counts how many times it was fetched.
type testJWKSServer struct {
	*httptest.Server
	doc   atomic.Pointer[[]byte]
	hits  atomic.Int64
	fails atomic.Bool
}

func newTestJWKSServer(t *testing.T, keys map[string]*rsa.PublicKey) *testJWKSServer {
	t.Helper()
	s := &testJWKSServer{}
	s.setKeys(t, keys)
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.hits.Add(1)
		if s.fails.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(*s.doc.Load())
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *testJWKSServer) setKeys(t *testing.T, keys map[string]*rsa.PublicKey) {
	t.Helper()
	doc := testJWKSDocument(t, keys)
	s.doc.Store(&doc)
}

// testValidatorConfig returns a config for the test pool whose JWKS is
// served by srv.
func testValidatorConfig(srv *testJWKSServer) ValidatorConfig {
	return ValidatorConfig{
		Region:     testRegion,
		UserPoolID: testUserPoolID,
		JWKSURL:    srv.URL,
	}
}
