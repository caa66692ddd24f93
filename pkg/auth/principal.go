package auth

import (
	"context"
	"strings"
)

// Principal is the identity proven by a successfully validated token. It
// exists only as the result of [TokenValidator.Validate].
type Principal struct {
	// Subject is the token's "sub" claim, the stable user identifier.
	Subject string `json:"sub"`

	// Username is the Cognito "username" claim, if present.
	Username string `json:"username,omitempty"`

	// ClientID is the app client the token was issued to, if present.
	ClientID string `json:"client_id,omitempty"`

	// Scopes are the space-separated values of the "scope" claim.
	Scopes []string `json:"scopes,omitempty"`

	// Claims holds every verified claim, including extension claims.
	Claims map[string]any `json:"-"`
}

// HasScope reports whether the principal was granted scope.
func (p *Principal) HasScope(scope string) bool {
	for _, s := range p.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// newPrincipal builds a Principal from verified claims.
func newPrincipal(subject string, claims map[string]any) *Principal {
	p := &Principal{
		Subject: subject,
		Claims:  claims,
	}
	p.Username, _ = claims["username"].(string)
	p.ClientID, _ = claims["client_id"].(string)
	if scope, ok := claims["scope"].(string); ok {
		p.Scopes = strings.Fields(scope)
	}
	return p
}

type contextKey int

const principalKey contextKey = iota

// ContextWithPrincipal returns a copy of ctx carrying p.
func ContextWithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext returns the principal stored by
// [ContextWithPrincipal], or nil and false.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey).(*Principal)
	return p, ok && p != nil
}
