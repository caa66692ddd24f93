package auth

import (
	"crypto/rsa"
	"sort"
	"sync/atomic"
	"time"
)

// SigningKey is a public verification key published by the identity
// provider. It is immutable once fetched.
type SigningKey struct {
	// KeyID is the "kid" the provider assigned to the key.
	KeyID string

	// Algorithm is the JWA algorithm the key is published for. Keys
	// published without an "alg" are recorded as RS256.
	Algorithm string

	// Key is the RSA public key material.
	Key *rsa.PublicKey
}

// KeySet is one generation of signing keys fetched from the provider. A
// KeySet is never modified after construction; refreshes build a new one.
type KeySet struct {
	keys      map[string]SigningKey
	fetchedAt time.Time
}

// NewKeySet builds a KeySet from the given keys. Keys without a key id are
// dropped; a later key with a duplicate id replaces an earlier one.
func NewKeySet(keys []SigningKey, fetchedAt time.Time) *KeySet {
	m := make(map[string]SigningKey, len(keys))
	for _, k := range keys {
		if k.KeyID == "" || k.Key == nil {
			continue
		}
		m[k.KeyID] = k
	}
	return &KeySet{keys: m, fetchedAt: fetchedAt}
}

// Lookup returns the key with the given id.
func (s *KeySet) Lookup(kid string) (SigningKey, bool) {
	if s == nil {
		return SigningKey{}, false
	}
	k, ok := s.keys[kid]
	return k, ok
}

// Len returns the number of keys in the set.
func (s *KeySet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.keys)
}

// KeyIDs returns the key ids in the set in sorted order.
func (s *KeySet) KeyIDs() []string {
	if s == nil {
		return nil
	}
	ids := make([]string, 0, len(s.keys))
	for id := range s.keys {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// FetchedAt returns when the set was fetched. The zero time means the set
// was never fetched (the empty set a cache starts with).
func (s *KeySet) FetchedAt() time.Time {
	if s == nil {
		return time.Time{}
	}
	return s.fetchedAt
}

// KeySetCache holds the current [KeySet] for one issuer. Replacement swaps
// the whole set with a single atomic store, so concurrent readers see either
// the old generation or the new one and never a mix of both. There is no
// expiry; staleness is detected by [KeyResolver] on a lookup miss.
//
// The zero value is ready to use and behaves as an empty cache.
type KeySetCache struct {
	current atomic.Pointer[KeySet]
}

// NewKeySetCache returns an empty cache.
func NewKeySetCache() *KeySetCache {
	return &KeySetCache{}
}

// Get returns the key with the given id from the current generation.
func (c *KeySetCache) Get(kid string) (SigningKey, bool) {
	return c.current.Load().Lookup(kid)
}

// Replace publishes set as the current generation. A nil set empties the
// cache.
func (c *KeySetCache) Replace(set *KeySet) {
	if set == nil {
		set = NewKeySet(nil, time.Time{})
	}
	c.current.Store(set)
}

// Snapshot returns the current generation. The returned set is immutable
// and remains valid after later replacements. Returns nil if nothing has
// been stored yet.
func (c *KeySetCache) Snapshot() *KeySet {
	return c.current.Load()
}
