package memory

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"time"

	sserr "github.com/StricklySoft/agentgate/pkg/errors"
)

// DefaultCacheTTL bounds how long a cached result is served.
const DefaultCacheTTL = 5 * time.Minute

// cacheKeyPrefix namespaces cache entries in a shared Redis.
const cacheKeyPrefix = "agentgate:memory:"

// Cache is a string key-value store with expiry. [*redis.Client] satisfies
// it; a missing key must be reported as an [sserr.CodeNotFound] error.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
}

// CachingRetriever serves repeated retrievals from a cache. Cache failures
// are logged and bypassed; only a failure of the underlying retriever is
// returned.
type CachingRetriever struct {
	next   Retriever
	cache  Cache
	ttl    time.Duration
	logger *slog.Logger
}

// Compile-time interface compliance check.
var _ Retriever = (*CachingRetriever)(nil)

// NewCachingRetriever wraps next with cache. A non-positive ttl uses
// [DefaultCacheTTL].
func NewCachingRetriever(next Retriever, cache Cache, ttl time.Duration, logger *slog.Logger) *CachingRetriever {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CachingRetriever{next: next, cache: cache, ttl: ttl, logger: logger}
}

// Retrieve implements [Retriever].
func (c *CachingRetriever) Retrieve(ctx context.Context, req RetrieveRequest) ([]Record, error) {
	key := CacheKey(req)

	raw, err := c.cache.Get(ctx, key)
	switch {
	case err == nil:
		var records []Record
		if jerr := json.Unmarshal([]byte(raw), &records); jerr == nil {
			return records, nil
		}
		c.logger.WarnContext(ctx, "memory: discarding undecodable cache entry", "key", key)
	case sserr.IsNotFound(err):
	default:
		c.logger.WarnContext(ctx, "memory: cache read failed", "error", err)
	}

	records, err := c.next.Retrieve(ctx, req)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(records)
	if err != nil {
		return records, nil
	}
	if err := c.cache.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.WarnContext(ctx, "memory: cache write failed", "error", err)
	}
	return records, nil
}

// CacheKey derives the cache key for req. Requests that differ in any
// field map to different keys.
func CacheKey(req RetrieveRequest) string {
	data, _ := json.Marshal(req)
	sum := sha256.Sum256(data)
	return cacheKeyPrefix + hex.EncodeToString(sum[:])
}
