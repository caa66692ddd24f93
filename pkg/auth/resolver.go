package auth

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	sserr "github.com/StricklySoft/agentgate/pkg/errors"
)

// tracerName is the OpenTelemetry instrumentation scope name for auth spans.
const tracerName = "github.com/StricklySoft/agentgate/pkg/auth"

// Resolver returns the signing key for a key id. [*KeyResolver] is the
// production implementation.
type Resolver interface {
	Resolve(ctx context.Context, kid string) (SigningKey, error)
}

// RefreshHook observes the outcome of every key set refresh. err is nil on
// success. Hooks run synchronously on the refreshing request.
type RefreshHook func(keys int, err error)

// KeyResolver resolves key ids against a [KeySetCache], refreshing the
// cache from a [KeySetFetcher] on a miss.
//
// A miss triggers exactly one fetch followed by one retry of the lookup.
// Refreshes are not serialized: concurrent misses each fetch and each
// replace the cache, and the last replacement wins. A failed refresh leaves
// the current generation untouched so other requests keep being served.
//
// KeyResolver is safe for concurrent use by multiple goroutines.
type KeyResolver struct {
	cache   *KeySetCache
	fetcher KeySetFetcher
	tracer  trace.Tracer
	logger  *slog.Logger
	onFetch RefreshHook
}

// Compile-time interface compliance check.
var _ Resolver = (*KeyResolver)(nil)

// NewKeyResolver creates a resolver over cache that refreshes from fetcher.
// A nil cache is replaced with an empty one.
func NewKeyResolver(cache *KeySetCache, fetcher KeySetFetcher, logger *slog.Logger) *KeyResolver {
	if cache == nil {
		cache = NewKeySetCache()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &KeyResolver{
		cache:   cache,
		fetcher: fetcher,
		tracer:  otel.Tracer(tracerName),
		logger:  logger,
	}
}

// OnRefresh registers a hook invoked after every refresh attempt. It must
// be called before the resolver is shared.
func (r *KeyResolver) OnRefresh(hook RefreshHook) {
	r.onFetch = hook
}

// Cache returns the cache the resolver reads from.
func (r *KeyResolver) Cache() *KeySetCache {
	return r.cache
}

// Resolve returns the key for kid. A cached key is returned without any
// network call. Otherwise the key set is refreshed once and the lookup is
// retried.
//
// Errors:
//   - [sserr.CodeUnavailableDependency] when the refresh itself failed
//   - [sserr.CodeNotFoundKey] when the key is absent after a refresh
func (r *KeyResolver) Resolve(ctx context.Context, kid string) (SigningKey, error) {
	if key, ok := r.cache.Get(kid); ok {
		return key, nil
	}

	if err := r.Refresh(ctx); err != nil {
		return SigningKey{}, err
	}

	if key, ok := r.cache.Get(kid); ok {
		return key, nil
	}
	return SigningKey{}, sserr.Newf(sserr.CodeNotFoundKey,
		"auth: key id %q not found in key set", kid).WithDetail("kid", kid)
}

// Refresh fetches the key set and replaces the cache with it. On failure
// the cache is left unchanged.
func (r *KeyResolver) Refresh(ctx context.Context) error {
	ctx, span := r.tracer.Start(ctx, "auth.RefreshKeySet")
	defer span.End()

	set, err := r.fetcher.FetchKeySet(ctx)
	if err != nil {
		wrapped := sserr.Wrap(err, sserr.CodeUnavailableDependency, "auth: key set refresh failed")
		span.RecordError(wrapped)
		span.SetStatus(codes.Error, wrapped.Error())
		r.logger.WarnContext(ctx, "auth: key set refresh failed", "error", err)
		r.notify(0, wrapped)
		return wrapped
	}

	r.cache.Replace(set)
	span.SetAttributes(attribute.Int("auth.jwks.keys", set.Len()))
	r.logger.InfoContext(ctx, "auth: key set refreshed",
		"keys", set.Len(),
		"kids", set.KeyIDs(),
	)
	r.notify(set.Len(), nil)
	return nil
}

// Warm performs the initial fetch so the first request does not pay for
// it. A failure is returned but is not fatal; the next lookup miss retries.
// A fetched key set without any usable key counts as a failure, and the
// next call fetches again.
func (r *KeyResolver) Warm(ctx context.Context) error {
	if r.cache.Snapshot().Len() > 0 {
		return nil
	}
	if err := r.Refresh(ctx); err != nil {
		return err
	}
	if r.cache.Snapshot().Len() == 0 {
		return sserr.New(sserr.CodeUnavailableDependency, "auth: key set has no usable signing keys")
	}
	return nil
}

func (r *KeyResolver) notify(keys int, err error) {
	if r.onFetch != nil {
		r.onFetch(keys, err)
	}
}
