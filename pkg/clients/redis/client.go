package redis

import (
	"context"
	"crypto/tls"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	sserr "github.com/StricklySoft/agentgate/pkg/errors"
)

const tracerName = "github.com/StricklySoft/agentgate/pkg/clients/redis"

// Cmdable is the set of commands the retrieval cache issues.
// *redis.Client implements it.
type Cmdable interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Ping(ctx context.Context) *redis.StatusCmd
	Close() error
}

var _ Cmdable = (*redis.Client)(nil)

// Client is a traced Redis client backing the retrieval cache. It is
// safe for concurrent use.
type Client struct {
	cmdable Cmdable
	config  *Config
	tracer  trace.Tracer
	dbIndex int
}

// NewClient validates cfg, dials and pings the server. The connection is
// closed again if the ping fails.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts, err := buildOptions(&cfg)
	if err != nil {
		return nil, err
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, sserr.Wrap(err, sserr.CodeUnavailableDependency,
			"redis: failed to connect to server")
	}

	c := NewFromClient(rdb, &cfg)
	c.dbIndex = opts.DB
	return c, nil
}

// NewFromClient wraps cmdable without dialing. A nil cfg means an empty
// Config.
func NewFromClient(cmdable Cmdable, cfg *Config) *Client {
	if cfg == nil {
		cfg = &Config{}
	}
	return &Client{
		cmdable: cmdable,
		config:  cfg,
		tracer:  otel.Tracer(tracerName),
		dbIndex: cfg.DB,
	}
}

// buildOptions turns cfg into go-redis options. A URI wins over the
// structured fields; pool and timeout settings apply either way.
func buildOptions(cfg *Config) (*redis.Options, error) {
	opts := &redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password.Value(),
		DB:       cfg.DB,
	}
	if cfg.URI != "" {
		parsed, err := redis.ParseURL(cfg.URI)
		if err != nil {
			return nil, sserr.Wrap(err, sserr.CodeValidationFormat,
				"redis: failed to parse connection URI")
		}
		opts = parsed
	} else if cfg.TLSEnabled {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns
	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout
	// go-redis reads 0 as its default of 3 retries; -1 disables them.
	opts.MaxRetries = cfg.MaxRetries
	if opts.MaxRetries == 0 {
		opts.MaxRetries = -1
	}
	return opts, nil
}

// Set stores value under key. A zero expiration keeps the key forever.
func (c *Client) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	err := c.traced(ctx, "SET", key, func(ctx context.Context) error {
		return c.cmdable.Set(ctx, key, value, expiration).Err()
	})
	if err != nil {
		return wrapError(err, "redis: set failed")
	}
	return nil
}

// Get returns the value stored under key. A missing key is reported as
// [sserr.CodeNotFound].
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	var (
		val  string
		miss error
	)
	err := c.traced(ctx, "GET", key, func(ctx context.Context) error {
		var gerr error
		val, gerr = c.cmdable.Get(ctx, key).Result()
		if errors.Is(gerr, redis.Nil) {
			// a miss, not a failed command
			miss = gerr
			return nil
		}
		return gerr
	})
	if err != nil {
		return "", wrapError(err, "redis: get failed")
	}
	if miss != nil {
		return "", sserr.Wrapf(miss, sserr.CodeNotFound, "redis: key %q not found", key)
	}
	return val, nil
}

// Health pings the server. Without a caller deadline the ping is bounded
// by [DefaultHealthTimeout].
func (c *Client) Health(ctx context.Context) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultHealthTimeout)
		defer cancel()
	}
	err := c.traced(ctx, "PING", "", func(ctx context.Context) error {
		return c.cmdable.Ping(ctx).Err()
	})
	if err != nil {
		return sserr.Wrap(err, sserr.CodeUnavailableDependency, "redis: health check failed")
	}
	return nil
}

// Close releases the connection pool.
func (c *Client) Close() error {
	return c.cmdable.Close()
}

// traced runs fn inside a client span named after the command. Values
// are never recorded, only the command and its keys.
func (c *Client) traced(ctx context.Context, command, keys string, fn func(context.Context) error) error {
	statement := command
	if keys != "" {
		statement += " " + keys
	}
	ctx, span := c.tracer.Start(ctx, "redis."+strings.ToLower(command),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system.name", "redis"),
			attribute.String("db.operation.name", command),
			attribute.String("db.namespace", strconv.Itoa(c.dbIndex)),
			attribute.String("db.query.text", truncateStatement(statement)),
		),
	)
	defer span.End()

	if err := fn(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

func wrapError(err error, message string) *sserr.Error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return sserr.Wrap(err, sserr.CodeTimeoutStore, message)
	}
	return sserr.Wrap(err, sserr.CodeInternalStore, message)
}
