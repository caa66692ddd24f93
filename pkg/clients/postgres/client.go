package postgres

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	sserr "github.com/StricklySoft/agentgate/pkg/errors"
)

const tracerName = "github.com/StricklySoft/agentgate/pkg/clients/postgres"

// Pool is what the client needs from a connection pool. Both
// *pgxpool.Pool and pgxmock pools implement it.
type Pool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Ping(ctx context.Context) error
	Close()
}

var _ Pool = (*pgxpool.Pool)(nil)

// Client runs traced statements against the strategy catalog database.
// It is safe for concurrent use.
type Client struct {
	pool         Pool
	config       *Config
	tracer       trace.Tracer
	databaseName string
}

// NewClient validates cfg, opens a pool and pings the database. The
// pool is closed again if the ping fails.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	pc, err := buildPoolConfig(&cfg)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, sserr.Wrap(err, sserr.CodeUnavailableDependency,
			"postgres: failed to create connection pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, sserr.Wrap(err, sserr.CodeUnavailableDependency,
			"postgres: failed to connect to database")
	}

	c := NewFromPool(pool, &cfg)
	c.databaseName = databaseName(&cfg)
	return c, nil
}

// NewFromPool wraps pool without dialing. A nil cfg means an empty Config.
func NewFromPool(pool Pool, cfg *Config) *Client {
	if cfg == nil {
		cfg = &Config{}
	}
	return &Client{
		pool:         pool,
		config:       cfg,
		tracer:       otel.Tracer(tracerName),
		databaseName: cfg.Database,
	}
}

func buildPoolConfig(cfg *Config) (*pgxpool.Config, error) {
	pc, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, sserr.Wrap(err, sserr.CodeValidationFormat,
			"postgres: failed to parse connection string")
	}
	pc.MaxConns, pc.MinConns = cfg.MaxConns, cfg.MinConns
	pc.MaxConnLifetime = cfg.MaxConnLifetime
	pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	pc.HealthCheckPeriod = cfg.HealthCheckPeriod
	return pc, nil
}

// databaseName prefers the path of a URI over the structured field.
func databaseName(cfg *Config) string {
	if cfg.URI == "" {
		return cfg.Database
	}
	u, err := url.Parse(cfg.URI)
	if err != nil {
		return cfg.Database
	}
	return strings.TrimPrefix(u.Path, "/")
}

// Query runs sql and returns its rows, which the caller must close.
func (c *Client) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	var rows pgx.Rows
	err := c.traced(ctx, "query", sql, func(ctx context.Context) error {
		var qerr error
		rows, qerr = c.pool.Query(ctx, sql, args...)
		return qerr
	})
	if err != nil {
		return nil, wrapError(err, "postgres: query failed")
	}
	return rows, nil
}

// Exec runs a statement that returns no rows.
func (c *Client) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	var tag pgconn.CommandTag
	err := c.traced(ctx, "exec", sql, func(ctx context.Context) error {
		var eerr error
		tag, eerr = c.pool.Exec(ctx, sql, args...)
		return eerr
	})
	if err != nil {
		return tag, wrapError(err, "postgres: exec failed")
	}
	return tag, nil
}

// Health pings the database. Without a caller deadline the ping is
// bounded by [DefaultHealthTimeout].
func (c *Client) Health(ctx context.Context) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultHealthTimeout)
		defer cancel()
	}
	if err := c.traced(ctx, "ping", "", c.pool.Ping); err != nil {
		return sserr.Wrap(err, sserr.CodeUnavailableDependency, "postgres: health check failed")
	}
	return nil
}

// Close releases every pooled connection.
func (c *Client) Close() {
	c.pool.Close()
}

// traced runs fn inside a client span and records its outcome.
func (c *Client) traced(ctx context.Context, op, sql string, fn func(context.Context) error) error {
	ctx, span := c.span(ctx, op, sql)
	defer span.End()

	err := fn(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

func (c *Client) span(ctx context.Context, op, sql string) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.String("db.system.name", "postgresql"),
		attribute.String("db.namespace", c.databaseName),
		attribute.String("db.operation.name", op),
	}
	if sql != "" {
		attrs = append(attrs, attribute.String("db.query.text", truncateSQL(sql)))
	}
	return c.tracer.Start(ctx, "postgres."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
}

// wrapError maps deadlines to store timeouts and SQLSTATE class 08
// (connection exception) to unavailable. Anything else is an internal
// store error.
func wrapError(err error, message string) *sserr.Error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return sserr.Wrap(err, sserr.CodeTimeoutStore, message)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && strings.HasPrefix(pgErr.Code, "08") {
		return sserr.Wrap(err, sserr.CodeUnavailableDependency, message)
	}
	return sserr.Wrap(err, sserr.CodeInternalStore, message)
}
