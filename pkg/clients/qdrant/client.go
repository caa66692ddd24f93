package qdrant

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pb "github.com/qdrant/go-client/qdrant"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	grpccodes "google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"

	sserr "github.com/StricklySoft/agentgate/pkg/errors"
)

const tracerName = "github.com/StricklySoft/agentgate/pkg/clients/qdrant"

// VectorDB is what the memory layer needs from *qdrant.Client. Upsert is
// only used to seed records.
type VectorDB interface {
	CollectionExists(ctx context.Context, name string) (bool, error)
	CreateCollection(ctx context.Context, req *pb.CreateCollection) error
	CreateFieldIndex(ctx context.Context, req *pb.CreateFieldIndexCollection) (*pb.UpdateResult, error)
	Upsert(ctx context.Context, req *pb.UpsertPoints) (*pb.UpdateResult, error)
	Scroll(ctx context.Context, req *pb.ScrollPoints) ([]*pb.RetrievedPoint, error)
	HealthCheck(ctx context.Context) (*pb.HealthCheckReply, error)
	Close() error
}

var _ VectorDB = (*pb.Client)(nil)

// Client is a traced Qdrant client over the memory record collection.
// It is safe for concurrent use.
type Client struct {
	vectorDB VectorDB
	config   *Config
	tracer   trace.Tracer
}

// NewClient validates cfg, dials Qdrant over gRPC, and runs a health check.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client, err := pb.NewClient(&pb.Config{
		Host:   cfg.Host,
		Port:   cfg.GRPCPort,
		APIKey: cfg.APIKey.Value(),
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, sserr.Wrap(err, sserr.CodeUnavailableDependency,
			"qdrant: failed to create gRPC client")
	}

	healthCtx := ctx
	if _, ok := healthCtx.Deadline(); !ok {
		var cancel context.CancelFunc
		healthCtx, cancel = context.WithTimeout(healthCtx, cfg.HealthTimeout)
		defer cancel()
	}
	if _, err := client.HealthCheck(healthCtx); err != nil {
		_ = client.Close()
		return nil, sserr.Wrap(err, sserr.CodeUnavailableDependency,
			"qdrant: failed to connect to server")
	}

	return &Client{
		vectorDB: client,
		config:   &cfg,
		tracer:   otel.Tracer(tracerName),
	}, nil
}

// NewFromVectorDB wraps an existing VectorDB. A nil cfg is treated as an
// empty Config.
func NewFromVectorDB(vectorDB VectorDB, cfg *Config) *Client {
	if cfg == nil {
		cfg = &Config{}
	}
	return &Client{
		vectorDB: vectorDB,
		config:   cfg,
		tracer:   otel.Tracer(tracerName),
	}
}

// CollectionExists reports whether the named collection exists.
func (c *Client) CollectionExists(ctx context.Context, name string) (bool, error) {
	return call(ctx, c, "collection_exists", name, "", func(ctx context.Context) (bool, error) {
		return c.vectorDB.CollectionExists(ctx, name)
	})
}

// CreateCollection creates a collection.
func (c *Client) CreateCollection(ctx context.Context, req *pb.CreateCollection) error {
	_, err := call(ctx, c, "create_collection", req.GetCollectionName(), "",
		func(ctx context.Context) (struct{}, error) {
			return struct{}{}, c.vectorDB.CreateCollection(ctx, req)
		})
	return err
}

// CreateFieldIndex creates a payload index on one field.
func (c *Client) CreateFieldIndex(ctx context.Context, req *pb.CreateFieldIndexCollection) error {
	_, err := call(ctx, c, "create_field_index", req.GetCollectionName(), req.GetFieldName(),
		func(ctx context.Context) (*pb.UpdateResult, error) {
			return c.vectorDB.CreateFieldIndex(ctx, req)
		})
	return err
}

// Upsert inserts or replaces points. Used to seed memory records.
func (c *Client) Upsert(ctx context.Context, req *pb.UpsertPoints) (*pb.UpdateResult, error) {
	detail := fmt.Sprintf("%d points", len(req.GetPoints()))
	return call(ctx, c, "upsert", req.GetCollectionName(), detail,
		func(ctx context.Context) (*pb.UpdateResult, error) {
			return c.vectorDB.Upsert(ctx, req)
		})
}

// Scroll returns the points matching the request filter, unscored.
func (c *Client) Scroll(ctx context.Context, req *pb.ScrollPoints) ([]*pb.RetrievedPoint, error) {
	return call(ctx, c, "scroll", req.GetCollectionName(), "",
		func(ctx context.Context) ([]*pb.RetrievedPoint, error) {
			return c.vectorDB.Scroll(ctx, req)
		})
}

// Health runs a Qdrant health check. Without a caller deadline it is
// bounded by the configured HealthTimeout.
func (c *Client) Health(ctx context.Context) error {
	if _, ok := ctx.Deadline(); !ok {
		timeout := c.config.HealthTimeout
		if timeout <= 0 {
			timeout = DefaultHealthTimeout
		}
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	_, err := call(ctx, c, "health_check", "", "", func(ctx context.Context) (*pb.HealthCheckReply, error) {
		return c.vectorDB.HealthCheck(ctx)
	})
	if err != nil {
		return sserr.Wrap(errors.Unwrap(err), sserr.CodeUnavailableDependency, "qdrant: health check failed")
	}
	return nil
}

// Close closes the gRPC connection.
func (c *Client) Close() error {
	return c.vectorDB.Close()
}

// call runs fn in a client span and converts its error with wrapError.
func call[T any](ctx context.Context, c *Client, op, collection, detail string, fn func(context.Context) (T, error)) (T, error) {
	attrs := []attribute.KeyValue{
		attribute.String("db.system.name", "qdrant"),
		attribute.String("db.operation.name", op),
	}
	if collection != "" {
		attrs = append(attrs, attribute.String("db.collection.name", collection))
	}
	if detail != "" {
		attrs = append(attrs, attribute.String("db.query.text", truncateStatement(detail)))
	}
	ctx, span := c.tracer.Start(ctx, "qdrant."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
	defer span.End()

	out, err := fn(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		var zero T
		return zero, wrapError(err, "qdrant: "+strings.ReplaceAll(op, "_", " ")+" failed")
	}
	span.SetStatus(codes.Ok, "")
	return out, nil
}

// wrapError maps context and gRPC deadlines to store timeouts and gRPC
// Unavailable to an unavailable dependency. Anything else is an internal
// store error.
func wrapError(err error, message string) *sserr.Error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return sserr.Wrap(err, sserr.CodeTimeoutStore, message)
	}
	switch grpcstatus.Code(err) {
	case grpccodes.DeadlineExceeded:
		return sserr.Wrap(err, sserr.CodeTimeoutStore, message)
	case grpccodes.Unavailable:
		return sserr.Wrap(err, sserr.CodeUnavailableDependency, message)
	}
	return sserr.Wrap(err, sserr.CodeInternalStore, message)
}
