//go:build integration

// Package containers starts the data stores agentgate's memory backends
// talk to, using testcontainers-go. It is built only with the
// "integration" tag so unit test builds do not pull in Docker:
//
//	//go:build integration
//
// Each Start* function returns a result holding the container and the
// connection details the matching client config needs. Callers terminate
// the container:
//
//	result, err := containers.StartRedis(ctx)
//	if err != nil { ... }
//	defer result.Container.Terminate(ctx)
//
//	client, err := redis.NewClient(ctx, redis.Config{URI: result.ConnString})
package containers

import (
	"context"
	"fmt"

	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcqdrant "github.com/testcontainers/testcontainers-go/modules/qdrant"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

// PostgreSQL test database settings. The credentials are only ever used
// for throwaway local containers.
const (
	DefaultPostgresImage    = "docker.io/postgres:16-alpine"
	DefaultPostgresDatabase = "agentgate_test"
	DefaultPostgresUser     = "agentgate"
	DefaultPostgresPassword = "agentgate-test"
)

// PostgresResult is a running PostgreSQL container. ConnString is a
// postgres:// URI with sslmode=disable, ready for postgres.Config.URI.
type PostgresResult struct {
	Container  *tcpostgres.PostgresContainer
	ConnString string
}

// StartPostgres starts PostgreSQL 16 and waits until it accepts
// connections.
func StartPostgres(ctx context.Context) (*PostgresResult, error) {
	container, err := tcpostgres.Run(ctx,
		DefaultPostgresImage,
		tcpostgres.WithDatabase(DefaultPostgresDatabase),
		tcpostgres.WithUsername(DefaultPostgresUser),
		tcpostgres.WithPassword(DefaultPostgresPassword),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		return nil, fmt.Errorf("containers: failed to start postgres container: %w", err)
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("containers: failed to get postgres connection string: %w", err)
	}
	return &PostgresResult{Container: container, ConnString: connStr}, nil
}

// DefaultRedisImage is the Redis image used for cache tests.
const DefaultRedisImage = "docker.io/redis:7-alpine"

// RedisResult is a running Redis container. ConnString is a redis:// URI
// for redis.Config.URI.
type RedisResult struct {
	Container  *tcredis.RedisContainer
	ConnString string
}

// StartRedis starts Redis 7.
func StartRedis(ctx context.Context) (*RedisResult, error) {
	container, err := tcredis.Run(ctx, DefaultRedisImage)
	if err != nil {
		return nil, fmt.Errorf("containers: failed to start redis container: %w", err)
	}

	connStr, err := container.ConnectionString(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("containers: failed to get redis connection string: %w", err)
	}
	return &RedisResult{Container: container, ConnString: connStr}, nil
}

// DefaultQdrantImage is the Qdrant image used for memory retrieval tests.
const DefaultQdrantImage = "docker.io/qdrant/qdrant:v1.12.6"

// QdrantResult is a running Qdrant container without authentication.
// GRPCEndpoint is host:port for the Go client; RESTEndpoint serves the
// HTTP API.
type QdrantResult struct {
	Container    *tcqdrant.QdrantContainer
	GRPCEndpoint string
	RESTEndpoint string
}

// StartQdrant starts Qdrant.
func StartQdrant(ctx context.Context) (*QdrantResult, error) {
	container, err := tcqdrant.Run(ctx, DefaultQdrantImage)
	if err != nil {
		return nil, fmt.Errorf("containers: failed to start qdrant container: %w", err)
	}

	grpcEndpoint, err := container.GRPCEndpoint(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("containers: failed to get qdrant gRPC endpoint: %w", err)
	}
	restEndpoint, err := container.RESTEndpoint(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("containers: failed to get qdrant REST endpoint: %w", err)
	}
	return &QdrantResult{
		Container:    container,
		GRPCEndpoint: grpcEndpoint,
		RESTEndpoint: restEndpoint,
	}, nil
}
