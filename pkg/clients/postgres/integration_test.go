//go:build integration

// Integration tests for the PostgreSQL client and the memory strategy
// catalog against a real database started with testcontainers-go. Run with:
//
//	go test -v -race -tags=integration ./pkg/clients/postgres/...
package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/StricklySoft/agentgate/internal/testutil/containers"
	"github.com/StricklySoft/agentgate/pkg/clients/postgres"
	sserr "github.com/StricklySoft/agentgate/pkg/errors"
	"github.com/StricklySoft/agentgate/pkg/memory"
)

const strategiesSchema = `CREATE TABLE IF NOT EXISTS memory_strategies (
    memory_id   text   NOT NULL,
    strategy_id text   NOT NULL,
    name        text   NOT NULL,
    kind        text   NOT NULL,
    namespaces  text[] NOT NULL DEFAULT '{}',
    position    int    NOT NULL DEFAULT 0,
    PRIMARY KEY (memory_id, strategy_id)
)`

// setupContainer starts PostgreSQL and returns a connected client. Both are
// cleaned up when the test completes.
func setupContainer(t *testing.T) *postgres.Client {
	t.Helper()
	ctx := context.Background()

	result, err := containers.StartPostgres(ctx)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if termErr := result.Container.Terminate(ctx); termErr != nil {
			t.Logf("failed to terminate postgres container: %v", termErr)
		}
	})

	client, err := postgres.NewClient(ctx, postgres.Config{URI: result.ConnString, MaxConns: 5})
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	t.Cleanup(client.Close)

	if _, err := client.Exec(ctx, strategiesSchema); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}
	return client
}

func TestIntegration_Health(t *testing.T) {
	client := setupContainer(t)
	if err := client.Health(context.Background()); err != nil {
		t.Fatalf("Health() error: %v", err)
	}
}

func TestIntegration_ExecAndQuery(t *testing.T) {
	client := setupContainer(t)
	ctx := context.Background()

	tag, err := client.Exec(ctx,
		`INSERT INTO memory_strategies (memory_id, strategy_id, name, kind) VALUES ($1, $2, $3, $4)`,
		"mem-1", "facts-1", "Facts", "SEMANTIC")
	if err != nil {
		t.Fatalf("Exec() error: %v", err)
	}
	if tag.RowsAffected() != 1 {
		t.Errorf("RowsAffected() = %d, want 1", tag.RowsAffected())
	}

	kindOf := func(id string) (string, error) {
		rows, err := client.Query(ctx, `SELECT kind FROM memory_strategies WHERE strategy_id = $1`, id)
		if err != nil {
			return "", err
		}
		return pgx.CollectOneRow(rows, pgx.RowTo[string])
	}

	kind, err := kindOf("facts-1")
	if err != nil {
		t.Fatalf("kindOf() error: %v", err)
	}
	if kind != "SEMANTIC" {
		t.Errorf("kind = %q, want SEMANTIC", kind)
	}

	if _, err := kindOf("missing"); !errors.Is(err, pgx.ErrNoRows) {
		t.Errorf("kindOf() error = %v, want pgx.ErrNoRows", err)
	}

	_, err = client.Exec(ctx,
		`INSERT INTO memory_strategies (memory_id, strategy_id, name, kind) VALUES ($1, $2, $3, $4)`,
		"mem-1", "facts-1", "Facts", "SEMANTIC")
	if !sserr.IsInternal(err) {
		t.Errorf("duplicate insert error = %v, want INT code", err)
	}
}

func TestIntegration_PostgresCatalog(t *testing.T) {
	client := setupContainer(t)
	ctx := context.Background()

	rows := []struct {
		strategyID, name, kind string
		namespaces             []string
		position               int
	}{
		{"summary-1", "Summaries", "SUMMARIZATION", []string{"/strategies/{memoryStrategyId}/actors/{actorId}/sessions/{sessionId}"}, 1},
		{"facts-1", "Facts", "SEMANTIC", nil, 0},
		{"prefs-1", "Preferences", "USER_PREFERENCE", []string{"/prefs/{actorId}"}, 2},
	}
	for _, r := range rows {
		ns := r.namespaces
		if ns == nil {
			ns = []string{}
		}
		if _, err := client.Exec(ctx,
			`INSERT INTO memory_strategies (memory_id, strategy_id, name, kind, namespaces, position)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			"mem-1", r.strategyID, r.name, r.kind, ns, r.position); err != nil {
			t.Fatalf("seed %s: %v", r.strategyID, err)
		}
	}

	catalog := memory.NewPostgresCatalog(client)
	got, err := catalog.Strategies(ctx, "mem-1")
	if err != nil {
		t.Fatalf("Strategies() error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len(Strategies()) = %d, want 3", len(got))
	}
	wantOrder := []string{"facts-1", "summary-1", "prefs-1"}
	for i, id := range wantOrder {
		if got[i].ID != id {
			t.Errorf("Strategies()[%d].ID = %q, want %q", i, got[i].ID, id)
		}
	}
	if got[2].Kind != memory.StrategyUserPreference {
		t.Errorf("kind = %q, want USER_PREFERENCE", got[2].Kind)
	}
	if ns := got[2].Namespace("alice", ""); ns != "/prefs/alice" {
		t.Errorf("Namespace() = %q, want /prefs/alice", ns)
	}

	empty, err := catalog.Strategies(ctx, "mem-unknown")
	if err != nil {
		t.Fatalf("Strategies(unknown) error: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("Strategies(unknown) = %v, want empty", empty)
	}
}

func TestIntegration_ExpiredContext(t *testing.T) {
	client := setupContainer(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	time.Sleep(time.Millisecond)

	if _, err := client.Query(ctx, "SELECT pg_sleep(1)"); err == nil {
		t.Fatal("Query() with expired context returned nil error")
	}
}

func TestIntegration_Close(t *testing.T) {
	ctx := context.Background()
	result, err := containers.StartPostgres(ctx)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	defer func() { _ = result.Container.Terminate(ctx) }()

	client, err := postgres.NewClient(ctx, postgres.Config{URI: result.ConnString, MaxConns: 2})
	if err != nil {
		t.Fatalf("NewClient() error: %v", err)
	}
	client.Close()

	if err := client.Health(ctx); err == nil {
		t.Error("Health() after Close() returned nil, want error")
	}
}
