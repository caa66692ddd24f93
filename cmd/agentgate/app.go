package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/StricklySoft/agentgate/pkg/auth"
	"github.com/StricklySoft/agentgate/pkg/clients/postgres"
	"github.com/StricklySoft/agentgate/pkg/clients/qdrant"
	"github.com/StricklySoft/agentgate/pkg/clients/redis"
	sserr "github.com/StricklySoft/agentgate/pkg/errors"
	"github.com/StricklySoft/agentgate/pkg/gateway"
	"github.com/StricklySoft/agentgate/pkg/lifecycle"
	"github.com/StricklySoft/agentgate/pkg/memory"
	"github.com/StricklySoft/agentgate/pkg/runtime"
	"github.com/StricklySoft/agentgate/pkg/server"
)

// serviceName identifies the process in readiness reports and logs.
const serviceName = "agentgate"

// app is a fully wired gateway process.
type app struct {
	logger   *slog.Logger
	registry *prometheus.Registry
	service  *lifecycle.Service
	server   *server.Server
	memory   *memory.Provider

	closers []func() error
}

func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	lvl, err := parseLevel(level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(format, "text") {
		return slog.New(slog.NewTextHandler(w, opts)), nil
	}
	return slog.New(slog.NewJSONHandler(w, opts)), nil
}

// buildApp wires every component from cfg. Clients that were opened are
// closed again if a later step fails.
func buildApp(ctx context.Context, cfg *Config, logger *slog.Logger) (_ *app, err error) {
	a := &app{logger: logger, registry: prometheus.NewRegistry()}
	defer func() {
		if err != nil {
			_ = a.close()
		}
	}()

	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := gateway.NewMetrics(a.registry)

	validator, err := auth.NewTokenValidator(cfg.Auth,
		auth.WithLogger(logger),
		auth.WithRefreshHook(metrics.ObserveRefresh),
	)
	if err != nil {
		return nil, err
	}
	invoker, err := runtime.NewClient(cfg.Runtime, logger)
	if err != nil {
		return nil, err
	}
	gw := gateway.New(validator, invoker,
		gateway.WithMetrics(metrics),
		gateway.WithLogger(logger),
	)

	builder := lifecycle.NewServiceBuilder(serviceName, version).
		WithLogger(logger).
		OnStateChange(func(old, new lifecycle.State) {
			logger.Info("lifecycle: state changed", "from", old.String(), "to", new.String())
		})

	resolver, _ := validator.Resolver().(*auth.KeyResolver)
	if resolver != nil {
		builder = builder.WithCheck(lifecycle.Check{
			Name:     "jwks",
			Critical: true,
			Probe:    keySetProbe(resolver),
		})
	}

	if cfg.Memory.Enabled {
		checks, err := a.buildMemory(ctx, cfg)
		if err != nil {
			return nil, err
		}
		for _, c := range checks {
			builder = builder.WithCheck(c)
		}
	}

	builder = builder.
		WithOnStart(func(ctx context.Context) error {
			if resolver != nil {
				if err := resolver.Warm(ctx); err != nil {
					logger.WarnContext(ctx, "agentgate: initial key set fetch failed; retrying on first request", "error", err)
				}
			}
			if a.memory != nil {
				if err := a.memory.Load(ctx); err != nil {
					logger.WarnContext(ctx, "agentgate: memory strategies not loaded", "error", err)
				}
			}
			return nil
		}).
		WithOnStop(func(context.Context) error {
			return a.close()
		})

	a.service, err = builder.Build()
	if err != nil {
		return nil, err
	}

	opts := []server.Option{
		server.WithService(a.service),
		server.WithGatherer(a.registry),
		server.WithLogger(logger),
	}
	if a.memory != nil {
		opts = append(opts, server.WithMemory(a.memory))
	}
	a.server, err = server.New(cfg.Server, gw, validator, opts...)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// buildMemory connects the memory backends and returns their readiness
// checks. Memory is a secondary collaborator, so none of them is critical.
func (a *app) buildMemory(ctx context.Context, cfg *Config) ([]lifecycle.Check, error) {
	mc := cfg.Memory
	var checks []lifecycle.Check

	qc, err := qdrant.NewClient(ctx, cfg.Qdrant)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, qc.Close)
	checks = append(checks, lifecycle.Check{Name: "qdrant", Probe: qc.Health})

	if !mc.SkipCollectionSetup {
		created, err := memory.EnsureCollection(ctx, qc, mc.Collection, mc.VectorSize)
		if err != nil {
			return nil, err
		}
		if created {
			a.logger.InfoContext(ctx, "agentgate: created memory collection", "collection", mc.Collection)
		}
	}

	var retriever memory.Retriever = memory.NewQdrantRetriever(qc, mc.Collection)
	if mc.CacheEnabled {
		rc, err := redis.NewClient(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, rc.Close)
		checks = append(checks, lifecycle.Check{Name: "redis", Probe: rc.Health})
		retriever = memory.NewCachingRetriever(retriever, rc, mc.CacheTTL, a.logger)
	}

	var catalog memory.Catalog
	switch mc.Catalog {
	case CatalogPostgres:
		pc, err := postgres.NewClient(ctx, cfg.Postgres)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() error { pc.Close(); return nil })
		checks = append(checks, lifecycle.Check{Name: "postgres", Probe: pc.Health})
		catalog = memory.NewPostgresCatalog(pc)
	default:
		static, err := memory.ParseStaticCatalog(mc.Strategies)
		if err != nil {
			return nil, err
		}
		catalog = static
	}

	a.memory = memory.NewProvider(mc.ID, catalog, retriever, a.logger)
	checks = append(checks, lifecycle.Check{Name: "memory", Probe: memoryProbe(a.memory)})
	return checks, nil
}

// close releases the backend clients in reverse order of opening.
func (a *app) close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// keySetProbe reports ready once a key set with at least one usable key
// is cached, fetching one if none is.
func keySetProbe(r *auth.KeyResolver) lifecycle.Probe {
	return func(ctx context.Context) error {
		return r.Warm(ctx)
	}
}

// memoryProbe reports whether the strategies are loaded, retrying the
// load if they are not.
func memoryProbe(p *memory.Provider) lifecycle.Probe {
	return func(ctx context.Context) error {
		if p.Loaded() {
			return nil
		}
		if err := p.Load(ctx); err != nil {
			return sserr.Wrap(err, sserr.CodeUnavailableDependency, "memory strategies not loaded")
		}
		return nil
	}
}
