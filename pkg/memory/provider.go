package memory

import (
	"context"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	sserr "github.com/StricklySoft/agentgate/pkg/errors"
)

// tracerName is the OpenTelemetry instrumentation scope name for this package.
const tracerName = "github.com/StricklySoft/agentgate/pkg/memory"

// Catalog lists the strategies configured on a memory.
type Catalog interface {
	Strategies(ctx context.Context, memoryID string) ([]Strategy, error)
}

// Retriever reads records from the memory store. Results are ordered by
// relevance, most relevant first, and hold at most MaxResults records.
type Retriever interface {
	Retrieve(ctx context.Context, req RetrieveRequest) ([]Record, error)
}

// handler serves searches for one strategy.
type handler struct {
	memoryID  string
	strategy  Strategy
	retriever Retriever
}

func (h *handler) search(ctx context.Context, req SearchRequest) ([]string, error) {
	records, err := h.retriever.Retrieve(ctx, RetrieveRequest{
		MemoryID:   h.memoryID,
		StrategyID: h.strategy.ID,
		Namespace:  h.strategy.Namespace(req.ActorID, req.SessionID),
		Query:      req.Query,
		MaxResults: req.Limit(),
	})
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.Content)
	}
	return out, nil
}

// Provider answers memory searches for one memory. Call [Provider.Load]
// before searching; until then every search returns an empty result.
//
// Provider is safe for concurrent use. Load may be called again to pick up
// catalog changes; it swaps the handler map atomically.
type Provider struct {
	memoryID  string
	catalog   Catalog
	retriever Retriever
	logger    *slog.Logger
	tracer    trace.Tracer

	mu       sync.RWMutex
	handlers map[StrategyKind]*handler
	loaded   bool
}

// NewProvider creates a provider for memoryID. A nil logger uses
// [slog.Default].
func NewProvider(memoryID string, catalog Catalog, retriever Retriever, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{
		memoryID:  memoryID,
		catalog:   catalog,
		retriever: retriever,
		logger:    logger,
		tracer:    otel.Tracer(tracerName),
		handlers:  map[StrategyKind]*handler{},
	}
}

// MemoryID returns the memory the provider serves.
func (p *Provider) MemoryID() string {
	return p.memoryID
}

// Load reads the memory's strategies from the catalog and registers one
// handler per known kind. Unknown kinds are logged and skipped. When a
// kind appears more than once the first strategy wins.
func (p *Provider) Load(ctx context.Context) error {
	ctx, span := p.tracer.Start(ctx, "memory.Load",
		trace.WithAttributes(attribute.String("memory.id", p.memoryID)))
	defer span.End()

	strategies, err := p.catalog.Strategies(ctx, p.memoryID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if _, ok := sserr.AsError(err); ok {
			return err
		}
		return sserr.Wrap(err, sserr.CodeUnavailableDependency, "memory: failed to load strategies")
	}

	handlers := make(map[StrategyKind]*handler, len(strategies))
	for _, s := range strategies {
		if !s.Kind.Known() {
			p.logger.WarnContext(ctx, "memory: unknown strategy",
				"strategy_id", s.ID,
				"strategy_name", s.Name,
				"kind", s.Kind.String(),
			)
			continue
		}
		if _, dup := handlers[s.Kind]; dup {
			p.logger.WarnContext(ctx, "memory: duplicate strategy kind ignored",
				"strategy_id", s.ID,
				"kind", s.Kind.String(),
			)
			continue
		}
		if len(s.Namespaces) == 0 {
			p.logger.WarnContext(ctx, "memory: strategy has no namespaces, using default",
				"strategy_id", s.ID,
				"namespace", DefaultNamespaceTemplate,
			)
		}
		handlers[s.Kind] = &handler{memoryID: p.memoryID, strategy: s, retriever: p.retriever}
		p.logger.InfoContext(ctx, "memory: loaded strategy",
			"strategy_id", s.ID,
			"strategy_name", s.Name,
			"kind", s.Kind.String(),
		)
	}

	p.mu.Lock()
	p.handlers = handlers
	p.loaded = true
	p.mu.Unlock()

	span.SetAttributes(attribute.Int("memory.strategies", len(handlers)))
	return nil
}

// Loaded reports whether Load has succeeded at least once.
func (p *Provider) Loaded() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.loaded
}

// Strategy returns the strategy registered for kind.
func (p *Provider) Strategy(kind StrategyKind) (Strategy, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	h, ok := p.handlers[kind]
	if !ok {
		return Strategy{}, false
	}
	return h.strategy, true
}

// Search returns the content of memories of the given kind related to
// req, most relevant first. A kind without a registered strategy returns
// an empty slice and a nil error.
func (p *Provider) Search(ctx context.Context, kind StrategyKind, req SearchRequest) ([]string, error) {
	p.mu.RLock()
	h, ok := p.handlers[kind]
	p.mu.RUnlock()
	if !ok {
		return []string{}, nil
	}

	ctx, span := p.tracer.Start(ctx, "memory.Search",
		trace.WithAttributes(
			attribute.String("memory.kind", kind.String()),
			attribute.String("memory.strategy_id", h.strategy.ID),
			attribute.Int("memory.limit", req.Limit()),
		))
	defer span.End()

	results, err := h.search(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("memory.results", len(results)))
	return results, nil
}

// SearchSemantic searches semantic memories.
func (p *Provider) SearchSemantic(ctx context.Context, req SearchRequest) ([]string, error) {
	return p.Search(ctx, StrategySemantic, req)
}

// SearchSummary searches session summaries.
func (p *Provider) SearchSummary(ctx context.Context, req SearchRequest) ([]string, error) {
	return p.Search(ctx, StrategySummarization, req)
}

// SearchUserPreference searches user preferences.
func (p *Provider) SearchUserPreference(ctx context.Context, req SearchRequest) ([]string, error) {
	return p.Search(ctx, StrategyUserPreference, req)
}
