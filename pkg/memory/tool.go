package memory

import (
	"context"
	"log/slog"
)

// Searcher is the subset of [*Provider] a [Tool] needs.
type Searcher interface {
	Search(ctx context.Context, kind StrategyKind, req SearchRequest) ([]string, error)
}

// Tool exposes memory search to an agent conversation. It is bound to one
// actor and one session and is not shared across conversations.
type Tool struct {
	searcher  Searcher
	actorID   string
	sessionID string
	logger    *slog.Logger
}

// NewTool binds searcher to an actor and session.
func NewTool(searcher Searcher, actorID, sessionID string, logger *slog.Logger) *Tool {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tool{searcher: searcher, actorID: actorID, sessionID: sessionID, logger: logger}
}

// SearchSemanticMemory finds facts similar to query across all of the
// actor's sessions.
func (t *Tool) SearchSemanticMemory(ctx context.Context, query string) ([]string, error) {
	t.logger.DebugContext(ctx, "memory: semantic search", "actor_id", t.actorID)
	return t.searcher.Search(ctx, StrategySemantic, SearchRequest{
		Query:      query,
		ActorID:    t.actorID,
		MaxResults: ToolMaxResults,
	})
}

// SearchSummaryMemory finds summaries of the current session related to
// query.
func (t *Tool) SearchSummaryMemory(ctx context.Context, query string) ([]string, error) {
	t.logger.DebugContext(ctx, "memory: summary search",
		"actor_id", t.actorID,
		"session_id", t.sessionID,
	)
	return t.searcher.Search(ctx, StrategySummarization, SearchRequest{
		Query:      query,
		ActorID:    t.actorID,
		SessionID:  t.sessionID,
		MaxResults: ToolMaxResults,
	})
}

// SearchUserPreferenceMemory returns the actor's stored preferences. The
// preference set is small, so it is listed in full rather than matched
// against query.
func (t *Tool) SearchUserPreferenceMemory(ctx context.Context, query string) ([]string, error) {
	t.logger.DebugContext(ctx, "memory: user preference search",
		"actor_id", t.actorID,
		"query_len", len(query),
	)
	return t.searcher.Search(ctx, StrategyUserPreference, SearchRequest{
		ActorID:    t.actorID,
		MaxResults: ToolMaxResults,
	})
}
