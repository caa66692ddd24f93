// Package memory retrieves long-term conversational memory for an agent.
//
// A memory store holds records produced by extraction strategies. Each
// [Strategy] has a kind (semantic facts, session summaries, user
// preferences) and a namespace template that scopes its records to an
// actor, and optionally a session. A [Provider] loads the strategies of one
// memory from a [Catalog] and answers searches by kind, routing each kind
// to its handler. A kind with no strategy configured yields an empty
// result, never an error.
//
// Records are read through a [Retriever]. [QdrantRetriever] reads them
// from a Qdrant collection; [CachingRetriever] fronts any retriever with a
// Redis cache.
package memory

import (
	"strings"
)

// StrategyKind identifies what a memory strategy extracts.
type StrategyKind string

const (
	// StrategySemantic extracts facts from conversations.
	StrategySemantic StrategyKind = "SEMANTIC"

	// StrategySummarization summarizes sessions.
	StrategySummarization StrategyKind = "SUMMARIZATION"

	// StrategyUserPreference extracts user preferences.
	StrategyUserPreference StrategyKind = "USER_PREFERENCE"
)

// Known reports whether k is one of the supported kinds.
func (k StrategyKind) Known() bool {
	switch k {
	case StrategySemantic, StrategySummarization, StrategyUserPreference:
		return true
	}
	return false
}

// String returns the kind name.
func (k StrategyKind) String() string {
	return string(k)
}

// ParseStrategyKind normalizes s ("semantic", "USER_PREFERENCE", ...) to a
// StrategyKind. Unknown names are returned as-is; check with Known.
func ParseStrategyKind(s string) StrategyKind {
	return StrategyKind(strings.ToUpper(strings.TrimSpace(s)))
}

// DefaultNamespaceTemplate is used by strategies that declare no namespace.
const DefaultNamespaceTemplate = "/strategies/{memoryStrategyId}/actors/{actorId}"

// Namespace template placeholders.
const (
	PlaceholderActorID    = "{actorId}"
	PlaceholderStrategyID = "{memoryStrategyId}"
	PlaceholderSessionID  = "{sessionId}"
)

// Strategy is one extraction strategy configured on a memory.
type Strategy struct {
	ID         string       `json:"id" yaml:"id"`
	Name       string       `json:"name" yaml:"name"`
	Kind       StrategyKind `json:"kind" yaml:"kind"`
	Namespaces []string     `json:"namespaces,omitempty" yaml:"namespaces,omitempty"`
}

// NamespaceTemplate returns the strategy's first namespace, or
// [DefaultNamespaceTemplate] when it declares none.
func (s Strategy) NamespaceTemplate() string {
	if len(s.Namespaces) > 0 && s.Namespaces[0] != "" {
		return s.Namespaces[0]
	}
	return DefaultNamespaceTemplate
}

// Namespace renders the template for an actor and optional session.
// {sessionId} is left in place when sessionID is empty.
func (s Strategy) Namespace(actorID, sessionID string) string {
	ns := s.NamespaceTemplate()
	ns = strings.ReplaceAll(ns, PlaceholderActorID, actorID)
	ns = strings.ReplaceAll(ns, PlaceholderStrategyID, s.ID)
	if sessionID != "" {
		ns = strings.ReplaceAll(ns, PlaceholderSessionID, sessionID)
	}
	return ns
}
