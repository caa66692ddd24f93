package memory

import (
	"strings"

	sserr "github.com/StricklySoft/agentgate/pkg/errors"
)

// DefaultMaxResults applies when a search asks for zero or fewer results.
const DefaultMaxResults = 4

// ToolMaxResults is the result limit used by [Tool] searches.
const ToolMaxResults = 10

// SearchRequest asks for memories related to Query for one actor. SessionID
// is optional and only narrows the search when the strategy's namespace
// template contains {sessionId}.
type SearchRequest struct {
	Query      string `json:"query"`
	ActorID    string `json:"actorId"`
	SessionID  string `json:"sessionId,omitempty"`
	MaxResults int    `json:"maxResults,omitempty"`
}

// Limit returns MaxResults, or [DefaultMaxResults] when it is not positive.
func (r SearchRequest) Limit() int {
	if r.MaxResults <= 0 {
		return DefaultMaxResults
	}
	return r.MaxResults
}

// Validate checks that the request names an actor.
func (r SearchRequest) Validate() error {
	if strings.TrimSpace(r.ActorID) == "" {
		return sserr.New(sserr.CodeValidationRequired, "memory: actor id is required")
	}
	return nil
}

// RetrieveRequest is a fully resolved lookup against the record store.
// An empty Query lists the namespace instead of matching text.
type RetrieveRequest struct {
	MemoryID   string `json:"memory_id"`
	StrategyID string `json:"strategy_id"`
	Namespace  string `json:"namespace"`
	Query      string `json:"query,omitempty"`
	MaxResults int    `json:"max_results"`
}

// Record is one stored memory.
type Record struct {
	ID         string `json:"id"`
	Content    string `json:"content"`
	Namespace  string `json:"namespace,omitempty"`
	StrategyID string `json:"strategy_id,omitempty"`
}
