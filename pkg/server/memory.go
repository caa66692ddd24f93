package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	sserr "github.com/StricklySoft/agentgate/pkg/errors"
	"github.com/StricklySoft/agentgate/pkg/gateway"
	"github.com/StricklySoft/agentgate/pkg/memory"
)

// MemorySearchRequest is the body of POST /memory/search.
type MemorySearchRequest struct {
	Kind      string `json:"kind" binding:"required"`
	Query     string `json:"query"`
	SessionID string `json:"sessionId"`
}

// MemorySearchResponse lists the matching snippets in retrieval order.
type MemorySearchResponse struct {
	Kind    string   `json:"kind"`
	ActorID string   `json:"actorId"`
	Results []string `json:"results"`
}

// handleMemorySearch runs one memory tool search for the authenticated
// caller. The caller's subject is the actor; a caller cannot search
// another actor's memory.
func (s *Server) handleMemorySearch(c *gin.Context) {
	principal, ok := principalFrom(c)
	if !ok {
		abortWith(c, sserr.Unauthenticated(gateway.MessageMissingAuthorization), gateway.MessageMissingAuthorization)
		return
	}

	var req MemorySearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWith(c, sserr.Wrap(err, sserr.CodeValidationFormat, "decode memory search"),
			"Request body must be JSON with a kind")
		return
	}

	kind := memory.ParseStrategyKind(req.Kind)
	if !kind.Known() {
		abortWith(c, sserr.Newf(sserr.CodeValidationFormat, "unknown strategy kind %q", req.Kind),
			"Unknown memory kind; expected one of SEMANTIC, SUMMARIZATION, USER_PREFERENCE")
		return
	}
	if kind != memory.StrategyUserPreference && strings.TrimSpace(req.Query) == "" {
		abortWith(c, sserr.New(sserr.CodeValidationRequired, "query is required"), "Query is required")
		return
	}

	tool := memory.NewTool(s.memory, principal.Subject, req.SessionID, s.logger)
	ctx := c.Request.Context()

	var (
		results []string
		err     error
	)
	switch kind {
	case memory.StrategySemantic:
		results, err = tool.SearchSemanticMemory(ctx, req.Query)
	case memory.StrategySummarization:
		results, err = tool.SearchSummaryMemory(ctx, req.Query)
	case memory.StrategyUserPreference:
		results, err = tool.SearchUserPreferenceMemory(ctx, req.Query)
	}
	if err != nil {
		e := sserr.FromError(err)
		s.logger.ErrorContext(ctx, "server: memory search failed",
			"kind", kind.String(),
			"user_id", principal.Subject,
			"code", e.Code.String(),
			"error", err,
		)
		message := gateway.MessageInternal
		if sserr.IsClientError(e) {
			message = e.Message
		}
		abortWith(c, e, message)
		return
	}
	if results == nil {
		results = []string{}
	}

	for k, v := range gateway.ResponseHeaders() {
		c.Writer.Header()[k] = v
	}
	c.JSON(http.StatusOK, MemorySearchResponse{
		Kind:    kind.String(),
		ActorID: principal.Subject,
		Results: results,
	})
}
