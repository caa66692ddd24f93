package models

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	sserr "github.com/StricklySoft/agentgate/pkg/errors"
)

// SessionIDPrefix prefixes generated runtime session ids.
const SessionIDPrefix = "session-"

// MinSessionIDLength is the shortest session id the agent runtime accepts.
// A generated id ("session-" plus a 36-character UUID) is 44 characters.
const MinSessionIDLength = 33

// NewSessionID returns a fresh runtime session id.
func NewSessionID() string {
	return SessionIDPrefix + uuid.New().String()
}

// InvokeRequest is the caller's request body.
type InvokeRequest struct {
	// Prompt is the text forwarded to the agent. Required; must contain a
	// non-whitespace character.
	Prompt string `json:"prompt"`

	// SessionID continues an existing runtime session. Optional; a new id
	// is generated when empty.
	SessionID string `json:"sessionId,omitempty"`
}

// DecodeInvokeRequest parses and validates a request body.
func DecodeInvokeRequest(body []byte) (*InvokeRequest, error) {
	if len(body) == 0 {
		return nil, sserr.New(sserr.CodeValidationRequired, "Request body is required")
	}
	var req InvokeRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, sserr.Wrap(err, sserr.CodeValidationFormat, "Request body is not valid JSON")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return &req, nil
}

// Validate checks the prompt and, when present, the session id.
func (r *InvokeRequest) Validate() error {
	if strings.TrimSpace(r.Prompt) == "" {
		return sserr.New(sserr.CodeValidationRequired, "Prompt is required")
	}
	if r.SessionID != "" && len(r.SessionID) < MinSessionIDLength {
		return sserr.Newf(sserr.CodeValidationRange,
			"Session ID must be at least %d characters", MinSessionIDLength)
	}
	return nil
}

// EffectiveSessionID returns the caller's session id, or a generated one
// when none was supplied.
func (r *InvokeRequest) EffectiveSessionID() string {
	if r.SessionID != "" {
		return r.SessionID
	}
	return NewSessionID()
}

// InvokeResponse is the success body returned to the caller.
type InvokeResponse struct {
	// Response is the agent runtime's reply, verbatim.
	Response string `json:"response"`

	// SessionID is the session the reply belongs to.
	SessionID string `json:"sessionId"`

	// UserID is the authenticated principal's subject.
	UserID string `json:"userId"`

	// Truncated is set when Response was cut at the runtime reply limit.
	Truncated bool `json:"truncated,omitempty"`
}

// ErrorResponse is the body of every non-2xx gateway response.
type ErrorResponse struct {
	Message   string `json:"message"`
	Error     string `json:"error"`
	Status    int    `json:"status"`
	Timestamp string `json:"timestamp"`
}

// NewErrorResponse builds an error body stamped with now in RFC 3339.
func NewErrorResponse(status int, label, message string, now time.Time) ErrorResponse {
	return ErrorResponse{
		Message:   message,
		Error:     label,
		Status:    status,
		Timestamp: now.UTC().Format(time.RFC3339),
	}
}
