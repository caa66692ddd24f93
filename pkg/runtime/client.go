// Package runtime invokes a hosted agent runtime on behalf of an
// authenticated caller.
//
// The client forwards the caller's bearer token unchanged, so the runtime
// performs its own authorization; the gateway never mints credentials of
// its own. Each call is a single attempt bounded by [Config.RequestTimeout].
//
// # Errors
//
// All errors are [*sserr.Error] values:
//   - [sserr.CodeUpstreamStatus]: the runtime answered with a non-2xx status
//     (the status is in Details["status"])
//   - [sserr.CodeUpstreamTransport]: the request could not be sent or the
//     reply could not be read
//   - [sserr.CodeUpstreamTimeout]: the deadline expired
package runtime

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	sserr "github.com/StricklySoft/agentgate/pkg/errors"
	"github.com/StricklySoft/agentgate/pkg/models"
)

// tracerName is the OpenTelemetry instrumentation scope name for this package.
const tracerName = "github.com/StricklySoft/agentgate/pkg/runtime"

// HeaderSessionID carries the runtime session id.
const HeaderSessionID = "X-Amzn-Bedrock-AgentCore-Runtime-Session-Id"

// HTTPDoer sends HTTP requests. [*http.Client] satisfies it.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Invoker is the operation the gateway depends on. [*Client] implements it.
type Invoker interface {
	Invoke(ctx context.Context, inv Invocation) (*Reply, error)
}

// Invocation is one prompt forwarded to the runtime.
type Invocation struct {
	// Prompt is the caller's prompt, forwarded verbatim.
	Prompt string

	// SessionID is the effective runtime session id.
	SessionID string

	// Authorization is the caller's Authorization header value, forwarded
	// unchanged.
	Authorization string
}

// Reply is a successful runtime response.
type Reply struct {
	// Body is the reply text, verbatim.
	Body string

	// Status is the 2xx HTTP status the runtime returned.
	Status int

	// Truncated is set when the body exceeded MaxResponseBytes.
	Truncated bool
}

// Client invokes the agent runtime over HTTP. A Client is safe for
// concurrent use by multiple goroutines.
type Client struct {
	doer   HTTPDoer
	config *Config
	tracer trace.Tracer
	logger *slog.Logger
}

// Compile-time interface compliance check.
var _ Invoker = (*Client)(nil)

// NewClient validates cfg and builds a client whose transport honors the
// configured connect timeout.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, sserr.Wrap(err, sserr.CodeValidation, "runtime: invalid configuration")
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{
		Timeout:   cfg.ConnectTimeout,
		KeepAlive: 30 * time.Second,
	}).DialContext
	transport.TLSHandshakeTimeout = cfg.ConnectTimeout

	return NewFromDoer(&http.Client{Transport: transport}, &cfg, logger), nil
}

// NewFromDoer creates a Client around an existing [HTTPDoer]. cfg is used
// as given; callers are expected to have validated it. Intended for tests.
func NewFromDoer(doer HTTPDoer, cfg *Config, logger *slog.Logger) *Client {
	if cfg == nil {
		cfg = &Config{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		doer:   doer,
		config: cfg,
		tracer: otel.Tracer(tracerName),
		logger: logger,
	}
}

// Invoke POSTs {prompt, sessionId} to the runtime with the caller's
// Authorization header and the session id header, and returns the reply on
// a 2xx status.
func (c *Client) Invoke(ctx context.Context, inv Invocation) (*Reply, error) {
	ctx, span := c.tracer.Start(ctx, "runtime.Invoke",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("agent.session_id", inv.SessionID),
			attribute.String("http.request.method", http.MethodPost),
		),
	)
	defer span.End()

	reply, err := c.invoke(ctx, inv)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("http.response.status_code", reply.Status))
	span.SetStatus(codes.Ok, "")
	return reply, nil
}

func (c *Client) invoke(ctx context.Context, inv Invocation) (*Reply, error) {
	if c.config.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.RequestTimeout)
		defer cancel()
	}

	payload, err := json.Marshal(models.InvokeRequest{Prompt: inv.Prompt, SessionID: inv.SessionID})
	if err != nil {
		return nil, sserr.Wrap(err, sserr.CodeInternal, "runtime: failed to encode request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.InvocationURL(), bytes.NewReader(payload))
	if err != nil {
		return nil, sserr.Wrap(err, sserr.CodeInternalConfiguration, "runtime: failed to build request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", inv.Authorization)
	req.Header.Set(HeaderSessionID, inv.SessionID)

	resp, err := c.doer.Do(req)
	if err != nil {
		return nil, wrapError(ctx, err, "runtime: request failed")
	}
	defer func() { _ = resp.Body.Close() }()

	limit := c.config.MaxResponseBytes
	if limit <= 0 {
		limit = DefaultMaxResponseBytes
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, wrapError(ctx, err, "runtime: failed to read reply")
	}
	truncated := int64(len(body)) > limit
	if truncated {
		body = trimToRune(body[:limit])
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.ErrorContext(ctx, "runtime: invocation rejected",
			"status", resp.StatusCode,
			"session_id", inv.SessionID,
			"body_bytes", len(body),
		)
		return nil, sserr.Upstream(resp.StatusCode)
	}

	if truncated {
		c.logger.WarnContext(ctx, "runtime: reply truncated",
			"limit_bytes", limit,
			"session_id", inv.SessionID,
		)
	}
	return &Reply{Body: string(body), Status: resp.StatusCode, Truncated: truncated}, nil
}

// trimToRune drops a trailing partial UTF-8 sequence left by a byte cut.
func trimToRune(b []byte) []byte {
	for i := len(b) - 1; i >= 0 && i >= len(b)-utf8.UTFMax; i-- {
		if !utf8.RuneStart(b[i]) {
			continue
		}
		if !utf8.FullRune(b[i:]) {
			return b[:i]
		}
		break
	}
	return b
}

// wrapError classifies a transport failure. A deadline, whether surfaced by
// the context or by the network stack, is [sserr.CodeUpstreamTimeout].
func wrapError(ctx context.Context, err error, message string) *sserr.Error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(ctx.Err(), context.DeadlineExceeded) ||
		(errors.As(err, &netErr) && netErr.Timeout()) {
		return sserr.Wrap(err, sserr.CodeUpstreamTimeout, fmt.Sprintf("%s: deadline exceeded", message))
	}
	return sserr.Wrap(err, sserr.CodeUpstreamTransport, message)
}
