// Package gateway authenticates agent invocations and forwards them to the
// agent runtime.
//
// [InvocationGateway.Handle] takes one framework-independent [Request]
// through a fixed pipeline:
//
//	received → authenticated → downstream_invoked → completed
//
// The Authorization header is checked first; a request without one, or
// with a token that fails validation, is answered with 401 before the body
// is read. The body must then carry a non-blank prompt (400 otherwise).
// The caller's token is forwarded to the runtime unchanged together with
// the effective session id. A 2xx reply becomes a 200 carrying the reply
// text, the session id and the caller's subject; anything else becomes a
// 500 UpstreamError. The runtime is called once; nothing is retried.
//
// Callers only ever see the error category and a generic message. The
// specific failure kind is logged and counted in metrics.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/StricklySoft/agentgate/pkg/auth"
	sserr "github.com/StricklySoft/agentgate/pkg/errors"
	"github.com/StricklySoft/agentgate/pkg/models"
	"github.com/StricklySoft/agentgate/pkg/runtime"
)

// tracerName is the OpenTelemetry instrumentation scope name for this package.
const tracerName = "github.com/StricklySoft/agentgate/pkg/gateway"

// Caller-visible messages.
const (
	MessageMissingAuthorization = "Missing Authorization header"
	MessageInvalidToken         = "Invalid or expired token"
	MessageInternal             = "Internal server error"
	messageInvokeFailed         = "Failed to invoke agent"
)

// Validator checks a bearer token. [*auth.TokenValidator] satisfies it.
type Validator interface {
	Validate(ctx context.Context, rawToken string) (*auth.Principal, error)
}

// InvocationGateway handles agent invocations. It keeps no per-request
// state and is safe for concurrent use.
type InvocationGateway struct {
	validator Validator
	invoker   runtime.Invoker
	metrics   *Metrics
	logger    *slog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// Option customizes an [InvocationGateway].
type Option func(*InvocationGateway)

// WithMetrics records invocations in m.
func WithMetrics(m *Metrics) Option {
	return func(g *InvocationGateway) { g.metrics = m }
}

// WithLogger sets the logger. Defaults to [slog.Default].
func WithLogger(l *slog.Logger) Option {
	return func(g *InvocationGateway) { g.logger = l }
}

// WithClock sets the time source for error timestamps.
func WithClock(now func() time.Time) Option {
	return func(g *InvocationGateway) { g.now = now }
}

// New creates a gateway that authenticates with validator and forwards to
// invoker.
func New(validator Validator, invoker runtime.Invoker, opts ...Option) *InvocationGateway {
	g := &InvocationGateway{
		validator: validator,
		invoker:   invoker,
		logger:    slog.Default(),
		tracer:    otel.Tracer(tracerName),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Handle runs one invocation and always returns a response. A panic
// anywhere in the pipeline is recovered into a 500 InternalError.
func (g *InvocationGateway) Handle(ctx context.Context, req *Request) (resp *Response) {
	inv := models.NewInvocation()
	logger := g.logger.With("request_id", inv.ID)

	ctx, span := g.tracer.Start(ctx, "gateway.Handle",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attribute.String("gateway.request_id", inv.ID)),
	)
	defer span.End()

	g.metrics.begin()
	defer func() {
		if r := recover(); r != nil {
			logger.ErrorContext(ctx, "gateway: panic while handling invocation",
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()),
			)
			resp = ErrorResponse(sserr.Internal(MessageInternal), MessageInternal, g.now())
			inv.Abort(resp.Status)
		}
		span.SetAttributes(
			attribute.String("gateway.state", inv.State.String()),
			attribute.Int("http.response.status_code", resp.Status),
		)
		if resp.Status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, inv.State.String())
		}
		g.metrics.end(inv)
		logger.InfoContext(ctx, "gateway: invocation finished",
			"state", inv.State.String(),
			"status", resp.Status,
			"user_id", inv.UserID,
			"session_id", inv.SessionID,
			"duration_ms", inv.Duration().Milliseconds(),
		)
	}()

	return g.handle(ctx, logger, inv, req)
}

func (g *InvocationGateway) handle(ctx context.Context, logger *slog.Logger, inv *models.Invocation, req *Request) *Response {
	if req == nil {
		req = &Request{}
	}

	authorization := strings.TrimSpace(req.Headers.Get(auth.HeaderAuthorization))
	if authorization == "" {
		return g.fail(inv, models.InvocationStateRejected,
			sserr.Unauthenticated(MessageMissingAuthorization), MessageMissingAuthorization)
	}

	principal, err := g.validator.Validate(ctx, authorization)
	if err != nil {
		kind, _ := auth.KindOf(err)
		g.metrics.validationFailure(kind)
		logger.WarnContext(ctx, "gateway: token rejected",
			"failure_kind", kind.String(),
			"error", err,
		)
		return g.fail(inv, models.InvocationStateRejected,
			sserr.Wrap(err, kind.Code(), MessageInvalidToken), MessageInvalidToken)
	}
	inv.UserID = principal.Subject
	if err := inv.Advance(models.InvocationStateAuthenticated); err != nil {
		return g.fail(inv, models.InvocationStateFailed, sserr.Wrap(err, sserr.CodeInternal, MessageInternal), MessageInternal)
	}

	if req.BodyErr != nil {
		e := sserr.FromError(req.BodyErr)
		logger.InfoContext(ctx, "gateway: request body unreadable",
			"user_id", inv.UserID,
			"error", req.BodyErr,
		)
		return g.fail(inv, models.InvocationStateRejected, e, e.Message)
	}

	body, err := models.DecodeInvokeRequest(req.Body)
	if err != nil {
		e := sserr.FromError(err)
		logger.InfoContext(ctx, "gateway: bad request",
			"user_id", inv.UserID,
			"error", err,
		)
		return g.fail(inv, models.InvocationStateRejected, e, e.Message)
	}
	inv.SessionID = body.EffectiveSessionID()

	if err := inv.Advance(models.InvocationStateDownstreamInvoked); err != nil {
		return g.fail(inv, models.InvocationStateFailed, sserr.Wrap(err, sserr.CodeInternal, MessageInternal), MessageInternal)
	}

	start := time.Now()
	reply, err := g.invoker.Invoke(ctx, runtime.Invocation{
		Prompt:        body.Prompt,
		SessionID:     inv.SessionID,
		Authorization: authorization,
	})
	if err != nil {
		e := sserr.FromError(err)
		g.metrics.downstream(downstreamResult(e), time.Since(start))
		logger.ErrorContext(ctx, "gateway: agent runtime invocation failed",
			"user_id", inv.UserID,
			"session_id", inv.SessionID,
			"code", e.Code.String(),
			"error", err,
		)
		return g.fail(inv, models.InvocationStateFailed, e, upstreamMessage(e))
	}
	g.metrics.downstream("success", time.Since(start))

	_ = inv.Finish(models.InvocationStateCompleted, http.StatusOK)
	return jsonResponse(http.StatusOK, models.InvokeResponse{
		Response:  reply.Body,
		SessionID: inv.SessionID,
		UserID:    inv.UserID,
		Truncated: reply.Truncated,
	})
}

// fail finishes inv in state and renders err with the caller message.
func (g *InvocationGateway) fail(inv *models.Invocation, state models.InvocationState, err *sserr.Error, message string) *Response {
	resp := ErrorResponse(err, message, g.now())
	if !inv.IsTerminal() {
		_ = inv.Finish(state, resp.Status)
	}
	return resp
}

// upstreamMessage describes a runtime failure without leaking transport
// details. The downstream status is included when there is one.
func upstreamMessage(e *sserr.Error) string {
	switch e.Code {
	case sserr.CodeUpstreamStatus:
		if status, ok := e.Details["status"].(int); ok {
			return fmt.Sprintf("%s: agent runtime returned status %d", messageInvokeFailed, status)
		}
		return messageInvokeFailed
	case sserr.CodeUpstreamTimeout:
		return messageInvokeFailed + ": agent runtime timed out"
	case sserr.CodeUpstreamTransport:
		return messageInvokeFailed + ": agent runtime unreachable"
	}
	if sserr.IsUpstream(e) {
		return messageInvokeFailed
	}
	return MessageInternal
}

// downstreamResult labels a failed runtime call for the latency histogram.
func downstreamResult(e *sserr.Error) string {
	switch e.Code {
	case sserr.CodeUpstreamStatus:
		return "status"
	case sserr.CodeUpstreamTimeout:
		return "timeout"
	case sserr.CodeUpstreamTransport:
		return "transport"
	default:
		return "error"
	}
}
