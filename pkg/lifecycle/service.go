package lifecycle

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	sserr "github.com/StricklySoft/agentgate/pkg/errors"
)

// tracerName is the OpenTelemetry instrumentation scope name for this package.
const tracerName = "github.com/StricklySoft/agentgate/pkg/lifecycle"

// StateChangeHandler is called after every state transition. Handlers run
// synchronously under the service's state lock and must not call lifecycle
// methods on the same service. A panicking handler is recovered and logged.
type StateChangeHandler func(old, new State)

// Hook runs during a transition. A non-nil error moves the service to
// [StateFailed]. Hooks run outside the state lock and may read the state.
type Hook func(ctx context.Context) error

// Service tracks the lifecycle of the gateway process. Create one with
// [ServiceBuilder]. A Service is safe for concurrent use.
type Service struct {
	name    string
	version string

	mu        sync.RWMutex
	state     State
	startedAt *time.Time

	checks        []Check
	tracer        trace.Tracer
	logger        *slog.Logger
	onStart       Hook
	onDrain       Hook
	onStop        Hook
	stateHandlers []StateChangeHandler
}

// Name returns the service name.
func (s *Service) Name() string {
	return s.name
}

// Version returns the service version.
func (s *Service) Version() string {
	return s.version
}

// State returns the current state.
func (s *Service) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Uptime returns the time since the service entered [StateRunning], or
// zero when it is not running or draining.
func (s *Service) Uptime() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.startedAt == nil {
		return 0
	}
	return time.Since(*s.startedAt)
}

// Live reports whether the process should be kept alive. Only a failed
// service is reported as not live.
func (s *Service) Live(_ context.Context) error {
	if state := s.State(); state == StateFailed {
		return sserr.Newf(sserr.CodeUnavailable, "lifecycle: service is %s", state)
	}
	return nil
}

// Ready runs the readiness checks and returns the report. The service is
// ready when it is running and no critical check fails. Checks are skipped
// while the service is not running.
func (s *Service) Ready(ctx context.Context) Report {
	ctx, span := s.tracer.Start(ctx, "lifecycle.Ready")
	defer span.End()

	state := s.State()
	report := Report{
		State:   state,
		Version: s.version,
		Uptime:  s.Uptime(),
		Checks:  []CheckResult{},
	}
	if state != StateRunning {
		span.SetAttributes(attribute.Bool("lifecycle.ready", false))
		return report
	}

	report.Checks = runChecks(ctx, s.checks)
	report.Ready = true
	for _, r := range report.Checks {
		if !r.OK {
			s.logger.WarnContext(ctx, "lifecycle: readiness check failed",
				"check", r.Name,
				"critical", r.Critical,
				"error", r.Error,
			)
			if r.Critical {
				report.Ready = false
			}
		}
	}
	span.SetAttributes(attribute.Bool("lifecycle.ready", report.Ready))
	return report
}

// SetState validates and applies a transition, then notifies the state
// change handlers. An invalid transition returns [sserr.CodeInternal].
func (s *Service) SetState(new State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old := s.state
	if !ValidTransition(old, new) {
		return sserr.Newf(sserr.CodeInternal,
			"lifecycle: invalid state transition from %q to %q", old, new)
	}
	s.state = new

	switch new {
	case StateRunning:
		if s.startedAt == nil {
			now := time.Now().UTC()
			s.startedAt = &now
		}
	case StateStopped, StateFailed:
		s.startedAt = nil
	}

	for _, h := range s.stateHandlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					s.logger.Error("lifecycle: state change handler panicked",
						"panic", r,
						"old_state", string(old),
						"new_state", string(new),
					)
				}
			}()
			h(old, new)
		}()
	}
	return nil
}

// Start moves the service through [StateStarting] to [StateRunning],
// running the OnStart hook in between.
func (s *Service) Start(ctx context.Context) error {
	return s.transition(ctx, "lifecycle.Start", StateStarting, StateRunning, s.onStart)
}

// Drain moves a running service to [StateDraining] and runs the OnDrain
// hook. Readiness reports not-ready from the moment Drain is called.
func (s *Service) Drain(ctx context.Context) error {
	return s.transition(ctx, "lifecycle.Drain", StateDraining, "", s.onDrain)
}

// Resume returns a draining service to [StateRunning].
func (s *Service) Resume(ctx context.Context) error {
	return s.transition(ctx, "lifecycle.Resume", StateRunning, "", nil)
}

// Stop moves the service through [StateStopping] to [StateStopped],
// running the OnStop hook in between. Stopping a service that is already
// in a terminal state is a no-op.
func (s *Service) Stop(ctx context.Context) error {
	if s.State().IsTerminal() {
		return nil
	}
	return s.transition(ctx, "lifecycle.Stop", StateStopping, StateStopped, s.onStop)
}

// transition enters via, runs hook, then enters final when it is set.
func (s *Service) transition(ctx context.Context, spanName string, via, final State, hook Hook) error {
	ctx, span := s.tracer.Start(ctx, spanName,
		trace.WithAttributes(attribute.String("service.name", s.name)))
	defer span.End()

	fail := func(err error) error {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	if err := ctx.Err(); err != nil {
		return fail(sserr.Wrapf(err, sserr.CodeTimeout, "lifecycle: %s canceled", via))
	}
	if err := s.SetState(via); err != nil {
		return fail(err)
	}
	s.logger.InfoContext(ctx, "lifecycle: state changed",
		"service", s.name,
		"state", via.String(),
	)

	if hook != nil {
		if err := hook(ctx); err != nil {
			s.logger.ErrorContext(ctx, "lifecycle: hook failed",
				"service", s.name,
				"state", via.String(),
				"error", err,
			)
			_ = s.SetState(StateFailed)
			return fail(sserr.Wrapf(err, sserr.CodeInternal, "lifecycle: %s hook failed", via))
		}
	}

	if final != "" {
		if err := s.SetState(final); err != nil {
			return fail(err)
		}
		s.logger.InfoContext(ctx, "lifecycle: state changed",
			"service", s.name,
			"state", final.String(),
		)
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

// ServiceBuilder constructs a [Service].
//
//	svc, err := lifecycle.NewServiceBuilder("agentgate", version).
//	    WithCheck(lifecycle.Check{Name: "jwks", Critical: true, Probe: resolver.Warm}).
//	    WithOnStop(func(ctx context.Context) error { return srv.Shutdown(ctx) }).
//	    Build()
type ServiceBuilder struct {
	name          string
	version       string
	checks        []Check
	logger        *slog.Logger
	onStart       Hook
	onDrain       Hook
	onStop        Hook
	stateHandlers []StateChangeHandler
}

// NewServiceBuilder starts a builder for a service called name.
func NewServiceBuilder(name, version string) *ServiceBuilder {
	return &ServiceBuilder{name: name, version: version}
}

// WithCheck adds a readiness check.
func (b *ServiceBuilder) WithCheck(c Check) *ServiceBuilder {
	b.checks = append(b.checks, c)
	return b
}

// WithLogger sets the logger. Defaults to [slog.Default].
func (b *ServiceBuilder) WithLogger(logger *slog.Logger) *ServiceBuilder {
	b.logger = logger
	return b
}

// WithOnStart sets the hook run while starting.
func (b *ServiceBuilder) WithOnStart(hook Hook) *ServiceBuilder {
	b.onStart = hook
	return b
}

// WithOnDrain sets the hook run when draining begins.
func (b *ServiceBuilder) WithOnDrain(hook Hook) *ServiceBuilder {
	b.onDrain = hook
	return b
}

// WithOnStop sets the hook run while stopping.
func (b *ServiceBuilder) WithOnStop(hook Hook) *ServiceBuilder {
	b.onStop = hook
	return b
}

// OnStateChange registers a handler called on every transition, in
// registration order.
func (b *ServiceBuilder) OnStateChange(handler StateChangeHandler) *ServiceBuilder {
	b.stateHandlers = append(b.stateHandlers, handler)
	return b
}

// Build validates the builder and returns a service in [StateUnknown].
func (b *ServiceBuilder) Build() (*Service, error) {
	if b.name == "" {
		return nil, sserr.New(sserr.CodeValidationRequired, "lifecycle: service name must not be empty")
	}
	if b.version == "" {
		return nil, sserr.New(sserr.CodeValidationRequired, "lifecycle: service version must not be empty")
	}
	seen := make(map[string]bool, len(b.checks))
	for _, c := range b.checks {
		if c.Name == "" || c.Probe == nil {
			return nil, sserr.New(sserr.CodeValidation, "lifecycle: check needs a name and a probe")
		}
		if seen[c.Name] {
			return nil, sserr.Newf(sserr.CodeValidation, "lifecycle: duplicate check %q", c.Name)
		}
		seen[c.Name] = true
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}
	checks := make([]Check, len(b.checks))
	copy(checks, b.checks)
	handlers := make([]StateChangeHandler, len(b.stateHandlers))
	copy(handlers, b.stateHandlers)

	return &Service{
		name:          b.name,
		version:       b.version,
		state:         StateUnknown,
		checks:        checks,
		tracer:        otel.Tracer(tracerName),
		logger:        logger,
		onStart:       b.onStart,
		onDrain:       b.onDrain,
		onStop:        b.onStop,
		stateHandlers: handlers,
	}, nil
}
