package lifecycle

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StricklySoft/agentgate/internal/testutil"
	sserr "github.com/StricklySoft/agentgate/pkg/errors"
)

func okProbe(context.Context) error { return nil }

func newTestService(t *testing.T, b *ServiceBuilder) *Service {
	t.Helper()
	svc, err := b.WithLogger(testutil.DiscardLogger()).Build()
	require.NoError(t, err)
	return svc
}

func TestServiceBuilder_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		b    *ServiceBuilder
	}{
		{"empty name", NewServiceBuilder("", "1.0.0")},
		{"empty version", NewServiceBuilder("agentgate", "")},
		{"check without probe", NewServiceBuilder("agentgate", "1").WithCheck(Check{Name: "jwks"})},
		{"check without name", NewServiceBuilder("agentgate", "1").WithCheck(Check{Probe: okProbe})},
		{"duplicate check", NewServiceBuilder("agentgate", "1").
			WithCheck(Check{Name: "redis", Probe: okProbe}).
			WithCheck(Check{Name: "redis", Probe: okProbe})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := tt.b.Build()
			require.Error(t, err)
			assert.True(t, sserr.IsValidation(err))
		})
	}
}

func TestService_StartStop(t *testing.T) {
	t.Parallel()
	var (
		mu          sync.Mutex
		transitions []string
		started     bool
		stopped     bool
	)
	svc := newTestService(t, NewServiceBuilder("agentgate", "1.2.3").
		WithOnStart(func(context.Context) error { started = true; return nil }).
		WithOnStop(func(context.Context) error { stopped = true; return nil }).
		OnStateChange(func(old, new State) {
			mu.Lock()
			defer mu.Unlock()
			transitions = append(transitions, old.String()+">"+new.String())
		}))

	assert.Equal(t, StateUnknown, svc.State())
	assert.Equal(t, "agentgate", svc.Name())
	assert.Equal(t, "1.2.3", svc.Version())

	require.NoError(t, svc.Start(context.Background()))
	assert.True(t, started)
	assert.Equal(t, StateRunning, svc.State())
	assert.Positive(t, svc.Uptime())

	require.NoError(t, svc.Stop(context.Background()))
	assert.True(t, stopped)
	assert.Equal(t, StateStopped, svc.State())
	assert.Zero(t, svc.Uptime())

	require.NoError(t, svc.Stop(context.Background()), "stop from terminal state is a no-op")

	assert.Equal(t, []string{
		"unknown>starting", "starting>running",
		"running>stopping", "stopping>stopped",
	}, transitions)
}

func TestService_StartHookFailure(t *testing.T) {
	t.Parallel()
	svc := newTestService(t, NewServiceBuilder("agentgate", "1").
		WithOnStart(func(context.Context) error { return errors.New("jwks unreachable") }))

	err := svc.Start(context.Background())
	testutil.RequireErrorCode(t, err, sserr.CodeInternal)
	assert.Equal(t, StateFailed, svc.State())
	assert.Error(t, svc.Live(context.Background()))

	// A failed service may be restarted.
	svc.onStart = nil
	require.NoError(t, svc.Start(context.Background()))
	assert.NoError(t, svc.Live(context.Background()))
}

func TestService_CanceledContext(t *testing.T) {
	t.Parallel()
	svc := newTestService(t, NewServiceBuilder("agentgate", "1"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := svc.Start(ctx)
	testutil.RequireErrorCode(t, err, sserr.CodeTimeout)
	assert.Equal(t, StateUnknown, svc.State())
}

func TestService_InvalidTransition(t *testing.T) {
	t.Parallel()
	svc := newTestService(t, NewServiceBuilder("agentgate", "1"))

	err := svc.Drain(context.Background())
	testutil.RequireErrorCode(t, err, sserr.CodeInternal)
	assert.Equal(t, StateUnknown, svc.State())
}

func TestService_DrainAndResume(t *testing.T) {
	t.Parallel()
	drained := false
	svc := newTestService(t, NewServiceBuilder("agentgate", "1").
		WithCheck(Check{Name: "jwks", Critical: true, Probe: okProbe}).
		WithOnDrain(func(context.Context) error { drained = true; return nil }))
	ctx := context.Background()
	require.NoError(t, svc.Start(ctx))
	require.True(t, svc.Ready(ctx).Ready)

	require.NoError(t, svc.Drain(ctx))
	assert.True(t, drained)
	assert.Equal(t, StateDraining, svc.State())
	assert.NoError(t, svc.Live(ctx))
	assert.False(t, svc.Ready(ctx).Ready)

	require.NoError(t, svc.Resume(ctx))
	assert.True(t, svc.Ready(ctx).Ready)
}

func TestService_Ready(t *testing.T) {
	t.Parallel()
	var cacheErr error
	svc := newTestService(t, NewServiceBuilder("agentgate", "1").
		WithCheck(Check{Name: "jwks", Critical: true, Probe: okProbe}).
		WithCheck(Check{Name: "cache", Probe: func(context.Context) error { return cacheErr }}))
	ctx := context.Background()

	report := svc.Ready(ctx)
	assert.False(t, report.Ready, "not ready before start")
	assert.Empty(t, report.Checks)

	require.NoError(t, svc.Start(ctx))

	report = svc.Ready(ctx)
	assert.True(t, report.Ready)
	require.Len(t, report.Checks, 2)
	assert.Equal(t, "jwks", report.Checks[0].Name)
	assert.Equal(t, "cache", report.Checks[1].Name)

	cacheErr = errors.New("connection refused")
	report = svc.Ready(ctx)
	assert.True(t, report.Ready, "non-critical failure keeps the service ready")
	assert.False(t, report.Checks[1].OK)
	assert.Equal(t, "connection refused", report.Checks[1].Error)

	data, err := json.Marshal(report)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"state":"running"`)
}

func TestService_NotReadyOnCriticalFailure(t *testing.T) {
	t.Parallel()
	logger, logs := testutil.NewCaptureLogger()
	svc, err := NewServiceBuilder("agentgate", "1").
		WithLogger(logger).
		WithCheck(Check{Name: "jwks", Critical: true, Probe: func(context.Context) error {
			return errors.New("key set refresh failed")
		}}).
		Build()
	require.NoError(t, err)
	require.NoError(t, svc.Start(context.Background()))

	report := svc.Ready(context.Background())
	assert.False(t, report.Ready)
	assert.Contains(t, logs.String(), "lifecycle: readiness check failed")
}

func TestService_StateHandlerPanicRecovered(t *testing.T) {
	t.Parallel()
	svc := newTestService(t, NewServiceBuilder("agentgate", "1").
		OnStateChange(func(State, State) { panic("boom") }))

	require.NoError(t, svc.Start(context.Background()))
	assert.Equal(t, StateRunning, svc.State())
}

func TestService_ConcurrentReads(t *testing.T) {
	t.Parallel()
	svc := newTestService(t, NewServiceBuilder("agentgate", "1").
		WithCheck(Check{Name: "jwks", Critical: true, Probe: okProbe}))
	require.NoError(t, svc.Start(context.Background()))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = svc.Ready(context.Background())
			_ = svc.State()
			_ = svc.Uptime()
		}()
	}
	wg.Wait()
}
