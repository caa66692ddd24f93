package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	sserr "github.com/StricklySoft/agentgate/pkg/errors"
)

// ===========================================================================
// Mock Implementation
// ===========================================================================

type mockCmdable struct {
	mock.Mock
}

func (m *mockCmdable) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	args := m.Called(ctx, key, value, expiration)
	return args.Get(0).(*redis.StatusCmd)
}

func (m *mockCmdable) Get(ctx context.Context, key string) *redis.StringCmd {
	args := m.Called(ctx, key)
	return args.Get(0).(*redis.StringCmd)
}

func (m *mockCmdable) Ping(ctx context.Context) *redis.StatusCmd {
	args := m.Called(ctx)
	return args.Get(0).(*redis.StatusCmd)
}

func (m *mockCmdable) Close() error {
	args := m.Called()
	return args.Error(0)
}

func newStatusCmd(val string, err error) *redis.StatusCmd {
	cmd := redis.NewStatusCmd(context.Background())
	if err != nil {
		cmd.SetErr(err)
	} else {
		cmd.SetVal(val)
	}
	return cmd
}

func newStringCmd(val string, err error) *redis.StringCmd {
	cmd := redis.NewStringCmd(context.Background())
	if err != nil {
		cmd.SetErr(err)
	} else {
		cmd.SetVal(val)
	}
	return cmd
}

// newMiniredisClient wraps a go-redis client connected to an in-process
// miniredis server.
func newMiniredisClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewFromClient(rdb, &Config{}), mr
}

// ===========================================================================
// NewFromClient Tests
// ===========================================================================

func TestNewFromClient_WithConfig(t *testing.T) {
	t.Parallel()
	m := new(mockCmdable)

	cfg := &Config{DB: 3}
	client := NewFromClient(m, cfg)

	assert.Equal(t, cfg, client.config)
	assert.Equal(t, 3, client.dbIndex)
	assert.NotNil(t, client.tracer)
}

func TestNewFromClient_NilConfig(t *testing.T) {
	t.Parallel()
	client := NewFromClient(new(mockCmdable), nil)

	require.NotNil(t, client.config)
	assert.Equal(t, 0, client.dbIndex)
}

// ===========================================================================
// Command Tests (mock)
// ===========================================================================

func TestClient_Set_Success(t *testing.T) {
	t.Parallel()
	m := new(mockCmdable)
	m.On("Set", mock.Anything, "key1", "value1", 10*time.Minute).
		Return(newStatusCmd("OK", nil))

	client := NewFromClient(m, nil)
	require.NoError(t, client.Set(context.Background(), "key1", "value1", 10*time.Minute))

	m.AssertExpectations(t)
}

func TestClient_Set_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		cause error
		want  sserr.Code
	}{
		{"read only replica", errors.New("READONLY You can't write against a read only replica"), sserr.CodeInternalStore},
		{"deadline", context.DeadlineExceeded, sserr.CodeTimeoutStore},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m := new(mockCmdable)
			m.On("Set", mock.Anything, "key1", "value1", time.Duration(0)).
				Return(newStatusCmd("", tt.cause))

			err := NewFromClient(m, nil).Set(context.Background(), "key1", "value1", 0)
			require.Error(t, err)
			assert.Equal(t, tt.want, sserr.GetCode(err))
			assert.ErrorIs(t, err, tt.cause)
		})
	}
}

func TestClient_Get_Success(t *testing.T) {
	t.Parallel()
	m := new(mockCmdable)
	m.On("Get", mock.Anything, "key1").Return(newStringCmd("value1", nil))

	val, err := NewFromClient(m, nil).Get(context.Background(), "key1")
	require.NoError(t, err)
	assert.Equal(t, "value1", val)
}

func TestClient_Get_MissIsNotFound(t *testing.T) {
	t.Parallel()
	m := new(mockCmdable)
	m.On("Get", mock.Anything, "absent").Return(newStringCmd("", redis.Nil))

	_, err := NewFromClient(m, nil).Get(context.Background(), "absent")
	require.Error(t, err)
	assert.True(t, sserr.IsNotFound(err), "Get() miss = %v, want NF code", err)
	assert.ErrorIs(t, err, redis.Nil)
}

func TestClient_Get_FailureIsInternal(t *testing.T) {
	t.Parallel()
	m := new(mockCmdable)
	m.On("Get", mock.Anything, "key1").
		Return(newStringCmd("", errors.New("LOADING Redis is loading the dataset in memory")))

	_, err := NewFromClient(m, nil).Get(context.Background(), "key1")
	require.Error(t, err)
	assert.True(t, sserr.IsInternal(err))
	assert.False(t, sserr.IsNotFound(err))
}

func TestClient_Health(t *testing.T) {
	t.Parallel()

	t.Run("success", func(t *testing.T) {
		t.Parallel()
		m := new(mockCmdable)
		m.On("Ping", mock.Anything).Return(newStatusCmd("PONG", nil))
		require.NoError(t, NewFromClient(m, nil).Health(context.Background()))
	})

	t.Run("failure is unavailable", func(t *testing.T) {
		t.Parallel()
		m := new(mockCmdable)
		m.On("Ping", mock.Anything).Return(newStatusCmd("", errors.New("connection refused")))

		err := NewFromClient(m, nil).Health(context.Background())
		require.Error(t, err)
		assert.Equal(t, sserr.CodeUnavailableDependency, sserr.GetCode(err))
	})

	t.Run("applies a deadline", func(t *testing.T) {
		t.Parallel()
		m := new(mockCmdable)
		m.On("Ping", mock.MatchedBy(func(ctx context.Context) bool {
			_, ok := ctx.Deadline()
			return ok
		})).Return(newStatusCmd("PONG", nil))

		require.NoError(t, NewFromClient(m, nil).Health(context.Background()))
		m.AssertExpectations(t)
	})
}

func TestClient_Close(t *testing.T) {
	t.Parallel()
	m := new(mockCmdable)
	m.On("Close").Return(nil)

	require.NoError(t, NewFromClient(m, nil).Close())
	m.AssertExpectations(t)
}

// ===========================================================================
// Command Tests (miniredis)
// ===========================================================================

func TestClient_Miniredis_RoundTrip(t *testing.T) {
	t.Parallel()
	client, mr := newMiniredisClient(t)
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, "agentgate:k", "v", time.Minute))
	got, err := client.Get(ctx, "agentgate:k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)

	mr.FastForward(2 * time.Minute)
	_, err = client.Get(ctx, "agentgate:k")
	assert.True(t, sserr.IsNotFound(err), "expired key: got %v, want NF code", err)
}

func TestClient_Miniredis_SetOverwrites(t *testing.T) {
	t.Parallel()
	client, mr := newMiniredisClient(t)
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, "a", "1", 0))
	require.NoError(t, client.Set(ctx, "a", "2", time.Minute))
	got, err := mr.Get("a")
	require.NoError(t, err)
	assert.Equal(t, "2", got)
	assert.Equal(t, time.Minute, mr.TTL("a"))
}

func TestClient_Miniredis_ServerError(t *testing.T) {
	t.Parallel()
	client, mr := newMiniredisClient(t)

	mr.SetError("LOADING dataset")
	_, err := client.Get(context.Background(), "k")
	require.Error(t, err)
	assert.Equal(t, sserr.CodeInternalStore, sserr.GetCode(err))

	mr.SetError("")
	require.NoError(t, client.Health(context.Background()))
}

// ===========================================================================
// wrapError Tests
// ===========================================================================

func TestWrapError(t *testing.T) {
	t.Parallel()

	assert.Nil(t, wrapError(nil, "unused"))

	tests := []struct {
		name  string
		cause error
		want  sserr.Code
	}{
		{"deadline", context.DeadlineExceeded, sserr.CodeTimeoutStore},
		{"canceled", context.Canceled, sserr.CodeInternalStore},
		{"generic", errors.New("WRONGTYPE"), sserr.CodeInternalStore},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := wrapError(tt.cause, "command failed")
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.Code)
			assert.ErrorIs(t, got, tt.cause)
		})
	}
}
