package qdrant

import (
	"context"
	"errors"
	"testing"

	pb "github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	grpccodes "google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"

	sserr "github.com/StricklySoft/agentgate/pkg/errors"
)

// ===========================================================================
// Mock VectorDB
// ===========================================================================

type mockVectorDB struct {
	mock.Mock
}

func (m *mockVectorDB) CollectionExists(ctx context.Context, name string) (bool, error) {
	args := m.Called(ctx, name)
	return args.Bool(0), args.Error(1)
}

func (m *mockVectorDB) CreateCollection(ctx context.Context, req *pb.CreateCollection) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

func (m *mockVectorDB) CreateFieldIndex(ctx context.Context, req *pb.CreateFieldIndexCollection) (*pb.UpdateResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pb.UpdateResult), args.Error(1)
}

func (m *mockVectorDB) Upsert(ctx context.Context, req *pb.UpsertPoints) (*pb.UpdateResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pb.UpdateResult), args.Error(1)
}

func (m *mockVectorDB) Scroll(ctx context.Context, req *pb.ScrollPoints) ([]*pb.RetrievedPoint, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*pb.RetrievedPoint), args.Error(1)
}

func (m *mockVectorDB) HealthCheck(ctx context.Context) (*pb.HealthCheckReply, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pb.HealthCheckReply), args.Error(1)
}

func (m *mockVectorDB) Close() error {
	args := m.Called()
	return args.Error(0)
}

// ===========================================================================
// Tests
// ===========================================================================

func TestNewFromVectorDB(t *testing.T) {
	t.Parallel()
	m := &mockVectorDB{}
	cfg := &Config{Host: "localhost", GRPCPort: 6334}

	client := NewFromVectorDB(m, cfg)
	assert.Equal(t, cfg, client.config)
	assert.NotNil(t, client.tracer)

	require.NotNil(t, NewFromVectorDB(m, nil).config)
}

func TestClient_CollectionExists(t *testing.T) {
	t.Parallel()
	m := &mockVectorDB{}
	m.On("CollectionExists", mock.Anything, "agent_memory").Return(true, nil).Once()
	m.On("CollectionExists", mock.Anything, "broken").Return(false, errors.New("unavailable")).Once()

	client := NewFromVectorDB(m, nil)
	ok, err := client.CollectionExists(context.Background(), "agent_memory")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = client.CollectionExists(context.Background(), "broken")
	assert.Equal(t, sserr.CodeInternalStore, sserr.GetCode(err))
	m.AssertExpectations(t)
}

func TestClient_CreateCollection(t *testing.T) {
	t.Parallel()
	m := &mockVectorDB{}
	req := &pb.CreateCollection{CollectionName: "agent_memory"}
	m.On("CreateCollection", mock.Anything, req).Return(nil).Once()
	m.On("CreateCollection", mock.Anything, req).Return(errors.New("already exists")).Once()

	client := NewFromVectorDB(m, nil)
	require.NoError(t, client.CreateCollection(context.Background(), req))

	err := client.CreateCollection(context.Background(), req)
	require.Error(t, err)
	assert.True(t, sserr.IsInternal(err))
	m.AssertExpectations(t)
}

func TestClient_CreateFieldIndex(t *testing.T) {
	t.Parallel()
	m := &mockVectorDB{}
	req := &pb.CreateFieldIndexCollection{CollectionName: "agent_memory", FieldName: "namespace"}
	m.On("CreateFieldIndex", mock.Anything, req).
		Return(&pb.UpdateResult{Status: pb.UpdateStatus_Completed}, nil)

	require.NoError(t, NewFromVectorDB(m, nil).CreateFieldIndex(context.Background(), req))
	m.AssertExpectations(t)
}

func TestClient_Upsert(t *testing.T) {
	t.Parallel()
	m := &mockVectorDB{}
	req := &pb.UpsertPoints{
		CollectionName: "agent_memory",
		Points: []*pb.PointStruct{{
			Id:      pb.NewIDNum(1),
			Vectors: pb.NewVectors(0.1, 0.2),
			Payload: pb.NewValueMap(map[string]any{"content": "likes tea"}),
		}},
	}
	m.On("Upsert", mock.Anything, req).Return(&pb.UpdateResult{Status: pb.UpdateStatus_Completed}, nil).Once()
	m.On("Upsert", mock.Anything, req).Return(nil, errors.New("wrong vector size")).Once()

	client := NewFromVectorDB(m, nil)
	res, err := client.Upsert(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, pb.UpdateStatus_Completed, res.GetStatus())

	_, err = client.Upsert(context.Background(), req)
	assert.Equal(t, sserr.CodeInternalStore, sserr.GetCode(err))
}

func TestClient_Scroll(t *testing.T) {
	t.Parallel()
	m := &mockVectorDB{}
	req := &pb.ScrollPoints{
		CollectionName: "agent_memory",
		Filter:         &pb.Filter{Must: []*pb.Condition{pb.NewMatch("memory_id", "mem-1")}},
	}
	points := []*pb.RetrievedPoint{{
		Id:      pb.NewIDNum(7),
		Payload: pb.NewValueMap(map[string]any{"content": "prefers window seats"}),
	}}
	m.On("Scroll", mock.Anything, req).Return(points, nil)

	got, err := NewFromVectorDB(m, nil).Scroll(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "prefers window seats", got[0].GetPayload()["content"].GetStringValue())
}

func TestClient_Scroll_Timeouts(t *testing.T) {
	t.Parallel()

	for name, cause := range map[string]error{
		"context deadline": context.DeadlineExceeded,
		"grpc deadline":    grpcstatus.Error(grpccodes.DeadlineExceeded, "deadline exceeded"),
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			m := &mockVectorDB{}
			m.On("Scroll", mock.Anything, mock.Anything).Return(nil, cause)

			_, err := NewFromVectorDB(m, nil).Scroll(context.Background(), &pb.ScrollPoints{})
			require.Error(t, err)
			assert.Equal(t, sserr.CodeTimeoutStore, sserr.GetCode(err))
			assert.True(t, sserr.IsTimeout(err))
		})
	}
}

func TestClient_Health(t *testing.T) {
	t.Parallel()

	t.Run("success with default deadline", func(t *testing.T) {
		t.Parallel()
		m := &mockVectorDB{}
		m.On("HealthCheck", mock.MatchedBy(func(ctx context.Context) bool {
			_, ok := ctx.Deadline()
			return ok
		})).Return(&pb.HealthCheckReply{Title: "qdrant", Version: "1.12.6"}, nil)

		require.NoError(t, NewFromVectorDB(m, &Config{HealthTimeout: DefaultHealthTimeout}).Health(context.Background()))
		m.AssertExpectations(t)
	})

	t.Run("failure is unavailable", func(t *testing.T) {
		t.Parallel()
		m := &mockVectorDB{}
		m.On("HealthCheck", mock.Anything).Return(nil, grpcstatus.Error(grpccodes.Unavailable, "connection refused"))

		err := NewFromVectorDB(m, nil).Health(context.Background())
		require.Error(t, err)
		assert.Equal(t, sserr.CodeUnavailableDependency, sserr.GetCode(err))
	})
}

func TestClient_Close(t *testing.T) {
	t.Parallel()
	m := &mockVectorDB{}
	m.On("Close").Return(nil)

	require.NoError(t, NewFromVectorDB(m, nil).Close())
	m.AssertExpectations(t)
}

func TestWrapError(t *testing.T) {
	t.Parallel()
	assert.Nil(t, wrapError(nil, "unused"))

	got := wrapError(context.Canceled, "canceled")
	assert.Equal(t, sserr.CodeInternalStore, got.Code)
	assert.ErrorIs(t, got, context.Canceled)

	got = wrapError(grpcstatus.Error(grpccodes.NotFound, "collection missing"), "scroll failed")
	assert.Equal(t, sserr.CodeInternalStore, got.Code)

	got = wrapError(grpcstatus.Error(grpccodes.Unavailable, "connection refused"), "scroll failed")
	assert.Equal(t, sserr.CodeUnavailableDependency, got.Code)
}
