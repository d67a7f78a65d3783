package pinecone

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"component-registry/vector"
)

// MockClient is a mock implementation of the Client interface for testing
type MockClient struct {
	mock.Mock
}

func (m *MockClient) DescribeIndex(ctx context.Context, indexName string) (*IndexDescription, error) {
	args := m.Called(ctx, indexName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*IndexDescription), args.Error(1)
}

func (m *MockClient) UpsertVectors(ctx context.Context, host string, req UpsertRequest) (*UpsertResponse, error) {
	args := m.Called(ctx, host, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*UpsertResponse), args.Error(1)
}

func (m *MockClient) Query(ctx context.Context, host string, req QueryRequest) (*QueryResponse, error) {
	args := m.Called(ctx, host, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*QueryResponse), args.Error(1)
}

func (m *MockClient) DeleteVectors(ctx context.Context, host string, req DeleteRequest) error {
	args := m.Called(ctx, host, req)

	return args.Error(0)
}

func (m *MockClient) FetchVectors(ctx context.Context, host, namespace string, ids []string) (*FetchResponse, error) {
	args := m.Called(ctx, host, namespace, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*FetchResponse), args.Error(1)
}

func readyIndex(host string) *IndexDescription {
	desc := &IndexDescription{Name: "components", Host: host, Dimension: 1536, Metric: "cosine"}
	desc.Status.Ready = true

	return desc
}

func TestNewIndexStoreResolvesHost(t *testing.T) {
	t.Parallel()

	client := new(MockClient)
	client.On("DescribeIndex", mock.Anything, "components").Return(readyIndex("idx.example.io"), nil)

	store, err := NewIndexStore(context.Background(), client, "components", "prod")
	require.NoError(t, err)
	assert.Equal(t, "idx.example.io", store.host)
	client.AssertExpectations(t)
}

func TestIndexStoreUpsertAndQuery(t *testing.T) {
	t.Parallel()

	client := new(MockClient)
	client.On("DescribeIndex", mock.Anything, "components").Return(readyIndex("idx.example.io"), nil)
	client.On("UpsertVectors", mock.Anything, "idx.example.io", mock.MatchedBy(func(req UpsertRequest) bool {
		return req.Namespace == "prod" && len(req.Vectors) == 1 && req.Vectors[0].ID == "comp-1"
	})).Return(&UpsertResponse{UpsertedCount: 1}, nil)
	client.On("Query", mock.Anything, "idx.example.io", mock.MatchedBy(func(req QueryRequest) bool {
		eq, ok := req.Filter["kind"].(map[string]any)

		return req.TopK == 5 && req.IncludeMetadata && ok && eq["$eq"] == "code-file"
	})).Return(&QueryResponse{Matches: []QueryMatch{{ID: "comp-1", Score: 0.97}}}, nil)

	store, err := NewIndexStore(context.Background(), client, "components", "prod")
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, vector.Record{ID: "comp-1", Values: []float32{1, 0}}))

	matches, err := store.Query(ctx, []float32{1, 0}, 5, vector.Filter{Kind: "code-file"})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "comp-1", matches[0].ID)
	client.AssertExpectations(t)
}

func TestIndexStoreRemove(t *testing.T) {
	t.Parallel()

	client := new(MockClient)
	client.On("DescribeIndex", mock.Anything, "components").Return(readyIndex("idx.example.io"), nil)
	client.On("DeleteVectors", mock.Anything, "idx.example.io", DeleteRequest{
		IDs:       []string{"comp-1"},
		Namespace: "prod",
	}).Return(nil)

	store, err := NewIndexStore(context.Background(), client, "components", "prod")
	require.NoError(t, err)

	require.NoError(t, store.Remove(context.Background(), "comp-1"))
	client.AssertExpectations(t)
}
