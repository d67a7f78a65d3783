package pinecone

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"component-registry/vector"
)

// IndexStore adapts the Pinecone data plane to vector.Index. The index host
// is resolved once through the control plane at construction time.
type IndexStore struct {
	client    Client
	host      string
	namespace string
}

var _ vector.Index = (*IndexStore)(nil)

// NewIndexStore resolves the named index and returns a store bound to its
// data-plane host.
func NewIndexStore(ctx context.Context, client Client, indexName, namespace string) (*IndexStore, error) {
	desc, err := client.DescribeIndex(ctx, indexName)
	if err != nil {
		return nil, fmt.Errorf("failed to describe pinecone index: %w", err)
	}
	if !desc.Status.Ready {
		log.Warn().
			Str("index", indexName).
			Str("state", desc.Status.State).
			Msg("pinecone index is not ready yet")
	}

	return &IndexStore{
		client:    client,
		host:      desc.Host,
		namespace: namespace,
	}, nil
}

func (s *IndexStore) Upsert(ctx context.Context, record vector.Record) error {
	_, err := s.client.UpsertVectors(ctx, s.host, UpsertRequest{
		Namespace: s.namespace,
		Vectors: []Vector{{
			ID:       record.ID,
			Values:   record.Values,
			Metadata: record.Metadata,
		}},
	})
	if err != nil {
		return fmt.Errorf("failed to upsert vector %s: %w", record.ID, err)
	}

	return nil
}

func (s *IndexStore) Remove(ctx context.Context, id string) error {
	err := s.client.DeleteVectors(ctx, s.host, DeleteRequest{
		Namespace: s.namespace,
		IDs:       []string{id},
	})
	if err != nil {
		return fmt.Errorf("failed to delete vector %s: %w", id, err)
	}

	return nil
}

func (s *IndexStore) Query(ctx context.Context, values []float32, topK int, filter vector.Filter) ([]vector.Match, error) {
	resp, err := s.client.Query(ctx, s.host, QueryRequest{
		Namespace:       s.namespace,
		Vector:          values,
		TopK:            topK,
		Filter:          equalityFilter(filter),
		IncludeMetadata: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query vectors: %w", err)
	}

	matches := make([]vector.Match, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		matches = append(matches, vector.Match{
			ID:       m.ID,
			Score:    m.Score,
			Metadata: m.Metadata,
		})
	}

	return matches, nil
}

func (s *IndexStore) Fetch(ctx context.Context, ids []string) ([]vector.Record, error) {
	resp, err := s.client.FetchVectors(ctx, s.host, s.namespace, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch vectors: %w", err)
	}

	records := make([]vector.Record, 0, len(resp.Vectors))
	for _, v := range resp.Vectors {
		records = append(records, vector.Record{
			ID:       v.ID,
			Values:   v.Values,
			Metadata: v.Metadata,
		})
	}

	return records, nil
}

// equalityFilter renders the filter in Pinecone's $eq syntax.
func equalityFilter(filter vector.Filter) map[string]any {
	plain := filter.Map()
	if plain == nil {
		return nil
	}

	out := make(map[string]any, len(plain))
	for k, v := range plain {
		out[k] = map[string]any{"$eq": v}
	}

	return out
}
