// Package memoryindex is an in-memory vector index with cosine-similarity
// ranking. Used for testing and the "memory" persistence mode.
package memoryindex

import (
	"context"
	"math"
	"sort"
	"sync"

	"component-registry/vector"
)

// Index implements vector.Index with a mutex-guarded map.
type Index struct {
	mu      sync.RWMutex
	records map[string]vector.Record
}

var _ vector.Index = (*Index)(nil)

// New creates a new memory-backed vector index.
func New() *Index {
	return &Index{records: make(map[string]vector.Record)}
}

func (i *Index) Upsert(_ context.Context, record vector.Record) error {
	cp := vector.Record{
		ID:       record.ID,
		Values:   append([]float32(nil), record.Values...),
		Metadata: make(map[string]any, len(record.Metadata)),
	}
	for k, v := range record.Metadata {
		cp.Metadata[k] = v
	}

	i.mu.Lock()
	i.records[record.ID] = cp
	i.mu.Unlock()

	return nil
}

func (i *Index) Remove(_ context.Context, id string) error {
	i.mu.Lock()
	delete(i.records, id)
	i.mu.Unlock()

	return nil
}

func (i *Index) Query(_ context.Context, values []float32, topK int, filter vector.Filter) ([]vector.Match, error) {
	if topK <= 0 {
		topK = 10
	}
	want := filter.Map()

	i.mu.RLock()
	matches := make([]vector.Match, 0, len(i.records))
	for _, rec := range i.records {
		if !metadataMatches(rec.Metadata, want) {
			continue
		}
		matches = append(matches, vector.Match{
			ID:       rec.ID,
			Score:    cosine(values, rec.Values),
			Metadata: rec.Metadata,
		})
	}
	i.mu.RUnlock()

	sort.Slice(matches, func(a, b int) bool {
		if matches[a].Score != matches[b].Score {
			return matches[a].Score > matches[b].Score
		}

		return matches[a].ID < matches[b].ID
	})

	if len(matches) > topK {
		matches = matches[:topK]
	}

	return matches, nil
}

func (i *Index) Fetch(_ context.Context, ids []string) ([]vector.Record, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	records := make([]vector.Record, 0, len(ids))
	for _, id := range ids {
		if rec, ok := i.records[id]; ok {
			records = append(records, rec)
		}
	}

	return records, nil
}

// Count returns the number of indexed records (useful for testing)
func (i *Index) Count() int {
	i.mu.RLock()
	defer i.mu.RUnlock()

	return len(i.records)
}

func metadataMatches(metadata, want map[string]any) bool {
	for k, v := range want {
		if metadata[k] != v {
			return false
		}
	}

	return true
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for idx := range a {
		dot += float64(a[idx]) * float64(b[idx])
		normA += float64(a[idx]) * float64(a[idx])
		normB += float64(b[idx]) * float64(b[idx])
	}
	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
