// Package vector defines the derived semantic-search index. Records are
// keyed by component id and exist only for published components; upserts
// replace rather than duplicate, so reindex replays are safe.
package vector

import "context"

// Record is one indexed component: an embedding plus filterable metadata.
type Record struct {
	ID       string
	Values   []float32
	Metadata map[string]any
}

// Match is one ranked search result.
type Match struct {
	ID       string
	Score    float64
	Metadata map[string]any
}

// Filter narrows a search by metadata equality.
type Filter struct {
	Kind      string
	FileType  string
	MediaType string
}

// Map renders the filter as the metadata-equality document the index
// understands. Returns nil when nothing is filtered.
func (f Filter) Map() map[string]any {
	m := map[string]any{}
	if f.Kind != "" {
		m["kind"] = f.Kind
	}
	if f.FileType != "" {
		m["file_type"] = f.FileType
	}
	if f.MediaType != "" {
		m["media_type"] = f.MediaType
	}
	if len(m) == 0 {
		return nil
	}

	return m
}

// Index is implemented by the pinecone and memory backends.
type Index interface {
	Upsert(ctx context.Context, record Record) error
	Remove(ctx context.Context, id string) error
	Query(ctx context.Context, values []float32, topK int, filter Filter) ([]Match, error)
	Fetch(ctx context.Context, ids []string) ([]Record, error)
}
