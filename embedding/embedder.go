// Package embedding turns artifact text into fixed-length float vectors for
// the semantic-search index.
package embedding

import "context"

// Embedder is the opaque embedding model. Failures are non-fatal to
// publication; the vector index entry is repaired by a later reindex.
type Embedder interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
}

// contentSampleLength bounds how much payload feeds the embedding alongside
// the description, to capture implementation signal without exceeding the
// model's input limits.
const contentSampleLength = 1000

// Input composes the embedding input from a component's description and a
// short sample of its content.
func Input(description string, content []byte) string {
	sample := content
	if len(sample) > contentSampleLength {
		sample = sample[:contentSampleLength]
	}
	if description == "" {
		return string(sample)
	}
	if len(sample) == 0 {
		return description
	}

	return description + "\n\n" + string(sample)
}
