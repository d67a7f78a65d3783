// Package static is a deterministic, offline embedder. It hashes character
// trigrams into a fixed number of buckets, which is enough for tests and for
// the "memory" persistence mode to produce stable, repeatable vectors.
package static

import (
	"context"
	"hash/fnv"
	"math"

	"component-registry/embedding"
)

const defaultDimensions = 64

// Embedder implements embedding.Embedder without any network dependency.
type Embedder struct {
	dimensions int
}

var _ embedding.Embedder = (*Embedder)(nil)

// New creates a static embedder. dimensions <= 0 selects the default.
func New(dimensions int) *Embedder {
	if dimensions <= 0 {
		dimensions = defaultDimensions
	}

	return &Embedder{dimensions: dimensions}
}

func (e *Embedder) Embed(_ context.Context, inputs []string) ([][]float32, error) {
	out := make([][]float32, len(inputs))
	for i, input := range inputs {
		out[i] = e.embedOne(input)
	}

	return out, nil
}

func (e *Embedder) embedOne(input string) []float32 {
	vec := make([]float32, e.dimensions)
	runes := []rune(input)
	if len(runes) < 3 {
		runes = append(runes, ' ', ' ')
	}

	for i := 0; i+3 <= len(runes); i++ {
		h := fnv.New32a()
		_, _ = h.Write([]byte(string(runes[i : i+3])))
		vec[h.Sum32()%uint32(e.dimensions)]++ //nolint:gosec // dimensions is small
	}

	// l2-normalize so cosine scores are comparable across input lengths
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= scale
		}
	}

	return vec
}
