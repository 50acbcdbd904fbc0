package retrieval

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
)

const hashEmbedderDim = 128

// HashEmbedder is a deterministic, offline embedder: each word hashes into
// a bucket of a fixed-dimension frequency vector, which is then
// L2-normalized. It is not semantically meaningful; it exists so the
// pipeline runs without an embedding service and so tests stay hermetic.
type HashEmbedder struct {
	Dim int
}

func NewHashEmbedder() *HashEmbedder {
	return &HashEmbedder{Dim: hashEmbedderDim}
}

func (h *HashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	dim := h.Dim
	if dim <= 0 {
		dim = hashEmbedderDim
	}
	vec := make([]float32, dim)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		hasher := fnv.New32a()
		hasher.Write([]byte(word))
		vec[hasher.Sum32()%uint32(dim)]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= scale
		}
	} else {
		// Empty text still needs a valid non-zero vector.
		vec[0] = 1
	}
	return vec, nil
}

func (h *HashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec, err := h.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}
