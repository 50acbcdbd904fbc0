package retrieval

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/solenoidlabs/recall/internal/document"
)

// Result is one nearest-neighbor match. Distance is 1 - cosine
// similarity, so lower is closer.
type Result struct {
	Text     string
	Metadata document.Metadata
	Distance float64
}

type indexEntry struct {
	text     string
	metadata document.Metadata
	vector   []float32
}

// Index is an in-memory vector index. Add and Search may run
// concurrently; a search scans a snapshot of the entries present when it
// acquired the read lock, so entries added mid-search may or may not be
// visible to it.
type Index struct {
	mu       sync.RWMutex
	entries  []indexEntry
	embedder Embedder
}

func NewIndex(embedder Embedder) *Index {
	return &Index{embedder: embedder}
}

// Add embeds the documents and stores them.
func (ix *Index) Add(ctx context.Context, docs []document.Document) error {
	if len(docs) == 0 {
		return nil
	}
	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Content
	}
	vectors, err := ix.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed documents: %w", err)
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	for i, d := range docs {
		ix.entries = append(ix.entries, indexEntry{
			text:     d.Content,
			metadata: d.Metadata,
			vector:   vectors[i],
		})
	}
	return nil
}

// Len reports the number of indexed entries.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.entries)
}

// Search embeds the query and returns up to topK results ordered by
// ascending distance. An empty index returns an empty result set without
// embedding the query.
func (ix *Index) Search(ctx context.Context, query string, topK int) ([]Result, error) {
	if ix.Len() == 0 {
		return []Result{}, nil
	}
	qvec, err := ix.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	ix.mu.RLock()
	snapshot := make([]indexEntry, len(ix.entries))
	copy(snapshot, ix.entries)
	ix.mu.RUnlock()

	results := make([]Result, 0, len(snapshot))
	for _, e := range snapshot {
		sim, err := CosineSimilarity(qvec, e.vector)
		if err != nil {
			// Dimension-mismatched entries (embedder swapped mid-run)
			// are skipped rather than failing the whole search.
			continue
		}
		results = append(results, Result{
			Text:     e.text,
			Metadata: e.metadata,
			Distance: 1.0 - sim,
		})
	}
	sort.SliceStable(results, func(a, b int) bool {
		return results[a].Distance < results[b].Distance
	})
	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}
