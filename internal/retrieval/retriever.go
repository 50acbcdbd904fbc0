package retrieval

import (
	"context"
	"log"
	"strings"

	"github.com/solenoidlabs/recall/internal/document"
)

const DefaultTopK = 3

// Retriever answers "what stored chunks are relevant to this query" and
// formats them as model-ready evidence.
type Retriever struct {
	index *Index
	store *document.Store
	topK  int
}

func NewRetriever(index *Index, store *document.Store, topK int) *Retriever {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Retriever{index: index, store: store, topK: topK}
}

// RelevantDocuments returns the formatted top-K chunks for the query.
// With no documents ingested it returns an empty slice without touching
// the index, and a failed search degrades to no evidence rather than an
// error: retrieval is an enrichment, never a gate on answering.
func (r *Retriever) RelevantDocuments(ctx context.Context, query string) []string {
	if r.store.Len() == 0 {
		return []string{}
	}
	results, err := r.index.Search(ctx, query, r.topK)
	if err != nil {
		log.Printf("[retrieval] search failed, continuing without documents: %v", err)
		return []string{}
	}
	out := make([]string, 0, len(results))
	for _, res := range results {
		doc := document.Document{Content: res.Text, Metadata: res.Metadata}
		out = append(out, doc.Header()+res.Text+"\n")
	}
	return out
}

// EvidenceBlock joins formatted chunks into one system-prompt section.
func EvidenceBlock(formatted []string) string {
	if len(formatted) == 0 {
		return ""
	}
	return strings.Join(formatted, "\n")
}
