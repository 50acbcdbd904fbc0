// Package document models ingested files as chunked documents and holds
// the process-wide document store the retrieval and analysis layers read
// from.
package document

import "fmt"

// Metadata describes where a chunk came from.
type Metadata struct {
	Source  string `json:"source"`
	Page    int    `json:"page,omitempty"`
	Chunk   int    `json:"chunk,omitempty"`    // 1-based position within the source
	ChunkOf int    `json:"chunk_of,omitempty"` // total chunks for the source
}

// Document is one chunk of an ingested file.
type Document struct {
	Content  string   `json:"content"`
	Metadata Metadata `json:"metadata"`
}

// Header formats the provenance lines prepended when a chunk is shown to
// the model as retrieved evidence.
func (d Document) Header() string {
	s := fmt.Sprintf("Document: %s\n", d.Metadata.Source)
	if d.Metadata.Page > 0 {
		s += fmt.Sprintf("Page: %d\n", d.Metadata.Page)
	}
	if d.Metadata.ChunkOf > 0 {
		s += fmt.Sprintf("Chunk: %d/%d\n", d.Metadata.Chunk, d.Metadata.ChunkOf)
	}
	return s
}
