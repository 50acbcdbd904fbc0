package document

import "strings"

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
	DefaultSeparator    = "\n\n"
)

// Splitter cuts text into overlapping chunks on a separator boundary.
type Splitter struct {
	ChunkSize int
	Overlap   int
	Separator string
}

// NewSplitter returns a splitter with the default chunking parameters.
func NewSplitter() *Splitter {
	return &Splitter{
		ChunkSize: DefaultChunkSize,
		Overlap:   DefaultChunkOverlap,
		Separator: DefaultSeparator,
	}
}

// SplitText cuts text into pieces no larger than ChunkSize where the
// separator allows, carrying up to Overlap characters of trailing context
// into each following chunk. A single separator-free span longer than
// ChunkSize becomes its own oversized chunk rather than being cut
// mid-word.
func (s *Splitter) SplitText(text string) []string {
	size := s.ChunkSize
	if size <= 0 {
		size = DefaultChunkSize
	}
	sep := s.Separator
	if sep == "" {
		sep = DefaultSeparator
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len(text) <= size {
		return []string{text}
	}

	parts := strings.Split(text, sep)
	var chunks []string
	var current []string
	currentLen := 0

	flush := func() {
		if currentLen == 0 {
			return
		}
		chunks = append(chunks, strings.Join(current, sep))
		// Seed the next chunk with trailing parts worth up to Overlap
		// characters of context.
		var carry []string
		carryLen := 0
		for i := len(current) - 1; i >= 0 && s.Overlap > 0; i-- {
			l := len(current[i])
			if carryLen+l > s.Overlap {
				break
			}
			carry = append([]string{current[i]}, carry...)
			carryLen += l + len(sep)
		}
		current = carry
		currentLen = carryLen
	}

	for _, part := range parts {
		cost := len(part)
		if currentLen > 0 {
			cost += len(sep)
		}
		if currentLen+cost > size && currentLen > 0 {
			flush()
		}
		current = append(current, part)
		currentLen += cost
	}
	if currentLen > 0 {
		chunks = append(chunks, strings.Join(current, sep))
	}
	return chunks
}

// SplitDocument chunks a document's content, stamping each chunk with its
// position and the source metadata of the original.
func (s *Splitter) SplitDocument(doc Document) []Document {
	pieces := s.SplitText(doc.Content)
	out := make([]Document, 0, len(pieces))
	for i, piece := range pieces {
		md := doc.Metadata
		md.Chunk = i + 1
		md.ChunkOf = len(pieces)
		out = append(out, Document{Content: piece, Metadata: md})
	}
	return out
}
