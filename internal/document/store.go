package document

import (
	"sort"
	"strings"
	"sync"
)

// Store is an append-only collection of document chunks shared by every
// session in the process. Reads vastly outnumber writes, so it is guarded
// by an RWMutex.
type Store struct {
	mu      sync.RWMutex
	docs    []Document
	bySrc   map[string][]int // source -> indices into docs
	sources []string         // insertion order
}

func NewStore() *Store {
	return &Store{bySrc: make(map[string][]int)}
}

// Add appends chunks to the store and indexes them by source.
func (s *Store) Add(docs []Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range docs {
		idx := len(s.docs)
		s.docs = append(s.docs, d)
		src := d.Metadata.Source
		if _, seen := s.bySrc[src]; !seen {
			s.sources = append(s.sources, src)
		}
		s.bySrc[src] = append(s.bySrc[src], idx)
	}
}

// All returns a copy of every stored chunk in insertion order.
func (s *Store) All() []Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Document, len(s.docs))
	copy(out, s.docs)
	return out
}

// Len reports the number of stored chunks.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

// Sources lists the distinct source names in first-seen order.
func (s *Store) Sources() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.sources))
	copy(out, s.sources)
	return out
}

// BySource returns the chunks of one exact source in chunk order.
func (s *Store) BySource(source string) []Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idxs := s.bySrc[source]
	out := make([]Document, 0, len(idxs))
	for _, i := range idxs {
		out = append(out, s.docs[i])
	}
	sort.SliceStable(out, func(a, b int) bool {
		return out[a].Metadata.Chunk < out[b].Metadata.Chunk
	})
	return out
}

// CompleteDocument reassembles every chunk whose source name contains name
// (case-insensitive) into one formatted text, chunk headers included. It
// returns "" when no source matches.
func (s *Store) CompleteDocument(name string) string {
	s.mu.RLock()
	matched := make([]Document, 0)
	lower := strings.ToLower(name)
	for _, d := range s.docs {
		if strings.Contains(strings.ToLower(d.Metadata.Source), lower) {
			matched = append(matched, d)
		}
	}
	s.mu.RUnlock()

	if len(matched) == 0 {
		return ""
	}
	sort.SliceStable(matched, func(a, b int) bool {
		if matched[a].Metadata.Source != matched[b].Metadata.Source {
			return matched[a].Metadata.Source < matched[b].Metadata.Source
		}
		return matched[a].Metadata.Chunk < matched[b].Metadata.Chunk
	})
	var sb strings.Builder
	for _, d := range matched {
		sb.WriteString(d.Header())
		sb.WriteString(d.Content)
		sb.WriteString("\n\n")
	}
	return sb.String()
}
