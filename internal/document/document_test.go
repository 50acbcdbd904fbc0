package document

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSplitTextShortInput(t *testing.T) {
	s := NewSplitter()
	got := s.SplitText("one short paragraph")
	if len(got) != 1 || got[0] != "one short paragraph" {
		t.Fatalf("got %v, want single unchanged chunk", got)
	}
}

func TestSplitTextEmpty(t *testing.T) {
	s := NewSplitter()
	if got := s.SplitText("   \n "); got != nil {
		t.Fatalf("got %v, want nil for blank input", got)
	}
}

func TestSplitTextRespectsChunkSize(t *testing.T) {
	s := &Splitter{ChunkSize: 100, Overlap: 20, Separator: "\n\n"}
	paras := make([]string, 20)
	for i := range paras {
		paras[i] = strings.Repeat("p", 40)
	}
	chunks := s.SplitText(strings.Join(paras, "\n\n"))

	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if len(c) > 100 {
			t.Errorf("chunk %d has %d chars, want <= 100", i, len(c))
		}
	}
}

func TestSplitTextOverlapCarriesContext(t *testing.T) {
	s := &Splitter{ChunkSize: 100, Overlap: 50, Separator: "\n\n"}
	paras := []string{
		strings.Repeat("a", 40),
		strings.Repeat("b", 40),
		strings.Repeat("c", 40),
	}
	chunks := s.SplitText(strings.Join(paras, "\n\n"))
	if len(chunks) < 2 {
		t.Fatalf("expected overlap-producing split, got %d chunks", len(chunks))
	}
	// The b paragraph ends chunk 0 and should reappear at the start of
	// chunk 1.
	if !strings.Contains(chunks[1], strings.Repeat("b", 40)) {
		t.Errorf("chunk 1 = %q, want carried b-paragraph", chunks[1])
	}
}

func TestSplitTextOversizedParagraph(t *testing.T) {
	s := &Splitter{ChunkSize: 50, Overlap: 0, Separator: "\n\n"}
	big := strings.Repeat("x", 200)
	chunks := s.SplitText(big + "\n\n" + "tail")
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks: %v", len(chunks), chunks)
	}
	if chunks[0] != big {
		t.Errorf("oversized paragraph should stay whole, got %d chars", len(chunks[0]))
	}
}

func TestSplitDocumentMetadata(t *testing.T) {
	s := &Splitter{ChunkSize: 50, Overlap: 0, Separator: "\n\n"}
	doc := Document{
		Content:  strings.Repeat("a", 40) + "\n\n" + strings.Repeat("b", 40),
		Metadata: Metadata{Source: "report.txt", Page: 3},
	}
	chunks := s.SplitDocument(doc)
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(chunks))
	}
	for i, c := range chunks {
		if c.Metadata.Source != "report.txt" || c.Metadata.Page != 3 {
			t.Errorf("chunk %d lost source metadata: %+v", i, c.Metadata)
		}
		if c.Metadata.Chunk != i+1 || c.Metadata.ChunkOf != 2 {
			t.Errorf("chunk %d position = %d/%d, want %d/2", i, c.Metadata.Chunk, c.Metadata.ChunkOf, i+1)
		}
	}
}

func TestStoreAddAndBySource(t *testing.T) {
	st := NewStore()
	st.Add([]Document{
		{Content: "a1", Metadata: Metadata{Source: "a.txt", Chunk: 1, ChunkOf: 2}},
		{Content: "b1", Metadata: Metadata{Source: "b.txt", Chunk: 1, ChunkOf: 1}},
		{Content: "a2", Metadata: Metadata{Source: "a.txt", Chunk: 2, ChunkOf: 2}},
	})

	if st.Len() != 3 {
		t.Fatalf("Len = %d, want 3", st.Len())
	}
	got := st.BySource("a.txt")
	if len(got) != 2 || got[0].Content != "a1" || got[1].Content != "a2" {
		t.Errorf("BySource = %+v", got)
	}
	srcs := st.Sources()
	if len(srcs) != 2 || srcs[0] != "a.txt" || srcs[1] != "b.txt" {
		t.Errorf("Sources = %v", srcs)
	}
}

func TestCompleteDocumentSubstringMatch(t *testing.T) {
	st := NewStore()
	st.Add([]Document{
		{Content: "alpha", Metadata: Metadata{Source: "Quarterly-Report.txt", Chunk: 1, ChunkOf: 2}},
		{Content: "beta", Metadata: Metadata{Source: "Quarterly-Report.txt", Chunk: 2, ChunkOf: 2}},
		{Content: "other", Metadata: Metadata{Source: "notes.txt", Chunk: 1, ChunkOf: 1}},
	})

	got := st.CompleteDocument("quarterly")
	if !strings.Contains(got, "alpha") || !strings.Contains(got, "beta") {
		t.Errorf("missing chunks: %q", got)
	}
	if strings.Contains(got, "other") {
		t.Errorf("unrelated source leaked in: %q", got)
	}
	if !strings.Contains(got, "Document: Quarterly-Report.txt") {
		t.Errorf("missing header: %q", got)
	}
	// alpha precedes beta (chunk order)
	if strings.Index(got, "alpha") > strings.Index(got, "beta") {
		t.Error("chunks out of order")
	}

	if got := st.CompleteDocument("missing"); got != "" {
		t.Errorf("unmatched name should return empty, got %q", got)
	}
}

func TestTextLoader(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "note.txt")
	os.WriteFile(path, []byte("file body"), 0644)

	docs, err := TextLoader{}.Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if len(docs) != 1 || docs[0].Content != "file body" {
		t.Fatalf("docs = %+v", docs)
	}
	if docs[0].Metadata.Source != "note.txt" {
		t.Errorf("source = %q, want note.txt", docs[0].Metadata.Source)
	}

	if _, err := (TextLoader{}).Load(filepath.Join(dir, "absent.txt")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
