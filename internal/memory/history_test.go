package memory

import (
	"path/filepath"
	"testing"
	"time"
)

func openTestHistory(t *testing.T) *History {
	t.Helper()
	h, err := OpenHistory(filepath.Join(t.TempDir(), "conv.db"))
	if err != nil {
		t.Fatalf("OpenHistory error: %v", err)
	}
	t.Cleanup(func() { h.Close() })
	return h
}

func TestHistoryAppendAndRead(t *testing.T) {
	h := openTestHistory(t)

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	turns := []PersistedTurn{
		{ChatID: "c1", Role: "user", Content: "hello", Timestamp: base},
		{ChatID: "c1", Role: "assistant", Content: "hi there", Timestamp: base.Add(time.Second), Metadata: map[string]string{"model": "m1"}},
		{ChatID: "c2", Role: "user", Content: "other chat", Timestamp: base},
	}
	for _, turn := range turns {
		if err := h.AddTurn(turn); err != nil {
			t.Fatalf("AddTurn error: %v", err)
		}
	}

	got, err := h.Turns("c1")
	if err != nil {
		t.Fatalf("Turns error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d turns, want 2", len(got))
	}
	if got[0].Content != "hello" || got[1].Content != "hi there" {
		t.Errorf("turn order wrong: %+v", got)
	}
	if got[1].Metadata["model"] != "m1" {
		t.Errorf("metadata lost: %+v", got[1].Metadata)
	}
}

func TestHistoryOrdersMixedPrecisionTimestamps(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conv.db")
	h, err := OpenHistory(path)
	if err != nil {
		t.Fatalf("OpenHistory error: %v", err)
	}

	// A whole-second timestamp followed by a fractional one: the stored
	// text must sort by instant, not by string length.
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	turns := []PersistedTurn{
		{ChatID: "c", Role: "user", Content: "first", Timestamp: base},
		{ChatID: "c", Role: "assistant", Content: "second", Timestamp: base.Add(500 * time.Millisecond)},
		{ChatID: "c", Role: "user", Content: "third", Timestamp: base.Add(time.Second)},
	}
	for _, turn := range turns {
		if err := h.AddTurn(turn); err != nil {
			t.Fatalf("AddTurn error: %v", err)
		}
	}
	h.Close()

	// Reopen so the read comes from SQLite's ORDER BY, not the cache.
	h, err = OpenHistory(path)
	if err != nil {
		t.Fatalf("reopen error: %v", err)
	}
	defer h.Close()
	got, err := h.Turns("c")
	if err != nil {
		t.Fatalf("Turns error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d turns, want 3", len(got))
	}
	for i, want := range []string{"first", "second", "third"} {
		if got[i].Content != want {
			t.Errorf("turn %d = %q, want %q", i, got[i].Content, want)
		}
	}
}

func TestHistoryCacheStaysCurrent(t *testing.T) {
	h := openTestHistory(t)

	first := PersistedTurn{ChatID: "c", Role: "user", Content: "one"}
	if err := h.AddTurn(first); err != nil {
		t.Fatalf("AddTurn: %v", err)
	}
	// Load the cache.
	if _, err := h.Turns("c"); err != nil {
		t.Fatalf("Turns: %v", err)
	}
	// Append after the cache is warm.
	if err := h.AddTurn(PersistedTurn{ChatID: "c", Role: "assistant", Content: "two"}); err != nil {
		t.Fatalf("AddTurn: %v", err)
	}

	got, err := h.Turns("c")
	if err != nil {
		t.Fatalf("Turns: %v", err)
	}
	if len(got) != 2 || got[1].Content != "two" {
		t.Errorf("cache missed the appended turn: %+v", got)
	}
}

func TestHistoryPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "conv.db")

	h, err := OpenHistory(path)
	if err != nil {
		t.Fatalf("OpenHistory: %v", err)
	}
	if err := h.AddTurn(PersistedTurn{ChatID: "c", Role: "user", Content: "durable"}); err != nil {
		t.Fatalf("AddTurn: %v", err)
	}
	h.Close()

	h2, err := OpenHistory(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer h2.Close()
	got, err := h2.Turns("c")
	if err != nil {
		t.Fatalf("Turns: %v", err)
	}
	if len(got) != 1 || got[0].Content != "durable" {
		t.Errorf("got %+v after reopen", got)
	}
}

func TestHistoryRejectsEmptyChatID(t *testing.T) {
	h := openTestHistory(t)
	if err := h.AddTurn(PersistedTurn{Role: "user", Content: "x"}); err == nil {
		t.Fatal("expected error for empty chat id")
	}
}

func TestHistoryChatIDs(t *testing.T) {
	h := openTestHistory(t)
	for _, id := range []string{"b", "a", "b"} {
		if err := h.AddTurn(PersistedTurn{ChatID: id, Role: "user", Content: "x"}); err != nil {
			t.Fatalf("AddTurn: %v", err)
		}
	}
	ids, err := h.ChatIDs()
	if err != nil {
		t.Fatalf("ChatIDs: %v", err)
	}
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Errorf("ids = %v", ids)
	}
}
