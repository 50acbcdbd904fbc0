package memory

import (
	"strings"
	"testing"

	"github.com/solenoidlabs/recall/internal/chat"
)

func TestShortTermEviction(t *testing.T) {
	m := NewConversationMemory(2)
	m.AddMessage(chat.RoleUser, "A")
	m.AddMessage(chat.RoleAssistant, "B")
	m.AddMessage(chat.RoleUser, "C")

	got := m.RecentMessages(10)
	if len(got) != 2 {
		t.Fatalf("kept %d messages, want 2", len(got))
	}
	if got[0].Content != "B" || got[1].Content != "C" {
		t.Errorf("kept [%q, %q], want [B, C]", got[0].Content, got[1].Content)
	}
}

func TestRecentMessagesDefaultWindow(t *testing.T) {
	m := NewConversationMemory(20)
	for i := 0; i < 10; i++ {
		m.AddMessage(chat.RoleUser, strings.Repeat("x", i+1))
	}
	got := m.RecentMessages(0)
	if len(got) != DefaultRecentCount {
		t.Fatalf("got %d messages, want %d", len(got), DefaultRecentCount)
	}
	if got[len(got)-1].Content != strings.Repeat("x", 10) {
		t.Errorf("last message = %q", got[len(got)-1].Content)
	}
}

func TestLongTermTopicOrder(t *testing.T) {
	m := NewConversationMemory(20)
	m.AddToLongTerm("pets", "has a dog")
	m.AddToLongTerm("work", "is an engineer")
	m.AddToLongTerm("pets", "dog is named Rex")

	ctx := m.GetContextForQuery("tell me about my pets and work")
	var factContents []string
	for _, msg := range ctx {
		if msg.Metadata["source"] == "long_term_memory" {
			factContents = append(factContents, msg.Content)
		}
	}
	if len(factContents) != 3 {
		t.Fatalf("got %d facts, want 3: %v", len(factContents), factContents)
	}
	// pets facts come first (topic insertion order), in arrival order.
	if !strings.Contains(factContents[0], "has a dog") ||
		!strings.Contains(factContents[1], "Rex") ||
		!strings.Contains(factContents[2], "engineer") {
		t.Errorf("fact order wrong: %v", factContents)
	}
}

func TestGetContextForQueryTopicMatching(t *testing.T) {
	m := NewConversationMemory(20)
	m.AddToLongTerm("Python", "prefers type hints")
	m.AddToLongTerm("travel", "visited Japan")

	ctx := m.GetContextForQuery("How do I write python code?")
	found := 0
	for _, msg := range ctx {
		if msg.Metadata["topic"] == "Python" {
			found++
		}
		if msg.Metadata["topic"] == "travel" {
			t.Error("unrelated topic leaked into context")
		}
	}
	if found != 1 {
		t.Errorf("matched %d Python facts, want 1 (case-insensitive)", found)
	}
}

func TestGetContextForQueryIncludesSummary(t *testing.T) {
	m := NewConversationMemory(20)
	m.AddMessage(chat.RoleUser, "hello")
	m.AddSummary("first summary")
	m.AddSummary("latest summary")

	ctx := m.GetContextForQuery("anything")
	var summaries []string
	for _, msg := range ctx {
		if msg.Metadata["source"] == "summary" {
			summaries = append(summaries, msg.Content)
		}
	}
	if len(summaries) != 1 {
		t.Fatalf("got %d summary messages, want 1", len(summaries))
	}
	if !strings.Contains(summaries[0], "latest summary") {
		t.Errorf("summary = %q, want the newest one", summaries[0])
	}
	if !strings.HasPrefix(summaries[0], "Conversation summary: ") {
		t.Errorf("summary prefix missing: %q", summaries[0])
	}
}

func TestGetContextForQueryIdempotent(t *testing.T) {
	m := NewConversationMemory(20)
	m.AddMessage(chat.RoleUser, "hi")
	m.AddToLongTerm("pets", "has a cat")
	m.AddSummary("s")

	first := m.GetContextForQuery("my pets")
	second := m.GetContextForQuery("my pets")
	if len(first) != len(second) {
		t.Fatalf("repeated calls differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Content != second[i].Content {
			t.Errorf("message %d differs: %q vs %q", i, first[i].Content, second[i].Content)
		}
	}
	if got := m.Stats(); got.ShortTermCount != 1 || got.SummaryCount != 1 {
		t.Errorf("stats changed by reads: %+v", got)
	}
}

func TestStats(t *testing.T) {
	m := NewConversationMemory(20)
	m.AddMessage(chat.RoleUser, "a")
	m.AddMessage(chat.RoleAssistant, "b")
	m.AddToLongTerm("t1", "f1")
	m.AddToLongTerm("t1", "f2")
	m.AddToLongTerm("t2", "f3")
	m.AddSummary("s")

	got := m.Stats()
	want := Stats{ShortTermCount: 2, LongTermTopics: 2, LongTermFacts: 3, SummaryCount: 1}
	if got != want {
		t.Errorf("Stats = %+v, want %+v", got, want)
	}
}

func TestSessionManagerGetOrCreate(t *testing.T) {
	sm := NewSessionManager(20)
	a := sm.Get("s1")
	b := sm.Get("s1")
	if a != b {
		t.Error("same id returned different sessions")
	}
	c := sm.Get("s2")
	if c == a {
		t.Error("different ids shared a session")
	}
	if sm.Len() != 2 {
		t.Errorf("Len = %d, want 2", sm.Len())
	}

	anon := sm.Get("")
	if anon.ID == "" {
		t.Error("empty id should get a generated one")
	}
}

func TestSessionCounterAndFiles(t *testing.T) {
	sm := NewSessionManager(20)
	s := sm.Get("s")
	if got := s.BumpMessageCount(); got != 1 {
		t.Errorf("first bump = %d, want 1", got)
	}
	if got := s.BumpMessageCount(); got != 2 {
		t.Errorf("second bump = %d, want 2", got)
	}

	id := s.RegisterFile("data.csv", "/tmp/data.csv")
	if id == "" {
		t.Fatal("empty file id")
	}
	files := s.Files()
	if len(files) != 1 || files[0].Name != "data.csv" {
		t.Errorf("files = %+v", files)
	}
}
