// Package memory keeps per-session conversation state: a bounded
// short-term window, topic-keyed long-term facts, rolling summaries, and
// the SQLite-backed conversation log. Foreground turn handling and
// background extraction both write here, so every tier is guarded by the
// memory's mutex.
package memory

import (
	"strings"
	"sync"

	"github.com/solenoidlabs/recall/internal/chat"
)

const (
	DefaultShortTermLimit = 20
	DefaultRecentCount    = 5
)

// Stats is a point-in-time snapshot of memory tier sizes.
type Stats struct {
	ShortTermCount int `json:"short_term_count"`
	LongTermTopics int `json:"long_term_topics"`
	LongTermFacts  int `json:"long_term_facts"`
	SummaryCount   int `json:"summary_count"`
}

// ConversationMemory is the three-tier memory of one session.
type ConversationMemory struct {
	mu        sync.Mutex
	limit     int
	shortTerm []chat.Message
	topics    []string            // insertion order of long-term topics
	longTerm  map[string][]string // topic -> facts, append-only
	summaries []string            // append-only, last entry is current
}

// NewConversationMemory builds a memory bounded to limit short-term
// messages; a non-positive limit uses the default.
func NewConversationMemory(limit int) *ConversationMemory {
	if limit <= 0 {
		limit = DefaultShortTermLimit
	}
	return &ConversationMemory{
		limit:    limit,
		longTerm: make(map[string][]string),
	}
}

// AddMessage appends a turn to short-term memory, evicting the oldest
// message once the window is full.
func (m *ConversationMemory) AddMessage(role chat.Role, content string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shortTerm = append(m.shortTerm, chat.NewMessage(role, content))
	if len(m.shortTerm) > m.limit {
		m.shortTerm = m.shortTerm[len(m.shortTerm)-m.limit:]
	}
}

// RecentMessages returns the k most recent short-term messages in
// chronological order. Non-positive k uses the default window.
func (m *ConversationMemory) RecentMessages(k int) []chat.Message {
	if k <= 0 {
		k = DefaultRecentCount
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	start := len(m.shortTerm) - k
	if start < 0 {
		start = 0
	}
	out := make([]chat.Message, len(m.shortTerm)-start)
	copy(out, m.shortTerm[start:])
	return out
}

// AddToLongTerm records a fact under a topic. Topics keep first-seen
// order; facts under a topic keep arrival order and are never removed.
func (m *ConversationMemory) AddToLongTerm(topic, fact string) {
	if topic == "" || fact == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, seen := m.longTerm[topic]; !seen {
		m.topics = append(m.topics, topic)
	}
	m.longTerm[topic] = append(m.longTerm[topic], fact)
}

// AddSummary appends a conversation summary; the newest one is the
// current summary.
func (m *ConversationMemory) AddSummary(summary string) {
	if summary == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.summaries = append(m.summaries, summary)
}

// CurrentSummary returns the latest summary, or "".
func (m *ConversationMemory) CurrentSummary() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.summaries) == 0 {
		return ""
	}
	return m.summaries[len(m.summaries)-1]
}

// GetContextForQuery assembles the memory context for one query: the
// recent messages, the current summary as a system message, and a system
// message per long-term fact whose topic appears in the query
// (case-insensitive substring, a deliberately cheap relevance test).
// The call reads a consistent snapshot and never mutates state.
func (m *ConversationMemory) GetContextForQuery(query string) []chat.Message {
	m.mu.Lock()
	defer m.mu.Unlock()

	start := len(m.shortTerm) - DefaultRecentCount
	if start < 0 {
		start = 0
	}
	out := make([]chat.Message, 0, len(m.shortTerm)-start+4)
	out = append(out, m.shortTerm[start:]...)

	if len(m.summaries) > 0 {
		out = append(out, chat.Message{
			Role:     chat.RoleSystem,
			Content:  "Conversation summary: " + m.summaries[len(m.summaries)-1],
			Metadata: map[string]string{"source": "summary"},
		})
	}

	lowered := strings.ToLower(query)
	for _, topic := range m.topics {
		if !strings.Contains(lowered, strings.ToLower(topic)) {
			continue
		}
		for _, fact := range m.longTerm[topic] {
			out = append(out, chat.Message{
				Role:     chat.RoleSystem,
				Content:  "Related information about " + topic + ": " + fact,
				Metadata: map[string]string{"source": "long_term_memory", "topic": topic},
			})
		}
	}
	return out
}

// Stats reports tier sizes.
func (m *ConversationMemory) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	facts := 0
	for _, fs := range m.longTerm {
		facts += len(fs)
	}
	return Stats{
		ShortTermCount: len(m.shortTerm),
		LongTermTopics: len(m.topics),
		LongTermFacts:  facts,
		SummaryCount:   len(m.summaries),
	}
}
