package memory

import (
	"sync"

	"github.com/google/uuid"
)

// UploadedFile records one file attached to a session.
type UploadedFile struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Path string `json:"path"`
}

// Session is the per-conversation state bundle. Sessions live for the
// process lifetime.
type Session struct {
	ID     string
	Memory *ConversationMemory

	mu       sync.Mutex
	messages int
	files    []UploadedFile
}

// BumpMessageCount increments the session turn counter and returns the
// new value. The summarization cadence keys off this counter.
func (s *Session) BumpMessageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages++
	return s.messages
}

// MessageCount returns the current turn counter.
func (s *Session) MessageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.messages
}

// RegisterFile records an uploaded file and returns its generated id.
func (s *Session) RegisterFile(name, path string) string {
	id := uuid.NewString()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files = append(s.files, UploadedFile{ID: id, Name: name, Path: path})
	return id
}

// Files returns a copy of the session's uploaded-file registry.
func (s *Session) Files() []UploadedFile {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]UploadedFile, len(s.files))
	copy(out, s.files)
	return out
}

// SessionManager owns every live session. Get-or-create is atomic so
// concurrent requests for the same id share one session.
type SessionManager struct {
	mu        sync.Mutex
	sessions  map[string]*Session
	shortTerm int
}

// NewSessionManager builds a manager whose sessions use the given
// short-term memory limit.
func NewSessionManager(shortTermLimit int) *SessionManager {
	return &SessionManager{
		sessions:  make(map[string]*Session),
		shortTerm: shortTermLimit,
	}
}

// Get returns the session for id, creating it on first use. An empty id
// gets a fresh random one.
func (sm *SessionManager) Get(id string) *Session {
	if id == "" {
		id = uuid.NewString()
	}
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if s, ok := sm.sessions[id]; ok {
		return s
	}
	s := &Session{ID: id, Memory: NewConversationMemory(sm.shortTerm)}
	sm.sessions[id] = s
	return s
}

// All returns every live session.
func (sm *SessionManager) All() []*Session {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	out := make([]*Session, 0, len(sm.sessions))
	for _, s := range sm.sessions {
		out = append(out, s)
	}
	return out
}

// Len reports the number of live sessions.
func (sm *SessionManager) Len() int {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return len(sm.sessions)
}
