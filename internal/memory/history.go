package memory

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// timestampLayout is fixed-width so `ORDER BY timestamp` (a text
// comparison in SQLite) matches time order; RFC3339Nano strips trailing
// zeros, which breaks that.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// PersistedTurn is one appended row of the conversation log.
type PersistedTurn struct {
	ChatID    string            `json:"chat_id"`
	Role      string            `json:"role"`
	Content   string            `json:"content"`
	Timestamp time.Time         `json:"timestamp"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// History is the append-only SQLite conversation log with a lazily
// populated per-chat read-through cache. Writes go through the store
// mutex; the pure-Go driver serializes poorly under concurrent writers
// otherwise.
type History struct {
	db *sql.DB

	mu    sync.Mutex
	cache map[string][]PersistedTurn
}

// OpenHistory opens (creating if needed) the conversation log at dbPath.
func OpenHistory(dbPath string) (*History, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}

	schema := `CREATE TABLE IF NOT EXISTS conversations (
		chat_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		timestamp TEXT NOT NULL,
		metadata TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_conversations_chat ON conversations(chat_id, timestamp);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init history schema: %w", err)
	}

	return &History{db: db, cache: make(map[string][]PersistedTurn)}, nil
}

func (h *History) Close() error {
	return h.db.Close()
}

// AddTurn appends one turn to the log and to the chat's cache when it is
// already loaded.
func (h *History) AddTurn(turn PersistedTurn) error {
	if turn.ChatID == "" {
		return fmt.Errorf("add turn: empty chat id")
	}
	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now()
	}
	// Stored comparisons are textual; a mix of zone offsets would not
	// sort by instant.
	turn.Timestamp = turn.Timestamp.UTC()

	var metadata any
	if len(turn.Metadata) > 0 {
		encoded, err := json.Marshal(turn.Metadata)
		if err != nil {
			return fmt.Errorf("encode turn metadata: %w", err)
		}
		metadata = string(encoded)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	_, err := h.db.Exec(
		`INSERT INTO conversations (chat_id, role, content, timestamp, metadata) VALUES (?, ?, ?, ?, ?)`,
		turn.ChatID, turn.Role, turn.Content, turn.Timestamp.Format(timestampLayout), metadata,
	)
	if err != nil {
		return fmt.Errorf("insert turn: %w", err)
	}
	if cached, ok := h.cache[turn.ChatID]; ok {
		h.cache[turn.ChatID] = append(cached, turn)
	}
	return nil
}

// Turns returns the chat's full log in timestamp order. The first call
// for a chat reads from SQLite and caches; later calls serve the cache,
// which AddTurn keeps current.
func (h *History) Turns(chatID string) ([]PersistedTurn, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if cached, ok := h.cache[chatID]; ok {
		out := make([]PersistedTurn, len(cached))
		copy(out, cached)
		return out, nil
	}

	rows, err := h.db.Query(
		`SELECT chat_id, role, content, timestamp, metadata FROM conversations WHERE chat_id = ? ORDER BY timestamp`,
		chatID,
	)
	if err != nil {
		return nil, fmt.Errorf("query turns: %w", err)
	}
	defer rows.Close()

	turns, err := scanTurns(rows)
	if err != nil {
		return nil, err
	}
	h.cache[chatID] = turns

	out := make([]PersistedTurn, len(turns))
	copy(out, turns)
	return out, nil
}

// ChatIDs lists the distinct chats in the log.
func (h *History) ChatIDs() ([]string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	rows, err := h.db.Query(`SELECT DISTINCT chat_id FROM conversations ORDER BY chat_id`)
	if err != nil {
		return nil, fmt.Errorf("query chat ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan chat id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanTurns(rows *sql.Rows) ([]PersistedTurn, error) {
	var turns []PersistedTurn
	for rows.Next() {
		var t PersistedTurn
		var rawTime string
		var rawMeta sql.NullString
		if err := rows.Scan(&t.ChatID, &t.Role, &t.Content, &rawTime, &rawMeta); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		parsed, err := time.Parse(time.RFC3339Nano, rawTime)
		if err != nil {
			return nil, fmt.Errorf("parse turn timestamp %q: %w", rawTime, err)
		}
		t.Timestamp = parsed
		if rawMeta.Valid && rawMeta.String != "" {
			if err := json.Unmarshal([]byte(rawMeta.String), &t.Metadata); err != nil {
				return nil, fmt.Errorf("decode turn metadata: %w", err)
			}
		}
		turns = append(turns, t)
	}
	return turns, rows.Err()
}
