package memory

import (
	"encoding/json"
	"fmt"
	"time"
)

// HubVersion is the current hub file format version.
const HubVersion = "1.0"

// HubMessage is one exported conversation turn.
type HubMessage struct {
	Role          string   `json:"role"`
	Content       string   `json:"content"`
	Timestamp     string   `json:"timestamp"`
	Model         string   `json:"model,omitempty"`
	SearchResults []string `json:"searchResults,omitempty"`
	SearchSummary string   `json:"searchSummary,omitempty"`
	Files         []string `json:"files,omitempty"`
}

// HubMetadata describes the exported conversation.
type HubMetadata struct {
	Created      string `json:"created"`
	MessageCount int    `json:"messageCount"`
	Title        string `json:"title"`
}

// HubFile is the portable conversation export format.
type HubFile struct {
	Version       string       `json:"version"`
	ChatID        string       `json:"chatId"`
	Messages      []HubMessage `json:"messages"`
	FolderContext *string      `json:"folderContext,omitempty"`
	Metadata      HubMetadata  `json:"metadata"`
}

// ExportHub builds a hub file from the chat's persisted log. Internal
// system bookkeeping rows (folder context markers and the like) are not
// part of the visible conversation and are skipped.
func (h *History) ExportHub(chatID, title string) (*HubFile, error) {
	turns, err := h.Turns(chatID)
	if err != nil {
		return nil, fmt.Errorf("export hub: %w", err)
	}

	msgs := make([]HubMessage, 0, len(turns))
	var folderContext *string
	for _, t := range turns {
		if t.Role == "system" {
			if fc, ok := t.Metadata["folder_context"]; ok && folderContext == nil {
				folderContext = &fc
			}
			continue
		}
		msgs = append(msgs, HubMessage{
			Role:      t.Role,
			Content:   t.Content,
			Timestamp: t.Timestamp.Format(time.RFC3339Nano),
			Model:     t.Metadata["model"],
		})
	}

	if title == "" {
		title = chatID
	}
	return &HubFile{
		Version:       HubVersion,
		ChatID:        chatID,
		Messages:      msgs,
		FolderContext: folderContext,
		Metadata: HubMetadata{
			Created:      time.Now().UTC().Format(time.RFC3339Nano),
			MessageCount: len(msgs),
			Title:        title,
		},
	}, nil
}

// ParseHub validates and decodes a hub payload. A payload without a
// version or without a messages array is rejected.
func ParseHub(data []byte) (*HubFile, error) {
	var hub HubFile
	if err := json.Unmarshal(data, &hub); err != nil {
		return nil, fmt.Errorf("parse hub file: %w", err)
	}
	if hub.Version == "" || hub.Messages == nil {
		return nil, fmt.Errorf("invalid hub file: missing version or messages")
	}
	return &hub, nil
}

// ImportHub appends the hub file's messages to the log under chatID,
// preserving their order. Timestamps that fail to parse fall back to the
// import time, keeping relative order via the insert sequence.
func (h *History) ImportHub(hub *HubFile, chatID string) error {
	if hub == nil {
		return fmt.Errorf("import hub: nil hub file")
	}
	if chatID == "" {
		chatID = hub.ChatID
	}
	if chatID == "" {
		return fmt.Errorf("import hub: no chat id")
	}

	base := time.Now().UTC()
	for i, m := range hub.Messages {
		ts, err := time.Parse(time.RFC3339Nano, m.Timestamp)
		if err != nil {
			ts = base.Add(time.Duration(i) * time.Microsecond)
		}
		turn := PersistedTurn{
			ChatID:    chatID,
			Role:      m.Role,
			Content:   m.Content,
			Timestamp: ts,
		}
		if m.Model != "" {
			turn.Metadata = map[string]string{"model": m.Model}
		}
		if err := h.AddTurn(turn); err != nil {
			return fmt.Errorf("import hub message %d: %w", i, err)
		}
	}
	return nil
}
