package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Message is the persisted form of a chat message. Streaming state is
// transient and never written to disk.
type Message struct {
	ID          string    `json:"id"`
	Role        string    `json:"role"`
	Text        string    `json:"text"`
	HistoryText string    `json:"history_text,omitempty"`
	Image       string    `json:"image,omitempty"`
	IsError     bool      `json:"is_error,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Session is the persisted form of a conversation thread.
type Session struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SessionStore persists the full session list as a single JSON document.
// The in-memory engine state is authoritative; the store only has to be
// eventually consistent with it, so writes may be fired from a goroutine.
// A corrupt or missing document is treated as "no prior sessions", never a
// startup error.
type SessionStore struct {
	dataDir string
	mu      sync.Mutex // serializes writers so racing saves cannot interleave
}

const sessionsFile = "sessions.json"

// NewSessionStore creates a store rooted at dataDir (0700 - user-only
// access, conversation history is sensitive).
func NewSessionStore(dataDir string) (*SessionStore, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return &SessionStore{dataDir: dataDir}, nil
}

// Load reads the persisted session list. Absence of the file or a parse
// failure yields an empty list.
func (s *SessionStore) Load() []Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(filepath.Join(s.dataDir, sessionsFile))
	if err != nil {
		return []Session{}
	}

	var sessions []Session
	if err := json.Unmarshal(data, &sessions); err != nil {
		return []Session{}
	}

	// A null document decodes to a nil slice; normalize so a loaded store
	// always has a well-formed list.
	if sessions == nil {
		sessions = []Session{}
	}
	for i := range sessions {
		if sessions[i].Messages == nil {
			sessions[i].Messages = []Message{}
		}
	}
	return sessions
}

// Save writes the full session list. 0600 - session files contain
// conversation history.
func (s *SessionStore) Save(sessions []Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(sessions, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal sessions: %w", err)
	}

	path := filepath.Join(s.dataDir, sessionsFile)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write sessions file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace sessions file: %w", err)
	}
	return nil
}

// SaveCurrentSessionID records the active session so a restart can reopen
// it.
func (s *SessionStore) SaveCurrentSessionID(id string) error {
	return os.WriteFile(filepath.Join(s.dataDir, "current_session.id"), []byte(id), 0600)
}

// LoadCurrentSessionID returns the last active session id, or "" if none
// was recorded.
func (s *SessionStore) LoadCurrentSessionID() string {
	data, err := os.ReadFile(filepath.Join(s.dataDir, "current_session.id"))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// ExportToJSON writes a single session to path for sharing.
func (s *SessionStore) ExportToJSON(session Session, exportPath string) error {
	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(exportPath), 0700); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	if err := os.WriteFile(exportPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

// SanitizeFilename removes or replaces characters that are invalid in
// filenames.
func SanitizeFilename(name string) string {
	for _, ch := range []string{"/", "\\", ":", "*", "?", "\"", "<", ">", "|", " ", "\n", "\r"} {
		name = strings.ReplaceAll(name, ch, "-")
	}
	name = strings.Trim(name, "-.")

	if len(name) > 50 {
		name = name[:50]
	}
	if name == "" {
		name = "session"
	}
	return name
}

// GenerateExportPath builds a default export path for a session under the
// user's Downloads directory.
func GenerateExportPath(sessionTitle string) string {
	homeDir := os.Getenv("HOME")
	if homeDir == "" {
		homeDir = os.Getenv("USERPROFILE") // Windows fallback
	}

	filename := fmt.Sprintf("gemtui-session-%s-%s.json",
		SanitizeFilename(sessionTitle),
		time.Now().Format("20060102-150405"))

	return filepath.Join(homeDir, "Downloads", filename)
}
