package storage

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
	_ "modernc.org/sqlite"
)

// SessionMessageMatch is one search hit across the session history.
type SessionMessageMatch struct {
	SessionID    string
	SessionTitle string
	MessageIndex int
	Role         string
	Preview      string
	Timestamp    time.Time
}

// SearchIndex keeps a sqlite mirror of every session's messages so that
// cross-session search does not have to load and scan the JSON document.
// The index is rebuilt per session on sync; it holds no state the session
// store cannot regenerate.
type SearchIndex struct {
	db *sql.DB
}

// NewSearchIndex opens (or creates) the index database under dataDir.
func NewSearchIndex(dataDir string) (*SearchIndex, error) {
	dbPath := filepath.Join(dataDir, "search_index.db")

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	si := &SearchIndex{db: db}
	if err := si.initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return si, nil
}

func (si *SearchIndex) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS messages (
		session_id TEXT NOT NULL,
		session_title TEXT NOT NULL,
		message_idx INTEGER NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		timestamp DATETIME NOT NULL,
		PRIMARY KEY (session_id, message_idx)
	);
	CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id);
	`

	_, err := si.db.Exec(schema)
	return err
}

// IndexSession replaces the indexed messages for one session. Error
// messages are skipped; their text is a classification string, not content
// worth finding again.
func (si *SearchIndex) IndexSession(session Session) error {
	tx, err := si.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM messages WHERE session_id = ?`, session.ID); err != nil {
		return fmt.Errorf("failed to clear session index: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO messages (session_id, session_title, message_idx, role, content, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, msg := range session.Messages {
		if msg.IsError {
			continue
		}
		if _, err := stmt.Exec(session.ID, session.Title, i, msg.Role, msg.Text, msg.Timestamp); err != nil {
			return fmt.Errorf("failed to index message: %w", err)
		}
	}

	return tx.Commit()
}

// RemoveSession drops a deleted session from the index.
func (si *SearchIndex) RemoveSession(sessionID string) error {
	_, err := si.db.Exec(`DELETE FROM messages WHERE session_id = ?`, sessionID)
	return err
}

// Search returns all messages containing query, case-insensitive, newest
// session first.
func (si *SearchIndex) Search(query string) ([]SessionMessageMatch, error) {
	if query == "" {
		return []SessionMessageMatch{}, nil
	}

	rows, err := si.db.Query(`
		SELECT session_id, session_title, message_idx, role, content, timestamp
		FROM messages
		WHERE content LIKE ? ESCAPE '\'
		ORDER BY timestamp DESC
	`, "%"+escapeLike(query)+"%")
	if err != nil {
		return nil, fmt.Errorf("search query failed: %w", err)
	}
	defer rows.Close()

	var matches []SessionMessageMatch
	for rows.Next() {
		var m SessionMessageMatch
		var content string
		if err := rows.Scan(&m.SessionID, &m.SessionTitle, &m.MessageIndex, &m.Role, &content, &m.Timestamp); err != nil {
			continue
		}

		// Width-aware truncation keeps multi-byte runes intact.
		m.Preview = runewidth.Truncate(content, 100, "...")

		matches = append(matches, m)
	}

	return matches, rows.Err()
}

// escapeLike escapes LIKE metacharacters so user queries are literal.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

// Close releases the database handle.
func (si *SearchIndex) Close() error {
	if si.db != nil {
		return si.db.Close()
	}
	return nil
}
