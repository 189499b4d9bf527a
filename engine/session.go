package engine

import (
	"strings"
	"time"
)

// SentinelTitle is the title given to a session before it has any content.
// The first user message replaces it exactly once.
const SentinelTitle = "New Chat"

// titleMaxLen is the number of characters kept when deriving a title from
// the first user message.
const titleMaxLen = 30

// Session is one persisted conversation thread. Messages is the
// authoritative copy; the active session's MessageLog is mirrored into it
// on every change.
type Session struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DeriveTitle builds a session title from the first user message: the first
// 30 characters, with "..." appended when truncation occurred. Newlines are
// flattened so the title stays a single line.
func DeriveTitle(firstUserText string) string {
	title := firstUserText
	if len(title) > titleMaxLen {
		title = title[:titleMaxLen] + "..."
	}

	title = strings.ReplaceAll(title, "\n", " ")
	title = strings.ReplaceAll(title, "\r", " ")
	title = strings.TrimSpace(title)

	if title == "" {
		return SentinelTitle
	}
	return title
}
