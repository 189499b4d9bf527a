package engine

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Message represents one turn's content in a conversation.
//
// Text is the display form shown in the UI. HistoryText, when set, is the
// full form sent to the provider on subsequent turns (it carries attachment
// blocks the display form omits). FullText returns whichever applies.
type Message struct {
	ID          string    `json:"id"`
	Role        Role      `json:"role"`
	Text        string    `json:"text"`
	HistoryText string    `json:"history_text,omitempty"`
	Image       string    `json:"image,omitempty"` // base64 payload
	IsStreaming bool      `json:"-"`
	IsError     bool      `json:"is_error,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// FullText returns the history-bearing form of the message.
func (m Message) FullText() string {
	if m.HistoryText != "" {
		return m.HistoryText
	}
	return m.Text
}

func newMessage(role Role) Message {
	return Message{
		ID:        uuid.New().String(),
		Role:      role,
		Timestamp: time.Now(),
	}
}

// MessagePatch carries the fields Patch replaces. Nil fields are left
// untouched.
type MessagePatch struct {
	Text        *string
	Image       *string
	IsStreaming *bool
	IsError     *bool
}

// MessageLog is the ordered, mutable message log for one session. It is the
// working view the turn controller mutates; the Engine mirrors it back into
// the session list on every change.
//
// MessageLog is not safe for concurrent use on its own; the Engine's lock
// serializes all access.
type MessageLog struct {
	sessionID string
	messages  []Message
}

// NewMessageLog creates an empty log bound to the given session id.
func NewMessageLog(sessionID string) *MessageLog {
	return &MessageLog{sessionID: sessionID}
}

// SessionID returns the id of the session this log is bound to.
func (l *MessageLog) SessionID() string {
	return l.sessionID
}

// Append adds a message to the end of the log. Order is never changed
// afterwards.
func (l *MessageLog) Append(msg Message) {
	l.messages = append(l.messages, msg)
}

// Patch replaces the given fields of the message with the given id,
// preserving identity and position. A missing id is a no-op, not an error:
// patches can race against session teardown and must not blow up.
func (l *MessageLog) Patch(id string, patch MessagePatch) bool {
	for i := range l.messages {
		if l.messages[i].ID != id {
			continue
		}
		if patch.Text != nil {
			l.messages[i].Text = *patch.Text
		}
		if patch.Image != nil {
			l.messages[i].Image = *patch.Image
		}
		if patch.IsStreaming != nil {
			l.messages[i].IsStreaming = *patch.IsStreaming
		}
		if patch.IsError != nil {
			l.messages[i].IsError = *patch.IsError
		}
		return true
	}
	return false
}

// TruncateFrom drops the message at index and everything after it. Out of
// range indices are rejected rather than panicking.
func (l *MessageLog) TruncateFrom(index int) bool {
	if index < 0 || index >= len(l.messages) {
		return false
	}
	l.messages = l.messages[:index]
	return true
}

// Clear empties the log.
func (l *MessageLog) Clear() {
	l.messages = nil
}

// Replace swaps the log contents for a copy of msgs.
func (l *MessageLog) Replace(msgs []Message) {
	l.messages = make([]Message, len(msgs))
	copy(l.messages, msgs)
}

// Len returns the number of messages in the log.
func (l *MessageLog) Len() int {
	return len(l.messages)
}

// At returns the message at index.
func (l *MessageLog) At(index int) (Message, bool) {
	if index < 0 || index >= len(l.messages) {
		return Message{}, false
	}
	return l.messages[index], true
}

// Messages returns a copy of the log contents.
func (l *MessageLog) Messages() []Message {
	out := make([]Message, len(l.messages))
	copy(out, l.messages)
	return out
}
