package engine

import "testing"

func TestMessageLogPatch(t *testing.T) {
	log := NewMessageLog("s1")

	msg := newMessage(RoleModel)
	msg.Text = "initial"
	msg.IsStreaming = true
	log.Append(msg)

	newText := "patched"
	done := false
	if !log.Patch(msg.ID, MessagePatch{Text: &newText, IsStreaming: &done}) {
		t.Fatal("Patch returned false for existing id")
	}

	got, ok := log.At(0)
	if !ok {
		t.Fatal("At(0) returned false")
	}
	if got.Text != "patched" {
		t.Errorf("Text = %q, want %q", got.Text, "patched")
	}
	if got.IsStreaming {
		t.Error("IsStreaming should be false after patch")
	}
	if got.ID != msg.ID {
		t.Error("Patch must preserve message identity")
	}
}

func TestMessageLogPatchMissingID(t *testing.T) {
	log := NewMessageLog("s1")
	log.Append(newMessage(RoleUser))

	text := "x"
	if log.Patch("no-such-id", MessagePatch{Text: &text}) {
		t.Error("Patch on a missing id must be a no-op returning false")
	}
	if log.Len() != 1 {
		t.Errorf("Len = %d, want 1", log.Len())
	}
}

func TestMessageLogTruncateFrom(t *testing.T) {
	log := NewMessageLog("s1")
	for i := 0; i < 4; i++ {
		log.Append(newMessage(RoleUser))
	}

	if log.TruncateFrom(4) {
		t.Error("TruncateFrom past the end must be rejected")
	}
	if log.TruncateFrom(-1) {
		t.Error("TruncateFrom with a negative index must be rejected")
	}
	if !log.TruncateFrom(2) {
		t.Error("TruncateFrom(2) should succeed")
	}
	if log.Len() != 2 {
		t.Errorf("Len = %d, want 2", log.Len())
	}
}

func TestMessageLogMessagesIsACopy(t *testing.T) {
	log := NewMessageLog("s1")
	msg := newMessage(RoleUser)
	msg.Text = "original"
	log.Append(msg)

	snapshot := log.Messages()
	snapshot[0].Text = "mutated"

	got, _ := log.At(0)
	if got.Text != "original" {
		t.Error("mutating a snapshot must not affect the log")
	}
}

func TestFullText(t *testing.T) {
	m := Message{Text: "display", HistoryText: "display plus attachment"}
	if m.FullText() != "display plus attachment" {
		t.Errorf("FullText = %q, want history form", m.FullText())
	}

	m = Message{Text: "display"}
	if m.FullText() != "display" {
		t.Errorf("FullText = %q, want display form", m.FullText())
	}
}

func TestDeriveTitle(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "short message unchanged",
			input: "Hello there",
			want:  "Hello there",
		},
		{
			name:  "exactly thirty characters unchanged",
			input: "123456789012345678901234567890",
			want:  "123456789012345678901234567890",
		},
		{
			name:  "long message truncated with ellipsis",
			input: "This is a fairly long first message that keeps going",
			want:  "This is a fairly long first me...",
		},
		{
			name:  "newlines flattened",
			input: "line one\nline two",
			want:  "line one line two",
		},
		{
			name:  "empty falls back to sentinel",
			input: "",
			want:  SentinelTitle,
		},
		{
			name:  "whitespace only falls back to sentinel",
			input: "\n\n",
			want:  SentinelTitle,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DeriveTitle(tt.input); got != tt.want {
				t.Errorf("DeriveTitle(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
