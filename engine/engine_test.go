package engine_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"gemtui/engine"
	"gemtui/provider/testutil"
	"gemtui/storage"
)

// eventRecorder collects engine events and lets tests wait for turn
// completion.
type eventRecorder struct {
	events   chan any
	finished chan engine.TurnFinishedEvent
	staged   chan engine.InputStagedEvent
	started  chan engine.TurnStartedEvent
}

func newRecorder(e *engine.Engine) *eventRecorder {
	r := &eventRecorder{
		events:   make(chan any, 256),
		finished: make(chan engine.TurnFinishedEvent, 16),
		staged:   make(chan engine.InputStagedEvent, 16),
		started:  make(chan engine.TurnStartedEvent, 16),
	}
	e.Subscribe(func(ev any) {
		select {
		case r.events <- ev:
		default:
		}
		switch ev := ev.(type) {
		case engine.TurnFinishedEvent:
			r.finished <- ev
		case engine.InputStagedEvent:
			r.staged <- ev
		case engine.TurnStartedEvent:
			r.started <- ev
		}
	})
	return r
}

func (r *eventRecorder) waitFinished(t *testing.T) engine.TurnFinishedEvent {
	t.Helper()
	select {
	case ev := <-r.finished:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for turn to finish")
		return engine.TurnFinishedEvent{}
	}
}

func (r *eventRecorder) waitStarted(t *testing.T) {
	t.Helper()
	select {
	case <-r.started:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for turn to start")
	}
}

func newTestEngine(t *testing.T, prov engine.Provider) (*engine.Engine, *eventRecorder) {
	t.Helper()
	e := engine.New(prov, nil, nil, engine.Options{Model: "gemini-2.5-flash"})
	t.Cleanup(e.Close)
	return e, newRecorder(e)
}

func TestSendTurnRejectsEmptyInput(t *testing.T) {
	e, _ := newTestEngine(t, testutil.NewMockProvider())

	if e.SendTurn("", "", nil) {
		t.Error("empty send must be rejected")
	}
	if e.SendTurn("   \n ", "", nil) {
		t.Error("whitespace-only send must be rejected")
	}
	if len(e.ActiveMessages()) != 0 {
		t.Error("rejected send must not touch the log")
	}
}

func TestSendTurnStreamsChunksIntoPlaceholder(t *testing.T) {
	e, r := newTestEngine(t, testutil.NewChunkedProvider("Hel", "lo ", "world"))

	if !e.SendTurn("Hi", "", nil) {
		t.Fatal("send was rejected")
	}
	r.waitFinished(t)

	msgs := e.ActiveMessages()
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if msgs[0].Role != engine.RoleUser || msgs[0].Text != "Hi" {
		t.Errorf("user message = %+v", msgs[0])
	}
	if msgs[1].Role != engine.RoleModel {
		t.Errorf("response role = %q, want model", msgs[1].Role)
	}
	if msgs[1].Text != "Hello world" {
		t.Errorf("response text = %q, want concatenated chunks", msgs[1].Text)
	}
	if msgs[1].IsStreaming {
		t.Error("response must not be streaming after completion")
	}
	if msgs[1].IsError {
		t.Error("successful turn must not be marked as error")
	}
}

func TestSendTurnDerivesTitleOnce(t *testing.T) {
	e, r := newTestEngine(t, testutil.NewChunkedProvider("ok"))

	e.SendTurn("Explain the difference between TCP and UDP", "", nil)
	r.waitFinished(t)

	sessions := e.Sessions()
	want := "Explain the difference between..."
	if sessions[0].Title != want {
		t.Fatalf("title = %q, want %q", sessions[0].Title, want)
	}

	e.SendTurn("A completely different question", "", nil)
	r.waitFinished(t)

	sessions = e.Sessions()
	if sessions[0].Title != want {
		t.Errorf("title changed on second turn: %q", sessions[0].Title)
	}
}

func TestSendTurnRejectsWhileInFlight(t *testing.T) {
	release := make(chan struct{})
	prov := testutil.NewMockProvider()
	prov.StreamTurnFunc = func(ctx context.Context, history []engine.Message, text, image string, opts engine.TurnOptions, cb engine.StreamCallback) error {
		<-release
		return cb(engine.Chunk{Text: "done"})
	}

	e, r := newTestEngine(t, prov)

	if !e.SendTurn("first", "", nil) {
		t.Fatal("first send was rejected")
	}
	r.waitStarted(t)

	if e.SendTurn("second", "", nil) {
		t.Error("second send must be rejected, not queued")
	}
	if !e.InFlight() {
		t.Error("InFlight should report the outstanding turn")
	}

	close(release)
	r.waitFinished(t)

	msgs := e.ActiveMessages()
	if len(msgs) != 2 {
		t.Errorf("got %d messages, want 2 (the rejected send must leave no trace)", len(msgs))
	}
}

func TestFailedTurnBecomesErrorMessage(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantText string
	}{
		{
			name:     "rate limit",
			err:      errors.New("server returned 429 Too Many Requests"),
			wantText: "Rate limited by the provider. Wait a moment and try again.",
		},
		{
			name:     "bad credentials",
			err:      errors.New("401 unauthorized: invalid api key"),
			wantText: "API key missing or invalid. Configure your credentials before retrying.",
		},
		{
			name:     "model unavailable",
			err:      errors.New("model not found"),
			wantText: "The selected model is unavailable. Switch models and try again.",
		},
		{
			name:     "generic",
			err:      errors.New("connection reset by peer"),
			wantText: "Request failed: connection reset by peer",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// The provider streams a partial chunk before failing; the error
			// message must replace it, not append to it.
			e, r := newTestEngine(t, testutil.NewFailingProvider(tt.err, "partial "))

			e.SendTurn("hello", "", nil)
			ev := r.waitFinished(t)

			if !ev.Failed {
				t.Error("TurnFinishedEvent.Failed should be true")
			}

			msgs := e.ActiveMessages()
			last := msgs[len(msgs)-1]
			if !last.IsError {
				t.Error("terminal message must be marked as error")
			}
			if last.IsStreaming {
				t.Error("terminal message must not be streaming")
			}
			if last.Text != tt.wantText {
				t.Errorf("error text = %q, want %q", last.Text, tt.wantText)
			}
			if strings.Contains(last.Text, "partial") {
				t.Error("partial stream content must not survive a failure")
			}
		})
	}
}

func TestRegenerateReplacesLastResponse(t *testing.T) {
	prov := testutil.NewChunkedProvider("first response")
	e, r := newTestEngine(t, prov)

	e.SendTurn("question", "", nil)
	r.waitFinished(t)

	prov.StreamTurnFunc = func(ctx context.Context, history []engine.Message, text, image string, opts engine.TurnOptions, cb engine.StreamCallback) error {
		if len(history) != 0 {
			t.Errorf("regenerate history has %d messages, want 0", len(history))
		}
		if text != "question" {
			t.Errorf("regenerate text = %q, want original user text", text)
		}
		return cb(engine.Chunk{Text: "second response"})
	}

	if !e.Regenerate() {
		t.Fatal("Regenerate was rejected")
	}
	r.waitFinished(t)

	msgs := e.ActiveMessages()
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if msgs[1].Text != "second response" {
		t.Errorf("response = %q, want the regenerated one", msgs[1].Text)
	}
}

func TestRegenerateRequiresTrailingModelMessage(t *testing.T) {
	e, _ := newTestEngine(t, testutil.NewMockProvider())

	if e.Regenerate() {
		t.Error("Regenerate on an empty log must be rejected")
	}
}

func TestEditMessageRewindsAndStages(t *testing.T) {
	e, r := newTestEngine(t, testutil.NewChunkedProvider("answer"))

	e.SendTurn("first question", "", nil)
	r.waitFinished(t)
	e.SendTurn("second question", "", nil)
	r.waitFinished(t)

	// Edit the first user message (index 0): everything from it on is
	// dropped and its text is staged.
	staged, ok := e.EditMessage(0)
	if !ok {
		t.Fatal("EditMessage was rejected")
	}
	if staged != "first question" {
		t.Errorf("staged = %q, want original text", staged)
	}

	select {
	case ev := <-r.staged:
		if ev.Text != "first question" {
			t.Errorf("InputStagedEvent.Text = %q", ev.Text)
		}
	case <-time.After(time.Second):
		t.Fatal("no InputStagedEvent emitted")
	}

	if len(e.ActiveMessages()) != 0 {
		t.Errorf("log has %d messages after edit, want 0", len(e.ActiveMessages()))
	}
}

func TestEditMessageRejectsModelMessages(t *testing.T) {
	e, r := newTestEngine(t, testutil.NewChunkedProvider("answer"))

	e.SendTurn("question", "", nil)
	r.waitFinished(t)

	if _, ok := e.EditMessage(1); ok {
		t.Error("editing a model message must be rejected")
	}
	if len(e.ActiveMessages()) != 2 {
		t.Error("rejected edit must not touch the log")
	}
}

func TestStageInputEmitsEvent(t *testing.T) {
	e, r := newTestEngine(t, testutil.NewMockProvider())

	e.StageInput(engine.ImagePromptPrefix + "a red fox")

	select {
	case ev := <-r.staged:
		if ev.Text != engine.ImagePromptPrefix+"a red fox" {
			t.Errorf("InputStagedEvent.Text = %q", ev.Text)
		}
	case <-time.After(time.Second):
		t.Fatal("no InputStagedEvent emitted")
	}

	if len(e.ActiveMessages()) != 0 {
		t.Error("staging must never dispatch a turn")
	}
}

func TestGenerateImageTurn(t *testing.T) {
	e, r := newTestEngine(t, testutil.NewMockProvider())

	if !e.GenerateImage("a red fox") {
		t.Fatal("GenerateImage was rejected")
	}
	r.waitFinished(t)

	msgs := e.ActiveMessages()
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if msgs[0].Text != engine.ImagePromptPrefix+"a red fox" {
		t.Errorf("user message = %q, want prefixed prompt", msgs[0].Text)
	}
	if msgs[1].Image == "" {
		t.Error("response must carry the generated image payload")
	}
	if msgs[1].Text != "Generated image for: a red fox" {
		t.Errorf("response text = %q", msgs[1].Text)
	}
}

func TestRegenerateImageTurn(t *testing.T) {
	prov := testutil.NewMockProvider()
	var prompts []string
	prov.GenerateImageFunc = func(ctx context.Context, prompt string) (string, error) {
		prompts = append(prompts, prompt)
		return "aW1n", nil
	}

	e, r := newTestEngine(t, prov)

	e.GenerateImage("a red fox")
	r.waitFinished(t)

	if !e.Regenerate() {
		t.Fatal("Regenerate was rejected")
	}
	r.waitFinished(t)

	if len(prompts) != 2 || prompts[1] != "a red fox" {
		t.Errorf("prompts = %v, want the image pipeline re-run with the original prompt", prompts)
	}
}

func TestMidStreamSessionSwitchKeepsChunksInOriginSession(t *testing.T) {
	release := make(chan struct{})
	prov := testutil.NewMockProvider()
	prov.StreamTurnFunc = func(ctx context.Context, history []engine.Message, text, image string, opts engine.TurnOptions, cb engine.StreamCallback) error {
		if err := cb(engine.Chunk{Text: "early "}); err != nil {
			return err
		}
		<-release
		return cb(engine.Chunk{Text: "late"})
	}

	e, r := newTestEngine(t, prov)
	originID := e.ActiveSessionID()

	e.SendTurn("hello", "", nil)
	r.waitStarted(t)

	// Switch away mid-stream; chunks must keep landing in the origin
	// session.
	freshID := e.NewSession()
	if e.ActiveSessionID() != freshID {
		t.Fatal("switch did not take effect")
	}

	close(release)
	r.waitFinished(t)

	if len(e.ActiveMessages()) != 0 {
		t.Error("the newly active session must stay untouched")
	}

	for _, s := range e.Sessions() {
		if s.ID != originID {
			continue
		}
		if len(s.Messages) != 2 {
			t.Fatalf("origin session has %d messages, want 2", len(s.Messages))
		}
		if s.Messages[1].Text != "early late" {
			t.Errorf("origin response = %q, want the full stream", s.Messages[1].Text)
		}
	}
}

func TestNewSessionWhileStreamingIsAllowed(t *testing.T) {
	release := make(chan struct{})
	prov := testutil.NewMockProvider()
	prov.StreamTurnFunc = func(ctx context.Context, history []engine.Message, text, image string, opts engine.TurnOptions, cb engine.StreamCallback) error {
		<-release
		return cb(engine.Chunk{Text: "done"})
	}

	e, r := newTestEngine(t, prov)
	e.SendTurn("hello", "", nil)
	r.waitStarted(t)

	e.NewSession()
	// The new session has no turn in flight, so sending is allowed even
	// though the old session is still streaming.
	if !e.SendTurn("parallel", "", nil) {
		t.Error("send in a fresh session must not be blocked by another session's stream")
	}

	close(release)
	r.waitFinished(t)
	r.waitFinished(t)
}

func TestRemoveActiveSessionPromotesMostRecent(t *testing.T) {
	e, r := newTestEngine(t, testutil.NewChunkedProvider("ok"))

	firstID := e.ActiveSessionID()
	e.SendTurn("in first session", "", nil)
	r.waitFinished(t)

	secondID := e.NewSession()
	e.SendTurn("in second session", "", nil)
	r.waitFinished(t)

	e.RemoveSession(secondID)

	if e.ActiveSessionID() != firstID {
		t.Errorf("active = %s, want the remaining session %s", e.ActiveSessionID(), firstID)
	}
	if len(e.Sessions()) != 1 {
		t.Errorf("got %d sessions, want 1", len(e.Sessions()))
	}
}

func TestRemoveLastSessionCreatesFreshOne(t *testing.T) {
	e, _ := newTestEngine(t, testutil.NewMockProvider())

	id := e.ActiveSessionID()
	e.RemoveSession(id)

	if len(e.Sessions()) != 1 {
		t.Fatalf("got %d sessions, want a fresh one", len(e.Sessions()))
	}
	if e.ActiveSessionID() == id {
		t.Error("fresh session must have a new id")
	}
	if e.Sessions()[0].Title != engine.SentinelTitle {
		t.Errorf("fresh session title = %q", e.Sessions()[0].Title)
	}
}

func TestSwitchToUnknownSessionIsNoOp(t *testing.T) {
	e, _ := newTestEngine(t, testutil.NewMockProvider())

	id := e.ActiveSessionID()
	e.SwitchTo("no-such-session")
	if e.ActiveSessionID() != id {
		t.Error("switching to an unknown id must not change the active session")
	}
}

func TestAttachmentRidesInHistoryForm(t *testing.T) {
	prov := testutil.NewMockProvider()
	var sentText string
	prov.StreamTurnFunc = func(ctx context.Context, history []engine.Message, text, image string, opts engine.TurnOptions, cb engine.StreamCallback) error {
		sentText = text
		return cb(engine.Chunk{Text: "ok"})
	}

	e, r := newTestEngine(t, prov)

	file := &engine.Attachment{Name: "notes.txt", Data: []byte("file body")}
	e.SendTurn("see attached", "", file)
	r.waitFinished(t)

	if !strings.Contains(sentText, "--- Attached file: notes.txt ---") {
		t.Errorf("provider text missing attachment block: %q", sentText)
	}
	if !strings.Contains(sentText, "file body") {
		t.Error("provider text missing attachment content")
	}

	msgs := e.ActiveMessages()
	if msgs[0].Text != "see attached" {
		t.Errorf("display text = %q, must stay the bare text", msgs[0].Text)
	}
	if msgs[0].HistoryText == "" {
		t.Error("history form must be recorded on the message")
	}
}

func TestCloseFlushesFinalSnapshot(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.NewSessionStore(dir)
	if err != nil {
		t.Fatal(err)
	}

	e := engine.New(testutil.NewChunkedProvider("answer"), store, nil, engine.Options{})
	r := newRecorder(e)

	e.SendTurn("write me down", "", nil)
	r.waitFinished(t)
	activeID := e.ActiveSessionID()

	// Close immediately after the turn: the background persister may not
	// have consumed the snapshot yet, so Close must write it itself.
	e.Close()

	sessions := store.Load()
	if len(sessions) != 1 {
		t.Fatalf("store has %d sessions after Close, want 1", len(sessions))
	}
	if len(sessions[0].Messages) != 2 {
		t.Errorf("persisted %d messages, want 2", len(sessions[0].Messages))
	}
	if sessions[0].Messages[1].Text != "answer" {
		t.Errorf("persisted response = %q", sessions[0].Messages[1].Text)
	}
	if got := store.LoadCurrentSessionID(); got != activeID {
		t.Errorf("persisted current id = %q, want %q", got, activeID)
	}
}

func TestRestartRestoresSessionsAndActivePointer(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.NewSessionStore(dir)
	if err != nil {
		t.Fatal(err)
	}

	e := engine.New(testutil.NewChunkedProvider("answer"), store, nil, engine.Options{})
	r := newRecorder(e)

	e.SendTurn("remember me", "", nil)
	r.waitFinished(t)
	activeID := e.ActiveSessionID()

	// Close flushes the pending snapshot; no settling time needed.
	e.Close()

	restarted := engine.New(testutil.NewMockProvider(), store, nil, engine.Options{})
	defer restarted.Close()

	if restarted.ActiveSessionID() != activeID {
		t.Errorf("active after restart = %s, want %s", restarted.ActiveSessionID(), activeID)
	}
	msgs := restarted.ActiveMessages()
	if len(msgs) != 2 {
		t.Fatalf("restored %d messages, want 2", len(msgs))
	}
	if msgs[0].Text != "remember me" || msgs[1].Text != "answer" {
		t.Errorf("restored messages = %q / %q", msgs[0].Text, msgs[1].Text)
	}
}

func TestThinkingBudgetGating(t *testing.T) {
	tests := []struct {
		name       string
		model      string
		enabled    bool
		wantBudget bool
	}{
		{"flash with thinking on", "gemini-2.5-flash", true, true},
		{"pro with thinking on", "gemini-2.5-pro", true, true},
		{"lite never gets a budget", "gemini-2.5-flash-lite", true, false},
		{"flash with thinking off", "gemini-2.5-flash", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prov := testutil.NewMockProvider()
			var got *int32
			prov.StreamTurnFunc = func(ctx context.Context, history []engine.Message, text, image string, opts engine.TurnOptions, cb engine.StreamCallback) error {
				got = opts.ThinkingBudget
				return cb(engine.Chunk{Text: "ok"})
			}

			e := engine.New(prov, nil, nil, engine.Options{
				Model:           tt.model,
				ThinkingEnabled: tt.enabled,
			})
			defer e.Close()
			r := newRecorder(e)

			e.SendTurn("hi", "", nil)
			r.waitFinished(t)

			if tt.wantBudget && got == nil {
				t.Error("expected a thinking budget, got none")
			}
			if tt.wantBudget && got != nil && *got != 8192 {
				t.Errorf("budget = %d, want the 8192 default", *got)
			}
			if !tt.wantBudget && got != nil {
				t.Errorf("budget = %d, want none", *got)
			}
		})
	}
}
