// Package engine implements the conversation engine: the message log,
// the session list, the turn controller that folds streaming provider
// output into the log, and regeneration/editing of prior turns.
//
// The engine is an explicit instance owning all conversation state. The UI
// never reads shared globals; it calls the operations here and subscribes
// to change events. All mutations are serialized by the engine's lock, so
// a send, an in-flight stream chunk, and a session switch can never
// interleave halfway.
package engine

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"gemtui/catalog"
	"gemtui/config"
	"gemtui/storage"
)

// Options carries the engine-level generation configuration.
type Options struct {
	Model             string
	SystemInstruction string
	ThinkingEnabled   bool
	ThinkingBudget    int32
}

// defaultThinkingBudget is used when thinking is enabled but no budget was
// configured.
const defaultThinkingBudget int32 = 8192

// Engine owns the canonical session list and the active session's working
// message log, and drives turns against the provider.
//
// Concurrency model: every public operation takes the lock, mutates, and
// returns; the only suspension points are the provider calls, which run on
// their own goroutine and re-enter through the same lock per chunk. A turn
// captures its MessageLog at dispatch time, so a session switch mid-stream
// keeps delivering chunks into the originating session's log instead of
// corrupting the newly active one.
type Engine struct {
	mu       sync.Mutex
	provider Provider
	store    *storage.SessionStore
	index    *storage.SearchIndex
	opts     Options

	sessions  []*Session
	active    *Session
	log       *MessageLog
	inFlight  map[string]bool
	listeners []Listener

	saveCh  chan persistState
	done    chan struct{}
	stopped chan struct{}
}

type persistState struct {
	sessions  []storage.Session
	currentID string
	reindex   *storage.Session
	removed   string
}

// New creates an engine, restores persisted sessions, and binds the last
// active one (most recent if the pointer is gone, a fresh session if the
// store is empty). store and index may be nil; the engine then runs purely
// in memory.
func New(provider Provider, store *storage.SessionStore, index *storage.SearchIndex, opts Options) *Engine {
	if opts.Model == "" {
		opts.Model = string(catalog.DefaultModel)
	}

	e := &Engine{
		provider: provider,
		store:    store,
		index:    index,
		opts:     opts,
		inFlight: make(map[string]bool),
		saveCh:   make(chan persistState, 1),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}

	if store != nil {
		for _, ss := range store.Load() {
			s := fromStorageSession(ss)
			e.sessions = append(e.sessions, &s)
		}
	}

	if len(e.sessions) == 0 {
		e.sessions = []*Session{{
			ID:        uuid.New().String(),
			Title:     SentinelTitle,
			Messages:  []Message{},
			UpdatedAt: time.Now(),
		}}
	}

	e.active = e.sessions[0]
	if store != nil {
		if id := store.LoadCurrentSessionID(); id != "" {
			if s := e.findSession(id); s != nil {
				e.active = s
			}
		} else if s := e.mostRecent(""); s != nil {
			e.active = s
		}
	}

	e.log = NewMessageLog(e.active.ID)
	e.log.Replace(e.active.Messages)

	go e.persistLoop()
	return e
}

// Close stops the background persister and synchronously writes any
// snapshot it had not consumed yet, so a clean shutdown never loses the
// last mutation. In-memory state stays valid.
func (e *Engine) Close() {
	close(e.done)
	<-e.stopped

	select {
	case snap := <-e.saveCh:
		e.writeSnapshot(snap)
	default:
	}
}

// Subscribe registers a listener for engine events.
func (e *Engine) Subscribe(fn Listener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = append(e.listeners, fn)
}

func (e *Engine) emit(events ...any) {
	e.mu.Lock()
	ls := make([]Listener, len(e.listeners))
	copy(ls, e.listeners)
	e.mu.Unlock()

	for _, ev := range events {
		for _, fn := range ls {
			fn(ev)
		}
	}
}

// Sessions returns a snapshot of all sessions, most recently updated first.
func (e *Engine) Sessions() []Session {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]Session, 0, len(e.sessions))
	for _, s := range e.sessions {
		cp := *s
		cp.Messages = append([]Message(nil), s.Messages...)
		out = append(out, cp)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out
}

// ActiveSessionID returns the id of the active session.
func (e *Engine) ActiveSessionID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active.ID
}

// ActiveMessages returns a copy of the active session's message log.
func (e *Engine) ActiveMessages() []Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.log.Messages()
}

// InFlight reports whether the active session has an outstanding turn.
func (e *Engine) InFlight() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.inFlight[e.active.ID]
}

// Model returns the configured model id.
func (e *Engine) Model() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.opts.Model
}

// SetModel switches the generation model for subsequent turns.
func (e *Engine) SetModel(model string) {
	e.mu.Lock()
	e.opts.Model = model
	e.mu.Unlock()
}

// NewSession creates a fresh session with the sentinel title, makes it
// active, and clears the working log. Returns the new id so callers can
// address it immediately.
func (e *Engine) NewSession() string {
	e.mu.Lock()
	s := &Session{
		ID:        uuid.New().String(),
		Title:     SentinelTitle,
		Messages:  []Message{},
		UpdatedAt: time.Now(),
	}
	e.sessions = append([]*Session{s}, e.sessions...)
	e.active = s
	e.log = NewMessageLog(s.ID)
	e.persistLocked(nil, "")
	e.mu.Unlock()

	e.emit(SessionsChangedEvent{}, LogChangedEvent{SessionID: s.ID})
	return s.ID
}

// SwitchTo makes the given session active and rebinds the working log to a
// copy of its stored messages. An unknown id is a silent no-op.
func (e *Engine) SwitchTo(sessionID string) {
	e.mu.Lock()
	s := e.findSession(sessionID)
	if s == nil {
		e.mu.Unlock()
		return
	}
	e.active = s
	e.log = NewMessageLog(s.ID)
	e.log.Replace(s.Messages)
	e.persistLocked(nil, "")
	e.mu.Unlock()

	e.emit(SessionsChangedEvent{}, LogChangedEvent{SessionID: sessionID})
}

// RemoveSession deletes a session. If it was active, the most recently
// updated remaining session takes over, or a fresh one is created when
// none remain.
func (e *Engine) RemoveSession(sessionID string) {
	e.mu.Lock()
	if e.findSession(sessionID) == nil {
		e.mu.Unlock()
		return
	}

	kept := e.sessions[:0]
	for _, s := range e.sessions {
		if s.ID != sessionID {
			kept = append(kept, s)
		}
	}
	e.sessions = kept

	if e.active.ID == sessionID {
		if next := e.mostRecent(""); next != nil {
			e.active = next
		} else {
			fresh := &Session{
				ID:        uuid.New().String(),
				Title:     SentinelTitle,
				Messages:  []Message{},
				UpdatedAt: time.Now(),
			}
			e.sessions = []*Session{fresh}
			e.active = fresh
		}
		e.log = NewMessageLog(e.active.ID)
		e.log.Replace(e.active.Messages)
	}

	e.persistLocked(nil, sessionID)
	activeID := e.active.ID
	e.mu.Unlock()

	e.emit(SessionsChangedEvent{}, LogChangedEvent{SessionID: activeID})
}

// RenameSession sets a session's title directly. A renamed session keeps
// its title; derivation only ever replaces the sentinel.
func (e *Engine) RenameSession(sessionID, title string) {
	e.mu.Lock()
	s := e.findSession(sessionID)
	if s == nil || title == "" {
		e.mu.Unlock()
		return
	}
	s.Title = title
	e.persistLocked(s, "")
	e.mu.Unlock()

	e.emit(SessionsChangedEvent{})
}

// StageInput asks the UI to place text into the input field without
// dispatching it. Suggestion shortcuts stage, they never auto-send.
func (e *Engine) StageInput(text string) {
	e.emit(InputStagedEvent{Text: text})
}

// SearchAllSessions finds messages across every session via the search
// index.
func (e *Engine) SearchAllSessions(query string) ([]storage.SessionMessageMatch, error) {
	if e.index == nil {
		return nil, nil
	}
	return e.index.Search(query)
}

// ExportSession writes one session to a JSON file.
func (e *Engine) ExportSession(sessionID, path string) error {
	e.mu.Lock()
	s := e.findSession(sessionID)
	if s == nil {
		e.mu.Unlock()
		return fmt.Errorf("unknown session: %s", sessionID)
	}
	snapshot := toStorageSession(*s)
	e.mu.Unlock()

	if e.store == nil {
		return fmt.Errorf("no session store configured")
	}
	return e.store.ExportToJSON(snapshot, path)
}

// findSession must be called with the lock held.
func (e *Engine) findSession(id string) *Session {
	for _, s := range e.sessions {
		if s.ID == id {
			return s
		}
	}
	return nil
}

// mostRecent returns the most recently updated session, skipping exceptID.
// Must be called with the lock held.
func (e *Engine) mostRecent(exceptID string) *Session {
	var best *Session
	for _, s := range e.sessions {
		if s.ID == exceptID {
			continue
		}
		if best == nil || s.UpdatedAt.After(best.UpdatedAt) {
			best = s
		}
	}
	return best
}

// syncLocked mirrors a working log back into its session entry, stamps
// recency, and derives the title once the sentinel can be replaced. The log
// may belong to a session that is no longer active (mid-stream switch) or
// that was deleted (then there is nothing to sync into).
func (e *Engine) syncLocked(log *MessageLog) {
	s := e.findSession(log.SessionID())
	if s == nil {
		return
	}

	s.Messages = log.Messages()
	s.UpdatedAt = time.Now()

	if s.Title == SentinelTitle {
		for _, msg := range s.Messages {
			if msg.Role == RoleUser {
				s.Title = DeriveTitle(msg.Text)
				break
			}
		}
	}

	e.persistLocked(s, "")
}

// persistLocked snapshots the session list for the background persister.
// Latest-wins: an unconsumed older snapshot is replaced, which debounces
// bursts of per-chunk syncs into few writes.
func (e *Engine) persistLocked(reindex *Session, removed string) {
	if e.store == nil && e.index == nil {
		return
	}

	snap := persistState{
		sessions:  make([]storage.Session, 0, len(e.sessions)),
		currentID: e.active.ID,
		removed:   removed,
	}
	for _, s := range e.sessions {
		snap.sessions = append(snap.sessions, toStorageSession(*s))
	}
	if reindex != nil {
		ss := toStorageSession(*reindex)
		snap.reindex = &ss
	}

	select {
	case e.saveCh <- snap:
	default:
		select {
		case <-e.saveCh:
		default:
		}
		e.saveCh <- snap
	}
}

func (e *Engine) persistLoop() {
	defer close(e.stopped)
	for {
		select {
		case <-e.done:
			return
		case snap := <-e.saveCh:
			e.writeSnapshot(snap)
		}
	}
}

func (e *Engine) writeSnapshot(snap persistState) {
	if e.store != nil {
		if err := e.store.Save(snap.sessions); err != nil && config.DebugLog != nil {
			config.DebugLog.Printf("[Engine] session save failed: %v", err)
		}
		if err := e.store.SaveCurrentSessionID(snap.currentID); err != nil && config.DebugLog != nil {
			config.DebugLog.Printf("[Engine] current session save failed: %v", err)
		}
	}
	if e.index != nil {
		if snap.reindex != nil {
			if err := e.index.IndexSession(*snap.reindex); err != nil && config.DebugLog != nil {
				config.DebugLog.Printf("[Engine] index update failed: %v", err)
			}
		}
		if snap.removed != "" {
			if err := e.index.RemoveSession(snap.removed); err != nil && config.DebugLog != nil {
				config.DebugLog.Printf("[Engine] index removal failed: %v", err)
			}
		}
	}
}

func toStorageSession(s Session) storage.Session {
	out := storage.Session{
		ID:        s.ID,
		Title:     s.Title,
		Messages:  make([]storage.Message, 0, len(s.Messages)),
		UpdatedAt: s.UpdatedAt,
	}
	for _, m := range s.Messages {
		out.Messages = append(out.Messages, storage.Message{
			ID:          m.ID,
			Role:        string(m.Role),
			Text:        m.Text,
			HistoryText: m.HistoryText,
			Image:       m.Image,
			IsError:     m.IsError,
			Timestamp:   m.Timestamp,
		})
	}
	return out
}

func fromStorageSession(s storage.Session) Session {
	out := Session{
		ID:        s.ID,
		Title:     s.Title,
		Messages:  make([]Message, 0, len(s.Messages)),
		UpdatedAt: s.UpdatedAt,
	}
	for _, m := range s.Messages {
		out.Messages = append(out.Messages, Message{
			ID:          m.ID,
			Role:        Role(m.Role),
			Text:        m.Text,
			HistoryText: m.HistoryText,
			Image:       m.Image,
			IsError:     m.IsError,
			Timestamp:   m.Timestamp,
		})
	}
	return out
}
