package engine

// Events published to subscribers. The UI consumes these instead of reading
// engine state out from under it; each event names the minimum a view needs
// to refresh.

// LogChangedEvent fires whenever a session's message log mutates, including
// per-chunk updates while a turn is streaming.
type LogChangedEvent struct {
	SessionID string
}

// SessionsChangedEvent fires when the session list changes: create, switch,
// remove, rename, title derivation, recency reordering.
type SessionsChangedEvent struct{}

// TurnStartedEvent fires when a turn is dispatched to the provider.
type TurnStartedEvent struct {
	SessionID string
}

// TurnFinishedEvent fires when a turn reaches a terminal state. Failed
// turns are already folded into the log as error messages; Failed here only
// lets the UI stop its spinner styling accordingly.
type TurnFinishedEvent struct {
	SessionID string
	Failed    bool
}

// InputStagedEvent asks the UI to place text into the input field, e.g.
// after editing a prior message. Staged text is never auto-dispatched.
type InputStagedEvent struct {
	Text string
}

// InputClearedEvent asks the UI to clear the input field and any pending
// attachments. Dispatching a turn owns this side effect.
type InputClearedEvent struct{}

// Listener receives engine events. Listeners are invoked synchronously on
// the mutating goroutine and must not call back into the engine.
type Listener func(event any)
