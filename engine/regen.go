package engine

import "strings"

// Regenerate discards the last model response and re-runs the turn that
// produced it. Valid only when the log ends in a model message preceded by
// a user message and no turn is in flight; anything else is a no-op. The
// new turn depends only on the prior user message, so regenerating a
// failed response is always safe.
func (e *Engine) Regenerate() bool {
	e.mu.Lock()

	sessionID := e.log.SessionID()
	if e.inFlight[sessionID] {
		e.mu.Unlock()
		return false
	}

	msgs := e.log.Messages()
	n := len(msgs)
	if n < 2 || msgs[n-1].Role != RoleModel || msgs[n-2].Role != RoleUser {
		e.mu.Unlock()
		return false
	}

	e.log.TruncateFrom(n - 1)
	userMsg := msgs[n-2]
	history := msgs[:n-2]

	placeholder := newMessage(RoleModel)
	placeholder.IsStreaming = true
	e.log.Append(placeholder)

	e.inFlight[sessionID] = true
	opts := e.turnOptionsLocked()
	log := e.log
	e.syncLocked(log)
	e.mu.Unlock()

	e.emit(LogChangedEvent{SessionID: sessionID}, SessionsChangedEvent{},
		TurnStartedEvent{SessionID: sessionID})

	if prompt, ok := strings.CutPrefix(userMsg.FullText(), ImagePromptPrefix); ok {
		go e.runImageTurn(log, placeholder.ID, strings.TrimSpace(prompt))
	} else {
		go e.runTurn(log, placeholder.ID, history, userMsg.FullText(), userMsg.Image, opts)
	}
	return true
}

// EditMessage rewinds the conversation to just before the user message at
// index: the message and everything after it are dropped, and its prompt
// (minus any generation prefix) is staged back into the input field for
// resending. Valid only for user messages while no turn is in flight.
func (e *Engine) EditMessage(index int) (string, bool) {
	e.mu.Lock()

	sessionID := e.log.SessionID()
	if e.inFlight[sessionID] {
		e.mu.Unlock()
		return "", false
	}

	msg, ok := e.log.At(index)
	if !ok || msg.Role != RoleUser {
		e.mu.Unlock()
		return "", false
	}

	staged := msg.Text
	if prompt, ok := strings.CutPrefix(staged, ImagePromptPrefix); ok {
		staged = prompt
	}

	e.log.TruncateFrom(index)
	e.syncLocked(e.log)
	e.mu.Unlock()

	e.emit(LogChangedEvent{SessionID: sessionID}, SessionsChangedEvent{},
		InputStagedEvent{Text: staged})
	return staged, true
}
