package ui

import "gemtui/storage"

// EngineEventMsg wraps an engine event for the bubbletea loop. main wires
// engine.Subscribe to program.Send with this type, so every engine change
// arrives in Update like any other message.
type EngineEventMsg struct {
	Event any
}

type searchResultsMsg struct {
	query   string
	results []storage.SessionMessageMatch
	err     error
}

type exportDoneMsg struct {
	path string
	err  error
}

type localModelsMsg struct {
	models []string
	err    error
}

type clearFlashMsg struct{}
