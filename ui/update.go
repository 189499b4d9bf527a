package ui

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"gemtui/catalog"
	"gemtui/engine"
	"gemtui/storage"
)

func (a *AppView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.resize(msg.Width, msg.Height)
		return a, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.loadingSpinner, cmd = a.loadingSpinner.Update(msg)
		if a.engine.InFlight() {
			a.updateViewportContent(false)
		}
		return a, cmd

	case EngineEventMsg:
		return a.handleEngineEvent(msg.Event)

	case searchResultsMsg:
		if msg.err != nil {
			a.statusFlash = "Search failed: " + msg.err.Error()
			return a, a.clearFlashAfter(3 * time.Second)
		}
		a.searchResults = msg.results
		a.selectedSearchIdx = 0
		return a, nil

	case exportDoneMsg:
		if msg.err != nil {
			a.statusFlash = "Export failed: " + msg.err.Error()
		} else {
			a.statusFlash = "Exported to " + msg.path
		}
		return a, a.clearFlashAfter(5 * time.Second)

	case localModelsMsg:
		if msg.err == nil {
			a.modelList = append(a.modelList, msg.models...)
			a.localModelsLoaded = true
		}
		return a, nil

	case clearFlashMsg:
		a.statusFlash = ""
		return a, nil

	case flashTickMsg:
		return a.handleFlashTick()

	case tea.KeyMsg:
		return a.handleKey(msg)
	}

	return a, nil
}

func (a *AppView) handleEngineEvent(ev any) (tea.Model, tea.Cmd) {
	switch ev := ev.(type) {
	case engine.LogChangedEvent:
		if ev.SessionID == a.engine.ActiveSessionID() {
			a.updateViewportContent(true)
		}
		return a, nil

	case engine.SessionsChangedEvent:
		if a.showSessionManager {
			a.refreshSessionList()
		}
		return a, nil

	case engine.TurnStartedEvent, engine.TurnFinishedEvent:
		a.updateViewportContent(true)
		return a, nil

	case engine.InputStagedEvent:
		a.textarea.SetValue(ev.Text)
		a.textarea.CursorEnd()
		return a, nil

	case engine.InputClearedEvent:
		a.textarea.Reset()
		return a, nil
	}
	return a, nil
}

func (a *AppView) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Overlays swallow all keys while open.
	switch {
	case a.showHelp:
		a.showHelp = false
		return a, nil
	case a.showSessionManager:
		return a.handleSessionManagerKey(msg)
	case a.showModelSelector:
		return a.handleModelSelectorKey(msg)
	case a.showSearch:
		return a.handleSearchKey(msg)
	}

	switch msg.String() {
	case "ctrl+c":
		return a, tea.Quit

	case "enter":
		return a.handleSend()

	case "ctrl+n":
		a.engine.NewSession()
		a.textarea.Reset()
		return a, nil

	case "ctrl+s":
		a.openSessionManager()
		return a, nil

	case "ctrl+p":
		a.openModelSelector()
		return a, a.fetchLocalModels()

	case "ctrl+f":
		a.openSearch("")
		return a, nil

	case "ctrl+r":
		if !a.engine.Regenerate() {
			a.statusFlash = "Nothing to regenerate"
			return a, a.clearFlashAfter(2 * time.Second)
		}
		return a, nil

	case "ctrl+e":
		return a.editLastUserMessage()

	case "ctrl+g":
		// Stage, never dispatch: the prompt comes back through the
		// InputStaged flow and the user reviews it before sending.
		text := strings.TrimSpace(a.textarea.Value())
		a.engine.StageInput(engine.ImagePromptPrefix + text)
		return a, nil

	case "ctrl+h":
		a.showHelp = true
		return a, nil

	case "alt+y":
		return a.copyLastModelMessage()

	case "alt+j", "alt+down":
		a.viewport.HalfPageDown()
		return a, nil

	case "alt+k", "alt+up":
		a.viewport.HalfPageUp()
		return a, nil
	}

	var cmd tea.Cmd
	a.textarea, cmd = a.textarea.Update(msg)
	return a, cmd
}

// handleSend dispatches the composed input: slash commands first, then a
// chat or image-generation turn.
func (a *AppView) handleSend() (tea.Model, tea.Cmd) {
	text := a.textarea.Value()
	trimmed := strings.TrimSpace(text)

	if strings.HasPrefix(trimmed, "/") {
		return a.handleSlashCommand(trimmed)
	}

	if prompt, ok := strings.CutPrefix(trimmed, engine.ImagePromptPrefix); ok {
		if a.engine.GenerateImage(prompt) {
			a.pendingImage = ""
			a.pendingFile = nil
		}
		return a, nil
	}

	if a.engine.SendTurn(text, a.pendingImage, a.pendingFile) {
		a.pendingImage = ""
		a.pendingFile = nil
	}
	return a, nil
}

func (a *AppView) handleSlashCommand(input string) (tea.Model, tea.Cmd) {
	cmd, arg, _ := strings.Cut(input, " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "/help":
		a.showHelp = true
		a.textarea.Reset()
		return a, nil

	case "/generate":
		if a.engine.GenerateImage(arg) {
			a.textarea.Reset()
		}
		return a, nil

	case "/image":
		return a.attachImage(arg)

	case "/file":
		return a.attachFile(arg)

	case "/search":
		a.textarea.Reset()
		a.openSearch(arg)
		if arg != "" {
			return a, a.runSearch(arg)
		}
		return a, nil

	case "/model":
		if catalog.Known(catalog.ModelID(arg)) {
			a.engine.SetModel(arg)
			a.textarea.Reset()
			a.statusFlash = "Model set to " + arg
		} else {
			a.statusFlash = "Unknown model: " + arg
		}
		return a, a.clearFlashAfter(2 * time.Second)

	case "/export":
		a.textarea.Reset()
		return a, a.exportActiveSession()

	default:
		a.statusFlash = "Unknown command: " + cmd
		return a, a.clearFlashAfter(2 * time.Second)
	}
}

func (a *AppView) attachImage(path string) (tea.Model, tea.Cmd) {
	data, err := os.ReadFile(path)
	if err != nil {
		a.statusFlash = "Could not read image: " + err.Error()
		return a, a.clearFlashAfter(3 * time.Second)
	}
	a.pendingImage = base64.StdEncoding.EncodeToString(data)
	a.textarea.Reset()
	a.statusFlash = fmt.Sprintf("Image %s attached to next message", filepath.Base(path))
	return a, a.clearFlashAfter(3 * time.Second)
}

func (a *AppView) attachFile(path string) (tea.Model, tea.Cmd) {
	data, err := os.ReadFile(path)
	if err != nil {
		a.statusFlash = "Could not read file: " + err.Error()
		return a, a.clearFlashAfter(3 * time.Second)
	}
	a.pendingFile = &engine.Attachment{Name: filepath.Base(path), Data: data}
	a.textarea.Reset()
	a.statusFlash = fmt.Sprintf("File %s attached to next message", filepath.Base(path))
	return a, a.clearFlashAfter(3 * time.Second)
}

func (a *AppView) editLastUserMessage() (tea.Model, tea.Cmd) {
	msgs := a.engine.ActiveMessages()
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == engine.RoleUser {
			a.engine.EditMessage(i)
			return a, nil
		}
	}
	return a, nil
}

func (a *AppView) copyLastModelMessage() (tea.Model, tea.Cmd) {
	msgs := a.engine.ActiveMessages()
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == engine.RoleModel && !msgs[i].IsError && !msgs[i].IsStreaming {
			clipboard.WriteAll(msgs[i].Text)
			a.statusFlash = "Copied to clipboard"
			return a, a.clearFlashAfter(2 * time.Second)
		}
	}
	return a, nil
}

func (a *AppView) exportActiveSession() tea.Cmd {
	id := a.engine.ActiveSessionID()
	title := a.activeSessionTitle()
	eng := a.engine
	return func() tea.Msg {
		path := storage.GenerateExportPath(title)
		if err := eng.ExportSession(id, path); err != nil {
			return exportDoneMsg{err: err}
		}
		return exportDoneMsg{path: path}
	}
}

func (a *AppView) clearFlashAfter(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg { return clearFlashMsg{} })
}
