package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"gemtui/config"
	"gemtui/engine"
	"gemtui/storage"
)

// AppView is the root bubbletea model. All conversation state lives in the
// engine; the view holds only presentation state and overlay bookkeeping.
type AppView struct {
	engine *engine.Engine
	cfg    *config.Config

	// UI components
	viewport       viewport.Model
	textarea       textarea.Model
	loadingSpinner spinner.Model

	// Window state
	width  int
	height int
	ready  bool

	// Rendered-markdown memoization, keyed by message id
	renderCache map[string]renderCacheEntry

	showHelp bool

	// Session manager overlay
	showSessionManager  bool
	sessionList         []engine.Session
	selectedSessionIdx  int
	sessionFilterMode   bool
	sessionFilterInput  textinput.Model
	filteredSessionList []engine.Session
	sessionRenameMode   bool
	sessionRenameInput  textinput.Model
	confirmDelete       *engine.Session

	// Model selector overlay
	showModelSelector bool
	modelList         []string
	selectedModelIdx  int
	localModelsLoaded bool

	// Cross-session search overlay
	showSearch        bool
	searchInput       textinput.Model
	searchResults     []storage.SessionMessageMatch
	selectedSearchIdx int

	// Message highlight flash after a search jump
	highlightedMessageIdx int
	highlightFlashCount   int

	// One-line status flash (export path, copy confirmation, errors)
	statusFlash string

	// Staged attachments for the next send, set by /image and /file
	pendingImage string
	pendingFile  *engine.Attachment
}

// NewAppView builds the root view bound to an engine instance.
func NewAppView(eng *engine.Engine, cfg *config.Config) *AppView {
	ta := textarea.New()
	ta.Placeholder = "Type a message... (/help for commands)"
	ta.Focus()
	ta.Prompt = "┃ "
	ta.CharLimit = 0
	ta.SetHeight(3)
	ta.ShowLineNumbers = false
	ta.KeyMap.InsertNewline.SetEnabled(false)

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(accentColor)

	filterInput := textinput.New()
	filterInput.Placeholder = "filter..."

	renameInput := textinput.New()
	renameInput.Placeholder = "new title"
	renameInput.CharLimit = 80

	searchInput := textinput.New()
	searchInput.Placeholder = "search all sessions..."

	return &AppView{
		engine:                eng,
		cfg:                   cfg,
		loadingSpinner:        sp,
		textarea:              ta,
		sessionFilterInput:    filterInput,
		sessionRenameInput:    renameInput,
		searchInput:           searchInput,
		renderCache:           make(map[string]renderCacheEntry),
		highlightedMessageIdx: -1,
	}
}

func (a *AppView) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, a.loadingSpinner.Tick)
}

func (a *AppView) View() string {
	if !a.ready {
		return "Initializing..."
	}

	switch {
	case a.showHelp:
		return a.helpView()
	case a.showSessionManager:
		return a.sessionManagerView()
	case a.showModelSelector:
		return a.modelSelectorView()
	case a.showSearch:
		return a.searchView()
	}

	return fmt.Sprintf("%s\n%s\n%s\n%s",
		a.headerView(),
		a.viewport.View(),
		a.textarea.View(),
		a.statusView(),
	)
}

func (a *AppView) headerView() string {
	title := TitleStyle.Render("gemtui")
	session := DimStyle.Render(a.activeSessionTitle())
	model := ModelStyle.Render(a.engine.Model())

	left := fmt.Sprintf("%s  %s", title, session)
	right := model
	gap := a.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	return left + strings.Repeat(" ", gap) + right
}

func (a *AppView) statusView() string {
	if a.statusFlash != "" {
		return StatusStyle.Render(a.statusFlash)
	}
	if a.engine.InFlight() {
		return StatusStyle.Render(a.loadingSpinner.View() + " generating...")
	}
	return HelpStyle.Render(FormatFooter(
		"Enter", "Send", "^N", "New", "^S", "Sessions", "^R", "Regen",
		"^E", "Edit", "^P", "Model", "^F", "Search", "^H", "Help", "^C", "Quit",
	))
}

func (a *AppView) activeSessionTitle() string {
	id := a.engine.ActiveSessionID()
	for _, s := range a.engine.Sessions() {
		if s.ID == id {
			return s.Title
		}
	}
	return ""
}

// resize recomputes component dimensions. The render cache is dropped since
// rendered width changed.
func (a *AppView) resize(width, height int) {
	a.width = width
	a.height = height

	headerHeight := 1
	statusHeight := 1
	taHeight := 3

	if !a.ready {
		a.viewport = viewport.New(width, height-headerHeight-taHeight-statusHeight-2)
		a.ready = true
	} else {
		a.viewport.Width = width
		a.viewport.Height = height - headerHeight - taHeight - statusHeight - 2
	}
	a.textarea.SetWidth(width - 2)

	a.renderCache = make(map[string]renderCacheEntry)
	a.updateViewportContent(true)
}
