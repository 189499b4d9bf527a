package ui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sahilm/fuzzy"

	"gemtui/engine"
	"gemtui/storage"
)

func (a *AppView) openSessionManager() {
	a.showSessionManager = true
	a.sessionFilterMode = false
	a.sessionRenameMode = false
	a.confirmDelete = nil
	a.sessionFilterInput.Reset()
	a.refreshSessionList()
}

func (a *AppView) refreshSessionList() {
	a.sessionList = a.engine.Sessions()
	a.applySessionFilter()
	if a.selectedSessionIdx >= len(a.filteredSessionList) {
		a.selectedSessionIdx = len(a.filteredSessionList) - 1
	}
	if a.selectedSessionIdx < 0 {
		a.selectedSessionIdx = 0
	}
}

func (a *AppView) applySessionFilter() {
	filterValue := a.sessionFilterInput.Value()
	if filterValue == "" {
		a.filteredSessionList = a.sessionList
		return
	}

	targets := make([]string, len(a.sessionList))
	for i, s := range a.sessionList {
		targets[i] = s.Title
	}

	matches := fuzzy.Find(filterValue, targets)
	a.filteredSessionList = make([]engine.Session, len(matches))
	for i, match := range matches {
		a.filteredSessionList[i] = a.sessionList[match.Index]
	}
}

func (a *AppView) selectedSession() *engine.Session {
	if len(a.filteredSessionList) == 0 || a.selectedSessionIdx >= len(a.filteredSessionList) {
		return nil
	}
	return &a.filteredSessionList[a.selectedSessionIdx]
}

func (a *AppView) handleSessionManagerKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Delete confirmation has its own tiny keymap.
	if a.confirmDelete != nil {
		switch msg.String() {
		case "y", "Y":
			a.engine.RemoveSession(a.confirmDelete.ID)
			a.confirmDelete = nil
			a.refreshSessionList()
		default:
			a.confirmDelete = nil
		}
		return a, nil
	}

	if a.sessionRenameMode {
		switch msg.String() {
		case "enter":
			if s := a.selectedSession(); s != nil {
				a.engine.RenameSession(s.ID, strings.TrimSpace(a.sessionRenameInput.Value()))
			}
			a.sessionRenameMode = false
			a.refreshSessionList()
			return a, nil
		case "esc":
			a.sessionRenameMode = false
			return a, nil
		}
		var cmd tea.Cmd
		a.sessionRenameInput, cmd = a.sessionRenameInput.Update(msg)
		return a, cmd
	}

	if a.sessionFilterMode {
		switch msg.String() {
		case "enter":
			a.sessionFilterMode = false
			return a, nil
		case "esc":
			a.sessionFilterMode = false
			a.sessionFilterInput.Reset()
			a.applySessionFilter()
			return a, nil
		}
		var cmd tea.Cmd
		a.sessionFilterInput, cmd = a.sessionFilterInput.Update(msg)
		a.applySessionFilter()
		a.selectedSessionIdx = 0
		return a, cmd
	}

	switch msg.String() {
	case "esc", "ctrl+s", "q":
		a.showSessionManager = false
		return a, nil

	case "j", "down":
		if a.selectedSessionIdx < len(a.filteredSessionList)-1 {
			a.selectedSessionIdx++
		}
		return a, nil

	case "k", "up":
		if a.selectedSessionIdx > 0 {
			a.selectedSessionIdx--
		}
		return a, nil

	case "enter":
		if s := a.selectedSession(); s != nil {
			a.engine.SwitchTo(s.ID)
			a.showSessionManager = false
			a.updateViewportContent(true)
		}
		return a, nil

	case "n":
		a.engine.NewSession()
		a.showSessionManager = false
		a.updateViewportContent(true)
		return a, nil

	case "r":
		if s := a.selectedSession(); s != nil {
			a.sessionRenameMode = true
			a.sessionRenameInput.SetValue(s.Title)
			a.sessionRenameInput.CursorEnd()
			a.sessionRenameInput.Focus()
		}
		return a, nil

	case "d":
		if s := a.selectedSession(); s != nil {
			a.confirmDelete = s
		}
		return a, nil

	case "/":
		a.sessionFilterMode = true
		a.sessionFilterInput.Focus()
		return a, nil

	case "x":
		if s := a.selectedSession(); s != nil {
			id, title := s.ID, s.Title
			eng := a.engine
			return a, func() tea.Msg {
				path := storage.GenerateExportPath(title)
				if err := eng.ExportSession(id, path); err != nil {
					return exportDoneMsg{err: err}
				}
				return exportDoneMsg{path: path}
			}
		}
		return a, nil
	}

	return a, nil
}

func (a *AppView) sessionManagerView() string {
	var b strings.Builder

	b.WriteString(TitleStyle.Render("Sessions"))
	b.WriteString("\n\n")

	if a.sessionFilterMode || a.sessionFilterInput.Value() != "" {
		b.WriteString("Filter: " + a.sessionFilterInput.View() + "\n\n")
	}

	if a.confirmDelete != nil {
		b.WriteString(SelectedStyle.Render(
			fmt.Sprintf("Delete %q? (y/N)", a.confirmDelete.Title)))
		b.WriteString("\n\n")
	}

	activeID := a.engine.ActiveSessionID()
	for i, s := range a.filteredSessionList {
		marker := "  "
		if s.ID == activeID {
			marker = DimStyle.Render("* ")
		}

		line := fmt.Sprintf("%s%s  %s  %s",
			marker,
			truncateCell(s.Title, 40),
			DimStyle.Render(s.UpdatedAt.Format("2006-01-02 15:04")),
			DimStyle.Render(fmt.Sprintf("%d msgs", len(s.Messages))),
		)

		if i == a.selectedSessionIdx {
			line = SelectedStyle.Render("> ") + line
		} else {
			line = "  " + line
		}

		if a.sessionRenameMode && i == a.selectedSessionIdx {
			line = "  " + marker + "Rename: " + a.sessionRenameInput.View()
		}

		b.WriteString(line + "\n")
	}

	if len(a.filteredSessionList) == 0 {
		b.WriteString(DimStyle.Render("  no sessions match\n"))
	}

	b.WriteString("\n")
	b.WriteString(FormatFooter(
		"j/k", "Navigate", "Enter", "Open", "n", "New", "r", "Rename",
		"d", "Delete", "x", "Export", "/", "Filter", "Esc", "Close",
	))
	return b.String()
}
