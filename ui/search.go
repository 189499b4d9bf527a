package ui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

func (a *AppView) openSearch(query string) {
	a.showSearch = true
	a.searchResults = nil
	a.selectedSearchIdx = 0
	a.searchInput.SetValue(query)
	a.searchInput.CursorEnd()
	a.searchInput.Focus()
}

func (a *AppView) runSearch(query string) tea.Cmd {
	eng := a.engine
	return func() tea.Msg {
		results, err := eng.SearchAllSessions(query)
		return searchResultsMsg{query: query, results: results, err: err}
	}
}

func (a *AppView) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		a.showSearch = false
		return a, nil

	case "enter":
		if len(a.searchResults) == 0 {
			if q := strings.TrimSpace(a.searchInput.Value()); q != "" {
				return a, a.runSearch(q)
			}
			return a, nil
		}
		return a.jumpToSearchResult()

	case "down", "ctrl+n":
		if a.selectedSearchIdx < len(a.searchResults)-1 {
			a.selectedSearchIdx++
		}
		return a, nil

	case "up", "ctrl+p":
		if a.selectedSearchIdx > 0 {
			a.selectedSearchIdx--
		}
		return a, nil
	}

	var cmd tea.Cmd
	a.searchInput, cmd = a.searchInput.Update(msg)
	return a, cmd
}

// jumpToSearchResult switches to the matched session and flashes the
// matched message.
func (a *AppView) jumpToSearchResult() (tea.Model, tea.Cmd) {
	match := a.searchResults[a.selectedSearchIdx]
	a.engine.SwitchTo(match.SessionID)
	a.showSearch = false

	a.highlightedMessageIdx = match.MessageIndex
	a.highlightFlashCount = 5
	a.updateViewportContent(true)

	return a, a.flashTick()
}

func (a *AppView) flashTick() tea.Cmd {
	return tea.Tick(300*time.Millisecond, func(time.Time) tea.Msg {
		return flashTickMsg{}
	})
}

type flashTickMsg struct{}

func (a *AppView) handleFlashTick() (tea.Model, tea.Cmd) {
	if a.highlightFlashCount <= 0 {
		a.highlightedMessageIdx = -1
		a.updateViewportContent(false)
		return a, nil
	}
	a.highlightFlashCount--
	a.updateViewportContent(false)
	return a, a.flashTick()
}

func (a *AppView) searchView() string {
	var b strings.Builder

	b.WriteString(TitleStyle.Render("Search All Sessions"))
	b.WriteString("\n\n")
	b.WriteString("Query: " + a.searchInput.View())
	b.WriteString("\n\n")

	for i, res := range a.searchResults {
		line := fmt.Sprintf("%s  %s  %s",
			truncateCell(res.SessionTitle, 30),
			DimStyle.Render(res.Role),
			res.Preview,
		)
		if i == a.selectedSearchIdx {
			line = SelectedStyle.Render("> ") + line
		} else {
			line = "  " + line
		}
		b.WriteString(line + "\n")
	}

	if len(a.searchResults) == 0 {
		b.WriteString(DimStyle.Render("  no results\n"))
	}

	b.WriteString("\n")
	b.WriteString(FormatFooter("Enter", "Search/Open", "↑/↓", "Navigate", "Esc", "Close"))
	return b.String()
}
