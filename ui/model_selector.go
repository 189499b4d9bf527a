package ui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"gemtui/catalog"
)

// localModelLister fetches model names from a local server, when one is
// configured. Nil means the catalog is all there is.
type localModelLister func() ([]string, error)

var listLocalModels localModelLister

// SetLocalModelLister wires an optional source of local model names into
// the selector. Called once at startup.
func SetLocalModelLister(fn func() ([]string, error)) {
	listLocalModels = fn
}

func (a *AppView) openModelSelector() {
	a.showModelSelector = true
	a.modelList = nil
	for _, m := range catalog.All() {
		a.modelList = append(a.modelList, string(m))
	}
	a.selectedModelIdx = 0
	for i, m := range a.modelList {
		if m == a.engine.Model() {
			a.selectedModelIdx = i
			break
		}
	}
}

func (a *AppView) fetchLocalModels() tea.Cmd {
	if listLocalModels == nil || a.localModelsLoaded {
		return nil
	}
	return func() tea.Msg {
		models, err := listLocalModels()
		return localModelsMsg{models: models, err: err}
	}
}

func (a *AppView) handleModelSelectorKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "q", "ctrl+p":
		a.showModelSelector = false
		return a, nil

	case "j", "down":
		if a.selectedModelIdx < len(a.modelList)-1 {
			a.selectedModelIdx++
		}
		return a, nil

	case "k", "up":
		if a.selectedModelIdx > 0 {
			a.selectedModelIdx--
		}
		return a, nil

	case "enter":
		if a.selectedModelIdx < len(a.modelList) {
			a.engine.SetModel(a.modelList[a.selectedModelIdx])
		}
		a.showModelSelector = false
		return a, nil
	}
	return a, nil
}

func (a *AppView) modelSelectorView() string {
	var b strings.Builder

	b.WriteString(TitleStyle.Render("Select Model"))
	b.WriteString("\n\n")

	current := a.engine.Model()
	for i, m := range a.modelList {
		line := "  " + m
		if m == current {
			line += DimStyle.Render("  (current)")
		}
		if catalog.SupportsThinking(catalog.ModelID(m)) {
			line += DimStyle.Render("  [thinking]")
		}
		if i == a.selectedModelIdx {
			line = SelectedStyle.Render("> ") + line[2:]
		}
		b.WriteString(line + "\n")
	}

	b.WriteString("\n")
	b.WriteString(FormatFooter("j/k", "Navigate", "Enter", "Select", "Esc", "Close"))
	return b.String()
}
