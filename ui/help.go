package ui

import "strings"

func (a *AppView) helpView() string {
	var b strings.Builder

	b.WriteString(TitleStyle.Render("gemtui Help"))
	b.WriteString("\n\n")

	section := func(title string, rows [][2]string) {
		b.WriteString(SelectedStyle.Render(title) + "\n")
		for _, row := range rows {
			b.WriteString("  " + truncateCell(row[0], 22) + DimStyle.Render(row[1]) + "\n")
		}
		b.WriteString("\n")
	}

	section("Chat", [][2]string{
		{"Enter", "Send message"},
		{"Ctrl+R", "Regenerate last response"},
		{"Ctrl+E", "Edit last message (rewinds the conversation)"},
		{"Ctrl+G", "Turn input into an image-generation prompt"},
		{"Alt+Y", "Copy last response to clipboard"},
		{"Alt+J / Alt+K", "Scroll half page down / up"},
	})

	section("Sessions", [][2]string{
		{"Ctrl+N", "New session"},
		{"Ctrl+S", "Session manager"},
		{"Ctrl+F", "Search across all sessions"},
	})

	section("Commands", [][2]string{
		{"/generate <prompt>", "Generate an image"},
		{"/image <path>", "Attach an image to the next message"},
		{"/file <path>", "Attach a text file to the next message"},
		{"/model <name>", "Switch model"},
		{"/search <query>", "Search across all sessions"},
		{"/export", "Export the current session to JSON"},
		{"/help", "This screen"},
	})

	section("Other", [][2]string{
		{"Ctrl+P", "Model selector"},
		{"Ctrl+H", "Help"},
		{"Ctrl+C", "Quit"},
	})

	b.WriteString(HelpStyle.Render("Press any key to close"))
	return b.String()
}
