package ui

import (
	"fmt"
	"regexp"
	"strings"

	markdown "github.com/MichaelMure/go-term-markdown"
	gomarkdown "github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/parser"
	"github.com/mattn/go-runewidth"

	"gemtui/engine"
)

// Pre-compiled regex patterns for better performance
var (
	inlineCodeRegex = regexp.MustCompile(`(?s)\x1b\[44;3m(.*?)\x1b\[0m`)
	mdLinkRegex     = regexp.MustCompile(`\[([^\]]+)\]\((https?://[^\)]+)\)`)
	urlRegex        = regexp.MustCompile(`(https?://[^\s]+)`)
)

type renderCacheEntry struct {
	text     string
	width    int
	rendered string
}

// renderMarkdown renders message text for the terminal, memoized per
// message. Streaming messages re-render as their text grows; everything
// else hits the cache until the window is resized.
func (a *AppView) renderMarkdown(msgID, content string) string {
	if entry, ok := a.renderCache[msgID]; ok && entry.text == content && entry.width == a.width {
		return entry.rendered
	}

	// Strip markdown link syntax [text](url) so links appear as plain URLs
	// the terminal can detect.
	content = preprocessLinks(content)

	// Disable autolink to keep plain URLs as plain text.
	defaultExt := markdown.Extensions()
	customExt := defaultExt &^ parser.Autolink
	p := parser.NewWithExtensions(customExt)
	r := markdown.NewRenderer(a.width-4, 0)
	doc := p.Parse([]byte(content))
	rendered := gomarkdown.Render(doc, r)

	processed := postProcessMarkdown(string(rendered))

	a.renderCache[msgID] = renderCacheEntry{text: content, width: a.width, rendered: processed}
	return processed
}

func (a *AppView) updateViewportContent(gotoBottom bool) {
	msgs := a.engine.ActiveMessages()
	if len(msgs) == 0 {
		a.viewport.SetContent("No messages yet. Start chatting!")
		return
	}

	var content strings.Builder

	for i, msg := range msgs {
		highlightPrefix := ""
		if i == a.highlightedMessageIdx && a.highlightFlashCount%2 == 1 {
			highlightPrefix = HighlightStyle.Render(">>> ")
		}

		timestamp := DimStyle.Render(msg.Timestamp.Format("[15:04]"))

		switch {
		case msg.Role == engine.RoleUser:
			body := msg.Text
			if msg.Image != "" {
				body += "\n" + DimStyle.Render("[image attached]")
			}
			if msg.HistoryText != "" {
				body += "\n" + DimStyle.Render("[file attached]")
			}
			role := UserStyle.Render("You")
			content.WriteString(formatUserMessage(highlightPrefix, timestamp, role, body))

		case msg.IsError:
			role := ErrorStyle.Render("Error")
			content.WriteString(fmt.Sprintf("%s%s %s\n%s\n\n",
				highlightPrefix, timestamp, role, ErrorStyle.Render(msg.Text)))

		case msg.IsStreaming:
			role := ModelStyle.Render(a.modelLabel())
			streamContent := a.loadingSpinner.View()
			if msg.Text != "" {
				streamContent = msg.Text + "▋"
			}
			content.WriteString(fmt.Sprintf("%s%s %s\n%s\n\n",
				highlightPrefix, timestamp, role, streamContent))

		default:
			role := ModelStyle.Render(a.modelLabel())
			body := a.renderMarkdown(msg.ID, msg.Text)
			if msg.Image != "" {
				body += "\n" + DimStyle.Render(fmt.Sprintf("[generated image, %d bytes base64]", len(msg.Image)))
			}
			content.WriteString(fmt.Sprintf("%s%s %s\n%s\n\n",
				highlightPrefix, timestamp, role, body))
		}
	}

	a.viewport.SetContent(content.String())
	if gotoBottom {
		a.viewport.GotoBottom()
	}
}

func (a *AppView) modelLabel() string {
	return a.engine.Model()
}

func formatUserMessage(highlightPrefix, timestamp, role, content string) string {
	greenBold := "\x1b[32;1m"
	reset := "\x1b[0m"
	bar := greenBold + "┃" + reset

	lines := strings.Split(content, "\n")

	var result strings.Builder
	result.WriteString(fmt.Sprintf("%s%s %s %s\n", highlightPrefix, bar, timestamp, role))

	for _, line := range lines {
		result.WriteString(fmt.Sprintf("%s %s\n", bar, line))
	}

	result.WriteString("\n")

	return result.String()
}

func postProcessMarkdown(rendered string) string {
	rendered = fixInlineCode(rendered)
	rendered = fixMarkdownLinks(rendered)
	return rendered
}

func preprocessLinks(content string) string {
	return mdLinkRegex.ReplaceAllString(content, "$2")
}

func fixInlineCode(s string) string {
	// Replace: \x1b[44;3m...text...\x1b[0m (Blue BG + Italic)
	// With:    \x1b[31m...text...\x1b[0m (Red text)
	return inlineCodeRegex.ReplaceAllString(s, "\x1b[31m$1\x1b[0m")
}

func fixMarkdownLinks(s string) string {
	redColor := "\x1b[31m"
	reset := "\x1b[0m"

	lines := strings.Split(s, "\n")

	for i, line := range lines {
		// Skip code blocks (they carry the ┃ prefix from rendering)
		if !strings.Contains(line, "┃") {
			lines[i] = urlRegex.ReplaceAllString(line, redColor+"$1"+reset)
		}
	}

	return strings.Join(lines, "\n")
}

// truncateCell pads or truncates a string to a fixed visual width.
func truncateCell(s string, width int) string {
	if runewidth.StringWidth(s) > width {
		return runewidth.Truncate(s, width, "...")
	}
	return s + strings.Repeat(" ", width-runewidth.StringWidth(s))
}
