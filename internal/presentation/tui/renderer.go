package tui

import (
	"github.com/charmbracelet/glamour"
)

// NewRenderer returns a function that renders agent replies as markdown.
// Falls back to the raw text when the renderer cannot be initialized.
func NewRenderer() func(string) string {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(), // Automatically detect light/dark background
		glamour.WithWordWrap(80),
	)
	if err != nil {
		return func(s string) string { return s + "\n" }
	}

	return func(markdown string) string {
		out, err := r.Render(markdown)
		if err != nil {
			return markdown + "\n"
		}
		return out
	}
}
