// Package render formats command results for the terminal.
package render

import (
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

// ColorsEnabled reports whether output may be styled. NO_COLOR (any value)
// and TERM=dumb turn styling off.
func ColorsEnabled() bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	return os.Getenv("TERM") != "dumb"
}

// StyledText applies style to text when colors are enabled.
func StyledText(text string, style lipgloss.Style) string {
	if ColorsEnabled() {
		return style.Render(text)
	}
	return text
}

// RenderMarkdown renders md for the terminal. Without colors, or when glamour
// cannot render it, md is returned unchanged.
func RenderMarkdown(md string) string {
	if md == "" || !ColorsEnabled() {
		return md
	}
	out, err := glamour.RenderWithEnvironmentConfig(md)
	if err != nil {
		return md
	}
	return strings.TrimSpace(out)
}
