package render

import (
	"fmt"
	"strings"

	humanize "github.com/dustin/go-humanize"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/ALT-F4-LLC/bundlepub/internal/model"
)

// SummaryMarkdown describes a published bundle as markdown.
func SummaryMarkdown(p *model.Published) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Published %s\n\n", p.ExportID)
	fmt.Fprintf(&b, "- **Issue:** %s\n", p.IssueKey)
	fmt.Fprintf(&b, "- **Vendor:** %s\n", p.Vendor)
	fmt.Fprintf(&b, "- **Directory:** `%s`\n", p.Dir)
	fmt.Fprintf(&b, "- **Bundle:** %s (%s)\n", lastElem(p.Archive), humanize.Bytes(uint64(p.SizeBytes)))
	fmt.Fprintf(&b, "- **Files:** %d\n", len(p.Files))
	return b.String()
}

// RenderPublished renders the summary of a published bundle followed by the
// list of files it placed. Without colors the output is plain text.
func RenderPublished(p *model.Published) string {
	summary := RenderMarkdown(SummaryMarkdown(p))
	if len(p.Files) == 0 {
		return summary
	}
	return summary + "\n\n" + renderFiles(p.Files)
}

func renderFiles(files []string) string {
	if !ColorsEnabled() {
		return strings.Join(files, "\n")
	}

	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Padding(0, 1)
	cellStyle := lipgloss.NewStyle().Padding(0, 1)

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("8"))).
		Headers("FILE").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	for _, f := range files {
		t.Row(f)
	}
	return t.String()
}

func lastElem(path string) string {
	if i := strings.LastIndexAny(path, `/\`); i >= 0 {
		return path[i+1:]
	}
	return path
}
