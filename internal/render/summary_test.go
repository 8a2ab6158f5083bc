package render

import (
	"os"
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"

	"github.com/ALT-F4-LLC/bundlepub/internal/model"
)

func testPublished() *model.Published {
	return &model.Published{
		IssueKey:  "MICROSUB-1",
		Vendor:    "acme",
		ExportID:  "abc123",
		Dir:       "http/acme/abc123",
		Archive:   "http/acme/abc123/app.mapp",
		Files:     []string{"app.mapp", "metadata.json"},
		SizeBytes: 2048,
	}
}

func TestSummaryMarkdown(t *testing.T) {
	got := SummaryMarkdown(testPublished())

	for _, want := range []string{
		"## Published abc123",
		"**Issue:** MICROSUB-1",
		"**Vendor:** acme",
		"`http/acme/abc123`",
		"app.mapp (2.0 kB)",
		"**Files:** 2",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("expected %q in summary, got:\n%s", want, got)
		}
	}
}

func TestRenderPublishedPlain(t *testing.T) {
	t.Setenv("NO_COLOR", "1")

	got := RenderPublished(testPublished())
	if !strings.HasPrefix(got, SummaryMarkdown(testPublished())) {
		t.Errorf("expected unrendered markdown without colors, got:\n%s", got)
	}
	if !strings.HasSuffix(got, "app.mapp\nmetadata.json") {
		t.Errorf("expected plain file list, got:\n%s", got)
	}
}

func TestRenderPublishedNoFiles(t *testing.T) {
	t.Setenv("NO_COLOR", "1")

	p := testPublished()
	p.Files = nil
	if got := RenderPublished(p); got != SummaryMarkdown(p) {
		t.Errorf("got:\n%s", got)
	}
}

func TestStyledTextWithoutColors(t *testing.T) {
	t.Setenv("NO_COLOR", "1")

	if got := StyledText("plain", lipgloss.NewStyle().Bold(true)); got != "plain" {
		t.Errorf("StyledText = %q, want %q", got, "plain")
	}
}

func TestColorsEnabled(t *testing.T) {
	t.Setenv("NO_COLOR", "")
	os.Unsetenv("NO_COLOR")

	t.Setenv("TERM", "xterm-256color")
	if !ColorsEnabled() {
		t.Error("colors disabled on a capable terminal")
	}
	t.Setenv("TERM", "dumb")
	if ColorsEnabled() {
		t.Error("colors enabled with TERM=dumb")
	}
	t.Setenv("TERM", "xterm-256color")
	t.Setenv("NO_COLOR", "")
	if ColorsEnabled() {
		t.Error("colors enabled with NO_COLOR set")
	}
}

func TestRenderMarkdownPlain(t *testing.T) {
	t.Setenv("NO_COLOR", "1")

	md := "## Published abc123\n\n- **Vendor:** acme\n"
	if got := RenderMarkdown(md); got != md {
		t.Errorf("RenderMarkdown = %q, want input unchanged", got)
	}
	if got := RenderMarkdown(""); got != "" {
		t.Errorf("RenderMarkdown(\"\") = %q", got)
	}
}
