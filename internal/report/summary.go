package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62"))

	createdStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	failedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	idStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("240")).
		Italic(true)
)

// maxBodyWidth keeps long upstream error payloads from flooding the terminal.
const maxBodyWidth = 160

// RenderSummary prints per-phase counts followed by one line per failure.
func RenderSummary(w io.Writer, r *Report) error {
	s := r.Summary()

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", headerStyle.Render("Migration run"), idStyle.Render(r.RunID))
	fmt.Fprintf(&b, "  %-12s %s created  %s failed\n", "Parents",
		createdStyle.Render(fmt.Sprint(s.Parents.Created)), failedStyle.Render(fmt.Sprint(s.Parents.Failed)))
	fmt.Fprintf(&b, "  %-12s %s created  %s failed\n", "Attachments",
		createdStyle.Render(fmt.Sprint(s.Attachments.Created)), failedStyle.Render(fmt.Sprint(s.Attachments.Failed)))

	failures := r.Failures()
	if len(failures) > 0 {
		fmt.Fprintf(&b, "\n%s\n", headerStyle.Render("Failures"))
		for _, f := range failures {
			fmt.Fprintf(&b, "  %s %s %s\n", f.ObjectType, idStyle.Render(f.SourceID), truncate(f.Error, maxBodyWidth))
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// truncate keeps the first n characters of s on a single line.
func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
