// Package ui renders sync summaries and registry listings for the terminal.
//
// Styled output is used only when stdout is a TTY; otherwise everything
// falls back to plain text so output stays pipe- and script-friendly.
package ui

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/rkeller/repofleet/internal/orchestrator"
	"github.com/rkeller/repofleet/internal/registry"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true)
	adoptedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	clonedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	updatedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	skippedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	faintStyle   = lipgloss.NewStyle().Faint(true)
)

// Renderer writes human-readable output.
type Renderer struct {
	out   io.Writer
	plain bool
}

// NewRenderer returns a renderer for out. Styling is enabled only when
// out is os.Stdout and stdout is a terminal.
func NewRenderer(out io.Writer) *Renderer {
	plain := true
	if out == os.Stdout && term.IsTerminal(int(os.Stdout.Fd())) {
		plain = false
	}
	return &Renderer{out: out, plain: plain}
}

// NewPlainRenderer returns a renderer that never styles.
func NewPlainRenderer(out io.Writer) *Renderer {
	return &Renderer{out: out, plain: true}
}

func (r *Renderer) style(s lipgloss.Style, text string) string {
	if r.plain {
		return text
	}
	return s.Render(text)
}

// Summary renders a sync run summary.
func (r *Renderer) Summary(s *orchestrator.Summary) {
	if s.DryRun {
		fmt.Fprintln(r.out, r.style(headerStyle, "dry run: no changes were made"))
	}

	for _, result := range s.Results {
		switch result.Outcome {
		case orchestrator.OutcomeAdopted:
			fmt.Fprintf(r.out, "%s %s\n", r.style(adoptedStyle, "adopted"), result.ID)
		case orchestrator.OutcomeCloned:
			fmt.Fprintf(r.out, "%s %s\n", r.style(clonedStyle, "cloned "), result.ID)
		case orchestrator.OutcomeUpdated:
			suffix := ""
			if result.Commits > 0 {
				suffix = fmt.Sprintf(" (%d commits)", result.Commits)
			}
			fmt.Fprintf(r.out, "%s %s%s\n", r.style(updatedStyle, "updated"), result.ID, suffix)
		case orchestrator.OutcomeSkipped:
			fmt.Fprintf(r.out, "%s %s (%s)\n", r.style(skippedStyle, "skipped"), result.ID, result.Reason)
		case orchestrator.OutcomeError:
			fmt.Fprintf(r.out, "%s %s: %s\n", r.style(errorStyle, "error  "), result.ID, result.Err)
		}
	}

	for _, issue := range s.Issues {
		fmt.Fprintln(r.out, r.style(faintStyle, "note: "+issue))
	}

	fmt.Fprintf(r.out, "%s\n", r.style(headerStyle, fmt.Sprintf(
		"%d adopted, %d cloned, %d updated, %d skipped, %d errors",
		s.Adopted, s.Cloned, s.Updated, s.Skipped, s.Errors)))
}

// Entries renders a registry listing as an aligned table.
func (r *Renderer) Entries(entries []registry.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(r.out, "no repositories registered")
		return
	}

	sorted := append([]registry.Entry(nil), entries...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	idWidth := 0
	for _, e := range sorted {
		if len(e.ID) > idWidth {
			idWidth = len(e.ID)
		}
	}

	for _, e := range sorted {
		var notes []string
		if !e.Managed {
			notes = append(notes, "unmanaged")
		}
		if len(e.Tags) > 0 {
			notes = append(notes, strings.Join(e.Tags, ","))
		}

		line := fmt.Sprintf("%-*s  %s", idWidth, e.ID, e.Description)
		if len(notes) > 0 {
			line += "  " + r.style(faintStyle, "["+strings.Join(notes, " ")+"]")
		}
		fmt.Fprintln(r.out, strings.TrimRight(line, " "))
	}
}
