// Package output renders command results for the terminal.
//
// [Printer] wraps an io.Writer and styles everything with lipgloss. When the
// writer is not a terminal lipgloss drops the colors, so the same output is
// safe to capture in tests or pipe to a file.
package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"stlcpilot/internal/document"
	"stlcpilot/internal/router"
	"stlcpilot/internal/stage"
)

// Printer writes styled output.
type Printer struct {
	w            io.Writer
	previewLines int
	previewWidth int
}

// NewPrinter creates a Printer writing to stdout.
func NewPrinter() *Printer {
	return NewPrinterWithWriter(os.Stdout)
}

// NewPrinterWithWriter creates a Printer writing to w.
func NewPrinterWithWriter(w io.Writer) *Printer {
	return &Printer{w: w}
}

// SetPreview bounds draft previews to lines rows of at most width runes.
// Zero or negative values disable the bound.
func (p *Printer) SetPreview(lines, width int) {
	p.previewLines = lines
	p.previewWidth = width
}

// Writer returns the underlying writer.
func (p *Printer) Writer() io.Writer {
	return p.w
}

func (p *Printer) printf(format string, args ...any) {
	fmt.Fprintf(p.w, format, args...)
}

// Title prints a bold heading.
func (p *Printer) Title(text string) {
	p.printf("%s\n", titleStyle.Render(text))
}

// Success prints a success line.
func (p *Printer) Success(format string, args ...any) {
	p.printf("%s %s\n", successStyle.Render(iconDone), fmt.Sprintf(format, args...))
}

// Warning prints a warning line.
func (p *Printer) Warning(format string, args ...any) {
	p.printf("%s %s\n", warningStyle.Render(iconWarning), fmt.Sprintf(format, args...))
}

// Error prints an error line.
func (p *Printer) Error(format string, args ...any) {
	p.printf("%s %s\n", errorStyle.Render(iconError), fmt.Sprintf(format, args...))
}

// Info prints a plain line.
func (p *Printer) Info(format string, args ...any) {
	p.printf("%s\n", fmt.Sprintf(format, args...))
}

// StageStart prints the progress marker shown before a step runs.
func (p *Printer) StageStart(step, total int, s stage.Stage) {
	p.printf("%s %s\n",
		mutedStyle.Render(fmt.Sprintf("[%d/%d]", step, total)),
		boldStyle.Render(s.Label()))
}

// Draft prints a bordered preview of a pending draft.
func (p *Printer) Draft(d document.Draft) {
	header := fmt.Sprintf("Draft for %s", d.Stage.Label())
	if !d.GeneratedAt.IsZero() {
		header += mutedStyle.Render(" (" + d.GeneratedAt.Format(time.RFC3339) + ")")
	}
	p.printf("%s\n", titleStyle.Render(header))
	p.printf("%s\n", draftBoxStyle.Render(Preview(d.Content, p.previewLines, p.previewWidth)))
	if d.Feedback != "" {
		p.printf("%s %s\n", mutedStyle.Render("feedback:"), d.Feedback)
	}
}

// Status prints where a session stands: every stage with a marker for
// completed, current and upcoming stages, followed by any pending draft.
func (p *Printer) Status(snap document.Snapshot) {
	doc := snap.Document
	name := doc.ProjectName
	if name == "" {
		name = "(not initialized)"
	}
	p.printf("%s %s\n", titleStyle.Render(name), mutedStyle.Render(snap.ID))
	if len(doc.Requirements) > 0 {
		p.printf("%s %d\n", mutedStyle.Render("requirements:"), len(doc.Requirements))
	}

	for _, s := range stage.All() {
		switch {
		case s == doc.CurrentStage && s.IsTerminal():
			p.printf("  %s %s\n", successStyle.Render(iconDone), s.Label())
		case s == doc.CurrentStage:
			p.printf("  %s %s\n", warningStyle.Render(iconCurrent), boldStyle.Render(s.Label()))
		case s.Before(doc.CurrentStage):
			p.printf("  %s %s\n", successStyle.Render(iconDone), s.Label())
		default:
			p.printf("  %s %s\n", mutedStyle.Render(iconPending), mutedStyle.Render(s.Label()))
		}
	}

	if snap.Pending != nil {
		p.printf("%s %s\n", mutedStyle.Render("pending draft:"), snap.Pending.Stage.Label())
	}
}

// Steps prints the remaining lifecycle steps.
func (p *Printer) Steps(steps []router.LifecycleStep) {
	for i, step := range steps {
		kind := "approve"
		if step.Produces {
			kind = "generate"
		}
		p.printf("%d. %s %s %s\n", i+1, step.Stage.Label(),
			mutedStyle.Render("->"), mutedStyle.Render(fmt.Sprintf("%s (%s)", step.Next, kind)))
	}
}

// Sessions prints one line per session.
func (p *Printer) Sessions(snaps []document.Snapshot) {
	if len(snaps) == 0 {
		p.printf("%s\n", mutedStyle.Render("no sessions"))
		return
	}
	for _, snap := range snaps {
		name := snap.Document.ProjectName
		if name == "" {
			name = "-"
		}
		p.printf("%s  %s  %s  %s\n",
			boldStyle.Render(snap.ID),
			name,
			snap.Document.CurrentStage,
			mutedStyle.Render(snap.UpdatedAt.Format(time.RFC3339)))
	}
}

// Artifacts prints the files written by an export.
func (p *Printer) Artifacts(paths []string) {
	p.printf("%s\n", titleStyle.Render(fmt.Sprintf("%d artifacts", len(paths))))
	for _, path := range paths {
		p.printf("  %s %s\n", successStyle.Render(iconDone), path)
	}
}

// Preview truncates content to at most lines rows, each at most width runes.
// Truncated rows end with an ellipsis and dropped rows are counted on a final
// line. Zero or negative bounds leave that dimension untouched.
func Preview(content string, lines, width int) string {
	rows := strings.Split(strings.TrimRight(content, "\n"), "\n")

	dropped := 0
	if lines > 0 && len(rows) > lines {
		dropped = len(rows) - lines
		rows = rows[:lines]
	}

	if width > 0 {
		for i, row := range rows {
			if utf8.RuneCountInString(row) > width {
				r := []rune(row)
				rows[i] = string(r[:width-1]) + "…"
			}
		}
	}

	out := strings.Join(rows, "\n")
	if dropped > 0 {
		out += fmt.Sprintf("\n… %d more lines", dropped)
	}
	return out
}
