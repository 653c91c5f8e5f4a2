// Package clidiag renders compiler diagnostics (pkg/errors.Errors) against
// the original source text: a caret-and-excerpt view of the offending
// span, its hints, and its code (spec §7 "the driver formats each error
// with its span rendered against the original source"). ANSI coloring is
// applied through charmbracelet/lipgloss when requested, with color
// profile detection delegated to muesli/termenv, mirroring the teacher's
// getSeverityStyle (internal/cli/commands/rules.go) and its lipgloss-based
// output.Styles.
package clidiag

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"

	"github.com/leapstack-labs/leapsql/pkg/errors"
	"github.com/leapstack-labs/leapsql/pkg/ident"
)

// Styles groups the lipgloss styles used to render one diagnostic.
type Styles struct {
	Error   lipgloss.Style
	Warning lipgloss.Style
	Muted   lipgloss.Style
	Bold    lipgloss.Style
}

// PlainStyles renders with no ANSI escapes at all.
func PlainStyles() Styles {
	return Styles{}
}

// ColorStyles renders with the teacher's severity palette. If the running
// environment's detected color profile (muesli/termenv) can't render ANSI
// at all, it falls back to PlainStyles rather than emit raw escape codes a
// dumb terminal or pipe would show verbatim.
func ColorStyles() Styles {
	if termenv.EnvColorProfile() == termenv.Ascii {
		return PlainStyles()
	}
	return Styles{
		Error:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9")),
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		Muted:   lipgloss.NewStyle().Faint(true),
		Bold:    lipgloss.NewStyle().Bold(true),
	}
}

// IsTTY reports whether fd (typically os.Stderr) is an interactive
// terminal, the same check the teacher's renderer performs before
// defaulting to ANSI output.
func IsTTY(fd uintptr) bool {
	return term.IsTerminal(int(fd))
}

// Render formats es against source (the named file's text, src_id-keyed)
// for display. With PlainStyles(), the output carries no ANSI sequences.
func Render(es *errors.Errors, sources map[uint16]string, styles Styles) string {
	if es == nil || len(es.Items) == 0 {
		return ""
	}
	var b strings.Builder
	for i, e := range es.Items {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(renderOne(e, sources, styles))
	}
	return b.String()
}

func renderOne(e *errors.Error, sources map[uint16]string, styles Styles) string {
	var b strings.Builder
	kindStyle := styles.Error
	if e.Kind == errors.KindWarning {
		kindStyle = styles.Warning
	}
	b.WriteString(kindStyle.Render(e.Kind.String()+":") + " " + e.Reason.String())
	if e.Code != "" {
		b.WriteString(styles.Muted.Render(" [" + e.Code + "]"))
	}
	b.WriteString("\n")

	if e.Span != nil {
		if excerpt, ok := sourceExcerpt(*e.Span, sources); ok {
			b.WriteString(excerpt)
		} else {
			b.WriteString(styles.Muted.Render(fmt.Sprintf("  at %s\n", e.Span.String())))
		}
	}
	for _, hint := range e.Hints {
		b.WriteString(styles.Muted.Render("  = hint: "+hint) + "\n")
	}
	return b.String()
}

// sourceExcerpt renders a caret-underlined line excerpt for span, the
// classic compiler-diagnostic layout:
//
//	3 | select missing_col
//	  |        ^^^^^^^^^^^
func sourceExcerpt(span ident.Span, sources map[uint16]string) (string, bool) {
	src, ok := sources[span.SourceID]
	if !ok {
		return "", false
	}
	line, col, lineText := lineAndColumn(src, int(span.Start))
	width := int(span.End) - int(span.Start)
	if width < 1 {
		width = 1
	}
	gutter := fmt.Sprintf("%d", line)
	var b strings.Builder
	fmt.Fprintf(&b, "%s | %s\n", gutter, lineText)
	fmt.Fprintf(&b, "%s | %s%s\n", strings.Repeat(" ", len(gutter)), strings.Repeat(" ", col), strings.Repeat("^", width))
	return b.String(), true
}

func lineAndColumn(src string, pos int) (line, col int, lineText string) {
	if pos > len(src) {
		pos = len(src)
	}
	line = 1
	lineStart := 0
	for i := 0; i < pos; i++ {
		if src[i] == '\n' {
			line++
			lineStart = i + 1
		}
	}
	lineEnd := strings.IndexByte(src[lineStart:], '\n')
	if lineEnd == -1 {
		lineText = src[lineStart:]
	} else {
		lineText = src[lineStart : lineStart+lineEnd]
	}
	col = pos - lineStart
	return line, col, lineText
}
