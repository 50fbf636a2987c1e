// Package diag renders source-level diagnostics and rewrite-session
// statistics with the same Rust-like, colorized styling the language
// front end uses for compiler errors.
package diag

import (
	"fmt"
	"strings"

	"github.com/fatih/color"

	"bvrewrite/internal/rewrite"
)

// Severity is a diagnostic's level.
type Severity string

const (
	Error   Severity = "error"
	Warning Severity = "warning"
	Note    Severity = "note"
)

// Position is a 1-based line/column location in source text.
type Position struct {
	Line   int
	Column int
}

// Diagnostic is a single reportable issue: a parse error, an unsupported
// width mismatch, or a precondition violation surfaced from the rewrite
// engine.
type Diagnostic struct {
	Severity Severity
	Message  string
	Position Position
	Length   int
	Notes    []string
}

// Reporter formats diagnostics against one source file.
type Reporter struct {
	filename string
	lines    []string
}

// NewReporter creates a reporter for filename's source text.
func NewReporter(filename, source string) *Reporter {
	return &Reporter{filename: filename, lines: strings.Split(source, "\n")}
}

// Format renders d with a caret pointing at its position, gutter line
// numbers, and any attached notes.
func (r *Reporter) Format(d Diagnostic) string {
	var out strings.Builder

	levelColor := severityColor(d.Severity)
	bold := color.New(color.Bold).SprintFunc()
	dim := color.New(color.Faint).SprintFunc()

	out.WriteString(fmt.Sprintf("%s: %s\n", levelColor(string(d.Severity)), d.Message))

	width := r.lineNumberWidth(d.Position.Line)
	indent := strings.Repeat(" ", width)
	out.WriteString(fmt.Sprintf("%s %s %s:%d:%d\n", indent, dim("-->"), r.filename, d.Position.Line, d.Position.Column))
	out.WriteString(fmt.Sprintf("%s %s\n", indent, dim("│")))

	if d.Position.Line > 0 && d.Position.Line <= len(r.lines) {
		line := r.lines[d.Position.Line-1]
		out.WriteString(fmt.Sprintf("%s %s %s\n", bold(fmt.Sprintf("%*d", width, d.Position.Line)), dim("│"), line))
		length := d.Length
		if length <= 0 {
			length = 1
		}
		spaces := strings.Repeat(" ", max(0, d.Position.Column-1))
		marker := levelColor(strings.Repeat("^", length))
		out.WriteString(fmt.Sprintf("%s %s %s%s\n", indent, dim("│"), spaces, marker))
	}

	for _, note := range d.Notes {
		noteColor := color.New(color.FgBlue).SprintFunc()
		out.WriteString(fmt.Sprintf("%s %s %s %s\n", indent, dim("│"), noteColor("note:"), note))
	}
	out.WriteString("\n")
	return out.String()
}

func severityColor(s Severity) func(a ...interface{}) string {
	switch s {
	case Error:
		return color.New(color.FgRed, color.Bold).SprintFunc()
	case Warning:
		return color.New(color.FgYellow, color.Bold).SprintFunc()
	default:
		return color.New(color.FgBlue, color.Bold).SprintFunc()
	}
}

func (r *Reporter) lineNumberWidth(line int) int {
	width := len(fmt.Sprintf("%d", line))
	if width < 3 {
		width = 3
	}
	return width
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// RenderStats formats a rewrite session's counters for CLI output.
func RenderStats(s rewrite.Stats) string {
	bold := color.New(color.Bold).SprintFunc()
	label := color.New(color.FgCyan).SprintFunc()
	var out strings.Builder
	out.WriteString(bold("rewrite stats\n"))
	fmt.Fprintf(&out, "  %s %d\n", label("max recursive calls:"), s.MaxRecRwCalls)
	fmt.Fprintf(&out, "  %s %d\n", label("adds normalized:"), s.AddsNormalized)
	fmt.Fprintf(&out, "  %s %d\n", label("muls normalized:"), s.MulsNormalized)
	fmt.Fprintf(&out, "  %s %d\n", label("read propagations:"), s.ReadPropsConstruct)
	return out.String()
}
