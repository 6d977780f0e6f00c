package util

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/xplshn/odinc/pkg/config"
	"github.com/xplshn/odinc/pkg/token"
	"golang.org/x/term"
)

type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
)

func (s Severity) String() string {
	if s == SeverityWarning {
		return "warning"
	}
	return "error"
}

// Diagnostic is one collected error or warning.
type Diagnostic struct {
	Severity Severity
	Tok      token.Token
	Msg      string
	Warning  string // Name of the -W flag controlling a warning
	Notes    []string
}

// SourceFileRecord tracks the name and content of a single source file.
type SourceFileRecord struct {
	Name    string
	Content []rune
}

// Diagnostics accumulates every diagnostic of a compilation run. Errors are
// counted; a non-zero count stops the pipeline before code generation.
type Diagnostics struct {
	cfg      *config.Config
	list     []Diagnostic
	errors   int
	warnings int
	files    []SourceFileRecord
}

func NewDiagnostics(cfg *config.Config) *Diagnostics {
	return &Diagnostics{cfg: cfg}
}

// SetSourceFiles stores the source code for all input files for rich error messages
func (d *Diagnostics) SetSourceFiles(files []SourceFileRecord) { d.files = files }

func (d *Diagnostics) Errorf(tok token.Token, format string, args ...interface{}) {
	d.list = append(d.list, Diagnostic{Severity: SeverityError, Tok: tok, Msg: fmt.Sprintf(format, args...)})
	d.errors++
}

// Warnf records a warning if the corresponding warning is enabled
func (d *Diagnostics) Warnf(wt config.Warning, tok token.Token, format string, args ...interface{}) {
	if d.cfg != nil && !d.cfg.IsWarningEnabled(wt) {
		return
	}
	name := ""
	if d.cfg != nil {
		name = d.cfg.Warnings[wt].Name
	}
	d.list = append(d.list, Diagnostic{Severity: SeverityWarning, Tok: tok, Msg: fmt.Sprintf(format, args...), Warning: name})
	d.warnings++
}

// Notef attaches a note line to the most recent diagnostic.
func (d *Diagnostics) Notef(format string, args ...interface{}) {
	if len(d.list) == 0 {
		return
	}
	last := &d.list[len(d.list)-1]
	last.Notes = append(last.Notes, fmt.Sprintf(format, args...))
}

func (d *Diagnostics) ErrorCount() int   { return d.errors }
func (d *Diagnostics) WarningCount() int { return d.warnings }
func (d *Diagnostics) List() []Diagnostic { return d.list }

// Errors returns the messages of all errors in report order.
func (d *Diagnostics) Errors() []string {
	var msgs []string
	for _, diag := range d.list {
		if diag.Severity == SeverityError {
			msgs = append(msgs, diag.Msg)
		}
	}
	return msgs
}

// Warnings returns the messages of all warnings in report order.
func (d *Diagnostics) Warnings() []string {
	var msgs []string
	for _, diag := range d.list {
		if diag.Severity == SeverityWarning {
			msgs = append(msgs, diag.Msg)
		}
	}
	return msgs
}

func (d *Diagnostics) fileName(tok token.Token) string {
	if tok.FileIndex < 0 || tok.FileIndex >= len(d.files) {
		return "unknown"
	}
	return d.files[tok.FileIndex].Name
}

func (d *Diagnostics) Format(diag Diagnostic) string {
	s := fmt.Sprintf("%s:%d:%d: %s: %s", d.fileName(diag.Tok), diag.Tok.Line, diag.Tok.Column, diag.Severity, diag.Msg)
	if diag.Warning != "" {
		s += " [-W" + diag.Warning + "]"
	}
	return s
}

// Print writes every diagnostic to w, coloured when w is a terminal.
func (d *Diagnostics) Print(w io.Writer) {
	color, width := false, 0
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		color = true
		if cols, _, err := term.GetSize(int(f.Fd())); err == nil {
			width = cols
		}
	}
	for _, diag := range d.list {
		sev := diag.Severity.String()
		if color {
			code := "31"
			if diag.Severity == SeverityWarning {
				code = "33"
			}
			sev = "\033[" + code + "m" + sev + "\033[0m"
		}
		fmt.Fprintf(w, "%s:%d:%d: %s: %s", d.fileName(diag.Tok), diag.Tok.Line, diag.Tok.Column, sev, diag.Msg)
		if diag.Warning != "" {
			fmt.Fprintf(w, " [-W%s]", diag.Warning)
		}
		fmt.Fprintln(w)
		d.printErrorLine(w, diag.Tok, color)
		for _, note := range diag.Notes {
			for _, line := range wrap(note, width-2) {
				fmt.Fprintf(w, "  %s\n", line)
			}
		}
	}
}

// printErrorLine prints the source line and a caret indicating the error position
func (d *Diagnostics) printErrorLine(w io.Writer, tok token.Token, color bool) {
	if tok.FileIndex < 0 || tok.FileIndex >= len(d.files) || tok.Line == 0 {
		return
	}

	content := d.files[tok.FileIndex].Content
	lineNum := tok.Line
	lineStart := 0
	for i, r := range content {
		if lineNum <= 1 {
			break
		}
		if r == '\n' {
			lineNum--
			lineStart = i + 1
		}
	}

	lineEnd := len(content)
	for i := lineStart; i < len(content); i++ {
		if content[i] == '\n' {
			lineEnd = i
			break
		}
	}

	fmt.Fprintf(w, "  %s\n", string(content[lineStart:lineEnd]))

	caret := strings.Repeat(" ", max(tok.Column-1, 0)) + "^"
	if tok.Len > 1 {
		caret += strings.Repeat("~", tok.Len-1)
	}
	if color {
		caret = "\033[32m" + caret + "\033[0m"
	}
	fmt.Fprintf(w, "  %s\n", caret)
}

func wrap(s string, width int) []string {
	if width <= 20 || len(s) <= width {
		return []string{s}
	}
	var lines []string
	var cur strings.Builder
	for _, word := range strings.Fields(s) {
		if cur.Len() > 0 && cur.Len()+1+len(word) > width {
			lines = append(lines, cur.String())
			cur.Reset()
		}
		if cur.Len() > 0 {
			cur.WriteByte(' ')
		}
		cur.WriteString(word)
	}
	if cur.Len() > 0 {
		lines = append(lines, cur.String())
	}
	return lines
}

// Fatalf aborts on a broken compiler invariant. These are bugs, never user
// errors, so the panic carries a stack trace.
func Fatalf(tok token.Token, format string, args ...interface{}) {
	panic(errors.Errorf("internal compiler error at %d:%d: %s", tok.Line, tok.Column, fmt.Sprintf(format, args...)))
}
