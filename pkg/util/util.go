// Package util renders compiler diagnostics: a `file:line:col: error:`
// header followed by the offending source line and a caret under the token.
package util

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"
	"github.com/xplshn/elz/pkg/token"
	"golang.org/x/term"
)

// SourceFileRecord tracks the name and content of a single source file.
type SourceFileRecord struct {
	Name    string
	Content []rune
}

// Located is implemented by errors that point at a token of a source file
type Located interface {
	error
	Locate() (tok token.Token, msg string)
}

type Reporter struct {
	out   io.Writer
	files []SourceFileRecord

	errorColor   *color.Color
	warningColor *color.Color
	caretColor   *color.Color
	noteColor    *color.Color

	Errors   int
	Warnings int
}

// UseColor reports whether out is a terminal and NO_COLOR is unset
func UseColor(out io.Writer) bool {
	f, ok := out.(*os.File)
	return ok && os.Getenv("NO_COLOR") == "" && term.IsTerminal(int(f.Fd()))
}

func NewReporter(out io.Writer, files []SourceFileRecord) *Reporter {
	colored := UseColor(out)
	paint := func(attrs ...color.Attribute) *color.Color {
		c := color.New(attrs...)
		if colored {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
		return c
	}
	return &Reporter{
		out:          out,
		files:        files,
		errorColor:   paint(color.FgRed, color.Bold),
		warningColor: paint(color.FgYellow, color.Bold),
		caretColor:   paint(color.FgGreen),
		noteColor:    paint(color.FgCyan),
	}
}

func (r *Reporter) fileName(tok token.Token) string {
	if tok.FileIndex < 0 || tok.FileIndex >= len(r.files) {
		return "unknown"
	}
	return r.files[tok.FileIndex].Name
}

// sourceLine returns the line tok sits on, without its newline
func (r *Reporter) sourceLine(tok token.Token) ([]rune, bool) {
	if tok.FileIndex < 0 || tok.FileIndex >= len(r.files) || tok.Line <= 0 {
		return nil, false
	}
	content := r.files[tok.FileIndex].Content
	line, start := 1, 0
	for i := 0; i < len(content) && line < tok.Line; i++ {
		if content[i] == '\n' {
			line++
			start = i + 1
		}
	}
	if line != tok.Line {
		return nil, false
	}
	end := start
	for end < len(content) && content[end] != '\n' {
		end++
	}
	return content[start:end], true
}

// printExcerpt prints the source line and a caret spanning the token. The
// padding keeps tabs and counts wide runes twice so the caret lines up.
func (r *Reporter) printExcerpt(tok token.Token) {
	line, ok := r.sourceLine(tok)
	if !ok {
		return
	}
	col := min(max(tok.Column-1, 0), len(line))
	var pad strings.Builder
	for _, c := range line[:col] {
		if c == '\t' {
			pad.WriteRune('\t')
			continue
		}
		pad.WriteString(strings.Repeat(" ", runewidth.RuneWidth(c)))
	}
	span := 1
	if tok.Len > 1 {
		end := min(col+tok.Len, len(line))
		span = max(runewidth.StringWidth(string(line[col:end])), 1)
	}
	fmt.Fprintf(r.out, "  %s\n", string(line))
	fmt.Fprintf(r.out, "  %s%s\n", pad.String(), r.caretColor.Sprint("^"+strings.Repeat("~", span-1)))
}

func (r *Reporter) header(tok token.Token, label string) string {
	return fmt.Sprintf("%s:%d:%d: %s ", r.fileName(tok), tok.Line, tok.Column, label)
}

// Errorf reports an error at tok
func (r *Reporter) Errorf(tok token.Token, format string, args ...interface{}) {
	r.Errors++
	fmt.Fprint(r.out, r.header(tok, r.errorColor.Sprint("error:")))
	fmt.Fprintf(r.out, format+"\n", args...)
	r.printExcerpt(tok)
}

// Warnf reports a warning at tok, naming the -W flag that controls it
func (r *Reporter) Warnf(tok token.Token, flag string, format string, args ...interface{}) {
	r.Warnings++
	fmt.Fprint(r.out, r.header(tok, r.warningColor.Sprint("warning:")))
	fmt.Fprintf(r.out, format, args...)
	fmt.Fprintf(r.out, " [-W%s]\n", flag)
	r.printExcerpt(tok)
}

// Notef prints a message that has no source position
func (r *Reporter) Notef(format string, args ...interface{}) {
	fmt.Fprintf(r.out, "%s %s\n", r.noteColor.Sprint("note:"), fmt.Sprintf(format, args...))
}

// Error reports err, with a source excerpt when it carries a position
func (r *Reporter) Error(err error) {
	var located Located
	if errors.As(err, &located) {
		tok, msg := located.Locate()
		r.Errorf(tok, "%s", msg)
		return
	}
	r.Errors++
	fmt.Fprintf(r.out, "%s %v\n", r.errorColor.Sprint("error:"), err)
}
