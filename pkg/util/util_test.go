package util

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/xplshn/elz/pkg/token"
)

type locatedErr struct {
	tok token.Token
	msg string
}

func (e *locatedErr) Error() string                 { return e.msg }
func (e *locatedErr) Locate() (token.Token, string) { return e.tok, e.msg }

func newTestReporter(src string) (*Reporter, *bytes.Buffer) {
	var buf bytes.Buffer
	return NewReporter(&buf, []SourceFileRecord{{Name: "main.elz", Content: []rune(src)}}), &buf
}

func TestErrorExcerpt(t *testing.T) {
	r, buf := newTestReporter("x: int = 1;\ny: bool = x;\n")
	r.Errorf(token.Token{Line: 2, Column: 11, Len: 1}, "type mismatched: expected 'bool', got 'int'")
	want := "main.elz:2:11: error: type mismatched: expected 'bool', got 'int'\n" +
		"  y: bool = x;\n" +
		"            ^\n"
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Fatalf("excerpt (-want +got):\n%s", diff)
	}
	if r.Errors != 1 {
		t.Fatalf("Errors = %d", r.Errors)
	}
}

func TestCaretSkipsWideRunes(t *testing.T) {
	r, buf := newTestReporter("s: string = \"日本\" + oops;")
	r.Errorf(token.Token{Line: 1, Column: 20, Len: 4}, "undefined name")
	lines := strings.Split(buf.String(), "\n")
	// the two CJK runes take two columns each
	if want := "  " + strings.Repeat(" ", 21) + "^~~~"; lines[2] != want {
		t.Fatalf("caret line = %q, want %q", lines[2], want)
	}
}

func TestCaretKeepsTabs(t *testing.T) {
	r, buf := newTestReporter("f(): void {\n\tbad;\n}")
	r.Errorf(token.Token{Line: 2, Column: 2, Len: 3}, "undefined name")
	if !strings.Contains(buf.String(), "  \t^~~\n") {
		t.Fatalf("caret does not follow the tab:\n%q", buf.String())
	}
}

func TestWarning(t *testing.T) {
	r, buf := newTestReporter("import std;")
	r.Warnf(token.Token{Line: 1, Column: 1, Len: 6}, "import", "imports are ignored")
	if !strings.HasPrefix(buf.String(), "main.elz:1:1: warning: imports are ignored [-Wimport]\n") {
		t.Fatalf("warning = %q", buf.String())
	}
	if r.Warnings != 1 {
		t.Fatalf("Warnings = %d", r.Warnings)
	}
}

func TestErrorDispatch(t *testing.T) {
	r, buf := newTestReporter("x: int = y;")
	r.Error(fmt.Errorf("checking: %w", &locatedErr{token.Token{Line: 1, Column: 10, Len: 1}, "undefined name: y"}))
	if !strings.HasPrefix(buf.String(), "main.elz:1:10: error: undefined name: y\n  x: int = y;\n") {
		t.Fatalf("located error = %q", buf.String())
	}
	buf.Reset()
	r.Error(fmt.Errorf("cannot open file"))
	if buf.String() != "error: cannot open file\n" {
		t.Fatalf("plain error = %q", buf.String())
	}
}

func TestUnknownFile(t *testing.T) {
	r, buf := newTestReporter("")
	r.Errorf(token.Token{FileIndex: 4, Line: 3, Column: 1}, "boom")
	if buf.String() != "unknown:3:1: error: boom\n" {
		t.Fatalf("got %q", buf.String())
	}
}
