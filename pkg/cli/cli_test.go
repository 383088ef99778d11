package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type fixture struct {
	out      string
	emit     string
	jobs     int
	verbose  bool
	warnings []string
	features []string
}

func newTestApp(fx *fixture) *App {
	app := NewApp("elzc")
	app.Synopsis = "[options] <input.elz> ..."
	app.Stdout, app.Stderr = &bytes.Buffer{}, &bytes.Buffer{}
	app.Width = 80
	fs := app.FlagSet
	fs.String(&fx.out, "output", "o", "out.ll", "Place the output into <file>.", "file")
	fs.String(&fx.emit, "emit", "", "llvm", "What to write.", "kind")
	fs.Int(&fx.jobs, "jobs", "j", 1, "Parallel jobs.", "n")
	fs.Bool(&fx.verbose, "verbose", "v", false, "Log pipeline stages.")
	fs.Prefix(&fx.warnings, "W", "Toggle a warning", "warning")
	fs.Prefix(&fx.features, "F", "Toggle a feature", "feature")
	fs.AddFlagGroup(FlagGroup{
		Name: "Warning Flags", Prefix: "W", Type: "warning", Header: "Available Warnings:",
		Entries: []FlagGroupEntry{{Name: "shadow", Usage: "Shadowed locals", Enabled: true}, {Name: "extra", Usage: "Extra"}},
	})
	return app
}

func TestParse(t *testing.T) {
	var fx fixture
	app := newTestApp(&fx)
	args := []string{"-o", "a.ll", "--emit=qbe", "-j4", "-v", "-Wno-shadow", "-Wall", "-Fnamed-args", "main.elz", "--", "-odd.elz"}
	if err := app.FlagSet.Parse(args); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if fx.out != "a.ll" || fx.emit != "qbe" || fx.jobs != 4 || !fx.verbose {
		t.Fatalf("parsed %+v", fx)
	}
	if diff := cmp.Diff([]string{"no-shadow", "all"}, fx.warnings); diff != "" {
		t.Fatalf("warnings (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"named-args"}, fx.features); diff != "" {
		t.Fatalf("features (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"main.elz", "-odd.elz"}, app.FlagSet.Args()); diff != "" {
		t.Fatalf("args (-want +got):\n%s", diff)
	}
}

func TestParseErrors(t *testing.T) {
	for _, args := range [][]string{{"--nope"}, {"-x"}, {"-o"}, {"--jobs=many"}, {"--verbose=maybe"}} {
		var fx fixture
		if err := newTestApp(&fx).FlagSet.Parse(args); err == nil {
			t.Fatalf("expected an error for %v", args)
		}
	}
}

func TestRunReportsUsage(t *testing.T) {
	var fx fixture
	app := newTestApp(&fx)
	if err := app.Run([]string{"--nope"}); err == nil {
		t.Fatalf("expected an error")
	}
	stderr := app.Stderr.(*bytes.Buffer).String()
	if !strings.Contains(stderr, "unknown flag: --nope") || !strings.Contains(stderr, "Usage: elzc [options] <input.elz> ...") {
		t.Fatalf("stderr = %q", stderr)
	}
}

func TestHelpPage(t *testing.T) {
	var fx fixture
	app := newTestApp(&fx)
	called := false
	app.Action = func([]string) error { called = true; return nil }
	if err := app.Run([]string{"--help"}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if called {
		t.Fatalf("--help must not run the action")
	}
	help := app.Stdout.(*bytes.Buffer).String()
	for _, want := range []string{"-o, --output <file>", "|out.ll|", "-Wno-<warning>", "Available Warnings:", "|x|", "|-|"} {
		if !strings.Contains(help, want) {
			t.Fatalf("help page is missing %q:\n%s", want, help)
		}
	}
	for _, line := range strings.Split(help, "\n") {
		if len(line) > 80 {
			t.Fatalf("line exceeds the width: %q", line)
		}
	}
}

func TestWrapText(t *testing.T) {
	got := wrapText("one two three four", 9)
	if diff := cmp.Diff([]string{"one two", "three", "four"}, got); diff != "" {
		t.Fatalf("wrap (-want +got):\n%s", diff)
	}
}
