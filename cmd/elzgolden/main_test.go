package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/xplshn/elz/pkg/driver"
)

func TestGoldenFiles(t *testing.T) {
	files, err := expandGlobs([]string{filepath.Join("..", "..", "testdata", "*.elz")})
	if err != nil {
		t.Fatalf("expandGlobs: %v", err)
	}
	if len(files) == 0 {
		t.Fatalf("no test sources found")
	}
	d := driver.New(nil)
	for i, file := range files {
		t.Run(filepath.Base(file), func(t *testing.T) {
			r := checkFile(d, i, file, options{}, nil)
			if r.Status != statusPass {
				t.Fatalf("%s: %s\n%s", r.Status, r.Message, r.Diff)
			}
		})
	}
}

func TestUpdateAndCache(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "one.elz")
	if err := os.WriteFile(src, []byte("one(): int = 1;\n"), 0644); err != nil {
		t.Fatal(err)
	}
	d := driver.New(nil)

	r := checkFile(d, 0, src, options{}, nil)
	if r.Status != statusSkip {
		t.Fatalf("status without golden = %s, want %s", r.Status, statusSkip)
	}

	r = checkFile(d, 0, src, options{update: true}, nil)
	if r.Status != statusNew {
		t.Fatalf("status on update = %s (%s)", r.Status, r.Message)
	}
	got, err := os.ReadFile(filepath.Join(dir, "one.ll"))
	if err != nil {
		t.Fatal(err)
	}
	if want := "define i64 @one() {\n  ret i64 1\n}\n"; string(got) != want {
		t.Fatalf("golden = %q, want %q", got, want)
	}

	last := checkFile(d, 0, src, options{}, nil)
	if last.Status != statusPass {
		t.Fatalf("status after update = %s (%s)", last.Status, last.Message)
	}
	r = checkFile(d, 0, src, options{cached: true}, last)
	if r.Message != "unchanged since last run" {
		t.Fatalf("cached run recompiled: %+v", r)
	}

	if err := os.WriteFile(filepath.Join(dir, "one.ll"), []byte("stale\n"), 0644); err != nil {
		t.Fatal(err)
	}
	r = checkFile(d, 0, src, options{cached: true}, last)
	if r.Status != statusFail || r.Diff == "" {
		t.Fatalf("stale golden not detected: %+v", r)
	}
}

func TestCompiledButErrorExpected(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "ok.elz")
	if err := os.WriteFile(src, []byte("ok(): int = 1;\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "ok.err"), []byte("type mismatched\n"), 0644); err != nil {
		t.Fatal(err)
	}
	r := checkFile(driver.New(nil), 0, src, options{}, nil)
	if r.Status != statusFail {
		t.Fatalf("status = %s, want %s", r.Status, statusFail)
	}
}
