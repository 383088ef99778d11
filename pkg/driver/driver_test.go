package driver

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/xplshn/elz/pkg/config"
	"github.com/xplshn/elz/pkg/parser"
	"github.com/xplshn/elz/pkg/typeChecker"
)

func TestCompile(t *testing.T) {
	res, err := Compile("main.elz", "x: int = 1;\nmain(): void {}", config.NewConfig())
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	want := "@x = global i64 1\ndefine void @main() {\n  ret void\n}\n"
	if diff := cmp.Diff(want, string(res.Output)); diff != "" {
		t.Fatalf("output (-want +got):\n%s", diff)
	}
	if res.Module == nil || len(res.Program) != 2 {
		t.Fatalf("result is missing the module or the program")
	}
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name  string
		code  string
		check func(error) bool
	}{
		{"lexer", `x: string = "open`, func(err error) bool { return err != nil }},
		{"parser", "x: int = ;", func(err error) bool {
			var pe *parser.Error
			return errors.As(err, &pe)
		}},
		{"checker", "x: int = true;", func(err error) bool {
			var se *typeChecker.SemanticError
			return errors.As(err, &se) && se.Kind == typeChecker.TypeMismatch
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile("bad.elz", tt.code, config.NewConfig())
			if !tt.check(err) {
				t.Fatalf("unexpected error %v", err)
			}
		})
	}
}

func TestCheckOnly(t *testing.T) {
	d := New(nil)
	d.CheckOnly = true
	res, err := d.Compile(0, "main.elz", "import std::io;\nf(): int = 1;", config.NewConfig())
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if res.Module != nil || res.Output != nil {
		t.Fatalf("check-only compilation must not lower")
	}
	if len(res.Warnings) != 1 || res.Warnings[0].Kind != config.WarnImport {
		t.Fatalf("warnings = %+v", res.Warnings)
	}
}

func TestQBEEmit(t *testing.T) {
	cfg := config.NewConfig()
	if err := cfg.SetEmit("qbe"); err != nil {
		t.Fatalf("SetEmit: %v", err)
	}
	res, err := Compile("main.elz", "f(x: int): int = x * 2;", cfg)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if !strings.Contains(string(res.Output), "export function l $f(l %x) {") {
		t.Fatalf("QBE output = %q", res.Output)
	}
}

func TestCache(t *testing.T) {
	cache, err := OpenCache(t.TempDir())
	if err != nil {
		t.Fatalf("OpenCache: %v", err)
	}
	d := New(nil)
	d.Cache = cache
	cfg := config.NewConfig()
	src := "f(): int = 1;"

	first, err := d.Compile(0, "a.elz", src, cfg)
	if err != nil || first.Cached {
		t.Fatalf("first compile: cached=%v err=%v", first != nil && first.Cached, err)
	}
	second, err := d.Compile(0, "a.elz", src, cfg)
	if err != nil {
		t.Fatalf("second compile: %v", err)
	}
	if !second.Cached || second.Module != nil {
		t.Fatalf("second compile must come from the cache")
	}
	if diff := cmp.Diff(first.Output, second.Output); diff != "" {
		t.Fatalf("cached output differs (-first +second):\n%s", diff)
	}

	cfg.SetFeature(config.FeatNamedArgs, false)
	third, err := d.Compile(0, "a.elz", src, cfg)
	if err != nil || third.Cached {
		t.Fatalf("a config change must miss the cache")
	}
}

func TestCacheSchemaMismatchIsMiss(t *testing.T) {
	cache, err := OpenCache(t.TempDir())
	if err != nil {
		t.Fatalf("OpenCache: %v", err)
	}
	if err := cache.Put("k", &CacheEntry{Schema: cacheSchema + 1, Output: []byte("old")}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, ok, err := cache.Get("k"); ok || err != nil {
		t.Fatalf("Get = %v, %v; want a miss", ok, err)
	}
	if err := os.WriteFile(cache.pathFor("bad"), []byte{0xc1}, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, ok, err := cache.Get("bad"); ok || err == nil {
		t.Fatalf("corrupt entry: ok=%v err=%v", ok, err)
	}
}

func TestCacheKey(t *testing.T) {
	cfg := config.NewConfig()
	if CacheKey("a", cfg) != CacheKey("a", cfg) {
		t.Fatalf("key is not stable")
	}
	if CacheKey("a", cfg) == CacheKey("b", cfg) {
		t.Fatalf("key ignores the source")
	}
	other := config.NewConfig()
	if err := other.SetBackend("qbe"); err != nil {
		t.Fatal(err)
	}
	if CacheKey("a", cfg) == CacheKey("a", other) {
		t.Fatalf("key ignores the backend")
	}
}

func TestCompileFiles(t *testing.T) {
	dir := t.TempDir()
	write := func(name, code string) string {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte(code), 0o644); err != nil {
			t.Fatal(err)
		}
		return p
	}
	files := []string{
		write("a.elz", "a(): int = 1;"),
		write("b.elz", "b(): int = true;"),
		write("c.elz", "c(): int = 3;"),
		filepath.Join(dir, "missing.elz"),
	}
	results, err := New(nil).CompileFiles(context.Background(), files, config.NewConfig(), 2)
	if err == nil {
		t.Fatalf("expected errors for b.elz and missing.elz")
	}
	var se *typeChecker.SemanticError
	if !errors.As(err, &se) {
		t.Fatalf("joined error lost the semantic error: %v", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("joined error lost the read error: %v", err)
	}
	if results[0] == nil || results[1] != nil || results[2] == nil || results[3] != nil {
		t.Fatalf("results = %v", results)
	}
	if !strings.Contains(string(results[2].Output), "define i64 @c()") {
		t.Fatalf("c.elz output = %q", results[2].Output)
	}
}

func TestCompileFilesCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(nil).CompileFiles(ctx, []string{"x.elz"}, config.NewConfig(), 1)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
