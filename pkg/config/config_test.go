package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestProcessFlags(t *testing.T) {
	cfg := NewConfig()
	flags := []string{"Wno-shadow", "Wall", "Fno-named-args"}
	err := cfg.ProcessFlags(func(fn func(string)) {
		for _, f := range flags {
			fn(f)
		}
	})
	if err != nil {
		t.Fatalf("ProcessFlags: %v", err)
	}
	if cfg.IsWarningEnabled(WarnShadow) {
		t.Fatalf("-Wno-shadow must override -Wall")
	}
	if !cfg.IsWarningEnabled(WarnExtra) {
		t.Fatalf("-Wall must enable extra")
	}
	if cfg.IsFeatureEnabled(FeatNamedArgs) {
		t.Fatalf("-Fno-named-args must disable named-args")
	}
}

func TestProcessFlagsUnknown(t *testing.T) {
	cfg := NewConfig()
	err := cfg.ProcessFlags(func(fn func(string)) { fn("Fbogus") })
	if err == nil || !strings.Contains(err.Error(), "bogus") {
		t.Fatalf("expected unknown feature error, got %v", err)
	}
}

func TestSetEmit(t *testing.T) {
	cfg := NewConfig()
	if err := cfg.SetEmit("asm"); err != nil {
		t.Fatal(err)
	}
	if cfg.Backend != "qbe" {
		t.Fatalf("asm output goes through qbe, backend = %q", cfg.Backend)
	}
	if err := cfg.SetEmit("wasm"); err == nil {
		t.Fatalf("expected error for unknown emit kind")
	}
}

func TestFingerprintTracksFeatures(t *testing.T) {
	a, b := NewConfig(), NewConfig()
	if a.Fingerprint() != b.Fingerprint() {
		t.Fatalf("fresh configs must agree")
	}
	b.SetFeature(FeatStringTemplates, false)
	if a.Fingerprint() == b.Fingerprint() {
		t.Fatalf("feature change must alter the fingerprint")
	}
}

func writeProject(t *testing.T, body string) string {
	t.Helper()
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, ProjectFileName), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	sub := filepath.Join(root, "src", "deep")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	return sub
}

func TestProjectFile(t *testing.T) {
	dir := writeProject(t, `
[package]
name = "demo"
requires = ">= 0.2"

[build]
backend = "qbe"
target = "arm64"
features = ["no-string-templates"]
warnings = ["no-shadow", "extra"]
`)
	path, ok, err := FindProjectFile(dir)
	if err != nil || !ok {
		t.Fatalf("FindProjectFile: ok=%v err=%v", ok, err)
	}
	p, err := LoadProjectFile(path)
	if err != nil {
		t.Fatalf("LoadProjectFile: %v", err)
	}
	if p.Package.Name != "demo" {
		t.Fatalf("name = %q", p.Package.Name)
	}
	cfg := NewConfig()
	if err := p.Apply(cfg); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if cfg.Backend != "qbe" || cfg.QbeTarget != "arm64" {
		t.Fatalf("backend/target = %q/%q", cfg.Backend, cfg.QbeTarget)
	}
	if cfg.IsFeatureEnabled(FeatStringTemplates) || cfg.IsWarningEnabled(WarnShadow) || !cfg.IsWarningEnabled(WarnExtra) {
		t.Fatalf("build flags not applied")
	}
}

func TestProjectRequiresMismatch(t *testing.T) {
	dir := writeProject(t, "[package]\nname = \"demo\"\nrequires = \">= 9.0\"\n")
	path, _, err := FindProjectFile(dir)
	if err != nil {
		t.Fatal(err)
	}
	p, err := LoadProjectFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := p.Apply(NewConfig()); err == nil || !strings.Contains(err.Error(), "requires") {
		t.Fatalf("expected requires error, got %v", err)
	}
}

func TestProjectMissingName(t *testing.T) {
	dir := writeProject(t, "[build]\nbackend = \"llvm\"\n")
	path, _, _ := FindProjectFile(dir)
	if _, err := LoadProjectFile(path); err == nil {
		t.Fatalf("expected missing name error")
	}
}
