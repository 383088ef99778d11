package config

import (
	"fmt"
	"strings"

	"modernc.org/libqbe"
)

// Version is the compiler version checked against a project's `requires` constraint
const Version = "0.3.0"

type Feature int

const (
	FeatStringTemplates Feature = iota
	FeatNamedArgs
	FeatFieldDefaults
	FeatCount
)

type Warning int

const (
	WarnShadow Warning = iota
	WarnImport
	WarnUnusedFieldDefault
	WarnExtra
	WarnCount
)

type Info struct {
	Name        string
	Enabled     bool
	Description string
}

type Config struct {
	Features   map[Feature]Info
	Warnings   map[Warning]Info
	FeatureMap map[string]Feature
	WarningMap map[string]Warning
	Backend    string
	Emit       string
	TargetArch string
	QbeTarget  string
	WordSize   int
	WordType   string
	CacheDir   string
	// Notes collects informational messages produced while configuring, printed by the caller
	Notes []string
}

func NewConfig() *Config {
	cfg := &Config{
		Features:   make(map[Feature]Info),
		Warnings:   make(map[Warning]Info),
		FeatureMap: make(map[string]Feature),
		WarningMap: make(map[string]Warning),
		Backend:    "llvm",
		Emit:       "llvm",
		WordSize:   8,
		WordType:   "l",
	}

	features := map[Feature]Info{
		FeatStringTemplates: {"string-templates", true, "Desugar `{expr}` inside string literals into concatenations."},
		FeatNamedArgs:       {"named-args", true, "Allow naming arguments at call sites, as in `f(x: 1)`."},
		FeatFieldDefaults:   {"field-defaults", true, "Allow default initializers on class fields."},
	}

	warnings := map[Warning]Info{
		WarnShadow:             {"shadow", true, "Warn when a local binding shadows an enclosing one."},
		WarnImport:             {"import", true, "Warn that imports are ignored when compiling a single module."},
		WarnUnusedFieldDefault: {"unused-field-default", false, "Warn when a construction overrides a field default."},
		WarnExtra:              {"extra", false, "Enable extra miscellaneous warnings."},
	}

	cfg.Features, cfg.Warnings = features, warnings
	for ft, info := range features {
		cfg.FeatureMap[info.Name] = ft
	}
	for wt, info := range warnings {
		cfg.WarningMap[info.Name] = wt
	}

	return cfg
}

// SetTarget configures the QBE target and word properties for an architecture
func (c *Config) SetTarget(goos, goarch, qbeTarget string) {
	if qbeTarget == "" {
		c.QbeTarget = libqbe.DefaultTarget(goos, goarch)
		c.Notes = append(c.Notes, fmt.Sprintf("no target specified, defaulting to host target '%s'", c.QbeTarget))
	} else {
		c.QbeTarget = qbeTarget
	}

	c.TargetArch = goarch

	switch c.QbeTarget {
	case "amd64_sysv", "amd64_apple", "arm64", "arm64_apple", "rv64":
		c.WordSize, c.WordType = 8, "l"
	case "arm", "rv32":
		c.WordSize, c.WordType = 4, "w"
	default:
		c.Notes = append(c.Notes, fmt.Sprintf("unrecognized QBE target '%s', defaulting to 64-bit properties", c.QbeTarget))
		c.WordSize, c.WordType = 8, "l"
	}
}

// SetBackend selects the output backend; emit follows the backend unless set to "asm"
func (c *Config) SetBackend(name string) error {
	switch name {
	case "llvm", "qbe":
		c.Backend = name
		if c.Emit != "asm" {
			c.Emit = name
		}
		return nil
	}
	return fmt.Errorf("unsupported backend '%s'. Supported: 'llvm', 'qbe'", name)
}

// SetEmit selects what the compiler writes: llvm text, qbe IL or assembled qbe output
func (c *Config) SetEmit(kind string) error {
	switch kind {
	case "llvm", "qbe":
		c.Emit, c.Backend = kind, kind
	case "asm":
		c.Emit, c.Backend = kind, "qbe"
	default:
		return fmt.Errorf("unsupported emit kind '%s'. Supported: 'llvm', 'qbe', 'asm'", kind)
	}
	return nil
}

func (c *Config) SetFeature(ft Feature, enabled bool) {
	if info, ok := c.Features[ft]; ok {
		info.Enabled = enabled
		c.Features[ft] = info
	}
}

func (c *Config) IsFeatureEnabled(ft Feature) bool { return c.Features[ft].Enabled }

func (c *Config) SetWarning(wt Warning, enabled bool) {
	if info, ok := c.Warnings[wt]; ok {
		info.Enabled = enabled
		c.Warnings[wt] = info
	}
}

func (c *Config) IsWarningEnabled(wt Warning) bool { return c.Warnings[wt].Enabled }

// Fingerprint is a stable rendering of everything that changes the compiler's output
func (c *Config) Fingerprint() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "backend=%s;emit=%s;target=%s;word=%d;", c.Backend, c.Emit, c.QbeTarget, c.WordSize)
	for i := Feature(0); i < FeatCount; i++ {
		fmt.Fprintf(&sb, "%s=%t;", c.Features[i].Name, c.Features[i].Enabled)
	}
	return sb.String()
}

func (c *Config) applyFlag(flag string) error {
	trimmed := strings.TrimPrefix(flag, "-")
	isNo := strings.HasPrefix(trimmed, "Wno-") || strings.HasPrefix(trimmed, "Fno-") || strings.HasPrefix(trimmed, "no-")
	enable := !isNo

	var name string
	var isWarning bool

	switch {
	case strings.HasPrefix(trimmed, "W"):
		name = strings.TrimPrefix(strings.TrimPrefix(trimmed, "W"), "no-")
		isWarning = true
	case strings.HasPrefix(trimmed, "F"):
		name = strings.TrimPrefix(strings.TrimPrefix(trimmed, "F"), "no-")
	default:
		name = strings.TrimPrefix(trimmed, "no-")
		isWarning = true
	}

	if name == "all" && isWarning {
		for i := Warning(0); i < WarnCount; i++ {
			c.SetWarning(i, enable)
		}
		return nil
	}

	if isWarning {
		w, ok := c.WarningMap[name]
		if !ok {
			return fmt.Errorf("unknown warning '%s'", name)
		}
		c.SetWarning(w, enable)
		return nil
	}
	f, ok := c.FeatureMap[name]
	if !ok {
		return fmt.Errorf("unknown feature '%s'", name)
	}
	c.SetFeature(f, enable)
	return nil
}

// ProcessFlags applies -W/-F flags; -Wall and -Wno-all go first so single flags can override them
func (c *Config) ProcessFlags(visitFlag func(fn func(name string))) error {
	var firstErr error
	apply := func(name string) {
		if err := c.applyFlag("-" + name); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	visitFlag(func(name string) {
		if name == "Wall" || name == "Wno-all" {
			apply(name)
		}
	})
	visitFlag(func(name string) {
		if name != "Wall" && name != "Wno-all" {
			apply(name)
		}
	})
	return firstErr
}
