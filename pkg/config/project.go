package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/Masterminds/semver/v3"
)

// ProjectFileName is searched upward from the directory of the first input
const ProjectFileName = "elz.toml"

type Project struct {
	Path    string
	Root    string
	Package PackageSection `toml:"package"`
	Build   BuildSection   `toml:"build"`
}

type PackageSection struct {
	Name     string `toml:"name"`
	Requires string `toml:"requires"`
}

type BuildSection struct {
	Backend  string   `toml:"backend"`
	Target   string   `toml:"target"`
	Features []string `toml:"features"`
	Warnings []string `toml:"warnings"`
}

// FindProjectFile walks from startDir to the filesystem root looking for elz.toml
func FindProjectFile(startDir string) (string, bool, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, ProjectFileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false, nil
		}
		dir = parent
	}
}

func LoadProjectFile(path string) (*Project, error) {
	var p Project
	meta, err := toml.DecodeFile(path, &p)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if !meta.IsDefined("package", "name") || strings.TrimSpace(p.Package.Name) == "" {
		return nil, fmt.Errorf("%s: missing [package].name", path)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("%s: unknown key '%s'", path, undecoded[0])
	}
	p.Path, p.Root = path, filepath.Dir(path)
	return &p, nil
}

// CheckRequires reports an error when the compiler version does not satisfy the project's constraint
func (p *Project) CheckRequires(version string) error {
	expr := strings.TrimSpace(p.Package.Requires)
	if expr == "" {
		return nil
	}
	constraint, err := semver.NewConstraint(expr)
	if err != nil {
		return fmt.Errorf("%s: invalid [package].requires '%s': %w", p.Path, expr, err)
	}
	v, err := semver.NewVersion(version)
	if err != nil {
		return fmt.Errorf("invalid compiler version '%s': %w", version, err)
	}
	if !constraint.Check(v) {
		return fmt.Errorf("%s: package '%s' requires elz %s, this is %s", p.Path, p.Package.Name, expr, version)
	}
	return nil
}

// Apply layers the project's build settings onto the configuration; command-line flags are applied after
func (p *Project) Apply(cfg *Config) error {
	if err := p.CheckRequires(Version); err != nil {
		return err
	}
	if p.Build.Backend != "" {
		if err := cfg.SetBackend(p.Build.Backend); err != nil {
			return fmt.Errorf("%s: %w", p.Path, err)
		}
	}
	if p.Build.Target != "" {
		cfg.QbeTarget = p.Build.Target
	}
	for _, f := range p.Build.Features {
		if err := cfg.applyFlag("-F" + f); err != nil {
			return fmt.Errorf("%s: %w", p.Path, err)
		}
	}
	for _, w := range p.Build.Warnings {
		if err := cfg.applyFlag("-W" + w); err != nil {
			return fmt.Errorf("%s: %w", p.Path, err)
		}
	}
	return nil
}
