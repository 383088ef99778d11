package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/xplshn/elz/pkg/cli"
	"github.com/xplshn/elz/pkg/config"
	"github.com/xplshn/elz/pkg/driver"
	"github.com/xplshn/elz/pkg/util"
)

func main() {
	app := cli.NewApp("elzc")
	app.Synopsis = "[options] <input.elz> ..."
	app.Description = "A compiler for the elz language. Checks classes, functions and their types, then emits LLVM assembly or QBE IL."
	app.Authors = []string{"xplshn"}
	app.Repository = "<https://github.com/xplshn/elz>"

	var (
		outFile    string
		emit       string
		backend    string
		target     string
		configPath string
		jobs       int
		checkOnly  bool
		useCache   bool
		watch      bool
		verbose    bool
		version    bool
		warnFlags  []string
		featFlags  []string
	)

	fs := app.FlagSet
	fs.String(&outFile, "output", "o", "", "Place the output into <file>. Only valid with a single input.", "file")
	fs.String(&emit, "emit", "", "", "What to write: llvm, qbe or asm.", "kind")
	fs.String(&backend, "backend", "b", "", "Select the backend: llvm or qbe.", "backend")
	fs.String(&target, "target", "t", "", "Set the QBE target ABI.", "target")
	fs.String(&configPath, "config", "", "", "Use this elz.toml instead of searching for one.", "file")
	fs.Int(&jobs, "jobs", "j", 0, "Compile up to <n> files in parallel. Defaults to the number of CPUs.", "n")
	fs.Bool(&checkOnly, "check", "", false, "Stop after type checking.")
	fs.Bool(&useCache, "cache", "", false, "Reuse output cached from earlier builds.")
	fs.Bool(&watch, "watch", "w", false, "Recompile whenever an input file changes.")
	fs.Bool(&verbose, "verbose", "v", false, "Log each pipeline stage.")
	fs.Bool(&version, "version", "", false, "Print the compiler version and exit.")
	fs.Prefix(&warnFlags, "W", "Enable or disable a warning", "warning")
	fs.Prefix(&featFlags, "F", "Enable or disable a feature", "feature")

	cfg := config.NewConfig()
	addFlagGroups(fs, cfg)

	app.Action = func(inputFiles []string) error {
		if version {
			fmt.Printf("elzc %s\n", config.Version)
			return nil
		}
		reporter := util.NewReporter(os.Stderr, nil)
		if len(inputFiles) == 0 {
			reporter.Error(errors.New("no input files specified"))
			return errors.New("no input files")
		}
		if outFile != "" && len(inputFiles) > 1 {
			reporter.Error(errors.New("-o cannot be used with more than one input file"))
			return errors.New("bad output")
		}

		if err := configure(cfg, inputFiles[0], configPath, backend, emit, target, warnFlags, featFlags); err != nil {
			reporter.Error(err)
			return err
		}
		for _, note := range cfg.Notes {
			reporter.Notef("%s", note)
		}

		log := logrus.New()
		log.SetOutput(os.Stderr)
		log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
		if verbose {
			log.SetLevel(logrus.DebugLevel)
		}

		d := driver.New(log)
		d.CheckOnly = checkOnly
		if useCache {
			dir := cfg.CacheDir
			if dir == "" {
				var err error
				if dir, err = driver.DefaultCacheDir(); err != nil {
					reporter.Error(err)
					return err
				}
			}
			cache, err := driver.OpenCache(dir)
			if err != nil {
				reporter.Error(err)
				return err
			}
			d.Cache = cache
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		b := &builder{driver: d, cfg: cfg, files: inputFiles, outFile: outFile, jobs: jobs, log: log}
		if watch {
			return watchAndBuild(ctx, b)
		}
		if !b.build(ctx) {
			return errors.New("compilation failed")
		}
		return nil
	}

	if err := app.Run(os.Args[1:]); err != nil {
		os.Exit(1)
	}
}

// addFlagGroups documents every -W and -F name on the help page
func addFlagGroups(fs *cli.FlagSet, cfg *config.Config) {
	var warnings, features []cli.FlagGroupEntry
	for i := config.Warning(0); i < config.WarnCount; i++ {
		info := cfg.Warnings[i]
		warnings = append(warnings, cli.FlagGroupEntry{Name: info.Name, Usage: info.Description, Enabled: info.Enabled})
	}
	for i := config.Feature(0); i < config.FeatCount; i++ {
		info := cfg.Features[i]
		features = append(features, cli.FlagGroupEntry{Name: info.Name, Usage: info.Description, Enabled: info.Enabled})
	}
	fs.AddFlagGroup(cli.FlagGroup{Name: "Warning Flags", Prefix: "W", Type: "warning", Header: "Available Warnings:", Entries: warnings})
	fs.AddFlagGroup(cli.FlagGroup{Name: "Feature Flags", Prefix: "F", Type: "feature", Header: "Available Features:", Entries: features})
}

// configure applies elz.toml first so command-line flags override it
func configure(cfg *config.Config, firstInput, configPath, backend, emit, target string, warnFlags, featFlags []string) error {
	if configPath == "" {
		found, ok, err := config.FindProjectFile(filepath.Dir(firstInput))
		if err != nil {
			return err
		}
		if ok {
			configPath = found
		}
	}
	if configPath != "" {
		project, err := config.LoadProjectFile(configPath)
		if err != nil {
			return err
		}
		if err := project.Apply(cfg); err != nil {
			return err
		}
	}

	if backend != "" {
		if err := cfg.SetBackend(backend); err != nil {
			return err
		}
	}
	if emit != "" {
		if err := cfg.SetEmit(emit); err != nil {
			return err
		}
	}
	if target == "" {
		target = cfg.QbeTarget
	}
	cfg.SetTarget(runtime.GOOS, runtime.GOARCH, target)

	return cfg.ProcessFlags(func(fn func(name string)) {
		for _, w := range warnFlags {
			fn("W" + w)
		}
		for _, f := range featFlags {
			fn("F" + f)
		}
	})
}

type builder struct {
	driver  *driver.Driver
	cfg     *config.Config
	files   []string
	outFile string
	jobs    int
	log     *logrus.Logger
}

// build compiles every input once and reports diagnostics; it returns false on any error
func (b *builder) build(ctx context.Context) bool {
	records := make([]util.SourceFileRecord, len(b.files))
	for i, path := range b.files {
		content, _ := os.ReadFile(path)
		records[i] = util.SourceFileRecord{Name: path, Content: []rune(string(content))}
	}
	reporter := util.NewReporter(os.Stderr, records)

	results, err := b.driver.CompileFiles(ctx, b.files, b.cfg, b.jobs)
	for _, res := range results {
		if res == nil {
			continue
		}
		for _, w := range res.Warnings {
			reporter.Warnf(w.Location.Tok, b.cfg.Warnings[w.Kind].Name, "%s", w.Message)
		}
	}
	if err != nil {
		var joined interface{ Unwrap() []error }
		if errors.As(err, &joined) {
			for _, e := range joined.Unwrap() {
				reporter.Error(e)
			}
		} else {
			reporter.Error(err)
		}
		return false
	}

	if b.driver.CheckOnly {
		return true
	}
	for _, res := range results {
		path := b.outputPath(res.Name)
		if err := os.WriteFile(path, res.Output, 0o644); err != nil {
			reporter.Error(err)
			return false
		}
		b.log.WithFields(logrus.Fields{"file": res.Name, "cached": res.Cached}).Infof("wrote %s", path)
	}
	return true
}

func (b *builder) outputPath(input string) string {
	if b.outFile != "" {
		return b.outFile
	}
	ext := map[string]string{"llvm": ".ll", "qbe": ".ssa", "asm": ".s"}[b.cfg.Emit]
	return strings.TrimSuffix(input, filepath.Ext(input)) + ext
}
