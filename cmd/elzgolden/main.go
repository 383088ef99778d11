// elzgolden compiles every test source and compares the output against the
// golden file next to it: name.ll for programs that compile, name.err for
// programs that must be rejected.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/fatih/color"
	"github.com/google/go-cmp/cmp"
	"github.com/sirupsen/logrus"
	"github.com/xplshn/elz/pkg/cli"
	"github.com/xplshn/elz/pkg/config"
	"github.com/xplshn/elz/pkg/driver"
	"github.com/xplshn/elz/pkg/typeChecker"
	"golang.org/x/sync/errgroup"
)

const (
	statusPass = "PASS"
	statusFail = "FAIL"
	statusSkip = "SKIP"
	statusNew  = "UPDATED"
)

type FileResult struct {
	File       string `json:"file"`
	Status     string `json:"status"`
	Message    string `json:"message,omitempty"`
	Diff       string `json:"diff,omitempty"`
	SourceHash string `json:"sourceHash"`
	GoldenHash string `json:"goldenHash,omitempty"`
}

// Report maps a source path to its last result
type Report map[string]*FileResult

type options struct {
	patterns []string
	skip     []string
	output   string
	jobs     int
	update   bool
	cached   bool
	verbose  bool
}

var (
	cRed    = color.New(color.FgHiRed).SprintFunc()
	cYellow = color.New(color.FgHiYellow).SprintFunc()
	cGreen  = color.New(color.FgHiGreen).SprintFunc()
	cCyan   = color.New(color.FgHiCyan).SprintFunc()
)

func main() {
	app := cli.NewApp("elzgolden")
	app.Synopsis = "[options] [<glob>...]"
	app.Description = "Compiles each test source and compares the result against its golden file. A source that compiles is checked against name.ll, a source that is rejected against name.err."

	var o options
	fs := app.FlagSet
	fs.String(&o.output, "output", "o", ".golden_results.json", "Write the JSON report to <file>", "file")
	fs.List(&o.skip, "skip", "", nil, "Skip <file> (repeatable)", "file")
	fs.Int(&o.jobs, "jobs", "j", 4, "Number of files checked in parallel", "n")
	fs.Bool(&o.update, "update", "u", false, "Rewrite golden files from the current output")
	fs.Bool(&o.cached, "cached", "", false, "Skip files unchanged since they last passed")
	fs.Bool(&o.verbose, "verbose", "v", false, "Log every compilation stage")

	app.Action = func(args []string) error {
		o.patterns = args
		if len(o.patterns) == 0 {
			o.patterns = []string{"testdata/*.elz"}
		}
		ok, err := run(context.Background(), o)
		if err != nil {
			return err
		}
		if !ok {
			os.Exit(1)
		}
		return nil
	}
	if err := app.Run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", cRed("[ERROR]"), err)
		os.Exit(2)
	}
}

func hashBytes(b []byte) string { return fmt.Sprintf("%016x", xxhash.Sum64(b)) }

func hashFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return hashBytes(data), nil
}

func expandGlobs(patterns []string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	for _, p := range patterns {
		matches, err := filepath.Glob(p)
		if err != nil {
			return nil, fmt.Errorf("bad pattern '%s': %w", p, err)
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				files = append(files, m)
			}
		}
	}
	sort.Strings(files)
	return files, nil
}

func loadReport(path string) Report {
	prev := make(Report)
	data, err := os.ReadFile(path)
	if err != nil {
		return prev
	}
	if json.Unmarshal(data, &prev) != nil {
		fmt.Fprintf(os.Stderr, "%s could not parse %s, ignoring it\n", cYellow("[WARN]"), path)
		return make(Report)
	}
	return prev
}

func run(ctx context.Context, o options) (bool, error) {
	files, err := expandGlobs(o.patterns)
	if err != nil {
		return false, err
	}
	if len(files) == 0 {
		fmt.Println("No test files found matching the pattern(s).")
		return true, nil
	}

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	if o.verbose {
		log.SetLevel(logrus.DebugLevel)
	}
	d := driver.New(log)

	prev := loadReport(o.output)
	skip := make(map[string]bool, len(o.skip))
	for _, f := range o.skip {
		skip[f] = true
	}

	results := make([]*FileResult, len(files))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(o.jobs, 1))
	for i, file := range files {
		if skip[file] {
			results[i] = &FileResult{File: file, Status: statusSkip, Message: "explicitly skipped"}
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = checkFile(d, i, file, o, prev[file])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return false, err
	}

	printSummary(results)
	report := make(Report, len(results))
	for _, r := range results {
		report[r.File] = r
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return false, err
	}
	if err := os.WriteFile(o.output, data, 0644); err != nil {
		return false, err
	}

	for _, r := range results {
		if r.Status == statusFail {
			return false, nil
		}
	}
	return true, nil
}

func goldenPaths(file string) (ll, errFile string) {
	base := strings.TrimSuffix(file, filepath.Ext(file))
	return base + ".ll", base + ".err"
}

// outcome is what a golden file records for one source: the emitted LLVM
// or, for a rejected program, the description of the error
func outcome(d *driver.Driver, index int, file string, src []byte) (text string, rejected bool, err error) {
	res, err := d.Compile(index, file, string(src), config.NewConfig())
	if err == nil {
		return string(res.Output), false, nil
	}
	var internal *driver.InternalError
	if errors.As(err, &internal) {
		return "", false, err
	}
	var serr *typeChecker.SemanticError
	if errors.As(err, &serr) {
		return serr.Description() + "\n", true, nil
	}
	return err.Error() + "\n", true, nil
}

func checkFile(d *driver.Driver, index int, file string, o options, last *FileResult) *FileResult {
	r := &FileResult{File: file}
	src, err := os.ReadFile(file)
	if err != nil {
		r.Status, r.Message = statusFail, err.Error()
		return r
	}
	r.SourceHash = hashBytes(src)

	llPath, errPath := goldenPaths(file)
	goldenPath := llPath
	if _, err := os.Stat(errPath); err == nil {
		goldenPath = errPath
	}

	if o.cached && !o.update && last != nil && last.Status == statusPass && last.SourceHash == r.SourceHash {
		if h, err := hashFile(goldenPath); err == nil && h == last.GoldenHash {
			r.Status, r.Message, r.GoldenHash = statusPass, "unchanged since last run", h
			return r
		}
	}

	got, rejected, err := outcome(d, index, file, src)
	if err != nil {
		r.Status, r.Message = statusFail, err.Error()
		return r
	}
	if rejected {
		goldenPath = errPath
	} else if goldenPath == errPath {
		r.Status, r.Message = statusFail, "compiled, but "+errPath+" expects an error"
		return r
	}

	if o.update {
		if err := os.WriteFile(goldenPath, []byte(got), 0644); err != nil {
			r.Status, r.Message = statusFail, err.Error()
			return r
		}
		r.Status, r.Message, r.GoldenHash = statusNew, goldenPath, hashBytes([]byte(got))
		return r
	}

	want, err := os.ReadFile(goldenPath)
	if errors.Is(err, os.ErrNotExist) {
		r.Status, r.Message = statusSkip, "no golden file, run with --update to create "+goldenPath
		return r
	} else if err != nil {
		r.Status, r.Message = statusFail, err.Error()
		return r
	}
	r.GoldenHash = hashBytes(want)
	if diff := cmp.Diff(string(want), got); diff != "" {
		r.Status, r.Message, r.Diff = statusFail, "output differs from "+goldenPath, diff
		return r
	}
	r.Status = statusPass
	return r
}

func printSummary(results []*FileResult) {
	counts := make(map[string]int)
	for _, r := range results {
		counts[r.Status]++
		switch r.Status {
		case statusPass:
			fmt.Printf("%s %s\n", cGreen("[PASS]"), r.File)
		case statusNew:
			fmt.Printf("%s %s -> %s\n", cCyan("[UPDATED]"), r.File, r.Message)
		case statusSkip:
			fmt.Printf("%s %s: %s\n", cYellow("[SKIP]"), r.File, r.Message)
		case statusFail:
			fmt.Printf("%s %s: %s\n", cRed("[FAIL]"), r.File, r.Message)
			if r.Diff != "" {
				fmt.Printf("(-want +got):\n%s\n", r.Diff)
			}
		}
	}
	fmt.Printf("\n%d passed, %d failed, %d skipped, %d updated\n",
		counts[statusPass], counts[statusFail], counts[statusSkip], counts[statusNew])
}
