package driver

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"

	"github.com/xplshn/elz/pkg/config"
	"golang.org/x/sync/errgroup"
)

// FileError ties a compilation error to the file it came from
type FileError struct {
	Path string
	Err  error
}

func (e *FileError) Error() string { return fmt.Sprintf("%s: %v", e.Path, e.Err) }
func (e *FileError) Unwrap() error { return e.Err }

// CompileFiles compiles independent files concurrently, at most jobs at a
// time. File i is compiled with file index i. Results keep the input order;
// a file that failed has a nil result and its error is joined into the
// returned error.
func (d *Driver) CompileFiles(ctx context.Context, files []string, cfg *config.Config, jobs int) ([]*Result, error) {
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	results := make([]*Result, len(files))
	errs := make([]error, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(min(jobs, len(files)), 1))
	for i, path := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			content, err := os.ReadFile(path)
			if err != nil {
				errs[i] = &FileError{Path: path, Err: err}
				return nil
			}
			res, err := d.Compile(i, path, string(content), cfg)
			if err != nil {
				errs[i] = &FileError{Path: path, Err: err}
				return nil
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, errors.Join(errs...)
}
