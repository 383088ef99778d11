package main

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounce groups the burst of events an editor produces for one save
const debounce = 100 * time.Millisecond

// watchAndBuild builds once, then again after every change to an input file,
// until ctx is cancelled. Directories are watched rather than files so
// editors that save by renaming a temporary file are still seen.
func watchAndBuild(ctx context.Context, b *builder) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	inputs := make(map[string]bool)
	dirs := make(map[string]bool)
	for _, f := range b.files {
		abs, err := filepath.Abs(f)
		if err != nil {
			return err
		}
		inputs[abs] = true
		dirs[filepath.Dir(abs)] = true
	}
	for dir := range dirs {
		if err := w.Add(dir); err != nil {
			return err
		}
	}

	b.build(ctx)
	b.log.Info("watching for changes")

	var timer <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if abs, err := filepath.Abs(ev.Name); err != nil || !inputs[abs] {
				continue
			}
			timer = time.After(debounce)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			b.log.WithError(err).Warn("watcher error")
		case <-timer:
			timer = nil
			b.log.Info("change detected, rebuilding")
			b.build(ctx)
		}
	}
}
