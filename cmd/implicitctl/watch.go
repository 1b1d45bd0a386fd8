package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchDebounce coalesces the burst of events editors emit for one save.
const watchDebounce = 100 * time.Millisecond

// fileWatcher reports changes to a single file. The parent directory is
// watched so that editors replacing the file atomically are still seen.
type fileWatcher struct {
	w    *fsnotify.Watcher
	path string
}

// newFileWatcher registers a watch for path. Events are seen from the moment
// it returns.
func newFileWatcher(path string) (*fileWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("watch: %w", err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: %w", err)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}
	return &fileWatcher{w: w, path: abs}, nil
}

// run calls onChange once per burst of writes, creates or renames of the
// file, until ctx is done. The first event of a burst arms the timer;
// later ones within watchDebounce are absorbed, so a file written
// continuously still reports a change every watchDebounce. run closes the
// watcher before returning.
func (fw *fileWatcher) run(ctx context.Context, onChange func()) error {
	defer fw.w.Close()

	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != fw.path {
				continue
			}
			if fire == nil && (ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename)) {
				fire = time.After(watchDebounce)
			}
		case <-fire:
			fire = nil
			onChange()
		case err, ok := <-fw.w.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watch: %w", err)
		}
	}
}

// watchFile calls onChange whenever path changes, until ctx is done.
func watchFile(ctx context.Context, path string, onChange func()) error {
	fw, err := newFileWatcher(path)
	if err != nil {
		return err
	}
	return fw.run(ctx, onChange)
}
