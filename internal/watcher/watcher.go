// Package watcher watches a directory for new columnar input files landing
// on disk, using fsnotify. Adapted from the teacher's internal/watcher: the
// original recursed into subdirectories and re-chunked files on every write
// to keep a semantic index current; this version watches a single directory
// (non-recursive) and fires only on whole new files, never reacting to a
// file mid-write — a file's schema is immutable once the Batch Generator
// opens it (spec.md's Non-goal: no online schema evolution mid-file), so
// there is nothing to "re-index" here, only new files to discover.
package watcher

import (
	"fmt"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// Handler is invoked once per newly detected input file, after a brief
// settle delay so a file still being written isn't opened mid-copy.
type Handler func(path string)

// Watcher reacts to new files appearing in a directory.
type Watcher struct {
	fw     *fsnotify.Watcher
	suffix string
	handle Handler
	settle time.Duration
}

// New creates a Watcher that calls handle for every newly created file
// ending in suffix (empty suffix matches any file).
func New(suffix string, handle Handler) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("fsnotify: %w", err)
	}
	return &Watcher{fw: fw, suffix: suffix, handle: handle, settle: 500 * time.Millisecond}, nil
}

// Watch adds dir to the watch list and begins processing Create events. It
// blocks until done is closed or the watcher is closed by an unrecoverable
// error; call it in a goroutine per watched directory.
func (w *Watcher) Watch(dir string, done <-chan struct{}) error {
	if err := w.fw.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	pending := make(map[string]*time.Timer)
	for {
		select {
		case <-done:
			return w.fw.Close()

		case event, ok := <-w.fw.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) {
				continue
			}
			path := event.Name
			if w.suffix != "" && !strings.HasSuffix(path, w.suffix) {
				continue
			}

			if t, ok := pending[path]; ok {
				t.Stop()
			}
			pending[path] = time.AfterFunc(w.settle, func() {
				w.handle(path)
			})

		case err, ok := <-w.fw.Errors:
			if !ok {
				return nil
			}
			log.Error().Err(err).Str("dir", dir).Msg("watch error")
		}
	}
}
