// Package hooks implements the file based coordination hooks that run around
// a supervised command: waiting for marker files before launch and writing
// a marker once the tree has drained.
package hooks

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Paintersrp/procwarden/internal/logging"
)

// RecheckInterval bounds how long a created marker can go unnoticed when
// file notifications are unavailable.
const RecheckInterval = time.Second

// ErrorFileError reports that the error marker of a waited path appeared.
type ErrorFileError struct {
	Path string
}

func (e *ErrorFileError) Error() string {
	return fmt.Sprintf("found an error file at %s", e.Path)
}

// ErrPath returns the error marker for path: its extension replaced by .err.
func ErrPath(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ".err"
}

// WaitFor blocks until every path exists. It fails as soon as the error
// marker of any path exists.
func WaitFor(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	log := logging.WithComponent("hooks")

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Debug().Err(err).Msg("file notifications unavailable, polling")
		watcher = nil
	} else {
		defer watcher.Close()
		watched := make(map[string]bool)
		for _, p := range paths {
			dir := filepath.Dir(p)
			if watched[dir] {
				continue
			}
			watched[dir] = true
			if err := watcher.Add(dir); err != nil {
				log.Debug().Err(err).Str("dir", dir).Msg("watch directory")
			}
		}
	}

	ticker := time.NewTicker(RecheckInterval)
	defer ticker.Stop()

	var (
		events <-chan fsnotify.Event
		errs   <-chan error
	)
	if watcher != nil {
		events = watcher.Events
		errs = watcher.Errors
	}

	for {
		done, err := check(paths)
		if err != nil || done {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			log.Trace().Str("path", ev.Name).Str("op", ev.Op.String()).Msg("marker event")
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			log.Debug().Err(err).Msg("watch error")
		}
	}
}

func check(paths []string) (bool, error) {
	done := true
	for _, p := range paths {
		errFile := ErrPath(p)
		exists, err := fileExists(errFile)
		if err != nil {
			return false, err
		}
		if exists {
			return false, &ErrorFileError{Path: errFile}
		}
		exists, err = fileExists(p)
		if err != nil {
			return false, err
		}
		if !exists {
			done = false
		}
	}
	return done, nil
}

func fileExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("stat %s: %w", path, err)
}
