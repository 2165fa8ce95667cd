// Package watch triggers a callback when files in the input tree change.
package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period after the last change before the
// callback fires. Exports are often written in several chunks.
const DefaultDebounce = 500 * time.Millisecond

// Trigger is called once per burst of changes with the relative paths that
// changed, in arrival order without duplicates.
type Trigger func(changed []string)

// Watch starts an fsnotify watcher on root and calls trigger after every
// debounced burst of create, write, remove or rename events on files ending
// with suffix. It blocks until ctx is cancelled. New directories created at
// runtime are added to the watch list.
func Watch(ctx context.Context, root, suffix string, debounce time.Duration, logger *slog.Logger, trigger Trigger) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, root); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", root), slog.String("suffix", suffix))

	var (
		timer   *time.Timer
		timerCh <-chan time.Time
		pending []string
		seen    = map[string]struct{}{}
	)
	schedule := func(rel string) {
		if _, ok := seen[rel]; !ok {
			seen[rel] = struct{}{}
			pending = append(pending, rel)
		}
		if timer == nil {
			timer = time.NewTimer(debounce)
			timerCh = timer.C
		} else {
			timer.Reset(debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-timerCh:
			changed := pending
			pending = nil
			seen = map[string]struct{}{}
			timer = nil
			timerCh = nil
			logger.Debug("watcher: change burst", slog.Int("files", len(changed)))
			trigger(changed)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, ev.Name); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", ev.Name),
							slog.String("error", addErr.Error()))
						continue
					}
					logger.Debug("watcher: watching new dir", slog.String("path", ev.Name))
					if hasSuffixFiles(ev.Name, suffix) {
						schedule(relPath(root, ev.Name))
					}
					continue
				}
			}

			if !strings.HasSuffix(ev.Name, suffix) {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			rel := relPath(root, ev.Name)
			logger.Debug("watcher: change", slog.String("path", rel), slog.String("op", ev.Op.String()))
			schedule(rel)

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

func relPath(root, p string) string {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return p
	}
	return filepath.ToSlash(rel)
}

// hasSuffixFiles reports whether dir already contains matching files, which
// happens when a populated directory is moved into the tree.
func hasSuffixFiles(dir, suffix string) bool {
	found := false
	_ = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil || found {
			return filepath.SkipAll
		}
		if !d.IsDir() && strings.HasSuffix(p, suffix) {
			found = true
			return filepath.SkipAll
		}
		return nil
	})
	return found
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}
