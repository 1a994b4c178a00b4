package files

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/sspi-index/sspi-engine/internal/logger"
)

// DefaultDebounce collapses the burst of events an editor save produces.
const DefaultDebounce = 250 * time.Millisecond

// ReloadFunc reloads metadata after the directory changed.
type ReloadFunc func(ctx context.Context) error

// Watcher reloads metadata when files in a directory change.
type Watcher struct {
	dir      string
	reload   ReloadFunc
	debounce time.Duration
	watcher  *fsnotify.Watcher
}

// NewWatcher starts watching dir. Call Run to process events.
func NewWatcher(dir string, reload ReloadFunc) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watching %s: %w", dir, err)
	}
	return &Watcher{dir: dir, reload: reload, debounce: DefaultDebounce, watcher: fw}, nil
}

// Run processes events until ctx is cancelled. Reload failures are
// logged; the registry keeps its previous snapshot.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !relevant(event) {
				continue
			}
			logger.Debug("metadata change: %s %s", event.Op, filepath.Base(event.Name))
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("metadata watcher: %v", err)
		case <-fire:
			fire = nil
			if err := w.reload(ctx); err != nil {
				logger.Error("metadata reload failed, keeping previous metadata: %v", err)
				continue
			}
			logger.Info("metadata reloaded from %s", w.dir)
		}
	}
}

// relevant reports whether event touches a metadata file.
func relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}
	name := filepath.Base(event.Name)
	if strings.HasPrefix(name, ".") {
		return false
	}
	switch name {
	case IndicatorsFile, IntermediatesFile, DatasetsFile, CountryGroupsFile:
		return true
	}
	return false
}
