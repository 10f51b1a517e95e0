package ruleset

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchDebounce coalesces editor write bursts into one invalidation.
const watchDebounce = 100 * time.Millisecond

// Watcher invalidates FileStore cache entries when ruleset resources change
// on disk, so edited rulesets take effect without a restart.
type Watcher struct {
	store   *FileStore
	watcher *fsnotify.Watcher
	logger  *slog.Logger
}

// NewWatcher creates a watcher over the store's ruleset directory.
func NewWatcher(store *FileStore, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := fw.Add(store.dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch ruleset dir %q: %w", store.dir, err)
	}

	return &Watcher{store: store, watcher: fw, logger: logger}, nil
}

// Run blocks processing filesystem events until ctx is cancelled. Each
// changed <org_type>_vN.json drops that org_type's cache entry; the next
// Load re-reads the file.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	pending := make(map[string]struct{})
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write | fsnotify.Create | fsnotify.Remove | fsnotify.Rename) {
				continue
			}
			key, ok := orgTypeFromFilename(filepath.Base(event.Name))
			if !ok {
				continue
			}
			pending[key] = struct{}{}
			if timer == nil {
				timer = time.NewTimer(watchDebounce)
			} else {
				timer.Reset(watchDebounce)
			}
			fire = timer.C

		case <-fire:
			for key := range pending {
				w.store.Invalidate(key)
				delete(pending, key)
			}
			fire = nil

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("ruleset watcher error", "error", err)
		}
	}
}

// orgTypeFromFilename extracts the org_type from a versioned ruleset
// filename like "college_v1.json".
func orgTypeFromFilename(name string) (string, bool) {
	if !strings.HasSuffix(name, ".json") {
		return "", false
	}
	base := strings.TrimSuffix(name, ".json")
	i := strings.LastIndex(base, "_v")
	if i <= 0 {
		return "", false
	}
	return base[:i], true
}
