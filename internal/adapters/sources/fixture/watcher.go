package fixture

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/tessellate-ai/contextd/internal/core/domain"
	"github.com/tessellate-ai/contextd/internal/logger"
)

// debounceWindow absorbs the event bursts editors produce on save so
// one edit triggers one re-sync.
const debounceWindow = 500 * time.Millisecond

// Watcher observes fixture directories and reports which source's
// files changed.
type Watcher struct {
	fs      *fsnotify.Watcher
	bySrc   map[string]domain.SourceID
	onEvent func(domain.SourceID)
}

// NewWatcher watches the directories of the given adapters and calls
// onEvent with the owning source after its files settle.
func NewWatcher(adapters []*Adapter, onEvent func(domain.SourceID)) (*Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	w := &Watcher{
		fs:      fs,
		bySrc:   make(map[string]domain.SourceID, len(adapters)),
		onEvent: onEvent,
	}
	for _, adapter := range adapters {
		dir := filepath.Clean(adapter.Dir())
		if err := fs.Add(dir); err != nil {
			fs.Close()
			return nil, fmt.Errorf("watch %s: %w", dir, err)
		}
		w.bySrc[dir] = adapter.Source()
	}
	return w, nil
}

// Run blocks until the context is done, dispatching debounced change
// notifications. Each source gets its own debounce timer so a busy
// directory does not starve the others.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fs.Close()

	pending := make(map[domain.SourceID]*time.Timer)
	defer func() {
		for _, t := range pending {
			t.Stop()
		}
	}()

	fired := make(chan domain.SourceID)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case source := <-fired:
			delete(pending, source)
			w.onEvent(source)

		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if !strings.HasSuffix(event.Name, ".json") {
				continue
			}
			source, ok := w.bySrc[filepath.Dir(filepath.Clean(event.Name))]
			if !ok {
				continue
			}
			logger.Debug("fixture change for %s: %s", source, event)
			if timer, ok := pending[source]; ok {
				timer.Reset(debounceWindow)
				continue
			}
			src := source
			pending[source] = time.AfterFunc(debounceWindow, func() {
				select {
				case fired <- src:
				case <-ctx.Done():
				}
			})

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			logger.Warn("fixture watcher: %v", err)
		}
	}
}
