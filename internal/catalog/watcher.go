package catalog

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// ReloadEvent reports the result of one catalog reload attempt
type ReloadEvent struct {
	Timestamp time.Time
	Version   string
	Error     error
}

// FileWatcher monitors the catalog file and reloads the store on change.
// Events are debounced because editors and config managers tend to emit
// several write events per save.
type FileWatcher struct {
	watcher  *fsnotify.Watcher
	path     string
	loader   *Loader
	store    *Store
	logger   *zap.Logger
	debounce time.Duration

	eventChan chan ReloadEvent
	stopChan  chan struct{}

	mu         sync.Mutex
	timer      *time.Timer
	isWatching bool
}

// NewFileWatcher creates a watcher for the catalog file
func NewFileWatcher(path string, store *Store, loader *Loader, logger *zap.Logger) (*FileWatcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	return &FileWatcher{
		watcher:   watcher,
		path:      path,
		loader:    loader,
		store:     store,
		logger:    logger,
		debounce:  500 * time.Millisecond,
		eventChan: make(chan ReloadEvent, 10),
		stopChan:  make(chan struct{}),
	}, nil
}

// Watch starts watching the catalog file's directory for changes
func (fw *FileWatcher) Watch(ctx context.Context) error {
	fw.mu.Lock()
	if fw.isWatching {
		fw.mu.Unlock()
		return fmt.Errorf("watcher is already running")
	}
	fw.isWatching = true
	fw.mu.Unlock()

	// Watch the directory so replace-by-rename saves are observed
	if err := fw.watcher.Add(filepath.Dir(fw.path)); err != nil {
		fw.mu.Lock()
		fw.isWatching = false
		fw.mu.Unlock()
		return fmt.Errorf("add path to watcher: %w", err)
	}

	fw.logger.Info("Starting catalog file watcher",
		zap.String("path", fw.path),
		zap.Duration("debounce", fw.debounce),
	)

	go fw.watchLoop(ctx)
	return nil
}

// Events exposes reload results, mainly for tests and operators
func (fw *FileWatcher) Events() <-chan ReloadEvent {
	return fw.eventChan
}

// Stop stops the watcher
func (fw *FileWatcher) Stop() error {
	close(fw.stopChan)
	return fw.watcher.Close()
}

func (fw *FileWatcher) watchLoop(ctx context.Context) {
	defer func() {
		fw.mu.Lock()
		fw.isWatching = false
		fw.mu.Unlock()
		fw.logger.Info("Catalog file watcher stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-fw.stopChan:
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if fw.shouldProcess(event) {
				fw.scheduleReload()
			}

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.logger.Error("Watcher error", zap.Error(err))
		}
	}
}

func (fw *FileWatcher) shouldProcess(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != filepath.Clean(fw.path) {
		return false
	}
	return event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0
}

// scheduleReload debounces bursts of file events into a single reload
func (fw *FileWatcher) scheduleReload() {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if fw.timer != nil {
		fw.timer.Stop()
	}
	fw.timer = time.AfterFunc(fw.debounce, fw.reload)
}

func (fw *FileWatcher) reload() {
	snap, err := fw.loader.LoadFile(fw.path)
	ev := ReloadEvent{Timestamp: time.Now()}

	if err != nil {
		// Keep serving the previous snapshot; a broken file must not
		// take down decisions.
		fw.logger.Error("Catalog reload failed, keeping previous snapshot",
			zap.String("path", fw.path),
			zap.Error(err),
		)
		ev.Error = err
	} else {
		fw.store.Replace(snap)
		ev.Version = snap.Version
	}

	select {
	case fw.eventChan <- ev:
	default:
	}
}
