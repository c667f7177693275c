package indexer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// moveCorrelationWindow bounds how long a Rename (source) event waits for a
// matching Create (destination) event with identical file content before
// the source is treated as a plain deletion (spec §4.5 step 6 "move
// detection").
const moveCorrelationWindow = 2 * time.Second

// Watcher subscribes to filesystem change notifications under rootDir and
// routes them to the processor's modify/delete/move handling (spec §4.5
// step 6).
type Watcher struct {
	rootDir   string
	discovery *Discovery
	processor *Processor
	logger    *zap.Logger
	fsWatcher *fsnotify.Watcher

	mu          sync.Mutex
	fileHashes  map[string]string       // path -> sha256 of raw file bytes, for move correlation
	pendingMove map[string]pendingMove  // content hash -> the removed path awaiting a match

	stopCh chan struct{}
	doneCh chan struct{}
	once   sync.Once
}

type pendingMove struct {
	path  string
	timer *time.Timer
}

// NewWatcher creates a Watcher and registers every in-scope directory
// beneath rootDir.
func NewWatcher(rootDir string, discovery *Discovery, processor *Processor, logger *zap.Logger) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		rootDir:     rootDir,
		discovery:   discovery,
		processor:   processor,
		logger:      logger,
		fsWatcher:   fsWatcher,
		fileHashes:  make(map[string]string),
		pendingMove: make(map[string]pendingMove),
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}

	if err := w.addDirsRecursively(rootDir); err != nil {
		fsWatcher.Close()
		return nil, err
	}
	return w, nil
}

// Run blocks, dispatching filesystem events until ctx is cancelled or
// Close is called.
func (w *Watcher) Run(ctx context.Context) error {
	defer close(w.doneCh)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.stopCh:
			return nil
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ctx, event)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("indexer watcher: error", zap.Error(err))
		}
	}
}

// Close stops the watcher and releases its OS resources.
func (w *Watcher) Close() error {
	w.once.Do(func() {
		close(w.stopCh)
		<-w.doneCh
	})
	return w.fsWatcher.Close()
}

func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	relPath, err := filepath.Rel(w.rootDir, event.Name)
	if err != nil {
		return
	}
	relPath = filepath.ToSlash(relPath)
	if w.discovery.shouldIgnore(relPath) {
		return
	}

	switch {
	case event.Op&fsnotify.Create != 0:
		w.handleCreate(ctx, event.Name, relPath)
	case event.Op&fsnotify.Write != 0:
		w.handleModify(ctx, event.Name, relPath)
	case event.Op&fsnotify.Remove != 0:
		w.handleRemove(ctx, event.Name)
	case event.Op&fsnotify.Rename != 0:
		// On most platforms a rename-away fires Rename for the source path;
		// the destination (if still within the watched tree) arrives as its
		// own Create event, correlated below via content hash.
		w.handleRemove(ctx, event.Name)
	}
}

func (w *Watcher) handleCreate(ctx context.Context, absPath, relPath string) {
	if info, err := os.Stat(absPath); err == nil && info.IsDir() {
		if w.discovery.ShouldWatch(relPath) {
			if err := w.addDirsRecursively(absPath); err != nil {
				w.logger.Warn("indexer watcher: failed to watch new directory", zap.String("path", absPath), zap.Error(err))
			}
		}
		return
	}
	if !w.discovery.Matches(relPath) {
		return
	}

	content, err := os.ReadFile(absPath)
	if err != nil {
		w.logger.Warn("indexer watcher: failed to read created file", zap.String("path", absPath), zap.Error(err))
		return
	}
	hash := fileHash(content)

	w.mu.Lock()
	pending, found := w.pendingMove[hash]
	if found {
		delete(w.pendingMove, hash)
		pending.timer.Stop()
	}
	w.mu.Unlock()

	if found {
		if err := w.processor.MoveFile(ctx, pending.path, absPath); err != nil {
			w.logger.Warn("indexer watcher: move failed, falling back to full re-index", zap.String("old_path", pending.path), zap.String("new_path", absPath), zap.Error(err))
			w.processFile(ctx, absPath)
			return
		}
		w.mu.Lock()
		delete(w.fileHashes, pending.path)
		w.fileHashes[absPath] = hash
		w.mu.Unlock()
		return
	}

	w.processFile(ctx, absPath)
	w.mu.Lock()
	w.fileHashes[absPath] = hash
	w.mu.Unlock()
}

func (w *Watcher) handleModify(ctx context.Context, absPath, relPath string) {
	if !w.discovery.Matches(relPath) {
		return
	}
	content, err := os.ReadFile(absPath)
	if err != nil {
		w.logger.Warn("indexer watcher: failed to read modified file", zap.String("path", absPath), zap.Error(err))
		return
	}
	hash := fileHash(content)

	w.mu.Lock()
	unchanged := w.fileHashes[absPath] == hash
	w.mu.Unlock()
	if unchanged {
		return
	}

	if err := w.processor.DeleteFile(ctx, absPath); err != nil {
		w.logger.Warn("indexer watcher: failed to clear stale chunks before reindex", zap.String("path", absPath), zap.Error(err))
	}
	w.processFile(ctx, absPath)

	w.mu.Lock()
	w.fileHashes[absPath] = hash
	w.mu.Unlock()
}

func (w *Watcher) handleRemove(ctx context.Context, absPath string) {
	w.mu.Lock()
	hash, tracked := w.fileHashes[absPath]
	w.mu.Unlock()
	if !tracked {
		return
	}

	timer := time.AfterFunc(moveCorrelationWindow, func() {
		w.mu.Lock()
		_, stillPending := w.pendingMove[hash]
		delete(w.pendingMove, hash)
		delete(w.fileHashes, absPath)
		w.mu.Unlock()
		if !stillPending {
			return
		}
		if err := w.processor.DeleteFile(ctx, absPath); err != nil {
			w.logger.Warn("indexer watcher: failed to delete chunks for removed file", zap.String("path", absPath), zap.Error(err))
		}
	})

	w.mu.Lock()
	w.pendingMove[hash] = pendingMove{path: absPath, timer: timer}
	w.mu.Unlock()
}

func (w *Watcher) processFile(ctx context.Context, absPath string) {
	if _, err := w.processor.ProcessFile(ctx, absPath); err != nil {
		w.logger.Warn("indexer watcher: failed to index file", zap.String("path", absPath), zap.Error(err))
	}
}

func (w *Watcher) addDirsRecursively(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			w.logger.Warn("indexer watcher: error walking path", zap.String("path", path), zap.Error(err))
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		relPath, relErr := filepath.Rel(w.rootDir, path)
		if relErr != nil {
			return nil
		}
		relPath = filepath.ToSlash(relPath)
		if relPath != "." && !w.discovery.ShouldWatch(relPath) {
			return filepath.SkipDir
		}
		if err := w.fsWatcher.Add(path); err != nil {
			w.logger.Warn("indexer watcher: failed to watch directory", zap.String("path", path), zap.Error(err))
		}
		return nil
	})
}

func fileHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
