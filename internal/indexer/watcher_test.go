package indexer

// Test Plan:
// - creating a new in-scope file indexes it
// - removing a watched file deletes its chunks once the correlation window
//   elapses without a matching create (no move detected)
//
// These exercise the real fsnotify.Watcher against a temp directory; each
// assertion polls briefly since filesystem events are asynchronous.

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/knitli/codeweaver/internal/providerregistry"
)

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	require.True(t, cond(), "condition not met within %s", timeout)
}

func newTestWatcher(t *testing.T, root string, processor *Processor) *Watcher {
	t.Helper()
	discovery, err := NewDiscovery(root, []string{"**/*"}, []string{".git/**"})
	require.NoError(t, err)
	w, err := NewWatcher(root, discovery, processor, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })
	return w
}

func TestWatcher_CreatedFileGetsIndexed(t *testing.T) {
	root := t.TempDir()
	store := newCapturingStore()
	processor := newTestProcessor(store, providerregistry.NewMockDenseEmbedder(8))
	w := newTestWatcher(t, root, processor)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	require.NoError(t, os.WriteFile(filepath.Join(root, "new.txt"), []byte("hello world\nsecond line\n"), 0o644))

	waitUntil(t, 2*time.Second, func() bool {
		store.mu()
		defer store.unmu()
		return len(store.upserted) > 0
	})
}

func TestWatcher_RemovedFileDeletesChunksAfterCorrelationWindow(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "gone.txt")
	require.NoError(t, os.WriteFile(path, []byte("will be removed\n"), 0o644))

	store := newCapturingStore()
	processor := newTestProcessor(store, providerregistry.NewMockDenseEmbedder(8))
	_, err := processor.ProcessFile(context.Background(), path)
	require.NoError(t, err)
	require.NotEmpty(t, store.upserted)

	w := newTestWatcher(t, root, processor)
	w.mu.Lock()
	w.fileHashes[path] = fileHash([]byte("will be removed\n"))
	w.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	require.NoError(t, os.Remove(path))

	waitUntil(t, moveCorrelationWindow+2*time.Second, func() bool {
		store.mu()
		defer store.unmu()
		return len(store.deleted) > 0
	})
}
