package indexer

// Test Plan:
// - splitByBudget keeps files before the deadline and defers the rest
// - ProcessFiles processes every file in parallel and records per-file stats
// - a single file's chunking failure is recorded as OutcomeFailed without
//   aborting the rest of the batch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/knitli/codeweaver/internal/providerregistry"
)

func TestIndexer_SplitByBudget_DefersFilesPastDeadline(t *testing.T) {
	t.Parallel()
	idx := &Indexer{cfg: Config{MaxParallelFiles: 1}, logger: zap.NewNop()}

	files := []string{"a.go", "b.go", "c.go"}
	inBudget, deferred := idx.splitByBudget(files, time.Now().Add(-time.Second))
	assert.Empty(t, inBudget, "a deadline already in the past defers everything")
	assert.Equal(t, files, deferred)

	inBudget, deferred = idx.splitByBudget(files, time.Now().Add(time.Hour))
	assert.Equal(t, files, inBudget)
	assert.Empty(t, deferred)
}

func TestIndexer_ProcessFiles_RunsEveryFileAndAggregatesStats(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	var paths []string
	for i := 0; i < 5; i++ {
		path := filepath.Join(dir, "file"+string(rune('a'+i))+".txt")
		require.NoError(t, os.WriteFile(path, []byte("content\nmore content\n"), 0o644))
		paths = append(paths, path)
	}

	store := newCapturingStore()
	processor := newTestProcessor(store, providerregistry.NewMockDenseEmbedder(8))
	idx := &Indexer{cfg: Config{MaxParallelFiles: 3}, processor: processor, logger: zap.NewNop()}

	stats := idx.ProcessFiles(context.Background(), paths)
	assert.Equal(t, 5, stats.TotalFiles)
	assert.Equal(t, 5, stats.Indexed)
	assert.Equal(t, 0, stats.Failed)
	assert.Positive(t, stats.TotalChunks)
}

func TestIndexer_ProcessFiles_RecordsPerFileFailureWithoutAbortingBatch(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	good := filepath.Join(dir, "good.txt")
	require.NoError(t, os.WriteFile(good, []byte("fine\n"), 0o644))
	missing := filepath.Join(dir, "does-not-exist.txt")

	store := newCapturingStore()
	processor := newTestProcessor(store, providerregistry.NewMockDenseEmbedder(8))
	idx := &Indexer{cfg: Config{MaxParallelFiles: 2}, processor: processor, logger: zap.NewNop()}

	stats := idx.ProcessFiles(context.Background(), []string{good, missing})
	assert.Equal(t, 2, stats.TotalFiles)
	assert.Equal(t, 1, stats.Indexed)
	assert.Equal(t, 1, stats.Failed)
	require.Len(t, stats.Failures, 1)
	assert.Equal(t, missing, stats.Failures[0].Path)
}

func TestIndexer_ProcessFiles_RecordsBinaryFileAsSkippedNotFailed(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	good := filepath.Join(dir, "good.txt")
	require.NoError(t, os.WriteFile(good, []byte("fine\n"), 0o644))
	binPath := filepath.Join(dir, "binary.dat")
	require.NoError(t, os.WriteFile(binPath, []byte("garbage\x00more"), 0o644))

	store := newCapturingStore()
	processor := newTestProcessor(store, providerregistry.NewMockDenseEmbedder(8))
	idx := &Indexer{cfg: Config{MaxParallelFiles: 2}, processor: processor, logger: zap.NewNop()}

	stats := idx.ProcessFiles(context.Background(), []string{good, binPath})
	assert.Equal(t, 2, stats.TotalFiles)
	assert.Equal(t, 1, stats.Indexed)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, 0, stats.Failed)
	assert.Empty(t, stats.Failures, "a skipped binary file is not a failure")
}
