package indexer

// Implementation Plan:
// 1. Indexer struct wires Discovery + Processor + the failover manager
//    behind the spec §4.5 lifecycle: Prime, ProcessFiles (parallel worker
//    pool), and the file watcher.
// 2. Prime runs at startup under a wall-clock budget; files left over are
//    deferred to the watcher (step 5).
// 3. ProcessFiles fans work out over a conc pool sized by
//    cfg.MaxParallelFiles (step 2): "prefer process-level parallelism...
//    each worker creates a fresh chunker."
// 4. Per-file failures are recorded in Stats and never abort the run
//    (§4.5 "Failure policy").

import (
	"context"
	"errors"
	"time"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"github.com/knitli/codeweaver/internal/chunker/chunkapi"
)

// Indexer orchestrates discovery, parallel chunking, embedding, and upsert
// for one project root (spec §4.5).
type Indexer struct {
	cfg       Config
	discovery *Discovery
	processor *Processor
	watcher   *Watcher
	logger    *zap.Logger
}

// New constructs an Indexer. processor must already be wired to the
// failover manager and the active embedding/sparse providers.
func New(cfg Config, discovery *Discovery, processor *Processor, logger *zap.Logger) *Indexer {
	idx := &Indexer{cfg: cfg, discovery: discovery, processor: processor, logger: logger}
	return idx
}

// Prime runs the startup indexing pass (spec §4.5 step 5): discover every
// in-scope file and process it, deferring whatever doesn't fit within
// cfg.PrimingBudget to the watcher.
func (idx *Indexer) Prime(ctx context.Context) (Stats, error) {
	files, err := idx.discovery.DiscoverFiles()
	if err != nil {
		return Stats{}, err
	}

	deadline := time.Now().Add(idx.cfg.PrimingBudget)
	if idx.cfg.PrimingBudget <= 0 {
		deadline = time.Time{} // zero value: no deadline, budget disabled
	}

	inBudget := files
	var deferred []string
	if !deadline.IsZero() {
		inBudget, deferred = idx.splitByBudget(files, deadline)
	}

	stats := idx.ProcessFiles(ctx, inBudget)
	for _, path := range deferred {
		stats.record(FileResult{Path: path, Outcome: OutcomeDeferred})
	}
	if len(deferred) > 0 {
		idx.logger.Warn("indexer: priming budget exhausted, deferring remaining files to the watcher",
			zap.Int("deferred", len(deferred)))
	}
	return stats, nil
}

// splitByBudget compares the wall clock with deadline before each file and
// keeps no per-file cost estimate: once the deadline has passed, that file
// and all remaining files are deferred.
func (idx *Indexer) splitByBudget(files []string, deadline time.Time) (inBudget, deferred []string) {
	for i, f := range files {
		if time.Now().After(deadline) {
			return files[:i], files[i:]
		}
		inBudget = append(inBudget, f)
	}
	return inBudget, nil
}

// ProcessFiles chunks, embeds, and upserts each file in parallel, bounded
// by cfg.MaxParallelFiles worker goroutines (spec §4.5 step 2). Across
// files there is no ordering guarantee; within a file, ProcessFile issues
// one ordered upsert batch.
func (idx *Indexer) ProcessFiles(ctx context.Context, files []string) Stats {
	stats := Stats{}
	results := make(chan FileResult, len(files))

	p := pool.New().WithMaxGoroutines(maxInt(1, idx.cfg.MaxParallelFiles))
	for _, path := range files {
		path := path
		p.Go(func() {
			results <- idx.processOne(ctx, path)
		})
	}
	p.Wait()
	close(results)

	for r := range results {
		stats.record(r)
	}
	return stats
}

func (idx *Indexer) processOne(ctx context.Context, path string) FileResult {
	n, err := idx.processor.ProcessFile(ctx, path)
	if err != nil {
		var binErr *chunkapi.BinaryFileError
		if errors.As(err, &binErr) {
			idx.logger.Info("indexer: skipping binary file", zap.String("path", path))
			return FileResult{Path: path, Outcome: OutcomeSkipped, Err: err}
		}
		idx.logger.Warn("indexer: file processing failed, skipping", zap.String("path", path), zap.Error(err))
		return FileResult{Path: path, Outcome: OutcomeFailed, Err: err}
	}
	return FileResult{Path: path, Outcome: OutcomeIndexed, Chunks: n}
}

// Watch starts the file watcher (spec §4.5 step 6) if cfg.FileWatchingEnabled.
// It blocks until ctx is cancelled.
func (idx *Indexer) Watch(ctx context.Context) error {
	if !idx.cfg.FileWatchingEnabled {
		<-ctx.Done()
		return nil
	}
	w, err := NewWatcher(idx.cfg.RootDir, idx.discovery, idx.processor, idx.logger)
	if err != nil {
		return err
	}
	idx.watcher = w
	defer w.Close()
	return w.Run(ctx)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
