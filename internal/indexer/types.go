// Package indexer implements the spec §4.5 pipeline: discovery, parallel
// chunking, batch embedding, upsert through the failover manager, a
// startup priming pass bounded by a wall-clock budget, and a file watcher
// that keeps the index live.
package indexer

import (
	"time"

	"github.com/knitli/codeweaver/internal/chunker/chunkapi"
)

// Config configures one Indexer instance (spec §6 "indexer"/"chunker"/
// "chunker.performance"/"chunker.concurrency" option groups).
type Config struct {
	RootDir string

	IncludePatterns []string
	ExcludePatterns []string

	MaxParallelFiles int
	ChunkOptions     chunkapi.Options

	Collection          string
	FileWatchingEnabled bool
	AutoIndexOnStartup  bool

	// PrimingBudget bounds the startup scan; files not processed within the
	// budget are left for the watcher to pick up (spec §4.5 step 5).
	PrimingBudget time.Duration
}

// DefaultConfig returns the spec-documented defaults for fields a caller
// leaves unset.
func DefaultConfig(rootDir string) Config {
	return Config{
		RootDir:             rootDir,
		IncludePatterns:     []string{"**/*"},
		ExcludePatterns:     []string{".git/**", "node_modules/**", "vendor/**"},
		MaxParallelFiles:    8,
		ChunkOptions:        chunkapi.DefaultOptions(),
		Collection:          "code",
		FileWatchingEnabled: true,
		AutoIndexOnStartup:  true,
		PrimingBudget:       5 * time.Minute,
	}
}

// FileOutcome classifies one file's processing result for statistics (spec
// §4.5 "Failure policy": per-file errors are logged and reported in
// statistics but never abort the run).
type FileOutcome string

const (
	OutcomeIndexed  FileOutcome = "indexed"
	OutcomeSkipped  FileOutcome = "skipped"
	OutcomeFailed   FileOutcome = "failed"
	OutcomeDeferred FileOutcome = "deferred" // priming budget exhausted
)

// FileResult is the per-file record the indexer accumulates into Stats.
type FileResult struct {
	Path    string
	Outcome FileOutcome
	Chunks  int
	Err     error
}

// Stats summarizes one indexing pass (initial priming, an incremental
// watcher-driven update, or an operator-triggered reindex).
type Stats struct {
	TotalFiles  int
	Indexed     int
	Skipped     int
	Failed      int
	Deferred    int
	TotalChunks int
	Duration    time.Duration
	Failures    []FileResult
}

func (s *Stats) record(r FileResult) {
	s.TotalFiles++
	switch r.Outcome {
	case OutcomeIndexed:
		s.Indexed++
		s.TotalChunks += r.Chunks
	case OutcomeSkipped:
		s.Skipped++
	case OutcomeFailed:
		s.Failed++
		s.Failures = append(s.Failures, r)
	case OutcomeDeferred:
		s.Deferred++
	}
}
