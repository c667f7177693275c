// Package chunkapi holds the shared chunker contract (Options, Result, the
// Chunker interface) used by both the semantic and delimiter chunkers; the
// selector that routes between them lives in package chunker. It exists purely to avoid an
// import cycle: the semantic chunker delegates oversize nodes to the
// delimiter chunker (spec §4.3 step 4), so neither package can depend on a
// shared "chunker" package that also imports both of them.
package chunkapi

import (
	"context"

	"github.com/knitli/codeweaver/internal/chunkmodel"
	"github.com/knitli/codeweaver/internal/governor"
)

// Options configures one chunking operation on one file.
type Options struct {
	Governor            *governor.Governor
	ImportanceThreshold  float64 // default 0.3, spec §4.3 step 3
	ChunkTokenLimit      int     // default 500 (DefaultOptions); no config field sets it
	SimpleOverlap        int     // default 64 chars, spec §9
	ContentHashStore     *chunkmodel.ContentHashStore
	BatchStore           *chunkmodel.BatchStore
	ForceDelimiter       bool // chunker.force_delimiter_for_languages
}

// DefaultOptions returns the spec-documented defaults for any fields left
// unset by the caller.
func DefaultOptions() Options {
	return Options{
		ImportanceThreshold: 0.3,
		ChunkTokenLimit:     500,
		SimpleOverlap:       64,
	}
}

// Result is the output of one chunking operation: a deduplicated, batched
// set of chunks.
type Result struct {
	Chunks  []*chunkmodel.CodeChunk
	BatchID string
}

// Chunker is implemented by the semantic chunker, the delimiter chunker,
// and the GracefulChunker wrapper that composes them (spec §4.2).
type Chunker interface {
	Chunk(ctx context.Context, path, content string, opts Options) (Result, error)
}

// charsPerToken is the teacher's own heuristic (internal/indexer/chunker.go
// estimateTokens: ~4 characters per token), used throughout the chunking
// and query-assembly paths rather than invoking a real tokenizer, since the
// spec only requires a documented, consistent estimate.
const charsPerToken = 4

// EstimateTokens approximates a token count from character length.
func EstimateTokens(text string) int {
	if len(text) == 0 {
		return 0
	}
	tokens := len(text) / charsPerToken
	if tokens == 0 {
		tokens = 1
	}
	return tokens
}

// MaxChars returns the character-length ceiling that keeps EstimateTokens's
// result at or under limit. A non-positive limit means "unlimited" and
// returns 0, which callers must treat as "don't split".
func MaxChars(limit int) int {
	if limit <= 0 {
		return 0
	}
	return limit * charsPerToken
}

// BinaryFileError reports that a file's content contains a NUL byte and was
// therefore refused before chunking (spec §4.3 step 1, §7): binary content
// is not a chunkable edge case, it's a hard skip.
type BinaryFileError struct {
	Path string
}

func (e *BinaryFileError) Error() string {
	return "binary content (embedded NUL byte): " + e.Path
}
