// Package chunker selects between the semantic and delimiter chunkers per
// file and wraps the choice in a graceful fallback, per spec §4.2.
package chunker

import (
	"context"
	"errors"
	"path/filepath"

	"github.com/knitli/codeweaver/internal/chunker/chunkapi"
	"github.com/knitli/codeweaver/internal/chunker/delimiter"
	"github.com/knitli/codeweaver/internal/chunker/semantic"
)

// New returns a stateless, fresh-per-file chunker for path (spec §4.2: "the
// selector is pure and holds no state between files"). When the file's
// language has a tree-sitter grammar and ForceDelimiter doesn't override
// it, the semantic chunker is primary and the delimiter chunker is its
// fallback; otherwise the delimiter chunker is used directly.
func New(path string, opts chunkapi.Options) chunkapi.Chunker {
	ext := filepath.Ext(path)
	language := semantic.LanguageForExtension(ext)

	if language != "" && semantic.Supported(language) && !opts.ForceDelimiter {
		return &GracefulChunker{
			primary:  &semantic.Chunker{Language: language},
			fallback: &delimiter.Chunker{Language: language},
		}
	}
	return &delimiter.Chunker{Language: language}
}

// GracefulChunker runs a primary chunker and, if it returns an error
// (parse failure, governor limit, panic recovered below), retries with a
// fallback chunker rather than letting the error propagate to the caller
// (spec §4.2: "primary/fallback composition must never surface a parser
// error to the indexer"). A BinaryFileError is the one exception: it means
// the content was refused before parsing, so falling back would just emit
// the same binary garbage through the delimiter chunker instead. That
// error is returned to the caller untouched, for the indexer to record as
// a per-file skip (spec §7).
type GracefulChunker struct {
	primary  chunkapi.Chunker
	fallback chunkapi.Chunker
}

// Chunk implements chunkapi.Chunker.
func (g *GracefulChunker) Chunk(ctx context.Context, path, content string, opts chunkapi.Options) (result chunkapi.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			result, err = g.fallback.Chunk(ctx, path, content, opts)
		}
	}()

	result, err = g.primary.Chunk(ctx, path, content, opts)
	if err != nil {
		var binErr *chunkapi.BinaryFileError
		if errors.As(err, &binErr) {
			return chunkapi.Result{}, err
		}
		return g.fallback.Chunk(ctx, path, content, opts)
	}
	return result, nil
}
