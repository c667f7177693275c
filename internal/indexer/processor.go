package indexer

import (
	"context"
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/knitli/codeweaver/internal/chunker"
	"github.com/knitli/codeweaver/internal/chunker/chunkapi"
	"github.com/knitli/codeweaver/internal/chunkmodel"
	"github.com/knitli/codeweaver/internal/governor"
	"github.com/knitli/codeweaver/internal/providerregistry"
	"github.com/knitli/codeweaver/internal/vectorstore"
)

// Processor runs the parse -> chunk -> embed -> upsert pipeline for one
// file at a time (spec §4.5 steps 2-4). It holds no per-file state between
// calls to ProcessFile -- "each worker creates a fresh chunker via the
// Selector; no cross-file state" -- except the shared content-hash/batch
// stores and vector cache, which are spec-mandated shared resources.
type Processor struct {
	opts           chunkapi.Options
	governorLimits governor.Limits

	embedder providerregistry.DenseEmbedder
	sparse   providerregistry.SparseEmbedder // nil when no sparse provider configured
	store    *vectorstore.Manager
	logger   *zap.Logger

	mu          sync.Mutex
	fileChunks  map[string][]string          // file path -> chunk ids, for delete/move
	vectorCache map[string]vectorstore.Vector // chunk id -> embedded vector, for move's "without re-embedding"
}

// NewProcessor constructs a Processor. sparse may be nil.
func NewProcessor(opts chunkapi.Options, limits governor.Limits, embedder providerregistry.DenseEmbedder, sparse providerregistry.SparseEmbedder, store *vectorstore.Manager, logger *zap.Logger) *Processor {
	return &Processor{
		opts:           opts,
		governorLimits: limits,
		embedder:       embedder,
		sparse:         sparse,
		store:          store,
		logger:         logger,
		fileChunks:     make(map[string][]string),
		vectorCache:    make(map[string]vectorstore.Vector),
	}
}

// ProcessFile chunks, embeds, and upserts one file, returning the chunk
// count on success. Chunk upserts for this file are issued as a single
// ordered batch to the failover manager, which satisfies spec §5's
// "chunk upserts for a given file must be applied in source order."
func (p *Processor) ProcessFile(ctx context.Context, path string) (int, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read file: %w", err)
	}

	gov := governor.New(p.governorLimits)
	defer gov.Release()
	if err := gov.CheckFileSize(int64(len(content))); err != nil {
		return 0, fmt.Errorf("chunk %s: %w", path, err)
	}

	opts := p.opts
	opts.Governor = gov

	c := chunker.New(path, opts)
	result, err := c.Chunk(ctx, path, string(content), opts)
	if err != nil {
		return 0, fmt.Errorf("chunk %s: %w", path, err)
	}
	if len(result.Chunks) == 0 {
		p.recordFileChunks(path, nil)
		return 0, nil
	}

	vectors, err := p.embedChunks(ctx, result.Chunks)
	if err != nil {
		return 0, fmt.Errorf("embed %s: %w", path, err)
	}

	if err := p.store.Upsert(ctx, result.Chunks, vectors); err != nil {
		return 0, fmt.Errorf("upsert %s: %w", path, err)
	}

	ids := make([]string, len(result.Chunks))
	p.mu.Lock()
	for i, chunk := range result.Chunks {
		ids[i] = chunk.ID
		p.vectorCache[chunk.ID] = vectors[i]
	}
	p.mu.Unlock()
	p.recordFileChunks(path, ids)

	return len(result.Chunks), nil
}

// embedChunks computes dense embeddings for every chunk (passage mode) and,
// when a sparse provider is configured, sparse embeddings over the same
// batch (spec §4.5 step 3).
func (p *Processor) embedChunks(ctx context.Context, chunks []*chunkmodel.CodeChunk) ([]vectorstore.Vector, error) {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}

	dense, err := p.embedder.Embed(ctx, texts, providerregistry.EmbedModePassage)
	if err != nil {
		return nil, fmt.Errorf("dense embed: %w", err)
	}
	if len(dense) != len(chunks) {
		return nil, fmt.Errorf("dense embed: expected %d vectors, got %d", len(chunks), len(dense))
	}

	vectors := make([]vectorstore.Vector, len(chunks))
	for i, c := range chunks {
		vectors[i] = vectorstore.Vector{ChunkID: c.ID, Dense: dense[i]}
	}

	if p.sparse != nil {
		sv, sparseErr := p.sparse.EmbedSparse(ctx, texts)
		if sparseErr != nil {
			p.logger.Warn("indexer: sparse embedding failed, indexing dense-only", zap.String("path", chunks[0].FilePath), zap.Error(sparseErr))
		} else if len(sv) == len(chunks) {
			for i := range vectors {
				vectors[i].Sparse = sparseToMap(sv[i])
			}
		}
	}
	return vectors, nil
}

// DeleteFile removes every chunk previously recorded for path (spec §4.5
// step 6: "for deleted files, delete all chunks with that source path").
func (p *Processor) DeleteFile(ctx context.Context, path string) error {
	p.mu.Lock()
	ids := p.fileChunks[path]
	delete(p.fileChunks, path)
	for _, id := range ids {
		delete(p.vectorCache, id)
	}
	p.mu.Unlock()

	if len(ids) == 0 {
		return nil
	}
	return p.store.Delete(ctx, ids)
}

// MoveFile updates the source-path reference for every chunk previously
// indexed under oldPath, reusing their cached vectors rather than
// re-embedding (spec §4.5 step 6 "move detection": "update source-path
// references without re-embedding when content hash is unchanged"). The
// caller is responsible for having already verified the content hash is
// unchanged (typically: the file's size and mtime are unchanged, or a
// fresh hash of newPath's content matches the old chunks' stored hash).
func (p *Processor) MoveFile(ctx context.Context, oldPath, newPath string) error {
	p.mu.Lock()
	ids, ok := p.fileChunks[oldPath]
	p.mu.Unlock()
	if !ok || len(ids) == 0 {
		return nil
	}

	contents, err := p.store.FetchContent(ctx, ids)
	if err != nil {
		return fmt.Errorf("move %s -> %s: fetch content: %w", oldPath, newPath, err)
	}

	chunks := make([]*chunkmodel.CodeChunk, 0, len(ids))
	vectors := make([]vectorstore.Vector, 0, len(ids))
	p.mu.Lock()
	for _, id := range ids {
		chunk, ok := contents[id]
		if !ok {
			continue
		}
		chunk.FilePath = newPath
		vector, ok := p.vectorCache[id]
		if !ok {
			continue
		}
		chunks = append(chunks, chunk)
		vectors = append(vectors, vector)
	}
	p.mu.Unlock()

	if len(chunks) == 0 {
		return nil
	}
	if err := p.store.Upsert(ctx, chunks, vectors); err != nil {
		return fmt.Errorf("move %s -> %s: upsert: %w", oldPath, newPath, err)
	}

	p.mu.Lock()
	delete(p.fileChunks, oldPath)
	p.fileChunks[newPath] = ids
	p.mu.Unlock()
	return nil
}

func (p *Processor) recordFileChunks(path string, ids []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fileChunks[path] = ids
}

func sparseToMap(sv providerregistry.SparseVector) map[uint32]float32 {
	out := make(map[uint32]float32, len(sv.Indices))
	for i, idx := range sv.Indices {
		out[idx] = sv.Values[i]
	}
	return out
}
