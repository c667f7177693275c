// Package vectorstore defines the common vector-store contract and the
// health-monitored failover manager described in spec §4.6: a primary
// (qdrant) store with a local (chromem-go + sqlite-vec) backup, switched
// atomically on health-probe failure and synced back on recovery.
package vectorstore

import (
	"context"

	"github.com/knitli/codeweaver/internal/chunkmodel"
)

// Vector pairs a chunk id with its dense embedding and, optionally, a
// sparse representation for hybrid retrieval.
type Vector struct {
	ChunkID string
	Dense   []float32
	Sparse  map[uint32]float32
}

// SearchHit is one ranked result from a similarity query.
type SearchHit struct {
	ChunkID  string
	Score    float64 // higher is better, regardless of the underlying distance metric
	Chunk    *chunkmodel.CodeChunk
}

// SearchOptions configures one similarity query.
type SearchOptions struct {
	Limit  int
	Sparse map[uint32]float32 // present for hybrid dense+sparse queries
}

// Store is implemented by both the qdrant-backed primary and the
// chromem-go/sqlite-vec-backed backup (spec §4.6).
type Store interface {
	// OpenCollection opens or creates a collection, enforcing the
	// compatibility gate in spec §3's "Collection Metadata" invariants.
	OpenCollection(ctx context.Context, name string, meta chunkmodel.CollectionMetadata) error

	Upsert(ctx context.Context, collection string, chunks []*chunkmodel.CodeChunk, vectors []Vector) error
	Delete(ctx context.Context, collection string, chunkIDs []string) error
	Search(ctx context.Context, collection string, queryVector []float32, opts SearchOptions) ([]SearchHit, error)

	// SearchSparse runs a sparse-vector-only query, returned as its own rank
	// list so the orchestrator can fuse it with the dense list via RRF (spec
	// §4.7 step 3). Backends with no sparse support (the in-memory backup)
	// return an empty, nil-error result rather than failing the query --
	// the backup's embedding profile treats sparse as optional (spec §4.6).
	SearchSparse(ctx context.Context, collection string, sparse map[uint32]float32, limit int) ([]SearchHit, error)

	// ChunkIDs returns every chunk id currently stored in the collection,
	// used to build the Backup Snapshot Set and to diff it on restore.
	ChunkIDs(ctx context.Context, collection string) ([]string, error)

	// FetchContent returns the stored payload (file path, content, language)
	// for each requested chunk id, without vectors — used by sync-back to
	// re-embed source text with the primary's own embedding provider rather
	// than copying a vector across stores (spec §4.6 "vectors are never
	// copied across stores").
	FetchContent(ctx context.Context, collection string, chunkIDs []string) (map[string]*chunkmodel.CodeChunk, error)

	// Healthy reports whether the store can currently serve requests,
	// used by the failover manager's health prober.
	Healthy(ctx context.Context) error

	Close() error
}
