package chunkmodel

import (
	"fmt"
	"sync"
	"time"

	"github.com/maypok86/otter"
)

// Batch is the set of chunks produced by one chunking operation on one
// file (spec §3 "Batch").
type Batch struct {
	ID        string
	FilePath  string
	ChunkIDs  []string
	CreatedAt time.Time
}

// NewBatchID returns a fresh time-sortable batch id.
func NewBatchID() string {
	return NewChunkID()
}

// defaultCacheWeight approximates the fixed per-entry byte cost of a batch
// in the batch store; both stores weigh entries in bytes and are sized in
// MB via their constructors, matching the teacher's
// otter.Cost-weighted eviction idiom in internal/graph/searcher.go.
const defaultCacheWeight = 256

// BatchStore is a size-bounded store keyed by batch id (spec §3: "Stored in
// a size-bounded batch store keyed by batch id"). Eviction is delegated to
// otter's weighted-LRU policy.
type BatchStore struct {
	cache otter.Cache[string, *Batch]
}

// NewBatchStore creates a batch store bounded to maxSizeMB of approximate
// memory.
func NewBatchStore(maxSizeMB int) (*BatchStore, error) {
	cache, err := otter.MustBuilder[string, *Batch](maxSizeMB * 1024 * 1024).
		Cost(func(key string, value *Batch) uint32 {
			return uint32(defaultCacheWeight + len(value.ChunkIDs)*36)
		}).
		CollectStats().
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to create batch store: %w", err)
	}
	return &BatchStore{cache: cache}, nil
}

// Put registers a batch under its id.
func (s *BatchStore) Put(b *Batch) {
	s.cache.Set(b.ID, b)
}

// Get looks up a batch by id.
func (s *BatchStore) Get(id string) (*Batch, bool) {
	return s.cache.Get(id)
}

// Close releases the underlying cache.
func (s *BatchStore) Close() {
	s.cache.Close()
}

// ContentHashStore is a bounded map from content hash to batch id, used to
// skip re-embedding duplicate chunks within and across files (spec §3:
// "Eviction is LRU-by-size"). Access is safe for concurrent use by many
// readers and single-writer-per-insertion, per spec §5.
type ContentHashStore struct {
	cache otter.Cache[string, string]
	mu    sync.Mutex // serializes check-then-insert so concurrent chunkers don't both "win" a dedup race
}

// NewContentHashStore creates a content-hash store bounded to maxSizeMB of
// approximate memory.
func NewContentHashStore(maxSizeMB int) (*ContentHashStore, error) {
	cache, err := otter.MustBuilder[string, string](maxSizeMB * 1024 * 1024).
		Cost(func(key string, value string) uint32 {
			return uint32(len(key) + len(value))
		}).
		CollectStats().
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to create content hash store: %w", err)
	}
	return &ContentHashStore{cache: cache}, nil
}

// SeenOrInsert returns (existingBatchID, true) if hash was already present,
// otherwise it inserts hash -> batchID and returns ("", false). This is the
// single synchronization point for the dedup race described in spec §3/§5.
func (s *ContentHashStore) SeenOrInsert(hash, batchID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.cache.Get(hash); ok {
		return existing, true
	}
	s.cache.Set(hash, batchID)
	return "", false
}

// Close releases the underlying cache.
func (s *ContentHashStore) Close() {
	s.cache.Close()
}
