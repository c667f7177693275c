package indexer

// Test Plan:
// - ProcessFile chunks a real file through the delimiter chunker, embeds,
//   and upserts it as one batch
// - an empty file produces zero chunks without error
// - DeleteFile removes every chunk recorded for a path
// - MoveFile reuses cached vectors and never calls the embedder again

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/knitli/codeweaver/internal/chunker/chunkapi"
	"github.com/knitli/codeweaver/internal/chunkmodel"
	"github.com/knitli/codeweaver/internal/governor"
	"github.com/knitli/codeweaver/internal/providerregistry"
	"github.com/knitli/codeweaver/internal/vectorstore"
)

func newTestProcessor(store vectorstore.Store, embedder providerregistry.DenseEmbedder) *Processor {
	cfg := vectorstore.DefaultManagerConfig("code")
	mgr := vectorstore.NewManager(store, newCapturingStore(), cfg, embedder, nil, zap.NewNop())
	return NewProcessor(chunkapi.DefaultOptions(), governor.Defaults(), embedder, nil, mgr, zap.NewNop())
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sample.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestProcessor_ProcessFile_ChunksEmbedsAndUpserts(t *testing.T) {
	t.Parallel()
	path := writeTempFile(t, "line one\nline two\nline three\n")
	store := newCapturingStore()
	p := newTestProcessor(store, providerregistry.NewMockDenseEmbedder(8))

	n, err := p.ProcessFile(context.Background(), path)
	require.NoError(t, err)
	assert.Positive(t, n)
	assert.Len(t, store.upserted, n)
}

func TestProcessor_ProcessFile_EmptyFileProducesNoChunks(t *testing.T) {
	t.Parallel()
	path := writeTempFile(t, "")
	store := newCapturingStore()
	p := newTestProcessor(store, providerregistry.NewMockDenseEmbedder(8))

	n, err := p.ProcessFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestProcessor_DeleteFile_RemovesRecordedChunks(t *testing.T) {
	t.Parallel()
	path := writeTempFile(t, "alpha\nbeta\ngamma\n")
	store := newCapturingStore()
	p := newTestProcessor(store, providerregistry.NewMockDenseEmbedder(8))

	_, err := p.ProcessFile(context.Background(), path)
	require.NoError(t, err)
	require.NotEmpty(t, store.upserted)

	require.NoError(t, p.DeleteFile(context.Background(), path))
	assert.ElementsMatch(t, idsOf(store.upserted), store.deleted)
}

func TestProcessor_MoveFile_ReusesVectorsWithoutReembedding(t *testing.T) {
	t.Parallel()
	oldPath := writeTempFile(t, "one\ntwo\nthree\n")
	newPath := oldPath + ".moved"
	store := newCapturingStore()
	embedder := &countingEmbedder{DenseEmbedder: providerregistry.NewMockDenseEmbedder(8)}
	p := newTestProcessor(store, embedder)

	_, err := p.ProcessFile(context.Background(), oldPath)
	require.NoError(t, err)
	callsBeforeMove := embedder.calls

	require.NoError(t, p.MoveFile(context.Background(), oldPath, newPath))

	assert.Equal(t, callsBeforeMove, embedder.calls, "move must not trigger additional embedding")
	for _, c := range store.upserted {
		assert.Equal(t, newPath, c.FilePath)
	}
}

// countingEmbedder wraps a DenseEmbedder to count Embed invocations, used
// to assert that MoveFile reuses cached vectors instead of re-embedding.
type countingEmbedder struct {
	providerregistry.DenseEmbedder
	calls int
}

func (c *countingEmbedder) Embed(ctx context.Context, texts []string, mode providerregistry.EmbedMode) ([][]float32, error) {
	c.calls++
	return c.DenseEmbedder.Embed(ctx, texts, mode)
}

// capturingStore is a minimal vectorstore.Store recording every upsert and
// delete so processor tests can assert on side effects without a real
// backend. It's safe for concurrent use since the watcher tests drive it
// from a background goroutine.
type capturingStore struct {
	sync.Mutex
	upserted   []*chunkmodel.CodeChunk
	deleted    []string
	embedCalls int
}

func newCapturingStore() *capturingStore {
	return &capturingStore{}
}

func (s *capturingStore) mu()   { s.Lock() }
func (s *capturingStore) unmu() { s.Unlock() }

func idsOf(chunks []*chunkmodel.CodeChunk) []string {
	ids := make([]string, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ID
	}
	return ids
}

func (s *capturingStore) OpenCollection(ctx context.Context, name string, meta chunkmodel.CollectionMetadata) error {
	return nil
}

func (s *capturingStore) Upsert(ctx context.Context, collection string, chunks []*chunkmodel.CodeChunk, vectors []vectorstore.Vector) error {
	s.Lock()
	defer s.Unlock()
	s.embedCalls++
	index := make(map[string]int, len(s.upserted))
	for i, c := range s.upserted {
		index[c.ID] = i
	}
	for _, c := range chunks {
		if i, exists := index[c.ID]; exists {
			s.upserted[i] = c
		} else {
			index[c.ID] = len(s.upserted)
			s.upserted = append(s.upserted, c)
		}
	}
	return nil
}

func (s *capturingStore) Delete(ctx context.Context, collection string, chunkIDs []string) error {
	s.Lock()
	defer s.Unlock()
	s.deleted = append(s.deleted, chunkIDs...)
	return nil
}

func (s *capturingStore) Search(ctx context.Context, collection string, queryVector []float32, opts vectorstore.SearchOptions) ([]vectorstore.SearchHit, error) {
	return nil, nil
}

func (s *capturingStore) SearchSparse(ctx context.Context, collection string, sparse map[uint32]float32, limit int) ([]vectorstore.SearchHit, error) {
	return nil, nil
}

func (s *capturingStore) ChunkIDs(ctx context.Context, collection string) ([]string, error) {
	s.Lock()
	defer s.Unlock()
	return idsOf(s.upserted), nil
}

func (s *capturingStore) FetchContent(ctx context.Context, collection string, chunkIDs []string) (map[string]*chunkmodel.CodeChunk, error) {
	s.Lock()
	defer s.Unlock()
	out := make(map[string]*chunkmodel.CodeChunk, len(chunkIDs))
	byID := make(map[string]*chunkmodel.CodeChunk, len(s.upserted))
	for _, c := range s.upserted {
		byID[c.ID] = c
	}
	for _, id := range chunkIDs {
		if c, ok := byID[id]; ok {
			out[id] = c
		}
	}
	return out, nil
}

func (s *capturingStore) Healthy(ctx context.Context) error { return nil }
func (s *capturingStore) Close() error                      { return nil }
