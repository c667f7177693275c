package backup

// Test Plan:
// - Open creates the sqlite schema from scratch
// - OpenCollection accepts a brand-new collection unconditionally
// - Upsert persists chunks durably and serves them back via Search
// - OpenCollection reloads a prior session's chunks from sqlite into chromem
// - OpenCollection rejects a dimension mismatch against stored metadata
// - Delete removes a chunk from both the durable table and the serving index
// - ChunkIDs reflects the durable table, not the in-memory mirror

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knitli/codeweaver/internal/chunkmodel"
	"github.com/knitli/codeweaver/internal/vectorstore"
)

func testChunk(id, content string) *chunkmodel.CodeChunk {
	return &chunkmodel.CodeChunk{ID: id, Content: content, FilePath: "a.go", Language: "go"}
}

func testMeta() chunkmodel.CollectionMetadata {
	return chunkmodel.CollectionMetadata{Provider: "mock", Model: "mock-384", Dimension: 4}
}

func TestOpen_CreatesSchema(t *testing.T) {
	t.Parallel()

	dbPath := filepath.Join(t.TempDir(), "backup.db")
	store, err := Open(dbPath)
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Healthy(context.Background()))
}

func TestOpenCollection_AcceptsNewCollection(t *testing.T) {
	t.Parallel()

	store, err := Open(filepath.Join(t.TempDir(), "backup.db"))
	require.NoError(t, err)
	defer store.Close()

	err = store.OpenCollection(context.Background(), "code", testMeta())
	require.NoError(t, err)
}

func TestUpsertAndSearch_RoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, err := Open(filepath.Join(t.TempDir(), "backup.db"))
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.OpenCollection(ctx, "code", testMeta()))

	chunks := []*chunkmodel.CodeChunk{testChunk("c1", "func Foo() {}"), testChunk("c2", "func Bar() {}")}
	vectors := []vectorstore.Vector{
		{ChunkID: "c1", Dense: []float32{1, 0, 0, 0}},
		{ChunkID: "c2", Dense: []float32{0, 1, 0, 0}},
	}
	require.NoError(t, store.Upsert(ctx, "code", chunks, vectors))

	hits, err := store.Search(ctx, "code", []float32{1, 0, 0, 0}, vectorstore.SearchOptions{Limit: 2})
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "c1", hits[0].ChunkID)

	ids, err := store.ChunkIDs(ctx, "code")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"c1", "c2"}, ids)
}

func TestOpenCollection_ReloadsPersistedChunks(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "backup.db")

	store, err := Open(dbPath)
	require.NoError(t, err)
	require.NoError(t, store.OpenCollection(ctx, "code", testMeta()))
	require.NoError(t, store.Upsert(ctx, "code", []*chunkmodel.CodeChunk{testChunk("c1", "func Foo() {}")},
		[]vectorstore.Vector{{ChunkID: "c1", Dense: []float32{1, 0, 0, 0}}}))
	require.NoError(t, store.Close())

	reopened, err := Open(dbPath)
	require.NoError(t, err)
	defer reopened.Close()

	require.NoError(t, reopened.OpenCollection(ctx, "code", testMeta()))
	hits, err := reopened.Search(ctx, "code", []float32{1, 0, 0, 0}, vectorstore.SearchOptions{Limit: 1})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "c1", hits[0].ChunkID)
}

func TestOpenCollection_RejectsDimensionMismatch(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, err := Open(filepath.Join(t.TempDir(), "backup.db"))
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.OpenCollection(ctx, "code", testMeta()))

	mismatched := testMeta()
	mismatched.Dimension = 8
	err = store.OpenCollection(ctx, "code", mismatched)
	require.Error(t, err)
	var dimErr *chunkmodel.DimensionMismatchError
	assert.ErrorAs(t, err, &dimErr)
}

func TestDelete_RemovesFromDurableAndServingIndex(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, err := Open(filepath.Join(t.TempDir(), "backup.db"))
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.OpenCollection(ctx, "code", testMeta()))
	require.NoError(t, store.Upsert(ctx, "code", []*chunkmodel.CodeChunk{testChunk("c1", "func Foo() {}")},
		[]vectorstore.Vector{{ChunkID: "c1", Dense: []float32{1, 0, 0, 0}}}))

	require.NoError(t, store.Delete(ctx, "code", []string{"c1"}))

	ids, err := store.ChunkIDs(ctx, "code")
	require.NoError(t, err)
	assert.Empty(t, ids)
}
