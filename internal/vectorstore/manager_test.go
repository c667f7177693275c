package vectorstore

// Test Plan:
// - Manager starts in PrimaryOnly
// - consecutive primary health failures trip PrimaryOnly -> BackupActive
// - consecutive primary health successes trigger a full restoration back
//   to PrimaryOnly, re-embedding and upserting only the chunks added since
//   the snapshot was captured (never copying a vector)
// - a sync-back failure beyond the configured tolerance aborts back to
//   BackupActive instead of completing restoration
// - a sync-back failure within tolerance completes restoration but leaves
//   the manager Degraded with the failed id pending re-sync

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/knitli/codeweaver/internal/chunkmodel"
	"github.com/knitli/codeweaver/internal/providerregistry"
)

type fakeStore struct {
	mu      sync.Mutex
	healthy bool
	chunks  map[string]*chunkmodel.CodeChunk
	vectors map[string]Vector
	missing map[string]bool // ids FetchContent should pretend not to have
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		healthy: true,
		chunks:  make(map[string]*chunkmodel.CodeChunk),
		vectors: make(map[string]Vector),
		missing: make(map[string]bool),
	}
}

func (f *fakeStore) OpenCollection(ctx context.Context, name string, meta chunkmodel.CollectionMetadata) error {
	return nil
}

func (f *fakeStore) Upsert(ctx context.Context, collection string, chunks []*chunkmodel.CodeChunk, vectors []Vector) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, c := range chunks {
		f.chunks[c.ID] = c
		f.vectors[c.ID] = vectors[i]
	}
	return nil
}

func (f *fakeStore) Delete(ctx context.Context, collection string, chunkIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range chunkIDs {
		delete(f.chunks, id)
		delete(f.vectors, id)
	}
	return nil
}

func (f *fakeStore) Search(ctx context.Context, collection string, queryVector []float32, opts SearchOptions) ([]SearchHit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	hits := make([]SearchHit, 0, len(f.chunks))
	for id := range f.chunks {
		hits = append(hits, SearchHit{ChunkID: id, Score: 1})
	}
	return hits, nil
}

func (f *fakeStore) SearchSparse(ctx context.Context, collection string, sparse map[uint32]float32, limit int) ([]SearchHit, error) {
	return nil, nil
}

func (f *fakeStore) ChunkIDs(ctx context.Context, collection string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(f.chunks))
	for id := range f.chunks {
		ids = append(ids, id)
	}
	return ids, nil
}

func (f *fakeStore) FetchContent(ctx context.Context, collection string, chunkIDs []string) (map[string]*chunkmodel.CodeChunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]*chunkmodel.CodeChunk)
	for _, id := range chunkIDs {
		if f.missing[id] {
			continue
		}
		if c, ok := f.chunks[id]; ok {
			out[id] = c
		}
	}
	return out, nil
}

func (f *fakeStore) Healthy(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.healthy {
		return errors.New("fake store: unhealthy")
	}
	return nil
}

func (f *fakeStore) setHealthy(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.healthy = v
}

func (f *fakeStore) Close() error { return nil }

func testManager(t *testing.T, primary, backup *fakeStore, tolerance int) *Manager {
	t.Helper()
	cfg := DefaultManagerConfig("code")
	cfg.DegradedTolerance = tolerance
	return NewManager(primary, backup, cfg, providerregistry.NewMockDenseEmbedder(4), nil, zap.NewNop())
}

func TestManager_StartsInPrimaryOnly(t *testing.T) {
	t.Parallel()
	m := testManager(t, newFakeStore(), newFakeStore(), 0)
	assert.Equal(t, StatePrimaryOnly, m.State())
	assert.Equal(t, "primary", m.ActiveName())
}

func TestManager_TripsToBackupActiveAfterConsecutiveFailures(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	primary := newFakeStore()
	primary.setHealthy(false)
	backup := newFakeStore()
	require.NoError(t, backup.Upsert(ctx, "code", []*chunkmodel.CodeChunk{{ID: "snap1", Content: "a"}}, []Vector{{ChunkID: "snap1"}}))

	m := testManager(t, primary, backup, 0)
	cfg := m.cfg
	for i := 0; i < cfg.ConsecutiveFailuresToTrip; i++ {
		m.probeOnce(ctx)
	}

	assert.Equal(t, StateBackupActive, m.State())
	assert.Equal(t, "backup", m.ActiveName())
	assert.Contains(t, m.snapshot, "snap1")
}

func TestManager_RestoresAfterConsecutiveSuccesses(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	primary := newFakeStore()
	primary.setHealthy(false)
	backup := newFakeStore()
	require.NoError(t, backup.Upsert(ctx, "code", []*chunkmodel.CodeChunk{{ID: "snap1", Content: "a"}}, []Vector{{ChunkID: "snap1"}}))

	m := testManager(t, primary, backup, 0)
	for i := 0; i < m.cfg.ConsecutiveFailuresToTrip; i++ {
		m.probeOnce(ctx)
	}
	require.Equal(t, StateBackupActive, m.State())

	// a chunk added to the backup during the outage
	require.NoError(t, backup.Upsert(ctx, "code", []*chunkmodel.CodeChunk{{ID: "new1", Content: "func New() {}"}}, []Vector{{ChunkID: "new1"}}))

	primary.setHealthy(true)
	for i := 0; i < m.cfg.ConsecutiveSuccessesToRestore; i++ {
		m.probeOnce(ctx)
	}

	assert.Equal(t, StatePrimaryOnly, m.State())
	assert.False(t, m.Degraded())

	primary.mu.Lock()
	_, synced := primary.chunks["new1"]
	_, copiedSnapshot := primary.chunks["snap1"]
	primary.mu.Unlock()
	assert.True(t, synced, "chunk added during failover should be re-embedded and upserted to primary")
	assert.False(t, copiedSnapshot, "chunk already present before failover should not be re-synced")
}

func TestManager_StaysOnPrimaryWhenFailoverDisabled(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	primary := newFakeStore()
	primary.setHealthy(false)
	backup := newFakeStore()

	m := testManager(t, primary, backup, 0)
	m.cfg.FailoverEnabled = false
	for i := 0; i < m.cfg.ConsecutiveFailuresToTrip+2; i++ {
		m.probeOnce(ctx)
	}

	assert.Equal(t, StatePrimaryOnly, m.State())
	assert.Equal(t, "primary", m.ActiveName())
	assert.False(t, m.FailoverInfo().Enabled)
}

func TestManager_AbortsRestoreWhenSyncBackFailsBeyondTolerance(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	primary := newFakeStore()
	primary.setHealthy(false)
	backup := newFakeStore()

	m := testManager(t, primary, backup, 0)
	for i := 0; i < m.cfg.ConsecutiveFailuresToTrip; i++ {
		m.probeOnce(ctx)
	}
	require.Equal(t, StateBackupActive, m.State())

	require.NoError(t, backup.Upsert(ctx, "code", []*chunkmodel.CodeChunk{{ID: "new1", Content: "func New() {}"}}, []Vector{{ChunkID: "new1"}}))
	backup.missing["new1"] = true // simulate payload fetch failing

	primary.setHealthy(true)
	for i := 0; i < m.cfg.ConsecutiveSuccessesToRestore; i++ {
		m.probeOnce(ctx)
	}

	assert.Equal(t, StateBackupActive, m.State(), "restoration should abort back to BackupActive")
}

func TestManager_DegradedWhenFailureWithinTolerance(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	primary := newFakeStore()
	primary.setHealthy(false)
	backup := newFakeStore()

	m := testManager(t, primary, backup, 1)
	for i := 0; i < m.cfg.ConsecutiveFailuresToTrip; i++ {
		m.probeOnce(ctx)
	}
	require.Equal(t, StateBackupActive, m.State())

	require.NoError(t, backup.Upsert(ctx, "code", []*chunkmodel.CodeChunk{{ID: "new1", Content: "func New() {}"}}, []Vector{{ChunkID: "new1"}}))
	backup.missing["new1"] = true

	primary.setHealthy(true)
	for i := 0; i < m.cfg.ConsecutiveSuccessesToRestore; i++ {
		m.probeOnce(ctx)
	}

	assert.Equal(t, StatePrimaryOnly, m.State())
	assert.True(t, m.Degraded())
	assert.Equal(t, []string{"new1"}, m.PendingResync())

	m.MarkResynced([]string{"new1"})
	assert.False(t, m.Degraded())
}
