package root

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/knitli/codeweaver/internal/chunker/chunkapi"
	"github.com/knitli/codeweaver/internal/chunkmodel"
	"github.com/knitli/codeweaver/internal/config"
	"github.com/knitli/codeweaver/internal/governor"
	"github.com/knitli/codeweaver/internal/indexer"
	"github.com/knitli/codeweaver/internal/orchestrator"
	"github.com/knitli/codeweaver/internal/providerregistry"
	"github.com/knitli/codeweaver/internal/vectorstore"
)

type fakeStore struct {
	healthErr error
}

func (s *fakeStore) OpenCollection(ctx context.Context, name string, meta chunkmodel.CollectionMetadata) error {
	return nil
}
func (s *fakeStore) Upsert(ctx context.Context, collection string, chunks []*chunkmodel.CodeChunk, vectors []vectorstore.Vector) error {
	return nil
}
func (s *fakeStore) Delete(ctx context.Context, collection string, chunkIDs []string) error {
	return nil
}
func (s *fakeStore) Search(ctx context.Context, collection string, queryVector []float32, opts vectorstore.SearchOptions) ([]vectorstore.SearchHit, error) {
	return nil, nil
}
func (s *fakeStore) SearchSparse(ctx context.Context, collection string, sparse map[uint32]float32, limit int) ([]vectorstore.SearchHit, error) {
	return nil, nil
}
func (s *fakeStore) ChunkIDs(ctx context.Context, collection string) ([]string, error) {
	return nil, nil
}
func (s *fakeStore) FetchContent(ctx context.Context, collection string, chunkIDs []string) (map[string]*chunkmodel.CodeChunk, error) {
	return nil, nil
}
func (s *fakeStore) Healthy(ctx context.Context) error { return s.healthErr }
func (s *fakeStore) Close() error                      { return nil }

type fakeDenseEmbedder struct{}

func (fakeDenseEmbedder) Embed(ctx context.Context, texts []string, mode providerregistry.EmbedMode) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.1, 0.2}
	}
	return out, nil
}
func (fakeDenseEmbedder) Dimensions() int { return 2 }
func (fakeDenseEmbedder) Close() error    { return nil }

type fakeSparseEmbedder struct{}

func (fakeSparseEmbedder) EmbedSparse(ctx context.Context, texts []string) ([]providerregistry.SparseVector, error) {
	out := make([]providerregistry.SparseVector, len(texts))
	return out, nil
}
func (fakeSparseEmbedder) Close() error { return nil }

func newTestState(t *testing.T) *State {
	t.Helper()
	logger := zap.NewNop()

	manager := vectorstore.NewManager(&fakeStore{}, &fakeStore{}, vectorstore.DefaultManagerConfig("code"), fakeDenseEmbedder{}, fakeSparseEmbedder{}, logger)
	require.NoError(t, manager.OpenCollection(t.Context(), chunkmodel.CollectionMetadata{}, chunkmodel.CollectionMetadata{}))

	rootDir := t.TempDir()
	discovery, err := indexer.NewDiscovery(rootDir, []string{"**/*"}, nil)
	require.NoError(t, err)
	processor := indexer.NewProcessor(chunkapi.DefaultOptions(), governor.Defaults(), fakeDenseEmbedder{}, fakeSparseEmbedder{}, manager, logger)
	idxCfg := indexer.DefaultConfig(rootDir)
	idx := indexer.New(idxCfg, discovery, processor, logger)

	orch := orchestrator.New(manager, fakeDenseEmbedder{}, fakeSparseEmbedder{}, nil, orchestrator.DefaultConfig(), logger)

	return &State{
		cfg:     config.Default(),
		logger:  logger,
		manager: manager,
		idx:     idx,
		orch:    orch,
	}
}

func TestState_ManagerState_ReportsPrimaryOnlyInitially(t *testing.T) {
	t.Parallel()
	s := newTestState(t)
	assert.Equal(t, "primary_only", s.ManagerState())
}

func TestState_FailoverStatus_ReportsEnabledNotDegraded(t *testing.T) {
	t.Parallel()
	s := newTestState(t)
	info := s.FailoverStatus()
	assert.True(t, info.Enabled)
	assert.Equal(t, "primary", info.Active)
	assert.False(t, info.Degraded)
}

func TestState_Healthy_NilWhenPrimaryOnlyAndNotDegraded(t *testing.T) {
	t.Parallel()
	s := newTestState(t)
	assert.NoError(t, s.Healthy(t.Context()))
}

func TestState_LastIndexStats_StartsZeroAndUpdatesAfterRecordStats(t *testing.T) {
	t.Parallel()
	s := newTestState(t)
	assert.Equal(t, indexer.Stats{}, s.LastIndexStats())

	s.recordStats(indexer.Stats{Indexed: 4, TotalChunks: 12})
	assert.Equal(t, 4, s.LastIndexStats().Indexed)
	assert.Equal(t, 12, s.LastIndexStats().TotalChunks)
}

func TestState_TriggerReindex_EmptyRootProducesZeroStatsAndRecordsThem(t *testing.T) {
	t.Parallel()
	s := newTestState(t)
	stats, err := s.TriggerReindex(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalFiles)
	assert.Equal(t, stats, s.LastIndexStats())
}

func TestState_Settings_ReturnsTheConfigPassedAtConstruction(t *testing.T) {
	t.Parallel()
	cfg := config.Default()
	s := &State{cfg: cfg}
	assert.Same(t, cfg, s.Settings())
}

func TestSplitHostPort_ParsesHostAndExplicitPort(t *testing.T) {
	t.Parallel()
	host, port, err := splitHostPort("http://qdrant.internal:6335")
	require.NoError(t, err)
	assert.Equal(t, "qdrant.internal", host)
	assert.Equal(t, 6335, port)
}

func TestSplitHostPort_DefaultsPortWhenAbsent(t *testing.T) {
	t.Parallel()
	host, port, err := splitHostPort("http://qdrant.internal")
	require.NoError(t, err)
	assert.Equal(t, "qdrant.internal", host)
	assert.Equal(t, 6334, port)
}

func TestSplitHostPort_RejectsUnparseableEndpoint(t *testing.T) {
	t.Parallel()
	_, _, err := splitHostPort("://bad")
	assert.Error(t, err)
}

func TestChunkOptionsFrom_CarriesThresholdAndOverlapFromConfig(t *testing.T) {
	t.Parallel()
	cfg := config.Default()
	cfg.Chunker.SemanticImportanceThreshold = 0.55
	cfg.Chunker.SimpleOverlap = 99

	opts := chunkOptionsFrom(cfg)
	assert.Equal(t, 0.55, opts.ImportanceThreshold)
	assert.Equal(t, 99, opts.SimpleOverlap)
}

func TestChunkOptionsFrom_ForcesDelimiterWhenLanguageListNonEmpty(t *testing.T) {
	t.Parallel()
	cfg := config.Default()
	cfg.Chunker.ForceDelimiterForLanguages = config.Of([]string{"php"})

	opts := chunkOptionsFrom(cfg)
	assert.True(t, opts.ForceDelimiter)
}

func TestGovernorLimitsFrom_CarriesFileSizeAndChunkLimits(t *testing.T) {
	t.Parallel()
	cfg := config.Default()
	cfg.ChunkerPerformance.MaxFileSizeMB = 5
	cfg.ChunkerPerformance.MaxChunksPerFile = 123

	limits := governorLimitsFrom(cfg)
	assert.Equal(t, int64(5*1024*1024), limits.MaxFileBytes)
	assert.Equal(t, 123, limits.MaxChunks)
}

func TestIndexerConfigFrom_CarriesIncludeExcludeAndCollection(t *testing.T) {
	t.Parallel()
	cfg := config.Default()
	cfg.Indexer.IncludePatterns = []string{"**/*.go"}
	cfg.Indexer.ExcludePatterns = []string{"vendor/**"}

	idxCfg := indexerConfigFrom(cfg)
	assert.Equal(t, []string{"**/*.go"}, idxCfg.IncludePatterns)
	assert.Equal(t, []string{"vendor/**"}, idxCfg.ExcludePatterns)
	assert.Equal(t, "code", idxCfg.Collection)
}

func TestBackupDBPath_EndsInDotCodeweaverBackupDB(t *testing.T) {
	t.Parallel()
	path := backupDBPath()
	assert.Contains(t, path, ".codeweaver")
	assert.Contains(t, path, "backup.db")
}
