// Package root is the composition root: it wires config, logging, the
// provider registry, the failover-managed vector store, the indexer, the
// find_code orchestrator, and both external surfaces (the management HTTP
// server and the find_code MCP tool) into one runnable process, and
// exposes the operator-facing functions (TriggerReindex, FailoverStatus)
// spec §6 describes as Go functions a future CLI would call.
package root

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/knitli/codeweaver/internal/chunker/chunkapi"
	"github.com/knitli/codeweaver/internal/chunkmodel"
	"github.com/knitli/codeweaver/internal/config"
	"github.com/knitli/codeweaver/internal/governor"
	"github.com/knitli/codeweaver/internal/indexer"
	"github.com/knitli/codeweaver/internal/mcpsurface"
	"github.com/knitli/codeweaver/internal/mgmt"
	"github.com/knitli/codeweaver/internal/orchestrator"
	"github.com/knitli/codeweaver/internal/providerregistry"
	"github.com/knitli/codeweaver/internal/providerregistry/httpembed"
	"github.com/knitli/codeweaver/internal/providerregistry/sparsebleve"
	"github.com/knitli/codeweaver/internal/vectorstore"
	"github.com/knitli/codeweaver/internal/vectorstore/backup"
	"github.com/knitli/codeweaver/internal/vectorstore/qdrant"
)

// State is the assembled, running (once Run is called) system. Its
// exported methods are the operator-facing surface spec §6 names:
// TriggerReindex and FailoverStatus.
type State struct {
	cfg    *config.Config
	logger *zap.Logger

	registry *providerregistry.Registry
	manager  *vectorstore.Manager
	idx      *indexer.Indexer
	orch     *orchestrator.Orchestrator

	mgmtServer *mgmt.Server
	mcpServer  *server.MCPServer

	mu        sync.RWMutex
	lastStats indexer.Stats
}

// New wires every component from cfg. Constructors that dial a network
// service (qdrant) do not connect eagerly; actual dialing happens lazily
// on first Registry.Get, per spec §4.8.
func New(cfg *config.Config, logger *zap.Logger) (*State, error) {
	registry := providerregistry.New()
	registerProviders(registry, cfg)

	ctx := context.Background()

	embedder, err := resolveDenseEmbedder(ctx, registry, cfg)
	if err != nil {
		return nil, fmt.Errorf("root: resolve dense embedder: %w", err)
	}

	var sparse providerregistry.SparseEmbedder
	if cfg.Provider.Sparse.Enabled {
		s, err := resolveSparseEmbedder(ctx, registry, cfg)
		if err != nil {
			return nil, fmt.Errorf("root: resolve sparse embedder: %w", err)
		}
		sparse = s
	}

	primary, err := resolvePrimaryStore(ctx, registry, cfg)
	if err != nil {
		return nil, fmt.Errorf("root: resolve primary store: %w", err)
	}
	backupStore, err := resolveBackupStore(ctx, registry)
	if err != nil {
		return nil, fmt.Errorf("root: resolve backup store: %w", err)
	}

	managerCfg := vectorstore.DefaultManagerConfig(indexerCollection(cfg))
	managerCfg.FailoverEnabled = cfg.Failover.Enabled
	manager := vectorstore.NewManager(primary, backupStore, managerCfg, embedder, sparse, logger)

	meta := chunkmodel.CollectionMetadata{
		Provider:  cfg.Provider.Embedding.Provider,
		Model:     cfg.Provider.Embedding.Model,
		Dimension: embedder.Dimensions(),
		CreatedAt: time.Time{},
	}
	if err := manager.OpenCollection(ctx, meta, meta); err != nil {
		return nil, fmt.Errorf("root: open collection: %w", err)
	}

	indexerCfg := indexerConfigFrom(cfg)
	discovery, err := indexer.NewDiscovery(indexerCfg.RootDir, indexerCfg.IncludePatterns, indexerCfg.ExcludePatterns)
	if err != nil {
		return nil, fmt.Errorf("root: build discovery: %w", err)
	}
	processor := indexer.NewProcessor(indexerCfg.ChunkOptions, governorLimitsFrom(cfg), embedder, sparse, manager, logger)
	idx := indexer.New(indexerCfg, discovery, processor, logger)

	orchCfg := orchestrator.DefaultConfig()
	orch := orchestrator.New(manager, embedder, sparse, nil, orchCfg, logger)

	s := &State{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		manager:  manager,
		idx:      idx,
		orch:     orch,
	}

	s.mgmtServer = mgmt.New(fmt.Sprintf("%s:%d", cfg.Server.ManagementHost, cfg.Server.ManagementPort), s, logger)
	s.mcpServer = mcpsurface.New("codeweaver", Version, s.orch)

	return s, nil
}

// Version is the build-time version string passed to the MCP server's
// initialize handshake, overridable via -ldflags like mgmt.Version.
var Version = "dev"

// Run starts every long-running component (the failover health prober,
// the file watcher, the management HTTP server, and the MCP surface over
// stdio) and blocks until ctx is cancelled, then shuts each down.
func (s *State) Run(ctx context.Context) error {
	if s.cfg.Indexer.AutoIndexOnStartup {
		stats, err := s.idx.Prime(ctx)
		if err != nil {
			s.logger.Warn("root: priming pass failed", zap.Error(err))
		}
		s.recordStats(stats)
	}

	go s.manager.Run(ctx)
	defer s.manager.Stop()

	errCh := make(chan error, 3)

	go func() {
		errCh <- s.idx.Watch(ctx)
	}()
	go func() {
		errCh <- s.mgmtServer.Run(ctx)
	}()
	go func() {
		errCh <- server.ServeStdio(s.mcpServer)
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// TriggerReindex runs an out-of-band full reindex pass over the configured
// root, the operator-facing equivalent of restarting the process (spec
// §6's "reindex command" function, since no CLI is built).
func (s *State) TriggerReindex(ctx context.Context) (indexer.Stats, error) {
	stats, err := s.idx.Prime(ctx)
	if err != nil {
		return stats, err
	}
	s.recordStats(stats)
	return stats, nil
}

// FailoverStatus reports the failover manager's current summary (spec
// §6's "failover-inspection command" function).
func (s *State) FailoverStatus() vectorstore.FailoverInfo {
	return s.manager.FailoverInfo()
}

// The following methods satisfy mgmt.StatusProvider.

func (s *State) Healthy(ctx context.Context) error {
	info := s.manager.FailoverInfo()
	if info.Enabled && info.Active == "backup" && info.Degraded {
		return fmt.Errorf("failover active and degraded: pending resync of %d chunks", len(s.manager.PendingResync()))
	}
	return nil
}

func (s *State) LastIndexStats() indexer.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastStats
}

func (s *State) ManagerState() string {
	return s.manager.State().String()
}

func (s *State) Settings() *config.Config {
	return s.cfg
}

func (s *State) recordStats(stats indexer.Stats) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastStats = stats
}

func indexerCollection(cfg *config.Config) string {
	return "code"
}

func indexerConfigFrom(cfg *config.Config) indexer.Config {
	rootDir, _ := os.Getwd()
	c := indexer.DefaultConfig(rootDir)
	c.IncludePatterns = cfg.Indexer.IncludePatterns
	c.ExcludePatterns = cfg.Indexer.ExcludePatterns
	c.FileWatchingEnabled = cfg.Indexer.FileWatchingEnabled
	c.AutoIndexOnStartup = cfg.Indexer.AutoIndexOnStartup
	c.PrimingBudget = cfg.Indexer.PrimingBudget()
	c.MaxParallelFiles = cfg.ChunkerConcurrency.MaxParallelFiles
	c.Collection = indexerCollection(cfg)
	c.ChunkOptions = chunkOptionsFrom(cfg)
	return c
}

func chunkOptionsFrom(cfg *config.Config) chunkapi.Options {
	opts := chunkapi.DefaultOptions()
	opts.ImportanceThreshold = cfg.Chunker.SemanticImportanceThreshold
	opts.SimpleOverlap = cfg.Chunker.SimpleOverlap
	if langs, ok := cfg.Chunker.ForceDelimiterForLanguages.Get(); ok {
		opts.ForceDelimiter = len(langs) > 0
	}
	hashStore, err := chunkmodel.NewContentHashStore(cfg.ChunkerPerformance.MaxMemoryMBPerOp)
	if err == nil {
		opts.ContentHashStore = hashStore
	}
	batchStore, err := chunkmodel.NewBatchStore(cfg.ChunkerPerformance.MaxMemoryMBPerOp)
	if err == nil {
		opts.BatchStore = batchStore
	}
	return opts
}

func governorLimitsFrom(cfg *config.Config) governor.Limits {
	return governor.Limits{
		MaxWallTime:  cfg.ChunkerPerformance.ChunkTimeout(),
		MaxChunks:    cfg.ChunkerPerformance.MaxChunksPerFile,
		MaxASTDepth:  cfg.ChunkerPerformance.MaxASTDepth,
		MaxFileBytes: int64(cfg.ChunkerPerformance.MaxFileSizeMB) * 1024 * 1024,
		MaxMemoryMB:  cfg.ChunkerPerformance.MaxMemoryMBPerOp,
	}
}

func registerProviders(registry *providerregistry.Registry, cfg *config.Config) {
	registry.RegisterModel(providerregistry.DenseEmbedding, "http", cfg.Provider.Embedding.Model,
		providerregistry.ModelCapabilities{Dimension: 384, QueryDocAsymmetric: true},
		func(ctx context.Context) (any, error) {
			return httpembed.New(httpembed.DefaultConfig(cfg.Provider.Embedding.Endpoint)), nil
		})

	registry.RegisterModel(providerregistry.SparseEmbedding, "bleve", "",
		providerregistry.ModelCapabilities{Sparse: true},
		func(ctx context.Context) (any, error) {
			return sparsebleve.New(), nil
		})

	registry.RegisterStore("qdrant", providerregistry.StoreCapabilities{StorageClass: "persistent", VectorKinds: []string{"dense", "sparse"}},
		func(ctx context.Context) (any, error) {
			host, port, err := splitHostPort(cfg.Provider.VectorStore.Endpoint)
			if err != nil {
				return nil, err
			}
			return qdrant.Dial(qdrant.Config{Host: host, Port: port})
		})

	registry.RegisterStore("backup", providerregistry.StoreCapabilities{StorageClass: "persistent", VectorKinds: []string{"dense"}},
		func(ctx context.Context) (any, error) {
			return backup.Open(backupDBPath())
		})
}

func resolveDenseEmbedder(ctx context.Context, registry *providerregistry.Registry, cfg *config.Config) (providerregistry.DenseEmbedder, error) {
	inst, err := registry.Get(ctx, providerregistry.DenseEmbedding, "http", cfg.Provider.Embedding.Model)
	if err != nil {
		return nil, err
	}
	embedder, ok := inst.(providerregistry.DenseEmbedder)
	if !ok {
		return nil, fmt.Errorf("root: registered dense provider does not implement DenseEmbedder")
	}
	return embedder, nil
}

func resolveSparseEmbedder(ctx context.Context, registry *providerregistry.Registry, cfg *config.Config) (providerregistry.SparseEmbedder, error) {
	inst, err := registry.Get(ctx, providerregistry.SparseEmbedding, "bleve", "")
	if err != nil {
		return nil, err
	}
	sparse, ok := inst.(providerregistry.SparseEmbedder)
	if !ok {
		return nil, fmt.Errorf("root: registered sparse provider does not implement SparseEmbedder")
	}
	return sparse, nil
}

func resolvePrimaryStore(ctx context.Context, registry *providerregistry.Registry, cfg *config.Config) (vectorstore.Store, error) {
	inst, err := registry.Get(ctx, providerregistry.VectorStore, "qdrant", "")
	if err != nil {
		return nil, err
	}
	store, ok := inst.(vectorstore.Store)
	if !ok {
		return nil, fmt.Errorf("root: registered qdrant provider does not implement vectorstore.Store")
	}
	return store, nil
}

func resolveBackupStore(ctx context.Context, registry *providerregistry.Registry) (vectorstore.Store, error) {
	inst, err := registry.Get(ctx, providerregistry.VectorStore, "backup", "")
	if err != nil {
		return nil, err
	}
	store, ok := inst.(vectorstore.Store)
	if !ok {
		return nil, fmt.Errorf("root: registered backup provider does not implement vectorstore.Store")
	}
	return store, nil
}

func backupDBPath() string {
	rootDir, _ := os.Getwd()
	return filepath.Join(rootDir, ".codeweaver", "backup.db")
}

func splitHostPort(endpoint string) (string, int, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", 0, fmt.Errorf("root: parse vector store endpoint %q: %w", endpoint, err)
	}
	host := u.Hostname()
	portStr := u.Port()
	if portStr == "" {
		portStr = "6334"
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("root: invalid vector store port %q: %w", portStr, err)
	}
	return host, port, nil
}

