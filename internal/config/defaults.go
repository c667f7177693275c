package config

// Default returns the spec-documented defaults for every option group.
// Mirrors the teacher's Default() shape (internal/config/config.go) field
// for field, generalized from cortex's embedding/paths/chunking groups to
// spec §6's full table.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           "127.0.0.1",
			Port:           8120,
			ManagementHost: "127.0.0.1",
			ManagementPort: 8121,
			Transport:      "stdio",
		},
		Indexer: IndexerConfig{
			AutoIndexOnStartup:  true,
			FileWatchingEnabled: true,
			IncludePatterns:     []string{"**/*"},
			ExcludePatterns:     []string{".git/**", "node_modules/**", "vendor/**", "dist/**", "build/**"},
			PrimingBudgetSec:    300,
		},
		Chunker: ChunkerConfig{
			SemanticImportanceThreshold: 0.3,
			PreferSemantic:              true,
			ForceDelimiterForLanguages:  AbsentSetting[[]string](),
			EnableHybridChunking:        true,
			SimpleOverlap:               64,
		},
		ChunkerPerformance: ChunkerPerformanceConfig{
			MaxFileSizeMB:       10,
			ChunkTimeoutSeconds: 30,
			ParseTimeoutSeconds: 10,
			MaxChunksPerFile:    5000,
			MaxMemoryMBPerOp:    100,
			MaxASTDepth:         200,
		},
		ChunkerConcurrency: ChunkerConcurrencyConfig{
			MaxParallelFiles: 8,
			Executor:         "process",
		},
		Provider: ProviderConfig{
			Embedding:   ProviderSettings{Provider: "local", Model: "BAAI/bge-small-en-v1.5", Endpoint: "http://localhost:8122/embed", Enabled: true},
			Sparse:      ProviderSettings{Provider: "none", Enabled: false},
			Reranker:    ProviderSettings{Provider: "none", Enabled: false},
			VectorStore: ProviderSettings{Provider: "qdrant", Endpoint: "http://localhost:6334", Enabled: true},
		},
		Failover: FailoverConfig{
			Enabled:                  true,
			BackupProfile:            AbsentSetting[string](),
			SyncBackBatchLogInterval: 100,
		},
	}
}
