package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Loader loads configuration from file and environment variables, adapted
// from the teacher's internal/config.Loader interface.
type Loader interface {
	// Load loads configuration with priority defaults -> config file ->
	// environment variables (env wins).
	Load() (*Config, error)
}

type loader struct {
	rootDir string
}

// NewLoader creates a configuration loader rooted at rootDir, which looks
// for .codeweaver/config.yml beneath it.
func NewLoader(rootDir string) Loader {
	return &loader{rootDir: rootDir}
}

// Load implements Loader.
func (l *loader) Load() (*Config, error) {
	v := viper.New()

	configDir := filepath.Join(l.rootDir, ".codeweaver")
	configPath := filepath.Join(configDir, "config.yml")
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)

	v.SetEnvPrefix("CODEWEAVER")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	var fileFound bool
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	} else {
		fileFound = true
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	var raw map[string]any
	if fileFound {
		content, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("read config file for null detection: %w", err)
		}
		if err := yaml.Unmarshal(content, &raw); err != nil {
			return nil, fmt.Errorf("parse config file for null detection: %w", err)
		}
	}

	resolveSettings(v, raw, cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// resolveSettings fills in the Setting[T] fields that viper's mapstructure
// pass silently leaves at their zero (Absent) value, since Setting's
// fields are unexported. raw is the config file's own parse tree (nil if
// no file was found), used only to detect an explicit yaml null -- a
// distinction viper itself collapses.
func resolveSettings(v *viper.Viper, raw map[string]any, cfg *Config) {
	cfg.Chunker.ForceDelimiterForLanguages = resolveStringSlice(v, raw, "chunker.force_delimiter_for_languages")
	cfg.Failover.BackupProfile = resolveString(v, raw, "failover.backup_profile")
}

func resolveStringSlice(v *viper.Viper, raw map[string]any, key string) Setting[[]string] {
	if rawKeyIsNull(raw, key) {
		return Cleared[[]string]()
	}
	if !v.IsSet(key) {
		return AbsentSetting[[]string]()
	}
	return Of(v.GetStringSlice(key))
}

func resolveString(v *viper.Viper, raw map[string]any, key string) Setting[string] {
	if rawKeyIsNull(raw, key) {
		return Cleared[string]()
	}
	if !v.IsSet(key) {
		return AbsentSetting[string]()
	}
	return Of(v.GetString(key))
}

// rawKeyIsNull walks a dotted key ("chunker.force_delimiter_for_languages")
// through a nested map parsed directly from the config file and reports
// whether the leaf is an explicit yaml null.
func rawKeyIsNull(raw map[string]any, dottedKey string) bool {
	if raw == nil {
		return false
	}
	parts := strings.Split(dottedKey, ".")
	var cur any = raw
	for _, part := range parts {
		m, ok := cur.(map[string]any)
		if !ok {
			return false
		}
		v, exists := m[part]
		if !exists {
			return false
		}
		cur = v
	}
	return cur == nil
}

// setDefaults configures viper with the spec's documented defaults.
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.management_host", d.Server.ManagementHost)
	v.SetDefault("server.management_port", d.Server.ManagementPort)
	v.SetDefault("server.transport", d.Server.Transport)

	v.SetDefault("indexer.auto_index_on_startup", d.Indexer.AutoIndexOnStartup)
	v.SetDefault("indexer.file_watching_enabled", d.Indexer.FileWatchingEnabled)
	v.SetDefault("indexer.include_patterns", d.Indexer.IncludePatterns)
	v.SetDefault("indexer.exclude_patterns", d.Indexer.ExcludePatterns)
	v.SetDefault("indexer.priming_budget_seconds", d.Indexer.PrimingBudgetSec)

	v.SetDefault("chunker.semantic_importance_threshold", d.Chunker.SemanticImportanceThreshold)
	v.SetDefault("chunker.prefer_semantic", d.Chunker.PreferSemantic)
	v.SetDefault("chunker.enable_hybrid_chunking", d.Chunker.EnableHybridChunking)
	v.SetDefault("chunker.simple_overlap", d.Chunker.SimpleOverlap)

	v.SetDefault("chunker_performance.max_file_size_mb", d.ChunkerPerformance.MaxFileSizeMB)
	v.SetDefault("chunker_performance.chunk_timeout_seconds", d.ChunkerPerformance.ChunkTimeoutSeconds)
	v.SetDefault("chunker_performance.parse_timeout_seconds", d.ChunkerPerformance.ParseTimeoutSeconds)
	v.SetDefault("chunker_performance.max_chunks_per_file", d.ChunkerPerformance.MaxChunksPerFile)
	v.SetDefault("chunker_performance.max_memory_mb_per_operation", d.ChunkerPerformance.MaxMemoryMBPerOp)
	v.SetDefault("chunker_performance.max_ast_depth", d.ChunkerPerformance.MaxASTDepth)

	v.SetDefault("chunker_concurrency.max_parallel_files", d.ChunkerConcurrency.MaxParallelFiles)
	v.SetDefault("chunker_concurrency.executor", d.ChunkerConcurrency.Executor)

	v.SetDefault("provider.embedding.provider", d.Provider.Embedding.Provider)
	v.SetDefault("provider.embedding.model", d.Provider.Embedding.Model)
	v.SetDefault("provider.embedding.endpoint", d.Provider.Embedding.Endpoint)
	v.SetDefault("provider.embedding.enabled", d.Provider.Embedding.Enabled)

	v.SetDefault("provider.sparse.provider", d.Provider.Sparse.Provider)
	v.SetDefault("provider.sparse.enabled", d.Provider.Sparse.Enabled)

	v.SetDefault("provider.reranker.provider", d.Provider.Reranker.Provider)
	v.SetDefault("provider.reranker.enabled", d.Provider.Reranker.Enabled)

	v.SetDefault("provider.vector_store.provider", d.Provider.VectorStore.Provider)
	v.SetDefault("provider.vector_store.endpoint", d.Provider.VectorStore.Endpoint)
	v.SetDefault("provider.vector_store.enabled", d.Provider.VectorStore.Enabled)

	v.SetDefault("failover.enabled", d.Failover.Enabled)
	v.SetDefault("failover.sync_back_batch_log_interval", d.Failover.SyncBackBatchLogInterval)
}

// LoadConfig loads configuration rooted at the current working directory.
func LoadConfig() (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("get working directory: %w", err)
	}
	return NewLoader(wd).Load()
}

// LoadConfigFromDir loads configuration rooted at a specific directory.
func LoadConfigFromDir(rootDir string) (*Config, error) {
	return NewLoader(rootDir).Load()
}
