// Package config loads and validates the option groups from spec §6:
// server, indexer, chunker, chunker.performance, chunker.concurrency,
// provider.{embedding,sparse,reranker,vector_store}, and failover. It
// follows the teacher's viper + yaml idiom (internal/config/loader.go):
// defaults -> config file -> environment variables, env wins.
package config

import "time"

// SettingState is the three-valued configuration intent from spec §9's
// redesign note ("sentinel UNSET vs None distinctions... set / explicitly
// unset / absent"): a field can be never configured, configured with a
// value, or deliberately cleared (e.g. a yaml `null`), which plain zero
// values can't tell apart.
type SettingState int

const (
	// StateAbsent is the zero value: the key never appeared in defaults,
	// file, or environment.
	StateAbsent SettingState = iota
	// StateExplicit means a concrete value was configured.
	StateExplicit
	// StateCleared means the user configured the key to an explicit null,
	// overriding any default with "deliberately nothing" rather than
	// leaving it to inherit.
	StateCleared
)

// Setting is a three-valued configuration field: Absent | Explicit(T) |
// Cleared. Used for fields where "the user explicitly unset this" differs
// from "never configured" -- spec §6's force_delimiter_for_languages and
// failover.backup_profile both need this distinction.
type Setting[T any] struct {
	state SettingState
	value T
}

// AbsentSetting returns the zero Setting, equivalent to never having
// configured the field.
func AbsentSetting[T any]() Setting[T] {
	return Setting[T]{state: StateAbsent}
}

// Of returns a Setting carrying an explicitly configured value.
func Of[T any](v T) Setting[T] {
	return Setting[T]{state: StateExplicit, value: v}
}

// Cleared returns a Setting recording that the user explicitly nulled the
// field out rather than leaving it unconfigured.
func Cleared[T any]() Setting[T] {
	return Setting[T]{state: StateCleared}
}

// Get returns the carried value and whether the field was explicitly
// configured (Explicit or Cleared); on Absent it returns the zero value
// and false.
func (s Setting[T]) Get() (T, bool) {
	return s.value, s.state != StateAbsent
}

// ValueOr returns the carried value, or fallback when the Setting is
// Absent or Cleared -- a deliberate "nothing" still falls back to the
// caller's default rather than an empty zero value.
func (s Setting[T]) ValueOr(fallback T) T {
	if s.state == StateExplicit {
		return s.value
	}
	return fallback
}

// IsCleared reports whether the user explicitly nulled the field.
func (s Setting[T]) IsCleared() bool {
	return s.state == StateCleared
}

// State returns the Setting's current state, for callers that need to
// distinguish Absent from Cleared directly (ValueOr treats them alike).
func (s Setting[T]) State() SettingState {
	return s.state
}

// Config is the complete CodeWeaver configuration (spec §6's option-group
// table), loaded by Load (viper + yaml, env-prefixed CODEWEAVER_).
type Config struct {
	Server             ServerConfig             `yaml:"server" mapstructure:"server"`
	Indexer            IndexerConfig            `yaml:"indexer" mapstructure:"indexer"`
	Chunker            ChunkerConfig            `yaml:"chunker" mapstructure:"chunker"`
	ChunkerPerformance ChunkerPerformanceConfig `yaml:"chunker_performance" mapstructure:"chunker_performance"`
	ChunkerConcurrency ChunkerConcurrencyConfig `yaml:"chunker_concurrency" mapstructure:"chunker_concurrency"`
	Provider           ProviderConfig           `yaml:"provider" mapstructure:"provider"`
	Failover           FailoverConfig           `yaml:"failover" mapstructure:"failover"`
}

// ServerConfig binds the agent-facing MCP surface and the operator-facing
// management surface separately (spec §6: "separate from the agent-facing
// MCP surface's server.host/port").
type ServerConfig struct {
	Host             string `yaml:"host" mapstructure:"host"`
	Port             int    `yaml:"port" mapstructure:"port"`
	ManagementHost   string `yaml:"management_host" mapstructure:"management_host"`
	ManagementPort   int    `yaml:"management_port" mapstructure:"management_port"`
	Transport        string `yaml:"transport" mapstructure:"transport"` // "stdio" or "http"
}

// IndexerConfig controls indexer lifecycle and file scope (spec §4.5, §6).
type IndexerConfig struct {
	AutoIndexOnStartup  bool     `yaml:"auto_index_on_startup" mapstructure:"auto_index_on_startup"`
	FileWatchingEnabled bool     `yaml:"file_watching_enabled" mapstructure:"file_watching_enabled"`
	IncludePatterns     []string `yaml:"include_patterns" mapstructure:"include_patterns"`
	ExcludePatterns     []string `yaml:"exclude_patterns" mapstructure:"exclude_patterns"`
	PrimingBudgetSec    int      `yaml:"priming_budget_seconds" mapstructure:"priming_budget_seconds"`
}

// ChunkerConfig controls chunking policy (spec §4.2-4.4, §6).
type ChunkerConfig struct {
	SemanticImportanceThreshold float64             `yaml:"semantic_importance_threshold" mapstructure:"semantic_importance_threshold"`
	PreferSemantic              bool                `yaml:"prefer_semantic" mapstructure:"prefer_semantic"`
	ForceDelimiterForLanguages  Setting[[]string]    `yaml:"force_delimiter_for_languages" mapstructure:"force_delimiter_for_languages"`
	EnableHybridChunking        bool                `yaml:"enable_hybrid_chunking" mapstructure:"enable_hybrid_chunking"`
	SimpleOverlap               int                 `yaml:"simple_overlap" mapstructure:"simple_overlap"`
}

// ChunkerPerformanceConfig maps to spec §4.1's Resource Governor limits.
type ChunkerPerformanceConfig struct {
	MaxFileSizeMB          int `yaml:"max_file_size_mb" mapstructure:"max_file_size_mb"`
	ChunkTimeoutSeconds    int `yaml:"chunk_timeout_seconds" mapstructure:"chunk_timeout_seconds"`
	ParseTimeoutSeconds    int `yaml:"parse_timeout_seconds" mapstructure:"parse_timeout_seconds"`
	MaxChunksPerFile       int `yaml:"max_chunks_per_file" mapstructure:"max_chunks_per_file"`
	MaxMemoryMBPerOp       int `yaml:"max_memory_mb_per_operation" mapstructure:"max_memory_mb_per_operation"`
	MaxASTDepth            int `yaml:"max_ast_depth" mapstructure:"max_ast_depth"`
}

// ChunkerConcurrencyConfig shapes the indexer's per-file worker pool.
type ChunkerConcurrencyConfig struct {
	MaxParallelFiles int    `yaml:"max_parallel_files" mapstructure:"max_parallel_files"`
	Executor         string `yaml:"executor" mapstructure:"executor"` // "process" or "thread"; Go only offers goroutines, kept for config-surface parity
}

// ProviderConfig groups the four pluggable provider kinds (spec §4.8, §6).
type ProviderConfig struct {
	Embedding   ProviderSettings `yaml:"embedding" mapstructure:"embedding"`
	Sparse      ProviderSettings `yaml:"sparse" mapstructure:"sparse"`
	Reranker    ProviderSettings `yaml:"reranker" mapstructure:"reranker"`
	VectorStore ProviderSettings `yaml:"vector_store" mapstructure:"vector_store"`
}

// ProviderSettings configures one provider kind's active backend.
type ProviderSettings struct {
	Provider string `yaml:"provider" mapstructure:"provider"`
	Model    string `yaml:"model" mapstructure:"model"`
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint"`
	APIKeyRef string `yaml:"api_key_ref" mapstructure:"api_key_ref"`
	Enabled  bool   `yaml:"enabled" mapstructure:"enabled"`
}

// FailoverConfig controls spec §4.6's backup behavior.
type FailoverConfig struct {
	Enabled                   bool          `yaml:"enabled" mapstructure:"enabled"`
	BackupProfile             Setting[string] `yaml:"backup_profile" mapstructure:"backup_profile"`
	SyncBackBatchLogInterval  int           `yaml:"sync_back_batch_log_interval" mapstructure:"sync_back_batch_log_interval"`
}

// ChunkTimeout returns ChunkTimeoutSeconds as a time.Duration.
func (c ChunkerPerformanceConfig) ChunkTimeout() time.Duration {
	return time.Duration(c.ChunkTimeoutSeconds) * time.Second
}

// ParseTimeout returns ParseTimeoutSeconds as a time.Duration.
func (c ChunkerPerformanceConfig) ParseTimeout() time.Duration {
	return time.Duration(c.ParseTimeoutSeconds) * time.Second
}

// PrimingBudget returns PrimingBudgetSec as a time.Duration.
func (c IndexerConfig) PrimingBudget() time.Duration {
	return time.Duration(c.PrimingBudgetSec) * time.Second
}
