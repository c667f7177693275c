package config

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidProvider indicates an unsupported provider name for a
	// given provider kind.
	ErrInvalidProvider = errors.New("invalid provider")
	// ErrInvalidPort indicates a port outside the valid TCP range.
	ErrInvalidPort = errors.New("invalid port")
	// ErrInvalidThreshold indicates an importance threshold outside [0, 1].
	ErrInvalidThreshold = errors.New("invalid importance threshold")
	// ErrInvalidLimit indicates a resource-governance limit that isn't
	// positive.
	ErrInvalidLimit = errors.New("invalid resource limit")
	// ErrInvalidOverlap indicates a negative chunk overlap.
	ErrInvalidOverlap = errors.New("invalid overlap")
	// ErrInvalidExecutor indicates an executor value other than
	// "process"/"thread".
	ErrInvalidExecutor = errors.New("invalid executor")
	// ErrInvalidTransport indicates a transport other than "stdio"/"http".
	ErrInvalidTransport = errors.New("invalid transport")
	// ErrSamePort indicates the agent and management surfaces were bound
	// to the same host:port.
	ErrSamePort = errors.New("server and management ports must differ when hosts match")
)

// Validate checks the configuration for internal consistency, mirroring
// the teacher's internal/config/validate.go per-group validator shape.
func Validate(cfg *Config) error {
	var errs []error
	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateChunker(&cfg.Chunker)...)
	errs = append(errs, validatePerformance(&cfg.ChunkerPerformance)...)
	errs = append(errs, validateConcurrency(&cfg.ChunkerConcurrency)...)
	errs = append(errs, validateProvider("embedding", &cfg.Provider.Embedding)...)
	errs = append(errs, validateProvider("vector_store", &cfg.Provider.VectorStore)...)

	if len(errs) == 0 {
		return nil
	}
	return joinErrors(errs)
}

func validateServer(cfg *ServerConfig) []error {
	var errs []error
	if cfg.Port <= 0 || cfg.Port > 65535 {
		errs = append(errs, fmt.Errorf("%w: server.port %d", ErrInvalidPort, cfg.Port))
	}
	if cfg.ManagementPort <= 0 || cfg.ManagementPort > 65535 {
		errs = append(errs, fmt.Errorf("%w: server.management_port %d", ErrInvalidPort, cfg.ManagementPort))
	}
	if cfg.Host == cfg.ManagementHost && cfg.Port == cfg.ManagementPort {
		errs = append(errs, ErrSamePort)
	}
	switch cfg.Transport {
	case "stdio", "http":
	default:
		errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidTransport, cfg.Transport))
	}
	return errs
}

func validateChunker(cfg *ChunkerConfig) []error {
	var errs []error
	if cfg.SemanticImportanceThreshold < 0 || cfg.SemanticImportanceThreshold > 1 {
		errs = append(errs, fmt.Errorf("%w: %.2f", ErrInvalidThreshold, cfg.SemanticImportanceThreshold))
	}
	if cfg.SimpleOverlap < 0 {
		errs = append(errs, fmt.Errorf("%w: simple_overlap %d", ErrInvalidOverlap, cfg.SimpleOverlap))
	}
	return errs
}

func validatePerformance(cfg *ChunkerPerformanceConfig) []error {
	var errs []error
	if cfg.MaxFileSizeMB <= 0 {
		errs = append(errs, fmt.Errorf("%w: max_file_size_mb %d", ErrInvalidLimit, cfg.MaxFileSizeMB))
	}
	if cfg.ChunkTimeoutSeconds <= 0 {
		errs = append(errs, fmt.Errorf("%w: chunk_timeout_seconds %d", ErrInvalidLimit, cfg.ChunkTimeoutSeconds))
	}
	if cfg.MaxChunksPerFile <= 0 {
		errs = append(errs, fmt.Errorf("%w: max_chunks_per_file %d", ErrInvalidLimit, cfg.MaxChunksPerFile))
	}
	if cfg.MaxASTDepth <= 0 {
		errs = append(errs, fmt.Errorf("%w: max_ast_depth %d", ErrInvalidLimit, cfg.MaxASTDepth))
	}
	return errs
}

func validateConcurrency(cfg *ChunkerConcurrencyConfig) []error {
	var errs []error
	if cfg.MaxParallelFiles <= 0 {
		errs = append(errs, fmt.Errorf("%w: max_parallel_files %d", ErrInvalidLimit, cfg.MaxParallelFiles))
	}
	switch cfg.Executor {
	case "process", "thread":
	default:
		errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidExecutor, cfg.Executor))
	}
	return errs
}

func validateProvider(kind string, cfg *ProviderSettings) []error {
	var errs []error
	if cfg.Enabled && strings.TrimSpace(cfg.Provider) == "" {
		errs = append(errs, fmt.Errorf("%w: provider.%s has no provider name but is enabled", ErrInvalidProvider, kind))
	}
	return errs
}

func joinErrors(errs []error) error {
	return errors.Join(errs...)
}
