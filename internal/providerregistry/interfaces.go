package providerregistry

import "context"

// EmbedMode mirrors the teacher's embed.EmbedMode: most embedding models
// produce different vectors for queries than for passages.
type EmbedMode string

const (
	EmbedModeQuery   EmbedMode = "query"
	EmbedModePassage EmbedMode = "passage"
)

// DenseEmbedder is the instance type for DENSE_EMBEDDING providers,
// generalized from the teacher's internal/embed.Provider interface.
type DenseEmbedder interface {
	Embed(ctx context.Context, texts []string, mode EmbedMode) ([][]float32, error)
	Dimensions() int
	Close() error
}

// SparseVector is a sparse embedding: parallel index/value pairs over a
// model-defined vocabulary (e.g. SPLADE-style term weights).
type SparseVector struct {
	Indices []uint32
	Values  []float32
}

// SparseEmbedder is the instance type for SPARSE_EMBEDDING providers.
type SparseEmbedder interface {
	EmbedSparse(ctx context.Context, texts []string) ([]SparseVector, error)
	Close() error
}

// RerankResult pairs a candidate's original index with its reranked score.
type RerankResult struct {
	Index int
	Score float64
}

// Reranker is the instance type for RERANKING providers.
type Reranker interface {
	Rerank(ctx context.Context, query string, documents []string) ([]RerankResult, error)
	Close() error
}
