package orchestrator

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/knitli/codeweaver/internal/chunker/chunkapi"
	"github.com/knitli/codeweaver/internal/chunkmodel"
	"github.com/knitli/codeweaver/internal/providerregistry"
	"github.com/knitli/codeweaver/internal/vectorstore"
)

// Config tunes find_code's retrieval and assembly behavior.
type Config struct {
	// TopK bounds how many hits each of the dense and sparse rank lists
	// contributes before fusion (spec §4.7 step 3: "top-K dense + top-K
	// sparse").
	TopK int
	// RerankWindow bounds how many fused candidates the reranker sees (spec
	// §4.7 step 4: "re-order the top-M results").
	RerankWindow int
}

// DefaultConfig returns the spec-documented defaults.
func DefaultConfig() Config {
	return Config{TopK: 50, RerankWindow: 20}
}

// Orchestrator implements find_code (spec §4.7) over a failover-managed
// vector store and the provider registry's active embedding/sparse/reranker
// instances. It holds no mutable state of its own -- every call is a pure
// function of its inputs and the current index contents (spec §4.7
// "Idempotence").
type Orchestrator struct {
	store    *vectorstore.Manager
	embedder providerregistry.DenseEmbedder
	sparse   providerregistry.SparseEmbedder // nil when no sparse provider configured
	reranker providerregistry.Reranker        // nil when no reranker configured
	cfg      Config
	logger   *zap.Logger
}

// New constructs an Orchestrator. sparse and reranker may be nil.
func New(store *vectorstore.Manager, embedder providerregistry.DenseEmbedder, sparse providerregistry.SparseEmbedder, reranker providerregistry.Reranker, cfg Config, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		store:    store,
		embedder: embedder,
		sparse:   sparse,
		reranker: reranker,
		cfg:      cfg,
		logger:   logger,
	}
}

// FindCode answers one query. It never returns an error: every failure mode
// is surfaced as a Result with a populated Metadata.StatusCode/Error, per
// spec §7's "User-visible errors from find_code are structured values,
// never exceptions crossing the agent boundary."
func (o *Orchestrator) FindCode(ctx context.Context, req Request) Result {
	start := time.Now()
	failover := o.failoverMetadata()

	if req.Query == "" {
		return queryFailure(req.Intent, failover, "query must not be empty")
	}

	// Step 1: query-mode dense embedding.
	dense, err := o.embedder.Embed(ctx, []string{req.Query}, providerregistry.EmbedModeQuery)
	if err != nil {
		o.logger.Warn("find_code: query embedding failed", zap.Error(err))
		return queryFailure(req.Intent, failover, "embedding provider failure: "+err.Error())
	}
	if len(dense) != 1 {
		return queryFailure(req.Intent, failover, "embedding provider returned an unexpected vector count")
	}

	// Step 2: optional sparse representation.
	var sparseVec map[uint32]float32
	if o.sparse != nil {
		sv, sparseErr := o.sparse.EmbedSparse(ctx, []string{req.Query})
		if sparseErr != nil {
			// Sparse is an enhancement to retrieval recall, not load-bearing:
			// log and continue dense-only rather than failing the query.
			o.logger.Warn("find_code: sparse query embedding failed, continuing dense-only", zap.Error(sparseErr))
		} else if len(sv) == 1 {
			sparseVec = sparseToMap(sv[0])
		}
	}

	// Step 3: hybrid retrieval + fusion + language filter.
	denseHits, err := o.store.Search(ctx, dense[0], vectorstore.SearchOptions{Limit: o.cfg.TopK})
	if err != nil {
		o.logger.Warn("find_code: vector store search failed", zap.Error(err))
		return serviceUnavailable(req.Intent, failover, "vector store unreachable: "+err.Error())
	}

	var sparseHits []vectorstore.SearchHit
	if sparseVec != nil {
		sparseHits, err = o.store.SearchSparse(ctx, sparseVec, o.cfg.TopK)
		if err != nil {
			o.logger.Warn("find_code: sparse search failed, continuing dense-only", zap.Error(err))
			sparseHits = nil
		}
	}

	fused := fuseRRF(toRankedHits(denseHits), toRankedHits(sparseHits))

	ids := make([]string, len(fused))
	for i, f := range fused {
		ids[i] = f.ChunkID
	}
	contents, err := o.store.FetchContent(ctx, ids)
	if err != nil {
		o.logger.Warn("find_code: fetching candidate content failed", zap.Error(err))
		return serviceUnavailable(req.Intent, failover, "vector store unreachable: "+err.Error())
	}

	languages := req.languageSet()
	var filters []string
	if len(languages) > 0 {
		filters = append(filters, "focus_languages")
	}

	candidates := make([]*chunkmodel.CodeChunk, 0, len(fused))
	for _, f := range fused {
		chunk, ok := contents[f.ChunkID]
		if !ok {
			continue
		}
		if languages != nil {
			if _, allowed := languages[chunk.Language]; !allowed {
				continue
			}
		}
		candidates = append(candidates, chunk)
	}
	total := len(candidates)

	// Step 4: optional reranking over the top-M fused candidates.
	if o.reranker != nil && len(candidates) > 0 {
		window := candidates
		rest := []*chunkmodel.CodeChunk(nil)
		if len(candidates) > o.cfg.RerankWindow {
			window = candidates[:o.cfg.RerankWindow]
			rest = candidates[o.cfg.RerankWindow:]
		}
		documents := make([]string, len(window))
		for i, c := range window {
			documents[i] = c.Content
		}
		reranked, rerankErr := o.reranker.Rerank(ctx, req.Query, documents)
		if rerankErr != nil {
			o.logger.Warn("find_code: reranking failed, keeping fused order", zap.Error(rerankErr))
		} else {
			ordered := make([]*chunkmodel.CodeChunk, 0, len(window))
			for _, r := range reranked {
				if r.Index >= 0 && r.Index < len(window) {
					ordered = append(ordered, window[r.Index])
				}
			}
			candidates = append(ordered, rest...)
		}
	}

	// Step 5: token-budgeted assembly.
	tokenLimit := req.tokenLimit()
	importanceTask, hasIntent := req.Intent.importanceTask()
	results := make([]ResultItem, 0, len(candidates))
	budget := 0
	for _, chunk := range candidates {
		estimate := chunkapi.EstimateTokens(chunk.Content)
		if budget+estimate > tokenLimit && len(results) > 0 {
			break
		}
		item := ResultItem{
			File:           chunk.FilePath,
			LineStart:      chunk.LineStart,
			LineEnd:        chunk.LineEnd,
			Language:       chunk.Language,
			Snippet:        chunk.Content,
			Classification: chunk.Classification(),
			DisplayName:    chunk.DisplayName,
		}
		if hasIntent {
			item.Importance = chunk.ImportanceScore(importanceTask)
		}
		results = append(results, item)
		budget += estimate
	}

	return Result{
		Results: results,
		Total:   total,
		TookMs:  time.Since(start).Milliseconds(),
		Metadata: Metadata{
			Intent:   req.Intent,
			Filters:  filters,
			Failover: failover,
		},
	}
}

func (o *Orchestrator) failoverMetadata() FailoverMetadata {
	info := o.store.FailoverInfo()
	return FailoverMetadata{
		Enabled: info.Enabled,
		Active:  info.Active == "backup",
	}
}

func toRankedHits(hits []vectorstore.SearchHit) []rankedHit {
	if hits == nil {
		return nil
	}
	out := make([]rankedHit, len(hits))
	for i, h := range hits {
		out[i] = rankedHit{ChunkID: h.ChunkID}
	}
	return out
}

func sparseToMap(sv providerregistry.SparseVector) map[uint32]float32 {
	out := make(map[uint32]float32, len(sv.Indices))
	for i, idx := range sv.Indices {
		out[idx] = sv.Values[i]
	}
	return out
}
