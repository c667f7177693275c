// Package sparsebleve implements the SPARSE_EMBEDDING-capability provider
// using bleve's analysis pipeline for tokenization, term-frequency scoring
// standing in for a sparse/BM25-style representation -- the same role
// bleve plays in Aman-CERP-amanmcp's BleveBM25Index and the teacher's own
// exact_searcher.go, generalized here from full-index keyword search to a
// stateless per-call sparse vector so it fits the provider registry's
// SparseEmbedder contract (indexing and querying never build a persistent
// index of their own; the vector store is the index).
package sparsebleve

import (
	"context"
	"hash/fnv"
	"math"
	"sort"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/knitli/codeweaver/internal/providerregistry"
)

// DefaultBuckets bounds the sparse vocabulary to a fixed hash space so
// vectors from arbitrary input text stay a stable, bounded size rather
// than growing with every distinct term ever seen (spec's sparse vectors
// are parallel index/value pairs over a model-defined vocabulary; here the
// "model" is the hash space itself).
const DefaultBuckets = 1 << 18

// Provider is a providerregistry.SparseEmbedder backed by bleve's default
// analyzer. It holds no index and no mutable state: every call tokenizes
// its input text fresh.
type Provider struct {
	indexMapping *mapping.IndexMappingImpl
	analyzer     *analysis.DefaultAnalyzer
	buckets      uint32
}

// New builds a sparse embedder over bleve's default ("standard") analyzer.
func New() *Provider {
	indexMapping := bleve.NewIndexMapping()
	return &Provider{
		indexMapping: indexMapping,
		analyzer:     indexMapping.AnalyzerNamed(indexMapping.DefaultAnalyzer),
		buckets:      DefaultBuckets,
	}
}

// EmbedSparse tokenizes each text, counts term frequencies, hashes each
// distinct term into the bucket space, and emits a log-dampened
// term-frequency weight per bucket -- the BM25 family's term-frequency
// component without the corpus-wide IDF term, since this provider sees one
// text at a time and has no corpus statistics to draw on.
func (p *Provider) EmbedSparse(ctx context.Context, texts []string) ([]providerregistry.SparseVector, error) {
	out := make([]providerregistry.SparseVector, len(texts))
	for i, text := range texts {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		out[i] = p.embedOne(text)
	}
	return out, nil
}

func (p *Provider) embedOne(text string) providerregistry.SparseVector {
	counts := make(map[uint32]int)
	for _, tok := range p.analyzer.Analyze([]byte(text)) {
		if len(tok.Term) == 0 {
			continue
		}
		counts[p.hashTerm(string(tok.Term))]++
	}
	return frequenciesToVector(counts)
}

// Close releases nothing: the analyzer is a pure function of its input and
// owns no file handles or goroutines.
func (p *Provider) Close() error { return nil }

func (p *Provider) hashTerm(term string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(strings.ToLower(term)))
	return h.Sum32() % p.buckets
}

func frequenciesToVector(counts map[uint32]int) providerregistry.SparseVector {
	indices := make([]uint32, 0, len(counts))
	for idx := range counts {
		indices = append(indices, idx)
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })

	values := make([]float32, len(indices))
	for i, idx := range indices {
		values[i] = float32(1 + math.Log(float64(counts[idx])))
	}
	return providerregistry.SparseVector{Indices: indices, Values: values}
}
