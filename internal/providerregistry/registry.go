// Package providerregistry is the static-plus-dynamic catalog of
// embedding, sparse, reranking, and vector-store providers described in
// spec §4.8. Providers are constructed lazily from configuration; nothing
// here hard-codes credentials or endpoints.
package providerregistry

import (
	"context"
	"fmt"
	"sync"
)

// Kind is one of the four capability kinds the registry tracks.
type Kind string

const (
	DenseEmbedding  Kind = "DENSE_EMBEDDING"
	SparseEmbedding Kind = "SPARSE_EMBEDDING"
	Reranking       Kind = "RERANKING"
	VectorStore     Kind = "VECTOR_STORE"
)

// ModelCapabilities describes an embedding or reranking model (spec §3
// "Provider Capabilities").
type ModelCapabilities struct {
	Dimension          int
	MaxInputTokens     int
	CostClass          string
	Sparse             bool
	QueryDocAsymmetric bool
}

// StoreCapabilities describes a vector-store provider.
type StoreCapabilities struct {
	StorageClass string // "persistent" | "ephemeral"
	VectorKinds  []string
}

// Constructor builds a provider instance on first use. Its return type
// varies by kind (an embedding Provider, a sparse embedder, a reranker, or
// a vector-store client); callers type-assert to the interface their
// package defines for that kind.
type Constructor func(ctx context.Context) (any, error)

// entry holds one registered (kind, provider, model) triple and its
// lazily-constructed instance.
type entry struct {
	kind     Kind
	provider string
	model    string

	modelCaps ModelCapabilities
	storeCaps StoreCapabilities

	construct Constructor

	once     sync.Once
	instance any
	buildErr error
}

func (e *entry) key() string {
	if e.model == "" {
		return e.provider
	}
	return e.provider + "/" + e.model
}

func (e *entry) build(ctx context.Context) (any, error) {
	e.once.Do(func() {
		e.instance, e.buildErr = e.construct(ctx)
	})
	return e.instance, e.buildErr
}

// Registry is the provider catalog. The zero value is not usable; use New.
type Registry struct {
	mu      sync.RWMutex
	entries map[Kind]map[string]*entry // kind -> provider/model key -> entry
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{entries: make(map[Kind]map[string]*entry)}
}

// RegisterModel registers a DENSE_EMBEDDING, SPARSE_EMBEDDING, or RERANKING
// provider+model pair with its capability metadata and lazy constructor.
func (r *Registry) RegisterModel(kind Kind, provider, model string, caps ModelCapabilities, ctor Constructor) {
	r.register(&entry{kind: kind, provider: provider, model: model, modelCaps: caps, construct: ctor})
}

// RegisterStore registers a VECTOR_STORE provider with its capability
// metadata and lazy constructor.
func (r *Registry) RegisterStore(provider string, caps StoreCapabilities, ctor Constructor) {
	r.register(&entry{kind: VectorStore, provider: provider, storeCaps: caps, construct: ctor})
}

func (r *Registry) register(e *entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.entries[e.kind] == nil {
		r.entries[e.kind] = make(map[string]*entry)
	}
	r.entries[e.kind][e.key()] = e
}

// List returns the provider (or provider/model) keys registered for kind.
func (r *Registry) List(kind Kind) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.entries[kind]))
	for k := range r.entries[kind] {
		keys = append(keys, k)
	}
	return keys
}

// IsAvailable reports whether provider is registered for kind, without
// constructing it.
func (r *Registry) IsAvailable(kind Kind, provider string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries[kind] {
		if e.provider == provider {
			return true
		}
	}
	return false
}

// Get constructs (on first call) and returns the provider instance
// registered under kind/provider/model. model may be "" for kinds that
// register a single instance per provider (e.g. VECTOR_STORE).
func (r *Registry) Get(ctx context.Context, kind Kind, provider, model string) (any, error) {
	r.mu.RLock()
	e, ok := r.entries[kind][providerModelKey(provider, model)]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("providerregistry: no %s provider registered for %q (model %q)", kind, provider, model)
	}
	return e.build(ctx)
}

// Capabilities returns the registered ModelCapabilities for a
// provider/model pair.
func (r *Registry) Capabilities(kind Kind, provider, model string) (ModelCapabilities, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[kind][providerModelKey(provider, model)]
	if !ok {
		return ModelCapabilities{}, false
	}
	return e.modelCaps, true
}

// StoreCapabilitiesOf returns the registered StoreCapabilities for a
// VECTOR_STORE provider.
func (r *Registry) StoreCapabilitiesOf(provider string) (StoreCapabilities, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[VectorStore][provider]
	if !ok {
		return StoreCapabilities{}, false
	}
	return e.storeCaps, true
}

func providerModelKey(provider, model string) string {
	if model == "" {
		return provider
	}
	return provider + "/" + model
}
