package providerregistry

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"sync"
)

// MockDenseEmbedder is a deterministic, hash-based embedder for tests and
// for local development without a real embedding backend, adapted from the
// teacher's internal/embed.MockProvider idiom.
type MockDenseEmbedder struct {
	mu          sync.Mutex
	dimensions  int
	closeCalled bool
	closeError  error
	embedError  error
}

// NewMockDenseEmbedder returns a mock embedder producing vectors of the
// given dimension (384 matches the teacher's default, a common
// sentence-transformer size).
func NewMockDenseEmbedder(dimensions int) *MockDenseEmbedder {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &MockDenseEmbedder{dimensions: dimensions}
}

// SetEmbedError configures the mock to fail every Embed call with err until
// it is called again with nil.
func (p *MockDenseEmbedder) SetEmbedError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.embedError = err
}

// SetCloseError configures the mock to fail on Close.
func (p *MockDenseEmbedder) SetCloseError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closeError = err
}

// Embed generates deterministic embeddings from a SHA-256 hash of each
// input string so tests can assert on stable vectors without a real model.
func (p *MockDenseEmbedder) Embed(ctx context.Context, texts []string, mode EmbedMode) ([][]float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.embedError != nil {
		return nil, p.embedError
	}

	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		hash := sha256.Sum256([]byte(string(mode) + ":" + text))
		vec := make([]float32, p.dimensions)
		for j := 0; j < p.dimensions; j++ {
			offset := (j * 4) % len(hash)
			val := binary.BigEndian.Uint32(hash[offset : offset+4])
			vec[j] = (float32(val)/float32(1<<32))*2.0 - 1.0
		}
		embeddings[i] = vec
	}
	return embeddings, nil
}

// Dimensions implements DenseEmbedder.
func (p *MockDenseEmbedder) Dimensions() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dimensions
}

// Close implements DenseEmbedder.
func (p *MockDenseEmbedder) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closeCalled = true
	return p.closeError
}

// IsClosed reports whether Close has been called, for test assertions.
func (p *MockDenseEmbedder) IsClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closeCalled
}
