package sparsebleve

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProvider_EmbedSparse_ProducesOneVectorPerText(t *testing.T) {
	t.Parallel()
	p := New()
	vectors, err := p.EmbedSparse(t.Context(), []string{"func Authenticate user", "func Authenticate user"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.NotEmpty(t, vectors[0].Indices)
	assert.Equal(t, len(vectors[0].Indices), len(vectors[0].Values))
	// Identical text hashes to identical buckets/weights.
	assert.Equal(t, vectors[0], vectors[1])
}

func TestProvider_EmbedSparse_RepeatedTermsScoreHigherThanSingletons(t *testing.T) {
	t.Parallel()
	p := New()
	vectors, err := p.EmbedSparse(t.Context(), []string{"retry retry retry backoff"})
	require.NoError(t, err)
	require.Len(t, vectors, 1)

	retryIdx := p.hashTerm("retry")
	backoffIdx := p.hashTerm("backoff")

	var retryWeight, backoffWeight float32
	for i, idx := range vectors[0].Indices {
		switch idx {
		case retryIdx:
			retryWeight = vectors[0].Values[i]
		case backoffIdx:
			backoffWeight = vectors[0].Values[i]
		}
	}
	assert.Greater(t, retryWeight, backoffWeight)
}

func TestProvider_EmbedSparse_EmptyTextProducesEmptyVector(t *testing.T) {
	t.Parallel()
	p := New()
	vectors, err := p.EmbedSparse(t.Context(), []string{""})
	require.NoError(t, err)
	require.Len(t, vectors, 1)
	assert.Empty(t, vectors[0].Indices)
}

func TestProvider_Close_IsNoop(t *testing.T) {
	t.Parallel()
	assert.NoError(t, New().Close())
}
