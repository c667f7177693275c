// Package httpembed implements a DENSE_EMBEDDING provider that talks to a
// configured HTTP embedding endpoint, generalized from the teacher's
// internal/embed/client.LocalProvider: same {texts}/{embeddings} JSON
// contract, minus the subprocess-spawning/health-polling machinery, since
// here the endpoint is operator-configured (provider.embedding.endpoint)
// rather than a binary this process owns the lifecycle of.
package httpembed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/knitli/codeweaver/internal/providerregistry"
)

// Config names the endpoint and model metadata for one HTTP embedding
// provider instance.
type Config struct {
	Endpoint   string
	Dimensions int // 384 matches BAAI/bge-small-en-v1.5, the default model
	Timeout    time.Duration
	MaxRetries uint
}

// DefaultConfig returns the spec-documented default (local BGE-small
// endpoint), for callers that leave fields unset.
func DefaultConfig(endpoint string) Config {
	return Config{
		Endpoint:   endpoint,
		Dimensions: 384,
		Timeout:    30 * time.Second,
		MaxRetries: 3,
	}
}

// Provider is a providerregistry.DenseEmbedder backed by one HTTP endpoint.
type Provider struct {
	cfg    Config
	client *http.Client
}

// New dials no connection up front -- the endpoint is probed lazily on the
// first Embed call, matching the registry's own lazy-construction contract
// (spec §4.8 "constructed lazily").
func New(cfg Config) *Provider {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Provider{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}
}

type embedRequest struct {
	Texts []string `json:"texts"`
	Mode  string   `json:"mode"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed POSTs texts to cfg.Endpoint and decodes the resulting vectors,
// retrying transient failures with bounded exponential backoff (spec §7
// "EmbeddingFailure ... retried a bounded number of times before the
// operation is reported as failed").
func (p *Provider) Embed(ctx context.Context, texts []string, mode providerregistry.EmbedMode) ([][]float32, error) {
	maxTries := p.cfg.MaxRetries
	if maxTries == 0 {
		maxTries = 3
	}
	return backoff.Retry(ctx, func() ([][]float32, error) {
		return p.embedOnce(ctx, texts, mode)
	}, backoff.WithMaxTries(maxTries), backoff.WithBackOff(backoff.NewExponentialBackOff()))
}

func (p *Provider) embedOnce(ctx context.Context, texts []string, mode providerregistry.EmbedMode) ([][]float32, error) {
	body, err := json.Marshal(embedRequest{Texts: texts, Mode: string(mode)})
	if err != nil {
		return nil, fmt.Errorf("httpembed: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("httpembed: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("httpembed: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("httpembed: endpoint returned status %d", resp.StatusCode)
	}

	var decoded embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("httpembed: decode response: %w", err)
	}
	if len(decoded.Embeddings) != len(texts) {
		return nil, fmt.Errorf("httpembed: expected %d vectors, got %d", len(texts), len(decoded.Embeddings))
	}
	return decoded.Embeddings, nil
}

// Dimensions returns the configured vector width.
func (p *Provider) Dimensions() int {
	return p.cfg.Dimensions
}

// Close is a no-op: the HTTP client owns no process or connection worth
// releasing early (the teacher's LocalProvider.Close kills a subprocess
// this provider never spawns).
func (p *Provider) Close() error {
	return nil
}
