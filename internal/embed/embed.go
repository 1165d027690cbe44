// Package embed produces fixed-dimension embeddings for document text,
// with a deterministic local fallback for when the OpenAI provider is
// unavailable or deliberately disabled.
package embed

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math/rand/v2"

	"go.uber.org/zap"

	"github.com/verdantline/greenwash-cli/internal/model"
	"github.com/verdantline/greenwash-cli/pkg/openai"
)

// Provider selects the embedding backend.
type Provider string

const (
	ProviderOpenAI Provider = "openai"
	ProviderLocal  Provider = "local"
)

// Embedder turns text into a fixed-length vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Client embeds via OpenAI with a local fallback. The provider choice is
// evaluated on every call; a transient provider failure never latches into
// process-wide state.
type Client struct {
	provider Provider
	api      openai.Client
}

// New creates an embedding client. An unknown provider value falls back to
// the local deterministic embedder.
func New(provider string, api openai.Client) *Client {
	p := Provider(provider)
	if p != ProviderOpenAI || api == nil {
		p = ProviderLocal
	}
	return &Client{provider: p, api: api}
}

// Embed returns the embedding for text. When the OpenAI call fails, the
// local vector is used for this call only, so nearest-neighbor search keeps
// working without API quota.
func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	if c.provider == ProviderLocal {
		return LocalVector(text), nil
	}

	vec, err := c.api.Embed(ctx, text)
	if err != nil {
		zap.L().Warn("embedding provider unavailable, using local fallback",
			zap.Error(err),
		)
		return LocalVector(text), nil
	}
	return vec, nil
}

// LocalVector derives a deterministic pseudo-embedding from a hash of the
// text. Identical texts map to identical vectors, so exact-duplicate
// similarity stays meaningful; semantic similarity does not.
func LocalVector(text string) []float64 {
	digest := sha256.Sum256([]byte(text))
	seed := binary.BigEndian.Uint64(digest[:8])
	rng := rand.New(rand.NewPCG(seed, binary.BigEndian.Uint64(digest[8:16])))

	vec := make([]float64, model.EmbeddingDim)
	for i := range vec {
		vec[i] = rng.Float64()*2 - 1
	}
	return vec
}
