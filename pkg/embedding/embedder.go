// Package embedding obtains and compares dense text vectors for listings.
package embedding

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"

	"github.com/listinglab/clover/pkg/models"
)

// Embedder obtains a dense vector for a text. Implementations may call out
// to an external inference service; callers must be prepared for errors and
// degrade the semantic signal instead of aborting the comparison.
type Embedder interface {
	Embed(ctx context.Context, text string) (models.Vector, error)
}

// OpenAIEmbedder embeds text through the OpenAI embeddings API.
type OpenAIEmbedder struct {
	client  *openai.Client
	model   openai.EmbeddingModel
	timeout time.Duration
}

// NewOpenAIEmbedder creates an embedder against the configured endpoint.
// baseURL is optional and supports OpenAI-compatible gateways. Every request
// is bounded by timeout so a hung inference call cannot stall a scan.
func NewOpenAIEmbedder(apiKey, model, baseURL string, timeout time.Duration) *OpenAIEmbedder {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	if model == "" {
		model = string(openai.SmallEmbedding3)
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &OpenAIEmbedder{
		client:  openai.NewClientWithConfig(config),
		model:   openai.EmbeddingModel(model),
		timeout: timeout,
	}
}

// Embed returns the embedding vector for the given text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) (models.Vector, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	req := openai.EmbeddingRequest{
		Input: []string{text},
		Model: e.model,
	}
	resp, err := e.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create embedding")
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("embedding response contained no data")
	}

	raw := resp.Data[0].Embedding
	vec := make(models.Vector, len(raw))
	for i, v := range raw {
		vec[i] = float64(v)
	}
	return vec, nil
}
