package hypergraph

import (
	"context"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

// EmbeddingProvider turns canonical embedding text into a fixed-dimension
// vector. It is pluggable so a failing or disabled embedding backend never
// blocks write_hyperedge.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// LangchainEmbeddingProvider is the default EmbeddingProvider, backed by
// langchaingo's embeddings client.
type LangchainEmbeddingProvider struct {
	embedder embeddings.Embedder
}

// NewLangchainEmbeddingProvider builds a provider over an OpenAI-compatible
// embeddings endpoint (also used for Gemini via an OpenAI-compatible proxy,
// matching the teacher's preference for one client library per protocol
// rather than one per vendor).
func NewLangchainEmbeddingProvider(model string) (*LangchainEmbeddingProvider, error) {
	llm, err := openai.New(openai.WithModel(model))
	if err != nil {
		return nil, err
	}
	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, err
	}
	return &LangchainEmbeddingProvider{embedder: embedder}, nil
}

// Embed implements EmbeddingProvider.
func (p *LangchainEmbeddingProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := p.embedder.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, nil
	}
	return vectors[0], nil
}

// StubEmbeddingProvider is a deterministic embedding provider for tests:
// it hashes text into a small fixed-dimension vector without calling out
// to any network service.
type StubEmbeddingProvider struct {
	Dim int
}

// Embed implements EmbeddingProvider deterministically from text's bytes.
func (p *StubEmbeddingProvider) Embed(_ context.Context, text string) ([]float32, error) {
	dim := p.Dim
	if dim <= 0 {
		dim = 8
	}
	vector := make([]float32, dim)
	for i, b := range []byte(text) {
		vector[i%dim] += float32(b) / 255.0
	}
	return vector, nil
}
