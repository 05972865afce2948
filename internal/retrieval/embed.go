package retrieval

import (
	"context"
	"errors"
	"fmt"

	"github.com/philippgille/chromem-go"
	"github.com/sashabaranov/go-openai"
)

// DefaultEmbeddingModel is used when no model is configured.
const DefaultEmbeddingModel = string(openai.SmallEmbedding3)

// embeddingsAPI is the subset of *openai.Client used for embeddings.
type embeddingsAPI interface {
	CreateEmbeddings(ctx context.Context, conv openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error)
}

// NewOpenAIClient returns a go-openai client for apiKey. An empty baseURL
// keeps the library default.
func NewOpenAIClient(apiKey, baseURL string) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return openai.NewClientWithConfig(cfg)
}

// OpenAIEmbedding adapts an OpenAI-compatible embeddings endpoint to the
// index's embedding function.
func OpenAIEmbedding(api embeddingsAPI, model string) chromem.EmbeddingFunc {
	if model == "" {
		model = DefaultEmbeddingModel
	}
	return func(ctx context.Context, text string) ([]float32, error) {
		resp, err := api.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
			Input: []string{text},
			Model: openai.EmbeddingModel(model),
		})
		if err != nil {
			return nil, fmt.Errorf("retrieval: create embedding: %w", err)
		}
		if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
			return nil, errors.New("retrieval: no embedding returned")
		}
		return resp.Data[0].Embedding, nil
	}
}
