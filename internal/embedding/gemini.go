package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-embedding-001"

// contentEmbedder is the slice of the genai Models API we depend on.
type contentEmbedder interface {
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

// GeminiEmbedder produces embeddings through the Gemini API backend.
type GeminiEmbedder struct {
	models    contentEmbedder
	modelName string
	logger    *zap.Logger
}

// NewGeminiEmbedder creates an embedder backed by the Gemini API.
func NewGeminiEmbedder(ctx context.Context, apiKey, model string, logger *zap.Logger) (*GeminiEmbedder, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	if model = strings.TrimSpace(model); model == "" {
		model = defaultGeminiModel
	}

	return &GeminiEmbedder{models: client.Models, modelName: model, logger: logger}, nil
}

func (g *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if g == nil || g.models == nil {
		return nil, errors.New("gemini embedder is not initialized")
	}

	resp, err := g.models.EmbedContent(ctx, g.modelName, genai.Text(text), nil)
	if err != nil {
		return nil, fmt.Errorf("embed content: %w", err)
	}

	if resp == nil || len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil || len(resp.Embeddings[0].Values) == 0 {
		return nil, errors.New("gemini api returned an empty embedding")
	}

	return resp.Embeddings[0].Values, nil
}

// Model returns the model identifier this embedder was built with.
func (g *GeminiEmbedder) Model() string {
	if g == nil {
		return ""
	}
	return g.modelName
}
