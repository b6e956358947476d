// Package embedding maps plain text to fixed-length dense vectors.
package embedding

import (
	"context"
	"fmt"
	"strings"

	"github.com/michelelt/job-matcher/internal/secrets"
	"go.uber.org/zap"
)

// Embedder produces a fixed-length vector for the given text. Empty text is
// legal input and returns whatever the model defines for it. Implementations
// are constructed once per process and reused; there is no hidden global.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Config selects and configures an embedding provider.
type Config struct {
	// Provider is "local" (default, OpenAI-compatible HTTP server) or "gemini".
	Provider string
	// Model is the embedding model identifier.
	Model string
	// BaseURL is the local provider endpoint.
	BaseURL string
	// Dimensions requests a specific output dimensionality when the model
	// supports it; zero means the model default.
	Dimensions int
	// MaxRetries bounds transient-failure retries for the local provider.
	MaxRetries int
	// GeminiAPIKeyFile points to a file holding the Gemini API key.
	GeminiAPIKeyFile string
}

// New builds an Embedder for the configured provider.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (Embedder, error) {
	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))

	switch provider {
	case "", "local":
		return NewLocalClient(cfg, logger), nil
	case "gemini":
		apiKey, err := secrets.Read(secrets.Ref{
			Name: "gemini api key",
			File: cfg.GeminiAPIKeyFile,
		})
		if err != nil {
			return nil, fmt.Errorf("%w (set embedding.gemini-api-key-file or GEMINI_API_KEY_FILE)", err)
		}
		return NewGeminiEmbedder(ctx, apiKey, cfg.Model, logger)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}
}
