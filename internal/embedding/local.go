package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/michelelt/job-matcher/internal/logger"
	"github.com/michelelt/job-matcher/internal/utils"
	"go.uber.org/zap"
)

const (
	// DefaultLocalBaseURL points at a locally served sentence-embedding model.
	DefaultLocalBaseURL = "http://localhost:8080"
	// DefaultLocalModel is the pretrained sentence-embedding model used unless
	// the configuration says otherwise.
	DefaultLocalModel = "all-mpnet-base-v2"

	defaultMaxRetries = 3
	requestTimeout    = 60 * time.Second
	maxLogTextLen     = 120
)

// LocalClient talks to an OpenAI-compatible /embeddings endpoint, typically a
// locally hosted sentence-transformers server. Model loading happens on the
// server side once; this client is cheap and reused for the process lifetime.
type LocalClient struct {
	client     *http.Client
	baseURL    string
	model      string
	dimensions int
	maxRetries int
	logger     *zap.Logger
}

// NewLocalClient creates a client for the local embedding provider, filling
// in defaults for anything the config leaves empty.
func NewLocalClient(cfg Config, logger *zap.Logger) *LocalClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultLocalBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultLocalModel
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	return &LocalClient{
		client:     &http.Client{Timeout: requestTimeout},
		baseURL:    baseURL,
		model:      model,
		dimensions: cfg.Dimensions,
		maxRetries: maxRetries,
		logger:     logger,
	}
}

type embeddingRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed requests a vector for text, retrying transient failures with a short
// growing backoff.
func (c *LocalClient) Embed(ctx context.Context, text string) ([]float32, error) {
	for attempt := 0; ; attempt++ {
		vector, retryable, err := c.embedOnce(ctx, text)
		if err == nil {
			return vector, nil
		}

		if !retryable || attempt >= c.maxRetries {
			return nil, err
		}

		backoff := time.Duration(attempt+1) * time.Second
		c.logger.Warn("retrying embedding request",
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)

		if werr := utils.WaitFor(ctx, backoff); werr != nil {
			return nil, werr
		}
	}
}

func (c *LocalClient) embedOnce(ctx context.Context, text string) ([]float32, bool, error) {
	reqBody := embeddingRequest{
		Model:      c.model,
		Input:      []string{text},
		Dimensions: c.dimensions,
	}

	reqBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, false, fmt.Errorf("marshal embedding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embeddings", bytes.NewReader(reqBytes))
	if err != nil {
		return nil, false, fmt.Errorf("create embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	c.logger.Debug("embedding request",
		zap.String("model", c.model),
		zap.Int("text_length", len(text)),
		zap.String("text_preview", logger.TruncateForLog(text, maxLogTextLen)),
	)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("call embedding api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		retryable := resp.StatusCode >= http.StatusInternalServerError
		return nil, retryable, fmt.Errorf("embedding api returned bad status: %s", resp.Status)
	}

	var embeddingResp embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&embeddingResp); err != nil {
		return nil, false, fmt.Errorf("decode embedding response: %w", err)
	}

	if len(embeddingResp.Data) == 0 || len(embeddingResp.Data[0].Embedding) == 0 {
		return nil, false, fmt.Errorf("embedding api returned an empty vector")
	}

	return embeddingResp.Data[0].Embedding, false, nil
}
