package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	apperrors "atlas-of-us/backend/pkg/errors"
	"atlas-of-us/backend/pkg/logger"

	"github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// Embedder turns text into a vector for the graph's similarity index
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// HTTPEmbedder calls a llama.cpp style /embedding endpoint that accepts
// {"content": "..."} and answers [{"embedding": [[...]]}].
type HTTPEmbedder struct {
	endpoint string
	client   *http.Client
	breaker  *gobreaker.CircuitBreaker
	logger   *zap.Logger
}

// NewHTTPEmbedder creates an embedder for the given endpoint
func NewHTTPEmbedder(endpoint string, timeout time.Duration) *HTTPEmbedder {
	log := logger.Get()
	return &HTTPEmbedder{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		breaker:  newBreaker("embedding", log),
		logger:   log,
	}
}

type embeddingRequest struct {
	Content string `json:"content"`
}

type embeddingResponseItem struct {
	Embedding [][]float64 `json:"embedding"`
}

// Embed implements Embedder
func (e *HTTPEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	out, err := e.breaker.Execute(func() (interface{}, error) {
		return e.post(ctx, text)
	})
	if err != nil {
		return nil, apperrors.NewEmbeddingFailed("http", err)
	}
	vec := out.([]float64)
	e.logger.Debug("Embedded text", zap.Int("chars", len(text)), zap.Int("dimensions", len(vec)))
	return vec, nil
}

func (e *HTTPEmbedder) post(ctx context.Context, text string) ([]float64, error) {
	body, err := json.Marshal(embeddingRequest{Content: text})
	if err != nil {
		return nil, fmt.Errorf("failed to encode embedding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("embedding endpoint returned status %d: %s", resp.StatusCode, string(msg))
	}

	var items []embeddingResponseItem
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, fmt.Errorf("failed to decode embedding response: %w", err)
	}
	if len(items) == 0 || len(items[0].Embedding) == 0 || len(items[0].Embedding[0]) == 0 {
		return nil, fmt.Errorf("invalid embedding response")
	}
	return items[0].Embedding[0], nil
}

// OpenAIEmbedder uses the embeddings route of an OpenAI-compatible server
type OpenAIEmbedder struct {
	client  *openai.Client
	model   string
	breaker *gobreaker.CircuitBreaker
}

// NewOpenAIEmbedder creates an embedder against baseURL + "/v1"
func NewOpenAIEmbedder(baseURL, apiKey, model string, timeout time.Duration) *OpenAIEmbedder {
	if apiKey == "" {
		apiKey = "dummy-key"
	}
	config := openai.DefaultConfig(apiKey)
	config.BaseURL = baseURL + "/v1"
	config.HTTPClient = &http.Client{Timeout: timeout}

	return &OpenAIEmbedder{
		client:  openai.NewClientWithConfig(config),
		model:   model,
		breaker: newBreaker("embedding", logger.Get()),
	}
}

// Embed implements Embedder
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	out, err := e.breaker.Execute(func() (interface{}, error) {
		return e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input: []string{text},
			Model: openai.EmbeddingModel(e.model),
		})
	})
	if err != nil {
		return nil, apperrors.NewEmbeddingFailed("openai", err)
	}

	resp := out.(openai.EmbeddingResponse)
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, apperrors.NewEmbeddingFailed("openai", fmt.Errorf("empty embedding response"))
	}

	vec := make([]float64, len(resp.Data[0].Embedding))
	for i, v := range resp.Data[0].Embedding {
		vec[i] = float64(v)
	}
	return vec, nil
}
