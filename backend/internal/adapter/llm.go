package adapter

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	apperrors "atlas-of-us/backend/pkg/errors"
	"atlas-of-us/backend/pkg/logger"

	"github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// GenerationConfig tunes a single completion request. Zero values fall back
// to the server defaults.
type GenerationConfig struct {
	MaxTokens     int
	Temperature   float32
	StopSequences []string
}

// LLMAdapter talks to an OpenAI-compatible chat completions endpoint
// (llama.cpp server, LiteLLM, OpenRouter).
type LLMAdapter struct {
	client       *openai.Client
	httpClient   *http.Client
	baseURL      string
	model        string
	mu           sync.RWMutex // Protects model field for concurrent access
	breaker      *gobreaker.CircuitBreaker
	maxRetries   int
	retryBackoff time.Duration
	logger       *zap.Logger
}

// NewLLMAdapter creates a new LLM adapter. timeout bounds each HTTP request;
// long generations on local models can take minutes.
func NewLLMAdapter(baseURL, apiKey, modelID string, timeout time.Duration) *LLMAdapter {
	// Local servers ignore the key but the client requires one
	if apiKey == "" {
		apiKey = "dummy-key"
	}
	baseURL = strings.TrimRight(baseURL, "/")

	httpClient := &http.Client{Timeout: timeout}
	config := openai.DefaultConfig(apiKey)
	config.BaseURL = baseURL + "/v1"
	config.HTTPClient = httpClient

	log := logger.Get()
	return &LLMAdapter{
		client:       openai.NewClientWithConfig(config),
		httpClient:   httpClient,
		baseURL:      baseURL,
		model:        modelID,
		breaker:      newBreaker("llm", log),
		maxRetries:   3,
		retryBackoff: time.Second,
		logger:       log,
	}
}

// SetModel updates the model used by this adapter
func (a *LLMAdapter) SetModel(model string) {
	if model != "" {
		a.mu.Lock()
		a.model = model
		a.mu.Unlock()
		a.logger.Debug("LLM adapter model updated", zap.String("model", model))
	}
}

// GetModel returns the current model
func (a *LLMAdapter) GetModel() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.model
}

// Generate sends a system and user message and returns the first choice's text.
// Retryable failures (connection, timeout, rate limit) are retried inside this
// call, up to maxRetries attempts with a linear backoff. Everything else fails
// immediately with a typed *ErrLLMFailed. Callers must not retry on top of this:
// an error returned here is final for the request.
func (a *LLMAdapter) Generate(ctx context.Context, systemPrompt, userPrompt string, cfg GenerationConfig) (string, error) {
	if a.baseURL == "" {
		return "", apperrors.ErrLLMNotConfigured
	}

	currentModel := a.GetModel()
	req := openai.ChatCompletionRequest{
		Model: currentModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
		Stop:        cfg.StopSequences,
	}

	var (
		resp    openai.ChatCompletionResponse
		failure *apperrors.ErrLLMFailed
	)
	attempts := 0
	for attempt := 0; attempt < a.maxRetries; attempt++ {
		attempts = attempt + 1
		if attempt > 0 {
			backoff := time.Duration(attempt) * a.retryBackoff
			a.logger.Warn("Retrying LLM request",
				zap.Int("attempt", attempts),
				zap.Duration("backoff", backoff),
			)
			select {
			case <-ctx.Done():
				return "", apperrors.NewLLMFailed(apperrors.LLMTimeout, currentModel, attempt, ctx.Err())
			case <-time.After(backoff):
			}
		}

		out, err := a.breaker.Execute(func() (interface{}, error) {
			return a.client.CreateChatCompletion(ctx, req)
		})
		if err == nil {
			resp = out.(openai.ChatCompletionResponse)
			failure = nil
			break
		}

		failure = apperrors.NewLLMFailed(classifyError(ctx, err), currentModel, attempts, err)
		a.logger.Error("LLM request failed",
			zap.Error(err),
			zap.Int("attempt", attempts),
			zap.String("model", currentModel),
			zap.String("kind", string(failure.Kind)),
		)
		if !apperrors.IsRetryable(failure) || ctx.Err() != nil {
			break
		}
	}

	if failure != nil {
		return "", failure
	}

	if len(resp.Choices) == 0 {
		return "", apperrors.NewLLMFailed(apperrors.LLMParseError, currentModel, attempts, fmt.Errorf("no choices in LLM response"))
	}

	content := resp.Choices[0].Message.Content
	a.logger.Debug("LLM response generated",
		zap.String("model", currentModel),
		zap.Int("content_length", len(content)),
		zap.Int("max_tokens", cfg.MaxTokens),
	)
	return content, nil
}

// HealthCheck checks the server's /health route
func (a *LLMAdapter) HealthCheck(ctx context.Context) error {
	if a.baseURL == "" {
		return apperrors.ErrLLMNotConfigured
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/health", nil)
	if err != nil {
		return apperrors.NewLLMFailed(apperrors.LLMRequestFailed, a.GetModel(), 1, err)
	}
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return apperrors.NewLLMFailed(classifyError(ctx, err), a.GetModel(), 1, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apperrors.NewLLMFailed(apperrors.LLMRequestFailed, a.GetModel(), 1,
			fmt.Errorf("health check returned status: %d", resp.StatusCode))
	}
	return nil
}

// classifyError maps a client error onto the LLM failure taxonomy
func classifyError(ctx context.Context, err error) apperrors.LLMErrorKind {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return apperrors.LLMConnectionFailed
	}
	if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
		return apperrors.LLMTimeout
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return kindForStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return kindForStatus(reqErr.HTTPStatusCode)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return apperrors.LLMTimeout
		}
		return apperrors.LLMConnectionFailed
	}

	// Non-JSON bodies from proxies surface as decode errors
	if strings.Contains(err.Error(), "invalid character") {
		return apperrors.LLMParseError
	}
	return apperrors.LLMRequestFailed
}

func kindForStatus(status int) apperrors.LLMErrorKind {
	switch {
	case status == http.StatusTooManyRequests:
		return apperrors.LLMRateLimited
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return apperrors.LLMTimeout
	case status == http.StatusBadGateway || status == http.StatusServiceUnavailable:
		return apperrors.LLMConnectionFailed
	default:
		return apperrors.LLMRequestFailed
	}
}

func isTransient(kind apperrors.LLMErrorKind) bool {
	return kind == apperrors.LLMConnectionFailed || kind == apperrors.LLMTimeout || kind == apperrors.LLMRateLimited
}
