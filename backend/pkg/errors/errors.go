package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeLLM represents text generation errors
	ErrorTypeLLM ErrorType = "llm"
	// ErrorTypeEmbedding represents embedding/similarity errors
	ErrorTypeEmbedding ErrorType = "embedding"
	// ErrorTypeGraph represents graph database errors
	ErrorTypeGraph ErrorType = "graph"
	// ErrorTypeParse represents malformed model output
	ErrorTypeParse ErrorType = "parse"
	// ErrorTypeStep represents a pipeline step failure
	ErrorTypeStep ErrorType = "step"
	// ErrorTypeMedia represents image generation and object storage errors
	ErrorTypeMedia ErrorType = "media"
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeContext represents context cancellation/timeout errors
	ErrorTypeContext ErrorType = "context"
)

// BaseError is the base error type with common fields
type BaseError struct {
	Type      ErrorType
	Message   string
	Timestamp time.Time
	Err       error // Wrapped error
}

// Error implements the error interface
func (e *BaseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the wrapped error for error unwrapping
func (e *BaseError) Unwrap() error {
	return e.Err
}

// ErrorType returns the category of the error. Typed errors embedding
// *BaseError inherit it, which is what IsErrorType matches on.
func (e *BaseError) ErrorType() ErrorType {
	return e.Type
}

// NewBaseError creates a new base error
func NewBaseError(errType ErrorType, message string, err error) *BaseError {
	return &BaseError{
		Type:      errType,
		Message:   message,
		Timestamp: time.Now(),
		Err:       err,
	}
}

// LLM Errors

// LLMErrorKind classifies a text generation failure
type LLMErrorKind string

const (
	LLMConnectionFailed LLMErrorKind = "connection_failed"
	LLMRequestFailed    LLMErrorKind = "request_failed"
	LLMParseError       LLMErrorKind = "parse_error"
	LLMTimeout          LLMErrorKind = "timeout"
	LLMRateLimited      LLMErrorKind = "rate_limited"
	LLMNotConfigured    LLMErrorKind = "not_configured"
)

// ErrLLMFailed is returned when a text generation request fails
type ErrLLMFailed struct {
	*BaseError
	Kind      LLMErrorKind
	Model     string
	Attempts  int
	Retryable bool
}

func NewLLMFailed(kind LLMErrorKind, model string, attempts int, err error) *ErrLLMFailed {
	return &ErrLLMFailed{
		BaseError: NewBaseError(ErrorTypeLLM, fmt.Sprintf("%s after %d attempts", kind, attempts), err),
		Kind:      kind,
		Model:     model,
		Attempts:  attempts,
		Retryable: kind == LLMConnectionFailed || kind == LLMTimeout || kind == LLMRateLimited,
	}
}

// ErrLLMNotConfigured is returned when no model endpoint is configured
var ErrLLMNotConfigured = NewLLMFailed(LLMNotConfigured, "", 0, nil)

// Embedding Errors

// ErrEmbeddingFailed is returned when a text cannot be embedded
type ErrEmbeddingFailed struct {
	*BaseError
	Provider string
}

func NewEmbeddingFailed(provider string, err error) *ErrEmbeddingFailed {
	return &ErrEmbeddingFailed{
		BaseError: NewBaseError(ErrorTypeEmbedding, fmt.Sprintf("embedding via %s failed", provider), err),
		Provider:  provider,
	}
}

// Graph Errors

// ErrGraphConnectionFailed is returned when Neo4j connection fails
type ErrGraphConnectionFailed struct {
	*BaseError
	URI string
}

func NewGraphConnectionFailed(uri string, err error) *ErrGraphConnectionFailed {
	return &ErrGraphConnectionFailed{
		BaseError: NewBaseError(ErrorTypeGraph, fmt.Sprintf("failed to connect to Neo4j: %s", uri), err),
		URI:       uri,
	}
}

// ErrGraphQueryFailed is returned when a graph query fails
type ErrGraphQueryFailed struct {
	*BaseError
	Operation string
}

func NewGraphQueryFailed(operation string, err error) *ErrGraphQueryFailed {
	return &ErrGraphQueryFailed{
		BaseError: NewBaseError(ErrorTypeGraph, fmt.Sprintf("query failed: %s", operation), err),
		Operation: operation,
	}
}

// Parse Errors

// ErrParseFailed is returned when model output lacks the expected structure
type ErrParseFailed struct {
	*BaseError
	Expected string
}

func NewParseFailed(expected, reason string, err error) *ErrParseFailed {
	return &ErrParseFailed{
		BaseError: NewBaseError(ErrorTypeParse, fmt.Sprintf("expected %s: %s", expected, reason), err),
		Expected:  expected,
	}
}

// Step Errors

// ErrStepFailed is returned by the orchestrator when a pipeline step aborts
type ErrStepFailed struct {
	*BaseError
	Step string
}

func NewStepFailed(step string, err error) *ErrStepFailed {
	return &ErrStepFailed{
		BaseError: NewBaseError(ErrorTypeStep, fmt.Sprintf("step %s failed", step), err),
		Step:      step,
	}
}

// Media Errors

// ErrMediaFailed is returned when avatar generation or upload fails
type ErrMediaFailed struct {
	*BaseError
	Stage string
}

func NewMediaFailed(stage string, err error) *ErrMediaFailed {
	return &ErrMediaFailed{
		BaseError: NewBaseError(ErrorTypeMedia, fmt.Sprintf("%s failed", stage), err),
		Stage:     stage,
	}
}

// Context Errors

// ErrContextTimeout is returned when context times out
type ErrContextTimeout struct {
	*BaseError
	Operation string
	Timeout   time.Duration
}

func NewContextTimeout(operation string, timeout time.Duration) *ErrContextTimeout {
	return &ErrContextTimeout{
		BaseError: NewBaseError(ErrorTypeContext, fmt.Sprintf("context timeout: %s (timeout: %v)", operation, timeout), nil),
		Operation: operation,
		Timeout:   timeout,
	}
}

// Config Errors

// ErrConfigValidationFailed is returned when configuration validation fails
type ErrConfigValidationFailed struct {
	*BaseError
	Field  string
	Reason string
}

func NewConfigValidationFailed(field, reason string) *ErrConfigValidationFailed {
	return &ErrConfigValidationFailed{
		BaseError: NewBaseError(ErrorTypeConfig, fmt.Sprintf("config validation failed: %s - %s", field, reason), nil),
		Field:     field,
		Reason:    reason,
	}
}

// Helper functions

type typedError interface {
	ErrorType() ErrorType
}

// IsErrorType checks if an error, or any error it wraps, is of a specific type
func IsErrorType(err error, errType ErrorType) bool {
	for err != nil {
		if t, ok := err.(typedError); ok && t.ErrorType() == errType {
			return true
		}
		err = stderrors.Unwrap(err)
	}
	return false
}

// LLMKind returns the LLM failure kind carried by err, if any
func LLMKind(err error) (LLMErrorKind, bool) {
	var llmErr *ErrLLMFailed
	if stderrors.As(err, &llmErr) {
		return llmErr.Kind, true
	}
	return "", false
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	// Context errors are not retryable
	if IsErrorType(err, ErrorTypeContext) {
		return false
	}
	var llmErr *ErrLLMFailed
	if stderrors.As(err, &llmErr) {
		return llmErr.Retryable
	}
	// Graph connection errors are retryable
	var connErr *ErrGraphConnectionFailed
	return stderrors.As(err, &connErr)
}
