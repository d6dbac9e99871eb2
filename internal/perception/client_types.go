package perception

import (
	"errors"
	"fmt"
	"time"

	"healthguard/internal/types"
)

// LLMClient is the completion capability the agent loop consumes.
type LLMClient = types.LLMClient

// Provider represents an LLM provider.
type Provider string

const (
	ProviderOpenAI Provider = "openai"
	ProviderGemini Provider = "gemini"
)

// ErrNoAPIKey is returned when a client is used without credentials.
var ErrNoAPIKey = errors.New("API key not configured")

// ProviderError reports a failed exchange with an LLM provider:
// transport faults, auth or quota rejections, and empty replies.
type ProviderError struct {
	Provider   Provider
	StatusCode int // 0 when no HTTP response was received
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s provider error (status %d): %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s provider error: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// OpenAIConfig holds configuration for the OpenAI-compatible client.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Timeout     time.Duration
	Temperature float64
	MaxTokens   int
	MaxRetries  int

	// First backoff delay; doubles on each retry.
	RetryBaseDelay time.Duration
}

// DefaultOpenAIConfig returns sensible defaults.
func DefaultOpenAIConfig(apiKey string) OpenAIConfig {
	return OpenAIConfig{
		APIKey:         apiKey,
		BaseURL:        "https://api.openai.com/v1",
		Model:          "gpt-4o",
		Timeout:        120 * time.Second,
		Temperature:    0.2,
		MaxTokens:      4000,
		MaxRetries:     3,
		RetryBaseDelay: time.Second,
	}
}

// GeminiConfig holds configuration for the Gemini client.
type GeminiConfig struct {
	APIKey          string
	BaseURL         string // Optional override, mainly for tests
	Model           string
	Timeout         time.Duration
	Temperature     float32
	MaxOutputTokens int
}

// DefaultGeminiConfig returns sensible defaults.
func DefaultGeminiConfig(apiKey string) GeminiConfig {
	return GeminiConfig{
		APIKey:          apiKey,
		Model:           "gemini-2.0-flash",
		Timeout:         120 * time.Second,
		Temperature:     0.2,
		MaxOutputTokens: 4000,
	}
}

// OpenAIMessage represents a chat message on the wire.
type OpenAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// OpenAIRequest represents the chat completions request.
type OpenAIRequest struct {
	Model       string          `json:"model"`
	Messages    []OpenAIMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature float64         `json:"temperature"`
}

// OpenAIResponse represents the chat completions response.
type OpenAIResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error,omitempty"`
}
