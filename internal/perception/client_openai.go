package perception

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"healthguard/internal/logging"
	"healthguard/internal/types"
)

// OpenAIClient implements LLMClient for OpenAI-compatible chat completion APIs.
type OpenAIClient struct {
	config      OpenAIConfig
	httpClient  *http.Client
	mu          sync.Mutex
	lastRequest time.Time
}

// NewOpenAIClient creates a new OpenAI client with default config.
func NewOpenAIClient(apiKey string) *OpenAIClient {
	return NewOpenAIClientWithConfig(DefaultOpenAIConfig(apiKey))
}

// NewOpenAIClientWithConfig creates a new OpenAI client with custom config.
func NewOpenAIClientWithConfig(config OpenAIConfig) *OpenAIClient {
	def := DefaultOpenAIConfig(config.APIKey)
	if config.BaseURL == "" {
		config.BaseURL = def.BaseURL
	}
	if config.Model == "" {
		config.Model = def.Model
	}
	if config.Timeout <= 0 {
		config.Timeout = def.Timeout
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	return &OpenAIClient{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
	}
}

// Name returns the provider name.
func (c *OpenAIClient) Name() string { return string(ProviderOpenAI) }

// Complete sends the whole conversation and returns the completion text.
// Rate-limit (429) and server (5xx) responses are retried with exponential
// backoff; everything else fails immediately as a *ProviderError.
func (c *OpenAIClient) Complete(ctx context.Context, messages []types.Message) (string, error) {
	if c.config.APIKey == "" {
		logging.APIError("[OpenAI] Complete: API key not configured")
		return "", &ProviderError{Provider: ProviderOpenAI, Err: ErrNoAPIKey}
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()
	}

	timer := logging.StartTimer(logging.CategoryAPI, "[OpenAI] Complete")
	defer timer.Stop()
	logging.APIDebug("[OpenAI] Complete: model=%s messages=%d", c.config.Model, len(messages))

	c.throttle()

	reqBody := OpenAIRequest{
		Model:       c.config.Model,
		Messages:    toOpenAIMessages(messages),
		MaxTokens:   c.config.MaxTokens,
		Temperature: c.config.Temperature,
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	var lastErr *ProviderError
	for i := 0; i <= c.config.MaxRetries; i++ {
		if i > 0 {
			delay := c.config.RetryBaseDelay * time.Duration(1<<uint(i-1))
			logging.APIDebug("[OpenAI] Complete: retry %d/%d in %v after: %v", i, c.config.MaxRetries, delay, lastErr)
			select {
			case <-ctx.Done():
				return "", &ProviderError{Provider: ProviderOpenAI, Err: ctx.Err()}
			case <-time.After(delay):
			}
		}

		text, perr, retry := c.do(ctx, jsonData)
		if perr == nil {
			return text, nil
		}
		lastErr = perr
		if !retry {
			logging.APIError("[OpenAI] Complete: %v", perr)
			return "", perr
		}
	}

	logging.APIError("[OpenAI] Complete: max retries exceeded: %v", lastErr)
	return "", lastErr
}

// do performs one HTTP exchange. The bool reports whether the failure is retryable.
func (c *OpenAIClient) do(ctx context.Context, payload []byte) (string, *ProviderError, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", &ProviderError{Provider: ProviderOpenAI, Err: fmt.Errorf("failed to create request: %w", err)}, false
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		retry := ctx.Err() == nil
		return "", &ProviderError{Provider: ProviderOpenAI, Err: fmt.Errorf("request failed: %w", err)}, retry
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return "", &ProviderError{Provider: ProviderOpenAI, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read response: %w", err)}, true
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", &ProviderError{Provider: ProviderOpenAI, StatusCode: resp.StatusCode, Err: fmt.Errorf("rate limit exceeded")}, true
	case resp.StatusCode >= 500:
		return "", &ProviderError{Provider: ProviderOpenAI, StatusCode: resp.StatusCode, Err: fmt.Errorf("server error: %s", truncate(string(body), 200))}, true
	case resp.StatusCode != http.StatusOK:
		return "", &ProviderError{Provider: ProviderOpenAI, StatusCode: resp.StatusCode, Err: fmt.Errorf("request rejected: %s", truncate(string(body), 200))}, false
	}

	var openaiResp OpenAIResponse
	if err := json.Unmarshal(body, &openaiResp); err != nil {
		return "", &ProviderError{Provider: ProviderOpenAI, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to parse response: %w", err)}, false
	}
	if openaiResp.Error != nil {
		return "", &ProviderError{Provider: ProviderOpenAI, StatusCode: resp.StatusCode, Err: fmt.Errorf("API error: %s", openaiResp.Error.Message)}, false
	}
	if len(openaiResp.Choices) == 0 {
		return "", &ProviderError{Provider: ProviderOpenAI, StatusCode: resp.StatusCode, Err: fmt.Errorf("no completion returned")}, false
	}

	text := strings.TrimSpace(openaiResp.Choices[0].Message.Content)
	logging.API("[OpenAI] Complete: response_len=%d tokens=%d", len(text), openaiResp.Usage.TotalTokens)
	return text, nil, false
}

// throttle spaces consecutive requests at least 100ms apart.
func (c *OpenAIClient) throttle() {
	c.mu.Lock()
	defer c.mu.Unlock()
	elapsed := time.Since(c.lastRequest)
	if elapsed < 100*time.Millisecond {
		time.Sleep(100*time.Millisecond - elapsed)
	}
	c.lastRequest = time.Now()
}

func toOpenAIMessages(messages []types.Message) []OpenAIMessage {
	out := make([]OpenAIMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, OpenAIMessage{Role: string(m.Role), Content: m.Content})
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
