package perception

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"google.golang.org/genai"

	"healthguard/internal/logging"
	"healthguard/internal/types"
)

// GeminiClient implements LLMClient for Google's Gemini API via the genai SDK.
type GeminiClient struct {
	config GeminiConfig

	once    sync.Once
	client  *genai.Client
	initErr error
}

// NewGeminiClient creates a new Gemini client with default config.
func NewGeminiClient(apiKey string) *GeminiClient {
	return NewGeminiClientWithConfig(DefaultGeminiConfig(apiKey))
}

// NewGeminiClientWithConfig creates a new Gemini client with custom config.
// The SDK client is built lazily on the first Complete call.
func NewGeminiClientWithConfig(config GeminiConfig) *GeminiClient {
	def := DefaultGeminiConfig(config.APIKey)
	if config.Model == "" {
		config.Model = def.Model
	}
	if config.Timeout <= 0 {
		config.Timeout = def.Timeout
	}
	if config.MaxOutputTokens <= 0 {
		config.MaxOutputTokens = def.MaxOutputTokens
	}
	return &GeminiClient{config: config}
}

// Name returns the provider name.
func (c *GeminiClient) Name() string { return string(ProviderGemini) }

func (c *GeminiClient) sdk(ctx context.Context) (*genai.Client, error) {
	c.once.Do(func() {
		cc := &genai.ClientConfig{
			APIKey:  c.config.APIKey,
			Backend: genai.BackendGeminiAPI,
		}
		if c.config.BaseURL != "" {
			cc.HTTPOptions = genai.HTTPOptions{BaseURL: c.config.BaseURL}
		}
		c.client, c.initErr = genai.NewClient(ctx, cc)
	})
	return c.client, c.initErr
}

// Complete sends the conversation and returns the completion text.
// System messages become the system instruction; assistant turns are sent
// with the model role.
func (c *GeminiClient) Complete(ctx context.Context, messages []types.Message) (string, error) {
	if c.config.APIKey == "" {
		logging.APIError("[Gemini] Complete: API key not configured")
		return "", &ProviderError{Provider: ProviderGemini, Err: ErrNoAPIKey}
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()
	}

	client, err := c.sdk(ctx)
	if err != nil {
		return "", &ProviderError{Provider: ProviderGemini, Err: fmt.Errorf("failed to create GenAI client: %w", err)}
	}

	timer := logging.StartTimer(logging.CategoryAPI, "[Gemini] Complete")
	defer timer.Stop()

	system, contents := toGeminiContents(messages)
	logging.APIDebug("[Gemini] Complete: model=%s contents=%d system_len=%d", c.config.Model, len(contents), len(system))

	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(c.config.Temperature),
		MaxOutputTokens: int32(c.config.MaxOutputTokens),
	}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	resp, err := client.Models.GenerateContent(ctx, c.config.Model, contents, cfg)
	if err != nil {
		perr := &ProviderError{Provider: ProviderGemini, Err: err}
		logging.APIError("[Gemini] Complete: %v", perr)
		return "", perr
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", &ProviderError{Provider: ProviderGemini, Err: fmt.Errorf("no completion returned")}
	}
	logging.API("[Gemini] Complete: response_len=%d", len(text))
	return text, nil
}

// toGeminiContents splits the conversation into a system instruction and
// alternating user/model contents.
func toGeminiContents(messages []types.Message) (string, []*genai.Content) {
	var system []string
	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case types.RoleSystem:
			system = append(system, m.Content)
		case types.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	return strings.Join(system, "\n\n"), contents
}
