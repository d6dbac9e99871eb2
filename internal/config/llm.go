package config

import "time"

// LLMConfig configures the completion provider.
type LLMConfig struct {
	Provider    string  `yaml:"provider"` // openai, gemini
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	BaseURL     string  `yaml:"base_url"`
	Timeout     string  `yaml:"timeout"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`

	// Retries on HTTP 429 / 5xx before the error is surfaced to the agent.
	MaxRetries int `yaml:"max_retries"`
}

// DefaultModel returns the model used when llm.model is empty.
func DefaultModel(provider string) string {
	switch provider {
	case ProviderOpenAI:
		return "gpt-4o"
	case ProviderGemini:
		return "gemini-2.0-flash"
	}
	return ""
}

// ResolvedModel returns the configured model or the provider default.
func (l LLMConfig) ResolvedModel() string {
	if l.Model != "" {
		return l.Model
	}
	return DefaultModel(l.Provider)
}

// GetTimeout returns the request timeout as a duration.
func (l LLMConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(l.Timeout)
	if err != nil || d <= 0 {
		return 120 * time.Second
	}
	return d
}
