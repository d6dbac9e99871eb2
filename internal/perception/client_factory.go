package perception

import (
	"fmt"

	"healthguard/internal/config"
	"healthguard/internal/logging"
)

// NewClientFromConfig creates the LLM client named by cfg.Provider.
// The provider is always an explicit choice; nothing here reads the environment.
func NewClientFromConfig(cfg config.LLMConfig) (LLMClient, error) {
	switch Provider(cfg.Provider) {
	case ProviderOpenAI:
		oc := DefaultOpenAIConfig(cfg.APIKey)
		oc.Model = cfg.ResolvedModel()
		if cfg.BaseURL != "" {
			oc.BaseURL = cfg.BaseURL
		}
		oc.Timeout = cfg.GetTimeout()
		oc.Temperature = cfg.Temperature
		if cfg.MaxTokens > 0 {
			oc.MaxTokens = cfg.MaxTokens
		}
		oc.MaxRetries = cfg.MaxRetries
		logging.Boot("LLM client: openai model=%s", oc.Model)
		return NewOpenAIClientWithConfig(oc), nil

	case ProviderGemini:
		gc := DefaultGeminiConfig(cfg.APIKey)
		gc.Model = cfg.ResolvedModel()
		gc.BaseURL = cfg.BaseURL
		gc.Timeout = cfg.GetTimeout()
		gc.Temperature = float32(cfg.Temperature)
		if cfg.MaxTokens > 0 {
			gc.MaxOutputTokens = cfg.MaxTokens
		}
		logging.Boot("LLM client: gemini model=%s", gc.Model)
		return NewGeminiClientWithConfig(gc), nil

	default:
		return nil, fmt.Errorf("unsupported provider: %q", cfg.Provider)
	}
}
