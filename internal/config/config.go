package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is where the CLI looks for its config when --config is not given.
const DefaultConfigPath = ".healthguard/config.yaml"

// Provider names accepted in llm.provider.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// DefaultPatientID is the patient tools act on when none is named.
const DefaultPatientID = "demo_patient_001"

// Config holds all healthguard configuration.
type Config struct {
	Name string `yaml:"name"`

	LLM     LLMConfig     `yaml:"llm"`
	Agent   AgentConfig   `yaml:"agent"`
	Storage StorageConfig `yaml:"storage"`
	Tools   ToolsConfig   `yaml:"tools"`
	Logging LoggingConfig `yaml:"logging"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name: "HealthGuard",

		LLM: LLMConfig{
			Provider:    ProviderGemini,
			Timeout:     "120s",
			Temperature: 0.2,
			MaxTokens:   4000,
			MaxRetries:  3,
		},

		Agent: AgentConfig{
			MaxSteps:            8,
			MaxMalformedRetries: 2,
			MalformedPolicy:     MalformedNudge,
			ApologyMessage:      "I apologize, but I encountered a technical issue. Please try again or contact support if the problem persists.",
			StepLimitMessage:    "I'm sorry, I wasn't able to finish working on that request. Please try rephrasing it or contact support if the problem persists.",
		},

		Storage: StorageConfig{
			Driver:         DriverMattn,
			DatabasePath:   ".healthguard/data/healthguard.db",
			TranscriptsDir: ".healthguard/data",
		},

		Tools: ToolsConfig{
			DefaultPatientID: DefaultPatientID,
			MedicalInfo: MedicalInfoConfig{
				SearchEnabled: false,
				SearchURL:     "https://html.duckduckgo.com/html/",
				MaxResults:    5,
				Timeout:       "15s",
			},
		},

		Logging: LoggingConfig{
			DebugMode: false,
			Level:     "info",
			LogsDir:   ".healthguard/logs",
		},
	}
}

// Load loads configuration from a YAML file.
// A missing file yields the defaults; env overrides apply either way.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides fills credentials and paths from the environment.
// An explicit llm.provider is never switched; an empty one is picked from
// whichever key is present, Gemini first.
func (c *Config) applyEnvOverrides() {
	geminiKey := os.Getenv("GEMINI_API_KEY")
	if geminiKey == "" {
		geminiKey = os.Getenv("GOOGLE_API_KEY")
	}
	openaiKey := os.Getenv("OPENAI_API_KEY")

	if c.LLM.Provider == "" {
		switch {
		case geminiKey != "":
			c.LLM.Provider = ProviderGemini
		case openaiKey != "":
			c.LLM.Provider = ProviderOpenAI
		}
	}

	if c.LLM.APIKey == "" {
		switch c.LLM.Provider {
		case ProviderGemini:
			c.LLM.APIKey = geminiKey
		case ProviderOpenAI:
			c.LLM.APIKey = openaiKey
		}
	}

	if path := os.Getenv("HEALTHGUARD_DB"); path != "" {
		c.Storage.DatabasePath = path
	}
}

// Validate rejects values the runtime cannot act on.
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case ProviderOpenAI, ProviderGemini:
	default:
		return fmt.Errorf("invalid llm.provider %q (valid: openai, gemini)", c.LLM.Provider)
	}
	switch c.Agent.MalformedPolicy {
	case MalformedNudge, MalformedSurface:
	default:
		return fmt.Errorf("invalid agent.malformed_policy %q (valid: nudge, surface)", c.Agent.MalformedPolicy)
	}
	switch c.Storage.Driver {
	case DriverMattn, DriverModernc:
	default:
		return fmt.Errorf("invalid storage.driver %q (valid: sqlite3, sqlite)", c.Storage.Driver)
	}
	if c.Agent.MaxSteps <= 0 {
		return fmt.Errorf("agent.max_steps must be positive, got %d", c.Agent.MaxSteps)
	}
	if c.Agent.MaxMalformedRetries < 0 {
		return fmt.Errorf("agent.max_malformed_retries must not be negative, got %d", c.Agent.MaxMalformedRetries)
	}
	return nil
}
