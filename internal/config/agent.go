package config

// Malformed-completion policies accepted in agent.malformed_policy.
const (
	MalformedNudge   = "nudge"
	MalformedSurface = "surface"
)

// AgentConfig bounds the agent loop.
type AgentConfig struct {
	// Maximum provider round-trips in one turn.
	MaxSteps int `yaml:"max_steps"`

	// Consecutive completions without a usable marker tolerated before giving up.
	// Zero takes the default; use the surface policy to stop nudging.
	MaxMalformedRetries int `yaml:"max_malformed_retries"`

	// nudge: feed a format reminder back as an observation.
	// surface: hand the raw completion to the user.
	MalformedPolicy string `yaml:"malformed_policy"`

	ApologyMessage   string `yaml:"apology_message"`
	StepLimitMessage string `yaml:"step_limit_message"`

	// Replaces the built-in system prompt when set. May use {tools} and {tool_names}.
	SystemPrompt string `yaml:"system_prompt"`
}
