// Package agent runs the HealthGuard conversation loop: it sends the
// conversation to the LLM, routes tool steps through the dispatcher, feeds
// observations back and stops at a final response or a configured bound.
//
//	AwaitingCompletion ──Response:──────────────▶ Done(answer)
//	        │ ──Action:+Action Input:──▶ ToolStep ──▶ AwaitingCompletion
//	        │ ──provider error───────────▶ Done(apology)
//	        └ ──neither marker───────────▶ nudge ──▶ AwaitingCompletion | Done(surfaced)
package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"healthguard/internal/config"
	"healthguard/internal/conversation"
	"healthguard/internal/logging"
	"healthguard/internal/perception"
	"healthguard/internal/tools"
	"healthguard/internal/types"
)

// ClearedText is returned by ClearConversation.
const ClearedText = "Conversation history cleared."

// Prefixes of the user-role messages the loop appends.
const (
	PatientPrefix     = "Patient: "
	ObservationPrefix = "Observation: "
)

// Provider calls slower than this are logged as warnings.
const slowCompletion = 30 * time.Second

// Outcome says how a turn ended.
type Outcome int

const (
	// OutcomeResponse means the LLM produced a "Response:".
	OutcomeResponse Outcome = iota
	// OutcomeProviderError means a provider call failed and the apology was returned.
	OutcomeProviderError
	// OutcomeStepLimit means max_steps provider calls ran without an answer.
	OutcomeStepLimit
	// OutcomeSurfaced means a malformed completion was returned as the answer.
	OutcomeSurfaced
)

func (o Outcome) String() string {
	switch o {
	case OutcomeResponse:
		return "response"
	case OutcomeProviderError:
		return "provider_error"
	case OutcomeStepLimit:
		return "step_limit"
	case OutcomeSurfaced:
		return "surfaced"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// StepKind classifies one provider round-trip.
type StepKind string

const (
	StepResponse  StepKind = "response"
	StepTool      StepKind = "tool"
	StepMalformed StepKind = "malformed"
	StepFailed    StepKind = "provider_error"
)

// Step records one provider round-trip of a turn.
type Step struct {
	Number     int
	Kind       StepKind
	Completion string
	Action     types.ParsedAction
	// Observation is set for tool steps.
	Observation *tools.Observation
	Err         error
}

// Turn is the full record of one Handle call.
type Turn struct {
	ID       string
	Answer   string
	Outcome  Outcome
	Steps    []Step
	Duration time.Duration
}

// MalformedCompletionError describes a completion with neither a
// "Response:" marker nor an "Action:"/"Action Input:" pair.
type MalformedCompletionError struct {
	TurnID     string
	Step       int
	Completion string
}

func (e *MalformedCompletionError) Error() string {
	return fmt.Sprintf("turn %s step %d: completion has no Response or Action/Action Input markers (%d bytes)",
		e.TurnID, e.Step, len(e.Completion))
}

// Agent owns one patient's conversation. Handle calls are serialized.
type Agent struct {
	mu         sync.Mutex
	client     types.LLMClient
	dispatcher *tools.Dispatcher
	conv       *conversation.Conversation
	cfg        config.AgentConfig
	observer   func(Step)
	audit      *logging.AuditLogger
}

// Option customizes an Agent.
type Option func(*Agent)

// WithObserver registers fn to receive every step as it completes.
func WithObserver(fn func(Step)) Option {
	return func(a *Agent) { a.observer = fn }
}

// WithAudit sends turn, provider and tool events to audit.
func WithAudit(audit *logging.AuditLogger) Option {
	return func(a *Agent) { a.audit = audit }
}

// New creates an agent whose system prompt lists the tools in registry.
// Zero-valued limits and messages in cfg take their defaults; a negative
// MaxMalformedRetries disables nudging.
func New(client types.LLMClient, registry *tools.Registry, cfg config.AgentConfig, opts ...Option) (*Agent, error) {
	if client == nil {
		return nil, fmt.Errorf("agent requires an LLM client")
	}
	if registry == nil {
		registry = tools.NewRegistry()
	}
	cfg = withDefaults(cfg)
	if cfg.MalformedPolicy != config.MalformedNudge && cfg.MalformedPolicy != config.MalformedSurface {
		return nil, fmt.Errorf("unknown malformed policy %q", cfg.MalformedPolicy)
	}

	a := &Agent{
		client:     client,
		dispatcher: tools.NewDispatcher(registry),
		conv:       conversation.New(BuildSystemPrompt(cfg.SystemPrompt, registry)),
		cfg:        cfg,
		audit:      logging.Audit(),
	}
	for _, opt := range opts {
		opt(a)
	}

	logging.Agent("Agent initialized: provider=%s tools=%d max_steps=%d policy=%s",
		client.Name(), registry.Count(), cfg.MaxSteps, cfg.MalformedPolicy)
	logging.AgentDebug("Agent tools: %v (system prompt %d bytes)", registry.Names(), len(a.conv.System()))
	return a, nil
}

func withDefaults(cfg config.AgentConfig) config.AgentConfig {
	def := config.DefaultConfig().Agent
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = def.MaxSteps
	}
	switch {
	case cfg.MaxMalformedRetries == 0:
		cfg.MaxMalformedRetries = def.MaxMalformedRetries
	case cfg.MaxMalformedRetries < 0:
		logging.AgentWarn("max_malformed_retries=%d: malformed completions are surfaced without a nudge", cfg.MaxMalformedRetries)
		cfg.MaxMalformedRetries = 0
	}
	if cfg.MalformedPolicy == "" {
		cfg.MalformedPolicy = def.MalformedPolicy
	}
	if cfg.ApologyMessage == "" {
		cfg.ApologyMessage = def.ApologyMessage
	}
	if cfg.StepLimitMessage == "" {
		cfg.StepLimitMessage = def.StepLimitMessage
	}
	return cfg
}

// Handle runs one turn and returns the text for the patient. It never fails:
// provider errors yield the apology and exhausted bounds the step-limit message.
func (a *Agent) Handle(ctx context.Context, utterance string) string {
	return a.HandleTurn(ctx, utterance).Answer
}

// HandleTurn is Handle with the full record of the turn.
func (a *Agent) HandleTurn(ctx context.Context, utterance string) Turn {
	a.mu.Lock()
	defer a.mu.Unlock()

	turn := Turn{ID: uuid.NewString()}
	start := time.Now()
	log := logging.WithRequestID(logging.CategoryAgent, turn.ID)
	defer func() {
		turn.Duration = time.Since(start)
		log.WithField("outcome", turn.Outcome.String()).
			Info("Turn finished after %d steps in %v", len(turn.Steps), turn.Duration)
		a.audit.TurnEnd(turn.ID, turn.Outcome.String(), len(turn.Steps), turn.Duration, turn.Outcome == OutcomeResponse)
	}()
	a.audit.TurnStart(turn.ID, len(utterance))

	a.append(types.RoleUser, PatientPrefix+utterance)
	log.Debug("Turn started: history=%d utterance_len=%d", a.conv.Len(), len(utterance))

	malformed := 0
	for n := 1; n <= a.cfg.MaxSteps; n++ {
		step := Step{Number: n}

		timer := logging.StartTimer(logging.CategoryAPI, fmt.Sprintf("Complete:%s step %d", a.client.Name(), n))
		completion, err := a.client.Complete(ctx, a.conv.Messages())
		a.audit.LLMCall(turn.ID, a.client.Name(), timer.StopWithThreshold(slowCompletion), err)
		if err != nil {
			step.Kind, step.Err = StepFailed, err
			a.record(&turn, step)
			log.Error("Provider %s failed at step %d: %v", a.client.Name(), n, err)
			turn.Answer, turn.Outcome = a.cfg.ApologyMessage, OutcomeProviderError
			return turn
		}
		step.Completion = completion
		a.append(types.RoleAssistant, completion)

		if answer, ok := perception.FinalResponse(completion); ok {
			step.Kind = StepResponse
			a.record(&turn, step)
			turn.Answer, turn.Outcome = answer, OutcomeResponse
			return turn
		}

		if perception.HasToolStep(completion) {
			malformed = 0
			step.Kind = StepTool
			step.Action = perception.ParseAction(completion)
			obs := a.dispatcher.Dispatch(ctx, step.Action)
			step.Observation = &obs
			step.Err = obs.Err
			a.audit.ToolExec(turn.ID, step.Action.ToolName, obs.Duration, obs.Err)
			if obs.Err != nil {
				log.Warn("Step %d: tool %q observation carries error: %v (arg=%s) completion=%q",
					n, step.Action.ToolName, obs.Err, step.Action.Argument, truncate(completion, 200))
			} else {
				log.Debug("Step %d: tool %s ran in %v", n, obs.Tool, obs.Duration)
			}
			a.append(types.RoleUser, ObservationPrefix+obs.Text)
			a.record(&turn, step)
			continue
		}

		merr := &MalformedCompletionError{TurnID: turn.ID, Step: n, Completion: completion}
		step.Kind, step.Err = StepMalformed, merr
		a.record(&turn, step)
		a.audit.Malformed(turn.ID, n, len(completion))
		log.Warn("%v: %q", merr, truncate(completion, 200))

		if a.cfg.MalformedPolicy == config.MalformedSurface || malformed >= a.cfg.MaxMalformedRetries {
			turn.Answer, turn.Outcome = a.surface(completion), OutcomeSurfaced
			return turn
		}
		malformed++
		a.append(types.RoleUser, ObservationPrefix+NudgeText)
	}

	log.Warn("Step limit %d reached without a response", a.cfg.MaxSteps)
	turn.Answer, turn.Outcome = a.cfg.StepLimitMessage, OutcomeStepLimit
	return turn
}

func (a *Agent) surface(completion string) string {
	if s := strings.TrimSpace(completion); s != "" {
		return s
	}
	return a.cfg.StepLimitMessage
}

func (a *Agent) record(turn *Turn, step Step) {
	turn.Steps = append(turn.Steps, step)
	if a.observer != nil {
		a.observer(step)
	}
}

func (a *Agent) append(role types.Role, content string) {
	if err := a.conv.Append(role, content); err != nil {
		logging.AgentError("append %s message: %v", role, err)
	}
}

// ClearConversation truncates the history to the system prompt.
func (a *Agent) ClearConversation() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.conv.Reset()
	logging.Agent("Conversation cleared")
	return ClearedText
}

// History returns a copy of the conversation, system prompt first.
func (a *Agent) History() []types.Message {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.conv.Messages()
}

// SystemPrompt returns the expanded system prompt.
func (a *Agent) SystemPrompt() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.conv.System()
}

// Tools returns the names of the registered tools.
func (a *Agent) Tools() []string {
	return a.dispatcher.Registry().Names()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
