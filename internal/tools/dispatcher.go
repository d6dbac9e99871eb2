package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"healthguard/internal/logging"
	"healthguard/internal/types"
)

// Observation is what the agent feeds back to the LLM after a tool step.
type Observation struct {
	// Text becomes the content after "Observation: ".
	Text string

	// Tool is the normalized name that ran, empty when none did.
	Tool string

	// Err is nil on success, *ToolNotFoundError or *ToolExecutionError otherwise.
	Err error

	Duration time.Duration
}

// Dispatcher routes parsed actions to tools. It never fails: every outcome,
// including a missing tool or a panicking one, becomes an Observation.
type Dispatcher struct {
	registry *Registry
}

// NewDispatcher creates a dispatcher over registry.
func NewDispatcher(registry *Registry) *Dispatcher {
	return &Dispatcher{registry: registry}
}

// Registry returns the underlying registry.
func (d *Dispatcher) Registry() *Registry { return d.registry }

// Dispatch runs the tool named by action and returns its observation.
func (d *Dispatcher) Dispatch(ctx context.Context, action types.ParsedAction) Observation {
	tool, err := d.registry.Lookup(action.ToolName)
	if !action.HasTool || err != nil {
		nf, ok := err.(*ToolNotFoundError)
		if !ok {
			nf = &ToolNotFoundError{Name: action.ToolName, Available: d.registry.Names()}
		}
		logging.ToolsWarn("Dispatch: tool %q not found (available: %v)", action.ToolName, nf.Available)
		return Observation{Text: NotFoundText(action.ToolName, nf.Available), Err: nf}
	}

	name := tool.Descriptor().Name
	start := time.Now()
	logging.ToolsDebug("Dispatch: running %s arg_kind=%s", name, action.Argument.Kind)

	result, runErr := safeRun(ctx, tool, action.Argument)
	obs := Observation{Tool: name, Duration: time.Since(start)}
	if runErr != nil {
		obs.Err = &ToolExecutionError{Tool: name, Err: runErr.err, Panicked: runErr.panicked}
		obs.Text = ErrorText(runErr.err)
		logging.ToolsError("Dispatch: %s failed after %v: %v", name, obs.Duration, runErr.err)
		return obs
	}

	obs.Text = result
	logging.Tools("Dispatch: %s completed in %v (result_len=%d)", name, obs.Duration, len(result))
	return obs
}

type runFailure struct {
	err      error
	panicked bool
}

func safeRun(ctx context.Context, tool Tool, arg types.Argument) (result string, failure *runFailure) {
	defer func() {
		if p := recover(); p != nil {
			failure = &runFailure{err: fmt.Errorf("panic: %v", p), panicked: true}
		}
	}()
	out, err := tool.Run(ctx, arg)
	if err != nil {
		return "", &runFailure{err: err}
	}
	return out, nil
}

// NotFoundText is the observation for an unknown or missing tool name.
func NotFoundText(name string, available []string) string {
	return fmt.Sprintf("Tool '%s' not found. Available tools: [%s]", name, strings.Join(available, ", "))
}

// ErrorText is the observation for a tool that failed.
func ErrorText(err error) string {
	return fmt.Sprintf("There was an error executing the tool.\nError: %v", err)
}
