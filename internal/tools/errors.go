package tools

import (
	"errors"
	"fmt"
	"strings"
)

// Tool registry errors.
var (
	// ErrToolNotFound is returned when a tool is not registered.
	ErrToolNotFound = errors.New("tool not found")

	// ErrToolNameEmpty is returned when a tool has no name.
	ErrToolNameEmpty = errors.New("tool name cannot be empty")

	// ErrToolRunNil is returned when a tool has no run function.
	ErrToolRunNil = errors.New("tool run function cannot be nil")

	// ErrDuplicateToolName is returned when registering a name already taken.
	ErrDuplicateToolName = errors.New("duplicate tool name")

	// ErrToolExecution is matched by every *ToolExecutionError.
	ErrToolExecution = errors.New("tool execution failed")
)

// ToolNotFoundError names the tool the LLM asked for and what it could have used.
type ToolNotFoundError struct {
	Name      string
	Available []string
}

func (e *ToolNotFoundError) Error() string {
	return fmt.Sprintf("%v: %q (available: %s)", ErrToolNotFound, e.Name, strings.Join(e.Available, ", "))
}

func (e *ToolNotFoundError) Unwrap() error { return ErrToolNotFound }

// ToolExecutionError wraps a failure raised by a tool's Run, panics included.
type ToolExecutionError struct {
	Tool     string
	Err      error
	Panicked bool
}

func (e *ToolExecutionError) Error() string {
	return fmt.Sprintf("tool %s: %v", e.Tool, e.Err)
}

func (e *ToolExecutionError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrToolExecution) match any execution failure.
func (e *ToolExecutionError) Is(target error) bool { return target == ErrToolExecution }
