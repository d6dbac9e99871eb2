// Package types provides shared type definitions used across healthguard packages.
// This package exists to break import cycles between agent, perception, and tools.
// Types in this package should be foundational data structures with no complex dependencies.
package types

import (
	"encoding/json"
	"fmt"
	"strings"
)

// =============================================================================
// CONVERSATION TYPES
// =============================================================================

// Role tags who authored a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the three known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// Message is a single role-tagged entry in a conversation.
// The JSON shape doubles as the persisted transcript record.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// NewMessage builds a message.
func NewMessage(role Role, content string) Message {
	return Message{Role: role, Content: content}
}

func (m Message) String() string {
	return fmt.Sprintf("%s: %s", m.Role, m.Content)
}

// =============================================================================
// TOOL ARGUMENTS
// =============================================================================

// ArgumentKind distinguishes the two shapes a tool argument can take.
type ArgumentKind int

const (
	// ArgumentRaw is plain text that did not decode as structured data.
	ArgumentRaw ArgumentKind = iota
	// ArgumentStructured is a decoded JSON object or array.
	ArgumentStructured
)

func (k ArgumentKind) String() string {
	if k == ArgumentStructured {
		return "structured"
	}
	return "raw"
}

// Argument is the input handed to a tool: either Structured(value) or Raw(text).
// Raw always holds the original text, including for structured arguments.
type Argument struct {
	Kind  ArgumentKind
	Raw   string
	Value any // map[string]any or []any when Kind == ArgumentStructured
}

// RawArgument wraps plain text.
func RawArgument(text string) Argument {
	return Argument{Kind: ArgumentRaw, Raw: text}
}

// StructuredArgument wraps an already decoded value.
func StructuredArgument(raw string, value any) Argument {
	return Argument{Kind: ArgumentStructured, Raw: raw, Value: value}
}

// DecodeArgument tries to decode text as a JSON object or array and falls
// back to a raw argument. Scalars ("42", "true", "\"x\"") stay raw.
func DecodeArgument(text string) Argument {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return RawArgument("")
	}
	if trimmed[0] != '{' && trimmed[0] != '[' {
		return RawArgument(trimmed)
	}

	var value any
	if err := json.Unmarshal([]byte(trimmed), &value); err != nil {
		return RawArgument(trimmed)
	}
	switch value.(type) {
	case map[string]any, []any:
		return StructuredArgument(trimmed, value)
	}
	return RawArgument(trimmed)
}

// IsStructured reports whether the argument decoded as JSON.
func (a Argument) IsStructured() bool {
	return a.Kind == ArgumentStructured
}

// Object returns the argument as a JSON object when it is one.
func (a Argument) Object() (map[string]any, bool) {
	if a.Kind != ArgumentStructured {
		return nil, false
	}
	obj, ok := a.Value.(map[string]any)
	return obj, ok
}

// Text returns the argument as text: the raw input for raw arguments and a
// compact JSON encoding for structured ones.
func (a Argument) Text() string {
	if a.Kind != ArgumentStructured {
		return a.Raw
	}
	data, err := json.Marshal(a.Value)
	if err != nil {
		return a.Raw
	}
	return string(data)
}

func (a Argument) String() string {
	return fmt.Sprintf("%s(%s)", a.Kind, a.Text())
}

// =============================================================================
// PARSED ACTIONS
// =============================================================================

// ParsedAction is the tool call extracted from one completion.
// HasTool is false when no "Action:" line was found.
type ParsedAction struct {
	ToolName string
	HasTool  bool
	Argument Argument
}
