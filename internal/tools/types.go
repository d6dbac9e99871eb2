// Package tools holds the tool registry the agent loop routes actions through
// and the dispatcher that turns every tool outcome into an observation.
//
// Architecture:
//
//	completion → perception.ParseAction → Dispatcher.Dispatch → Registry.Lookup → Tool.Run → Observation
//
// Domain tools live in subpackages (medication, symptom, medinfo, analysis)
// and are instantiated per patient session.
package tools

import (
	"context"
	"fmt"
	"strings"

	"healthguard/internal/types"
)

// Descriptor is the immutable identity of a tool as shown to the LLM.
type Descriptor struct {
	// Name is the normalized identifier the LLM writes after "Action:".
	Name string

	// Description explains what the tool does.
	Description string

	// ArgumentShape tells the LLM what to write after "Action Input:".
	ArgumentShape string
}

// NewDescriptor builds a descriptor with a normalized name.
func NewDescriptor(name, description, argumentShape string) Descriptor {
	return Descriptor{
		Name:          NormalizeName(name),
		Description:   description,
		ArgumentShape: argumentShape,
	}
}

// String renders the catalogue entry injected into the system prompt.
func (d Descriptor) String() string {
	return fmt.Sprintf("Tool: %s\nDescription: %s\nArg: %s", d.Name, d.Description, d.ArgumentShape)
}

// NormalizeName trims, lowercases and replaces inner spaces with underscores.
func NormalizeName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), "_")
}

// Tool is a named capability with a textual contract.
// Run receives the argument exactly as parsed: structured when the
// Action Input decoded as JSON, raw text otherwise.
type Tool interface {
	Descriptor() Descriptor
	Run(ctx context.Context, arg types.Argument) (string, error)
}

// RunFunc is the signature for tool execution.
type RunFunc func(ctx context.Context, arg types.Argument) (string, error)

// FuncTool adapts a plain function into a Tool.
type FuncTool struct {
	desc Descriptor
	run  RunFunc
}

// NewFuncTool creates a Tool from a descriptor and a function.
func NewFuncTool(name, description, argumentShape string, run RunFunc) *FuncTool {
	return &FuncTool{
		desc: NewDescriptor(name, description, argumentShape),
		run:  run,
	}
}

// Descriptor returns the tool's descriptor.
func (f *FuncTool) Descriptor() Descriptor { return f.desc }

// Run invokes the wrapped function.
func (f *FuncTool) Run(ctx context.Context, arg types.Argument) (string, error) {
	if f.run == nil {
		return "", ErrToolRunNil
	}
	return f.run(ctx, arg)
}
