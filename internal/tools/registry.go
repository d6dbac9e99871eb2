package tools

import (
	"fmt"
	"strings"
	"sync"

	"healthguard/internal/logging"
)

// Registry holds the tools of one session keyed by normalized name.
// It remembers registration order, which is the order the catalogue is
// rendered in. It is thread-safe.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
	order []string
}

// NewRegistry creates a new empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Tool),
	}
}

// Register adds a tool to the registry.
// Returns ErrDuplicateToolName if the normalized name is already taken.
func (r *Registry) Register(tool Tool) error {
	if tool == nil {
		return fmt.Errorf("invalid tool: %w", ErrToolRunNil)
	}
	name := NormalizeName(tool.Descriptor().Name)
	if name == "" {
		return fmt.Errorf("invalid tool: %w", ErrToolNameEmpty)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateToolName, name)
	}

	r.tools[name] = tool
	r.order = append(r.order, name)

	logging.ToolsDebug("Registered tool: %s", name)
	return nil
}

// MustRegister registers a tool and panics on error.
// Use this for static tool wiring where a duplicate is a programming error.
func (r *Registry) MustRegister(tool Tool) {
	if err := r.Register(tool); err != nil {
		panic(fmt.Sprintf("failed to register tool: %v", err))
	}
}

// Lookup returns the tool for name after normalization.
// A miss returns a *ToolNotFoundError that matches ErrToolNotFound.
func (r *Registry) Lookup(name string) (Tool, error) {
	key := NormalizeName(name)

	r.mu.RLock()
	defer r.mu.RUnlock()

	if tool, ok := r.tools[key]; ok {
		return tool, nil
	}
	return nil, &ToolNotFoundError{Name: name, Available: r.namesLocked()}
}

// Has returns true if a tool with the given name is registered.
func (r *Registry) Has(name string) bool {
	_, err := r.Lookup(name)
	return err == nil
}

// Names returns registered tool names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.namesLocked()
}

func (r *Registry) namesLocked() []string {
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Descriptors returns every descriptor in registration order.
func (r *Registry) Descriptors() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Descriptor, 0, len(r.order))
	for _, name := range r.order {
		d := r.tools[name].Descriptor()
		d.Name = name
		out = append(out, d)
	}
	return out
}

// DescribeAll renders the catalogue for the system prompt: one
// "Tool/Description/Arg" block per tool, separated by a blank line.
func (r *Registry) DescribeAll() string {
	descs := r.Descriptors()
	blocks := make([]string, len(descs))
	for i, d := range descs {
		blocks[i] = d.String()
	}
	return strings.Join(blocks, "\n\n")
}

// Count returns the number of registered tools.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}
