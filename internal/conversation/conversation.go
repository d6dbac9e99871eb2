// Package conversation holds the ordered, role-tagged message log that is fed
// to the LLM on every step of an agent turn.
//
// A Conversation always starts with exactly one system message. Everything
// after it is append-only and Reset drops back to the system message.
// A Conversation is not safe for
// concurrent mutation; its owner serializes access.
package conversation

import (
	"fmt"

	"healthguard/internal/types"
)

// Conversation is an append-only message log anchored by a system message.
type Conversation struct {
	messages []types.Message
}

// New creates a conversation holding only the system prompt.
func New(systemPrompt string) *Conversation {
	return &Conversation{
		messages: []types.Message{types.NewMessage(types.RoleSystem, systemPrompt)},
	}
}

// Append adds a user or assistant message.
func (c *Conversation) Append(role types.Role, content string) error {
	if role == types.RoleSystem {
		return fmt.Errorf("cannot append system message")
	}
	if !role.Valid() {
		return fmt.Errorf("invalid role %q", role)
	}
	c.messages = append(c.messages, types.NewMessage(role, content))
	return nil
}

// Messages returns a copy of the log.
func (c *Conversation) Messages() []types.Message {
	out := make([]types.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Len returns the number of messages, system message included.
func (c *Conversation) Len() int { return len(c.messages) }

// System returns the system prompt.
func (c *Conversation) System() string { return c.messages[0].Content }

// Reset truncates the log back to the system message.
func (c *Conversation) Reset() {
	// Fresh backing array so copies handed out by Messages stay intact.
	c.messages = []types.Message{c.messages[0]}
}
