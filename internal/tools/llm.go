package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"healthguard/internal/logging"
	"healthguard/internal/types"
)

// ErrNoLLM is returned by tools that need a model when none was configured.
var ErrNoLLM = errors.New("no LLM client configured for tool")

// Ask sends a one-shot system+user exchange to client and returns the
// trimmed completion.
func Ask(ctx context.Context, client types.LLMClient, systemPrompt, prompt string) (string, error) {
	if client == nil {
		return "", ErrNoLLM
	}

	msgs := make([]types.Message, 0, 2)
	if s := strings.TrimSpace(systemPrompt); s != "" {
		msgs = append(msgs, types.NewMessage(types.RoleSystem, s))
	}
	msgs = append(msgs, types.NewMessage(types.RoleUser, prompt))

	timer := logging.StartTimer(logging.CategoryTools, "Ask:"+client.Name())
	defer timer.Stop()

	out, err := client.Complete(ctx, msgs)
	if err != nil {
		return "", fmt.Errorf("unable to get AI response: %w", err)
	}
	return strings.TrimSpace(out), nil
}
