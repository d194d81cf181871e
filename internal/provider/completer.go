package provider

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// Completer adapts an eino chat model to the two-string prompt shape the
// knowledge engine expects. It is safe for concurrent use if the underlying
// model is.
type Completer struct {
	model model.ToolCallingChatModel
}

// NewCompleter wraps the given chat model.
func NewCompleter(m model.ToolCallingChatModel) *Completer {
	return &Completer{model: m}
}

// Complete sends a system prompt and a user prompt to the model and returns
// the text of its reply.
func (c *Completer) Complete(ctx context.Context, system, prompt string) (string, error) {
	msgs := []*schema.Message{
		schema.SystemMessage(system),
		schema.UserMessage(prompt),
	}
	out, err := c.model.Generate(ctx, msgs)
	if err != nil {
		return "", fmt.Errorf("provider: generate: %w", err)
	}
	if out == nil {
		return "", fmt.Errorf("provider: model returned no message")
	}
	return out.Content, nil
}
