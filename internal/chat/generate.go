package chat

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// Generator turns an assembled prompt into an answer string. It is the
// narrow seam between the pipeline and whichever LLM backend the provider
// factory selected; tests inject a fake.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// ModelGenerator adapts an eino chat model to the Generator interface by
// sending the assembled prompt as a single user message.
type ModelGenerator struct {
	// model is the chat model constructed by the provider factory.
	model model.BaseChatModel
}

// NewModelGenerator wraps the given chat model.
func NewModelGenerator(m model.BaseChatModel) (*ModelGenerator, error) {
	if m == nil {
		return nil, fmt.Errorf("chat: generator model must not be nil")
	}
	return &ModelGenerator{model: m}, nil
}

// Generate invokes the chat model once and returns its raw output.
func (g *ModelGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.model.Generate(ctx, []*schema.Message{schema.UserMessage(prompt)})
	if err != nil {
		return "", fmt.Errorf("chat: generate failed: %w", err)
	}
	if resp == nil {
		return "", fmt.Errorf("chat: generate returned nil response")
	}
	return resp.Content, nil
}
