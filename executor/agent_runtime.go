package executor

import (
	"context"
	"errors"
	"fmt"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicRuntime is the default ModelRuntime, grounded on
// dshills-langgraph-go's anthropic adapter: extract the system prompt,
// convert messages, call Messages.New, flatten text blocks.
type AnthropicRuntime struct {
	apiKey       string
	defaultModel string
}

// NewAnthropicRuntime builds a runtime against the Anthropic Messages API.
// defaultModel is used when a request leaves Model empty.
func NewAnthropicRuntime(apiKey, defaultModel string) *AnthropicRuntime {
	if defaultModel == "" {
		defaultModel = "claude-sonnet-4-5-20250929"
	}
	return &AnthropicRuntime{apiKey: apiKey, defaultModel: defaultModel}
}

func (r *AnthropicRuntime) Complete(ctx context.Context, req ModelRequest) (string, error) {
	if r.apiKey == "" {
		return "", errors.New("executor: anthropic API key is required")
	}
	if ctx.Err() != nil {
		return "", ctx.Err()
	}

	modelName := req.Model
	if modelName == "" {
		modelName = r.defaultModel
	}

	client := anthropicsdk.NewClient(option.WithAPIKey(r.apiKey))

	messages := make([]anthropicsdk.MessageParam, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case "assistant":
			messages = append(messages, anthropicsdk.NewAssistantMessage(anthropicsdk.NewTextBlock(m.Content)))
		default:
			messages = append(messages, anthropicsdk.NewUserMessage(anthropicsdk.NewTextBlock(m.Content)))
		}
	}

	params := anthropicsdk.MessageNewParams{
		Model:     anthropicsdk.Model(modelName),
		Messages:  messages,
		MaxTokens: 4096,
	}
	if req.System != "" {
		params.System = []anthropicsdk.TextBlockParam{{Text: req.System}}
	}

	resp, err := client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("executor: anthropic completion: %w", err)
	}

	var text string
	for _, block := range resp.Content {
		if tb, ok := block.AsAny().(anthropicsdk.TextBlock); ok {
			if text != "" {
				text += "\n"
			}
			text += tb.Text
		}
	}
	return text, nil
}
