package executor

import (
	"context"
	"errors"
	"fmt"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIRuntime is a ModelRuntime backed by OpenAI's chat completions API,
// grounded on dshills-langgraph-go's openai adapter.
type OpenAIRuntime struct {
	apiKey       string
	defaultModel string
}

// NewOpenAIRuntime builds a runtime against the OpenAI Chat Completions
// API. defaultModel is used when a request leaves Model empty.
func NewOpenAIRuntime(apiKey, defaultModel string) *OpenAIRuntime {
	if defaultModel == "" {
		defaultModel = "gpt-4o"
	}
	return &OpenAIRuntime{apiKey: apiKey, defaultModel: defaultModel}
}

func (r *OpenAIRuntime) Complete(ctx context.Context, req ModelRequest) (string, error) {
	if r.apiKey == "" {
		return "", errors.New("executor: openai API key is required")
	}
	if ctx.Err() != nil {
		return "", ctx.Err()
	}

	modelName := req.Model
	if modelName == "" {
		modelName = r.defaultModel
	}

	client := openaisdk.NewClient(option.WithAPIKey(r.apiKey))

	messages := make([]openaisdk.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openaisdk.SystemMessage(req.System))
	}
	for _, m := range req.Messages {
		switch m.Role {
		case "assistant":
			messages = append(messages, openaisdk.AssistantMessage(m.Content))
		case "system":
			messages = append(messages, openaisdk.SystemMessage(m.Content))
		default:
			messages = append(messages, openaisdk.UserMessage(m.Content))
		}
	}

	params := openaisdk.ChatCompletionNewParams{
		Model:    openaisdk.ChatModel(modelName),
		Messages: messages,
	}

	resp, err := client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("executor: openai completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}
