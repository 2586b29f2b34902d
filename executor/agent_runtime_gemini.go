package executor

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiRuntime is a ModelRuntime backed by Google's Gemini API, grounded
// on dshills-langgraph-go's google adapter.
type GeminiRuntime struct {
	apiKey       string
	defaultModel string
}

// NewGeminiRuntime builds a runtime against the Gemini generateContent
// API. defaultModel is used when a request leaves Model empty.
func NewGeminiRuntime(apiKey, defaultModel string) *GeminiRuntime {
	if defaultModel == "" {
		defaultModel = "gemini-2.5-flash"
	}
	return &GeminiRuntime{apiKey: apiKey, defaultModel: defaultModel}
}

func (r *GeminiRuntime) Complete(ctx context.Context, req ModelRequest) (string, error) {
	if r.apiKey == "" {
		return "", errors.New("executor: gemini API key is required")
	}
	if ctx.Err() != nil {
		return "", ctx.Err()
	}

	modelName := req.Model
	if modelName == "" {
		modelName = r.defaultModel
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(r.apiKey))
	if err != nil {
		return "", fmt.Errorf("executor: gemini client: %w", err)
	}
	defer client.Close()

	genModel := client.GenerativeModel(modelName)
	if req.System != "" {
		genModel.SystemInstruction = genai.NewUserContent(genai.Text(req.System))
	}

	var parts []genai.Part
	for _, m := range req.Messages {
		if m.Content != "" {
			parts = append(parts, genai.Text(m.Content))
		}
	}

	resp, err := genModel.GenerateContent(ctx, parts...)
	if err != nil {
		return "", fmt.Errorf("executor: gemini completion: %w", err)
	}

	var text string
	if len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			if t, ok := part.(genai.Text); ok {
				if text != "" {
					text += "\n"
				}
				text += string(t)
			}
		}
	}
	return text, nil
}
