// Package openai adapts OpenAI's chat completions API to the pipeline
// runner's model.ChatModel interface.
package openai

import (
	"context"
	"errors"
	"fmt"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/flowstage/flowstage/pipeline/model"
)

// ChatModel implements model.ChatModel against OpenAI's chat completions
// endpoint.
type ChatModel struct {
	apiKey    string
	modelName string
}

// NewChatModel creates an OpenAI-backed ChatModel. An empty modelName
// defaults to gpt-4o.
func NewChatModel(apiKey, modelName string) *ChatModel {
	if modelName == "" {
		modelName = "gpt-4o"
	}
	return &ChatModel{apiKey: apiKey, modelName: modelName}
}

func (m *ChatModel) Chat(ctx context.Context, messages []model.Message) (string, error) {
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	if m.apiKey == "" {
		return "", errors.New("openai API key is required")
	}

	client := openaisdk.NewClient(option.WithAPIKey(m.apiKey))
	params := openaisdk.ChatCompletionNewParams{
		Model:    openaisdk.ChatModel(m.modelName),
		Messages: convertMessages(messages),
	}

	resp, err := client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai API error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

func convertMessages(messages []model.Message) []openaisdk.ChatCompletionMessageParamUnion {
	out := make([]openaisdk.ChatCompletionMessageParamUnion, len(messages))
	for i, msg := range messages {
		switch msg.Role {
		case model.RoleSystem:
			out[i] = openaisdk.SystemMessage(msg.Content)
		case model.RoleAssistant:
			out[i] = openaisdk.AssistantMessage(msg.Content)
		default:
			out[i] = openaisdk.UserMessage(msg.Content)
		}
	}
	return out
}
