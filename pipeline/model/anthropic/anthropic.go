// Package anthropic adapts Anthropic's Claude API to the pipeline runner's
// model.ChatModel interface.
package anthropic

import (
	"context"
	"errors"
	"fmt"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/flowstage/flowstage/pipeline/model"
)

// ChatModel implements model.ChatModel against Claude, extracting any
// system message into Anthropic's separate system parameter.
type ChatModel struct {
	apiKey    string
	modelName string
}

// NewChatModel creates a Claude-backed ChatModel. An empty modelName
// defaults to Claude Sonnet.
func NewChatModel(apiKey, modelName string) *ChatModel {
	if modelName == "" {
		modelName = "claude-sonnet-4-5-20250929"
	}
	return &ChatModel{apiKey: apiKey, modelName: modelName}
}

func (m *ChatModel) Chat(ctx context.Context, messages []model.Message) (string, error) {
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	if m.apiKey == "" {
		return "", errors.New("anthropic API key is required")
	}

	systemPrompt, conversation := extractSystemPrompt(messages)
	client := anthropicsdk.NewClient(option.WithAPIKey(m.apiKey))

	params := anthropicsdk.MessageNewParams{
		Model:     anthropicsdk.Model(m.modelName),
		Messages:  convertMessages(conversation),
		MaxTokens: 4096,
	}
	if systemPrompt != "" {
		params.System = []anthropicsdk.TextBlockParam{{Text: systemPrompt}}
	}

	resp, err := client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic API error: %w", err)
	}

	var out string
	for _, block := range resp.Content {
		if text := block.Text; text != "" {
			out += text
		}
	}
	return out, nil
}

func extractSystemPrompt(messages []model.Message) (string, []model.Message) {
	var system string
	conversation := make([]model.Message, 0, len(messages))
	for _, msg := range messages {
		if msg.Role == model.RoleSystem {
			if system != "" {
				system += "\n\n"
			}
			system += msg.Content
			continue
		}
		conversation = append(conversation, msg)
	}
	return system, conversation
}

func convertMessages(messages []model.Message) []anthropicsdk.MessageParam {
	out := make([]anthropicsdk.MessageParam, len(messages))
	for i, msg := range messages {
		switch msg.Role {
		case model.RoleAssistant:
			out[i] = anthropicsdk.NewAssistantMessage(anthropicsdk.NewTextBlock(msg.Content))
		default:
			out[i] = anthropicsdk.NewUserMessage(anthropicsdk.NewTextBlock(msg.Content))
		}
	}
	return out
}
