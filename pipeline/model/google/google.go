// Package google adapts Google's Gemini API (generative-ai-go) to the
// pipeline runner's model.ChatModel interface.
package google

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/flowstage/flowstage/pipeline/model"
)

// ChatModel implements model.ChatModel against a Gemini generative model.
type ChatModel struct {
	apiKey    string
	modelName string
}

// NewChatModel creates a Gemini-backed ChatModel. An empty modelName
// defaults to gemini-1.5-pro.
func NewChatModel(apiKey, modelName string) *ChatModel {
	if modelName == "" {
		modelName = "gemini-1.5-pro"
	}
	return &ChatModel{apiKey: apiKey, modelName: modelName}
}

func (m *ChatModel) Chat(ctx context.Context, messages []model.Message) (string, error) {
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	if m.apiKey == "" {
		return "", errors.New("google API key is required")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(m.apiKey))
	if err != nil {
		return "", fmt.Errorf("failed to create google client: %w", err)
	}
	defer client.Close()

	genModel := client.GenerativeModel(m.modelName)
	var system string
	var parts []genai.Part
	for _, msg := range messages {
		if msg.Role == model.RoleSystem {
			system = msg.Content
			continue
		}
		if msg.Content != "" {
			parts = append(parts, genai.Text(msg.Content))
		}
	}
	if system != "" {
		genModel.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}

	resp, err := genModel.GenerateContent(ctx, parts...)
	if err != nil {
		return "", fmt.Errorf("google API error: %w", err)
	}

	var out string
	if resp != nil {
		for _, cand := range resp.Candidates {
			if cand.Content == nil {
				continue
			}
			for _, p := range cand.Content.Parts {
				if text, ok := p.(genai.Text); ok {
					out += string(text)
				}
			}
		}
	}
	return out, nil
}
