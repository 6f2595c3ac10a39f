package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"tablebook/models"

	genai "github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

type GeminiReplyGenerator struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

func NewGeminiReplyGenerator(ctx context.Context, apiKey, modelName string, maxPartySize int) (*GeminiReplyGenerator, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(fmt.Sprintf(systemPrompt, maxPartySize, strings.Join(allowedElements, ", ")))},
	}
	return &GeminiReplyGenerator{client: client, model: model}, nil
}

func (g *GeminiReplyGenerator) GenerateReply(ctx context.Context, history []models.ChatMessage, message string) (string, error) {
	chat := g.model.StartChat()
	for _, msg := range history {
		role := "user"
		if msg.Role == models.RoleAssistant {
			role = "model"
		}
		chat.History = append(chat.History, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(msg.Content)},
		})
	}

	resp, err := chat.SendMessage(ctx, genai.Text(message))
	if err != nil {
		return "", fmt.Errorf("gemini generate error: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("gemini returned no candidates")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return sb.String(), nil
}

func (g *GeminiReplyGenerator) Close() error {
	return g.client.Close()
}
