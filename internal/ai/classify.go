// Package ai wraps the OpenAI API for support-message classification and
// audio transcription.
package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/Agamista0/ava-support-backend/internal/domain"
)

const classifySystemPrompt = `You are a support triage assistant for a chat application.
Classify the user's support request and reply with a single JSON object:
{"category": one of "bug", "billing", "account", "feature_request", "general",
 "priority": one of "low", "medium", "high", "urgent",
 "summary": a one-sentence summary of the problem}
Reply with the JSON object only, no markdown, no code fences.`

// Classifier classifies support messages with a chat completion model.
type Classifier struct {
	client *openai.Client
	model  string
}

// NewClassifier creates a classifier. model defaults to gpt-4o-mini.
func NewClassifier(client *openai.Client, model string) *Classifier {
	if model == "" {
		model = openai.GPT4oMini
	}
	return &Classifier{client: client, model: model}
}

// Classify assigns a category, priority, and summary to the message.
func (c *Classifier) Classify(ctx context.Context, subject, message string) (*domain.Classification, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: classifySystemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: fmt.Sprintf("Subject: %s\n\n%s", subject, message),
			},
		},
		Temperature: 0.1,
	})
	if err != nil {
		return nil, fmt.Errorf("openai chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("empty response from openai")
	}

	var result domain.Classification
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(content), &result); err != nil {
		return nil, fmt.Errorf("parse classification %q: %w", content, err)
	}

	if !validCategory(result.Category) || !validPriority(result.Priority) {
		return nil, fmt.Errorf("classification out of range: %s/%s", result.Category, result.Priority)
	}

	return &result, nil
}

func validCategory(c string) bool {
	switch c {
	case "bug", "billing", "account", "feature_request", "general":
		return true
	}
	return false
}

func validPriority(p string) bool {
	switch p {
	case "low", "medium", "high", "urgent":
		return true
	}
	return false
}
