package openai

import (
	"context"
	"fmt"

	"github.com/mikey/intent-router/internal/adapters/semantic"
	"github.com/mikey/intent-router/internal/core"
	"github.com/mikey/intent-router/internal/textproc"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// Classifier is an implementation of the SemanticClassifier interface
// using OpenAI chat completions.
type Classifier struct {
	client        *openai.Client
	modelName     string
	maxTokens     int
	temperature   float32
	topP          float32
	maxTextSize   int
	logger        *zap.Logger
	textProcessor *textproc.TextProcessor
}

// NewClassifier creates a new OpenAI-backed semantic classifier.
func NewClassifier(
	apiKey string,
	modelName string,
	maxTokens int,
	temperature float32,
	topP float32,
	maxTextSize int,
	logger *zap.Logger,
	textProcessor *textproc.TextProcessor,
) *Classifier {
	return &Classifier{
		client:        openai.NewClient(apiKey),
		modelName:     modelName,
		maxTokens:     maxTokens,
		temperature:   temperature,
		topP:          topP,
		maxTextSize:   maxTextSize,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// ClassifyText assigns text to one of the allowed categories.
func (c *Classifier) ClassifyText(ctx context.Context, text string, allowed []core.Category) (*core.SemanticResult, error) {
	prompt := semantic.Prompt(c.textProcessor.ProcessText(text, c.maxTextSize), allowed)

	req := openai.ChatCompletionRequest{
		Model: c.modelName,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You are a request classification system. Respond only with JSON.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
		TopP:        c.topP,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: "json",
		},
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat completion with OpenAI: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("empty response from OpenAI")
	}

	result, err := semantic.ParseReply(resp.Choices[0].Message.Content, allowed)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("OpenAI classification",
		zap.String("category", string(result.Category)),
		zap.Float64("confidence", result.Confidence),
		zap.String("completion_id", resp.ID))

	return result, nil
}
