package gemini

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"github.com/mikey/intent-router/internal/adapters/semantic"
	"github.com/mikey/intent-router/internal/core"
	"github.com/mikey/intent-router/internal/textproc"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// Classifier is an implementation of the SemanticClassifier interface
// using Google Gemini.
type Classifier struct {
	client        *genai.Client
	model         *genai.GenerativeModel
	modelName     string
	maxTextSize   int
	logger        *zap.Logger
	textProcessor *textproc.TextProcessor
}

// NewClassifier creates a new Gemini-backed semantic classifier.
func NewClassifier(
	apiKey string,
	modelName string,
	maxTokens int,
	temperature float32,
	topP float32,
	maxTextSize int,
	logger *zap.Logger,
	textProcessor *textproc.TextProcessor,
) (*Classifier, error) {
	client, err := genai.NewClient(context.Background(), option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(temperature)
	model.SetTopP(topP)
	model.SetMaxOutputTokens(int32(maxTokens))

	return &Classifier{
		client:        client,
		model:         model,
		modelName:     modelName,
		maxTextSize:   maxTextSize,
		logger:        logger,
		textProcessor: textProcessor,
	}, nil
}

// Close closes the Gemini client.
func (c *Classifier) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// ClassifyText assigns text to one of the allowed categories.
func (c *Classifier) ClassifyText(ctx context.Context, text string, allowed []core.Category) (*core.SemanticResult, error) {
	prompt := semantic.Prompt(c.textProcessor.ProcessText(text, c.maxTextSize), allowed)

	resp, err := c.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return nil, fmt.Errorf("failed to generate content with Gemini: %w", err)
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("empty response from Gemini")
	}

	responseText := fmt.Sprintf("%v", resp.Candidates[0].Content.Parts[0])

	result, err := semantic.ParseReply(responseText, allowed)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("Gemini classification",
		zap.String("category", string(result.Category)),
		zap.Float64("confidence", result.Confidence),
		zap.String("model_name", c.modelName))

	return result, nil
}
