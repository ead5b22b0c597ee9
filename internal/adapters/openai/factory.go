package openai

import (
	"github.com/mikey/intent-router/internal/config"
	"github.com/mikey/intent-router/internal/core"
	"github.com/mikey/intent-router/internal/textproc"
	"go.uber.org/zap"
)

// Factory creates new instances of the OpenAI classifier
type Factory struct {
	cfg           *config.Config
	logger        *zap.Logger
	textProcessor *textproc.TextProcessor
}

// NewFactory creates a new factory for OpenAI classifiers
func NewFactory(cfg *config.Config, logger *zap.Logger, textProcessor *textproc.TextProcessor) *Factory {
	return &Factory{
		cfg:           cfg,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// CreateClassifier creates a new OpenAI-backed semantic classifier
func (f *Factory) CreateClassifier() (core.SemanticClassifier, error) {
	openaiCfg := f.cfg.GetOpenAI()

	return NewClassifier(
		openaiCfg.APIKey,
		openaiCfg.ModelName,
		openaiCfg.MaxTokens,
		openaiCfg.Temperature,
		openaiCfg.TopP,
		openaiCfg.MaxTextSize,
		f.logger,
		f.textProcessor,
	), nil
}
