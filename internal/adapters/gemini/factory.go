package gemini

import (
	"github.com/mikey/intent-router/internal/config"
	"github.com/mikey/intent-router/internal/core"
	"github.com/mikey/intent-router/internal/textproc"
	"go.uber.org/zap"
)

// Factory creates Gemini classifiers
type Factory struct {
	cfg           *config.Config
	logger        *zap.Logger
	textProcessor *textproc.TextProcessor
}

// NewFactory creates a new Gemini factory
func NewFactory(cfg *config.Config, logger *zap.Logger, textProcessor *textproc.TextProcessor) *Factory {
	return &Factory{
		cfg:           cfg,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// CreateClassifier creates a new Gemini-backed semantic classifier
func (f *Factory) CreateClassifier() (core.SemanticClassifier, error) {
	geminiCfg := f.cfg.GetGemini()

	return NewClassifier(
		geminiCfg.APIKey,
		geminiCfg.ModelName,
		geminiCfg.MaxTokens,
		geminiCfg.Temperature,
		geminiCfg.TopP,
		geminiCfg.MaxTextSize,
		f.logger,
		f.textProcessor,
	)
}
