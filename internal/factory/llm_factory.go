package factory

import (
	"fmt"

	"github.com/mikey/intent-router/internal/adapters/bedrock"
	"github.com/mikey/intent-router/internal/adapters/gemini"
	"github.com/mikey/intent-router/internal/adapters/openai"
	"github.com/mikey/intent-router/internal/config"
	"github.com/mikey/intent-router/internal/core"
	"github.com/mikey/intent-router/internal/textproc"
	"go.uber.org/zap"
)

// LLMFactory creates semantic classifier clients
type LLMFactory struct {
	cfg           *config.Config
	logger        *zap.Logger
	textProcessor *textproc.TextProcessor
}

// NewLLMFactory creates a new LLM factory
func NewLLMFactory(cfg *config.Config, logger *zap.Logger, textProcessor *textproc.TextProcessor) *LLMFactory {
	return &LLMFactory{
		cfg:           cfg,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// CreateSemanticClassifier creates a semantic classifier based on the
// configuration. Provider "none" disables semantic escalation entirely.
func (f *LLMFactory) CreateSemanticClassifier() (core.SemanticClassifier, error) {
	llmConfig := f.cfg.GetLLM()

	switch llmConfig.Provider {
	case "openai":
		factory := openai.NewFactory(f.cfg, f.logger, f.textProcessor)
		return factory.CreateClassifier()
	case "bedrock":
		factory := bedrock.NewFactory(f.cfg, f.logger, f.textProcessor)
		return factory.CreateClassifier()
	case "gemini":
		factory := gemini.NewFactory(f.cfg, f.logger, f.textProcessor)
		return factory.CreateClassifier()
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", llmConfig.Provider)
	}
}
