package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mikey/intent-router/internal/config"
	"github.com/mikey/intent-router/internal/core"
	"github.com/mikey/intent-router/internal/factory"
	"github.com/mikey/intent-router/internal/logging"
	"go.uber.org/zap"
)

var (
	// LLM provider flags
	provider    = flag.String("provider", "none", "Semantic classifier provider (openai, bedrock, gemini, none)")
	maxTokens   = flag.Int("max-tokens", 500, "Maximum tokens for the classifier response")
	temperature = flag.Float64("temperature", 0.0, "Temperature for the classifier")
	topP        = flag.Float64("top-p", 0.9, "Top-p for the classifier")
	maxTextSize = flag.Int("max-text-size", 2048, "Maximum request text size to send to the classifier")

	// Bedrock flags
	bedrockRegion  = flag.String("bedrock-region", "us-east-1", "AWS region for Bedrock")
	bedrockModelID = flag.String("bedrock-model", "anthropic.claude-v2", "Bedrock model ID")

	// Gemini flags
	geminiAPIKey    = flag.String("gemini-api-key", "", "API key for Google Gemini")
	geminiModelName = flag.String("gemini-model", "gemini-pro", "Gemini model name")

	// OpenAI flags
	openaiAPIKey    = flag.String("openai-api-key", "", "API key for OpenAI")
	openaiModelName = flag.String("openai-model", "gpt-4", "OpenAI model name")

	// Routing flags
	preferredProvider = flag.String("preferred-provider", "", "Provider preference applied on fallback")
	userID            = flag.String("user", "cli", "User id for automation connectivity checks")

	// Input flags
	text       = flag.String("text", "", "Request text (use stdin if not specified)")
	verbose    = flag.Bool("verbose", false, "Enable verbose logging")
	jsonLog    = flag.Bool("json-log", false, "Output logs in JSON format")
	configFile = flag.String("config", "", "Path to config file (overrides command line flags)")
)

func main() {
	flag.Parse()

	var cfg *config.Config
	var err error

	// Initialize logger
	logger, err := logging.InitConsoleLogger(*verbose, *jsonLog)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// Load configuration from file if specified
	if *configFile != "" {
		cfg, err = config.New()
		if err != nil {
			logger.Fatal("Failed to load configuration", zap.Error(err))
		}
		logger.Info("Loaded configuration from file", zap.String("file", cfg.GetViper().ConfigFileUsed()))
	} else {
		// Create config from command line flags
		cfg = createConfigFromFlags()
	}

	// Read request text from flag or stdin
	requestText := *text
	if requestText == "" {
		logger.Info("Reading request text from stdin")
		raw, err := io.ReadAll(bufio.NewReader(os.Stdin))
		if err != nil {
			logger.Fatal("Failed to read stdin", zap.Error(err))
		}
		requestText = strings.TrimSpace(string(raw))
	}
	if requestText == "" {
		logger.Fatal("No request text provided")
	}

	// Assemble the router without persistence
	textProcessor := factory.NewTextProcessorFactory(logger).CreateTextProcessor()

	semantic, err := factory.NewLLMFactory(cfg, logger, textProcessor).CreateSemanticClassifier()
	if err != nil {
		logger.Fatal("Failed to create semantic classifier", zap.Error(err))
	}

	store, err := factory.NewCacheFactory(cfg, logger).CreateCacheStore(nil)
	if err != nil {
		logger.Fatal("Failed to create cache store", zap.Error(err))
	}
	defer store.Stop()

	router, err := factory.NewRouterFactory(cfg, logger).CreateRouter(store, semantic, nil, textProcessor)
	if err != nil {
		logger.Fatal("Failed to create router", zap.Error(err))
	}

	// Print request summary
	fmt.Printf("\n=== Request ===\n")
	fmt.Printf("Text: %s\n", requestText)
	fmt.Printf("Provider backend: %s\n", cfg.GetString("llm.provider"))
	fmt.Printf("\n")

	startTime := time.Now()

	// Automation detection first; a syntactic hit is the stronger signal
	match, err := router.DetectAutomation(context.Background(), requestText, *userID)
	if err != nil {
		var verr *core.ValidationError
		if errors.As(err, &verr) {
			fmt.Printf("=== Automation (incomplete) ===\n")
			fmt.Printf("Type: %s\n", match.Type)
			fmt.Printf("Missing parameters: %s\n", strings.Join(verr.Missing, ", "))
			fmt.Printf("\n")
		} else {
			logger.Fatal("Automation detection failed", zap.Error(err))
		}
	} else if match != nil {
		fmt.Printf("=== Automation ===\n")
		fmt.Printf("Type: %s\n", match.Type)
		fmt.Printf("Service: %s\n", match.Service)
		fmt.Printf("Confidence: %.2f\n", match.Confidence)
		fmt.Printf("Confirmation: %s\n", match.Confirmation)
		for name, value := range match.Params {
			fmt.Printf("  %s: %s\n", name, value)
		}
		if match.NeedsConnection {
			fmt.Printf("Needs connection: %s\n", strings.Join(match.MissingServices, ", "))
		}
		fmt.Printf("\n")
	}

	result := router.Classify(context.Background(), requestText, core.RequestContext{
		PreferredProvider: *preferredProvider,
	})
	duration := time.Since(startTime)

	// Print results
	fmt.Printf("=== Classification ===\n")
	fmt.Printf("Category: %s\n", result.Category)
	fmt.Printf("Provider: %s\n", result.Provider)
	fmt.Printf("Confidence: %.4f\n", result.Confidence)
	fmt.Printf("Source: %s\n", result.Source)
	if result.Reasoning != "" {
		fmt.Printf("Reasoning: %s\n", result.Reasoning)
	}
	fmt.Printf("Processing time: %v\n", duration)

	// Close any resources that need closing
	if closer, ok := semantic.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Error("Failed to close semantic classifier", zap.Error(err))
		}
	}
}

// createConfigFromFlags creates a configuration from command line flags
func createConfigFromFlags() *config.Config {
	v := config.NewEmptyViper()

	// Set LLM provider
	v.Set("llm.provider", *provider)

	// Set provider-specific configuration
	switch *provider {
	case "bedrock":
		v.Set("bedrock.region", *bedrockRegion)
		v.Set("bedrock.model_id", *bedrockModelID)
		v.Set("bedrock.max_tokens", *maxTokens)
		v.Set("bedrock.temperature", *temperature)
		v.Set("bedrock.top_p", *topP)
		v.Set("bedrock.max_text_size", *maxTextSize)
	case "gemini":
		v.Set("gemini.api_key", *geminiAPIKey)
		v.Set("gemini.model_name", *geminiModelName)
		v.Set("gemini.max_tokens", *maxTokens)
		v.Set("gemini.temperature", *temperature)
		v.Set("gemini.top_p", *topP)
		v.Set("gemini.max_text_size", *maxTextSize)
	case "openai":
		v.Set("openai.api_key", *openaiAPIKey)
		v.Set("openai.model_name", *openaiModelName)
		v.Set("openai.max_tokens", *maxTokens)
		v.Set("openai.temperature", *temperature)
		v.Set("openai.top_p", *topP)
		v.Set("openai.max_text_size", *maxTextSize)
	}

	return config.NewFromViper(v)
}
