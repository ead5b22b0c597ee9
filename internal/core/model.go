package core

import (
	"fmt"
	"strings"
	"time"
)

// Category is a classification bucket for incoming request text.
type Category string

const (
	CategoryCoding        Category = "coding"
	CategoryWriting       Category = "writing"
	CategoryResearch      Category = "research"
	CategoryScheduling    Category = "scheduling"
	CategoryEntertainment Category = "entertainment"
	CategoryFinance       Category = "finance"
	// CategoryAutomation marks text recognized as an automation
	// command rather than a conversational query.
	CategoryAutomation Category = "automation"
	CategoryFallback   Category = "fallback"
)

// Categories lists every classifiable category in declaration order.
// Keyword score ties are broken by this order.
var Categories = []Category{
	CategoryCoding,
	CategoryWriting,
	CategoryResearch,
	CategoryScheduling,
	CategoryEntertainment,
	CategoryFinance,
}

// DefaultProvider is the safe provider used whenever classification
// cannot produce a confident answer.
const DefaultProvider = "general-assistant"

// providerTable maps each category to exactly one downstream provider.
var providerTable = map[Category]string{
	CategoryCoding:        "code-assistant",
	CategoryWriting:       "writing-assistant",
	CategoryResearch:      "research-assistant",
	CategoryScheduling:    "task-manager",
	CategoryEntertainment: "media-controller",
	CategoryFinance:       "finance-assistant",
	CategoryAutomation:    "automation-engine",
}

// ProviderFor resolves a category to its provider. Unmapped categories
// (including CategoryFallback) resolve to the safe default.
func ProviderFor(category Category) string {
	if provider, ok := providerTable[category]; ok {
		return provider
	}
	return DefaultProvider
}

// Providers lists the known provider ids in category declaration order,
// used when scanning an availability map for a deterministic fallback.
func Providers() []string {
	providers := make([]string, 0, len(Categories)+1)
	for _, category := range Categories {
		providers = append(providers, providerTable[category])
	}
	return append(providers, DefaultProvider)
}

// ResultSource identifies which stage of the pipeline produced a result.
type ResultSource string

const (
	SourceRule     ResultSource = "rule"
	SourceML       ResultSource = "ml"
	SourceFallback ResultSource = "fallback"
)

// RequestContext carries optional caller hints for classification.
type RequestContext struct {
	// PreferredProvider, when set, wins over any availability scan
	// during fallback.
	PreferredProvider string
	// ProviderAvailability marks which providers are currently usable.
	ProviderAvailability map[string]bool
}

// ClassificationRequest represents a single request to classify.
type ClassificationRequest struct {
	Text    string
	Context RequestContext
}

// ClassificationResult is the immutable outcome of classifying one request.
type ClassificationResult struct {
	Category     Category
	Provider     string
	Confidence   float64
	Source       ResultSource
	Reasoning    string
	ClassifiedAt time.Time
	ProcessingID string
}

// AutomationMatch describes a recognized automation command and the
// parameters extracted from it.
type AutomationMatch struct {
	Type             string            `json:"type"`
	Service          string            `json:"service"`
	Params           map[string]string `json:"params"`
	RequiredServices []string          `json:"required_services"`
	Confidence       float64           `json:"confidence"`
	Confirmation     string            `json:"confirmation"`
	OriginalText     string            `json:"original_text"`

	// NeedsConnection is set when the user still has to connect one or
	// more of the required services before the automation can run.
	NeedsConnection bool     `json:"needs_connection"`
	MissingServices []string `json:"missing_services,omitempty"`
}

// SemanticResult is the validated reply of the external semantic classifier.
type SemanticResult struct {
	Category   Category
	Confidence float64
	Reasoning  string
}

// ValidationError reports an automation match whose required parameters
// could not be extracted. The match must not be executed until the
// caller supplies the missing fields.
type ValidationError struct {
	AutomationType string
	Missing        []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("automation %q is missing required parameters: %s",
		e.AutomationType, strings.Join(e.Missing, ", "))
}
