// Package semantic holds the shared reply schema for the external
// LLM-backed classifiers.
package semantic

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mikey/intent-router/internal/core"
)

// Reply is the JSON object every provider is prompted to return.
type Reply struct {
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// Prompt builds the provider-independent classification prompt.
func Prompt(text string, allowed []core.Category) string {
	names := make([]string, len(allowed))
	for i, category := range allowed {
		names[i] = string(category)
	}

	return fmt.Sprintf(`You are a request classification system. Assign the user request below to exactly one of these categories: %s.
Respond with a JSON object containing:
- category: string (one of the listed categories)
- confidence: number between 0 and 1 (how confident you are in the assignment)
- reasoning: string (brief explanation of the choice)

Request:
%s

Respond only with the JSON object and nothing else.`, strings.Join(names, ", "), text)
}

// ParseReply validates raw model output against the reply schema. The
// category must be one of allowed and the confidence is clamped to
// [0,1]; anything else is an error the caller treats as classifier
// unavailability.
func ParseReply(raw string, allowed []core.Category) (*core.SemanticResult, error) {
	var reply Reply
	if err := json.Unmarshal([]byte(raw), &reply); err != nil {
		// Models sometimes wrap the object in prose; retry on the
		// outermost brace span.
		start := strings.Index(raw, "{")
		end := strings.LastIndex(raw, "}")
		if start < 0 || end <= start {
			return nil, fmt.Errorf("no JSON object in classifier reply: %w", err)
		}
		if err := json.Unmarshal([]byte(raw[start:end+1]), &reply); err != nil {
			return nil, fmt.Errorf("failed to parse classifier reply as JSON: %w", err)
		}
	}

	category := core.Category(strings.ToLower(strings.TrimSpace(reply.Category)))
	valid := false
	for _, candidate := range allowed {
		if category == candidate {
			valid = true
			break
		}
	}
	if !valid {
		return nil, fmt.Errorf("classifier returned unknown category %q", reply.Category)
	}

	confidence := reply.Confidence
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	return &core.SemanticResult{
		Category:   category,
		Confidence: confidence,
		Reasoning:  reply.Reasoning,
	}, nil
}
