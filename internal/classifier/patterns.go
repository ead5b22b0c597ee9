package classifier

import (
	"regexp"
	"strings"

	"github.com/mikey/intent-router/internal/core"
	"go.uber.org/zap"
)

// RuleConfidence is the fixed confidence of any syntactic pattern hit.
// A syntactic match is trusted over semantic classification, so this is
// a deliberate constant rather than a graduated score.
const RuleConfidence = 0.9

// FieldSpec extracts one parameter from a template's capture groups.
type FieldSpec struct {
	Name     string
	Group    int
	Default  string
	Required bool
	// Lower folds the captured value to lowercase, for enum-like
	// fields such as the message channel or music player.
	Lower bool
}

// Template is one data-driven automation pattern. Templates are
// evaluated in declaration order and the first match wins; overlapping
// templates rely on that ordering.
type Template struct {
	Type             string
	Service          string
	Pattern          *regexp.Regexp
	Fields           []FieldSpec
	RequiredServices []string
	Confirmation     string
}

// DefaultTemplates returns the built-in automation templates. Order is
// a correctness contract: the more specific templates come first.
func DefaultTemplates() []Template {
	return []Template{
		{
			Type:    "message-schedule",
			Service: "whatsapp",
			Pattern: regexp.MustCompile(`(?i)^send\s+(?:a\s+|an\s+)?(?:(whatsapp|text|sms|telegram)\s+)?message\s+to\s+(\w+)\s+saying\s+(.+?)(?:\s+at\s+(.+))?$`),
			Fields: []FieldSpec{
				{Name: "channel", Group: 1, Default: "whatsapp", Lower: true},
				{Name: "recipient", Group: 2, Required: true},
				{Name: "content", Group: 3, Required: true},
				{Name: "time", Group: 4, Default: "now"},
			},
			RequiredServices: []string{"whatsapp"},
			Confirmation:     "Send {{content}} to {{recipient}}{{#time}} at {{time}}{{/time}}",
		},
		{
			Type:    "ride-request",
			Service: "uber",
			Pattern: regexp.MustCompile(`(?i)^(?:book|get|order|call)\s+(?:me\s+)?(?:a|an)\s+(?:uber|lyft|ride|taxi|cab)(?:\s+to\s+(.+))?$`),
			Fields: []FieldSpec{
				{Name: "destination", Group: 1, Required: true},
			},
			RequiredServices: []string{"uber"},
			Confirmation:     "Request a ride{{#destination}} to {{destination}}{{/destination}}",
		},
		{
			Type:    "food-order",
			Service: "doordash",
			Pattern: regexp.MustCompile(`(?i)^order\s+(?:me\s+)?(?:some\s+)?(.+?)\s+from\s+([\w' ]+)$`),
			Fields: []FieldSpec{
				{Name: "item", Group: 1, Required: true},
				{Name: "restaurant", Group: 2, Required: true},
			},
			RequiredServices: []string{"doordash"},
			Confirmation:     "Order {{item}} from {{restaurant}}",
		},
		{
			Type:    "calendar-event",
			Service: "google-calendar",
			Pattern: regexp.MustCompile(`(?i)^(?:schedule|create|add|set\s+up)\s+(?:a\s+|an\s+)?(?:meeting|event|appointment|call)(?:\s+with\s+([\w ]+?))?(?:\s+(?:at|on|for)\s+(.+))?$`),
			Fields: []FieldSpec{
				{Name: "attendee", Group: 1},
				{Name: "time", Group: 2, Required: true},
			},
			RequiredServices: []string{"google-calendar"},
			Confirmation:     "Create an event{{#attendee}} with {{attendee}}{{/attendee}}{{#time}} at {{time}}{{/time}}",
		},
		{
			Type:    "music-control",
			Service: "spotify",
			Pattern: regexp.MustCompile(`(?i)^play\s+(.+?)(?:\s+on\s+(spotify|apple\s+music))?$`),
			Fields: []FieldSpec{
				{Name: "query", Group: 1, Required: true},
				{Name: "player", Group: 2, Default: "spotify", Lower: true},
			},
			RequiredServices: []string{"spotify"},
			Confirmation:     "Play {{query}} on {{player}}",
		},
		{
			Type:    "payment",
			Service: "venmo",
			Pattern: regexp.MustCompile(`(?i)^(?:send|pay|transfer)\s+\$?(\d+(?:\.\d{1,2})?)\s*(?:dollars\s+)?to\s+(\w+)(?:\s+for\s+(.+))?$`),
			Fields: []FieldSpec{
				{Name: "amount", Group: 1, Required: true},
				{Name: "recipient", Group: 2, Required: true},
				{Name: "description", Group: 3},
			},
			RequiredServices: []string{"venmo"},
			Confirmation:     "Send ${{amount}} to {{recipient}}{{#description}} for {{description}}{{/description}}",
		},
	}
}

// PatternMatcher detects automation commands against an ordered
// template list.
type PatternMatcher struct {
	templates []Template
	logger    *zap.Logger
}

// NewPatternMatcher creates a matcher over templates.
func NewPatternMatcher(templates []Template, logger *zap.Logger) *PatternMatcher {
	return &PatternMatcher{
		templates: templates,
		logger:    logger,
	}
}

// Match evaluates the templates in declaration order and returns the
// first hit, or nil when the text is not an automation command. A match
// with missing required fields is still returned with empty values in
// Params; callers check it with Validate before executing anything.
func (m *PatternMatcher) Match(text string) *core.AutomationMatch {
	trimmed := strings.TrimSpace(text)

	for _, tmpl := range m.templates {
		groups := tmpl.Pattern.FindStringSubmatch(trimmed)
		if groups == nil {
			continue
		}

		params := make(map[string]string, len(tmpl.Fields))
		for _, field := range tmpl.Fields {
			value := ""
			if field.Group < len(groups) {
				value = strings.TrimSpace(groups[field.Group])
			}
			if value == "" {
				value = field.Default
			}
			if field.Lower {
				value = strings.ToLower(value)
			}
			params[field.Name] = value
		}

		m.logger.Debug("Automation pattern matched",
			zap.String("type", tmpl.Type),
			zap.String("service", tmpl.Service))

		return &core.AutomationMatch{
			Type:             tmpl.Type,
			Service:          tmpl.Service,
			Params:           params,
			RequiredServices: append([]string(nil), tmpl.RequiredServices...),
			Confidence:       RuleConfidence,
			Confirmation:     RenderConfirmation(tmpl.Confirmation, params),
			OriginalText:     text,
		}
	}

	return nil
}

// Validate reports the required fields an automation match failed to
// capture. A nil return means the match is executable.
func (m *PatternMatcher) Validate(match *core.AutomationMatch) *core.ValidationError {
	var tmpl *Template
	for i := range m.templates {
		if m.templates[i].Type == match.Type {
			tmpl = &m.templates[i]
			break
		}
	}
	if tmpl == nil {
		return nil
	}

	var missing []string
	for _, field := range tmpl.Fields {
		if field.Required && match.Params[field.Name] == "" {
			missing = append(missing, field.Name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return &core.ValidationError{AutomationType: match.Type, Missing: missing}
}
