package classifier

import (
	"regexp"
	"strings"
)

var (
	conditionalBlockRe = regexp.MustCompile(`\{\{#(\w+)\}\}(.*?)\{\{/\w+\}\}`)
	placeholderRe      = regexp.MustCompile(`\{\{(\w+)\}\}`)
)

// RenderConfirmation renders a confirmation template in two passes:
// first `{{#field}}...{{/field}}` conditional blocks are kept or
// dropped depending on whether params[field] is non-empty, then plain
// `{{field}}` placeholders are substituted (absent fields render
// empty). Nested conditional blocks are unsupported.
func RenderConfirmation(template string, params map[string]string) string {
	rendered := conditionalBlockRe.ReplaceAllStringFunc(template, func(block string) string {
		groups := conditionalBlockRe.FindStringSubmatch(block)
		if params[groups[1]] == "" {
			return ""
		}
		return groups[2]
	})

	rendered = placeholderRe.ReplaceAllStringFunc(rendered, func(placeholder string) string {
		name := placeholderRe.FindStringSubmatch(placeholder)[1]
		return params[name]
	})

	return strings.TrimSpace(rendered)
}
