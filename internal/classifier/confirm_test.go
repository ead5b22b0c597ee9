package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderConfirmation(t *testing.T) {
	t.Run("substitutes plain placeholders", func(t *testing.T) {
		out := RenderConfirmation("Send {{content}} to {{recipient}}", map[string]string{
			"content":   "hi",
			"recipient": "Bob",
		})
		assert.Equal(t, "Send hi to Bob", out)
	})

	t.Run("drops conditional blocks for absent fields", func(t *testing.T) {
		template := "Send {{content}} to {{recipient}}{{#description}} for {{description}}{{/description}}"
		out := RenderConfirmation(template, map[string]string{
			"content":   "hi",
			"recipient": "Bob",
		})
		assert.Equal(t, "Send hi to Bob", out)
		assert.NotContains(t, out, "{{")
	})

	t.Run("keeps conditional blocks for present fields", func(t *testing.T) {
		template := "Send {{content}} to {{recipient}}{{#description}} for {{description}}{{/description}}"
		out := RenderConfirmation(template, map[string]string{
			"content":     "hi",
			"recipient":   "Bob",
			"description": "the party",
		})
		assert.Equal(t, "Send hi to Bob for the party", out)
	})

	t.Run("absent placeholders render empty", func(t *testing.T) {
		out := RenderConfirmation("Play {{query}} on {{player}}", map[string]string{
			"query": "jazz",
		})
		assert.Equal(t, "Play jazz on", out)
	})

	t.Run("empty string counts as absent in conditionals", func(t *testing.T) {
		template := "Request a ride{{#destination}} to {{destination}}{{/destination}}"
		out := RenderConfirmation(template, map[string]string{"destination": ""})
		assert.Equal(t, "Request a ride", out)
	})

	t.Run("multiple conditional blocks resolve independently", func(t *testing.T) {
		template := "Create an event{{#attendee}} with {{attendee}}{{/attendee}}{{#time}} at {{time}}{{/time}}"
		out := RenderConfirmation(template, map[string]string{"time": "3pm"})
		assert.Equal(t, "Create an event at 3pm", out)
	})
}
