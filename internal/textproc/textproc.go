package textproc

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// TextProcessor provides normalization, tokenizing and stemming for
// request text and derives stable cache keys from it.
type TextProcessor struct {
	logger *zap.Logger
	folder transform.Transformer
}

// NewTextProcessor creates a new TextProcessor.
func NewTextProcessor(logger *zap.Logger) *TextProcessor {
	return &TextProcessor{
		logger: logger,
		// NFD decomposition followed by removal of combining marks
		// folds accented characters to their ASCII base.
		folder: transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC),
	}
}

// stopwords are dropped before scoring and key derivation so filler
// words never influence classification.
var stopwords = map[string]bool{
	"a": true, "an": true, "the": true, "is": true, "are": true,
	"was": true, "be": true, "to": true, "of": true, "and": true,
	"or": true, "in": true, "on": true, "at": true, "for": true,
	"it": true, "my": true, "me": true, "i": true, "you": true,
	"please": true, "can": true, "could": true, "would": true,
	"do": true, "does": true, "with": true, "this": true, "that": true,
}

// Normalize lowercases text, folds diacritics and collapses whitespace.
func (tp *TextProcessor) Normalize(text string) string {
	folded, _, err := transform.String(tp.folder, text)
	if err != nil {
		// Fold failures leave the original text in place.
		folded = text
	}
	return strings.Join(strings.Fields(strings.ToLower(folded)), " ")
}

// Tokenize splits normalized text into alphanumeric tokens, dropping
// stopwords.
func (tp *TextProcessor) Tokenize(text string) []string {
	normalized := tp.Normalize(text)
	raw := strings.FieldsFunc(normalized, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})

	tokens := make([]string, 0, len(raw))
	for _, token := range raw {
		if stopwords[token] {
			continue
		}
		tokens = append(tokens, token)
	}
	return tokens
}

// Stem reduces a token to a crude stem by stripping common English
// suffixes and folding a trailing consonant-y to i, so "story" and
// "stories" share the stem "stori". It is intentionally light: keyword
// tables are stored pre-stemmed with the same rules, so only
// consistency matters.
func (tp *TextProcessor) Stem(token string) string {
	for _, suffix := range []string{"ing", "edly", "ed", "ly", "es", "s"} {
		if strings.HasSuffix(token, suffix) && len(token)-len(suffix) >= 3 {
			return token[:len(token)-len(suffix)]
		}
	}
	if strings.HasSuffix(token, "y") && len(token) >= 4 && !isVowel(token[len(token)-2]) {
		return token[:len(token)-1] + "i"
	}
	return token
}

func isVowel(c byte) bool {
	switch c {
	case 'a', 'e', 'i', 'o', 'u':
		return true
	}
	return false
}

// StemTokens tokenizes text and stems each token.
func (tp *TextProcessor) StemTokens(text string) []string {
	tokens := tp.Tokenize(text)
	stems := make([]string, len(tokens))
	for i, token := range tokens {
		stems[i] = tp.Stem(token)
	}
	return stems
}

// CacheKey derives the cache key for a piece of request text: stemmed
// tokens, deduplicated and sorted, joined with ':'. Paraphrases that
// merely reorder words collapse to the same key.
func (tp *TextProcessor) CacheKey(text string) string {
	stems := tp.StemTokens(text)
	seen := make(map[string]bool, len(stems))
	unique := stems[:0]
	for _, stem := range stems {
		if seen[stem] {
			continue
		}
		seen[stem] = true
		unique = append(unique, stem)
	}
	sort.Strings(unique)
	if len(unique) == 0 {
		return "empty"
	}
	return strings.Join(unique, ":")
}

// SanitizeUTF8 ensures the string contains only valid UTF-8 characters.
func (tp *TextProcessor) SanitizeUTF8(text string) string {
	if utf8.ValidString(text) {
		return text
	}

	result := make([]rune, 0, len(text))
	for i, r := range text {
		if r == utf8.RuneError {
			_, size := utf8.DecodeRuneInString(text[i:])
			if size == 1 {
				// Skip invalid UTF-8 sequences
				continue
			}
		}
		result = append(result, r)
	}

	tp.logger.Debug("Text sanitized",
		zap.Int("original_size", len(text)),
		zap.Int("sanitized_size", len(string(result))))

	return string(result)
}

// TruncateText safely truncates text to the specified maximum size and
// ensures the result is valid UTF-8.
func (tp *TextProcessor) TruncateText(text string, maxSize int) string {
	if maxSize <= 0 || len(text) <= maxSize {
		return text
	}

	truncated := text[:maxSize]
	for !utf8.ValidString(truncated) && len(truncated) > 0 {
		truncated = truncated[:len(truncated)-1]
	}

	tp.logger.Debug("Text truncated",
		zap.Int("original_size", len(text)),
		zap.Int("truncated_size", len(truncated)),
		zap.Int("max_size", maxSize))

	return truncated
}

// ProcessText truncates and sanitizes text in one operation before it
// is sent to an external classifier.
func (tp *TextProcessor) ProcessText(text string, maxSize int) string {
	return tp.SanitizeUTF8(tp.TruncateText(text, maxSize))
}
