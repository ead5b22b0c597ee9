package classifier

import (
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/mikey/intent-router/internal/core"
	"github.com/mikey/intent-router/internal/textproc"
	"go.uber.org/zap"
)

// categoryKeywords holds pre-stemmed keywords per category, stemmed
// with the same rules textproc applies to request text.
var categoryKeywords = map[core.Category][]string{
	core.CategoryCoding: {
		"code", "bug", "debug", "compil", "function", "program",
		"script", "python", "javascript", "golang", "refactor", "stack",
		"error", "deploy", "git",
	},
	core.CategoryWriting: {
		"write", "essay", "draft", "poem", "stori", "blog", "reword",
		"paragraph", "grammar", "proofread", "summariz", "letter",
	},
	core.CategoryResearch: {
		"research", "explain", "summar", "compar", "histori", "paper",
		"find", "sourc", "cite", "learn", "definit", "what", "why",
	},
	core.CategoryScheduling: {
		"schedul", "meet", "calendar", "remind", "appointment", "task",
		"todo", "deadlin", "plan", "tomorrow", "agenda",
	},
	core.CategoryEntertainment: {
		"play", "music", "song", "movi", "watch", "game", "playlist",
		"artist", "album", "show", "stream",
	},
	core.CategoryFinance: {
		"pay", "money", "invoic", "budget", "transfer", "bank",
		"stock", "invest", "expens", "bill", "dollar",
	},
}

// KeywordClassifier is the rule-free first stage of probabilistic
// classification: stem counting against per-category keyword tables.
type KeywordClassifier struct {
	textProcessor *textproc.TextProcessor
	keywords      map[core.Category]map[string]bool
	logger        *zap.Logger
}

// NewKeywordClassifier creates a keyword classifier over the built-in
// category tables.
func NewKeywordClassifier(textProcessor *textproc.TextProcessor, logger *zap.Logger) *KeywordClassifier {
	keywords := make(map[core.Category]map[string]bool, len(categoryKeywords))
	for category, words := range categoryKeywords {
		set := make(map[string]bool, len(words))
		for _, word := range words {
			set[word] = true
		}
		keywords[category] = set
	}
	return &KeywordClassifier{
		textProcessor: textProcessor,
		keywords:      keywords,
		logger:        logger,
	}
}

// matchCount counts stems of text present in a category's keyword set.
// Stems match on prefix as well, so "compiling" hits "compil".
func (c *KeywordClassifier) matchCount(stems []string, set map[string]bool) int {
	count := 0
	for _, stem := range stems {
		if set[stem] {
			count++
			continue
		}
		for keyword := range set {
			if len(keyword) >= 4 && len(stem) > len(keyword) && stem[:len(keyword)] == keyword {
				count++
				break
			}
		}
	}
	return count
}

// Classify scores each category by keyword matches and returns the
// winner with confidence min(0.7 + 0.1*matches, 0.9). Ties break by
// category declaration order. ok is false when nothing matched.
func (c *KeywordClassifier) Classify(text string) (*core.ClassificationResult, bool) {
	stems := c.textProcessor.StemTokens(text)

	var best core.Category
	bestCount := 0
	for _, category := range core.Categories {
		count := c.matchCount(stems, c.keywords[category])
		if count > bestCount {
			bestCount = count
			best = category
		}
	}

	if bestCount == 0 {
		return nil, false
	}

	confidence := math.Min(0.7+0.1*float64(bestCount), 0.9)
	c.logger.Debug("Keyword classification",
		zap.String("category", string(best)),
		zap.Int("matches", bestCount),
		zap.Float64("confidence", confidence))

	return &core.ClassificationResult{
		Category:     best,
		Provider:     core.ProviderFor(best),
		Confidence:   confidence,
		Source:       core.SourceML,
		ClassifiedAt: time.Now(),
		ProcessingID: uuid.NewString(),
	}, true
}
