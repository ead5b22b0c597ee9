package core

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Confidence thresholds for the routing pipeline.
const (
	// RuleThreshold gates pattern-matcher results into the cache.
	RuleThreshold = 0.8
	// MLThreshold gates probabilistic results into the cache.
	MLThreshold = 0.6
	// EscalateThreshold is the keyword confidence below which the
	// external semantic classifier is consulted.
	EscalateThreshold = 0.8
	// FallbackConfidence is reported when every stage came up empty.
	FallbackConfidence = 0.5
)

// KeyDeriver turns request text into a stable cache key.
type KeyDeriver interface {
	CacheKey(text string) string
}

// RouterService orchestrates cache, pattern matching and probabilistic
// classification into a single classify/detect entry point. Every
// internal failure degrades to the safe default provider; the caller
// never sees a classification error.
type RouterService struct {
	cache     Cache
	patterns  PatternMatcher
	keywords  KeywordClassifier
	semantic  SemanticClassifier
	oracle    ConnectionOracle
	keys      KeyDeriver
	logger    *zap.Logger
	resultsNS string
	matchNS   string
	mlTimeout time.Duration
}

// NewRouterService creates the router. semantic and oracle may be nil;
// the corresponding stages are then skipped.
func NewRouterService(
	cache Cache,
	patterns PatternMatcher,
	keywords KeywordClassifier,
	semantic SemanticClassifier,
	oracle ConnectionOracle,
	keys KeyDeriver,
	logger *zap.Logger,
	resultsNS string,
	matchNS string,
	mlTimeout time.Duration,
) *RouterService {
	return &RouterService{
		cache:     cache,
		patterns:  patterns,
		keywords:  keywords,
		semantic:  semantic,
		oracle:    oracle,
		keys:      keys,
		logger:    logger,
		resultsNS: resultsNS,
		matchNS:   matchNS,
		mlTimeout: mlTimeout,
	}
}

// Classify routes request text to a provider. It checks the cache, then
// the pattern matcher, then keyword scoring with semantic escalation,
// and finally falls back to context hints or the default provider. It
// never returns an error: any unexpected failure yields the safe
// default.
func (s *RouterService) Classify(ctx context.Context, text string, reqCtx RequestContext) (result *ClassificationResult) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Recovered from classification panic", zap.Any("panic", r))
			result = s.fallbackResult(reqCtx, "classification failed unexpectedly")
		}
	}()

	key := s.keys.CacheKey(text)

	cached, err := s.cache.GetWithRevalidate(s.resultsNS, key, func(fetchCtx context.Context) (any, error) {
		return s.classifyUncached(fetchCtx, text, reqCtx), nil
	})
	if err == nil {
		if res, ok := cached.(*ClassificationResult); ok {
			return res
		}
		// A persisted blob or foreign type under this key: reclassify.
		s.cache.Invalidate(s.resultsNS, key)
	} else {
		s.logger.Warn("Cache lookup failed", zap.String("key", key), zap.Error(err))
	}

	result = s.classifyUncached(ctx, text, reqCtx)
	s.cache.Set(s.resultsNS, key, result, 0)
	return result
}

// classifyUncached runs the pattern, keyword and fallback stages.
func (s *RouterService) classifyUncached(ctx context.Context, text string, reqCtx RequestContext) *ClassificationResult {
	if match := s.patterns.Match(text); match != nil && match.Confidence > RuleThreshold {
		s.logger.Debug("Rule-based classification",
			zap.String("type", match.Type),
			zap.String("service", match.Service))
		return &ClassificationResult{
			Category:     CategoryAutomation,
			Provider:     ProviderFor(CategoryAutomation),
			Confidence:   match.Confidence,
			Source:       SourceRule,
			Reasoning:    "matched automation template " + match.Type,
			ClassifiedAt: time.Now(),
			ProcessingID: uuid.NewString(),
		}
	}

	if result := s.classifyProbabilistic(ctx, text); result != nil && result.Confidence >= MLThreshold {
		return result
	}

	return s.fallbackResult(reqCtx, "no stage produced a confident answer")
}

// classifyProbabilistic runs keyword scoring, escalating to the
// external semantic classifier when confidence is low. Classifier
// failure degrades silently to the keyword result or nil.
func (s *RouterService) classifyProbabilistic(ctx context.Context, text string) *ClassificationResult {
	keyword, ok := s.keywords.Classify(text)
	if ok && keyword.Confidence >= EscalateThreshold {
		return keyword
	}

	if s.semantic == nil {
		if ok {
			return keyword
		}
		return nil
	}

	semanticCtx, cancel := context.WithTimeout(ctx, s.mlTimeout)
	defer cancel()

	semantic, err := s.semantic.ClassifyText(semanticCtx, text, Categories)
	if err != nil {
		s.logger.Debug("Semantic classifier unavailable, degrading",
			zap.Error(err))
		if ok {
			return keyword
		}
		return nil
	}

	return &ClassificationResult{
		Category:     semantic.Category,
		Provider:     ProviderFor(semantic.Category),
		Confidence:   semantic.Confidence,
		Source:       SourceML,
		Reasoning:    semantic.Reasoning,
		ClassifiedAt: time.Now(),
		ProcessingID: uuid.NewString(),
	}
}

// fallbackResult picks the safest provider available: the caller's
// preference, then the first available provider in declaration order,
// then the default.
func (s *RouterService) fallbackResult(reqCtx RequestContext, reason string) *ClassificationResult {
	provider := DefaultProvider
	if reqCtx.PreferredProvider != "" {
		provider = reqCtx.PreferredProvider
	} else if len(reqCtx.ProviderAvailability) > 0 {
		for _, candidate := range Providers() {
			if reqCtx.ProviderAvailability[candidate] {
				provider = candidate
				break
			}
		}
	}

	return &ClassificationResult{
		Category:     CategoryFallback,
		Provider:     provider,
		Confidence:   FallbackConfidence,
		Source:       SourceFallback,
		Reasoning:    reason,
		ClassifiedAt: time.Now(),
		ProcessingID: uuid.NewString(),
	}
}

// DetectAutomation checks text against the automation templates. A nil
// match means the text is conversational, not an error. When the match
// misses required parameters a *ValidationError is returned alongside
// it so the caller can prompt for the gaps; the match must not execute
// until the error is resolved.
func (s *RouterService) DetectAutomation(ctx context.Context, text, userID string) (*AutomationMatch, error) {
	key := "auto:" + s.keys.CacheKey(text)

	match, ok := s.cachedMatch(key)
	if !ok {
		if match = s.patterns.Match(text); match == nil {
			return nil, nil
		}
		s.cache.Set(s.matchNS, key, match, 0)
	}

	match = s.withConnectivity(ctx, match, userID)
	if verr := s.patterns.Validate(match); verr != nil {
		return match, verr
	}
	return match, nil
}

func (s *RouterService) cachedMatch(key string) (*AutomationMatch, bool) {
	cached, ok := s.cache.Get(s.matchNS, key)
	if !ok {
		return nil, false
	}
	match, ok := cached.(*AutomationMatch)
	return match, ok
}

// withConnectivity flags required services the user has not connected.
// The match itself is still returned so the UI can offer the connect
// flow.
func (s *RouterService) withConnectivity(ctx context.Context, match *AutomationMatch, userID string) *AutomationMatch {
	if s.oracle == nil || len(match.RequiredServices) == 0 {
		return match
	}

	checked := *match
	checked.MissingServices = nil
	for _, service := range match.RequiredServices {
		if !s.oracle.IsConnected(ctx, userID, service) {
			checked.MissingServices = append(checked.MissingServices, service)
		}
	}
	checked.NeedsConnection = len(checked.MissingServices) > 0
	return &checked
}
