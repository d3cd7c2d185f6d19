package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cortexai/analytics/internal/analytics"
	"github.com/cortexai/analytics/internal/observability"
	"github.com/rs/zerolog/log"
)

// IntentSource is anything able to classify a question
type IntentSource interface {
	Classify(ctx context.Context, query string, hint *analytics.Entities) (analytics.ParsedIntent, error)
}

const intentSystemPrompt = `You classify questions about Mexican banking KPIs (IMOR, ICOR, ICAP, ROA, ROE, cartera, captacion, market share).

Intents:
- point_value: a single current or aggregate value
- evolution: how a metric changes over time
- comparison: two or more banks side by side
- ranking: ordering banks by a metric

Answer ONLY with a JSON object:
{"intent": "<point_value|evolution|comparison|ranking>", "confidence": <0..1>, "reasoning": "<one sentence>"}`

// LLMSource classifies with a single LLM call
type LLMSource struct {
	gen  Generator
	opts LLMOptions
}

func NewLLMSource(gen Generator, opts LLMOptions) *LLMSource {
	opts = opts.withDefaults()
	if opts.MaxTokens > 256 {
		opts.MaxTokens = 256
	}
	return &LLMSource{gen: gen, opts: opts}
}

type llmIntentAnswer struct {
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// Classify implements IntentSource
func (s *LLMSource) Classify(ctx context.Context, query string, hint *analytics.Entities) (analytics.ParsedIntent, error) {
	if s == nil || s.gen == nil {
		return analytics.ParsedIntent{}, ErrNoGenerator
	}

	var sb strings.Builder
	sb.WriteString("Question: ")
	sb.WriteString(query)
	if hint != nil {
		if hint.Metric != "" {
			sb.WriteString("\nMetric detected: " + hint.Metric)
		}
		if len(hint.Banks) > 0 {
			sb.WriteString("\nBanks detected: " + strings.Join(hint.Banks, ", "))
		}
	}

	out, err := s.gen.Generate(ctx, GenerateRequest{
		Model:       s.opts.Model,
		System:      intentSystemPrompt,
		Prompt:      sb.String(),
		Temperature: s.opts.Temperature,
		MaxTokens:   s.opts.MaxTokens,
	})
	if err != nil {
		return analytics.ParsedIntent{}, fmt.Errorf("llm classify: %w", err)
	}

	raw := extractJSONObject(out)
	if raw == "" {
		return analytics.ParsedIntent{}, fmt.Errorf("llm classify: no JSON in answer %q", truncate(out, 80))
	}
	var ans llmIntentAnswer
	if err := json.Unmarshal([]byte(raw), &ans); err != nil {
		return analytics.ParsedIntent{}, fmt.Errorf("llm classify: decode answer: %w", err)
	}
	intent, ok := analytics.ParseIntent(ans.Intent)
	if !ok || intent == analytics.IntentUnknown {
		return analytics.ParsedIntent{}, fmt.Errorf("llm classify: unusable intent %q", ans.Intent)
	}

	return analytics.ParsedIntent{
		Intent:     intent,
		Confidence: clamp01(ans.Confidence),
		Reasoning:  ans.Reasoning,
		Source:     "llm",
	}, nil
}

// ClassifierConfig controls when the LLM is consulted
type ClassifierConfig struct {
	LLMFallbackEnabled       bool
	RulesConfidenceThreshold float64
	LLMTimeout               time.Duration
}

// IntentClassifier runs rules first and consults the LLM only for low
// confidence answers. The rule result is always the fallback.
type IntentClassifier struct {
	rules *RuleSource
	llm   IntentSource
	cfg   ClassifierConfig
}

// NewIntentClassifier wires the hybrid classifier. llm may be nil when no
// credential is configured.
func NewIntentClassifier(rules *RuleSource, llm IntentSource, cfg ClassifierConfig) *IntentClassifier {
	if cfg.RulesConfidenceThreshold <= 0 {
		cfg.RulesConfidenceThreshold = 0.9
	}
	if cfg.LLMTimeout <= 0 {
		cfg.LLMTimeout = 5 * time.Second
	}
	if rules == nil {
		rules = NewRuleSource()
	}
	return &IntentClassifier{rules: rules, llm: llm, cfg: cfg}
}

// Classify never fails: LLM problems degrade to the rule result
func (c *IntentClassifier) Classify(ctx context.Context, query string, hint *analytics.Entities) analytics.ParsedIntent {
	ruled, decisive := c.rules.Evaluate(query, hint)
	if decisive || !c.cfg.LLMFallbackEnabled || c.llm == nil || ruled.Confidence >= c.cfg.RulesConfidenceThreshold {
		observability.ObserveIntent(string(ruled.Intent), ruled.Source)
		return ruled
	}

	llmCtx, cancel := context.WithTimeout(ctx, c.cfg.LLMTimeout)
	defer cancel()

	start := time.Now()
	guess, err := c.llm.Classify(llmCtx, query, hint)
	if err != nil {
		outcome := "error"
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(llmCtx.Err(), context.DeadlineExceeded) {
			outcome = "timeout"
		}
		observability.ObserveLLMFallback("intent", outcome)
		log.Warn().
			Err(err).
			Str("code", string(analytics.ErrLLMUnavailable)).
			Dur("elapsed", time.Since(start)).
			Msg("intent LLM fallback unavailable, keeping rule result")
		observability.ObserveIntent(string(ruled.Intent), ruled.Source)
		return ruled
	}

	// rules win ties
	if guess.Confidence > ruled.Confidence {
		observability.ObserveLLMFallback("intent", "used")
		observability.ObserveIntent(string(guess.Intent), guess.Source)
		log.Debug().
			Str("rule_intent", string(ruled.Intent)).
			Str("llm_intent", string(guess.Intent)).
			Float64("llm_confidence", guess.Confidence).
			Msg("intent taken from LLM")
		return guess
	}
	observability.ObserveLLMFallback("intent", "kept_rules")
	observability.ObserveIntent(string(ruled.Intent), ruled.Source)
	return ruled
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
