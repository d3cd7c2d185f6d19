package service

import (
	"context"
	"regexp"

	"github.com/cortexai/analytics/internal/analytics"
)

const (
	decisiveConfidence  = 0.95
	dateRangeConfidence = 0.9
	defaultConfidence   = 0.5
)

// rule is one keyword heuristic evaluated on normalized text
type rule struct {
	name       string
	pattern    *regexp.Regexp
	intent     analytics.Intent
	confidence float64
}

// decisiveRules fire with confidence >= 0.9 and short-circuit the LLM.
// Ranking sits before the date rule so "top 5 por ICAP en 2024" is a ranking.
var decisiveRules = []rule{
	{
		name:       "comparison marker",
		pattern:    regexp.MustCompile(`\b(vs|versus|compara\w*|comparativ\w*|frente a|contra)\b`),
		intent:     analytics.IntentComparison,
		confidence: decisiveConfidence,
	},
	{
		name:       "ranking marker",
		pattern:    regexp.MustCompile(`\b(top\s*\d+|ranking|rankea\w*|mejores|peores|los\s+\d+\s+(mayores|menores|bancos))\b`),
		intent:     analytics.IntentRanking,
		confidence: decisiveConfidence,
	},
	{
		// years cover ISO dates and "enero 2023 a marzo 2024" phrasing too
		name:       "explicit date range",
		pattern:    regexp.MustCompile(`\b((19|20)\d{2}|ultim[oa]s\s+\d+\s+(meses|mes|anos|ano|trimestres|semestres))\b`),
		intent:     analytics.IntentEvolution,
		confidence: dateRangeConfidence,
	},
}

// softRules give a best guess below the LLM threshold
var softRules = []rule{
	{
		name:       "evolution keyword",
		pattern:    regexp.MustCompile(`\b(evolucion|tendencia|historic[oa]|historial|trayectoria|comportamiento|serie|a lo largo|mes a mes|crecimiento|ultimo ano|anual|ultimos meses|ultimo trimestre|ultimo semestre)\b`),
		intent:     analytics.IntentEvolution,
		confidence: 0.6,
	},
	{
		name:       "ranking keyword",
		pattern:    regexp.MustCompile(`\b(mayor|menor|mas alt[oa]|mas baj[oa]|lider(es)?|primeros)\b`),
		intent:     analytics.IntentRanking,
		confidence: 0.55,
	},
	{
		name:       "point value keyword",
		pattern:    regexp.MustCompile(`\b(cual es|cuanto|valor|actual|nivel|dato)\b`),
		intent:     analytics.IntentPointValue,
		confidence: 0.6,
	},
}

// RuleSource classifies with deterministic keyword rules
type RuleSource struct{}

func NewRuleSource() *RuleSource {
	return &RuleSource{}
}

// Evaluate returns the rule result and whether a decisive rule produced it
func (r *RuleSource) Evaluate(query string, hint *analytics.Entities) (analytics.ParsedIntent, bool) {
	text := analytics.Normalize(query)

	for _, rl := range decisiveRules {
		if rl.pattern.MatchString(text) {
			return rl.result(), true
		}
	}

	if hint != nil && len(hint.Banks) >= 2 {
		return analytics.ParsedIntent{
			Intent:     analytics.IntentComparison,
			Confidence: 0.6,
			Reasoning:  "several banks named",
			Source:     "rules",
		}, false
	}
	for _, rl := range softRules {
		if rl.pattern.MatchString(text) {
			return rl.result(), false
		}
	}
	if hint != nil && hint.HasTimeRange {
		return analytics.ParsedIntent{
			Intent:     analytics.IntentEvolution,
			Confidence: 0.6,
			Reasoning:  "time range present",
			Source:     "rules",
		}, false
	}

	return analytics.ParsedIntent{
		Intent:     analytics.IntentPointValue,
		Confidence: defaultConfidence,
		Reasoning:  "no rule matched, defaulting to point value",
		Source:     "rules",
	}, false
}

// Classify implements IntentSource
func (r *RuleSource) Classify(_ context.Context, query string, hint *analytics.Entities) (analytics.ParsedIntent, error) {
	res, _ := r.Evaluate(query, hint)
	return res, nil
}

func (rl rule) result() analytics.ParsedIntent {
	return analytics.ParsedIntent{
		Intent:     rl.intent,
		Confidence: rl.confidence,
		Reasoning:  rl.name,
		Source:     "rules",
	}
}
