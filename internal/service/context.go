package service

import (
	"sort"
	"strings"

	"github.com/cortexai/analytics/internal/analytics"
	"github.com/cortexai/analytics/internal/catalog"
)

const maxExampleQueries = 3

// ContextService selects the part of the catalog relevant to a QuerySpec
type ContextService struct {
	src catalog.Source
}

func NewContextService(src catalog.Source) *ContextService {
	return &ContextService{src: src}
}

// RagContextForSpec is a pure read. Incomplete specs get the whole catalog
// so a clarification or LLM fallback sees every option.
func (s *ContextService) RagContextForSpec(spec *analytics.QuerySpec, originalQuery string) analytics.RagContext {
	cat := s.src.Snapshot()

	if !spec.IsComplete() {
		return analytics.RagContext{
			AvailableColumns:  cat.Columns(),
			MetricDefinitions: cat.MetricDefinitions(),
			ExampleQueries:    cat.Examples(),
			SchemaSnippets:    cat.Snippets(),
		}
	}

	metric := strings.ToUpper(spec.Metric)
	col := strings.ToLower(metric)

	wanted := map[string]bool{"fecha": true, "banco_nombre": true, col: true}
	var defs []analytics.MetricDefinition
	if d, ok := cat.Definition(metric); ok {
		defs = append(defs, d)
		for _, c := range d.PreferredColumns {
			wanted[strings.ToLower(c)] = true
		}
	}

	var columns []string
	for _, c := range cat.Columns() {
		if wanted[c] || strings.HasPrefix(c, col) {
			columns = append(columns, c)
		}
	}

	var snippets []analytics.SchemaSnippet
	for _, sn := range cat.Snippets() {
		for _, c := range columns {
			if strings.EqualFold(sn.ColumnName, c) {
				snippets = append(snippets, sn)
				break
			}
		}
	}

	return analytics.RagContext{
		AvailableColumns:  columns,
		MetricDefinitions: defs,
		ExampleQueries:    rankExamples(cat.Examples(), metric, originalQuery),
		SchemaSnippets:    snippets,
	}
}

// rankExamples prefers examples tagged with metric, then those sharing the
// most words with the question
func rankExamples(examples []analytics.ExampleQuery, metric, query string) []analytics.ExampleQuery {
	qWords := wordSet(query)

	type scored struct {
		ex    analytics.ExampleQuery
		score int
	}
	var candidates []scored
	for _, ex := range examples {
		score := 0
		if strings.EqualFold(ex.Metric, metric) {
			score += 100
		}
		for w := range wordSet(ex.NL) {
			if qWords[w] {
				score++
			}
		}
		if score > 0 {
			candidates = append(candidates, scored{ex: ex, score: score})
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })

	out := make([]analytics.ExampleQuery, 0, maxExampleQueries)
	for _, c := range candidates {
		if len(out) == maxExampleQueries {
			break
		}
		out = append(out, c.ex)
	}
	return out
}

// wordSet keeps words longer than three letters; shorter ones are mostly
// articles and prepositions
func wordSet(s string) map[string]bool {
	set := map[string]bool{}
	for _, w := range strings.Fields(analytics.Normalize(s)) {
		w = strings.Trim(w, "¿?¡!.,;:()")
		if len(w) > 3 {
			set[w] = true
		}
	}
	return set
}
