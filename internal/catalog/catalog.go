// Package catalog holds the immutable schema and alias snapshot consumed by
// the analytics pipeline. A Catalog is never mutated after New returns;
// reloads build a fresh value and swap it in through Store.
package catalog

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/cortexai/analytics/internal/analytics"
)

// MetricFamily groups metrics sharing a prefix, e.g. CARTERA_COMERCIAL and
// CARTERA_CONSUMO under CARTERA.
type MetricFamily struct {
	Prefix  string            `json:"prefix"`
	Aliases []string          `json:"aliases"`
	Members map[string]string `json:"members"` // qualifier alias -> member suffix
	Default string            `json:"default"`
}

// Config is the serialisable shape of a catalog (JSON file or defaults)
type Config struct {
	FactTable           string                       `json:"fact_table"`
	AllowedTables       []string                     `json:"allowed_tables"`
	Columns             []string                     `json:"columns"`
	MetricAliases       map[string][]string          `json:"metric_aliases"`
	MetricFamilies      []MetricFamily               `json:"metric_families"`
	DistributionMetrics []string                     `json:"distribution_metrics"`
	BankAliases         map[string][]string          `json:"bank_aliases"`
	MetricDefinitions   []analytics.MetricDefinition `json:"metric_definitions"`
	ExampleQueries      []analytics.ExampleQuery     `json:"example_queries"`
	SchemaSnippets      []analytics.SchemaSnippet    `json:"schema_snippets"`
}

// Alias maps a normalized surface form to a canonical identifier
type Alias struct {
	Text      string
	Canonical string
}

// Family is a MetricFamily with normalized, length-ordered aliases
type Family struct {
	Prefix  string
	Aliases []string
	Members []Alias
	Default string
}

// Catalog is a read-only snapshot. Accessors return copies.
type Catalog struct {
	factTable     string
	allowedTables map[string]struct{}
	columns       []string
	metricAliases []Alias
	families      []Family
	distribution  map[string]struct{}
	bankAliases   []Alias
	banks         []string
	metrics       []string
	definitions   []analytics.MetricDefinition
	examples      []analytics.ExampleQuery
	snippets      []analytics.SchemaSnippet
}

// Source yields the current catalog snapshot
type Source interface {
	Snapshot() *Catalog
}

// New validates cfg and builds an immutable Catalog from it
func New(cfg Config) (*Catalog, error) {
	fact := strings.ToLower(strings.TrimSpace(cfg.FactTable))
	if fact == "" {
		return nil, fmt.Errorf("catalog: fact_table is required")
	}
	if len(cfg.Columns) == 0 {
		return nil, fmt.Errorf("catalog: at least one column is required")
	}

	c := &Catalog{
		factTable:     fact,
		allowedTables: make(map[string]struct{}, len(cfg.AllowedTables)+1),
		distribution:  make(map[string]struct{}, len(cfg.DistributionMetrics)),
	}
	c.allowedTables[fact] = struct{}{}
	for _, t := range cfg.AllowedTables {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			c.allowedTables[t] = struct{}{}
		}
	}

	seen := make(map[string]bool, len(cfg.Columns))
	for _, col := range cfg.Columns {
		col = strings.ToLower(strings.TrimSpace(col))
		if col == "" || seen[col] {
			continue
		}
		seen[col] = true
		c.columns = append(c.columns, col)
	}

	metricSet := map[string]bool{}
	for metric, aliases := range cfg.MetricAliases {
		metric = strings.ToUpper(strings.TrimSpace(metric))
		if metric == "" {
			continue
		}
		metricSet[metric] = true
		c.metricAliases = append(c.metricAliases, buildAliases(metric, aliases)...)
	}
	sortAliases(c.metricAliases)

	for _, f := range cfg.MetricFamilies {
		prefix := strings.ToUpper(strings.TrimSpace(f.Prefix))
		if prefix == "" {
			return nil, fmt.Errorf("catalog: metric family without prefix")
		}
		fam := Family{Prefix: prefix, Default: strings.ToUpper(strings.TrimSpace(f.Default))}
		for _, a := range f.Aliases {
			if n := analytics.Normalize(a); n != "" {
				fam.Aliases = append(fam.Aliases, n)
			}
		}
		sort.SliceStable(fam.Aliases, func(i, j int) bool { return len(fam.Aliases[i]) > len(fam.Aliases[j]) })
		for qualifier, suffix := range f.Members {
			suffix = strings.ToUpper(strings.TrimSpace(suffix))
			fam.Members = append(fam.Members, Alias{Text: analytics.Normalize(qualifier), Canonical: suffix})
			metricSet[prefix+"_"+suffix] = true
		}
		sortAliases(fam.Members)
		if fam.Default != "" {
			metricSet[prefix+"_"+fam.Default] = true
		}
		c.families = append(c.families, fam)
	}

	for _, m := range cfg.DistributionMetrics {
		c.distribution[strings.ToUpper(strings.TrimSpace(m))] = struct{}{}
	}

	for bank, aliases := range cfg.BankAliases {
		bank = strings.ToUpper(strings.TrimSpace(bank))
		if bank == "" {
			continue
		}
		c.banks = append(c.banks, bank)
		c.bankAliases = append(c.bankAliases, buildAliases(bank, aliases)...)
	}
	sort.Strings(c.banks)
	sortAliases(c.bankAliases)

	for _, d := range cfg.MetricDefinitions {
		d.MetricName = strings.ToUpper(strings.TrimSpace(d.MetricName))
		d.PreferredColumns = slices.Clone(d.PreferredColumns)
		metricSet[d.MetricName] = true
		c.definitions = append(c.definitions, d)
	}
	for m := range metricSet {
		c.metrics = append(c.metrics, m)
	}
	sort.Strings(c.metrics)

	c.examples = slices.Clone(cfg.ExampleQueries)
	c.snippets = slices.Clone(cfg.SchemaSnippets)
	return c, nil
}

// buildAliases always includes the canonical name itself as an alias
func buildAliases(canonical string, aliases []string) []Alias {
	out := []Alias{{Text: analytics.Normalize(strings.ReplaceAll(canonical, "_", " ")), Canonical: canonical}}
	for _, a := range aliases {
		if n := analytics.Normalize(a); n != "" {
			out = append(out, Alias{Text: n, Canonical: canonical})
		}
	}
	return out
}

// sortAliases orders longest first so "cartera vencida" beats "cartera"
func sortAliases(a []Alias) {
	sort.SliceStable(a, func(i, j int) bool {
		if len(a[i].Text) != len(a[j].Text) {
			return len(a[i].Text) > len(a[j].Text)
		}
		return a[i].Text < a[j].Text
	})
}

// Snapshot lets a bare Catalog act as its own Source
func (c *Catalog) Snapshot() *Catalog { return c }

func (c *Catalog) FactTable() string { return c.factTable }

func (c *Catalog) AllowedTables() []string {
	out := make([]string, 0, len(c.allowedTables))
	for t := range c.allowedTables {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func (c *Catalog) IsAllowedTable(name string) bool {
	_, ok := c.allowedTables[strings.ToLower(name)]
	return ok
}

func (c *Catalog) Columns() []string { return slices.Clone(c.columns) }

func (c *Catalog) HasColumn(col string) bool { return slices.Contains(c.columns, col) }

func (c *Catalog) MetricAliases() []Alias { return slices.Clone(c.metricAliases) }

func (c *Catalog) Families() []Family { return slices.Clone(c.families) }

func (c *Catalog) BankAliases() []Alias { return slices.Clone(c.bankAliases) }

func (c *Catalog) Banks() []string { return slices.Clone(c.banks) }

func (c *Catalog) Metrics() []string { return slices.Clone(c.metrics) }

// IsDistributionMetric reports whether metric describes a share of a whole
func (c *Catalog) IsDistributionMetric(metric string) bool {
	_, ok := c.distribution[strings.ToUpper(metric)]
	return ok
}

func (c *Catalog) MetricDefinitions() []analytics.MetricDefinition {
	return slices.Clone(c.definitions)
}

func (c *Catalog) Definition(metric string) (analytics.MetricDefinition, bool) {
	for _, d := range c.definitions {
		if strings.EqualFold(d.MetricName, metric) {
			return d, true
		}
	}
	return analytics.MetricDefinition{}, false
}

func (c *Catalog) Examples() []analytics.ExampleQuery { return slices.Clone(c.examples) }

func (c *Catalog) Snippets() []analytics.SchemaSnippet { return slices.Clone(c.snippets) }

// WithColumns returns a copy of c whose column list is replaced by cols.
// Used when the warehouse schema is synced into an existing catalog.
func (c *Catalog) WithColumns(cols []string) (*Catalog, error) {
	if len(cols) == 0 {
		return nil, fmt.Errorf("catalog: empty column list")
	}
	next := *c
	next.columns = nil
	seen := make(map[string]bool, len(cols))
	for _, col := range cols {
		col = strings.ToLower(strings.TrimSpace(col))
		if col == "" || seen[col] {
			continue
		}
		seen[col] = true
		next.columns = append(next.columns, col)
	}
	return &next, nil
}
