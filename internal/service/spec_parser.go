package service

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/cortexai/analytics/internal/analytics"
	"github.com/cortexai/analytics/internal/catalog"
)

// Sub-extractor weights; metric dominates
const (
	metricWeight = 0.5
	timeWeight   = 0.3
	bankWeight   = 0.2
)

const monthNames = `enero|febrero|marzo|abril|mayo|junio|julio|agosto|septiembre|setiembre|octubre|noviembre|diciembre|` +
	`ene|feb|mar|abr|may|jun|jul|ago|sep|oct|nov|dic`

var (
	dateExpr     = `(\d{4}-\d{2}-\d{2}|(?:` + monthNames + `)(?:\s+(?:de|del))?\s+\d{4})`
	betweenRe    = regexp.MustCompile(`\b(?:entre|desde|del|de)\s+` + dateExpr + `\s+(?:y|al|a|hasta)\s+(?:el\s+)?` + dateExpr)
	yearPairRe   = regexp.MustCompile(`\b((?:19|20)\d{2})\s*(?:-|a|al|y|hasta)\s*((?:19|20)\d{2})\b`)
	yearRe       = regexp.MustCompile(`\b((?:19|20)\d{2})\b`)
	sinceYearRe  = regexp.MustCompile(`\b(?:desde|a partir de)\s+(?:el\s+)?(?:(` + monthNames + `)(?:\s+(?:de|del))?\s+)?((?:19|20)\d{2})\b`)
	lastNRe      = regexp.MustCompile(`\bultim[oa]s?\s+(\d+)\s+(meses|mes|anos|ano|trimestres|trimestre|semestres|semestre)\b`)
	lastOneRe    = regexp.MustCompile(`\bultim[oa]\s+(mes|trimestre|semestre|ano)\b`)
	periodRe     = regexp.MustCompile(`\b(ano|anual|trimestre|semestre)\b`)
	quarterlyRe  = regexp.MustCompile(`\b(trimestral(mente)?|por trimestre)\b`)
	yearlyRe     = regexp.MustCompile(`\b(anualmente|por ano)\b`)
	comparisonRe = regexp.MustCompile(`\b(vs|versus|compara\w*|comparativ\w*|frente a|contra)\b`)
	monthIndex   = buildMonthIndex()
)

func buildMonthIndex() map[string]time.Month {
	full := []string{"enero", "febrero", "marzo", "abril", "mayo", "junio", "julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre"}
	idx := make(map[string]time.Month, 26)
	for i, name := range full {
		idx[name] = time.Month(i + 1)
		idx[name[:3]] = time.Month(i + 1)
	}
	idx["setiembre"] = time.September
	return idx
}

// SpecParser turns a question into a QuerySpec using the catalog's alias tables
type SpecParser struct {
	src catalog.Source
}

func NewSpecParser(src catalog.Source) *SpecParser {
	return &SpecParser{src: src}
}

// Entities extracts the hints handed to the intent classifier
func (p *SpecParser) Entities(query string) analytics.Entities {
	cat := p.src.Snapshot()
	text := analytics.Normalize(query)
	metric, _ := resolveMetric(cat, text)
	tr, _, explicit := resolveTimeRange(text, analytics.IntentUnknown, analytics.ModeDashboard)
	_, isAll := tr.(analytics.AllTime)
	return analytics.Entities{
		Metric:       metric,
		Banks:        resolveBanks(cat, text),
		HasTimeRange: explicit && !isAll,
	}
}

// Parse builds the QuerySpec for one question. It never fails; unresolved
// parts are listed in MissingFields.
func (p *SpecParser) Parse(query string, intentHint analytics.Intent, mode analytics.Mode) analytics.QuerySpec {
	cat := p.src.Snapshot()
	text := analytics.Normalize(query)

	metric, metricConf := resolveMetric(cat, text)
	banks := resolveBanks(cat, text)
	tr, timeConf, _ := resolveTimeRange(text, intentHint, mode)

	bankConf := 0.7 // no bank means all banks
	if len(banks) > 0 {
		bankConf = 1.0
	}

	spec := analytics.QuerySpec{
		Metric:         metric,
		BankNames:      banks,
		TimeRange:      tr,
		ComparisonMode: len(banks) >= 2 || comparisonRe.MatchString(text),
		Granularity:    resolveGranularity(text),
	}
	if metric == "" {
		spec.MissingFields = append(spec.MissingFields, "metric")
	}
	if tr == nil || !tr.Valid() {
		spec.MissingFields = append(spec.MissingFields, "time_range")
		timeConf = 0
	}
	spec.RequiresClarification = len(spec.MissingFields) > 0
	spec.ConfidenceScore = math.Round((metricWeight*metricConf+timeWeight*timeConf+bankWeight*bankConf)*100) / 100
	return spec
}

// resolveMetric tries exact aliases first, then metric families
func resolveMetric(cat *catalog.Catalog, text string) (string, float64) {
	for _, a := range cat.MetricAliases() {
		if findPhrase(text, a.Text) >= 0 {
			return a.Canonical, 1.0
		}
	}

	for _, fam := range cat.Families() {
		for _, alias := range fam.Aliases {
			pos := findPhrase(text, alias)
			if pos < 0 {
				continue
			}
			rest := text[pos+len(alias):]
			for _, m := range fam.Members {
				if findPhrase(rest, m.Text) >= 0 {
					return fam.Prefix + "_" + m.Canonical, 0.95
				}
			}
			if fam.Default != "" {
				return fam.Prefix + "_" + fam.Default, 0.7
			}
		}
	}
	return "", 0
}

// resolveBanks returns canonical banks in order of first appearance
func resolveBanks(cat *catalog.Catalog, text string) []string {
	work := []byte(text)
	first := map[string]int{}
	for _, a := range cat.BankAliases() {
		for {
			pos := findPhrase(string(work), a.Text)
			if pos < 0 {
				break
			}
			if prev, ok := first[a.Canonical]; !ok || pos < prev {
				first[a.Canonical] = pos
			}
			// blank the span so shorter aliases cannot match inside it
			for i := pos; i < pos+len(a.Text); i++ {
				work[i] = ' '
			}
		}
	}

	banks := make([]string, 0, len(first))
	for b := range first {
		banks = append(banks, b)
	}
	sort.Slice(banks, func(i, j int) bool { return first[banks[i]] < first[banks[j]] })
	return banks
}

// resolveTimeRange returns the range, its confidence and whether the
// question stated it explicitly
func resolveTimeRange(text string, intentHint analytics.Intent, mode analytics.Mode) (analytics.TimeRange, float64, bool) {
	if m := betweenRe.FindStringSubmatch(text); m != nil {
		start, okStart := parseDate(m[1], false)
		end, okEnd := parseDate(m[2], true)
		if !okStart || !okEnd {
			return analytics.BetweenDates{}, 0, true
		}
		if end.Before(start) {
			// "entre marzo 2024 y enero 2023" reads the bounds in reverse
			start, _ = parseDate(m[2], false)
			end, _ = parseDate(m[1], true)
		}
		return analytics.BetweenDates{Start: start, End: end}, 1.0, true
	}

	if m := yearPairRe.FindStringSubmatch(text); m != nil {
		a, _ := strconv.Atoi(m[1])
		b, _ := strconv.Atoi(m[2])
		return analytics.YearRange{Start: min(a, b), End: max(a, b)}, 1.0, true
	}
	if m := sinceYearRe.FindStringSubmatch(text); m != nil {
		a, _ := strconv.Atoi(m[2])
		last := max(a, time.Now().Year())
		if m[1] == "" {
			return analytics.YearRange{Start: a, End: last}, 1.0, true
		}
		start, ok := parseDate(m[1]+" "+m[2], false)
		if !ok {
			return analytics.BetweenDates{}, 0, true
		}
		return analytics.BetweenDates{Start: start, End: time.Date(last, time.December, 31, 0, 0, 0, 0, time.UTC)}, 1.0, true
	}
	if years := yearRe.FindAllStringSubmatch(text, -1); len(years) > 0 {
		lo, hi := math.MaxInt, math.MinInt
		for _, y := range years {
			n, _ := strconv.Atoi(y[1])
			lo, hi = min(lo, n), max(hi, n)
		}
		return analytics.YearRange{Start: lo, End: hi}, 1.0, true
	}

	if m := lastNRe.FindStringSubmatch(text); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil || n > math.MaxUint32/12 {
			return analytics.LastNMonths{}, 0, true
		}
		return analytics.LastNMonths{N: uint32(n * monthsPerUnit(m[2]))}, 1.0, true
	}

	// "por año" and "trimestral" describe granularity, not a window
	rest := yearlyRe.ReplaceAllString(quarterlyRe.ReplaceAllString(text, " "), " ")
	if m := lastOneRe.FindStringSubmatch(rest); m != nil {
		return analytics.LastNMonths{N: uint32(monthsPerUnit(m[1]))}, 0.9, true
	}
	if m := periodRe.FindStringSubmatch(rest); m != nil {
		return analytics.LastNMonths{N: uint32(monthsPerUnit(m[1]))}, 0.9, true
	}

	if mode == analytics.ModeTimeline || intentHint == analytics.IntentEvolution {
		return analytics.LastNMonths{N: 12}, 0.7, false
	}
	return analytics.AllTime{}, 0.8, false
}

func monthsPerUnit(unit string) int {
	switch {
	case strings.HasPrefix(unit, "ano"), unit == "anual":
		return 12
	case strings.HasPrefix(unit, "semestre"):
		return 6
	case strings.HasPrefix(unit, "trimestre"):
		return 3
	}
	return 1
}

// parseDate reads "2024-03-01" or "marzo de 2024". Month-only dates resolve
// to the first day, or the last day when end is set.
func parseDate(s string, end bool) (time.Time, bool) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, true
	}
	fields := strings.Fields(s)
	if len(fields) < 2 {
		return time.Time{}, false
	}
	month, ok := monthIndex[fields[0]]
	if !ok {
		return time.Time{}, false
	}
	year, err := strconv.Atoi(fields[len(fields)-1])
	if err != nil {
		return time.Time{}, false
	}
	if end {
		return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC), true
	}
	return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC), true
}

func resolveGranularity(text string) analytics.Granularity {
	switch {
	case quarterlyRe.MatchString(text):
		return analytics.GranularityQuarterly
	case yearlyRe.MatchString(text):
		return analytics.GranularityYearly
	}
	return analytics.GranularityMonthly
}

// findPhrase returns the byte offset of the first whole-word occurrence of
// phrase in text, or -1
func findPhrase(text, phrase string) int {
	if phrase == "" {
		return -1
	}
	from := 0
	for from <= len(text) {
		i := strings.Index(text[from:], phrase)
		if i < 0 {
			return -1
		}
		pos := from + i
		end := pos + len(phrase)
		if isBoundaryBefore(text, pos) && isBoundaryAfter(text, end) {
			return pos
		}
		from = pos + 1
	}
	return -1
}

func isBoundaryBefore(text string, pos int) bool {
	if pos == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(text[:pos])
	return !isWordRune(r)
}

func isBoundaryAfter(text string, end int) bool {
	if end >= len(text) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(text[end:])
	return !isWordRune(r)
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}
