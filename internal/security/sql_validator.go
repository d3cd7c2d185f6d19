package security

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// DefaultMaxRows bounds every non-aggregate result set
const DefaultMaxRows = 1000

// RawSQL is SQL produced by a template or an LLM. It has not been checked.
type RawSQL string

// ValidatedSQL can only be obtained from SQLValidator.Validate, so any
// function taking one is guaranteed to receive checked and bounded SQL.
type ValidatedSQL struct {
	sql string
}

func (v ValidatedSQL) String() string { return v.sql }

func (v ValidatedSQL) MarshalText() ([]byte, error) { return []byte(v.sql), nil }

// ValidationResult is the outcome of validating one statement
type ValidationResult struct {
	Valid        bool          `json:"valid"`
	SanitizedSQL *ValidatedSQL `json:"sanitized_sql,omitempty"`
	ErrorMessage string        `json:"error_message,omitempty"`
	Pattern      string        `json:"-"` // offending pattern, for audit logs only
	Warnings     []string      `json:"warnings"`
}

var forbiddenKeywords = []string{
	"INSERT", "UPDATE", "DELETE", "DROP", "CREATE", "ALTER", "EXEC", "EXECUTE",
	"UNION", "TRUNCATE", "GRANT", "REVOKE", "MERGE", "COPY",
}

var (
	forbiddenKeywordRe = regexp.MustCompile(`(?i)\b(` + strings.Join(forbiddenKeywords, "|") + `)\b`)
	commentMarkerRe    = regexp.MustCompile(`--|/\*|\*/|#`)
	// TABLE x is shorthand for SELECT * FROM x
	tableListRe = regexp.MustCompile(`(?i)\b(?:FROM|JOIN|TABLE)\s+`)
	tableNameRe = regexp.MustCompile("^(\"[^\"]+\"|`[^`]+`|[A-Za-z_][A-Za-z0-9_.]*)")
	aliasRe     = regexp.MustCompile(`^\s+(?i:AS\s+)?([A-Za-z_][A-Za-z0-9_]*)`)
	listSepRe   = regexp.MustCompile(`^\s*,\s*`)
	// FROM inside these functions is not a table reference
	fromFunctionRe = regexp.MustCompile(`(?i)\b(?:EXTRACT|SUBSTRING|TRIM|OVERLAY|POSITION)\s*\([^()]*\)`)
	numTautologyRe = regexp.MustCompile(`\b(\d+(?:\.\d+)?)\s*=\s*(\d+(?:\.\d+)?)\b`)
	strTautologyRe = regexp.MustCompile(`'([^']*)'\s*=\s*'([^']*)'`)
	limitRe        = regexp.MustCompile(`(?i)\bLIMIT\s+(\d+)(?:\s+OFFSET\s+\d+)?\s*;?\s*$`)
	limitAllRe     = regexp.MustCompile(`(?i)\bLIMIT\s+ALL\b`)
	anyLimitRe     = regexp.MustCompile(`(?i)\bLIMIT\b`)
	groupByRe      = regexp.MustCompile(`(?i)\bGROUP\s+BY\b`)
	aggregateFnRe  = regexp.MustCompile(`(?i)\b(?:AVG|MIN|MAX|SUM|COUNT)\s*\(`)
)

// suspiciousPatterns are injection or resource-abuse shapes that have no place
// in an analytical SELECT
var suspiciousPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bOR\s+TRUE\b`),
	regexp.MustCompile(`(?i)\bINTO\s+OUTFILE\b`),
	regexp.MustCompile(`(?i)\bINTO\s+DUMPFILE\b`),
	regexp.MustCompile(`(?i)\bLOAD_FILE\s*\(`),
	regexp.MustCompile(`(?i)\bBENCHMARK\s*\(`),
	regexp.MustCompile(`(?i)\b(?:PG_)?SLEEP\s*\(`),
	regexp.MustCompile(`(?i)\bWAITFOR\s+DELAY\b`),
	regexp.MustCompile(`(?i)\bSELECT\b[^;]*\bINTO\b`),
	regexp.MustCompile(`(?i)\bPG_(?:READ_FILE|READ_BINARY_FILE|LS_DIR|STAT_FILE)\s*\(`),
	regexp.MustCompile(`(?i)\bLO_(?:IMPORT|EXPORT)\s*\(`),
	regexp.MustCompile(`(?i)\bDBLINK\w*\s*\(`),
	regexp.MustCompile(`(?i)\b(?:CURRENT_SETTING|SET_CONFIG)\s*\(`),
}

// clauseWords end a FROM list; an identifier matching one is never an alias
var clauseWords = map[string]bool{
	"WHERE": true, "GROUP": true, "ORDER": true, "LIMIT": true, "OFFSET": true,
	"HAVING": true, "WINDOW": true, "FETCH": true, "FOR": true, "ON": true, "USING": true,
	"JOIN": true, "INNER": true, "LEFT": true, "RIGHT": true, "FULL": true,
	"CROSS": true, "OUTER": true, "NATURAL": true, "LATERAL": true,
}

// SQLValidator checks SQL against the SELECT-only, whitelisted-table,
// bounded-result contract. It is stateless and safe for concurrent use.
type SQLValidator struct {
	allowed func(table string) bool
	maxRows int
}

// NewSQLValidator builds a validator that accepts only tables for which
// allowed returns true. maxRows <= 0 uses DefaultMaxRows.
func NewSQLValidator(allowed func(table string) bool, maxRows int) *SQLValidator {
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}
	return &SQLValidator{allowed: allowed, maxRows: maxRows}
}

// NewSQLValidatorForTables is a convenience for a fixed whitelist
func NewSQLValidatorForTables(tables []string, maxRows int) *SQLValidator {
	set := make(map[string]bool, len(tables))
	for _, t := range tables {
		set[strings.ToLower(strings.TrimSpace(t))] = true
	}
	return NewSQLValidator(func(table string) bool { return set[strings.ToLower(table)] }, maxRows)
}

func reject(msg, pattern string) ValidationResult {
	return ValidationResult{Valid: false, ErrorMessage: msg, Pattern: pattern, Warnings: []string{}}
}

// Validate checks sql and returns a sanitized, bounded copy when it passes.
// Validating an already sanitized statement returns it unchanged.
func (v *SQLValidator) Validate(sql RawSQL) ValidationResult {
	trimmed := strings.TrimSpace(string(sql))
	if trimmed == "" {
		return reject("SQL cannot be empty", "empty")
	}

	upper := strings.ToUpper(trimmed)
	if !strings.HasPrefix(upper, "SELECT") || (len(upper) > 6 && isIdentChar(upper[6])) {
		return reject("only SELECT statements are allowed", "non_select")
	}

	if m := commentMarkerRe.FindString(trimmed); m != "" {
		return reject("SQL comments are not allowed", m)
	}

	if idx := strings.Index(trimmed, ";"); idx != -1 && strings.TrimSpace(trimmed[idx+1:]) != "" {
		return reject("multiple statements are not allowed", ";")
	}

	if m := forbiddenKeywordRe.FindString(trimmed); m != "" {
		kw := strings.ToUpper(m)
		return reject(fmt.Sprintf("forbidden keyword: %s", kw), kw)
	}

	tables := extractTables(trimmed)
	if len(tables) == 0 {
		return reject("query must read from an allowed table", "no_table")
	}
	for _, table := range tables {
		if v.allowed == nil || !v.allowed(table) {
			return reject(fmt.Sprintf("table not allowed: %s", table), "table:"+table)
		}
	}

	if m := findTautology(trimmed); m != "" {
		return reject("suspicious always-true condition: "+m, m)
	}
	for _, p := range suspiciousPatterns {
		if p.MatchString(trimmed) {
			return reject("suspicious SQL pattern detected", p.String())
		}
	}

	if limitAllRe.MatchString(trimmed) {
		return reject("LIMIT ALL is not allowed", "LIMIT ALL")
	}
	sanitized, warnings, err := v.bound(trimmed)
	if err != nil {
		return reject(err.Error(), "limit")
	}
	out := ValidatedSQL{sql: sanitized}
	return ValidationResult{Valid: true, SanitizedSQL: &out, Warnings: warnings}
}

// bound appends or clamps the outer LIMIT on non-aggregate queries. Only
// clauses outside parentheses count, so a LIMIT inside a subquery still gets
// an outer one.
func (v *SQLValidator) bound(sql string) (string, []string, error) {
	warnings := []string{}
	outer := topLevel(sql)
	if isAggregate(outer) {
		return sql, warnings, nil
	}

	if m := limitRe.FindStringSubmatchIndex(outer); m != nil {
		n, err := strconv.Atoi(sql[m[2]:m[3]])
		if err != nil || n > v.maxRows {
			sql = sql[:m[2]] + strconv.Itoa(v.maxRows) + sql[m[3]:]
			warnings = append(warnings, fmt.Sprintf("LIMIT %s reduced to %d", outer[m[2]:m[3]], v.maxRows))
		}
		return sql, warnings, nil
	}
	if anyLimitRe.MatchString(outer) {
		return "", nil, errors.New("LIMIT must be a trailing row count")
	}

	body, semi := sql, ""
	if strings.HasSuffix(body, ";") {
		body, semi = strings.TrimSpace(strings.TrimSuffix(body, ";")), ";"
	}
	warnings = append(warnings, fmt.Sprintf("LIMIT %d appended", v.maxRows))
	return fmt.Sprintf("%s LIMIT %d%s", body, v.maxRows, semi), warnings, nil
}

// topLevel blanks out string literals and everything inside parentheses,
// keeping the parentheses themselves and byte offsets aligned with sql
func topLevel(sql string) string {
	b := []byte(sql)
	depth, quoted := 0, false
	for i, c := range b {
		switch {
		case quoted:
			if c == '\'' {
				quoted = false
			}
			b[i] = ' '
		case c == '\'':
			quoted = true
			b[i] = ' '
		case c == '(':
			depth++
		case c == ')':
			if depth > 0 {
				depth--
			}
		case depth > 0:
			b[i] = ' '
		}
	}
	return string(b)
}

func isAggregate(sql string) bool {
	return groupByRe.MatchString(sql) || aggregateFnRe.MatchString(sql)
}

func isIdentChar(b byte) bool {
	return b == '_' || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

// extractTables returns every table named after FROM, JOIN or TABLE,
// unquoted. Each FROM list is walked past its aliases and commas.
func extractTables(sql string) []string {
	cleaned := fromFunctionRe.ReplaceAllString(sql, " ")
	var tables []string
	for _, loc := range tableListRe.FindAllStringIndex(cleaned, -1) {
		rest := cleaned[loc[1]:]
		for {
			if strings.HasPrefix(rest, "(") {
				// derived table; its own FROM is matched separately
				rest = rest[closingParen(rest):]
			} else if m := tableNameRe.FindString(rest); m != "" {
				tables = append(tables, strings.ToLower(strings.Trim(m, "\"`")))
				rest = rest[len(m):]
			} else {
				break
			}
			if m := aliasRe.FindStringSubmatch(rest); m != nil && !clauseWords[strings.ToUpper(m[1])] {
				rest = rest[len(m[0]):]
			}
			sep := listSepRe.FindString(rest)
			if sep == "" {
				break
			}
			rest = rest[len(sep):]
		}
	}
	return tables
}

// closingParen returns the offset just past the parenthesis that closes s[0]
func closingParen(s string) int {
	depth, quoted := 0, false
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case quoted:
			quoted = c != '\''
		case c == '\'':
			quoted = true
		case c == '(':
			depth++
		case c == ')':
			depth--
			if depth == 0 {
				return i + 1
			}
		}
	}
	return len(s)
}

func findTautology(sql string) string {
	for _, m := range numTautologyRe.FindAllStringSubmatch(sql, -1) {
		a, errA := strconv.ParseFloat(m[1], 64)
		b, errB := strconv.ParseFloat(m[2], 64)
		if errA == nil && errB == nil && a == b {
			return m[0]
		}
	}
	for _, m := range strTautologyRe.FindAllStringSubmatch(sql, -1) {
		if m[1] == m[2] {
			return m[0]
		}
	}
	return ""
}
