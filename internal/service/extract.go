package service

import (
	"regexp"
	"strings"
)

// extractSQL pulls SQL from model output using these strategies in order:
// 1. ```sql ... ``` code block (preferred)
// 2. ``` ... ``` generic code block starting with SELECT
// 3. SELECT statement spanning multiple lines (until LIMIT, semicolon or end)
// 4. Single-line SELECT statement as last resort
var (
	reSelectBlock = regexp.MustCompile(`(?is)(SELECT\s+.+?FROM\s+.+?(?:LIMIT\s+\d+|;\s*$|\z))`)
	reSingleSQL   = regexp.MustCompile(`(?i)(SELECT\s+\S.+?\bFROM\b\s+\S+)`)
)

func extractSQL(text string) string {
	// Strategy 1: ```sql block, any case
	lower := strings.ToLower(text)
	if idx := strings.Index(lower, "```sql"); idx != -1 {
		body := text[idx+len("```sql"):]
		if end := strings.Index(body, "```"); end != -1 {
			if sql := strings.TrimSpace(body[:end]); sql != "" {
				return strings.TrimSuffix(sql, ";")
			}
		}
	}

	// Strategy 2: any ``` block whose content starts with SELECT
	parts := strings.Split(text, "```")
	for i := 1; i < len(parts); i += 2 {
		candidate := strings.TrimSpace(parts[i])
		// strip a language tag line if present
		if nl := strings.Index(candidate, "\n"); nl != -1 {
			firstLine := strings.TrimSpace(candidate[:nl])
			if !strings.Contains(strings.ToUpper(firstLine), "SELECT") {
				candidate = strings.TrimSpace(candidate[nl:])
			}
		}
		if strings.HasPrefix(strings.ToUpper(candidate), "SELECT") {
			return strings.TrimSuffix(candidate, ";")
		}
	}

	// Strategy 3: multi-line SELECT ... FROM ... LIMIT
	if m := reSelectBlock.FindString(text); m != "" {
		candidate := strings.TrimSuffix(strings.TrimSpace(m), ";")
		if strings.Contains(strings.ToUpper(candidate), "FROM") {
			return candidate
		}
	}

	// Strategy 4: single-line SELECT
	if m := reSingleSQL.FindString(text); m != "" {
		return strings.TrimSuffix(strings.TrimSpace(m), ";")
	}

	return ""
}

// stripCodeFences returns the body of the first fenced block, or text
// unchanged when it has none. Used for JSON answers wrapped in ```json.
func stripCodeFences(text string) string {
	text = strings.TrimSpace(text)
	start := strings.Index(text, "```")
	if start == -1 {
		return text
	}
	body := text[start+3:]
	if nl := strings.Index(body, "\n"); nl != -1 && !strings.ContainsAny(body[:nl], "{[") {
		body = body[nl+1:]
	}
	if end := strings.Index(body, "```"); end != -1 {
		body = body[:end]
	}
	return strings.TrimSpace(body)
}

// extractJSONObject returns the outermost {...} span of text
func extractJSONObject(text string) string {
	text = stripCodeFences(text)
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end <= start {
		return ""
	}
	return text[start : end+1]
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
