package ingestion

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	whitespacePattern = regexp.MustCompile(`\s+`)
	digitsPattern     = regexp.MustCompile(`\d+`)

	dateLayouts = []string{
		"2006-01-02",
		time.RFC3339,
		"2006-01-02 15:04:05",
		"2006/01/02",
		"01/02/2006",
		"02/01/2006",
	}
)

// normalizeText collapses internal whitespace and trims. Empty cells yield nil.
func normalizeText(raw string) *string {
	cleaned := strings.TrimSpace(whitespacePattern.ReplaceAllString(raw, " "))
	if cleaned == "" {
		return nil
	}
	return &cleaned
}

// cleanInt extracts an integer from a cell. Handles plain digits, float
// renderings like "3.0", and prefixed identifiers like "ft_1".
func cleanInt(raw string) *int64 {
	cleaned := strings.TrimSpace(raw)
	if cleaned == "" {
		return nil
	}
	if value, err := strconv.ParseInt(cleaned, 10, 64); err == nil {
		return &value
	}
	if f, err := strconv.ParseFloat(cleaned, 64); err == nil && f == float64(int64(f)) {
		value := int64(f)
		return &value
	}
	if strings.Contains(cleaned, "_") {
		if match := digitsPattern.FindString(cleaned); match != "" {
			if value, err := strconv.ParseInt(match, 10, 64); err == nil {
				return &value
			}
		}
	}
	return nil
}

// cleanFloat parses a decimal cell, nil when empty or unparseable.
func cleanFloat(raw string) *float64 {
	cleaned := strings.TrimSpace(raw)
	if cleaned == "" {
		return nil
	}
	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return nil
	}
	return &value
}

// cleanBool treats common truthy spellings as true, everything else false.
func cleanBool(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "yes", "y", "1":
		return true
	}
	return false
}

// cleanDate parses a cell into a date, dropping any time component. Returns
// nil when no layout matches.
func cleanDate(raw string) *time.Time {
	cleaned := strings.TrimSpace(raw)
	if cleaned == "" {
		return nil
	}
	if idx := strings.IndexByte(cleaned, ' '); idx > 0 && !strings.Contains(cleaned, "/") {
		cleaned = cleaned[:idx]
	}
	for _, layout := range dateLayouts {
		if ts, err := time.Parse(layout, cleaned); err == nil {
			date := time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
			return &date
		}
	}
	return nil
}

const keySeparator = "\x1f"

// rowKey joins normalized component values into a dedup key. Numeric
// components arrive via intKeyPart and floatKeyPart, so "4" and "4.0" render
// the same key part.
func rowKey(parts ...string) string {
	normalized := make([]string, len(parts))
	for i, part := range parts {
		if v := normalizeText(part); v != nil {
			normalized[i] = *v
		}
	}
	return strings.Join(normalized, keySeparator)
}

func textOrEmpty(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func intKeyPart(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}

func floatKeyPart(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'g', -1, 64)
}
