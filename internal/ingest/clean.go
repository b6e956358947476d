package ingest

import (
	"html"
	"regexp"
	"strconv"
	"strings"
)

var (
	brTags     = regexp.MustCompile(`(?i)(<br\s*/?>)+`)
	anyTag     = regexp.MustCompile(`<[^>]+>`)
	whitespace = regexp.MustCompile(`\s+`)
)

// CleanDescription normalizes a raw job description: lower-cases it, turns
// <br> runs into newlines, strips the remaining markup, decodes HTML
// entities and collapses whitespace.
func CleanDescription(text string) string {
	text = strings.ToLower(text)
	text = brTags.ReplaceAllString(text, "\n")
	text = anyTag.ReplaceAllString(text, " ")
	text = html.UnescapeString(text)
	text = whitespace.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// normalizeHeader turns a CSV column name into its canonical form:
// lower-case with spaces replaced by underscores.
func normalizeHeader(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
}

// metaValue narrows a raw CSV cell to the scalar set allowed in record
// metadata: bool, number, string or nil for empty cells.
func metaValue(raw string) any {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}

	switch strings.ToLower(trimmed) {
	case "true":
		return true
	case "false":
		return false
	}

	if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return f
	}

	return raw
}
