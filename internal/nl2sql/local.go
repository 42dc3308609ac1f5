package nl2sql

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// FallbackSQL lists the tables of the current schema; the local translator
// answers with it when no table name appears in the question.
const FallbackSQL = "SELECT table_name FROM information_schema.tables WHERE table_schema = current_schema() ORDER BY table_name LIMIT 50;"

var plainIdentifier = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// LocalAssistant answers without a language model. It is deterministic and
// meant for offline use and tests.
type LocalAssistant struct{}

func (LocalAssistant) Translate(_ context.Context, req Request) (string, error) {
	tokens := tokenize(req.Question)
	for _, table := range req.Schema.Tables() {
		for _, variant := range nameVariants(table) {
			if _, ok := tokens[variant]; ok {
				return fmt.Sprintf("SELECT * FROM %s LIMIT 50;", quoteIdentifier(table)), nil
			}
		}
	}
	return FallbackSQL, nil
}

func (LocalAssistant) Summarize(_ context.Context, req SummaryRequest) (Rendering, error) {
	return newRendering(localSummary(req.Columns, len(req.Rows)), req), nil
}

func localSummary(columns []string, rowCount int) string {
	if rowCount == 0 {
		return "The query returned no rows."
	}
	noun := "rows"
	if rowCount == 1 {
		noun = "row"
	}
	if len(columns) == 0 {
		return fmt.Sprintf("The query returned %d %s.", rowCount, noun)
	}
	return fmt.Sprintf("The query returned %d %s with columns %s.", rowCount, noun, strings.Join(columns, ", "))
}

func tokenize(text string) map[string]struct{} {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
	tokens := make(map[string]struct{}, len(fields))
	for _, field := range fields {
		tokens[field] = struct{}{}
	}
	return tokens
}

// nameVariants returns the lowercased table name with its naive singular and
// plural forms, so "order" finds orders and "categories" finds category.
func nameVariants(table string) []string {
	name := strings.ToLower(table)
	variants := []string{name}
	switch {
	case strings.HasSuffix(name, "ies") && len(name) > 3:
		variants = append(variants, strings.TrimSuffix(name, "ies")+"y")
	case strings.HasSuffix(name, "ses") || strings.HasSuffix(name, "xes"):
		variants = append(variants, strings.TrimSuffix(name, "es"))
	case strings.HasSuffix(name, "s") && len(name) > 1:
		variants = append(variants, strings.TrimSuffix(name, "s"))
	case strings.HasSuffix(name, "y") && len(name) > 1:
		variants = append(variants, strings.TrimSuffix(name, "y")+"ies")
	default:
		variants = append(variants, name+"s")
	}
	return variants
}

func quoteIdentifier(name string) string {
	if plainIdentifier.MatchString(name) {
		return name
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
