// Package nl2sql turns questions into SQL and query results into short
// summaries, either through a chat completion API or a deterministic local
// stand-in.
package nl2sql

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"github.com/waitrain/waitrain/internal/apperr"
	"github.com/waitrain/waitrain/internal/config"
	"github.com/waitrain/waitrain/internal/schema"
)

// PreviewRows is how many result rows the summarizer gets to see.
const PreviewRows = 5

const (
	translateInstructions = "Respond only with the final SQL statement, without extra formatting or comments. Use only tables and columns from the schema."
	rowCapInstruction     = "Add LIMIT 50 to potentially large queries."
	summaryInstructions   = "Return a short, clear paragraph to show the user. Do not invent data that is not in the sample."
)

type Request struct {
	Question     string
	Schema       schema.Map
	SystemPrompt string
}

type SummaryRequest struct {
	Columns []string
	Rows    [][]any
	Prompt  string
}

// Rendering is what the user sees: the summary plus the complete result.
type Rendering struct {
	Summary string   `json:"summary"`
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

type Translator interface {
	Translate(ctx context.Context, req Request) (string, error)
}

type Summarizer interface {
	Summarize(ctx context.Context, req SummaryRequest) (Rendering, error)
}

// Assistant is one strategy providing both halves of a question round trip.
type Assistant interface {
	Translator
	Summarizer
}

// New picks the assistant named by settings.LLM.Provider.
func New(settings config.Settings) (Assistant, error) {
	switch settings.LLM.Provider {
	case config.ProviderLocal:
		return LocalAssistant{}, nil
	case config.ProviderOpenAI, "":
		assistant, err := NewOpenAIAssistant(OpenAIConfig{
			BaseURL:            settings.LLM.BaseURL,
			APIKey:             settings.LLM.APIKey,
			Model:              settings.LLM.Model,
			Temperature:        settings.LLM.Temperature,
			SummaryTemperature: settings.LLM.SummaryTemperature,
			Timeout:            settings.LLM.Timeout,
		})
		if err != nil {
			return nil, err
		}
		return assistant, nil
	default:
		return nil, apperr.New(apperr.KindConfigInvalid, "settings", fmt.Sprintf("unknown llm provider %q", settings.LLM.Provider))
	}
}

// FormatSchema renders one block per table, tables sorted by name and
// columns in ordinal order.
func FormatSchema(m schema.Map) string {
	lines := make([]string, 0, len(m)*4)
	for _, table := range m.Tables() {
		lines = append(lines, "Table "+table+":")
		for _, column := range m[table] {
			lines = append(lines, fmt.Sprintf("- %s (%s)", column.Name, column.Type))
		}
	}
	return strings.Join(lines, "\n")
}

// TranslationMessages returns the system and user messages for one
// translation request.
func TranslationMessages(req Request) (system, user string) {
	system = strings.TrimSpace(req.SystemPrompt) + "\n" + translateInstructions
	user = "Detected schema:\n" + FormatSchema(req.Schema) +
		"\n\nUser question: " + strings.TrimSpace(req.Question) +
		"\n" + rowCapInstruction
	return system, user
}

// SummaryMessages returns the system and user messages for one summary
// request. Only the first PreviewRows rows are included.
func SummaryMessages(req SummaryRequest) (system, user string, err error) {
	columns, err := encodeJSON(nonNilColumns(req.Columns))
	if err != nil {
		return "", "", fmt.Errorf("encode columns: %w", err)
	}
	preview, err := previewJSON(req.Columns, req.Rows)
	if err != nil {
		return "", "", err
	}
	system = strings.TrimSpace(req.Prompt)
	user = summaryInstructions + "\nColumns: " + string(columns) + "\nSample rows: " + preview
	return system, user, nil
}

// previewJSON encodes the first rows as objects whose keys follow column
// order, which a plain map encoding would sort away.
func previewJSON(columns []string, rows [][]any) (string, error) {
	if len(rows) > PreviewRows {
		rows = rows[:PreviewRows]
	}
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, row := range rows {
		if i > 0 {
			buf.WriteString(", ")
		}
		buf.WriteByte('{')
		for j, column := range columns {
			if j > 0 {
				buf.WriteString(", ")
			}
			key, err := encodeJSON(column)
			if err != nil {
				return "", fmt.Errorf("encode column name: %w", err)
			}
			var value any
			if j < len(row) {
				value = row[j]
			}
			encoded, err := encodeJSON(value)
			if err != nil {
				return "", fmt.Errorf("encode value of %s: %w", column, err)
			}
			buf.Write(key)
			buf.WriteString(": ")
			buf.Write(encoded)
		}
		buf.WriteByte('}')
	}
	buf.WriteByte(']')
	return buf.String(), nil
}

// encodeJSON marshals v on one line without HTML escaping, so values reach
// the model exactly as stored.
func encodeJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

func newRendering(summary string, req SummaryRequest) Rendering {
	rows := req.Rows
	if rows == nil {
		rows = [][]any{}
	}
	return Rendering{Summary: summary, Columns: nonNilColumns(req.Columns), Rows: rows}
}

func nonNilColumns(columns []string) []string {
	if columns == nil {
		return []string{}
	}
	return columns
}
