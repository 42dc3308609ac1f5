package nl2sql

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/waitrain/waitrain/internal/schema"
)

func TestLocalTranslateMatchesTableName(t *testing.T) {
	tests := []struct {
		question string
		schema   schema.Map
		want     string
	}{
		{"show me orders", shopSchema, "SELECT * FROM orders LIMIT 50;"},
		{"Which customer spent most?", shopSchema, "SELECT * FROM customers LIMIT 50;"},
		{"orders and customers please", shopSchema, "SELECT * FROM customers LIMIT 50;"},
		{"list every category", schema.Map{"categories": nil}, "SELECT * FROM categories LIMIT 50;"},
		{"the latest invoice", schema.Map{"invoice": nil}, "SELECT * FROM invoice LIMIT 50;"},
		{"all invoices", schema.Map{"invoice": nil}, "SELECT * FROM invoice LIMIT 50;"},
		{"show LineItems", schema.Map{"LineItems": nil}, `SELECT * FROM "LineItems" LIMIT 50;`},
		{"open order_items", schema.Map{"order_items": nil}, "SELECT * FROM order_items LIMIT 50;"},
	}
	for _, tc := range tests {
		got, err := LocalAssistant{}.Translate(context.Background(), Request{Question: tc.question, Schema: tc.schema})
		if err != nil {
			t.Fatalf("Translate(%q) error = %v", tc.question, err)
		}
		if got != tc.want {
			t.Fatalf("Translate(%q) = %q, want %q", tc.question, got, tc.want)
		}
	}
}

func TestLocalTranslateFallsBackToTableListing(t *testing.T) {
	got, err := LocalAssistant{}.Translate(context.Background(), Request{Question: "what is the weather like?", Schema: shopSchema})
	if err != nil {
		t.Fatalf("Translate() error = %v", err)
	}
	if got != FallbackSQL {
		t.Fatalf("Translate() = %q", got)
	}

	got, err = LocalAssistant{}.Translate(context.Background(), Request{Question: "orders", Schema: nil})
	if err != nil || got != FallbackSQL {
		t.Fatalf("Translate() with empty schema = %q, %v", got, err)
	}
}

func TestLocalSummarize(t *testing.T) {
	tests := []struct {
		columns []string
		rows    [][]any
		want    string
	}{
		{[]string{"id", "total"}, [][]any{{1, "9.50"}, {2, "3.00"}}, "The query returned 2 rows with columns id, total."},
		{[]string{"id"}, [][]any{{1}}, "The query returned 1 row with columns id."},
		{[]string{"id"}, nil, "The query returned no rows."},
	}
	for _, tc := range tests {
		rendering, err := LocalAssistant{}.Summarize(context.Background(), SummaryRequest{Columns: tc.columns, Rows: tc.rows})
		if err != nil {
			t.Fatalf("Summarize() error = %v", err)
		}
		if rendering.Summary != tc.want {
			t.Fatalf("Summary = %q, want %q", rendering.Summary, tc.want)
		}
		if diff := cmp.Diff(tc.columns, rendering.Columns); diff != "" {
			t.Fatalf("columns mismatch (-want +got):\n%s", diff)
		}
		if rendering.Rows == nil || len(rendering.Rows) != len(tc.rows) {
			t.Fatalf("rows = %#v", rendering.Rows)
		}
	}
}
