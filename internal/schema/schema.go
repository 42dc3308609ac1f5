// Package schema caches table and column metadata for the target database.
package schema

import (
	"context"
	"sort"
)

type Column struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
}

// Map holds the columns of every table, in ordinal order, keyed by table name.
type Map map[string][]Column

// Tables returns the table names in sorted order.
func (m Map) Tables() []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Source produces a schema map when no cached copy exists.
type Source interface {
	Introspect(ctx context.Context) (Map, error)
}

type SourceFunc func(ctx context.Context) (Map, error)

func (f SourceFunc) Introspect(ctx context.Context) (Map, error) {
	return f(ctx)
}
