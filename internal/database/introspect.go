package database

import (
	"context"
	"database/sql"

	"github.com/waitrain/waitrain/internal/apperr"
	"github.com/waitrain/waitrain/internal/schema"
)

const (
	listTablesSQL  = `SELECT table_name FROM information_schema.tables WHERE table_schema = current_schema() AND table_type = 'BASE TABLE' ORDER BY table_name`
	listColumnsSQL = `SELECT column_name, data_type, is_nullable FROM information_schema.columns WHERE table_schema = current_schema() AND table_name = $1 ORDER BY ordinal_position`
)

// Introspector reads table and column metadata from information_schema.
type Introspector struct {
	DB *sql.DB
}

func NewIntrospector(db *sql.DB) *Introspector {
	return &Introspector{DB: db}
}

func (i *Introspector) Introspect(ctx context.Context) (schema.Map, error) {
	if i.DB == nil {
		return nil, apperr.New(apperr.KindDatabase, "schema", "database is not connected")
	}

	tables, err := i.listTables(ctx)
	if err != nil {
		return nil, err
	}

	result := make(schema.Map, len(tables))
	for _, table := range tables {
		columns, err := i.listColumns(ctx, table)
		if err != nil {
			return nil, err
		}
		result[table] = columns
	}
	return result, nil
}

func (i *Introspector) listTables(ctx context.Context) ([]string, error) {
	rows, err := i.DB.QueryContext(ctx, listTablesSQL)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindDatabase, "schema", "list tables", err)
	}
	defer func() { _ = rows.Close() }()

	tables := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, apperr.Wrap(apperr.KindDatabase, "schema", "scan table name", err)
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(apperr.KindDatabase, "schema", "iterate tables", err)
	}
	return tables, nil
}

func (i *Introspector) listColumns(ctx context.Context, table string) ([]schema.Column, error) {
	rows, err := i.DB.QueryContext(ctx, listColumnsSQL, table)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindDatabase, "schema", "list columns of "+table, err)
	}
	defer func() { _ = rows.Close() }()

	columns := make([]schema.Column, 0)
	for rows.Next() {
		var (
			column     schema.Column
			isNullable string
		)
		if err := rows.Scan(&column.Name, &column.Type, &isNullable); err != nil {
			return nil, apperr.Wrap(apperr.KindDatabase, "schema", "scan column of "+table, err)
		}
		column.Nullable = isNullable == "YES"
		columns = append(columns, column)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(apperr.KindDatabase, "schema", "iterate columns of "+table, err)
	}
	return columns, nil
}
