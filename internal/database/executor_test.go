package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/go-cmp/cmp"

	"github.com/waitrain/waitrain/internal/apperr"
)

func TestRunSelectOne(t *testing.T) {
	db := openDuckDB(t)

	result, err := Run(context.Background(), db, "SELECT 1")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(result.Columns) != 1 {
		t.Fatalf("columns = %v", result.Columns)
	}
	if len(result.Rows) != 1 || len(result.Rows[0]) != 1 {
		t.Fatalf("rows = %v", result.Rows)
	}
	if got := fmt.Sprint(result.Rows[0][0]); got != "1" {
		t.Fatalf("value = %q", got)
	}
}

func TestRunNormalizesDecimalsAndBytes(t *testing.T) {
	db := openDuckDB(t)
	ctx := context.Background()
	if _, err := db.ExecContext(ctx, `CREATE TABLE orders (id INTEGER, total NUMERIC(10,2), note BLOB)`); err != nil {
		t.Fatalf("create table: %v", err)
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO orders VALUES (1, 12.50, 'a'::BLOB), (2, 3.05, NULL)`); err != nil {
		t.Fatalf("insert: %v", err)
	}

	result, err := Run(ctx, db, "SELECT id, total, note FROM orders ORDER BY id")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	want := [][]any{
		{int32(1), "12.50", "a"},
		{int32(2), "3.05", nil},
	}
	if diff := cmp.Diff(want, result.Rows); diff != "" {
		t.Fatalf("rows mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"id", "total", "note"}, result.Columns); diff != "" {
		t.Fatalf("columns mismatch (-want +got):\n%s", diff)
	}
}

func TestRunReturnsEmptySlicesForNoRows(t *testing.T) {
	db, mock := newSQLMock(t)
	mock.ExpectQuery(`SELECT name FROM customers`).WillReturnRows(sqlmock.NewRows([]string{"name"}))

	result, err := Run(context.Background(), db, "SELECT name FROM customers")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Rows == nil || len(result.Rows) != 0 {
		t.Fatalf("rows = %#v", result.Rows)
	}
	assertSQLMock(t, mock)
}

func TestRunWrapsFailuresAsDatabaseErrors(t *testing.T) {
	db, mock := newSQLMock(t)
	mock.ExpectQuery(`SELEC oops`).WillReturnError(errors.New(`syntax error at or near "SELEC"`))

	_, err := Run(context.Background(), db, "SELEC oops")
	if apperr.KindOf(err) != apperr.KindDatabase {
		t.Fatalf("kind = %q, err = %v", apperr.KindOf(err), err)
	}
	assertSQLMock(t, mock)

	if _, err := Run(context.Background(), db, "   "); apperr.KindOf(err) != apperr.KindDatabase {
		t.Fatalf("empty sql kind = %q", apperr.KindOf(err))
	}
}

func TestPing(t *testing.T) {
	if err := Ping(context.Background(), openDuckDB(t)); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}

	db, mock := newSQLMock(t)
	mock.ExpectQuery(`SELECT 1`).WillReturnError(errors.New("connection reset"))
	if err := Ping(context.Background(), db); apperr.KindOf(err) != apperr.KindDatabase {
		t.Fatalf("kind = %q, err = %v", apperr.KindOf(err), err)
	}
}

func TestIsReadOnlySQL(t *testing.T) {
	cases := []struct {
		sql  string
		want bool
	}{
		{"SELECT * FROM orders LIMIT 50;", true},
		{"  with totals AS (SELECT 1) SELECT * FROM totals", true},
		{"(SELECT 1) UNION (SELECT 2)", true},
		{"DELETE FROM orders", false},
		{"drop table orders", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := IsReadOnlySQL(tc.sql); got != tc.want {
			t.Fatalf("IsReadOnlySQL(%q) = %v, want %v", tc.sql, got, tc.want)
		}
	}
}

func openDuckDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open(duckDBDriverName, "")
	if err != nil {
		t.Fatalf("open duckdb: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newSQLMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func assertSQLMock(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sql expectations: %v", err)
	}
}
