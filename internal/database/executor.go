package database

import (
	"context"
	"database/sql"
	"math/big"
	"strings"

	duckdb "github.com/marcboeker/go-duckdb/v2"

	"github.com/waitrain/waitrain/internal/apperr"
)

// Result is the full, eagerly fetched output of one statement.
type Result struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// Run executes sqlText and reads every row. All failures are db_error.
func Run(ctx context.Context, db *sql.DB, sqlText string) (Result, error) {
	if db == nil {
		return Result{}, apperr.New(apperr.KindDatabase, "execute", "database is not connected")
	}
	if strings.TrimSpace(sqlText) == "" {
		return Result{}, apperr.New(apperr.KindDatabase, "execute", "sql is required")
	}

	rows, err := db.QueryContext(ctx, sqlText)
	if err != nil {
		return Result{}, apperr.Wrap(apperr.KindDatabase, "execute", "execute query", err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return Result{}, apperr.Wrap(apperr.KindDatabase, "execute", "query columns", err)
	}
	if columns == nil {
		columns = []string{}
	}

	resultRows := make([][]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return Result{}, apperr.Wrap(apperr.KindDatabase, "execute", "scan row", err)
		}
		resultRows = append(resultRows, normalizeValues(values))
	}
	if err := rows.Err(); err != nil {
		return Result{}, apperr.Wrap(apperr.KindDatabase, "execute", "iterate rows", err)
	}

	return Result{Columns: columns, Rows: resultRows}, nil
}

// Ping runs the SELECT 1 check used by diagnostics.
func Ping(ctx context.Context, db *sql.DB) error {
	result, err := Run(ctx, db, "SELECT 1")
	if err != nil {
		return err
	}
	if len(result.Rows) != 1 || len(result.Columns) != 1 {
		return apperr.New(apperr.KindDatabase, "execute", "unexpected SELECT 1 result")
	}
	return nil
}

// IsReadOnlySQL reports whether sqlText starts as a SELECT or WITH query.
func IsReadOnlySQL(sqlText string) bool {
	normalized := strings.ToLower(strings.TrimLeft(sqlText, " \t\r\n("))
	return strings.HasPrefix(normalized, "select") || strings.HasPrefix(normalized, "with")
}

// normalizeValues turns driver-specific values into ones that encode as
// plain JSON scalars.
func normalizeValues(values []any) []any {
	normalized := make([]any, len(values))
	for i, value := range values {
		switch typed := value.(type) {
		case []byte:
			normalized[i] = string(typed)
		case duckdb.Decimal:
			normalized[i] = decimalString(typed)
		case *big.Int:
			normalized[i] = typed.String()
		default:
			normalized[i] = typed
		}
	}
	return normalized
}

func decimalString(d duckdb.Decimal) string {
	if d.Value == nil {
		return "0"
	}
	denominator := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(d.Scale)), nil)
	return new(big.Rat).SetFrac(d.Value, denominator).FloatString(int(d.Scale))
}
