package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/qustavo/sqlhooks/v2"

	"github.com/waitrain/waitrain/internal/observability"
)

const postgresDriverName = "pgx-instrumented"

func init() {
	sql.Register(postgresDriverName, sqlhooks.Wrap(stdlib.GetDefaultDriver(), &statementMetrics{driver: "postgres"}))
}

type statementStartKey struct{}

// statementMetrics reports every statement sent through the pgx driver.
type statementMetrics struct {
	driver string
}

func (h *statementMetrics) Before(ctx context.Context, _ string, _ ...interface{}) (context.Context, error) {
	return context.WithValue(ctx, statementStartKey{}, time.Now()), nil
}

func (h *statementMetrics) After(ctx context.Context, _ string, _ ...interface{}) (context.Context, error) {
	observability.ObserveSQLStatement(h.driver, elapsedSince(ctx), nil)
	return ctx, nil
}

func (h *statementMetrics) OnError(ctx context.Context, err error, _ string, _ ...interface{}) error {
	observability.ObserveSQLStatement(h.driver, elapsedSince(ctx), err)
	return err
}

func elapsedSince(ctx context.Context) time.Duration {
	start, ok := ctx.Value(statementStartKey{}).(time.Time)
	if !ok {
		return 0
	}
	return time.Since(start)
}
