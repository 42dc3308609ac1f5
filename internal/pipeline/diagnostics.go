package pipeline

import (
	"context"
	"fmt"

	"github.com/waitrain/waitrain/internal/apperr"
	"github.com/waitrain/waitrain/internal/database"
)

const (
	StatusOK    = "ok"
	StatusError = "error"
)

type Check struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Detail string `json:"detail"`
}

type Report struct {
	OK     bool    `json:"ok"`
	Checks []Check `json:"checks"`
}

// Diagnostics checks config, database and schema_cache in that order and
// stops at the first failure; later checks are left out of the report.
func (s *Service) Diagnostics(ctx context.Context) Report {
	report := Report{OK: true, Checks: make([]Check, 0, 3)}
	fail := func(name string, err error) Report {
		report.OK = false
		report.Checks = append(report.Checks, Check{Name: name, Status: StatusError, Detail: errorDetail(err)})
		return report
	}
	pass := func(name, detail string) {
		report.Checks = append(report.Checks, Check{Name: name, Status: StatusOK, Detail: detail})
	}

	settings, err := s.settings()
	if err != nil {
		return fail("config", err)
	}
	pass("config", "loaded "+settings.Path)

	db, err := s.connector.Open(ctx, settings.Database)
	if err == nil {
		err = database.Ping(ctx, db)
	}
	if err != nil {
		return fail("database", err)
	}
	pass("database", "SELECT 1 succeeded")

	schemaMap, err := s.schemaFor(ctx, settings, database.NewIntrospector(db))
	if err != nil {
		return fail("schema_cache", err)
	}
	pass("schema_cache", fmt.Sprintf("%d tables in %s", len(schemaMap), settings.Database.SchemaCachePath))

	return report
}

func errorDetail(err error) string {
	appErr := apperr.As(err)
	return fmt.Sprintf("%s: %s", appErr.Kind, appErr.Error())
}
