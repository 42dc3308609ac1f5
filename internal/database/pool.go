// Package database opens the target database named by the configuration
// DSN, runs model-generated SQL against it and reads its schema.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/marcboeker/go-duckdb/v2"

	"github.com/waitrain/waitrain/internal/apperr"
	"github.com/waitrain/waitrain/internal/config"
)

const (
	duckDBDriverName   = "duckdb"
	defaultPingTimeout = 5 * time.Second
)

// Connector hands out a ready connection pool for the configured database.
type Connector interface {
	Open(ctx context.Context, settings config.DatabaseSettings) (*sql.DB, error)
}

// Pool keeps one *sql.DB per DSN for the life of the process. Pools that fail
// to open or ping are not kept, so the next request retries.
type Pool struct {
	PingTimeout time.Duration

	mu  sync.Mutex
	dbs map[string]*sql.DB

	openDB func(driverName, dataSource string) (*sql.DB, error)
}

func NewPool() *Pool {
	return &Pool{
		PingTimeout: defaultPingTimeout,
		dbs:         map[string]*sql.DB{},
		openDB:      sql.Open,
	}
}

func (p *Pool) Open(ctx context.Context, settings config.DatabaseSettings) (*sql.DB, error) {
	dsn := strings.TrimSpace(settings.DSN)
	if dsn == "" {
		return nil, apperr.New(apperr.KindConfigInvalid, "database", "database dsn is required")
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if db, ok := p.dbs[dsn]; ok {
		return db, nil
	}

	driverName, dataSource, err := DriverFor(dsn)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindConfigInvalid, "database", "unsupported database dsn", err)
	}

	db, err := p.openDB(driverName, dataSource)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindDatabase, "database", "open database", err)
	}
	if settings.MaxOpenConns > 0 {
		db.SetMaxOpenConns(settings.MaxOpenConns)
	}
	if settings.MaxIdleConns > 0 {
		db.SetMaxIdleConns(settings.MaxIdleConns)
	}

	timeout := p.PingTimeout
	if timeout <= 0 {
		timeout = defaultPingTimeout
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, apperr.Wrap(apperr.KindDatabase, "database", "connect to database", err)
	}

	p.dbs[dsn] = db
	return db, nil
}

func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var errs []error
	for dsn, db := range p.dbs {
		if err := db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", redactDSN(dsn), err))
		}
		delete(p.dbs, dsn)
	}
	return errors.Join(errs...)
}

// DriverFor maps a DSN to a registered database/sql driver. postgres:// and
// postgresql:// URLs go to pgx unchanged; duckdb://<path> opens the file at
// path, or an in-memory database when path is empty.
func DriverFor(dsn string) (driverName, dataSource string, err error) {
	scheme, rest, ok := strings.Cut(strings.TrimSpace(dsn), "://")
	if !ok {
		return "", "", fmt.Errorf("dsn %q has no scheme", redactDSN(dsn))
	}
	switch strings.ToLower(scheme) {
	case "postgres", "postgresql":
		return postgresDriverName, dsn, nil
	case "duckdb":
		return duckDBDriverName, rest, nil
	default:
		return "", "", fmt.Errorf("unsupported scheme %q", scheme)
	}
}

func redactDSN(dsn string) string {
	scheme, rest, ok := strings.Cut(dsn, "://")
	if !ok {
		return dsn
	}
	if at := strings.LastIndex(rest, "@"); at >= 0 {
		return scheme + "://***@" + rest[at+1:]
	}
	return dsn
}
