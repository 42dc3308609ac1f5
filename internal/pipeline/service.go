// Package pipeline runs the question round trip: settings, database,
// schema cache, translation, execution and summary.
package pipeline

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/waitrain/waitrain/internal/apperr"
	"github.com/waitrain/waitrain/internal/config"
	"github.com/waitrain/waitrain/internal/database"
	"github.com/waitrain/waitrain/internal/nl2sql"
	"github.com/waitrain/waitrain/internal/observability"
	"github.com/waitrain/waitrain/internal/schema"
	"github.com/waitrain/waitrain/internal/storage"
	"github.com/waitrain/waitrain/internal/storage/s3"
)

type SettingsLoader func() (config.Settings, error)

type AssistantFactory func(config.Settings) (nl2sql.Assistant, error)

type ObjectStoreFactory func(config.ObjectStoreSettings) (storage.ObjectStore, error)

// Options wires a Service. Settings, Connector and Cache are required.
type Options struct {
	Settings       SettingsLoader
	Connector      database.Connector
	Cache          *schema.Cache
	NewAssistant   AssistantFactory
	NewObjectStore ObjectStoreFactory
	Logger         *slog.Logger
}

type Service struct {
	loadSettings   SettingsLoader
	connector      database.Connector
	cache          *schema.Cache
	newAssistant   AssistantFactory
	newObjectStore ObjectStoreFactory
	logger         *slog.Logger
}

// Answer is the response to one question.
type Answer struct {
	SQL       string           `json:"sql"`
	Rendering nl2sql.Rendering `json:"rendering"`
}

func New(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	newAssistant := opts.NewAssistant
	if newAssistant == nil {
		newAssistant = nl2sql.New
	}
	newObjectStore := opts.NewObjectStore
	if newObjectStore == nil {
		newObjectStore = func(settings config.ObjectStoreSettings) (storage.ObjectStore, error) {
			return s3.New(s3.ConfigFromSettings(settings))
		}
	}
	return &Service{
		loadSettings:   opts.Settings,
		connector:      opts.Connector,
		cache:          opts.Cache,
		newAssistant:   newAssistant,
		newObjectStore: newObjectStore,
		logger:         logger,
	}
}

// Ask answers question. Any failing stage aborts the whole request.
func (s *Service) Ask(ctx context.Context, question string) (answer Answer, err error) {
	start := time.Now()
	logger := observability.RequestLogger(ctx, s.logger)
	defer func() {
		kind := ""
		if err != nil {
			kind = string(apperr.KindOf(err))
		}
		observability.ObserveQuestion(kind)
	}()

	question = strings.TrimSpace(question)
	if question == "" {
		return Answer{}, apperr.New(apperr.KindInvalidRequest, "request", "question text is required")
	}

	settings, err := s.settings()
	if err != nil {
		return Answer{}, err
	}
	assistant, err := s.newAssistant(settings)
	if err != nil {
		return Answer{}, err
	}
	db, err := s.connector.Open(ctx, settings.Database)
	if err != nil {
		return Answer{}, err
	}
	schemaMap, err := s.schemaFor(ctx, settings, database.NewIntrospector(db))
	if err != nil {
		return Answer{}, err
	}

	sqlText, err := assistant.Translate(ctx, nl2sql.Request{
		Question:     question,
		Schema:       schemaMap,
		SystemPrompt: settings.SystemPrompt,
	})
	if err != nil {
		return Answer{}, err
	}
	if settings.Database.ReadOnly && !database.IsReadOnlySQL(sqlText) {
		return Answer{SQL: sqlText}, apperr.New(apperr.KindDatabase, "execute", "generated SQL is not a read-only query")
	}

	result, err := database.Run(ctx, db, sqlText)
	if err != nil {
		return Answer{SQL: sqlText}, err
	}

	rendering, err := assistant.Summarize(ctx, nl2sql.SummaryRequest{
		Columns: result.Columns,
		Rows:    result.Rows,
		Prompt:  settings.SummaryPrompt,
	})
	if err != nil {
		return Answer{SQL: sqlText}, err
	}

	logger.InfoContext(ctx, "question answered",
		slog.String("sql", sqlText),
		slog.Int("rows", len(result.Rows)),
		slog.Duration("duration", time.Since(start)),
	)
	return Answer{SQL: sqlText, Rendering: rendering}, nil
}

// Schema returns the cached schema map of the configured database.
func (s *Service) Schema(ctx context.Context) (schema.Map, error) {
	settings, err := s.settings()
	if err != nil {
		return nil, err
	}
	return s.schemaFor(ctx, settings, schema.SourceFunc(func(ctx context.Context) (schema.Map, error) {
		db, err := s.connector.Open(ctx, settings.Database)
		if err != nil {
			return nil, err
		}
		return database.NewIntrospector(db).Introspect(ctx)
	}))
}

func (s *Service) settings() (config.Settings, error) {
	if s.loadSettings == nil {
		return config.Settings{}, apperr.New(apperr.KindConfigMissing, "settings", "no settings loader configured")
	}
	return s.loadSettings()
}

// schemaFor loads the schema through the cache. source is only consulted
// when neither memory, the cache file nor the object store mirror has a copy.
func (s *Service) schemaFor(ctx context.Context, settings config.Settings, source schema.Source) (schema.Map, error) {
	if settings.ObjectStore != nil {
		source = s.mirrored(ctx, settings, source)
	}
	return s.cache.GetOrBuild(ctx, source, settings.Database.SchemaCachePath)
}

func (s *Service) mirrored(ctx context.Context, settings config.Settings, source schema.Source) schema.Source {
	logger := observability.RequestLogger(ctx, s.logger)
	key, err := storage.BuildSchemaCacheKey(settings.Database.DSN)
	if err != nil {
		logger.WarnContext(ctx, "schema mirror disabled", slog.Any("error", err))
		return source
	}
	store, err := s.newObjectStore(*settings.ObjectStore)
	if err != nil {
		logger.WarnContext(ctx, "schema mirror disabled", slog.Any("error", err))
		return source
	}
	return schema.MirroredSource{Source: source, Store: store, Key: key, Logger: logger}
}
