package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/waitrain/waitrain/internal/apperr"
	"github.com/waitrain/waitrain/internal/config"
	"github.com/waitrain/waitrain/internal/observability"
	"github.com/waitrain/waitrain/internal/pipeline"
	"github.com/waitrain/waitrain/internal/schema"
)

// Pipeline is the question service behind the HTTP surface.
type Pipeline interface {
	Ask(ctx context.Context, question string) (pipeline.Answer, error)
	Schema(ctx context.Context) (schema.Map, error)
	Diagnostics(ctx context.Context) pipeline.Report
}

type Dependencies struct {
	Logger   *slog.Logger
	Pipeline Pipeline
	UI       http.Handler
}

func NewHandler(cfg config.Config, deps Dependencies) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "service": cfg.Service.Name})
	})
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /schema", func(w http.ResponseWriter, r *http.Request) {
		handleSchema(deps, w, r)
	})
	mux.HandleFunc("GET /diagnostics", func(w http.ResponseWriter, r *http.Request) {
		handleDiagnostics(deps, w, r)
	})
	mux.HandleFunc("POST /question", func(w http.ResponseWriter, r *http.Request) {
		handleQuestion(deps, w, r)
	})
	if deps.UI != nil {
		mux.Handle("GET /{path...}", deps.UI)
	}

	middlewares := []func(http.Handler) http.Handler{
		cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"*"},
			ExposedHeaders: []string{"X-Trace-ID"},
		}),
		observability.TraceMiddleware,
		observability.MetricsMiddleware,
	}
	if deps.Logger != nil {
		middlewares = append(middlewares,
			observability.LoggingMiddleware(deps.Logger),
			observability.RecoverMiddleware(deps.Logger),
		)
	}
	return chain(mux, middlewares...)
}

func chain(base http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	wrapped := base
	for i := len(middlewares) - 1; i >= 0; i-- {
		wrapped = middlewares[i](wrapped)
	}
	return wrapped
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorBody struct {
	Kind    apperr.Kind `json:"kind"`
	Context string      `json:"context"`
	Message string      `json:"message"`
	TraceID string      `json:"trace_id"`
}

// writeError maps err to its status code and logs it with the request's
// trace ID.
func writeError(ctx context.Context, logger *slog.Logger, w http.ResponseWriter, err error) {
	appErr := apperr.As(err)
	status := apperr.HTTPStatus(appErr.Kind)
	if logger != nil {
		level := slog.LevelWarn
		if status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		observability.RequestLogger(ctx, logger).LogAttrs(ctx, level, "request failed",
			slog.String("kind", string(appErr.Kind)),
			slog.String("context", appErr.Context),
			slog.Any("error", err),
		)
	}
	writeJSON(w, status, errorBody{
		Kind:    appErr.Kind,
		Context: appErr.Context,
		Message: appErr.Error(),
		TraceID: observability.TraceIDFromContext(ctx),
	})
}
