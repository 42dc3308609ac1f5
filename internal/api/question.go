package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/waitrain/waitrain/internal/apperr"
)

const maxQuestionBodyBytes = 64 << 10

type questionRequest struct {
	Text string `json:"text"`
}

func handleQuestion(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Pipeline == nil {
		writeError(r.Context(), deps.Logger, w, apperr.New(apperr.KindUnexpected, "request", "question pipeline is not configured"))
		return
	}

	var req questionRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxQuestionBodyBytes))
	if err := decoder.Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(r.Context(), deps.Logger, w, apperr.Wrap(apperr.KindInvalidRequest, "request", "request body is too large", err))
			return
		}
		writeError(r.Context(), deps.Logger, w, apperr.Wrap(apperr.KindInvalidRequest, "request", "invalid question request body", err))
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(r.Context(), deps.Logger, w, apperr.New(apperr.KindInvalidRequest, "request", "text is required"))
		return
	}

	answer, err := deps.Pipeline.Ask(r.Context(), req.Text)
	if err != nil {
		writeError(r.Context(), deps.Logger, w, err)
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

func handleSchema(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Pipeline == nil {
		writeError(r.Context(), deps.Logger, w, apperr.New(apperr.KindUnexpected, "request", "question pipeline is not configured"))
		return
	}
	schemaMap, err := deps.Pipeline.Schema(r.Context())
	if err != nil {
		writeError(r.Context(), deps.Logger, w, err)
		return
	}
	writeJSON(w, http.StatusOK, schemaMap)
}

// handleDiagnostics always answers 200; failures are reported in the body.
func handleDiagnostics(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Pipeline == nil {
		writeError(r.Context(), deps.Logger, w, apperr.New(apperr.KindUnexpected, "request", "question pipeline is not configured"))
		return
	}
	writeJSON(w, http.StatusOK, deps.Pipeline.Diagnostics(r.Context()))
}
