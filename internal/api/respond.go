package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/KaramelBytes/dataglimpse/internal/dataset"
	"github.com/KaramelBytes/dataglimpse/internal/ingest"
	"github.com/KaramelBytes/dataglimpse/internal/insight"
	"github.com/KaramelBytes/dataglimpse/internal/migration"
	"github.com/KaramelBytes/dataglimpse/internal/parser"
	"github.com/KaramelBytes/dataglimpse/internal/projection"
	"github.com/KaramelBytes/dataglimpse/internal/store"
	"go.uber.org/zap"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"success": status < 400, "message": msg})
}

// statusFor maps service errors onto HTTP statuses.
func statusFor(err error) int {
	var (
		unsupported *parser.UnsupportedFormatError
		badFile     *parser.ParseError
		badConfig   *dataset.InvalidConfigError
		badRange    *projection.InvalidRangeError
		noColumns   *projection.NoValidColumnsError
		empty       *dataset.EmptyDatasetError
		forbidden   *dataset.ForbiddenError
		genErr      *insight.GenerationError
		migErr      *migration.MigrationError
		tooBig      *http.MaxBytesError
	)
	switch {
	case errors.As(err, &unsupported):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, ingest.ErrTooLarge), errors.As(err, &tooBig):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &badFile), errors.As(err, &badConfig), errors.As(err, &badRange), errors.As(err, &noColumns), errors.As(err, &empty):
		return http.StatusBadRequest
	case errors.As(err, &forbidden):
		return http.StatusForbidden
	case errors.Is(err, store.ErrConflict):
		return http.StatusConflict
	case errors.As(err, &genErr):
		return http.StatusBadGateway
	case errors.As(err, &migErr):
		return http.StatusInternalServerError
	}
	return http.StatusInternalServerError
}

// writeError logs server-side failures and reports err to the client.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status >= 500 {
		h.Log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		if status == http.StatusInternalServerError {
			msg = "internal error"
		}
	}
	writeJSON(w, status, map[string]any{"success": false, "message": msg})
}

// decodeBody reads a JSON object, keeping numbers as json.Number.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return &dataset.InvalidConfigError{Reason: "malformed JSON body", Err: err}
	}
	return nil
}
