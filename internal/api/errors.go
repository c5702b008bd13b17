package api

import (
	"errors"
	"net/http"

	"github.com/rickgao/robot-telemetry/internal/store"
)

// KindNotFound marks requests for unknown routes.
const KindNotFound = "not_found"

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// StatusFor maps a snapshot error to its HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNoData), errors.Is(err, store.ErrStoreNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrStoreMalformed), errors.Is(err, store.ErrRecordMalformed):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			"path", r.URL.Path,
			"request_id", RequestID(r.Context()),
			"error", err,
		)
	}
	writeJSON(w, status, ErrorResponse{
		Error: err.Error(),
		Kind:  store.Kind(err),
	})
}
