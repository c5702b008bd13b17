package api

import (
	"net/http"

	"github.com/segmentio/encoding/json"
)

// writeJSON encodes v as the response body. HEAD requests get headers only;
// net/http drops the body.
func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		body = []byte(`{"error":"failed to encode response","kind":"load_failed"}`)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}
