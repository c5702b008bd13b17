package api

import (
	"net/http"

	"github.com/rickgao/robot-telemetry/internal/version"
)

// StatusResponse is the liveness body.
type StatusResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{
		Status:  "ok",
		Service: ServiceName,
	})
}

func (s *Server) handleRobots(w http.ResponseWriter, r *http.Request) {
	robots, err := s.snapshot.Robots()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, robots)
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, version.Get())
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, ErrorResponse{
		Error: "no route for " + r.Method + " " + r.URL.Path,
		Kind:  KindNotFound,
	})
}
