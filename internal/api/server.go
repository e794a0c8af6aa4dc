// Package api is the minimal HTTP surface over the control service (C8):
// start, stop and trigger-post-only for a process. It is not a full REST
// API — just enough to drive the pipeline end-to-end outside of tests.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/fgrng/yourmoment/internal/control"
	"github.com/fgrng/yourmoment/internal/pipeline"
)

// Server wraps a control.Service with chi routing.
type Server struct {
	control        *control.Service
	maxDurationCap int
}

func NewServer(controlSvc *control.Service, maxDurationCap int) *Server {
	return &Server{control: controlSvc, maxDurationCap: maxDurationCap}
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Route("/api/processes/{id}", func(r chi.Router) {
		r.Post("/start", s.startProcess)
		r.Post("/stop", s.stopProcess)
		r.Post("/trigger-post-only", s.triggerPostOnly)
	})

	return r
}

func (s *Server) startProcess(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	process, err := s.control.StartProcess(r.Context(), id, s.maxDurationCap)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, process)
}

type stopRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) stopProcess(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var body stopRequest
	json.NewDecoder(r.Body).Decode(&body)
	if body.Reason == "" {
		body.Reason = "user_requested"
	}

	process, err := s.control.StopProcess(r.Context(), id, body.Reason)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, process)
}

func (s *Server) triggerPostOnly(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	result, err := s.control.TriggerPostOnly(r.Context(), id)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func writeErr(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, pipeline.ErrValidation) {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
