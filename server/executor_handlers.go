package server

import (
	"fmt"
	"net/http"

	"github.com/teranos/tempo/errors"
)

// HandleExecutors handles requests for all executor states
// GET /executor
func (s *Server) HandleExecutors(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"task_executors": s.manager.States(),
	})
}

// HandleExecutor handles requests for a single executor state
// GET /executor/{task_id}
func (s *Server) HandleExecutor(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	id, ok := parsePathID(w, r.URL.Path, "/executor/")
	if !ok {
		return
	}

	state, err := s.manager.State(id)
	if err != nil {
		if errors.IsNotFoundError(err) {
			writeError(w, http.StatusNotFound, fmt.Sprintf("No task with ID %d", id))
			return
		}
		s.logger.Errorw("Failed to get executor state", "error", err, "task_id", id)
		writeError(w, http.StatusInternalServerError, "Failed to get executor state")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"task_executor": state})
}

// HandleRunExecutor arms the executor for a task
// POST /run_executor/{task_id}
func (s *Server) HandleRunExecutor(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	id, ok := parsePathID(w, r.URL.Path, "/run_executor/")
	if !ok {
		return
	}

	if err := s.manager.RunTask(id); err != nil {
		if errors.IsNotFoundError(err) {
			writeError(w, http.StatusNotFound, fmt.Sprintf("No task with ID %d", id))
			return
		}
		s.logger.Errorw("Failed to run executor", "error", err, "task_id", id)
		writeError(w, http.StatusInternalServerError, "Failed to run executor")
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{"task_id": id})
}

// HandleStopExecutor disarms the executor for a task. A run already in
// flight is not interrupted.
// POST /stop_executor/{task_id}
func (s *Server) HandleStopExecutor(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	id, ok := parsePathID(w, r.URL.Path, "/stop_executor/")
	if !ok {
		return
	}

	if err := s.manager.StopTask(id); err != nil {
		if errors.IsNotFoundError(err) {
			writeError(w, http.StatusNotFound, fmt.Sprintf("No task with ID %d", id))
			return
		}
		s.logger.Errorw("Failed to stop executor", "error", err, "task_id", id)
		writeError(w, http.StatusInternalServerError, "Failed to stop executor")
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{"task_id": id})
}
