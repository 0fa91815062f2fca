package server

import (
	"fmt"
	"math"
	"net/http"

	"github.com/teranos/tempo/errors"
	"github.com/teranos/tempo/execution"
)

// HandleProcessLogs handles requests for the full execution history
// GET /process_log
func (s *Server) HandleProcessLogs(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	logs, err := s.execs.ListProcessLogs()
	if err != nil {
		s.logger.Errorw("Failed to list process logs", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to list process logs")
		return
	}

	if logs == nil {
		logs = []*execution.ProcessLog{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"process_logs": logs})
}

// HandleProcessLog handles requests for a single run record
// GET /process_log/{id}
func (s *Server) HandleProcessLog(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	id, ok := parsePathID(w, r.URL.Path, "/process_log/")
	if !ok {
		return
	}

	pl, err := s.execs.GetProcessLog(id)
	if err != nil {
		if errors.IsNotFoundError(err) {
			writeError(w, http.StatusNotFound, fmt.Sprintf("No process log with ID %d", id))
			return
		}
		s.logger.Errorw("Failed to get process log", "error", err, "process_log_id", id)
		writeError(w, http.StatusInternalServerError, "Failed to get process log")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"process_log": pl})
}

// HandleExecutionOutput serves incremental output for one run. Clients poll
// with the last_output_log_id they have seen and receive only newer records;
// the returned last_output_log_id echoes the request value when nothing new
// has arrived, so it can be fed straight into the next poll.
// GET /execution/output/{process_log_id}?last_output_log_id=N
func (s *Server) HandleExecutionOutput(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	id, ok := parsePathID(w, r.URL.Path, "/execution/output/")
	if !ok {
		return
	}

	pl, err := s.execs.GetProcessLog(id)
	if err != nil {
		if errors.IsNotFoundError(err) {
			writeError(w, http.StatusNotFound, fmt.Sprintf("No process log with ID %d", id))
			return
		}
		s.logger.Errorw("Failed to get process log", "error", err, "process_log_id", id)
		writeError(w, http.StatusInternalServerError, "Failed to get process log")
		return
	}

	last := parseIntQueryParam(r, "last_output_log_id", 0, 0, math.MaxInt)

	logs, err := s.execs.ListOutputLogs(id, last)
	if err != nil {
		s.logger.Errorw("Failed to list output logs", "error", err, "process_log_id", id)
		writeError(w, http.StatusInternalServerError, "Failed to list output logs")
		return
	}

	if logs == nil {
		logs = []*execution.OutputLog{}
	}
	if len(logs) > 0 {
		last = logs[len(logs)-1].ID
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"output_logs":        logs,
		"last_output_log_id": last,
		"status":             pl.Status,
		"return_code":        pl.ReturnCode,
	})
}
