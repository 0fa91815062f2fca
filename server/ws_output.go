package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teranos/tempo/errors"
	"github.com/teranos/tempo/execution"
)

// outputPollInterval is how often the tail loop checks for new output.
const outputPollInterval = 500 * time.Millisecond

// outputFrame is one WebSocket message on the output tail. It mirrors the
// GET /execution/output response so clients can share decoding.
type outputFrame struct {
	OutputLogs      []*execution.OutputLog `json:"output_logs"`
	LastOutputLogID int                    `json:"last_output_log_id"`
	Status          string                 `json:"status"`
	ReturnCode      *int                   `json:"return_code"`
}

// upgrader creates a WebSocket upgrader with origin checking from config
func (s *Server) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  2048,
		WriteBufferSize: 2048,
		CheckOrigin:     s.checkOrigin,
	}
}

// HandleOutputSocket upgrades to a WebSocket and tails the output of one
// run. Frames carry only records the client has not seen yet. The socket
// closes once the run has reached a terminal status and all output has been
// delivered.
// GET /ws/output/{process_log_id}
func (s *Server) HandleOutputSocket(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	id, ok := parsePathID(w, r.URL.Path, "/ws/output/")
	if !ok {
		return
	}

	// Reject unknown runs before upgrading
	if _, err := s.execs.GetProcessLog(id); err != nil {
		if errors.IsNotFoundError(err) {
			writeError(w, http.StatusNotFound, fmt.Sprintf("No process log with ID %d", id))
			return
		}
		s.logger.Errorw("Failed to get process log", "error", err, "process_log_id", id)
		writeError(w, http.StatusInternalServerError, "Failed to get process log")
		return
	}

	upgrader := s.upgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Errorw("Failed to upgrade output WebSocket",
			"error", err,
			"process_log_id", id,
		)
		return
	}
	defer conn.Close()

	s.logger.Debugw("Output tail connected",
		"process_log_id", id,
		"remote", r.RemoteAddr,
	)

	// Reader goroutine: we never expect client messages, but reading is
	// what surfaces a closed connection.
	clientGone := make(chan struct{})
	go func() {
		defer close(clientGone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	s.wg.Add(1)
	defer s.wg.Done()

	ticker := time.NewTicker(outputPollInterval)
	defer ticker.Stop()

	var last int
	for {
		pl, err := s.execs.GetProcessLog(id)
		if err != nil {
			s.logger.Warnw("Output tail lost its process log",
				"error", err,
				"process_log_id", id,
			)
			return
		}

		logs, err := s.execs.ListOutputLogs(id, last)
		if err != nil {
			s.logger.Warnw("Output tail failed to list output logs",
				"error", err,
				"process_log_id", id,
			)
			return
		}

		if logs == nil {
			logs = []*execution.OutputLog{}
		}
		if len(logs) > 0 {
			last = logs[len(logs)-1].ID
		}

		terminal := execution.IsTerminalStatus(pl.Status)

		if len(logs) > 0 || terminal {
			frame := outputFrame{
				OutputLogs:      logs,
				LastOutputLogID: last,
				Status:          pl.Status,
				ReturnCode:      pl.ReturnCode,
			}
			if err := conn.WriteJSON(frame); err != nil {
				return
			}
		}

		// The terminal frame with no new records is the final one
		if terminal && len(logs) == 0 {
			s.logger.Debugw("Output tail finished",
				"process_log_id", id,
				"status", pl.Status,
			)
			return
		}

		select {
		case <-clientGone:
			return
		case <-s.ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
