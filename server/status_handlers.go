package server

import (
	"net/http"
	"time"

	"github.com/shirou/gopsutil/v3/mem"

	"github.com/teranos/tempo/version"
)

// HandleHealth serves the health check endpoint with version info
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	versionInfo := version.Get()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "ok",
		"version":    versionInfo.Version,
		"commit":     versionInfo.CommitHash,
		"build_time": versionInfo.BuildTime,
	})
}

// HandleStatus serves a daemon status snapshot: uptime, executor counts,
// buffered output, and memory pressure.
func (s *Server) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	total, active := s.manager.Counts()

	status := map[string]interface{}{
		"status":               "ok",
		"version":              version.Get().Version,
		"uptime_seconds":       int(time.Since(s.startedAt).Seconds()),
		"executors":            total,
		"active_executors":     active,
		"buffered_output_logs": s.buffer.Pending(),
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		status["memory_total_gb"] = float64(vm.Total) / 1024 / 1024 / 1024
		status["memory_used_percent"] = vm.UsedPercent
	}

	writeJSON(w, http.StatusOK, status)
}
