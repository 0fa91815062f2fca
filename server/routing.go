package server

import (
	"net/http"
	"strings"
)

// routes configures all HTTP handlers
func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/task", s.corsMiddleware(s.HandleTasks))                      // List/create tasks (GET/POST)
	mux.HandleFunc("/task/", s.corsMiddleware(s.HandleTask))                      // Individual task (GET/POST/DELETE /task/{id})
	mux.HandleFunc("/executor", s.corsMiddleware(s.HandleExecutors))              // List executor states (GET)
	mux.HandleFunc("/executor/", s.corsMiddleware(s.HandleExecutor))              // Individual executor state (GET /executor/{id})
	mux.HandleFunc("/run_executor/", s.corsMiddleware(s.HandleRunExecutor))       // Arm an executor (POST /run_executor/{id})
	mux.HandleFunc("/stop_executor/", s.corsMiddleware(s.HandleStopExecutor))     // Disarm an executor (POST /stop_executor/{id})
	mux.HandleFunc("/process_log", s.corsMiddleware(s.HandleProcessLogs))         // Execution history (GET)
	mux.HandleFunc("/process_log/", s.corsMiddleware(s.HandleProcessLog))         // Individual run record (GET /process_log/{id})
	mux.HandleFunc("/execution/output/", s.corsMiddleware(s.HandleExecutionOutput)) // Incremental output poll (GET)
	mux.HandleFunc("/ws/output/", s.corsMiddleware(s.HandleOutputSocket))         // Live output tail (WebSocket)
	mux.HandleFunc("/health", s.corsMiddleware(s.HandleHealth))
	mux.HandleFunc("/status", s.corsMiddleware(s.HandleStatus))

	return mux
}

// corsMiddleware adds CORS headers to HTTP responses using configured allowed origins
// Uses the same origin validation as WebSocket connections (server.allowed_origins config)
func (s *Server) corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		// If origin is present and allowed by config, set CORS headers
		if origin != "" && s.checkOrigin(r) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		}

		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		// Handle preflight requests
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next(w, r)
	}
}

// checkOrigin validates a request origin against the configured allowed
// origins. Prefix matching allows any port number.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")

	// Allow requests with no origin header (curl, direct WebSocket clients, testing)
	if origin == "" {
		return true
	}

	for _, allowedOrigin := range s.config().GetServerAllowedOrigins() {
		if strings.HasPrefix(origin, allowedOrigin) {
			return true
		}
	}

	return false
}
