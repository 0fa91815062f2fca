package server

import (
	"context"
	"net/http"
	"time"

	"github.com/teranos/tempo/errors"
)

// ShutdownTimeout bounds how long Stop waits for in-flight requests and
// WebSocket tails.
const ShutdownTimeout = 5 * time.Second

// Start brings up the scheduler and serves the control plane on the
// configured address. It blocks until the listener fails or Stop is called.
func (s *Server) Start() error {
	s.buffer.Start()

	if err := s.manager.Sync(); err != nil {
		return errors.Wrap(err, "initial executor sync failed")
	}

	cfg := s.config()
	if cfg.Scheduler.Autorun {
		s.manager.RunAll()
		total, active := s.manager.Counts()
		s.logger.Infow("Autorun enabled, executors started",
			"executors", total,
			"active", active,
		)
	}

	addr := cfg.Server.Addr()
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.startedAt = time.Now()

	s.logger.Infow("Server ready",
		"addr", addr,
		"database", cfg.GetDatabasePath(),
		"autorun", cfg.Scheduler.Autorun,
	)

	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return errors.Wrapf(err, "http server failed on %s", addr)
}

// Stop gracefully shuts down the server. Armed timers are cancelled so no
// new runs spawn; children already running are left alone and their
// remaining output is lost with the process.
func (s *Server) Stop() error {
	s.logger.Infow("Initiating server shutdown")

	if s.httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Warnw("HTTP shutdown did not finish cleanly", "error", err)
		}
	}

	s.manager.StopAll()

	// Signal WebSocket tails, then wait for them
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(ShutdownTimeout):
		s.logger.Warnw("WebSocket shutdown timed out, forcing exit",
			"timeout", ShutdownTimeout,
		)
	}

	// Final flush of any buffered output before the process exits
	s.buffer.Stop()

	s.logger.Infow("Server shutdown complete")
	return nil
}
