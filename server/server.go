// Package server exposes tempo's HTTP control plane: task CRUD, executor
// control, execution history, and a live output tail over WebSocket.
package server

import (
	"context"
	"database/sql"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/tempo/config"
	"github.com/teranos/tempo/execution"
	"github.com/teranos/tempo/scheduler"
	"github.com/teranos/tempo/task"
)

// Server wires the stores, the output buffer, and the execution manager
// behind the HTTP control plane.
type Server struct {
	db      *sql.DB
	tasks   *task.Store
	execs   *execution.Store
	buffer  *execution.Buffer
	manager *scheduler.Manager
	logger  *zap.SugaredLogger

	cfg   *config.Config
	cfgMu sync.RWMutex // cfg is swapped on config reload

	httpServer *http.Server
	startedAt  time.Time

	// Lifecycle management
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup // tracks WebSocket tail loops
}

// NewServer creates a tempo server around an open, migrated database handle
func NewServer(db *sql.DB, cfg *config.Config, log *zap.SugaredLogger) *Server {
	ctx, cancel := context.WithCancel(context.Background())

	tasks := task.NewStore(db)
	execs := execution.NewStore(db)
	buffer := execution.NewBufferWithContext(ctx, execs, cfg.Scheduler.FlushInterval(), log)

	return &Server{
		db:      db,
		tasks:   tasks,
		execs:   execs,
		buffer:  buffer,
		manager: scheduler.NewManager(tasks, execs, buffer, log),
		logger:  log,
		cfg:     cfg,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Manager returns the execution manager
func (s *Server) Manager() *scheduler.Manager {
	return s.manager
}

// config returns the current configuration snapshot
func (s *Server) config() *config.Config {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()
	return s.cfg
}

// UpdateConfig swaps the configuration after a reload. Settings read per
// request (allowed origins) take effect immediately; the database path,
// bind address, and flush interval require a restart.
func (s *Server) UpdateConfig(cfg *config.Config) error {
	s.cfgMu.Lock()
	s.cfg = cfg
	s.cfgMu.Unlock()

	s.logger.Infow("Server configuration updated", "config", cfg.String())
	return nil
}

// syncExecutors reconciles the executor registry after a task mutation has
// committed. Handlers call this before writing their response.
func (s *Server) syncExecutors() {
	if err := s.manager.Sync(); err != nil {
		s.logger.Errorw("Executor sync failed after task mutation", "error", err)
	}
}
