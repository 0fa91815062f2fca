package scheduler

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/teranos/tempo/errors"
	"github.com/teranos/tempo/execution"
	"github.com/teranos/tempo/task"
)

// Manager keeps the in-memory executor registry aligned with the persistent
// task set. Mutating HTTP handlers commit their change, then call Sync;
// reconciliations are serialized behind one mutex so concurrent handlers
// cannot interleave registry updates.
type Manager struct {
	tasks  *task.Store
	execs  *execution.Store
	buffer *execution.Buffer
	logger *zap.SugaredLogger

	mu        sync.Mutex
	executors map[int]*Executor
}

// NewManager creates an empty manager. Call Sync to populate it.
func NewManager(tasks *task.Store, execs *execution.Store, buffer *execution.Buffer, log *zap.SugaredLogger) *Manager {
	return &Manager{
		tasks:     tasks,
		execs:     execs,
		buffer:    buffer,
		logger:    log,
		executors: make(map[int]*Executor),
	}
}

// Sync reconciles the registry against the task table: unknown tasks gain an
// idle executor, tasks whose command or trigger changed get a replacement
// (running iff the old one was active), vanished tasks are stopped and
// dropped. Tasks equivalent to their executor's snapshot keep their executor
// and only refresh its task reference.
func (m *Manager) Sync() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tasks, err := m.tasks.ListTasks()
	if err != nil {
		return errors.Wrap(err, "failed to list tasks for sync")
	}

	seen := make(map[int]bool, len(tasks))
	for _, t := range tasks {
		seen[t.ID] = true

		existing, ok := m.executors[t.ID]
		if !ok {
			m.executors[t.ID] = NewExecutor(t, m.execs, m.tasks, m.buffer, m.logger)
			m.logger.Infow("Executor added", "task_id", t.ID, "trigger_type", t.TriggerType)
			continue
		}
		if existing.Task().EquivalentTo(t) {
			// Cosmetic edit: pick up the new title without disturbing the schedule
			existing.refreshTask(t)
			continue
		}

		// Run the replacement before stopping the old executor so an active
		// schedule never has a gap with no executor armed.
		replacement := NewExecutor(t, m.execs, m.tasks, m.buffer, m.logger)
		m.executors[t.ID] = replacement
		if existing.Active() {
			replacement.Run()
		}
		existing.Stop()
		m.logger.Infow("Executor replaced", "task_id", t.ID, "command", t.Command)
	}

	for id, executor := range m.executors {
		if seen[id] {
			continue
		}
		executor.Stop()
		delete(m.executors, id)
		m.logger.Infow("Executor removed", "task_id", id)
	}

	return nil
}

// RunTask activates the executor of one task.
func (m *Manager) RunTask(id int) error {
	executor, err := m.executor(id)
	if err != nil {
		return err
	}
	executor.Run()
	return nil
}

// StopTask cancels the pending timer of one task's executor.
func (m *Manager) StopTask(id int) error {
	executor, err := m.executor(id)
	if err != nil {
		return err
	}
	executor.Stop()
	return nil
}

// RunAll activates every executor.
func (m *Manager) RunAll() {
	for _, executor := range m.snapshot() {
		executor.Run()
	}
}

// StopAll cancels every pending timer.
func (m *Manager) StopAll() {
	for _, executor := range m.snapshot() {
		executor.Stop()
	}
}

// State returns the snapshot of one executor.
func (m *Manager) State(id int) (*State, error) {
	executor, err := m.executor(id)
	if err != nil {
		return nil, err
	}
	return executor.State(), nil
}

// States returns every executor snapshot ordered by task id.
func (m *Manager) States() []*State {
	executors := m.snapshot()

	states := make([]*State, 0, len(executors))
	for _, executor := range executors {
		states = append(states, executor.State())
	}
	sort.Slice(states, func(i, j int) bool { return states[i].Task.ID < states[j].Task.ID })
	return states
}

// Counts returns the number of registered and active executors.
func (m *Manager) Counts() (total, active int) {
	for _, executor := range m.snapshot() {
		total++
		if executor.Active() {
			active++
		}
	}
	return total, active
}

func (m *Manager) executor(id int) (*Executor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	executor, ok := m.executors[id]
	if !ok {
		return nil, errors.NewNotFoundError("No task with ID %d", id)
	}
	return executor, nil
}

func (m *Manager) snapshot() []*Executor {
	m.mu.Lock()
	defer m.mu.Unlock()

	executors := make([]*Executor, 0, len(m.executors))
	for _, executor := range m.executors {
		executors = append(executors, executor)
	}
	return executors
}
