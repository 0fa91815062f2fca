// Package scheduler drives task execution: one Executor per task owning its
// run-date iterator and a single pending timer, and a Manager that keeps the
// executor registry reconciled with the persistent task set.
package scheduler

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/tempo/execution"
	"github.com/teranos/tempo/task"
)

// StatusNeverLaunched is an executor's status before its first run.
const StatusNeverLaunched = "never launched"

// Executor controls the schedule of exactly one task. It is either idle (no
// pending timer) or active (one pending timer for the next run instant).
// Runs launched from a timer fire outlive Stop: stopping only cancels the
// pending timer, never a child process already running.
type Executor struct {
	execs  *execution.Store
	tasks  *task.Store
	buffer *execution.Buffer
	logger *zap.SugaredLogger

	// newIter is swapped in tests to feed synthetic run instants.
	newIter func(*task.Task) (task.Iterator, error)

	mu     sync.Mutex
	task   *task.Task
	iter   task.Iterator
	timer  *time.Timer
	active bool
	status string
	gen    int // activation generation; stale timer fires check it and bail
}

// State is the control-plane snapshot of one executor.
type State struct {
	Task   *task.Task `json:"task"`
	Active bool       `json:"active"`
	Status string     `json:"status"`
}

// NewExecutor creates an idle executor for the task.
func NewExecutor(t *task.Task, execs *execution.Store, tasks *task.Store, buffer *execution.Buffer, log *zap.SugaredLogger) *Executor {
	return &Executor{
		execs:   execs,
		tasks:   tasks,
		buffer:  buffer,
		logger:  log,
		newIter: task.NewIterator,
		task:    t,
		status:  StatusNeverLaunched,
	}
}

// Task returns the executor's task snapshot.
func (e *Executor) Task() *task.Task {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.task
}

// refreshTask swaps the task snapshot after a cosmetic edit. Callers only do
// this for tasks equivalent to the current one, so the schedule is untouched.
func (e *Executor) refreshTask(t *task.Task) {
	e.mu.Lock()
	e.task = t
	e.mu.Unlock()
}

// Active reports whether a timer is pending.
func (e *Executor) Active() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

// Status returns the status of the most recent run, or "never launched".
func (e *Executor) Status() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// State returns the snapshot served by the control plane.
func (e *Executor) State() *State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return &State{Task: e.task, Active: e.active, Status: e.status}
}

// Run activates the executor with a fresh iterator. Running an active
// executor is a no-op.
func (e *Executor) Run() {
	e.mu.Lock()
	if e.active {
		e.mu.Unlock()
		return
	}

	iter, err := e.newIter(e.task)
	if err != nil {
		e.mu.Unlock()
		e.logger.Errorw("Failed to build run-date iterator",
			"task_id", e.task.ID,
			"trigger_type", e.task.TriggerType,
			"error", err)
		return
	}

	e.iter = iter
	e.active = true
	e.gen++
	missed := e.armLocked()
	active := e.active
	e.mu.Unlock()

	e.recordMissed(missed)

	if active {
		e.logger.Infow("Task executor started", "task_id", e.task.ID)
	}
}

// Stop cancels the pending timer. Stopping an idle executor is a no-op; a
// run already in flight continues to completion.
func (e *Executor) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.active {
		return
	}

	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	e.iter = nil
	e.active = false
	e.gen++

	e.logger.Infow("Task executor stopped", "task_id", e.task.ID)
}

// armLocked consumes the iterator up to the first future instant and arms
// the timer for it. Consumed past instants are returned so the caller can
// record them missed; when at least one was skipped, the first future
// instant is returned too. Exhaustion deactivates the executor. The caller
// holds e.mu.
func (e *Executor) armLocked() []time.Time {
	now := time.Now().UTC()
	var missed []time.Time

	for {
		next, ok := e.iter.Next()
		if !ok {
			e.active = false
			e.timer = nil
			e.iter = nil
			return missed
		}

		if next.After(now) {
			if len(missed) > 0 {
				missed = append(missed, next)
			}
			gen := e.gen
			e.timer = time.AfterFunc(time.Until(next), func() { e.fire(gen) })
			return missed
		}

		missed = append(missed, next)
	}
}

// fire handles one timer expiry: arm the successor first so a long run
// never delays the schedule, then run the monitor in this goroutine. Runs
// of one task may overlap when the interval is shorter than the command.
func (e *Executor) fire(gen int) {
	e.mu.Lock()
	if !e.active || gen != e.gen {
		e.mu.Unlock()
		return
	}
	missed := e.armLocked()
	t := e.task
	e.mu.Unlock()

	e.recordMissed(missed)

	monitor := execution.NewMonitor(t, e.execs, e.tasks, e.buffer, e.setStatus, e.logger)
	if _, err := monitor.Run(); err != nil {
		e.logger.Errorw("Task run failed", "task_id", t.ID, "error", err)
	}
}

// recordMissed persists a terminal missed process log per skipped instant.
// Nothing is spawned for them: a backlog after a pause is recorded, not
// re-run.
func (e *Executor) recordMissed(instants []time.Time) {
	for _, at := range instants {
		pl := &execution.ProcessLog{
			TaskID:    e.task.ID,
			Status:    execution.StatusMissed,
			StartDate: at,
		}
		if err := e.execs.InsertProcessLog(pl); err != nil {
			e.logger.Warnw("Failed to record missed run",
				"task_id", e.task.ID,
				"run_date", at,
				"error", err)
			continue
		}
		e.logger.Infow("Task run missed", "task_id", e.task.ID, "run_date", at)
		e.setStatus(execution.StatusMissed)
	}
}

// setStatus is the monitor's report callback.
func (e *Executor) setStatus(status string) {
	e.mu.Lock()
	e.status = status
	e.mu.Unlock()
}
