package execution

import (
	"bufio"
	"io"
	"os/exec"
	"runtime"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/tempo/errors"
	"github.com/teranos/tempo/task"
)

// SpawnFailureReturnCode is recorded when the OS refused to launch the
// command, so the run still reads as failed with a non-zero code.
const SpawnFailureReturnCode = -1

// unixShell is swapped in tests to simulate spawn failures.
var unixShell = "/bin/sh"

// ReportFunc receives the process log status transitions of a run as they
// happen: started, then finished or failed.
type ReportFunc func(status string)

// Monitor owns a single run of a task: one child process and one ProcessLog.
// It spawns the command through the OS shell, drains stdout and stderr
// concurrently into the output buffer and finalizes the process log with the
// child's return code.
type Monitor struct {
	task   *task.Task
	store  *Store
	tasks  *task.Store
	buffer *Buffer
	report ReportFunc
	logger *zap.SugaredLogger

	processLog *ProcessLog
}

// NewMonitor creates a monitor for one run of the task.
func NewMonitor(t *task.Task, store *Store, tasks *task.Store, buffer *Buffer, report ReportFunc, log *zap.SugaredLogger) *Monitor {
	return &Monitor{
		task:   t,
		store:  store,
		tasks:  tasks,
		buffer: buffer,
		report: report,
		logger: log,
		processLog: &ProcessLog{
			TaskID: t.ID,
			Status: StatusAwaiting,
		},
	}
}

// ProcessLog returns the record of this run.
func (m *Monitor) ProcessLog() *ProcessLog {
	return m.processLog
}

// Run executes the command to completion and returns its exit code. The
// started insert happens-before any output record; the terminal update
// happens-after both streams hit EOF; a forced flush runs before returning
// so tail readers see the full output as soon as the run is done.
func (m *Monitor) Run() (int, error) {
	startDate := time.Now().UTC()
	m.processLog.Status = StatusStarted
	m.processLog.StartDate = startDate

	if err := m.store.InsertProcessLog(m.processLog); err != nil {
		return 0, errors.Wrapf(err, "failed to record run start for task %d", m.task.ID)
	}
	if err := m.tasks.TouchLastRun(m.task.ID, startDate); err != nil {
		m.logger.Warnw("Failed to record task last run", "task_id", m.task.ID, "error", err)
	}
	m.reportStatus(StatusStarted)

	m.logger.Infow("Task run started",
		"task_id", m.task.ID,
		"process_log_id", m.processLog.ID,
		"command", m.task.Command)

	cmd := shellCommand(m.task.Command)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return m.spawnFailed(err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return m.spawnFailed(err)
	}

	if err := cmd.Start(); err != nil {
		return m.spawnFailed(err)
	}

	// Drain both pipes concurrently so a quiet stream never stalls the
	// other. Wait must not run until both readers see EOF.
	var wg sync.WaitGroup
	wg.Add(2)
	go m.drain(stdout, StreamStdout, &wg)
	go m.drain(stderr, StreamStderr, &wg)
	wg.Wait()

	returnCode := 0
	if err := cmd.Wait(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			returnCode = exitErr.ExitCode()
		} else {
			returnCode = SpawnFailureReturnCode
		}
	}

	status := StatusFinished
	if returnCode != 0 {
		status = StatusFailed
	}
	m.finalize(status, returnCode)

	m.logger.Infow("Task run finished",
		"task_id", m.task.ID,
		"process_log_id", m.processLog.ID,
		"status", status,
		"return_code", returnCode,
		"duration_ms", int(time.Since(startDate).Milliseconds()))

	return returnCode, nil
}

// drain reads one stream line by line into the buffer, terminators kept.
func (m *Monitor) drain(r io.Reader, stream int, wg *sync.WaitGroup) {
	defer wg.Done()

	reader := bufio.NewReader(r)
	for {
		line, err := reader.ReadString('\n')
		if line != "" {
			m.buffer.Log(&OutputLog{
				ProcessLogID: m.processLog.ID,
				Message:      line,
				Time:         time.Now().UTC(),
				IsError:      stream,
			})
		}
		if err != nil {
			return
		}
	}
}

// spawnFailed finalizes a run whose child never launched: failed status, the
// sentinel return code and one synthetic stderr record carrying the error.
func (m *Monitor) spawnFailed(spawnErr error) (int, error) {
	m.buffer.Log(NewStderrLog(m.processLog.ID, spawnErr.Error()+"\n", time.Now().UTC()))
	m.finalize(StatusFailed, SpawnFailureReturnCode)

	m.logger.Errorw("Task run failed to spawn",
		"task_id", m.task.ID,
		"process_log_id", m.processLog.ID,
		"command", m.task.Command,
		"error", spawnErr)

	return SpawnFailureReturnCode, errors.Wrapf(spawnErr, "failed to spawn command for task %d", m.task.ID)
}

// finalize writes the terminal status, flushes the buffer and reports.
func (m *Monitor) finalize(status string, returnCode int) {
	finishDate := time.Now().UTC()
	if err := m.store.FinishProcessLog(m.processLog.ID, status, finishDate, &returnCode); err != nil {
		m.logger.Warnw("Failed to finalize process log",
			"process_log_id", m.processLog.ID,
			"status", status,
			"error", err)
	}
	m.processLog.Status = status
	m.processLog.FinishDate = &finishDate
	m.processLog.ReturnCode = &returnCode

	if err := m.buffer.Flush(); err != nil {
		m.logger.Warnw("Failed to flush output after run",
			"process_log_id", m.processLog.ID,
			"error", err)
	}
	m.reportStatus(status)
}

func (m *Monitor) reportStatus(status string) {
	if m.report != nil {
		m.report(status)
	}
}

// shellCommand builds the child process invocation through the OS shell.
func shellCommand(command string) *exec.Cmd {
	if runtime.GOOS == "windows" {
		return exec.Command("cmd", "/c", command)
	}
	return exec.Command(unixShell, "-c", command)
}
