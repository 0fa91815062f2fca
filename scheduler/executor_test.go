package scheduler

import (
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teranos/tempo/execution"
	tempotest "github.com/teranos/tempo/internal/testing"
	"github.com/teranos/tempo/task"
)

type schedulerTest struct {
	db     *sql.DB
	tasks  *task.Store
	execs  *execution.Store
	buffer *execution.Buffer
}

func newSchedulerTest(t *testing.T) *schedulerTest {
	t.Helper()

	db := tempotest.CreateTestDB(t)
	execs := execution.NewStore(db)
	return &schedulerTest{
		db:     db,
		tasks:  task.NewStore(db),
		execs:  execs,
		buffer: execution.NewBuffer(execs, time.Minute, zaptest.NewLogger(t).Sugar()),
	}
}

func (st *schedulerTest) insertTask(t *testing.T, command, triggerType, triggerArgs string) *task.Task {
	t.Helper()

	created, err := st.tasks.InsertTask(&task.Draft{
		Title:       command,
		Command:     command,
		TriggerType: triggerType,
		TriggerArgs: json.RawMessage(triggerArgs),
	})
	require.NoError(t, err)
	return created
}

func (st *schedulerTest) executor(t *testing.T, tk *task.Task) *Executor {
	return NewExecutor(tk, st.execs, st.tasks, st.buffer, zaptest.NewLogger(t).Sugar())
}

// stubIterator feeds a fixed sequence of instants, then reports done.
type stubIterator struct {
	instants []time.Time
}

func (s *stubIterator) Next() (time.Time, bool) {
	if len(s.instants) == 0 {
		return time.Time{}, false
	}
	next := s.instants[0]
	s.instants = s.instants[1:]
	return next, true
}

func TestExecutorNeverLaunched(t *testing.T) {
	st := newSchedulerTest(t)
	tk := st.insertTask(t, "echo hi", task.TriggerInterval, `{"seconds": 1}`)
	executor := st.executor(t, tk)

	assert.False(t, executor.Active())
	assert.Equal(t, StatusNeverLaunched, executor.Status())

	logs, err := st.execs.ListProcessLogs()
	require.NoError(t, err)
	assert.Empty(t, logs)
}

func TestExecutorRunStopIdempotent(t *testing.T) {
	st := newSchedulerTest(t)
	tk := st.insertTask(t, "echo hi", task.TriggerInterval, `{"seconds": 0.2}`)
	executor := st.executor(t, tk)

	executor.Run()
	executor.Run()
	assert.True(t, executor.Active())

	executor.Stop()
	assert.False(t, executor.Active())
	executor.Stop()
	assert.False(t, executor.Active())

	// Neither run armed a second timer and stop cancelled the only one
	time.Sleep(500 * time.Millisecond)
	logs, err := st.execs.ListProcessLogs()
	require.NoError(t, err)
	assert.Empty(t, logs)
}

func TestExecutorRunsCommandOnFire(t *testing.T) {
	st := newSchedulerTest(t)
	tk := st.insertTask(t, "echo hi", task.TriggerInterval, `{"seconds": 0.05}`)
	executor := st.executor(t, tk)

	executor.Run()
	defer executor.Stop()

	require.Eventually(t, func() bool {
		logs, err := st.execs.ListProcessLogs()
		if err != nil || len(logs) == 0 {
			return false
		}
		for _, pl := range logs {
			if pl.Status == execution.StatusFinished {
				return true
			}
		}
		return false
	}, 3*time.Second, 20*time.Millisecond, "timer fire runs the command to completion")

	// The monitor's forced flush makes output visible right after the run
	require.Eventually(t, func() bool {
		logs, err := st.execs.ListProcessLogs()
		if err != nil {
			return false
		}
		for _, pl := range logs {
			out, err := st.execs.ListOutputLogs(pl.ID, 0)
			if err == nil && len(out) > 0 && out[0].Message == "hi\n" {
				return true
			}
		}
		return false
	}, 3*time.Second, 20*time.Millisecond)
}

func TestExecutorStatusFollowsRuns(t *testing.T) {
	st := newSchedulerTest(t)
	tk := st.insertTask(t, "exit 3", task.TriggerInterval, `{"seconds": 0.05}`)
	executor := st.executor(t, tk)

	executor.Run()
	defer executor.Stop()

	require.Eventually(t, func() bool {
		return executor.Status() == execution.StatusFailed
	}, 3*time.Second, 20*time.Millisecond)
}

func TestExecutorPastDateRecordsOneMissedRun(t *testing.T) {
	st := newSchedulerTest(t)

	at := time.Now().UTC().Add(-5 * time.Second)
	tk := st.insertTask(t, "echo hi", task.TriggerDate, `"`+at.Format(time.RFC3339Nano)+`"`)
	executor := st.executor(t, tk)

	executor.Run()

	// The single past instant is recorded missed, nothing is spawned, and
	// the exhausted iterator leaves the executor idle.
	assert.False(t, executor.Active())
	assert.Equal(t, execution.StatusMissed, executor.Status())

	logs, err := st.execs.ListProcessLogs()
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, execution.StatusMissed, logs[0].Status)
	assert.True(t, logs[0].StartDate.Equal(at))
	assert.Nil(t, logs[0].ReturnCode)

	out, err := st.execs.ListOutputLogs(logs[0].ID, 0)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestExecutorFutureDateRunsOnceThenIdles(t *testing.T) {
	st := newSchedulerTest(t)

	at := time.Now().UTC().Add(100 * time.Millisecond)
	tk := st.insertTask(t, "echo once", task.TriggerDate, `"`+at.Format(time.RFC3339Nano)+`"`)
	executor := st.executor(t, tk)

	executor.Run()
	assert.True(t, executor.Active())

	require.Eventually(t, func() bool {
		logs, err := st.execs.ListProcessLogs()
		return err == nil && len(logs) == 1 && logs[0].Status == execution.StatusFinished
	}, 3*time.Second, 20*time.Millisecond)

	require.Eventually(t, func() bool {
		return !executor.Active()
	}, time.Second, 10*time.Millisecond, "date executor goes idle after its single run")
}

func TestExecutorBacklogRecordedMissed(t *testing.T) {
	st := newSchedulerTest(t)
	tk := st.insertTask(t, "echo hi", task.TriggerInterval, `{"seconds": 1}`)
	executor := st.executor(t, tk)

	now := time.Now().UTC()
	backlog := []time.Time{
		now.Add(-3 * time.Second),
		now.Add(-2 * time.Second),
		now.Add(150 * time.Millisecond),
	}
	executor.newIter = func(*task.Task) (task.Iterator, error) {
		return &stubIterator{instants: append([]time.Time{}, backlog...)}, nil
	}

	executor.Run()

	// Both past instants and, because some were skipped, the first future
	// instant are recorded missed right away.
	logs, err := st.execs.ListProcessLogs()
	require.NoError(t, err)
	require.Len(t, logs, 3)
	for i, pl := range logs {
		assert.Equal(t, execution.StatusMissed, pl.Status)
		assert.True(t, pl.StartDate.Equal(backlog[i]))
	}

	// The future instant still fires and runs; the exhausted iterator then
	// idles the executor.
	require.Eventually(t, func() bool {
		logs, err := st.execs.ListProcessLogs()
		if err != nil || len(logs) != 4 {
			return false
		}
		return logs[3].Status == execution.StatusFinished
	}, 3*time.Second, 20*time.Millisecond)
	require.Eventually(t, func() bool {
		return !executor.Active()
	}, time.Second, 10*time.Millisecond)
}

func TestExecutorState(t *testing.T) {
	st := newSchedulerTest(t)
	tk := st.insertTask(t, "echo hi", task.TriggerInterval, `{"seconds": 1}`)
	executor := st.executor(t, tk)

	state := executor.State()
	assert.Equal(t, tk.ID, state.Task.ID)
	assert.False(t, state.Active)
	assert.Equal(t, StatusNeverLaunched, state.Status)
}
