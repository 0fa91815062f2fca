package server

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/tempo/execution"
	"github.com/teranos/tempo/scheduler"
)

func TestExecutorListEmpty(t *testing.T) {
	srv := newTestServer(t)

	w := doRequest(t, srv, http.MethodGet, "/executor", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"task_executors":[]}`, w.Body.String())
}

func TestRunAndStopExecutor(t *testing.T) {
	srv := newTestServer(t)
	id := createTaskViaAPI(t, srv, map[string]interface{}{
		"title":        "hourly",
		"command":      "echo hi",
		"trigger_type": "interval",
		"trigger_args": map[string]interface{}{"hours": 1},
	})

	w := doRequest(t, srv, http.MethodPost, fmt.Sprintf("/run_executor/%d", id), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, fmt.Sprintf(`{"task_id":%d}`, id), w.Body.String())

	var resp struct {
		Executor *scheduler.State `json:"task_executor"`
	}
	w = doRequest(t, srv, http.MethodGet, fmt.Sprintf("/executor/%d", id), nil)
	require.Equal(t, http.StatusOK, w.Code)
	decodeResponse(t, w, &resp)
	assert.True(t, resp.Executor.Active)
	assert.Equal(t, scheduler.StatusNeverLaunched, resp.Executor.Status)

	w = doRequest(t, srv, http.MethodPost, fmt.Sprintf("/stop_executor/%d", id), nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(t, srv, http.MethodGet, fmt.Sprintf("/executor/%d", id), nil)
	decodeResponse(t, w, &resp)
	assert.False(t, resp.Executor.Active)
}

func TestRunExecutorNotFound(t *testing.T) {
	srv := newTestServer(t)

	w := doRequest(t, srv, http.MethodPost, "/run_executor/42", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "No task with ID 42", errorBody(t, w))

	w = doRequest(t, srv, http.MethodPost, "/stop_executor/42", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "No task with ID 42", errorBody(t, w))
}

func TestExecutorNotFound(t *testing.T) {
	srv := newTestServer(t)

	w := doRequest(t, srv, http.MethodGet, "/executor/9", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "No task with ID 9", errorBody(t, w))
}

func TestRunExecutorPastDateRecordsMissedRun(t *testing.T) {
	srv := newTestServer(t)

	past := time.Now().UTC().Add(-5 * time.Second)
	id := createTaskViaAPI(t, srv, map[string]interface{}{
		"title":        "late",
		"command":      "echo late",
		"trigger_type": "date",
		"trigger_args": past.Format(time.RFC3339),
	})

	w := doRequest(t, srv, http.MethodPost, fmt.Sprintf("/run_executor/%d", id), nil)
	require.Equal(t, http.StatusOK, w.Code)

	// The instant was already past: one missed run, executor back to idle
	var stateResp struct {
		Executor *scheduler.State `json:"task_executor"`
	}
	w = doRequest(t, srv, http.MethodGet, fmt.Sprintf("/executor/%d", id), nil)
	decodeResponse(t, w, &stateResp)
	assert.False(t, stateResp.Executor.Active)
	assert.Equal(t, execution.StatusMissed, stateResp.Executor.Status)

	var logsResp struct {
		ProcessLogs []*execution.ProcessLog `json:"process_logs"`
	}
	w = doRequest(t, srv, http.MethodGet, "/process_log", nil)
	decodeResponse(t, w, &logsResp)
	require.Len(t, logsResp.ProcessLogs, 1)
	missed := logsResp.ProcessLogs[0]
	assert.Equal(t, execution.StatusMissed, missed.Status)
	assert.Nil(t, missed.ReturnCode)
	assert.WithinDuration(t, past, missed.StartDate, time.Second)
}

func TestExecutorRunThroughAPI(t *testing.T) {
	srv := newTestServer(t)

	id := createTaskViaAPI(t, srv, map[string]interface{}{
		"title":        "from http",
		"command":      "echo from-http",
		"trigger_type": "interval",
		"trigger_args": map[string]interface{}{"seconds": 0.2},
	})

	w := doRequest(t, srv, http.MethodPost, fmt.Sprintf("/run_executor/%d", id), nil)
	require.Equal(t, http.StatusOK, w.Code)

	// Wait for one fire to run to completion
	var finished *execution.ProcessLog
	require.Eventually(t, func() bool {
		var resp struct {
			ProcessLogs []*execution.ProcessLog `json:"process_logs"`
		}
		w := doRequest(t, srv, http.MethodGet, "/process_log", nil)
		decodeResponse(t, w, &resp)
		for _, pl := range resp.ProcessLogs {
			if pl.Status == execution.StatusFinished {
				finished = pl
				return true
			}
		}
		return false
	}, 3*time.Second, 25*time.Millisecond)

	require.NotNil(t, finished.ReturnCode)
	assert.Equal(t, 0, *finished.ReturnCode)

	var outResp outputResponse
	w = doRequest(t, srv, http.MethodGet, fmt.Sprintf("/execution/output/%d", finished.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	decodeResponse(t, w, &outResp)
	require.Len(t, outResp.OutputLogs, 1)
	assert.Equal(t, "from-http\n", outResp.OutputLogs[0].Message)
	assert.Equal(t, execution.StreamStdout, outResp.OutputLogs[0].IsError)

	w = doRequest(t, srv, http.MethodPost, fmt.Sprintf("/stop_executor/%d", id), nil)
	require.Equal(t, http.StatusOK, w.Code)

	// Let any run still in flight finalize while the test logger is valid
	time.Sleep(300 * time.Millisecond)
}

func TestExecutorMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t)

	w := doRequest(t, srv, http.MethodGet, "/run_executor/1", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)

	w = doRequest(t, srv, http.MethodGet, "/stop_executor/1", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)

	w = doRequest(t, srv, http.MethodDelete, "/executor", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}
