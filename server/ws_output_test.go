package server

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/tempo/execution"
	"github.com/teranos/tempo/internal/util"
)

// dialOutputSocket connects a WebSocket client to the run's output tail
func dialOutputSocket(t *testing.T, srv *Server, processLogID int) *websocket.Conn {
	t.Helper()

	ts := httptest.NewServer(srv.routes())
	t.Cleanup(ts.Close)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + fmt.Sprintf("/ws/output/%d", processLogID)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	return conn
}

func TestOutputSocketUnknownRun(t *testing.T) {
	srv := newTestServer(t)

	w := doRequest(t, srv, http.MethodGet, "/ws/output/99", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "No process log with ID 99", errorBody(t, w))

	w = doRequest(t, srv, http.MethodPost, "/ws/output/1", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestOutputSocketReplaysFinishedRun(t *testing.T) {
	srv := newTestServer(t)
	taskID := seedTask(t, srv)
	pl := seedProcessLog(t, srv, taskID, execution.StatusFinished, util.Ptr(0))

	now := time.Now().UTC()
	require.NoError(t, srv.execs.InsertOutputLogs([]*execution.OutputLog{
		execution.NewConsoleLog(pl.ID, "hello\n", now),
		execution.NewStderrLog(pl.ID, "oops\n", now.Add(time.Millisecond)),
	}))

	conn := dialOutputSocket(t, srv, pl.ID)

	// First frame replays everything recorded so far
	var frame outputFrame
	require.NoError(t, conn.ReadJSON(&frame))
	require.Len(t, frame.OutputLogs, 2)
	assert.Equal(t, "hello\n", frame.OutputLogs[0].Message)
	assert.Equal(t, execution.StreamStdout, frame.OutputLogs[0].IsError)
	assert.Equal(t, "oops\n", frame.OutputLogs[1].Message)
	assert.Equal(t, execution.StreamStderr, frame.OutputLogs[1].IsError)
	assert.Equal(t, frame.OutputLogs[1].ID, frame.LastOutputLogID)
	assert.Equal(t, execution.StatusFinished, frame.Status)
	require.NotNil(t, frame.ReturnCode)
	assert.Equal(t, 0, *frame.ReturnCode)
	last := frame.LastOutputLogID

	// Final frame carries the terminal status and nothing new
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Empty(t, frame.OutputLogs)
	assert.Equal(t, last, frame.LastOutputLogID)
	assert.Equal(t, execution.StatusFinished, frame.Status)

	// The server closes the socket once the tail is complete
	assert.Error(t, conn.ReadJSON(&frame))
}

func TestOutputSocketStreamsLiveRun(t *testing.T) {
	srv := newTestServer(t)
	taskID := seedTask(t, srv)
	pl := seedProcessLog(t, srv, taskID, execution.StatusStarted, nil)

	conn := dialOutputSocket(t, srv, pl.ID)

	// Output appearing mid-run reaches the client on the next poll
	require.NoError(t, srv.execs.InsertOutputLogs([]*execution.OutputLog{
		execution.NewConsoleLog(pl.ID, "tick\n", time.Now().UTC()),
	}))

	var frame outputFrame
	require.NoError(t, conn.ReadJSON(&frame))
	require.Len(t, frame.OutputLogs, 1)
	assert.Equal(t, "tick\n", frame.OutputLogs[0].Message)
	assert.Equal(t, execution.StatusStarted, frame.Status)
	assert.Nil(t, frame.ReturnCode)

	// Completion produces a terminal frame, then the socket closes
	require.NoError(t, srv.execs.FinishProcessLog(pl.ID, execution.StatusFinished, time.Now().UTC(), util.Ptr(0)))

	require.NoError(t, conn.ReadJSON(&frame))
	assert.Empty(t, frame.OutputLogs)
	assert.Equal(t, execution.StatusFinished, frame.Status)
	require.NotNil(t, frame.ReturnCode)
	assert.Equal(t, 0, *frame.ReturnCode)

	assert.Error(t, conn.ReadJSON(&frame))
}
