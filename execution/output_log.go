package execution

import "time"

// OutputLog records one line of a child process's output with its terminator
// preserved. Lines from stdout and stderr interleave in observation order
// under one process_log_id.
type OutputLog struct {
	ID           int       `json:"output_log_id"`
	ProcessLogID int       `json:"process_log_id"`
	Message      string    `json:"message"`
	Time         time.Time `json:"time"`
	IsError      int       `json:"is_error"`
}

// is_error discriminator values
const (
	StreamStdout = 0
	StreamStderr = 1
)

// NewConsoleLog builds a stdout output record.
func NewConsoleLog(processLogID int, message string, at time.Time) *OutputLog {
	return &OutputLog{
		ProcessLogID: processLogID,
		Message:      message,
		Time:         at,
		IsError:      StreamStdout,
	}
}

// NewStderrLog builds a stderr output record.
func NewStderrLog(processLogID int, message string, at time.Time) *OutputLog {
	return &OutputLog{
		ProcessLogID: processLogID,
		Message:      message,
		Time:         at,
		IsError:      StreamStderr,
	}
}
