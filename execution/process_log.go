// Package execution records task runs: one ProcessLog per execution attempt
// and one OutputLog per captured line of child output, buffered in memory and
// flushed to the database on a fixed cadence.
package execution

import "time"

// ProcessLog records a single execution attempt of a task
//
// A row is created when a run starts (or directly in terminal state for a
// missed instant) and finalized with status, finish date and return code once
// the child process exits.
type ProcessLog struct {
	ID         int        `json:"process_log_id"`
	TaskID     int        `json:"task_id"`
	Status     string     `json:"status"`
	StartDate  time.Time  `json:"start_date"`
	FinishDate *time.Time `json:"finish_date,omitempty"`
	ReturnCode *int       `json:"return_code,omitempty"`
}

// Process log status constants
const (
	StatusAwaiting = "awaiting" // created, child not spawned yet
	StatusStarted  = "started"  // child process is running
	StatusFinished = "finished" // clean exit
	StatusFailed   = "failed"   // non-zero exit or spawn failure
	StatusMissed   = "missed"   // scheduled instant was already past; never spawned
)

// IsTerminalStatus reports whether a process log can no longer change.
func IsTerminalStatus(status string) bool {
	switch status {
	case StatusFinished, StatusFailed, StatusMissed:
		return true
	}
	return false
}
