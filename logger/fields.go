package logger

import (
	"go.uber.org/zap"
)

// Standard field names for consistent structured logging across tempo.
// Use these constants instead of raw strings to ensure consistency.
const (
	// Identity
	FieldTaskID       = "task_id"
	FieldProcessLogID = "process_log_id"

	// Components
	FieldComponent = "component"

	// Operations
	FieldMethod = "method"
	FieldPath   = "path"

	// Timing
	FieldDurationMS = "duration_ms"

	// Errors
	FieldError = "error"

	// Counts and status
	FieldCount  = "count"
	FieldStatus = "status"

	// Network
	FieldAddress = "address"
	FieldPort    = "port"
)

// ComponentLogger returns a named logger for a specific component.
// This is the preferred way to get a logger for dependency injection.
//
// Example:
//
//	type Buffer struct {
//	    logger *zap.SugaredLogger
//	}
//
//	func NewBuffer() *Buffer {
//	    return &Buffer{
//	        logger: logger.ComponentLogger("execution.buffer"),
//	    }
//	}
func ComponentLogger(name string) *zap.SugaredLogger {
	return Logger.Named(name)
}

// ChildLogger creates a child logger with additional context.
// Use for sub-operations that need extra context fields.
//
// Example:
//
//	taskLogger := logger.ChildLogger(baseLogger, "task_id", task.ID)
func ChildLogger(parent *zap.SugaredLogger, keysAndValues ...interface{}) *zap.SugaredLogger {
	return parent.With(keysAndValues...)
}
