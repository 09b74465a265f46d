// Package errors provides the engine's error taxonomy.
//
// Every error raised inside the extraction pipeline carries a Kind drawn
// from a closed set. The Kind decides how the error is handled locally
// (retry next parser, abandon the task, halt the session, ...) and how
// it is surfaced (silent, warning container, fatal exit). See the
// propagation table this package implements alongside pkg/eventmodel's
// Warning container.
package errors

import (
	"fmt"
	"runtime"
	"time"
)

// Kind is the closed set of error kinds the engine distinguishes.
type Kind string

const (
	// KindUnableToParse signals "not my format"; the dispatcher tries the
	// next ranked parser candidate. Never surfaced to the user.
	KindUnableToParse Kind = "UnableToParse"
	// KindParseError is a parser's mid-parse failure. Stops only that
	// parser; recorded as a warning container.
	KindParseError Kind = "ParseError"
	// KindTimedOut is a per-item parse timeout. Aborts the current
	// parser and continues with the next candidate.
	KindTimedOut Kind = "TimedOut"
	// KindMemoryExceeded fires when a worker's memory ceiling is hit.
	// Aborts the current item.
	KindMemoryExceeded Kind = "MemoryExceeded"
	// KindIOError is a VFS read failure. Aborts the current item.
	KindIOError Kind = "IOError"
	// KindCorrupt is a container-parser structural failure. The parser
	// may still emit a partial result alongside this warning.
	KindCorrupt Kind = "Corrupt"
	// KindWorkerLost is a missed heartbeat. The task manager abandons
	// the task and respawns the worker.
	KindWorkerLost Kind = "WorkerLost"
	// KindStoreWriteError halts the session; recoverable on restart.
	KindStoreWriteError Kind = "StoreWriteError"
	// KindConfigError refuses startup.
	KindConfigError Kind = "ConfigError"
)

// Severity is a coarse classification used for logging verbosity, not
// for control flow — control flow is driven by Kind alone.
type Severity string

const (
	SeverityFatal    Severity = "fatal"
	SeverityRecoverable Severity = "recoverable"
	SeveritySilent   Severity = "silent"
)

// fatalKinds halt the session; everything else is recovered locally.
var fatalKinds = map[Kind]bool{
	KindStoreWriteError: true,
	KindConfigError:     true,
}

// silentKinds never produce a warning container.
var silentKinds = map[Kind]bool{
	KindUnableToParse: true,
}

// EngineError is the engine's standardized error value.
type EngineError struct {
	Kind       Kind                   `json:"kind"`
	Message    string                 `json:"message"`
	Component  string                 `json:"component"`
	Operation  string                 `json:"operation"`
	Cause      error                  `json:"cause,omitempty"`
	StackTrace string                 `json:"stack_trace,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
}

// New creates an EngineError of the given kind.
func New(kind Kind, component, operation, message string) *EngineError {
	_, file, line, _ := runtime.Caller(1)

	return &EngineError{
		Kind:       kind,
		Message:    message,
		Component:  component,
		Operation:  operation,
		StackTrace: fmt.Sprintf("%s:%d", file, line),
		Metadata:   make(map[string]interface{}),
		Timestamp:  time.Now(),
	}
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %s: %v", e.Component, e.Operation, e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s: %s", e.Component, e.Operation, e.Kind, e.Message)
}

// Unwrap exposes the cause for errors.Is/As.
func (e *EngineError) Unwrap() error {
	return e.Cause
}

// Wrap attaches a cause and returns the receiver for chaining.
func (e *EngineError) Wrap(cause error) *EngineError {
	e.Cause = cause
	return e
}

// WithMetadata attaches a key/value pair, e.g. the path-spec comparable
// or parser name responsible for the error.
func (e *EngineError) WithMetadata(key string, value interface{}) *EngineError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// IsFatal reports whether this kind halts the session (spec.md §7).
func (e *EngineError) IsFatal() bool {
	return fatalKinds[e.Kind]
}

// IsSilent reports whether this kind must never surface a warning
// container (UnableToParse: try the next candidate without comment).
func (e *EngineError) IsSilent() bool {
	return silentKinds[e.Kind]
}

// ToMap renders the error for structured logging via logrus.Fields.
func (e *EngineError) ToMap() map[string]interface{} {
	result := map[string]interface{}{
		"error_kind":      string(e.Kind),
		"error_message":   e.Message,
		"error_component": e.Component,
		"error_operation": e.Operation,
		"error_timestamp": e.Timestamp,
	}

	if e.Cause != nil {
		result["error_cause"] = e.Cause.Error()
	}

	for k, v := range e.Metadata {
		result[fmt.Sprintf("error_meta_%s", k)] = v
	}

	return result
}

// Convenience constructors, one per §7 row.

func UnableToParse(component, parserName string) *EngineError {
	return New(KindUnableToParse, component, "parse", "parser does not recognize this format").
		WithMetadata("parser", parserName)
}

func ParseError(component, operation string, cause error) *EngineError {
	return New(KindParseError, component, operation, "parser failed mid-parse").Wrap(cause)
}

func TimedOut(component, operation string) *EngineError {
	return New(KindTimedOut, component, operation, "operation exceeded its deadline")
}

func MemoryExceeded(component string, limitBytes uint64) *EngineError {
	return New(KindMemoryExceeded, component, "parse", "worker memory ceiling exceeded").
		WithMetadata("limit_bytes", limitBytes)
}

func IOError(component, operation string, cause error) *EngineError {
	return New(KindIOError, component, operation, "VFS read failed").Wrap(cause)
}

func Corrupt(component, operation string, cause error) *EngineError {
	return New(KindCorrupt, component, operation, "container structurally invalid").Wrap(cause)
}

func WorkerLost(taskID string) *EngineError {
	return New(KindWorkerLost, "taskmanager", "heartbeat", "missed heartbeat beyond abandonment threshold").
		WithMetadata("task_id", taskID)
}

func StoreWriteError(operation string, cause error) *EngineError {
	return New(KindStoreWriteError, "store", operation, "session store write failed").Wrap(cause)
}

func ConfigError(operation, message string) *EngineError {
	return New(KindConfigError, "config", operation, message)
}

// As converts err to *EngineError if possible.
func As(err error) (*EngineError, bool) {
	ee, ok := err.(*EngineError)
	return ee, ok
}
