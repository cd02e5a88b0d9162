package core

import "errors"

// Sentinel errors for caller-input problems and launch failures. All are
// surfaced via errors.Is through wrapped, contextual messages.
var (
	// ErrExecutorNotFound means the named executor is not configured.
	// Surfaced before any side effect occurs.
	ErrExecutorNotFound = errors.New("executor not found")

	// ErrConcurrencyLimitExceeded means the executor is at its configured
	// limit. Start rejects rather than queueing.
	ErrConcurrencyLimitExceeded = errors.New("executor concurrency limit exceeded")

	// ErrTaskNotTerminal means cleanup was requested for a task that has
	// not reached a terminal state. Callers must kill first.
	ErrTaskNotTerminal = errors.New("task not terminal")

	// ErrLaunchFailed wraps a backend-reported launch failure. The task is
	// left terminal failed, never dangling pending.
	ErrLaunchFailed = errors.New("launch failed")
)
