// Package executor defines the backend capability contract for launching,
// probing, and tearing down detached task processes, with implementations
// for remote-shell, container, and local backends.
package executor

import (
	"context"
	"errors"

	"agentherd/pkg/models"
)

// ErrProbeUnknown marks a probe that could not determine process state,
// typically because the backend was unreachable. The lifecycle engine must
// never treat it as "dead" or "alive".
var ErrProbeUnknown = errors.New("probe state unknown")

// State is the liveness verdict of a probe.
type State string

const (
	StateAlive   State = "alive"
	StateDead    State = "dead"
	StateUnknown State = "unknown"
)

// ProbeResult is a best-effort, side-effect-free liveness and resource
// check. "Process not found" is a valid result (StateDead), distinct from a
// connectivity failure (StateUnknown).
type ProbeResult struct {
	State State
	// ExitCode is set when the backend recorded one for a dead process.
	ExitCode *int
	Usage    *models.ResourceUsage
}

// LaunchSpec carries everything needed to start one detached task process.
type LaunchSpec struct {
	TaskID       string
	Type         models.TaskType
	Prompt       string
	Command      string
	Workspace    string
	MaxTurns     int
	AllowedTools []string
}

// Executor is the pluggable backend capability. Launch must detach the
// process from the caller's connection before returning; every method with
// backend I/O honors context cancellation and deadlines. Concurrency limits
// are enforced by the caller, not here.
type Executor interface {
	Name() string
	Type() models.ExecutorType

	Launch(ctx context.Context, spec LaunchSpec) (models.Handle, error)
	Probe(ctx context.Context, handle models.Handle) (ProbeResult, error)
	FetchOutput(ctx context.Context, handle models.Handle, n int) ([]models.OutputRecord, error)
	Terminate(ctx context.Context, handle models.Handle) error
	RemoveArtifacts(ctx context.Context, handle models.Handle) error
}

func unknownProbe() ProbeResult {
	return ProbeResult{State: StateUnknown}
}
