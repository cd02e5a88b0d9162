package models

import "time"

// TaskType represents the kind of work a task carries.
type TaskType string

const (
	// TaskTypeAgent runs a coding-agent invocation built from a prompt.
	TaskTypeAgent TaskType = "agent"
	// TaskTypeShell runs a raw shell command.
	TaskTypeShell TaskType = "shell"
)

// TaskStatus represents the current lifecycle state of a dispatched task.
type TaskStatus string

const (
	StatusPending          TaskStatus = "pending"
	StatusRunning          TaskStatus = "running"
	StatusCompleted        TaskStatus = "completed"
	StatusFailed           TaskStatus = "failed"
	StatusKilled           TaskStatus = "killed"
	StatusHeartbeatTimeout TaskStatus = "heartbeat_timeout"
)

// IsTerminal reports whether no further transition can occur from s.
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusKilled, StatusHeartbeatTimeout:
		return true
	}
	return false
}

// Handle identifies a launched backend process well enough to probe,
// terminate, and clean it up without re-sending the launch spec.
type Handle struct {
	PID           int    `yaml:"pid,omitempty"`
	TaskDir       string `yaml:"task_dir,omitempty"`
	LogPath       string `yaml:"log_path,omitempty"`
	PIDPath       string `yaml:"pid_path,omitempty"`
	ExitCodePath  string `yaml:"exit_code_path,omitempty"`
	ContainerName string `yaml:"container_name,omitempty"`
	ContainerID   string `yaml:"container_id,omitempty"`
}

// Task is the durable record of one dispatched unit of work. Status is
// mutated only by the lifecycle engine through the Mark* helpers.
type Task struct {
	ID           string     `yaml:"id"`
	Type         TaskType   `yaml:"type"`
	ExecutorName string     `yaml:"executor"`
	ExecutorType string     `yaml:"executor_type"`
	Status       TaskStatus `yaml:"status"`
	Prompt       string     `yaml:"prompt,omitempty"`
	Command      string     `yaml:"command,omitempty"`
	Workspace    string     `yaml:"workspace,omitempty"`
	Handle       Handle     `yaml:"handle"`

	StartedAt  time.Time  `yaml:"started_at"`
	UpdatedAt  time.Time  `yaml:"updated_at"`
	FinishedAt *time.Time `yaml:"finished_at,omitempty"`

	ExitCode *int   `yaml:"exit_code,omitempty"`
	Error    string `yaml:"error,omitempty"`

	// LastHeartbeat is zero until the task environment publishes its first
	// liveness record. HeartbeatInterval is the cadence the environment
	// promised to write at, in seconds.
	LastHeartbeat     time.Time `yaml:"last_heartbeat,omitempty"`
	HeartbeatInterval int       `yaml:"heartbeat_interval"`
}

// MarkRunning records launch confirmation: the backend handle, the reported
// pid, and the transition from pending to running.
func (t *Task) MarkRunning(handle Handle, now time.Time) {
	t.Handle = handle
	t.Status = StatusRunning
	t.UpdatedAt = now
}

// MarkCompleted records an observed exit code. A zero exit code completes
// the task; anything else fails it.
func (t *Task) MarkCompleted(exitCode int, now time.Time) {
	if exitCode == 0 {
		t.Status = StatusCompleted
	} else {
		t.Status = StatusFailed
	}
	t.ExitCode = &exitCode
	t.FinishedAt = &now
	t.UpdatedAt = now
}

// MarkFailed records a terminal failure with the given reason.
func (t *Task) MarkFailed(reason string, now time.Time) {
	t.Status = StatusFailed
	t.Error = reason
	t.FinishedAt = &now
	t.UpdatedAt = now
}

// MarkKilled records a caller-initiated termination.
func (t *Task) MarkKilled(now time.Time) {
	t.Status = StatusKilled
	t.FinishedAt = &now
	t.UpdatedAt = now
}

// MarkHeartbeatTimeout records that the liveness side channel went stale.
// Distinct from failed: the process reported no error, we simply could not
// confirm life within the staleness window.
func (t *Task) MarkHeartbeatTimeout(now time.Time) {
	t.Status = StatusHeartbeatTimeout
	t.Error = "heartbeat stale"
	t.FinishedAt = &now
	t.UpdatedAt = now
}

// ObserveHeartbeat folds a heartbeat channel read into the record.
// LastHeartbeat never moves backwards; stale reads are ignored.
func (t *Task) ObserveHeartbeat(at time.Time, intervalSeconds int, now time.Time) bool {
	if !at.After(t.LastHeartbeat) {
		return false
	}
	t.LastHeartbeat = at
	if intervalSeconds > 0 {
		t.HeartbeatInterval = intervalSeconds
	}
	t.UpdatedAt = now
	return true
}

// ProbeState classifies the outcome of the last backend probe attached to a
// snapshot. It is advisory and never drives a state transition by itself.
type ProbeState string

const (
	// ProbeStateNone means no probe was performed (terminal task).
	ProbeStateNone ProbeState = "none"
	// ProbeStateOK means the backend answered the probe.
	ProbeStateOK ProbeState = "ok"
	// ProbeStateUnknown means the backend was unreachable or ambiguous.
	ProbeStateUnknown ProbeState = "unknown"
)

// ResourceUsage is a best-effort point-in-time sample for a live process.
type ResourceUsage struct {
	CPUPercent float64 `yaml:"cpu_percent" json:"cpu_percent"`
	RSSKB      int64   `yaml:"rss_kb" json:"rss_kb"`
}

// Snapshot is the read view of a task handed to callers: the stored record
// merged with the outcome of the latest live probe.
type Snapshot struct {
	Task       Task
	ProbeState ProbeState
	Usage      *ResourceUsage
}

// TerminalEvent is emitted exactly once when a task reaches a terminal
// state, for delivery to an external notification sink.
type TerminalEvent struct {
	TaskID       string     `json:"task_id"`
	ExecutorName string     `json:"executor"`
	Status       TaskStatus `json:"status"`
	ExitCode     *int       `json:"exit_code,omitempty"`
	Error        string     `json:"error,omitempty"`
	FinishedAt   time.Time  `json:"finished_at"`
}

// OutputRecord is one structured log entry fetched from a backend.
type OutputRecord struct {
	Line int    `json:"line"`
	Text string `json:"text"`
}
