package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"agentherd/internal/executor"
	"agentherd/internal/observability"
	"agentherd/internal/storage"
	"agentherd/pkg/models"
)

// StartRequest carries the launch parameters for one task dispatch.
type StartRequest struct {
	Type         models.TaskType
	ExecutorName string
	Prompt       string
	Command      string
	Workspace    string
	MaxTurns     int
	AllowedTools []string
}

// LifecycleEngine owns the task state machine. It is the only component
// that mutates task status; callers observe through snapshots.
type LifecycleEngine interface {
	Start(ctx context.Context, req StartRequest) (string, error)
	Status(ctx context.Context, taskID string) (*models.Snapshot, error)
	Kill(ctx context.Context, taskID string) (*models.Snapshot, error)
	Cleanup(ctx context.Context, taskID string) error
	FetchOutput(ctx context.Context, taskID string, n int) ([]models.OutputRecord, error)
	Sweep(ctx context.Context) []SweepResult
}

// EngineParams wires the engine's collaborators. Clock and BackendTimeout
// default sensibly when zero.
type EngineParams struct {
	Config      *models.Config
	Store       storage.MetadataStore
	Heartbeats  storage.HeartbeatChannel
	Completions storage.CompletionStore
	Executors   map[string]executor.Executor
	Events      observability.EventLog
	Notifier    observability.Notifier

	Clock          func() time.Time
	BackendTimeout time.Duration
}

type engine struct {
	cfg         *models.Config
	store       storage.MetadataStore
	heartbeats  storage.HeartbeatChannel
	completions storage.CompletionStore
	executors   map[string]executor.Executor
	events      observability.EventLog
	notifier    observability.Notifier

	now            func() time.Time
	backendTimeout time.Duration

	// mu guards the lock maps; the per-task mutexes serialize mutation of
	// one task record, per-executor mutexes serialize limit accounting.
	mu        sync.Mutex
	taskLocks map[string]*sync.Mutex
	execLocks map[string]*sync.Mutex
}

// NewEngine creates a LifecycleEngine from its collaborators.
func NewEngine(p EngineParams) LifecycleEngine {
	if p.Clock == nil {
		p.Clock = func() time.Time { return time.Now().UTC() }
	}
	if p.BackendTimeout <= 0 {
		p.BackendTimeout = 30 * time.Second
	}
	if p.Events == nil {
		p.Events = observability.NopEventLog()
	}
	if p.Notifier == nil {
		p.Notifier = observability.NopNotifier()
	}
	return &engine{
		cfg:            p.Config,
		store:          p.Store,
		heartbeats:     p.Heartbeats,
		completions:    p.Completions,
		executors:      p.Executors,
		events:         p.Events,
		notifier:       p.Notifier,
		now:            p.Clock,
		backendTimeout: p.BackendTimeout,
		taskLocks:      make(map[string]*sync.Mutex),
		execLocks:      make(map[string]*sync.Mutex),
	}
}

func (e *engine) taskLock(taskID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.taskLocks[taskID]
	if !ok {
		l = &sync.Mutex{}
		e.taskLocks[taskID] = l
	}
	return l
}

func (e *engine) execLock(name string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.execLocks[name]
	if !ok {
		l = &sync.Mutex{}
		e.execLocks[name] = l
	}
	return l
}

func (e *engine) backendCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, e.backendTimeout)
}

// concurrencyLimit returns the cap for one executor: its own setting, else
// the global default.
func (e *engine) concurrencyLimit(cfg *models.ExecutorConfig) int {
	if cfg.MaxConcurrent > 0 {
		return cfg.MaxConcurrent
	}
	if e.cfg.Defaults.MaxConcurrent > 0 {
		return e.cfg.Defaults.MaxConcurrent
	}
	return DefaultMaxConcurrent
}

func (e *engine) heartbeatInterval() int {
	if e.cfg.Defaults.HeartbeatInterval > 0 {
		return e.cfg.Defaults.HeartbeatInterval
	}
	return DefaultHeartbeatInterval
}

func (e *engine) staleFactor() int {
	if e.cfg.Defaults.StaleFactor > 0 {
		return e.cfg.Defaults.StaleFactor
	}
	return DefaultStaleFactor
}

// Start validates the executor, reserves a concurrency slot by persisting a
// pending record, delegates launch, and confirms running. A failed launch
// leaves the task terminal failed, never dangling pending.
func (e *engine) Start(ctx context.Context, req StartRequest) (string, error) {
	execCfg := e.cfg.FindExecutor(req.ExecutorName)
	exec, ok := e.executors[req.ExecutorName]
	if execCfg == nil || !ok {
		return "", fmt.Errorf("%w: %s", ErrExecutorNotFound, req.ExecutorName)
	}

	now := e.now()
	task := &models.Task{
		ID:                uuid.NewString(),
		Type:              req.Type,
		ExecutorName:      execCfg.Name,
		ExecutorType:      string(execCfg.Type),
		Status:            models.StatusPending,
		Prompt:            req.Prompt,
		Command:           req.Command,
		Workspace:         req.Workspace,
		StartedAt:         now,
		UpdatedAt:         now,
		HeartbeatInterval: e.heartbeatInterval(),
	}

	// The pending record is written under the executor lock so concurrent
	// Start calls observe each other's reservations deterministically.
	startLock := e.execLock(execCfg.Name)
	startLock.Lock()
	active, err := e.countActive(execCfg.Name)
	if err != nil {
		startLock.Unlock()
		return "", fmt.Errorf("starting task: %w", err)
	}
	if limit := e.concurrencyLimit(execCfg); active >= limit {
		startLock.Unlock()
		return "", fmt.Errorf("%w: %s is at limit %d", ErrConcurrencyLimitExceeded, execCfg.Name, limit)
	}
	if err := e.store.Put(task); err != nil {
		startLock.Unlock()
		return "", fmt.Errorf("starting task: %w", err)
	}
	startLock.Unlock()

	e.logEvent("INFO", "task.created", "task created", task.ID, map[string]any{
		"executor": task.ExecutorName, "type": string(task.Type),
	})

	launchCtx, cancel := e.backendCtx(ctx)
	defer cancel()
	handle, launchErr := exec.Launch(launchCtx, executor.LaunchSpec{
		TaskID:       task.ID,
		Type:         req.Type,
		Prompt:       req.Prompt,
		Command:      req.Command,
		Workspace:    req.Workspace,
		MaxTurns:     e.maxTurns(req.MaxTurns),
		AllowedTools: req.AllowedTools,
	})

	lock := e.taskLock(task.ID)
	lock.Lock()
	defer lock.Unlock()

	// Re-read the record: a concurrent Kill may have finalized the pending
	// task while the launch RPC was in flight. Terminal states never revert.
	current, err := e.store.Get(task.ID)
	if err != nil {
		return "", fmt.Errorf("confirming launch for %s: %w", task.ID, err)
	}

	if launchErr != nil {
		if !current.Status.IsTerminal() {
			current.MarkFailed(fmt.Sprintf("launch failed: %v", launchErr), e.now())
			if putErr := e.store.Put(current); putErr != nil {
				return "", fmt.Errorf("recording launch failure for %s: %w", task.ID, putErr)
			}
			e.finalize(current)
		}
		return "", fmt.Errorf("%w: %s: %v", ErrLaunchFailed, task.ID, launchErr)
	}

	if current.Status.IsTerminal() {
		// The launch won the race against its own kill; reap the fresh
		// process so nothing runs unattended.
		termCtx, cancel := e.backendCtx(ctx)
		defer cancel()
		if termErr := exec.Terminate(termCtx, handle); termErr != nil {
			e.logEvent("WARN", "task.terminate_failed", termErr.Error(), task.ID, nil)
		}
		return "", fmt.Errorf("starting task %s: terminated during launch (%s)", task.ID, current.Status)
	}

	current.MarkRunning(handle, e.now())
	if err := e.store.Put(current); err != nil {
		return "", fmt.Errorf("recording launch for %s: %w", task.ID, err)
	}
	e.logEvent("INFO", "task.started", "task running", task.ID, map[string]any{
		"pid": handle.PID,
	})
	return task.ID, nil
}

func (e *engine) maxTurns(requested int) int {
	if requested > 0 {
		return requested
	}
	return e.cfg.Defaults.MaxTurns
}

// countActive counts non-terminal tasks attributed to one executor.
func (e *engine) countActive(executorName string) (int, error) {
	tasks, err := e.store.List()
	if err != nil {
		return 0, err
	}
	count := 0
	for _, t := range tasks {
		if t.ExecutorName == executorName && !t.Status.IsTerminal() {
			count++
		}
	}
	return count, nil
}

// Status returns the stored record for terminal tasks. For non-terminal
// tasks it folds in the heartbeat channel, applies the staleness policy,
// and merges a live backend probe. An unknown probe never mutates state.
func (e *engine) Status(ctx context.Context, taskID string) (*models.Snapshot, error) {
	lock := e.taskLock(taskID)
	lock.Lock()
	defer lock.Unlock()
	return e.reconcile(ctx, taskID)
}

// reconcile is the shared status/sweep path. Caller holds the task lock.
func (e *engine) reconcile(ctx context.Context, taskID string) (*models.Snapshot, error) {
	task, err := e.store.Get(taskID)
	if err != nil {
		return nil, err
	}

	if task.Status.IsTerminal() {
		return &models.Snapshot{Task: *task, ProbeState: models.ProbeStateNone}, nil
	}

	now := e.now()

	// Fold the heartbeat side channel into the record. A read failure is
	// logged and ignored; the channel is advisory until it goes stale.
	if rec, hbErr := e.heartbeats.Read(taskID); hbErr != nil {
		e.logEvent("WARN", "heartbeat.read_failed", hbErr.Error(), taskID, nil)
	} else if rec != nil {
		if task.ObserveHeartbeat(rec.At, rec.IntervalSeconds, now) {
			if err := e.store.Put(task); err != nil {
				return nil, fmt.Errorf("recording heartbeat for %s: %w", taskID, err)
			}
		}
	}

	if e.isStale(task, now) {
		task.MarkHeartbeatTimeout(now)
		if err := e.store.Put(task); err != nil {
			return nil, fmt.Errorf("recording heartbeat timeout for %s: %w", taskID, err)
		}
		e.finalize(task)
		return &models.Snapshot{Task: *task, ProbeState: models.ProbeStateNone}, nil
	}

	if task.Status == models.StatusPending {
		// Launch not yet confirmed; there is no handle to probe.
		return &models.Snapshot{Task: *task, ProbeState: models.ProbeStateNone}, nil
	}

	exec, ok := e.executors[task.ExecutorName]
	if !ok {
		// Executor removed from config since launch; we cannot probe.
		return &models.Snapshot{Task: *task, ProbeState: models.ProbeStateUnknown}, nil
	}

	probeCtx, cancel := e.backendCtx(ctx)
	defer cancel()
	result, probeErr := exec.Probe(probeCtx, task.Handle)

	switch result.State {
	case executor.StateAlive:
		return &models.Snapshot{Task: *task, ProbeState: models.ProbeStateOK, Usage: result.Usage}, nil

	case executor.StateDead:
		if result.ExitCode != nil {
			task.MarkCompleted(*result.ExitCode, now)
		} else {
			task.MarkFailed("process no longer present and no exit status recorded", now)
		}
		if err := e.store.Put(task); err != nil {
			return nil, fmt.Errorf("recording completion for %s: %w", taskID, err)
		}
		e.finalize(task)
		return &models.Snapshot{Task: *task, ProbeState: models.ProbeStateOK}, nil

	default:
		// Unreachable backend tells us nothing about the process.
		if probeErr != nil {
			e.logEvent("WARN", "probe.unknown", probeErr.Error(), taskID, nil)
		}
		return &models.Snapshot{Task: *task, ProbeState: models.ProbeStateUnknown}, nil
	}
}

// isStale applies the staleness policy: heartbeat age beyond
// interval*staleFactor. A task that never heartbeated is not stale — the
// channel has "no data yet" and the probe path is responsible for it.
func (e *engine) isStale(task *models.Task, now time.Time) bool {
	if task.LastHeartbeat.IsZero() {
		return false
	}
	interval := task.HeartbeatInterval
	if interval <= 0 {
		interval = e.heartbeatInterval()
	}
	staleAfter := time.Duration(interval*e.staleFactor()) * time.Second
	return now.Sub(task.LastHeartbeat) > staleAfter
}

// Kill terminates a non-terminal task. Killing an already-terminal task is
// a no-op, not an error. The transition to killed is recorded only once the
// termination signal was delivered or determined unnecessary.
func (e *engine) Kill(ctx context.Context, taskID string) (*models.Snapshot, error) {
	lock := e.taskLock(taskID)
	lock.Lock()
	defer lock.Unlock()

	task, err := e.store.Get(taskID)
	if err != nil {
		return nil, err
	}
	if task.Status.IsTerminal() {
		return &models.Snapshot{Task: *task, ProbeState: models.ProbeStateNone}, nil
	}

	exec, ok := e.executors[task.ExecutorName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrExecutorNotFound, task.ExecutorName)
	}

	termCtx, cancel := e.backendCtx(ctx)
	defer cancel()
	if err := exec.Terminate(termCtx, task.Handle); err != nil {
		// Signal not delivered; leave the task alone for a retry.
		e.logEvent("WARN", "task.terminate_failed", err.Error(), taskID, nil)
		return nil, fmt.Errorf("killing %s: %w", taskID, err)
	}

	task.MarkKilled(e.now())
	if err := e.store.Put(task); err != nil {
		return nil, fmt.Errorf("recording kill for %s: %w", taskID, err)
	}
	e.finalize(task)
	return &models.Snapshot{Task: *task, ProbeState: models.ProbeStateNone}, nil
}

// Cleanup removes backend artifacts and then the metadata record, in that
// order. Partial failure leaves the record intact so cleanup can be safely
// re-invoked.
func (e *engine) Cleanup(ctx context.Context, taskID string) error {
	lock := e.taskLock(taskID)
	lock.Lock()
	defer lock.Unlock()

	task, err := e.store.Get(taskID)
	if err != nil {
		return err
	}
	if !task.Status.IsTerminal() {
		return fmt.Errorf("%w: %s is %s", ErrTaskNotTerminal, taskID, task.Status)
	}

	exec, ok := e.executors[task.ExecutorName]
	if !ok {
		return fmt.Errorf("%w: %s", ErrExecutorNotFound, task.ExecutorName)
	}

	rmCtx, cancel := e.backendCtx(ctx)
	defer cancel()
	if err := exec.RemoveArtifacts(rmCtx, task.Handle); err != nil {
		return fmt.Errorf("cleaning up %s: backend artifacts: %w", taskID, err)
	}
	if err := e.heartbeats.Remove(taskID); err != nil {
		return fmt.Errorf("cleaning up %s: heartbeat record: %w", taskID, err)
	}
	if e.completions != nil {
		if err := e.completions.Remove(taskID); err != nil {
			return fmt.Errorf("cleaning up %s: completion record: %w", taskID, err)
		}
	}
	if err := e.store.Delete(taskID); err != nil {
		return fmt.Errorf("cleaning up %s: metadata: %w", taskID, err)
	}

	e.logEvent("INFO", "task.cleaned", "task cleaned up", taskID, nil)
	return nil
}

// FetchOutput returns the most recent n output records for a task.
func (e *engine) FetchOutput(ctx context.Context, taskID string, n int) ([]models.OutputRecord, error) {
	task, err := e.store.Get(taskID)
	if err != nil {
		return nil, err
	}
	exec, ok := e.executors[task.ExecutorName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrExecutorNotFound, task.ExecutorName)
	}

	fetchCtx, cancel := e.backendCtx(ctx)
	defer cancel()
	return exec.FetchOutput(fetchCtx, task.Handle, n)
}

// finalize records a terminal transition: the durable completion record,
// the event log entry, and the one-shot terminal event to the notification
// sink. Caller holds the task lock and has already persisted the record.
func (e *engine) finalize(task *models.Task) {
	level := "INFO"
	if task.Status == models.StatusFailed || task.Status == models.StatusHeartbeatTimeout {
		level = "WARN"
	}
	data := map[string]any{"status": string(task.Status)}
	if task.ExitCode != nil {
		data["exit_code"] = *task.ExitCode
	}
	if task.Error != "" {
		data["error"] = task.Error
	}
	e.logEvent(level, "task."+string(task.Status), "task reached terminal state", task.ID, data)

	if e.completions != nil {
		rec := storage.CompletionRecord{
			TaskID:   task.ID,
			Executor: task.ExecutorName,
			Status:   task.Status,
			ExitCode: task.ExitCode,
			Error:    task.Error,
		}
		if task.FinishedAt != nil {
			rec.FinishedAt = *task.FinishedAt
		}
		if err := e.completions.Record(rec); err != nil {
			e.logEvent("WARN", "completion.write_failed", err.Error(), task.ID, nil)
		}
	}

	event := models.TerminalEvent{
		TaskID:       task.ID,
		ExecutorName: task.ExecutorName,
		Status:       task.Status,
		ExitCode:     task.ExitCode,
		Error:        task.Error,
	}
	if task.FinishedAt != nil {
		event.FinishedAt = *task.FinishedAt
	}
	if err := e.notifier.NotifyTerminal(event); err != nil {
		e.logEvent("WARN", "notify.failed", err.Error(), task.ID, nil)
	}
}

func (e *engine) logEvent(level, eventType, msg, taskID string, data map[string]any) {
	if data == nil {
		data = map[string]any{}
	}
	data["task_id"] = taskID
	_ = e.events.Write(observability.Event{
		Time:    e.now(),
		Level:   level,
		Type:    eventType,
		Message: msg,
		Data:    data,
	})
}
