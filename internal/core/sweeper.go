package core

import (
	"context"
	"sync"

	"agentherd/pkg/models"
)

// SweepResult reports what happened to one non-terminal task during a
// reconciliation pass.
type SweepResult struct {
	TaskID string
	From   models.TaskStatus
	To     models.TaskStatus
	Err    error
}

// Transitioned reports whether the sweep advanced this task.
func (r SweepResult) Transitioned() bool {
	return r.Err == nil && r.From != r.To
}

// Sweep scans every non-terminal task and applies the same staleness and
// probe policy as Status. Each task is reconciled in its own goroutine so
// one unreachable backend never stalls the rest of the pass. This is the
// only path that guarantees forward progress for unattended tasks.
func (e *engine) Sweep(ctx context.Context) []SweepResult {
	tasks, err := e.store.List()
	if err != nil {
		e.logEvent("ERROR", "sweep.list_failed", err.Error(), "", nil)
		return nil
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results []SweepResult
	)

	for _, task := range tasks {
		if task.Status.IsTerminal() {
			continue
		}

		wg.Add(1)
		go func(taskID string, from models.TaskStatus) {
			defer wg.Done()

			lock := e.taskLock(taskID)
			lock.Lock()
			snap, err := e.reconcile(ctx, taskID)
			lock.Unlock()

			result := SweepResult{TaskID: taskID, From: from, Err: err}
			if err == nil {
				result.To = snap.Task.Status
			}

			mu.Lock()
			results = append(results, result)
			mu.Unlock()
		}(task.ID, task.Status)
	}

	wg.Wait()
	return results
}
