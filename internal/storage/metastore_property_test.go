package storage

import (
	"testing"
	"time"

	"pgregory.net/rapid"

	"agentherd/pkg/models"
)

// TestProperty01_MetadataStoreRoundTrip verifies that any task record
// survives a Put/Get cycle with status, handle, and timing intact.
func TestProperty01_MetadataStoreRoundTrip(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		store := NewMetadataStore(t.TempDir())

		status := rapid.SampledFrom([]models.TaskStatus{
			models.StatusPending, models.StatusRunning,
			models.StatusCompleted, models.StatusFailed,
			models.StatusKilled, models.StatusHeartbeatTimeout,
		}).Draw(rt, "status")

		task := &models.Task{
			ID:           rapid.StringMatching(`[a-f0-9]{8}-[a-f0-9]{4}`).Draw(rt, "id"),
			Type:         rapid.SampledFrom([]models.TaskType{models.TaskTypeAgent, models.TaskTypeShell}).Draw(rt, "type"),
			ExecutorName: rapid.StringMatching(`[a-z]{1,12}`).Draw(rt, "executor"),
			Status:       status,
			Handle: models.Handle{
				PID: rapid.IntRange(0, 1<<20).Draw(rt, "pid"),
			},
			StartedAt:         time.Unix(rapid.Int64Range(1_600_000_000, 1_900_000_000).Draw(rt, "started"), 0).UTC(),
			HeartbeatInterval: rapid.IntRange(1, 600).Draw(rt, "interval"),
		}
		if status.IsTerminal() {
			finished := task.StartedAt.Add(time.Minute)
			task.FinishedAt = &finished
			if status == models.StatusCompleted {
				code := 0
				task.ExitCode = &code
			}
		}

		if err := store.Put(task); err != nil {
			rt.Fatalf("Put: %v", err)
		}
		got, err := store.Get(task.ID)
		if err != nil {
			rt.Fatalf("Get: %v", err)
		}

		if got.ID != task.ID || got.Status != task.Status || got.Type != task.Type {
			rt.Fatalf("round trip mismatch: got %+v, want %+v", got, task)
		}
		if got.Handle.PID != task.Handle.PID {
			rt.Fatalf("pid = %d, want %d", got.Handle.PID, task.Handle.PID)
		}
		if !got.StartedAt.Equal(task.StartedAt) {
			rt.Fatalf("started_at = %v, want %v", got.StartedAt, task.StartedAt)
		}
		if (got.FinishedAt == nil) != (task.FinishedAt == nil) {
			rt.Fatalf("finished_at presence mismatch")
		}
		if (got.ExitCode == nil) != (task.ExitCode == nil) {
			rt.Fatalf("exit_code presence mismatch")
		}
	})
}

// TestProperty02_MetadataStoreListContainsAllPuts verifies that every
// record written is present exactly once in a listing.
func TestProperty02_MetadataStoreListContainsAllPuts(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		store := NewMetadataStore(t.TempDir())

		n := rapid.IntRange(1, 15).Draw(rt, "num_tasks")
		base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		ids := make(map[string]bool)
		for i := 0; i < n; i++ {
			id := rapid.StringMatching(`task-[a-f0-9]{6}`).Draw(rt, "id")
			if ids[id] {
				continue
			}
			ids[id] = true
			task := &models.Task{
				ID:        id,
				Status:    models.StatusRunning,
				StartedAt: base.Add(time.Duration(i) * time.Second),
			}
			if err := store.Put(task); err != nil {
				rt.Fatalf("Put: %v", err)
			}
		}

		tasks, err := store.List()
		if err != nil {
			rt.Fatalf("List: %v", err)
		}
		if len(tasks) != len(ids) {
			rt.Fatalf("listed %d tasks, want %d", len(tasks), len(ids))
		}
		for _, task := range tasks {
			if !ids[task.ID] {
				rt.Fatalf("unexpected task %s in listing", task.ID)
			}
			delete(ids, task.ID)
		}
	})
}
