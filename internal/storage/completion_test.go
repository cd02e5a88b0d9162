package storage

import (
	"testing"
	"time"

	"agentherd/pkg/models"
)

func TestCompletionStore_RecordReadRoundTrip(t *testing.T) {
	store := NewCompletionStore(t.TempDir())

	code := 0
	rec := CompletionRecord{
		TaskID:     "task-1",
		Executor:   "buildbox",
		Status:     models.StatusCompleted,
		ExitCode:   &code,
		FinishedAt: time.Date(2025, 6, 1, 12, 5, 0, 0, time.UTC),
	}
	if err := store.Record(rec); err != nil {
		t.Fatalf("Record: %v", err)
	}

	got, err := store.Read("task-1")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got == nil {
		t.Fatal("Read returned nil after Record")
	}
	if got.Status != models.StatusCompleted || got.Executor != "buildbox" {
		t.Errorf("got %+v", got)
	}
	if got.ExitCode == nil || *got.ExitCode != 0 {
		t.Error("exit code lost in round trip")
	}
	if !got.FinishedAt.Equal(rec.FinishedAt) {
		t.Errorf("finished_at = %v, want %v", got.FinishedAt, rec.FinishedAt)
	}
}

func TestCompletionStore_ReadMissing(t *testing.T) {
	store := NewCompletionStore(t.TempDir())

	rec, err := store.Read("nope")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if rec != nil {
		t.Errorf("rec = %+v, want nil for a task with no completion", rec)
	}
}

func TestCompletionStore_FirstRecordWins(t *testing.T) {
	store := NewCompletionStore(t.TempDir())

	first := CompletionRecord{TaskID: "task-1", Status: models.StatusKilled}
	if err := store.Record(first); err != nil {
		t.Fatalf("Record: %v", err)
	}

	// A replayed finalization must not overwrite the original outcome.
	replay := CompletionRecord{TaskID: "task-1", Status: models.StatusCompleted}
	if err := store.Record(replay); err != nil {
		t.Fatalf("replayed Record: %v", err)
	}

	got, err := store.Read("task-1")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got.Status != models.StatusKilled {
		t.Errorf("status = %s, want the first recorded outcome", got.Status)
	}
}

func TestCompletionStore_RemoveIdempotent(t *testing.T) {
	store := NewCompletionStore(t.TempDir())

	if err := store.Record(CompletionRecord{TaskID: "task-1", Status: models.StatusFailed}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := store.Remove("task-1"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := store.Remove("task-1"); err != nil {
		t.Fatalf("second Remove: %v", err)
	}
	rec, err := store.Read("task-1")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if rec != nil {
		t.Errorf("rec = %+v, want nil after remove", rec)
	}
}
