package storage

import (
	"testing"
	"time"
)

func TestHeartbeatChannel_ReadBeforeWrite(t *testing.T) {
	ch := NewHeartbeatChannel(t.TempDir())

	rec, err := ch.Read("task-1")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if rec != nil {
		t.Errorf("rec = %+v, want nil for a task that never heartbeated", rec)
	}
}

func TestHeartbeatChannel_WriteReadRoundTrip(t *testing.T) {
	ch := NewHeartbeatChannel(t.TempDir())

	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rec := HeartbeatRecord{TaskID: "task-1", At: at, IntervalSeconds: 30}
	if err := ch.Write(rec); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := ch.Read("task-1")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got == nil {
		t.Fatal("Read returned nil after Write")
	}
	if !got.At.Equal(at) || got.IntervalSeconds != 30 {
		t.Errorf("got %+v, want %+v", got, rec)
	}
}

func TestHeartbeatChannel_WriteReplaces(t *testing.T) {
	ch := NewHeartbeatChannel(t.TempDir())

	first := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	second := first.Add(30 * time.Second)
	for _, at := range []time.Time{first, second} {
		if err := ch.Write(HeartbeatRecord{TaskID: "task-1", At: at, IntervalSeconds: 30}); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}

	got, err := ch.Read("task-1")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !got.At.Equal(second) {
		t.Errorf("at = %v, want the latest write %v", got.At, second)
	}
}

func TestHeartbeatChannel_RemoveIdempotent(t *testing.T) {
	ch := NewHeartbeatChannel(t.TempDir())

	if err := ch.Write(HeartbeatRecord{TaskID: "task-1", At: time.Now(), IntervalSeconds: 30}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := ch.Remove("task-1"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := ch.Remove("task-1"); err != nil {
		t.Fatalf("second Remove: %v", err)
	}
	rec, err := ch.Read("task-1")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if rec != nil {
		t.Errorf("rec = %+v, want nil after remove", rec)
	}
}

func TestHeartbeatChannel_WriteRejectsEmptyID(t *testing.T) {
	ch := NewHeartbeatChannel(t.TempDir())

	if err := ch.Write(HeartbeatRecord{At: time.Now()}); err == nil {
		t.Error("expected error for empty task id")
	}
}
