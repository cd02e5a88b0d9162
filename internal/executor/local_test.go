package executor

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"agentherd/pkg/models"
)

func newTestLocalExecutor(t *testing.T) *localExecutor {
	t.Helper()
	e := newLocalExecutor(models.ExecutorConfig{Name: "workstation", Type: models.ExecutorLocal}, models.Defaults{})
	e.taskRoot = t.TempDir()
	return e
}

// waitDead polls the probe until the process is gone, failing the test if it
// never dies.
func waitDead(t *testing.T, e *localExecutor, handle models.Handle) ProbeResult {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		result, err := e.Probe(context.Background(), handle)
		if err != nil {
			t.Fatalf("Probe: %v", err)
		}
		if result.State == StateDead {
			return result
		}
		time.Sleep(25 * time.Millisecond)
	}
	t.Fatal("process never died")
	return ProbeResult{}
}

func TestLocalExecutor_RunToCompletion(t *testing.T) {
	e := newTestLocalExecutor(t)

	handle, err := e.Launch(context.Background(), LaunchSpec{
		TaskID:    "run-to-completion",
		Type:      models.TaskTypeShell,
		Command:   "echo hello; exit 7",
		Workspace: t.TempDir(),
	})
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	if handle.PID <= 0 {
		t.Fatalf("pid = %d, want > 0", handle.PID)
	}

	result := waitDead(t, e, handle)
	if result.ExitCode == nil || *result.ExitCode != 7 {
		t.Errorf("exit code = %v, want 7", result.ExitCode)
	}

	records, err := e.FetchOutput(context.Background(), handle, 10)
	if err != nil {
		t.Fatalf("FetchOutput: %v", err)
	}
	if len(records) != 1 || records[0].Text != "hello" {
		t.Errorf("records = %+v, want one 'hello' line", records)
	}
}

func TestLocalExecutor_DefaultWorkspaceRuns(t *testing.T) {
	e := newTestLocalExecutor(t)

	// No workspace given: the wrapper cds to the user's home and the task
	// still runs to a clean exit.
	handle, err := e.Launch(context.Background(), LaunchSpec{
		TaskID:  "default-workspace",
		Type:    models.TaskTypeShell,
		Command: "echo hi",
	})
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}

	result := waitDead(t, e, handle)
	if result.ExitCode == nil || *result.ExitCode != 0 {
		t.Fatalf("exit code = %v, want 0", result.ExitCode)
	}

	records, err := e.FetchOutput(context.Background(), handle, 10)
	if err != nil {
		t.Fatalf("FetchOutput: %v", err)
	}
	if len(records) != 1 || records[0].Text != "hi" {
		t.Errorf("records = %+v, want one 'hi' line", records)
	}
}

func TestLocalExecutor_TerminateRunningTask(t *testing.T) {
	e := newTestLocalExecutor(t)

	handle, err := e.Launch(context.Background(), LaunchSpec{
		TaskID:    "long-runner",
		Type:      models.TaskTypeShell,
		Command:   "sleep 60",
		Workspace: t.TempDir(),
	})
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}

	result, err := e.Probe(context.Background(), handle)
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if result.State != StateAlive {
		t.Fatalf("state = %s, want alive", result.State)
	}

	if err := e.Terminate(context.Background(), handle); err != nil {
		t.Fatalf("Terminate: %v", err)
	}
	waitDead(t, e, handle)

	// Terminating an already-dead process is success.
	if err := e.Terminate(context.Background(), handle); err != nil {
		t.Errorf("second Terminate: %v", err)
	}
}

func TestLocalExecutor_RemoveArtifacts(t *testing.T) {
	e := newTestLocalExecutor(t)

	handle, err := e.Launch(context.Background(), LaunchSpec{
		TaskID:    "cleanup-me",
		Type:      models.TaskTypeShell,
		Command:   "true",
		Workspace: t.TempDir(),
	})
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	waitDead(t, e, handle)

	if err := e.RemoveArtifacts(context.Background(), handle); err != nil {
		t.Fatalf("RemoveArtifacts: %v", err)
	}
	if _, err := os.Stat(handle.TaskDir); !os.IsNotExist(err) {
		t.Errorf("task dir still present: %v", err)
	}

	// Already absent is fine.
	if err := e.RemoveArtifacts(context.Background(), handle); err != nil {
		t.Errorf("second RemoveArtifacts: %v", err)
	}
}

func TestLocalExecutor_ProbeWithoutPID(t *testing.T) {
	e := newTestLocalExecutor(t)

	_, err := e.Probe(context.Background(), models.Handle{})
	if !errors.Is(err, ErrProbeUnknown) {
		t.Errorf("err = %v, want ErrProbeUnknown", err)
	}
}

func TestFactory_New(t *testing.T) {
	local, err := New(models.ExecutorConfig{Name: "here", Type: models.ExecutorLocal}, models.Defaults{})
	if err != nil {
		t.Fatalf("New local: %v", err)
	}
	if local.Name() != "here" || local.Type() != models.ExecutorLocal {
		t.Errorf("local = %s/%s", local.Name(), local.Type())
	}

	if _, err := New(models.ExecutorConfig{Name: "bad", Type: "teleport"}, models.Defaults{}); err == nil {
		t.Error("expected error for unknown type")
	}

	if _, err := New(models.ExecutorConfig{Name: "nohost", Type: models.ExecutorSSH, User: "agent"}, models.Defaults{}); err == nil {
		t.Error("ssh without host should fail")
	}

	if _, err := New(models.ExecutorConfig{Name: "noimage", Type: models.ExecutorContainer}, models.Defaults{}); err == nil {
		t.Error("container without image should fail")
	}
}
