package executor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"agentherd/pkg/models"
)

// localTaskRoot is where task-scoped working directories live on this host.
const localTaskRoot = "/tmp/agentherd-tasks"

// localExecutor runs tasks directly on this host, detached via nohup so
// they outlive the agentherd process that started them.
type localExecutor struct {
	cfg      models.ExecutorConfig
	defaults models.Defaults

	// taskRoot is overridable in tests.
	taskRoot string
}

func newLocalExecutor(cfg models.ExecutorConfig, defaults models.Defaults) *localExecutor {
	return &localExecutor{cfg: cfg, defaults: defaults, taskRoot: localTaskRoot}
}

func (e *localExecutor) Name() string              { return e.cfg.Name }
func (e *localExecutor) Type() models.ExecutorType { return models.ExecutorLocal }

// Launch starts the command under a nohup'd wrapper shell that writes its
// own pid, log output, and exit code to sentinel files in the task dir.
func (e *localExecutor) Launch(ctx context.Context, spec LaunchSpec) (models.Handle, error) {
	dir := filepath.Join(e.taskRoot, spec.TaskID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return models.Handle{}, fmt.Errorf("creating task dir: %w", err)
	}

	handle := models.Handle{
		TaskDir:      dir,
		LogPath:      filepath.Join(dir, "output.log"),
		ExitCodePath: filepath.Join(dir, "exit.code"),
		PIDPath:      filepath.Join(dir, "agent.pid"),
	}

	inner := innerCommand(spec, e.cfg.AgentBinary(e.defaults.AgentPath))
	wrapper := detachedWrapper(workspaceToken(spec.Workspace), envPrefix(e.cfg.Env), inner,
		handle.LogPath, handle.ExitCodePath, handle.PIDPath)

	if out, err := exec.CommandContext(ctx, "sh", "-c", wrapper).CombinedOutput(); err != nil {
		return models.Handle{}, fmt.Errorf("launching task: %w: %s", err, strings.TrimSpace(string(out)))
	}

	pidRaw, err := os.ReadFile(handle.PIDPath)
	if err != nil {
		return models.Handle{}, fmt.Errorf("reading pid file: %w", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(pidRaw)))
	if err != nil {
		return models.Handle{}, fmt.Errorf("invalid pid %q", strings.TrimSpace(string(pidRaw)))
	}
	handle.PID = pid

	return handle, nil
}

// Probe asks the OS whether the pid exists via signal 0. EPERM still means
// the process exists; ESRCH means it is gone.
func (e *localExecutor) Probe(ctx context.Context, handle models.Handle) (ProbeResult, error) {
	if handle.PID <= 0 {
		return unknownProbe(), fmt.Errorf("%w: no pid recorded", ErrProbeUnknown)
	}
	err := syscall.Kill(handle.PID, 0)
	switch {
	case err == nil || errors.Is(err, syscall.EPERM):
		result := ProbeResult{State: StateAlive}
		out, psErr := exec.CommandContext(ctx, "ps", "-o", "%cpu=,rss=", "-p",
			strconv.Itoa(handle.PID)).Output()
		if psErr == nil {
			result.Usage = parsePSUsage(string(out))
		}
		return result, nil
	case errors.Is(err, syscall.ESRCH):
		result := ProbeResult{State: StateDead}
		if raw, readErr := os.ReadFile(handle.ExitCodePath); readErr == nil {
			if code, ok := parseExitCode(string(raw)); ok {
				result.ExitCode = &code
			}
		}
		return result, nil
	default:
		return unknownProbe(), fmt.Errorf("%w: signaling pid %d: %v", ErrProbeUnknown, handle.PID, err)
	}
}

// FetchOutput returns the last n lines of the task's log file.
func (e *localExecutor) FetchOutput(_ context.Context, handle models.Handle, n int) ([]models.OutputRecord, error) {
	data, err := os.ReadFile(handle.LogPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetching output: %w", err)
	}
	return tailRecords(string(data), n), nil
}

// Terminate sends SIGTERM. An already-dead process is success.
func (e *localExecutor) Terminate(_ context.Context, handle models.Handle) error {
	if handle.PID <= 0 {
		return nil
	}
	if err := syscall.Kill(handle.PID, syscall.SIGTERM); err != nil && !errors.Is(err, syscall.ESRCH) {
		return fmt.Errorf("terminating pid %d: %w", handle.PID, err)
	}
	return nil
}

// RemoveArtifacts deletes the task-scoped directory. Already absent is fine.
func (e *localExecutor) RemoveArtifacts(_ context.Context, handle models.Handle) error {
	if handle.TaskDir == "" {
		return nil
	}
	if err := os.RemoveAll(handle.TaskDir); err != nil {
		return fmt.Errorf("removing artifacts: %w", err)
	}
	return nil
}
