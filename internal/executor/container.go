package executor

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"agentherd/pkg/models"
)

// containerExecutor runs tasks in detached docker/podman containers by
// shelling out to the runtime CLI. The container itself is the detachment
// boundary: it keeps running after the launching process exits.
type containerExecutor struct {
	cfg      models.ExecutorConfig
	defaults models.Defaults
}

func newContainerExecutor(cfg models.ExecutorConfig, defaults models.Defaults) (*containerExecutor, error) {
	if cfg.Image == "" {
		return nil, fmt.Errorf("container executor %s: image is required", cfg.Name)
	}
	return &containerExecutor{cfg: cfg, defaults: defaults}, nil
}

func (e *containerExecutor) Name() string              { return e.cfg.Name }
func (e *containerExecutor) Type() models.ExecutorType { return models.ExecutorContainer }

func (e *containerExecutor) containerName(taskID string) string {
	short := taskID
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("agentherd-%s-%s", e.cfg.Name, short)
}

// runtimeCmd runs one container runtime command and returns trimmed stdout.
// Stderr is folded into the error for failed invocations.
func (e *containerExecutor) runtimeCmd(ctx context.Context, args ...string) (string, error) {
	runtime := string(e.cfg.ContainerEngine())
	cmd := exec.CommandContext(ctx, runtime, args...)
	out, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return "", fmt.Errorf("%s %s: %s", runtime, args[0],
				strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", fmt.Errorf("running %s: %w", runtime, err)
	}
	return strings.TrimSpace(string(out)), nil
}

// isNotFound matches the runtime's "no such container" family of errors,
// which mean the container was removed out from under us.
func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "no such container") ||
		strings.Contains(msg, "no such object") ||
		strings.Contains(msg, "no container with name")
}

// Launch starts a detached container running the task command.
func (e *containerExecutor) Launch(ctx context.Context, spec LaunchSpec) (models.Handle, error) {
	name := e.containerName(spec.TaskID)

	args := []string{"run", "-d", "--name", name}
	for _, vol := range e.cfg.Volumes {
		args = append(args, "-v", vol)
	}
	for k, v := range e.cfg.Env {
		args = append(args, "-e", fmt.Sprintf("%s=%s", k, v))
	}
	if spec.Workspace != "" {
		args = append(args, "-w", spec.Workspace)
	}
	args = append(args, e.cfg.Image, "sh", "-c",
		innerCommand(spec, e.cfg.AgentBinary(e.defaults.AgentPath)))

	containerID, err := e.runtimeCmd(ctx, args...)
	if err != nil {
		return models.Handle{}, fmt.Errorf("launching container: %w", err)
	}

	handle := models.Handle{ContainerName: name, ContainerID: containerID}

	// The runtime pid is advisory only; some runtimes report 0.
	if pidOut, err := e.runtimeCmd(ctx, "inspect", "--format", "{{.State.Pid}}", name); err == nil {
		if pid, ok := parseExitCode(pidOut); ok {
			handle.PID = pid
		}
	}
	return handle, nil
}

// Probe inspects the container state. A missing container is a valid dead
// result; a runtime we cannot reach is unknown.
func (e *containerExecutor) Probe(ctx context.Context, handle models.Handle) (ProbeResult, error) {
	if handle.ContainerName == "" {
		return unknownProbe(), fmt.Errorf("%w: no container recorded", ErrProbeUnknown)
	}
	out, err := e.runtimeCmd(ctx, "inspect", "--format",
		"{{.State.Status}} {{.State.ExitCode}}", handle.ContainerName)
	if err != nil {
		if isNotFound(err) {
			return ProbeResult{State: StateDead}, nil
		}
		return unknownProbe(), fmt.Errorf("%w: %v", ErrProbeUnknown, err)
	}

	fields := strings.Fields(out)
	if len(fields) == 0 {
		return unknownProbe(), fmt.Errorf("%w: empty inspect output", ErrProbeUnknown)
	}

	switch fields[0] {
	case "running", "paused", "restarting":
		return ProbeResult{State: StateAlive}, nil
	case "exited", "dead":
		result := ProbeResult{State: StateDead}
		if len(fields) > 1 {
			if code, ok := parseExitCode(fields[1]); ok {
				result.ExitCode = &code
			}
		}
		return result, nil
	default:
		return unknownProbe(), fmt.Errorf("%w: container state %q", ErrProbeUnknown, fields[0])
	}
}

// FetchOutput returns the last n log lines of the container.
func (e *containerExecutor) FetchOutput(ctx context.Context, handle models.Handle, n int) ([]models.OutputRecord, error) {
	runtime := string(e.cfg.ContainerEngine())
	cmd := exec.CommandContext(ctx, runtime, "logs", "--tail", fmt.Sprintf("%d", n), handle.ContainerName)
	// Container runtimes split task output across stdout and stderr.
	out, err := cmd.CombinedOutput()
	if err != nil {
		if isNotFound(fmt.Errorf("%s", out)) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetching container logs: %s", strings.TrimSpace(string(out)))
	}
	return tailRecords(string(out), n), nil
}

// Terminate kills the container. Already gone is success.
func (e *containerExecutor) Terminate(ctx context.Context, handle models.Handle) error {
	if _, err := e.runtimeCmd(ctx, "kill", handle.ContainerName); err != nil {
		if isNotFound(err) {
			return nil
		}
		return fmt.Errorf("killing container: %w", err)
	}
	return nil
}

// RemoveArtifacts force-removes the container. Already gone is success.
func (e *containerExecutor) RemoveArtifacts(ctx context.Context, handle models.Handle) error {
	if handle.ContainerName == "" {
		return nil
	}
	if _, err := e.runtimeCmd(ctx, "rm", "-f", handle.ContainerName); err != nil {
		if isNotFound(err) {
			return nil
		}
		return fmt.Errorf("removing container: %w", err)
	}
	return nil
}
