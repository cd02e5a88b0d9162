package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"

	"agentherd/pkg/models"
)

// remoteTaskRoot is where task-scoped working directories live on the
// remote host.
const remoteTaskRoot = "/tmp/agentherd-tasks"

// sshExecutor runs tasks on a remote host over SSH. The launched process is
// detached from the session, so a dropped connection says nothing about the
// process: every probe reopens a connection and asks the remote OS.
type sshExecutor struct {
	cfg      models.ExecutorConfig
	defaults models.Defaults
}

func newSSHExecutor(cfg models.ExecutorConfig, defaults models.Defaults) (*sshExecutor, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("ssh executor %s: host is required", cfg.Name)
	}
	if cfg.User == "" {
		return nil, fmt.Errorf("ssh executor %s: user is required", cfg.Name)
	}
	return &sshExecutor{cfg: cfg, defaults: defaults}, nil
}

func (e *sshExecutor) Name() string              { return e.cfg.Name }
func (e *sshExecutor) Type() models.ExecutorType { return models.ExecutorSSH }

// authMethods builds the SSH auth chain: explicit key file if configured,
// otherwise the local SSH agent.
func (e *sshExecutor) authMethods() ([]ssh.AuthMethod, error) {
	if e.cfg.KeyPath != "" {
		key, err := os.ReadFile(e.cfg.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("reading key %s: %w", e.cfg.KeyPath, err)
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, fmt.Errorf("parsing key %s: %w", e.cfg.KeyPath, err)
		}
		return []ssh.AuthMethod{ssh.PublicKeys(signer)}, nil
	}

	sock := os.Getenv("SSH_AUTH_SOCK")
	if sock == "" {
		return nil, fmt.Errorf("no key_path configured and SSH_AUTH_SOCK is unset")
	}
	conn, err := net.Dial("unix", sock)
	if err != nil {
		return nil, fmt.Errorf("dialing ssh agent: %w", err)
	}
	return []ssh.AuthMethod{ssh.PublicKeysCallback(agent.NewClient(conn).Signers)}, nil
}

// connect opens an authenticated connection to the configured host,
// honoring the context deadline for the dial and handshake.
func (e *sshExecutor) connect(ctx context.Context) (*ssh.Client, error) {
	auth, err := e.authMethods()
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", e.cfg.Host, err)
	}

	clientCfg := &ssh.ClientConfig{
		User: e.cfg.User,
		Auth: auth,
		// Host keys are not pinned; agentherd targets hosts the operator
		// already trusts via config.
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         15 * time.Second,
	}

	addr := net.JoinHostPort(e.cfg.Host, strconv.Itoa(e.cfg.SSHPort()))
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", addr, err)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, clientCfg)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("handshake with %s: %w", addr, err)
	}
	return ssh.NewClient(sshConn, chans, reqs), nil
}

// awaitRun waits for a remote command result or the context, whichever comes
// first. On expiry it invokes abort to tear down the transport so the
// blocked Run returns, and reports the context error.
func awaitRun(ctx context.Context, done <-chan error, abort func()) error {
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		abort()
		return ctx.Err()
	}
}

// runRemote executes one command in a fresh session, bounded by the context,
// and returns stdout and the remote exit status. A non-zero exit status is a
// result, not an error; transport failures and timeouts error out.
func (e *sshExecutor) runRemote(ctx context.Context, client *ssh.Client, cmd string) (string, int, error) {
	sess, err := client.NewSession()
	if err != nil {
		return "", 0, fmt.Errorf("opening session: %w", err)
	}
	defer sess.Close()

	var stdout, stderr bytes.Buffer
	sess.Stdout = &stdout
	sess.Stderr = &stderr

	done := make(chan error, 1)
	go func() { done <- sess.Run(cmd) }()

	if err := awaitRun(ctx, done, func() { sess.Close(); client.Close() }); err != nil {
		var exitErr *ssh.ExitError
		if errors.As(err, &exitErr) {
			return stdout.String(), exitErr.ExitStatus(), nil
		}
		return "", 0, fmt.Errorf("running %q: %w", cmd, err)
	}
	return stdout.String(), 0, nil
}

func remoteTaskDir(taskID string) string {
	return path.Join(remoteTaskRoot, taskID)
}

// Launch creates the task directory on the remote host, starts the command
// detached with output, exit code, and pid redirected to sentinel files,
// reads the pid back, and closes the session. The process survives the
// disconnect.
func (e *sshExecutor) Launch(ctx context.Context, spec LaunchSpec) (models.Handle, error) {
	client, err := e.connect(ctx)
	if err != nil {
		return models.Handle{}, err
	}
	defer client.Close()

	dir := remoteTaskDir(spec.TaskID)
	handle := models.Handle{
		TaskDir:      dir,
		LogPath:      path.Join(dir, "output.log"),
		ExitCodePath: path.Join(dir, "exit.code"),
		PIDPath:      path.Join(dir, "agent.pid"),
	}

	if out, code, err := e.runRemote(ctx, client, "mkdir -p "+shellQuote(dir)); err != nil {
		return models.Handle{}, fmt.Errorf("creating task dir: %w", err)
	} else if code != 0 {
		return models.Handle{}, fmt.Errorf("creating task dir: exit %d: %s", code, strings.TrimSpace(out))
	}

	inner := innerCommand(spec, e.cfg.AgentBinary(e.defaults.AgentPath))
	wrapper := detachedWrapper(workspaceToken(spec.Workspace), envPrefix(e.cfg.Env), inner,
		handle.LogPath, handle.ExitCodePath, handle.PIDPath)

	if _, code, err := e.runRemote(ctx, client, wrapper); err != nil {
		return models.Handle{}, fmt.Errorf("launching task: %w", err)
	} else if code != 0 {
		return models.Handle{}, fmt.Errorf("launching task: wrapper exit %d", code)
	}

	pidOut, code, err := e.runRemote(ctx, client, "cat "+shellQuote(handle.PIDPath))
	if err != nil {
		return models.Handle{}, fmt.Errorf("reading pid file: %w", err)
	}
	if code != 0 {
		return models.Handle{}, fmt.Errorf("reading pid file: exit %d", code)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(pidOut))
	if err != nil {
		return models.Handle{}, fmt.Errorf("invalid pid %q", strings.TrimSpace(pidOut))
	}
	handle.PID = pid

	return handle, nil
}

// Probe reopens a connection and asks the remote OS whether the pid exists.
// Connectivity failure yields StateUnknown, never an inferred death.
func (e *sshExecutor) Probe(ctx context.Context, handle models.Handle) (ProbeResult, error) {
	if handle.PID <= 0 {
		return unknownProbe(), fmt.Errorf("%w: no pid recorded", ErrProbeUnknown)
	}
	client, err := e.connect(ctx)
	if err != nil {
		return unknownProbe(), fmt.Errorf("%w: %v", ErrProbeUnknown, err)
	}
	defer client.Close()

	check := fmt.Sprintf("kill -0 %d 2>/dev/null && echo alive || echo gone", handle.PID)
	out, _, err := e.runRemote(ctx, client, check)
	if err != nil {
		return unknownProbe(), fmt.Errorf("%w: %v", ErrProbeUnknown, err)
	}

	if strings.TrimSpace(out) == "alive" {
		result := ProbeResult{State: StateAlive}
		usageOut, code, err := e.runRemote(ctx, client,
			fmt.Sprintf("ps -o %%cpu=,rss= -p %d", handle.PID))
		if err == nil && code == 0 {
			result.Usage = parsePSUsage(usageOut)
		}
		return result, nil
	}

	result := ProbeResult{State: StateDead}
	exitOut, code, err := e.runRemote(ctx, client, "cat "+shellQuote(handle.ExitCodePath)+" 2>/dev/null")
	if err == nil && code == 0 {
		if exitCode, ok := parseExitCode(exitOut); ok {
			result.ExitCode = &exitCode
		}
	}
	return result, nil
}

// FetchOutput returns the last n log lines from the remote output file.
// Repeated calls are idempotent reads, not a stream cursor.
func (e *sshExecutor) FetchOutput(ctx context.Context, handle models.Handle, n int) ([]models.OutputRecord, error) {
	client, err := e.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	out, code, err := e.runRemote(ctx, client,
		fmt.Sprintf("tail -n %d %s 2>/dev/null", n, shellQuote(handle.LogPath)))
	if err != nil {
		return nil, fmt.Errorf("fetching output: %w", err)
	}
	if code != 0 {
		return nil, nil
	}
	return tailRecords(out, n), nil
}

// Terminate sends SIGTERM to the remote process. "Already gone" is success.
func (e *sshExecutor) Terminate(ctx context.Context, handle models.Handle) error {
	if handle.PID <= 0 {
		return nil
	}
	client, err := e.connect(ctx)
	if err != nil {
		return fmt.Errorf("terminating task: %w", err)
	}
	defer client.Close()

	if _, _, err := e.runRemote(ctx, client,
		fmt.Sprintf("kill %d 2>/dev/null || true", handle.PID)); err != nil {
		return fmt.Errorf("terminating task: %w", err)
	}
	return nil
}

// RemoveArtifacts deletes the task-scoped directory on the remote host.
// An already-absent directory is success.
func (e *sshExecutor) RemoveArtifacts(ctx context.Context, handle models.Handle) error {
	if handle.TaskDir == "" {
		return nil
	}
	client, err := e.connect(ctx)
	if err != nil {
		return fmt.Errorf("removing artifacts: %w", err)
	}
	defer client.Close()

	if out, code, err := e.runRemote(ctx, client, "rm -rf "+shellQuote(handle.TaskDir)); err != nil {
		return fmt.Errorf("removing artifacts: %w", err)
	} else if code != 0 {
		return fmt.Errorf("removing artifacts: exit %d: %s", code, strings.TrimSpace(out))
	}
	return nil
}
