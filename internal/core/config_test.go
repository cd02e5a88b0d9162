package core

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"agentherd/pkg/models"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "agentherd.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoadConfig_FullFleet(t *testing.T) {
	path := writeConfig(t, `
defaults:
  agent_path: /usr/local/bin/claude
  heartbeat_interval: 60
  webhook_url: https://hooks.example.com/agentherd

executors:
  - name: workstation
    type: local
  - name: buildbox
    type: ssh
    host: buildbox.internal
    user: agent
    port: 2222
    labels: [linux, gpu]
  - name: sandbox
    type: container
    image: agent-sandbox:latest
    runtime: podman
    max_concurrent: 2
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if len(cfg.Executors) != 3 {
		t.Fatalf("executors = %d, want 3", len(cfg.Executors))
	}
	if cfg.Defaults.AgentPath != "/usr/local/bin/claude" {
		t.Errorf("agent_path = %s", cfg.Defaults.AgentPath)
	}
	if cfg.Defaults.HeartbeatInterval != 60 {
		t.Errorf("heartbeat_interval = %d, want 60", cfg.Defaults.HeartbeatInterval)
	}
	// Unset defaults fall back.
	if cfg.Defaults.StaleFactor != DefaultStaleFactor {
		t.Errorf("stale_factor = %d, want default %d", cfg.Defaults.StaleFactor, DefaultStaleFactor)
	}

	ssh := cfg.FindExecutor("buildbox")
	if ssh == nil {
		t.Fatal("buildbox not found")
	}
	if ssh.SSHPort() != 2222 {
		t.Errorf("ssh port = %d, want 2222", ssh.SSHPort())
	}
	if !ssh.HasLabels([]string{"gpu"}) {
		t.Error("buildbox should carry the gpu label")
	}

	sandbox := cfg.FindExecutor("sandbox")
	if sandbox.ContainerEngine() != models.RuntimePodman {
		t.Errorf("runtime = %s, want podman", sandbox.ContainerEngine())
	}
	if sandbox.MaxConcurrent != 2 {
		t.Errorf("max_concurrent = %d, want 2", sandbox.MaxConcurrent)
	}
}

func TestLoadConfig_MissingFileErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Error("expected error for explicitly given missing file")
	}
}

func TestLoadConfig_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name: "ssh without host",
			content: `
executors:
  - name: broken
    type: ssh
    user: agent
`,
			wantErr: "ssh requires host",
		},
		{
			name: "container without image",
			content: `
executors:
  - name: broken
    type: container
`,
			wantErr: "container requires image",
		},
		{
			name: "unknown type",
			content: `
executors:
  - name: broken
    type: teleport
`,
			wantErr: "unknown type",
		},
		{
			name: "duplicate names",
			content: `
executors:
  - name: twin
    type: local
  - name: twin
    type: local
`,
			wantErr: "duplicate executor name",
		},
		{
			name: "unknown container runtime",
			content: `
executors:
  - name: broken
    type: container
    image: img:latest
    runtime: lxc
`,
			wantErr: "unknown runtime",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.content)
			_, err := LoadConfig(path)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestWriteSampleConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "agentherd.yaml")

	if err := WriteSampleConfig(path); err != nil {
		t.Fatalf("WriteSampleConfig: %v", err)
	}

	// The sample must load cleanly.
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("loading sample: %v", err)
	}
	if len(cfg.Executors) == 0 {
		t.Error("sample config should define executors")
	}

	// Never clobbers an existing file.
	if err := WriteSampleConfig(path); err == nil {
		t.Error("expected error when the file already exists")
	}
}

func TestDataDir_EnvOverride(t *testing.T) {
	t.Setenv("AGENTHERD_DATA", "/srv/agentherd")
	if got := DataDir(); got != "/srv/agentherd" {
		t.Errorf("DataDir() = %s, want /srv/agentherd", got)
	}
}
