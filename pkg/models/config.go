package models

// ExecutorType identifies the backend kind an executor instance runs on.
type ExecutorType string

const (
	ExecutorSSH       ExecutorType = "ssh"
	ExecutorContainer ExecutorType = "container"
	ExecutorLocal     ExecutorType = "local"
)

// ContainerRuntime selects the container engine the container executor
// shells out to.
type ContainerRuntime string

const (
	RuntimeDocker ContainerRuntime = "docker"
	RuntimePodman ContainerRuntime = "podman"
)

// ExecutorConfig is the immutable record for one configured backend
// instance. Loaded once at process start, read-only afterwards.
type ExecutorConfig struct {
	Name string       `mapstructure:"name" yaml:"name"`
	Type ExecutorType `mapstructure:"type" yaml:"type"`

	// SSH backend parameters.
	Host    string `mapstructure:"host" yaml:"host,omitempty"`
	Port    int    `mapstructure:"port" yaml:"port,omitempty"`
	User    string `mapstructure:"user" yaml:"user,omitempty"`
	KeyPath string `mapstructure:"key_path" yaml:"key_path,omitempty"`

	// Container backend parameters.
	Image   string           `mapstructure:"image" yaml:"image,omitempty"`
	Runtime ContainerRuntime `mapstructure:"runtime" yaml:"runtime,omitempty"`
	Volumes []string         `mapstructure:"volumes" yaml:"volumes,omitempty"`

	Env    map[string]string `mapstructure:"env" yaml:"env,omitempty"`
	Labels []string          `mapstructure:"labels" yaml:"labels,omitempty"`

	// AgentPath overrides the coding-agent binary for this backend.
	AgentPath string `mapstructure:"agent_path" yaml:"agent_path,omitempty"`

	// MaxConcurrent caps simultaneously non-terminal tasks on this
	// executor. Zero means the default limit applies.
	MaxConcurrent int `mapstructure:"max_concurrent" yaml:"max_concurrent,omitempty"`
}

// SSHPort returns the configured port, falling back to 22.
func (c ExecutorConfig) SSHPort() int {
	if c.Port > 0 {
		return c.Port
	}
	return 22
}

// AgentBinary returns the agent binary path, falling back to the given default.
func (c ExecutorConfig) AgentBinary(fallback string) string {
	if c.AgentPath != "" {
		return c.AgentPath
	}
	return fallback
}

// ContainerEngine returns the configured runtime, falling back to docker.
func (c ExecutorConfig) ContainerEngine() ContainerRuntime {
	if c.Runtime == "" {
		return RuntimeDocker
	}
	return c.Runtime
}

// HasLabels reports whether the executor carries every label in want.
func (c ExecutorConfig) HasLabels(want []string) bool {
	for _, w := range want {
		found := false
		for _, l := range c.Labels {
			if l == w {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Defaults holds tunables applied when a task or executor does not specify
// its own value.
type Defaults struct {
	AgentPath         string `mapstructure:"agent_path" yaml:"agent_path"`
	MaxTurns          int    `mapstructure:"max_turns" yaml:"max_turns"`
	HeartbeatInterval int    `mapstructure:"heartbeat_interval" yaml:"heartbeat_interval"`
	StaleFactor       int    `mapstructure:"stale_factor" yaml:"stale_factor"`
	MaxConcurrent     int    `mapstructure:"max_concurrent" yaml:"max_concurrent"`
	WebhookURL        string `mapstructure:"webhook_url" yaml:"webhook_url,omitempty"`
}

// Config is the resolved top-level configuration: the executor fleet plus
// defaults.
type Config struct {
	Executors []ExecutorConfig `mapstructure:"executors" yaml:"executors"`
	Defaults  Defaults         `mapstructure:"defaults" yaml:"defaults"`
}

// FindExecutor returns the executor config with the given name, or nil.
func (c *Config) FindExecutor(name string) *ExecutorConfig {
	for i := range c.Executors {
		if c.Executors[i].Name == name {
			return &c.Executors[i]
		}
	}
	return nil
}

// FindByLabels returns all executors carrying every label in labels.
func (c *Config) FindByLabels(labels []string) []ExecutorConfig {
	var out []ExecutorConfig
	for _, e := range c.Executors {
		if e.HasLabels(labels) {
			out = append(out, e)
		}
	}
	return out
}
