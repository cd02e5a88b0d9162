package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// HeartbeatRecord is the small liveness artifact a running task's
// environment writes periodically, independent of the primary execution
// channel.
type HeartbeatRecord struct {
	TaskID          string    `yaml:"task_id"`
	At              time.Time `yaml:"at"`
	IntervalSeconds int       `yaml:"interval_seconds"`
}

// HeartbeatChannel is the side channel the lifecycle engine reads to judge
// liveness. A nil record from Read means "no data yet", which is distinct
// from stale.
type HeartbeatChannel interface {
	Read(taskID string) (*HeartbeatRecord, error)
	Write(rec HeartbeatRecord) error
	Remove(taskID string) error
}

type fileHeartbeatChannel struct {
	basePath string
}

// NewHeartbeatChannel creates a HeartbeatChannel backed by one YAML file per
// task under heartbeats/ in the given base directory.
func NewHeartbeatChannel(basePath string) HeartbeatChannel {
	return &fileHeartbeatChannel{basePath: basePath}
}

func (c *fileHeartbeatChannel) heartbeatsDir() string {
	return filepath.Join(c.basePath, "heartbeats")
}

func (c *fileHeartbeatChannel) recordPath(taskID string) string {
	return filepath.Join(c.heartbeatsDir(), taskID+".yaml")
}

// Read returns the latest heartbeat record for a task, or nil if none has
// been written yet.
func (c *fileHeartbeatChannel) Read(taskID string) (*HeartbeatRecord, error) {
	data, err := os.ReadFile(c.recordPath(taskID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading heartbeat for %s: %w", taskID, err)
	}

	var rec HeartbeatRecord
	if err := yaml.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parsing heartbeat for %s: %w", taskID, err)
	}
	return &rec, nil
}

// Write replaces the heartbeat record for a task. Written via temp file +
// rename so the engine never reads a torn record.
func (c *fileHeartbeatChannel) Write(rec HeartbeatRecord) error {
	if rec.TaskID == "" {
		return fmt.Errorf("writing heartbeat: task id must not be empty")
	}

	if err := os.MkdirAll(c.heartbeatsDir(), 0o755); err != nil {
		return fmt.Errorf("writing heartbeat for %s: creating directory: %w", rec.TaskID, err)
	}

	data, err := yaml.Marshal(rec)
	if err != nil {
		return fmt.Errorf("writing heartbeat for %s: marshaling: %w", rec.TaskID, err)
	}

	tmp, err := os.CreateTemp(c.heartbeatsDir(), "."+rec.TaskID+".tmp-*")
	if err != nil {
		return fmt.Errorf("writing heartbeat for %s: creating temp file: %w", rec.TaskID, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing heartbeat for %s: %w", rec.TaskID, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("writing heartbeat for %s: closing temp file: %w", rec.TaskID, err)
	}

	if err := os.Rename(tmpName, c.recordPath(rec.TaskID)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("writing heartbeat for %s: renaming into place: %w", rec.TaskID, err)
	}
	return nil
}

// Remove deletes the heartbeat record for a task. An absent record is
// treated as success.
func (c *fileHeartbeatChannel) Remove(taskID string) error {
	if err := os.Remove(c.recordPath(taskID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing heartbeat for %s: %w", taskID, err)
	}
	return nil
}
