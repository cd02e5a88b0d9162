package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"agentherd/pkg/models"
)

// CompletionRecord is the durable one-shot summary of a task's terminal
// outcome, written alongside the metadata record so the result survives
// cleanup of the live tracking state.
type CompletionRecord struct {
	TaskID     string            `yaml:"task_id"`
	Executor   string            `yaml:"executor"`
	Status     models.TaskStatus `yaml:"status"`
	ExitCode   *int              `yaml:"exit_code,omitempty"`
	Error      string            `yaml:"error,omitempty"`
	FinishedAt time.Time         `yaml:"finished_at"`
}

// CompletionStore persists one completion record per task. Record is
// idempotent: the first terminal outcome wins and later writes for the same
// task are ignored.
type CompletionStore interface {
	Record(rec CompletionRecord) error
	Read(taskID string) (*CompletionRecord, error)
	Remove(taskID string) error
}

type fileCompletionStore struct {
	basePath string
}

// NewCompletionStore creates a CompletionStore backed by one YAML file per
// task under completions/ in the given base directory.
func NewCompletionStore(basePath string) CompletionStore {
	return &fileCompletionStore{basePath: basePath}
}

func (s *fileCompletionStore) completionsDir() string {
	return filepath.Join(s.basePath, "completions")
}

func (s *fileCompletionStore) recordPath(taskID string) string {
	return filepath.Join(s.completionsDir(), taskID+".yaml")
}

// Record writes the completion record unless one already exists. A task
// reaches a terminal state exactly once; an existing record means this is a
// replayed finalization and is silently skipped.
func (s *fileCompletionStore) Record(rec CompletionRecord) error {
	if rec.TaskID == "" {
		return fmt.Errorf("recording completion: task id must not be empty")
	}
	if _, err := os.Stat(s.recordPath(rec.TaskID)); err == nil {
		return nil
	}

	if err := os.MkdirAll(s.completionsDir(), 0o755); err != nil {
		return fmt.Errorf("recording completion for %s: creating directory: %w", rec.TaskID, err)
	}

	data, err := yaml.Marshal(rec)
	if err != nil {
		return fmt.Errorf("recording completion for %s: marshaling: %w", rec.TaskID, err)
	}

	tmp, err := os.CreateTemp(s.completionsDir(), "."+rec.TaskID+".tmp-*")
	if err != nil {
		return fmt.Errorf("recording completion for %s: creating temp file: %w", rec.TaskID, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("recording completion for %s: %w", rec.TaskID, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("recording completion for %s: closing temp file: %w", rec.TaskID, err)
	}

	if err := os.Rename(tmpName, s.recordPath(rec.TaskID)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("recording completion for %s: renaming into place: %w", rec.TaskID, err)
	}
	return nil
}

// Read returns the completion record for a task, or nil if none exists.
func (s *fileCompletionStore) Read(taskID string) (*CompletionRecord, error) {
	data, err := os.ReadFile(s.recordPath(taskID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading completion for %s: %w", taskID, err)
	}

	var rec CompletionRecord
	if err := yaml.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parsing completion for %s: %w", taskID, err)
	}
	return &rec, nil
}

// Remove deletes the completion record for a task. An absent record is
// treated as success.
func (s *fileCompletionStore) Remove(taskID string) error {
	if err := os.Remove(s.recordPath(taskID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing completion for %s: %w", taskID, err)
	}
	return nil
}
