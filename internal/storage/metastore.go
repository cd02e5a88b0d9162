// Package storage provides the file-backed metadata store, the heartbeat
// side channel, and the completion record store. Each persists one small
// YAML artifact per task under the agentherd data directory.
package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"agentherd/pkg/models"
)

// ErrTaskNotFound is returned when no metadata record exists for a task id.
var ErrTaskNotFound = errors.New("task not found")

// MetadataStore is the single source of truth for task records. Each
// operation is atomic at per-record granularity.
type MetadataStore interface {
	Get(taskID string) (*models.Task, error)
	Put(task *models.Task) error
	Delete(taskID string) error
	List() ([]models.Task, error)
}

type fileMetadataStore struct {
	basePath string
}

// NewMetadataStore creates a MetadataStore backed by one YAML file per task
// under tasks/ in the given base directory.
func NewMetadataStore(basePath string) MetadataStore {
	return &fileMetadataStore{basePath: basePath}
}

func (s *fileMetadataStore) tasksDir() string {
	return filepath.Join(s.basePath, "tasks")
}

func (s *fileMetadataStore) taskPath(taskID string) string {
	return filepath.Join(s.tasksDir(), taskID+".meta.yaml")
}

// Get reads a single task record by id.
func (s *fileMetadataStore) Get(taskID string) (*models.Task, error) {
	data, err := os.ReadFile(s.taskPath(taskID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
		}
		return nil, fmt.Errorf("reading task %s: %w", taskID, err)
	}

	var task models.Task
	if err := yaml.Unmarshal(data, &task); err != nil {
		return nil, fmt.Errorf("parsing task %s: %w", taskID, err)
	}
	return &task, nil
}

// Put writes a task record atomically: marshal to a temp file in the same
// directory, then rename over the destination. A reader never observes a
// partially written record.
func (s *fileMetadataStore) Put(task *models.Task) error {
	if task == nil || task.ID == "" {
		return fmt.Errorf("putting task: id must not be empty")
	}

	if err := os.MkdirAll(s.tasksDir(), 0o755); err != nil {
		return fmt.Errorf("putting task %s: creating directory: %w", task.ID, err)
	}

	data, err := yaml.Marshal(task)
	if err != nil {
		return fmt.Errorf("putting task %s: marshaling: %w", task.ID, err)
	}

	tmp, err := os.CreateTemp(s.tasksDir(), "."+task.ID+".tmp-*")
	if err != nil {
		return fmt.Errorf("putting task %s: creating temp file: %w", task.ID, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("putting task %s: writing temp file: %w", task.ID, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("putting task %s: closing temp file: %w", task.ID, err)
	}

	if err := os.Rename(tmpName, s.taskPath(task.ID)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("putting task %s: renaming into place: %w", task.ID, err)
	}
	return nil
}

// Delete removes a task record. Deleting an absent record is an error so
// callers can distinguish a retry from a double delete.
func (s *fileMetadataStore) Delete(taskID string) error {
	if err := os.Remove(s.taskPath(taskID)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
		}
		return fmt.Errorf("deleting task %s: %w", taskID, err)
	}
	return nil
}

// List returns all task records, newest started first. Malformed records
// are skipped rather than failing the whole listing.
func (s *fileMetadataStore) List() ([]models.Task, error) {
	entries, err := os.ReadDir(s.tasksDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing tasks: %w", err)
	}

	var tasks []models.Task
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".meta.yaml") || strings.HasPrefix(name, ".") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.tasksDir(), name))
		if err != nil {
			continue
		}
		var task models.Task
		if err := yaml.Unmarshal(data, &task); err != nil {
			continue
		}
		tasks = append(tasks, task)
	}

	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].StartedAt.After(tasks[j].StartedAt)
	})
	return tasks, nil
}
