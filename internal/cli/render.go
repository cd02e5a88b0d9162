package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"agentherd/pkg/models"
)

// taskJSON flattens a task (plus optional probe info) into the structured
// record consumed by dashboards.
func taskJSON(task models.Task, probe models.ProbeState, usage *models.ResourceUsage) map[string]any {
	out := map[string]any{
		"task_id":            task.ID,
		"type":               string(task.Type),
		"executor":           task.ExecutorName,
		"executor_type":      task.ExecutorType,
		"status":             string(task.Status),
		"pid":                task.Handle.PID,
		"workspace":          task.Workspace,
		"started_at":         task.StartedAt.Format(time.RFC3339),
		"updated_at":         task.UpdatedAt.Format(time.RFC3339),
		"heartbeat_interval": task.HeartbeatInterval,
	}
	if task.Prompt != "" {
		out["prompt"] = task.Prompt
	}
	if task.Command != "" {
		out["command"] = task.Command
	}
	if task.FinishedAt != nil {
		out["finished_at"] = task.FinishedAt.Format(time.RFC3339)
	}
	if task.ExitCode != nil {
		out["exit_code"] = *task.ExitCode
	}
	if task.Error != "" {
		out["error"] = task.Error
	}
	if !task.LastHeartbeat.IsZero() {
		out["last_heartbeat"] = task.LastHeartbeat.Format(time.RFC3339)
	}
	if probe != "" && probe != models.ProbeStateNone {
		out["probe_state"] = string(probe)
	}
	if usage != nil {
		out["usage"] = usage
	}
	return out
}

// printJSON pretty-prints v to stdout.
func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding json: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

// printJSONL prints v as a single JSON line.
func printJSONL(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding json: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

// shortID truncates a task id for table display.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
