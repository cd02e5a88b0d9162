package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"agentherd/pkg/models"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status <task-id>",
	Short: "Show the current state of a task",
	Long: `Status performs a live probe of the task's backend merged with the
latest heartbeat read. Terminal tasks are returned from the metadata store
unchanged.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp()
		if err != nil {
			return err
		}

		snap, err := a.Engine.Status(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("checking status: %w", err)
		}

		if statusJSON {
			return printJSON(taskJSON(snap.Task, snap.ProbeState, snap.Usage))
		}

		task := snap.Task
		fmt.Printf("Task:     %s\n", task.ID)
		fmt.Printf("Executor: %s (%s)\n", task.ExecutorName, task.ExecutorType)
		fmt.Printf("Status:   %s\n", task.Status)
		if snap.ProbeState == models.ProbeStateUnknown {
			fmt.Println("Probe:    unknown (backend unreachable)")
		}
		if task.Handle.PID > 0 {
			fmt.Printf("PID:      %d\n", task.Handle.PID)
		}
		if task.ExitCode != nil {
			fmt.Printf("Exit:     %d\n", *task.ExitCode)
		}
		if task.Error != "" {
			fmt.Printf("Error:    %s\n", task.Error)
		}
		if snap.Usage != nil {
			fmt.Printf("Usage:    %.1f%% cpu, %d KB rss\n", snap.Usage.CPUPercent, snap.Usage.RSSKB)
		}
		if !task.LastHeartbeat.IsZero() {
			fmt.Printf("Heartbeat: %s\n", task.LastHeartbeat.Format("2006-01-02 15:04:05 MST"))
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(statusCmd)
}
