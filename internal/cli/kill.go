package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var killCmd = &cobra.Command{
	Use:   "kill <task-id>",
	Short: "Terminate a running task",
	Long: `Kill sends a termination signal to the task's backend process and
records the killed state. Killing an already-terminal task is a no-op.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp()
		if err != nil {
			return err
		}

		snap, err := a.Engine.Kill(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("killing task: %w", err)
		}

		fmt.Printf("Task %s is %s\n", snap.Task.ID, snap.Task.Status)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(killCmd)
}
