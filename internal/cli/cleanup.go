package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup <task-id>",
	Short: "Remove a terminal task's artifacts and metadata",
	Long: `Cleanup removes the task's backend-side artifacts (remote directories,
containers) and then deletes its metadata record. Only terminal tasks can be
cleaned up; kill the task first. Safe to re-invoke after a partial failure.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp()
		if err != nil {
			return err
		}

		if err := a.Engine.Cleanup(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("cleaning up task: %w", err)
		}

		fmt.Printf("Task %s cleaned up\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cleanupCmd)
}
