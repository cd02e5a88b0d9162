package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var logsFlags struct {
	lines  int
	follow int
}

var logsCmd = &cobra.Command{
	Use:   "logs <task-id>",
	Short: "Fetch recent output from a task",
	Long: `Logs fetches the most recent output records from the task's backend.
With --follow, the fetch repeats every N seconds until interrupted; each
fetch is an independent idempotent read, not a stream cursor.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp()
		if err != nil {
			return err
		}

		printOnce := func() error {
			records, err := a.Engine.FetchOutput(cmd.Context(), args[0], logsFlags.lines)
			if err != nil {
				return fmt.Errorf("fetching logs: %w", err)
			}
			for _, rec := range records {
				fmt.Println(rec.Text)
			}
			return nil
		}

		if logsFlags.follow <= 0 {
			return printOnce()
		}

		ticker := time.NewTicker(time.Duration(logsFlags.follow) * time.Second)
		defer ticker.Stop()
		for {
			if err := printOnce(); err != nil {
				return err
			}
			select {
			case <-cmd.Context().Done():
				return nil
			case <-ticker.C:
			}
		}
	},
}

func init() {
	logsCmd.Flags().IntVarP(&logsFlags.lines, "lines", "n", 50, "number of lines to fetch")
	logsCmd.Flags().IntVarP(&logsFlags.follow, "follow", "f", 0, "poll every N seconds")
	rootCmd.AddCommand(logsCmd)
}
