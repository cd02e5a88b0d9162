package cli

import (
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
)

var sweepEvery string

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Reconcile all non-terminal tasks",
	Long: `Sweep runs one reconciliation pass: every non-terminal task gets the
staleness check plus a best-effort backend probe, advancing tasks whose
process completed or whose heartbeat went stale. With --every, sweep runs
as a daemon on the given cron-style period (e.g. "1m") until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp()
		if err != nil {
			return err
		}

		runPass := func() {
			results := a.Engine.Sweep(cmd.Context())
			for _, r := range results {
				switch {
				case r.Err != nil:
					fmt.Printf("Task %s: sweep error: %v\n", shortID(r.TaskID), r.Err)
				case r.Transitioned():
					fmt.Printf("Task %s: %s -> %s\n", shortID(r.TaskID), r.From, r.To)
				}
			}
		}

		if sweepEvery == "" {
			runPass()
			return nil
		}

		c := cron.New()
		if _, err := c.AddFunc("@every "+sweepEvery, runPass); err != nil {
			return fmt.Errorf("invalid sweep period %q: %w", sweepEvery, err)
		}
		c.Start()
		defer c.Stop()

		fmt.Printf("Sweeping every %s, ctrl-c to stop\n", sweepEvery)
		<-cmd.Context().Done()
		return nil
	},
}

func init() {
	sweepCmd.Flags().StringVar(&sweepEvery, "every", "", "run continuously on this period (e.g. 1m)")
	rootCmd.AddCommand(sweepCmd)
}
