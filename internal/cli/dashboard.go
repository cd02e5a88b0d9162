package cli

import (
	"time"

	"github.com/spf13/cobra"

	"agentherd/pkg/models"
)

var dashboardWatch int

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Emit task state as JSON lines for dashboard integration",
	Long: `Dashboard emits one JSON line per tracked task for consumption by
external dashboards. By default the current state is emitted once;
--watch N re-emits every N seconds until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp()
		if err != nil {
			return err
		}

		emit := func() error {
			tasks, err := a.Store.List()
			if err != nil {
				return err
			}
			for _, t := range tasks {
				if err := printJSONL(taskJSON(t, models.ProbeStateNone, nil)); err != nil {
					return err
				}
			}
			return nil
		}

		if dashboardWatch <= 0 {
			return emit()
		}

		ticker := time.NewTicker(time.Duration(dashboardWatch) * time.Second)
		defer ticker.Stop()
		for {
			if err := emit(); err != nil {
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
	dashboardCmd.Flags().IntVar(&dashboardWatch, "watch", 0, "re-emit every N seconds")
	rootCmd.AddCommand(dashboardCmd)
}
