package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"agentherd/internal/core"
	"agentherd/internal/storage"
	"agentherd/pkg/models"
)

var heartbeatInterval int

// resolveHeartbeatInterval picks the interval to record: the explicit flag,
// else the fleet's configured default, else the built-in default. The
// recorded interval feeds the staleness window, so it must match what the
// tracker expects.
func resolveHeartbeatInterval(flagValue int, cfg *models.Config) int {
	if flagValue > 0 {
		return flagValue
	}
	if cfg != nil && cfg.Defaults.HeartbeatInterval > 0 {
		return cfg.Defaults.HeartbeatInterval
	}
	return core.DefaultHeartbeatInterval
}

var heartbeatCmd = &cobra.Command{
	Use:   "heartbeat <task-id>",
	Short: "Record a liveness heartbeat for a running task",
	Long: `Heartbeat writes a liveness record to the task's heartbeat channel.
It is invoked periodically by the task's execution environment, independent
of the primary output channel, so the tracker can detect tasks that died
silently.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp()
		if err != nil {
			return err
		}

		rec := storage.HeartbeatRecord{
			TaskID:          args[0],
			At:              time.Now().UTC(),
			IntervalSeconds: resolveHeartbeatInterval(heartbeatInterval, a.Config),
		}
		if err := a.Heartbeats.Write(rec); err != nil {
			return fmt.Errorf("recording heartbeat: %w", err)
		}
		return nil
	},
}

func init() {
	heartbeatCmd.Flags().IntVar(&heartbeatInterval, "interval", 0,
		"interval in seconds the environment promises to heartbeat at (default: config defaults.heartbeat_interval)")
	rootCmd.AddCommand(heartbeatCmd)
}
