// Package cli implements the agentherd command-line surface: a thin
// presentation layer over the lifecycle engine's public contract.
package cli

import (
	"fmt"
	"sync"

	"github.com/spf13/cobra"

	app "agentherd/internal"
)

var (
	appVersion = "dev"
	appCommit  = "none"
	appDate    = "unknown"
)

// SetVersionInfo sets the version information injected via ldflags.
func SetVersionInfo(version, commit, date string) {
	appVersion = version
	appCommit = commit
	appDate = date
}

var configPath string

var rootCmd = &cobra.Command{
	Use:   "agentherd",
	Short: "Dispatch and track asynchronous coding-agent tasks",
	Long: `agentherd dispatches long-running coding-agent tasks to pluggable
execution backends (remote hosts over SSH, containers, local processes),
tracks each task through a persisted lifecycle, and detects tasks that
died silently using an independent heartbeat channel.`,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("agentherd %s\ncommit: %s\nbuilt:  %s\n", appVersion, appCommit, appDate)
	},
}

var (
	appOnce     sync.Once
	appInstance *app.App
	appErr      error
)

// getApp lazily wires the application so commands that do not need the
// engine (version, config --path) work without a valid config file.
func getApp() (*app.App, error) {
	appOnce.Do(func() {
		appInstance, appErr = app.NewApp(configPath)
	})
	return appInstance, appErr
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"path to config file (default: user config dir)")
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
