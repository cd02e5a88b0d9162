package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"agentherd/internal/core"
	"agentherd/pkg/models"
)

var startFlags struct {
	executor     string
	prompt       string
	command      string
	workspace    string
	maxTurns     int
	allowedTools []string
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a new task on a configured executor",
	Long: `Start dispatches a coding-agent invocation (--prompt) or a raw shell
command (--command) to the named executor and prints the assigned task ID.
The task runs detached on the backend and is tracked through its lifecycle.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if (startFlags.prompt == "") == (startFlags.command == "") {
			return fmt.Errorf("exactly one of --prompt or --command is required")
		}

		a, err := getApp()
		if err != nil {
			return err
		}

		req := core.StartRequest{
			ExecutorName: startFlags.executor,
			Workspace:    startFlags.workspace,
			MaxTurns:     startFlags.maxTurns,
			AllowedTools: startFlags.allowedTools,
		}
		if startFlags.prompt != "" {
			req.Type = models.TaskTypeAgent
			req.Prompt = startFlags.prompt
		} else {
			req.Type = models.TaskTypeShell
			req.Command = startFlags.command
		}

		taskID, err := a.Engine.Start(cmd.Context(), req)
		if err != nil {
			return fmt.Errorf("starting task: %w", err)
		}

		fmt.Printf("Task %s started on %s\n", taskID, startFlags.executor)
		return nil
	},
}

func init() {
	startCmd.Flags().StringVarP(&startFlags.executor, "executor", "e", "", "executor name (from config)")
	startCmd.Flags().StringVarP(&startFlags.prompt, "prompt", "p", "", "coding-agent prompt")
	startCmd.Flags().StringVarP(&startFlags.command, "command", "x", "", "raw shell command")
	startCmd.Flags().StringVarP(&startFlags.workspace, "workspace", "w", "", "workspace directory on the backend")
	startCmd.Flags().IntVar(&startFlags.maxTurns, "max-turns", 0, "maximum agent turns")
	startCmd.Flags().StringSliceVar(&startFlags.allowedTools, "allowed-tools", nil, "allowed agent tools (repeatable)")
	_ = startCmd.MarkFlagRequired("executor")
	rootCmd.AddCommand(startCmd)
}
