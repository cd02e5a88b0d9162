package cli

import (
	"os"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"agentherd/pkg/models"
)

var listFlags struct {
	json     bool
	jsonl    bool
	status   string
	executor string
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all tracked tasks",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp()
		if err != nil {
			return err
		}

		tasks, err := a.Store.List()
		if err != nil {
			return err
		}

		var filtered []models.Task
		for _, t := range tasks {
			if listFlags.status != "" && string(t.Status) != listFlags.status {
				continue
			}
			if listFlags.executor != "" && t.ExecutorName != listFlags.executor {
				continue
			}
			filtered = append(filtered, t)
		}

		if listFlags.jsonl {
			for _, t := range filtered {
				if err := printJSONL(taskJSON(t, models.ProbeStateNone, nil)); err != nil {
					return err
				}
			}
			return nil
		}
		if listFlags.json {
			rows := make([]map[string]any, 0, len(filtered))
			for _, t := range filtered {
				rows = append(rows, taskJSON(t, models.ProbeStateNone, nil))
			}
			return printJSON(rows)
		}

		tw := table.NewWriter()
		tw.SetOutputMirror(os.Stdout)
		tw.AppendHeader(table.Row{"ID", "Type", "Executor", "Status", "Started", "Exit"})
		for _, t := range filtered {
			exit := ""
			if t.ExitCode != nil {
				exit = strconv.Itoa(*t.ExitCode)
			}
			tw.AppendRow(table.Row{
				shortID(t.ID), t.Type, t.ExecutorName, t.Status,
				t.StartedAt.Format(time.RFC3339), exit,
			})
		}
		tw.Render()
		return nil
	},
}

func init() {
	listCmd.Flags().BoolVar(&listFlags.json, "json", false, "output as JSON")
	listCmd.Flags().BoolVar(&listFlags.jsonl, "jsonl", false, "output as JSON lines")
	listCmd.Flags().StringVar(&listFlags.status, "status", "", "filter by status")
	listCmd.Flags().StringVar(&listFlags.executor, "executor", "", "filter by executor name")
	rootCmd.AddCommand(listCmd)
}
