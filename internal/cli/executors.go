package cli

import (
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var executorsJSON bool

var executorsCmd = &cobra.Command{
	Use:   "executors",
	Short: "List configured executors",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp()
		if err != nil {
			return err
		}

		if executorsJSON {
			return printJSON(a.Config.Executors)
		}

		tw := table.NewWriter()
		tw.SetOutputMirror(os.Stdout)
		tw.AppendHeader(table.Row{"Name", "Type", "Target", "Limit", "Labels"})
		for _, e := range a.Config.Executors {
			target := ""
			switch {
			case e.Host != "":
				target = e.User + "@" + e.Host
			case e.Image != "":
				target = e.Image
			default:
				target = "localhost"
			}
			limit := e.MaxConcurrent
			if limit == 0 {
				limit = a.Config.Defaults.MaxConcurrent
			}
			tw.AppendRow(table.Row{e.Name, e.Type, target, limit, strings.Join(e.Labels, ",")})
		}
		tw.Render()
		return nil
	},
}

func init() {
	executorsCmd.Flags().BoolVar(&executorsJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(executorsCmd)
}
