package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"agentherd/internal/core"
)

var configInit bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or initialize the config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath
		if path == "" {
			path = core.DefaultConfigPath()
		}

		if configInit {
			if err := core.WriteSampleConfig(path); err != nil {
				return err
			}
			fmt.Printf("Wrote sample config to %s\n", path)
			return nil
		}

		fmt.Println(path)
		return nil
	},
}

func init() {
	configCmd.Flags().BoolVar(&configInit, "init", false, "write a sample config file")
	rootCmd.AddCommand(configCmd)
}
