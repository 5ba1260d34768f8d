package main

import (
	"github.com/spf13/cobra"

	"github.com/cuttothechase/cttc-server/internal/config"
)

func newRootCommand() *cobra.Command {
	var configFlag string

	rootCmd := &cobra.Command{
		Use:           "cttc",
		Short:         "CutToTheChase video trim server",
		Long:          "Web-based video trimming: remove time ranges from a video and produce a new file, with live progress and cancellation.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "configuration file path")

	loadConfig := func() (*config.Config, error) {
		return config.Load(configFlag)
	}

	rootCmd.AddCommand(newServeCommand(loadConfig))
	rootCmd.AddCommand(newInfoCommand(loadConfig))
	rootCmd.AddCommand(newTrimCommand(loadConfig))
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}
