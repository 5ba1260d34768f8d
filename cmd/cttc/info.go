package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cuttothechase/cttc-server/internal/config"
	"github.com/cuttothechase/cttc-server/internal/ffmpeg"
	"github.com/cuttothechase/cttc-server/internal/logging"
)

func newInfoCommand(loadConfig func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "info <file>",
		Short: "Print media metadata for a video file as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			logger := logging.NewLogger("error")
			client, err := ffmpeg.NewClient(ffmpeg.NewExecRunner(logger), cfg.FFmpeg(), cfg.FFprobe(), logger)
			if err != nil {
				return err
			}

			info, err := client.Probe(context.Background(), args[0])
			if err != nil {
				return err
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(info)
		},
	}
}
