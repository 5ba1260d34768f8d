package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/cuttothechase/cttc-server/internal/config"
	"github.com/cuttothechase/cttc-server/internal/ffmpeg"
	"github.com/cuttothechase/cttc-server/internal/logging"
	"github.com/cuttothechase/cttc-server/internal/timeline"
	"github.com/cuttothechase/cttc-server/internal/trim"
)

func newTrimCommand(loadConfig func() (*config.Config, error)) *cobra.Command {
	var (
		output   string
		mode     string
		removals []string
	)

	cmd := &cobra.Command{
		Use:   "trim <source>",
		Short: "Remove time ranges from a video and write the result",
		Long: `Remove one or more time ranges from a video and write the remainder
to a new file. Ranges are given in seconds as start-end, for example:

  cttc trim input.mp4 -o output.mp4 --remove 2-5 --remove 10-12`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if output == "" {
				return fmt.Errorf("missing --output path")
			}

			ranges, err := parseRemovals(removals)
			if err != nil {
				return err
			}

			trimMode, err := trim.ParseMode(mode)
			if err != nil {
				return err
			}

			logger := logging.NewLogger(cfg.LogLevel())
			client, err := ffmpeg.NewClient(ffmpeg.NewExecRunner(logger), cfg.FFmpeg(), cfg.FFprobe(), logger)
			if err != nil {
				return err
			}
			engine := trim.NewEngine(client, ffmpeg.NewEncoderCache(client, logger), logger)

			jobID := uuid.NewString()

			// Ctrl-C terminates the in-flight ffmpeg process.
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(sigCh)
			go func() {
				<-sigCh
				engine.Cancel(jobID)
			}()

			sink := trim.SinkFunc(func(ev trim.ProgressEvent) {
				fmt.Fprintf(os.Stderr, "[%5.1f%%] %s\n", ev.Progress, ev.Message)
			})

			result, err := engine.Run(context.Background(), jobID, trim.Request{
				Source:   args[0],
				Output:   output,
				Removals: ranges,
				Mode:     trimMode,
			}, sink)
			if err != nil {
				return err
			}

			fmt.Println(result)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file path (required)")
	cmd.Flags().StringVarP(&mode, "mode", "m", "lossless", "cutting mode: lossless or frame_accurate")
	cmd.Flags().StringArrayVarP(&removals, "remove", "r", nil, "time range to remove, in seconds (start-end); repeatable")

	return cmd
}

// parseRemovals converts "start-end" strings into ranges.
func parseRemovals(specs []string) ([]timeline.Range, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("at least one --remove range is required")
	}

	ranges := make([]timeline.Range, 0, len(specs))
	for _, spec := range specs {
		first, second, ok := strings.Cut(spec, "-")
		if !ok {
			return nil, fmt.Errorf("invalid range %q: expected start-end", spec)
		}
		start, err := strconv.ParseFloat(first, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid range start %q", first)
		}
		end, err := strconv.ParseFloat(second, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid range end %q", second)
		}
		if start < 0 || end <= start {
			return nil, fmt.Errorf("invalid range %q: end must be after start", spec)
		}
		ranges = append(ranges, timeline.Range{Start: start, End: end})
	}
	return ranges, nil
}
