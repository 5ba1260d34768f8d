package ffmpeg

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Keyframes lists the keyframe timestamps of the first video stream, used
// by clients as cut-point hints for lossless mode.
func (c *Client) Keyframes(ctx context.Context, path string) ([]float64, error) {
	result, err := c.runFFprobe(ctx,
		"-v", "quiet",
		"-select_streams", "v:0",
		"-show_entries", "packet=pts_time,flags",
		"-of", "csv=print_section=0",
		path,
	)
	if err != nil {
		return nil, err
	}
	if !result.IsSuccess() {
		return nil, fmt.Errorf("ffprobe exited %d: %s", result.ExitCode, strings.TrimSpace(result.StderrTail))
	}
	return parseKeyframes(result.Stdout), nil
}

// parseKeyframes extracts pts_time values for packets flagged as keyframes
// from csv "pts_time,flags" lines. Unparseable lines are skipped.
func parseKeyframes(data []byte) []float64 {
	var keyframes []float64
	for _, line := range strings.Split(string(data), "\n") {
		parts := strings.Split(strings.TrimSpace(line), ",")
		if len(parts) < 2 || !strings.Contains(parts[1], "K") {
			continue
		}
		ts, err := strconv.ParseFloat(parts[0], 64)
		if err != nil {
			continue
		}
		keyframes = append(keyframes, ts)
	}
	return keyframes
}
