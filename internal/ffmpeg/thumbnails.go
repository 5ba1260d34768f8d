package ffmpeg

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Thumbnails renders up to count evenly spaced timeline thumbnails and
// returns them as base64 JPEG data URIs. ffmpeg warnings are tolerated:
// whatever frames were written are returned.
func (c *Client) Thumbnails(ctx context.Context, path string, count int) ([]string, error) {
	info, err := c.Probe(ctx, path)
	if err != nil {
		return nil, err
	}

	interval := 1.0
	if count > 0 {
		interval = info.Duration / float64(count)
	}
	if interval < 0.5 {
		interval = 0.5
	}

	tmpdir, err := os.MkdirTemp("", "cttc_thumbs_")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(tmpdir)

	result, err := c.runFFmpeg(ctx,
		"-hide_banner", "-loglevel", "warning",
		"-i", path,
		"-vf", fmt.Sprintf("fps=1/%g,scale=160:-1", interval),
		"-q:v", "8",
		"-frames:v", fmt.Sprintf("%d", count),
		filepath.Join(tmpdir, "thumb_%04d.jpg"),
	)
	if err != nil {
		return nil, err
	}
	if !result.IsSuccess() && c.logger != nil {
		c.logger.Warn("thumbnail generation issues", "exit_code", result.ExitCode, "stderr_tail", result.StderrTail)
	}

	entries, err := os.ReadDir(tmpdir)
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	thumbnails := make([]string, 0, len(entries))
	for _, entry := range entries {
		data, err := os.ReadFile(filepath.Join(tmpdir, entry.Name()))
		if err != nil {
			continue
		}
		thumbnails = append(thumbnails, "data:image/jpeg;base64,"+base64.StdEncoding.EncodeToString(data))
	}
	return thumbnails, nil
}
