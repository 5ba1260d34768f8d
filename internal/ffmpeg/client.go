// Package ffmpeg drives the external ffmpeg/ffprobe tools: container
// probing, keyframe listing, thumbnail and waveform generation, and raw
// process execution for the trim engine.
package ffmpeg

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
)

// Client resolves the ffmpeg/ffprobe binaries once and exposes the probe
// and process capabilities built on them.
type Client struct {
	runner  Runner
	ffmpeg  string
	ffprobe string
	logger  *slog.Logger
}

// NewClient resolves both binaries, preferring the configured paths and
// falling back to PATH lookup.
func NewClient(runner Runner, ffmpegBin, ffprobeBin string, logger *slog.Logger) (*Client, error) {
	ffmpegPath, err := resolveBinary(ffmpegBin, "ffmpeg")
	if err != nil {
		return nil, err
	}
	ffprobePath, err := resolveBinary(ffprobeBin, "ffprobe")
	if err != nil {
		return nil, err
	}

	if logger != nil {
		logger.Info("media toolchain resolved", "ffmpeg", ffmpegPath, "ffprobe", ffprobePath)
	}

	return &Client{
		runner:  runner,
		ffmpeg:  ffmpegPath,
		ffprobe: ffprobePath,
		logger:  logger,
	}, nil
}

// StartFFmpeg launches an ffmpeg invocation and returns its handle without
// waiting. The trim engine registers the handle for cancellation before
// awaiting it.
func (c *Client) StartFFmpeg(ctx context.Context, args ...string) (Handle, error) {
	return c.runner.Start(ctx, c.ffmpeg, args...)
}

// runFFmpeg launches and awaits an ffmpeg invocation.
func (c *Client) runFFmpeg(ctx context.Context, args ...string) (Result, error) {
	h, err := c.StartFFmpeg(ctx, args...)
	if err != nil {
		return Result{}, err
	}
	return h.Wait(), nil
}

// runFFprobe launches and awaits an ffprobe invocation.
func (c *Client) runFFprobe(ctx context.Context, args ...string) (Result, error) {
	h, err := c.runner.Start(ctx, c.ffprobe, args...)
	if err != nil {
		return Result{}, err
	}
	return h.Wait(), nil
}

// resolveBinary finds a usable binary, preferring the configured path.
func resolveBinary(preferred, fallback string) (string, error) {
	if preferred != "" {
		if p, err := exec.LookPath(preferred); err == nil {
			return p, nil
		}
		return "", fmt.Errorf("configured %s binary %q not found", fallback, preferred)
	}
	if p, err := exec.LookPath(fallback); err == nil {
		return p, nil
	}
	return "", fmt.Errorf("no %s binary found on PATH", fallback)
}
