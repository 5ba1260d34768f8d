package ffmpeg

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
)

// Video encoder selections for frame-accurate extraction.
const (
	EncoderNVENC    = "h264_nvenc"
	EncoderSoftware = "libx264"
)

// EncoderCache performs the hardware-capability probe at most once per
// process lifetime and memoizes the answer. Safe for concurrent jobs.
type EncoderCache struct {
	client *Client
	logger *slog.Logger

	mu          sync.Mutex
	probed      bool
	hwAvailable bool
}

func NewEncoderCache(client *Client, logger *slog.Logger) *EncoderCache {
	return &EncoderCache{client: client, logger: logger}
}

// HardwareAvailable reports whether GPU-accelerated H.264 encoding is
// offered by the installed ffmpeg build. Probe failures count as no.
func (e *EncoderCache) HardwareAvailable(ctx context.Context) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.probed {
		return e.hwAvailable
	}
	e.probed = true

	result, err := e.client.runFFmpeg(ctx, "-hide_banner", "-encoders")
	if err == nil && result.IsSuccess() {
		e.hwAvailable = bytes.Contains(result.Stdout, []byte(EncoderNVENC))
	}

	if e.logger != nil {
		e.logger.Info("hardware encoder probe complete", "nvenc", e.hwAvailable)
	}
	return e.hwAvailable
}

// VideoArgs returns the ffmpeg video-encoder arguments for frame-accurate
// extraction: NVENC when available, the software encoder otherwise.
func (e *EncoderCache) VideoArgs(ctx context.Context) []string {
	if e.HardwareAvailable(ctx) {
		return []string{"-c:v", EncoderNVENC, "-preset", "p4", "-cq", "18"}
	}
	return []string{"-c:v", EncoderSoftware, "-preset", "fast", "-crf", "18"}
}
