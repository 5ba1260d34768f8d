package ffmpeg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// defaultFrameRate is assumed when the rational frame rate string from the
// container is malformed or has a zero denominator.
const defaultFrameRate = 30.0

// ErrNoVideoStream is reported when the probed file carries no video stream.
var ErrNoVideoStream = errors.New("no video stream found in file")

// ProbeError wraps any failure to obtain or parse container metadata.
type ProbeError struct {
	Path string
	Err  error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("probe %s: %v", filepath.Base(e.Path), e.Err)
}

func (e *ProbeError) Unwrap() error { return e.Err }

// MediaInfo is the container/stream metadata derived once per job. It is
// read-only to callers.
type MediaInfo struct {
	Path           string  `json:"path"`
	Filename       string  `json:"filename"`
	Duration       float64 `json:"duration"`
	Width          int     `json:"width"`
	Height         int     `json:"height"`
	Codec          string  `json:"codec"`
	AudioCodec     string  `json:"audio_codec,omitempty"`
	Container      string  `json:"container"`
	FileSize       int64   `json:"file_size"`
	Bitrate        int64   `json:"bitrate"`
	FPS            float64 `json:"fps"`
	HasAudio       bool    `json:"has_audio"`
	AudioTracks    int     `json:"audio_tracks"`
	SubtitleTracks int     `json:"subtitle_tracks"`
}

// probePayload mirrors the ffprobe -print_format json output we consume.
type probePayload struct {
	Streams []probeStream `json:"streams"`
	Format  probeFormat   `json:"format"`
}

type probeStream struct {
	CodecType  string `json:"codec_type"`
	CodecName  string `json:"codec_name"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	Duration   string `json:"duration"`
	RFrameRate string `json:"r_frame_rate"`
}

type probeFormat struct {
	Duration string `json:"duration"`
	Size     string `json:"size"`
	BitRate  string `json:"bit_rate"`
}

// Probe runs ffprobe against the source file and parses its structured
// output. All failures surface as *ProbeError.
func (c *Client) Probe(ctx context.Context, path string) (*MediaInfo, error) {
	result, err := c.runFFprobe(ctx,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format", "-show_streams",
		path,
	)
	if err != nil {
		return nil, &ProbeError{Path: path, Err: err}
	}
	if !result.IsSuccess() {
		return nil, &ProbeError{Path: path, Err: fmt.Errorf("ffprobe exited %d: %s", result.ExitCode, strings.TrimSpace(result.StderrTail))}
	}

	info, err := parseMediaInfo(path, result.Stdout)
	if err != nil {
		return nil, &ProbeError{Path: path, Err: err}
	}
	return info, nil
}

// parseMediaInfo decodes ffprobe JSON into MediaInfo. The first video
// stream wins; audio and subtitle streams are counted.
func parseMediaInfo(path string, data []byte) (*MediaInfo, error) {
	var payload probePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("parse ffprobe output: %w", err)
	}

	var video *probeStream
	var audio []probeStream
	subtitles := 0
	for i := range payload.Streams {
		s := payload.Streams[i]
		switch s.CodecType {
		case "video":
			if video == nil {
				video = &payload.Streams[i]
			}
		case "audio":
			audio = append(audio, s)
		case "subtitle":
			subtitles++
		}
	}

	if video == nil {
		return nil, ErrNoVideoStream
	}

	duration := parseFloat(payload.Format.Duration)
	if duration == 0 {
		duration = parseFloat(video.Duration)
	}

	codec := video.CodecName
	if codec == "" {
		codec = "unknown"
	}

	audioCodec := ""
	if len(audio) > 0 {
		audioCodec = audio[0].CodecName
	}

	return &MediaInfo{
		Path:           path,
		Filename:       filepath.Base(path),
		Duration:       duration,
		Width:          video.Width,
		Height:         video.Height,
		Codec:          codec,
		AudioCodec:     audioCodec,
		Container:      strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")),
		FileSize:       int64(parseFloat(payload.Format.Size)),
		Bitrate:        int64(parseFloat(payload.Format.BitRate)),
		FPS:            parseFrameRate(video.RFrameRate),
		HasAudio:       len(audio) > 0,
		AudioTracks:    len(audio),
		SubtitleTracks: subtitles,
	}, nil
}

// parseFrameRate converts a rational "num/den" string to frames per second,
// falling back to the default on malformed or zero-denominator input.
func parseFrameRate(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultFrameRate
	}
	if num, den, found := strings.Cut(s, "/"); found {
		n, errN := strconv.ParseFloat(num, 64)
		d, errD := strconv.ParseFloat(den, 64)
		if errN != nil || errD != nil || d == 0 {
			return defaultFrameRate
		}
		return n / d
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v
	}
	return defaultFrameRate
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}
