// Package trim implements the core trim engine: turning removal ranges into
// retained segments and driving ffmpeg through the extract, concatenate,
// and metadata-copy stages of a cancellable, progress-reporting job.
package trim

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cuttothechase/cttc-server/internal/ffmpeg"
	"github.com/cuttothechase/cttc-server/internal/logging"
	"github.com/cuttothechase/cttc-server/internal/timeline"
)

// Mode selects the extraction strategy.
type Mode string

const (
	// ModeLossless stream-copies segments. Fast, but cut points snap to
	// the nearest keyframe at or after the requested start.
	ModeLossless Mode = "lossless"
	// ModeFrameAccurate re-encodes the video stream for exact cuts;
	// audio and subtitles are still copied.
	ModeFrameAccurate Mode = "frame_accurate"
)

// ParseMode validates a mode string, defaulting empty input to lossless.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeLossless, ModeFrameAccurate:
		return Mode(s), nil
	case "":
		return ModeLossless, nil
	default:
		return "", fmt.Errorf("unknown cutting mode %q", s)
	}
}

// Request carries the validated inputs for one trim job. Paths and ranges
// are validated upstream by the transport layer.
type Request struct {
	Source   string
	Output   string
	Removals []timeline.Range
	Mode     Mode
}

// Tool is the external media tool capability the engine drives: probe for
// metadata, process for extraction/concat/remux. *ffmpeg.Client implements
// it; tests substitute a fake.
type Tool interface {
	Probe(ctx context.Context, path string) (*ffmpeg.MediaInfo, error)
	StartFFmpeg(ctx context.Context, args ...string) (ffmpeg.Handle, error)
}

// EncoderSelector supplies the video encoder arguments for frame-accurate
// mode. *ffmpeg.EncoderCache implements it with a once-per-process probe.
type EncoderSelector interface {
	VideoArgs(ctx context.Context) []string
}

// Engine executes trim jobs. It is safe to run jobs concurrently: the only
// shared state is the job registry and the encoder cache.
type Engine struct {
	tool     Tool
	encoders EncoderSelector
	registry *Registry
	logger   *slog.Logger
	workBase string // base dir for per-job workspaces; "" = os.TempDir()
}

func NewEngine(tool Tool, encoders EncoderSelector, logger *slog.Logger) *Engine {
	return &Engine{
		tool:     tool,
		encoders: encoders,
		registry: NewRegistry(),
		logger:   logger,
	}
}

// Cancel terminates the job's currently running external process, if any.
func (e *Engine) Cancel(jobID string) bool {
	return e.registry.Cancel(jobID)
}

// Run executes one trim job to a terminal event: probe, merge, sequential
// segment extraction, concatenation, best-effort metadata copy. The sink
// receives every stage boundary; the returned error mirrors the terminal
// error/cancelled event. Workspace and registry entry are released on every
// exit path.
func (e *Engine) Run(ctx context.Context, jobID string, req Request, sink Sink) (string, error) {
	log := logging.WithJobID(e.logger, jobID)

	e.registry.begin(jobID)
	defer e.registry.end(jobID)

	e.emit(sink, ProgressEvent{JobID: jobID, Status: StatusProcessing, Progress: 0, Message: "Preparing segments..."})

	info, err := e.tool.Probe(ctx, req.Source)
	if err != nil {
		return "", e.fail(ctx, jobID, sink, log, err)
	}

	segments, err := timeline.KeepSegments(info.Duration, req.Removals)
	if err != nil {
		return "", e.fail(ctx, jobID, sink, log, err)
	}
	log.Info("trim job planned",
		"source", logging.SanitizePath(req.Source),
		"duration", info.Duration,
		"segments", len(segments),
		"mode", string(req.Mode),
	)

	workdir, err := os.MkdirTemp(e.workBase, "cttc_trim_")
	if err != nil {
		return "", e.fail(ctx, jobID, sink, log, fmt.Errorf("create workspace: %w", err))
	}
	defer os.RemoveAll(workdir)

	segFiles, err := e.extractSegments(ctx, jobID, req, segments, workdir, sink)
	if err != nil {
		return "", e.fail(ctx, jobID, sink, log, err)
	}

	manifest, err := writeManifest(workdir, segFiles)
	if err != nil {
		return "", e.fail(ctx, jobID, sink, log, err)
	}

	e.emit(sink, ProgressEvent{JobID: jobID, Status: StatusProcessing, Progress: 85, Message: "Concatenating segments..."})

	if err := e.concatenate(ctx, jobID, manifest, req.Output); err != nil {
		return "", e.fail(ctx, jobID, sink, log, err)
	}

	warning := ""
	if err := e.copyMetadata(ctx, req.Source, req.Output); err != nil {
		// Non-fatal: the concatenated output stands as the result.
		log.Warn("metadata copy failed, keeping output without source chapters/tags", "error", err)
		warning = "source chapters and tags could not be preserved"
	}

	e.emit(sink, ProgressEvent{
		JobID:      jobID,
		Status:     StatusCompleted,
		Progress:   100,
		Message:    "Done",
		OutputPath: req.Output,
		Warning:    warning,
	})
	log.Info("trim job completed", "output", logging.SanitizePath(req.Output))
	return req.Output, nil
}

// extractSegments materialises each keep segment as a standalone file,
// strictly sequentially, registering every process for cancellation.
func (e *Engine) extractSegments(ctx context.Context, jobID string, req Request, segments []timeline.Range, workdir string, sink Sink) ([]string, error) {
	var videoArgs []string
	if req.Mode == ModeFrameAccurate {
		videoArgs = e.encoders.VideoArgs(ctx)
	}

	ext := filepath.Ext(req.Source)
	total := len(segments)
	files := make([]string, 0, total)

	for i, seg := range segments {
		segFile := filepath.Join(workdir, fmt.Sprintf("seg_%04d%s", i, ext))

		h, err := e.tool.StartFFmpeg(ctx, segmentArgs(req.Source, segFile, seg, videoArgs)...)
		if err != nil {
			return nil, &SegmentExtractionError{Index: i + 1, Total: total, Stderr: err.Error()}
		}
		e.registry.setProcess(jobID, h)
		result := h.Wait()
		e.registry.clearProcess(jobID)

		if !result.IsSuccess() {
			return nil, &SegmentExtractionError{Index: i + 1, Total: total, Stderr: result.StderrTail}
		}

		files = append(files, segFile)
		e.emit(sink, ProgressEvent{
			JobID:    jobID,
			Status:   StatusProcessing,
			Progress: float64(i+1) / float64(total) * 80,
			Message:  fmt.Sprintf("Segment %d/%d complete", i+1, total),
		})
	}
	return files, nil
}

// segmentArgs builds the ffmpeg invocation for one keep segment. Empty
// videoArgs means lossless stream copy; otherwise the video stream is
// re-encoded and audio/subtitles are copied. Timestamps are normalised so
// every segment starts at zero.
func segmentArgs(source, dest string, seg timeline.Range, videoArgs []string) []string {
	args := []string{
		"-hide_banner", "-loglevel", "warning",
		"-y",
		"-ss", formatSeconds(seg.Start),
		"-to", formatSeconds(seg.End),
		"-i", source,
	}
	if len(videoArgs) == 0 {
		args = append(args, "-c", "copy")
	} else {
		args = append(args, videoArgs...)
		args = append(args, "-c:a", "copy", "-c:s", "copy")
	}
	return append(args, "-map", "0", "-avoid_negative_ts", "make_zero", dest)
}

// writeManifest writes the ordered concat list referencing the segment files.
func writeManifest(workdir string, segFiles []string) (string, error) {
	var b strings.Builder
	for _, f := range segFiles {
		fmt.Fprintf(&b, "file '%s'\n", f)
	}
	path := filepath.Join(workdir, "concat.txt")
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return "", fmt.Errorf("write concat manifest: %w", err)
	}
	return path, nil
}

// concatenate joins the extracted segments with stream copy and fast-start
// index placement.
func (e *Engine) concatenate(ctx context.Context, jobID, manifest, output string) error {
	h, err := e.tool.StartFFmpeg(ctx,
		"-hide_banner", "-loglevel", "warning",
		"-y",
		"-f", "concat", "-safe", "0",
		"-i", manifest,
		"-c", "copy",
		"-map", "0",
		"-movflags", "+faststart",
		output,
	)
	if err != nil {
		return &ConcatenationError{Stderr: err.Error()}
	}
	e.registry.setProcess(jobID, h)
	result := h.Wait()
	e.registry.clearProcess(jobID)

	if !result.IsSuccess() {
		return &ConcatenationError{Stderr: result.StderrTail}
	}
	return nil
}

// copyMetadata remuxes container-level metadata (chapters, tags) from the
// source onto the output. The output is replaced atomically and only on
// success; the caller treats any error as non-fatal.
func (e *Engine) copyMetadata(ctx context.Context, source, output string) error {
	// Same directory as the output so the final rename is atomic. The
	// output's extension is kept so ffmpeg can pick the muxer from it.
	tmp := filepath.Join(filepath.Dir(output), ".meta_"+filepath.Base(output))

	h, err := e.tool.StartFFmpeg(ctx,
		"-hide_banner", "-loglevel", "warning",
		"-y",
		"-i", output,
		"-i", source,
		"-map", "0",
		"-map_metadata", "1",
		"-map_chapters", "1",
		"-c", "copy",
		tmp,
	)
	if err != nil {
		return err
	}
	result := h.Wait()

	if !result.IsSuccess() {
		os.Remove(tmp)
		return fmt.Errorf("metadata remux exited %d: %s", result.ExitCode, strings.TrimSpace(result.StderrTail))
	}
	if _, err := os.Stat(tmp); err != nil {
		return fmt.Errorf("metadata remux produced no file: %w", err)
	}
	return os.Rename(tmp, output)
}

// fail routes a stage error to its terminal event: cancelled when the
// caller terminated the job (registry cancel or context), error otherwise.
func (e *Engine) fail(ctx context.Context, jobID string, sink Sink, log *slog.Logger, err error) error {
	if e.registry.wasCancelled(jobID) || ctx.Err() != nil {
		log.Info("trim job cancelled")
		e.emit(sink, ProgressEvent{JobID: jobID, Status: StatusCancelled, Progress: 0, Message: "Job cancelled"})
		return ErrCancelled
	}

	log.Error("trim job failed", "error", err)
	e.emit(sink, ProgressEvent{JobID: jobID, Status: StatusError, Progress: 0, Message: err.Error()})
	return err
}

func (e *Engine) emit(sink Sink, ev ProgressEvent) {
	if sink != nil {
		sink.Emit(ev)
	}
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
