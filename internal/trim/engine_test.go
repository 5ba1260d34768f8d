package trim

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cuttothechase/cttc-server/internal/ffmpeg"
	"github.com/cuttothechase/cttc-server/internal/timeline"
)

// fakeHandle mimics a running ffmpeg process. On Wait it "produces" the
// destination file (the final argument) the way ffmpeg would.
type fakeHandle struct {
	exitCode   int
	stderr     string
	createDest string
	block      chan struct{} // non-nil: Wait blocks until Terminate

	mu         sync.Mutex
	terminated bool
}

func (h *fakeHandle) Wait() ffmpeg.Result {
	if h.block != nil {
		<-h.block
		return ffmpeg.Result{ExitCode: 255, StderrTail: "terminated"}
	}
	if h.exitCode == 0 && h.createDest != "" {
		os.WriteFile(h.createDest, []byte("media"), 0644)
	}
	return ffmpeg.Result{ExitCode: h.exitCode, StderrTail: h.stderr}
}

func (h *fakeHandle) Terminate() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.terminated {
		h.terminated = true
		if h.block != nil {
			close(h.block)
		}
	}
	return nil
}

type fakeTool struct {
	mu       sync.Mutex
	info     *ffmpeg.MediaInfo
	probeErr error
	calls    [][]string
	handleFn func(call int, args []string) ffmpeg.Handle
}

func (t *fakeTool) Probe(ctx context.Context, path string) (*ffmpeg.MediaInfo, error) {
	if t.probeErr != nil {
		return nil, t.probeErr
	}
	return t.info, nil
}

func (t *fakeTool) StartFFmpeg(ctx context.Context, args ...string) (ffmpeg.Handle, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	call := len(t.calls)
	t.calls = append(t.calls, args)
	if t.handleFn != nil {
		return t.handleFn(call, args), nil
	}
	return &fakeHandle{createDest: args[len(args)-1]}, nil
}

func (t *fakeTool) callCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.calls)
}

func (t *fakeTool) call(i int) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls[i]
}

// staticEncoders is a fixed EncoderSelector.
type staticEncoders []string

func (s staticEncoders) VideoArgs(ctx context.Context) []string { return s }

type captureSink struct {
	mu     sync.Mutex
	events []ProgressEvent
}

func (s *captureSink) Emit(ev ProgressEvent) {
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
}

func (s *captureSink) all() []ProgressEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ProgressEvent(nil), s.events...)
}

func newTestEngine(t *testing.T, tool Tool, enc EncoderSelector) *Engine {
	t.Helper()
	e := NewEngine(tool, enc, slog.New(slog.NewTextHandler(io.Discard, nil)))
	e.workBase = t.TempDir()
	return e
}

func TestRun_LosslessSuccess(t *testing.T) {
	tool := &fakeTool{info: &ffmpeg.MediaInfo{Duration: 20}}
	e := newTestEngine(t, tool, staticEncoders{"-c:v", "libx264"})

	output := filepath.Join(t.TempDir(), "out.mp4")
	sink := &captureSink{}

	got, err := e.Run(context.Background(), "job-1", Request{
		Source:   "/media/in.mp4",
		Output:   output,
		Removals: []timeline.Range{{Start: 2, End: 5}, {Start: 4, End: 8}, {Start: 10, End: 12}},
		Mode:     ModeLossless,
	}, sink)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if got != output {
		t.Errorf("Run returned %q, want %q", got, output)
	}

	// 3 keep segments + concat + metadata remux
	if tool.callCount() != 5 {
		t.Fatalf("ffmpeg invoked %d times, want 5", tool.callCount())
	}

	seg0 := strings.Join(tool.call(0), " ")
	for _, want := range []string{"-ss 0 -to 2", "-c copy", "-map 0", "-avoid_negative_ts make_zero"} {
		if !strings.Contains(seg0, want) {
			t.Errorf("segment args missing %q: %s", want, seg0)
		}
	}
	concat := strings.Join(tool.call(3), " ")
	for _, want := range []string{"-f concat -safe 0", "-movflags +faststart", "-c copy"} {
		if !strings.Contains(concat, want) {
			t.Errorf("concat args missing %q: %s", want, concat)
		}
	}
	meta := strings.Join(tool.call(4), " ")
	if !strings.Contains(meta, "-map_metadata 1") || !strings.Contains(meta, "-map_chapters 1") {
		t.Errorf("metadata args wrong: %s", meta)
	}
	// The remux target must keep the output's extension so ffmpeg can
	// infer the muxer, and must live next to the output for the rename.
	metaArgs := tool.call(4)
	metaDest := metaArgs[len(metaArgs)-1]
	if want := filepath.Join(filepath.Dir(output), ".meta_out.mp4"); metaDest != want {
		t.Errorf("metadata remux target = %q, want %q", metaDest, want)
	}

	events := sink.all()
	if len(events) == 0 {
		t.Fatal("no events emitted")
	}
	last := events[len(events)-1]
	if last.Status != StatusCompleted || last.Progress != 100 {
		t.Errorf("terminal event = %+v, want completed/100", last)
	}
	if last.OutputPath != output {
		t.Errorf("terminal output path = %q, want %q", last.OutputPath, output)
	}
	if last.Warning != "" {
		t.Errorf("unexpected warning: %q", last.Warning)
	}
	prev := -1.0
	for _, ev := range events {
		if ev.Progress < prev {
			t.Errorf("progress regressed: %v after %v", ev.Progress, prev)
		}
		prev = ev.Progress
	}
	for _, ev := range events[:len(events)-1] {
		if ev.Status.Terminal() {
			t.Errorf("terminal event %+v before the end of the stream", ev)
		}
	}

	assertWorkspaceGone(t, e)
}

func TestRun_FrameAccurateUsesEncoderArgs(t *testing.T) {
	tool := &fakeTool{info: &ffmpeg.MediaInfo{Duration: 10}}
	e := newTestEngine(t, tool, staticEncoders{"-c:v", "h264_nvenc", "-preset", "p4", "-cq", "18"})

	_, err := e.Run(context.Background(), "job-2", Request{
		Source:   "/media/in.mkv",
		Output:   filepath.Join(t.TempDir(), "out.mkv"),
		Removals: []timeline.Range{{Start: 3, End: 4}},
		Mode:     ModeFrameAccurate,
	}, nil)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}

	seg := strings.Join(tool.call(0), " ")
	if !strings.Contains(seg, "-c:v h264_nvenc") {
		t.Errorf("segment args missing encoder selection: %s", seg)
	}
	if !strings.Contains(seg, "-c:a copy") || !strings.Contains(seg, "-c:s copy") {
		t.Errorf("frame-accurate mode must copy audio and subtitles: %s", seg)
	}
	if strings.Contains(seg, " -c copy ") {
		t.Errorf("frame-accurate mode must not stream-copy everything: %s", seg)
	}
}

func TestRun_AllContentRemoved(t *testing.T) {
	tool := &fakeTool{info: &ffmpeg.MediaInfo{Duration: 10}}
	e := newTestEngine(t, tool, staticEncoders{})
	sink := &captureSink{}

	_, err := e.Run(context.Background(), "job-3", Request{
		Source:   "/media/in.mp4",
		Output:   "/media/out.mp4",
		Removals: []timeline.Range{{Start: 0, End: 10}},
		Mode:     ModeLossless,
	}, sink)
	if !errors.Is(err, timeline.ErrAllContentRemoved) {
		t.Fatalf("expected ErrAllContentRemoved, got %v", err)
	}
	if tool.callCount() != 0 {
		t.Errorf("ffmpeg invoked %d times, want 0 (abort before extraction)", tool.callCount())
	}
	events := sink.all()
	last := events[len(events)-1]
	if last.Status != StatusError || last.Progress != 0 {
		t.Errorf("terminal event = %+v, want error/0", last)
	}
}

func TestRun_ProbeFailure(t *testing.T) {
	probeErr := &ffmpeg.ProbeError{Path: "/media/in.mp4", Err: ffmpeg.ErrNoVideoStream}
	tool := &fakeTool{probeErr: probeErr}
	e := newTestEngine(t, tool, staticEncoders{})
	sink := &captureSink{}

	_, err := e.Run(context.Background(), "job-4", Request{
		Source: "/media/in.mp4",
		Output: "/media/out.mp4",
		Mode:   ModeLossless,
	}, sink)
	if !errors.Is(err, ffmpeg.ErrNoVideoStream) {
		t.Fatalf("expected probe error, got %v", err)
	}
	events := sink.all()
	if events[len(events)-1].Status != StatusError {
		t.Errorf("terminal event = %+v, want error", events[len(events)-1])
	}
}

func TestRun_SegmentFailureAbortsJob(t *testing.T) {
	tool := &fakeTool{info: &ffmpeg.MediaInfo{Duration: 20}}
	tool.handleFn = func(call int, args []string) ffmpeg.Handle {
		if call == 1 {
			return &fakeHandle{exitCode: 1, stderr: "moov atom not found"}
		}
		return &fakeHandle{createDest: args[len(args)-1]}
	}
	e := newTestEngine(t, tool, staticEncoders{})
	sink := &captureSink{}

	_, err := e.Run(context.Background(), "job-5", Request{
		Source:   "/media/in.mp4",
		Output:   "/media/out.mp4",
		Removals: []timeline.Range{{Start: 2, End: 5}, {Start: 10, End: 12}},
		Mode:     ModeLossless,
	}, sink)

	var segErr *SegmentExtractionError
	if !errors.As(err, &segErr) {
		t.Fatalf("expected SegmentExtractionError, got %v", err)
	}
	if segErr.Index != 2 || !strings.Contains(segErr.Stderr, "moov atom") {
		t.Errorf("unexpected error detail: %+v", segErr)
	}
	// Two segment attempts, no concat, no metadata remux.
	if tool.callCount() != 2 {
		t.Errorf("ffmpeg invoked %d times, want 2", tool.callCount())
	}
	last := sink.all()[len(sink.all())-1]
	if last.Status != StatusError || !strings.Contains(last.Message, "segment 2/3") {
		t.Errorf("terminal event = %+v", last)
	}

	assertWorkspaceGone(t, e)
}

func TestRun_ConcatenationFailure(t *testing.T) {
	tool := &fakeTool{info: &ffmpeg.MediaInfo{Duration: 10}}
	tool.handleFn = func(call int, args []string) ffmpeg.Handle {
		if hasArg(args, "concat") {
			return &fakeHandle{exitCode: 1, stderr: "invalid data"}
		}
		return &fakeHandle{createDest: args[len(args)-1]}
	}
	e := newTestEngine(t, tool, staticEncoders{})

	_, err := e.Run(context.Background(), "job-6", Request{
		Source:   "/media/in.mp4",
		Output:   "/media/out.mp4",
		Removals: []timeline.Range{{Start: 1, End: 2}},
		Mode:     ModeLossless,
	}, nil)

	var concatErr *ConcatenationError
	if !errors.As(err, &concatErr) {
		t.Fatalf("expected ConcatenationError, got %v", err)
	}
	assertWorkspaceGone(t, e)
}

func TestRun_MetadataCopyFailureIsNonFatal(t *testing.T) {
	outDir := t.TempDir()
	output := filepath.Join(outDir, "out.mp4")

	tool := &fakeTool{info: &ffmpeg.MediaInfo{Duration: 10}}
	tool.handleFn = func(call int, args []string) ffmpeg.Handle {
		if hasArg(args, "-map_metadata") {
			return &fakeHandle{exitCode: 1, stderr: "unsupported tag"}
		}
		return &fakeHandle{createDest: args[len(args)-1]}
	}
	e := newTestEngine(t, tool, staticEncoders{})
	sink := &captureSink{}

	got, err := e.Run(context.Background(), "job-7", Request{
		Source:   "/media/in.mp4",
		Output:   output,
		Removals: []timeline.Range{{Start: 1, End: 2}},
		Mode:     ModeLossless,
	}, sink)
	if err != nil {
		t.Fatalf("metadata failure must not fail the job: %v", err)
	}
	if got != output {
		t.Errorf("Run returned %q, want %q", got, output)
	}

	// The concatenated output survives untouched.
	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("output missing after metadata failure: %v", err)
	}
	if string(data) != "media" {
		t.Errorf("output content changed: %q", data)
	}
	if _, err := os.Stat(filepath.Join(outDir, ".meta_out.mp4")); !os.IsNotExist(err) {
		t.Error("metadata temp file was not discarded")
	}

	last := sink.all()[len(sink.all())-1]
	if last.Status != StatusCompleted || last.Warning == "" {
		t.Errorf("terminal event = %+v, want completed with warning", last)
	}
}

func TestRun_CancelDuringExtraction(t *testing.T) {
	blocking := &fakeHandle{block: make(chan struct{})}
	started := make(chan struct{})

	tool := &fakeTool{info: &ffmpeg.MediaInfo{Duration: 10}}
	tool.handleFn = func(call int, args []string) ffmpeg.Handle {
		if call == 0 {
			close(started)
			return blocking
		}
		return &fakeHandle{createDest: args[len(args)-1]}
	}
	e := newTestEngine(t, tool, staticEncoders{})
	sink := &captureSink{}

	done := make(chan error, 1)
	go func() {
		_, err := e.Run(context.Background(), "job-8", Request{
			Source:   "/media/in.mp4",
			Output:   "/media/out.mp4",
			Removals: []timeline.Range{{Start: 1, End: 2}},
			Mode:     ModeLossless,
		}, sink)
		done <- err
	}()

	<-started
	// The handle is registered just after Start returns; retry briefly.
	cancelled := false
	for i := 0; i < 1000 && !cancelled; i++ {
		cancelled = e.Cancel("job-8")
		if !cancelled {
			time.Sleep(time.Millisecond)
		}
	}
	if !cancelled {
		t.Fatal("Cancel never saw a live process")
	}

	select {
	case err := <-done:
		if !errors.Is(err, ErrCancelled) {
			t.Fatalf("expected ErrCancelled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("job did not finish after cancellation")
	}

	last := sink.all()[len(sink.all())-1]
	if last.Status != StatusCancelled || last.Progress != 0 {
		t.Errorf("terminal event = %+v, want cancelled/0", last)
	}
	if e.Cancel("job-8") {
		t.Error("Cancel after terminal state must return false")
	}
	assertWorkspaceGone(t, e)
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		input   string
		want    Mode
		wantErr bool
	}{
		{"lossless", ModeLossless, false},
		{"frame_accurate", ModeFrameAccurate, false},
		{"", ModeLossless, false},
		{"fast", "", true},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseMode(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseMode(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestWriteManifest(t *testing.T) {
	dir := t.TempDir()
	path, err := writeManifest(dir, []string{"/tmp/a/seg_0000.mp4", "/tmp/a/seg_0001.mp4"})
	if err != nil {
		t.Fatalf("writeManifest error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	want := "file '/tmp/a/seg_0000.mp4'\nfile '/tmp/a/seg_0001.mp4'\n"
	if string(data) != want {
		t.Errorf("manifest = %q, want %q", data, want)
	}
}

func TestFormatSeconds(t *testing.T) {
	tests := []struct {
		input float64
		want  string
	}{
		{0, "0"},
		{2, "2"},
		{12.5, "12.5"},
		{0.001, "0.001"},
	}
	for _, tt := range tests {
		if got := formatSeconds(tt.input); got != tt.want {
			t.Errorf("formatSeconds(%v) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func hasArg(args []string, want string) bool {
	for _, a := range args {
		if a == want {
			return true
		}
	}
	return false
}

func assertWorkspaceGone(t *testing.T, e *Engine) {
	t.Helper()
	entries, err := os.ReadDir(e.workBase)
	if err != nil {
		t.Fatalf("read work base: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("workspace not cleaned up: %d entries remain", len(entries))
	}
}
