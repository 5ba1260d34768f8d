package ffmpeg

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
)

// fakeRunner returns canned results per invocation and records the argv of
// every call.
type fakeRunner struct {
	mu      sync.Mutex
	calls   [][]string
	results []Result
	err     error
}

func (r *fakeRunner) Start(ctx context.Context, bin string, args ...string) (Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	call := len(r.calls)
	r.calls = append(r.calls, append([]string{bin}, args...))
	result := Result{}
	if call < len(r.results) {
		result = r.results[call]
	}
	return cannedHandle{result}, nil
}

func (r *fakeRunner) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

type cannedHandle struct{ result Result }

func (h cannedHandle) Wait() Result     { return h.result }
func (h cannedHandle) Terminate() error { return nil }

func newFakeClient(runner Runner) *Client {
	return &Client{runner: runner, ffmpeg: "ffmpeg", ffprobe: "ffprobe"}
}

func TestResolveBinary(t *testing.T) {
	if _, err := resolveBinary("sh", "ffmpeg"); err != nil {
		t.Errorf("preferred binary on PATH should resolve: %v", err)
	}
	if _, err := resolveBinary("", "sh"); err != nil {
		t.Errorf("fallback binary on PATH should resolve: %v", err)
	}
	if _, err := resolveBinary("definitely-not-a-binary-xyz", "ffmpeg"); err == nil {
		t.Error("missing configured binary must not fall back silently")
	}
}

func TestLimitedWriterKeepsTail(t *testing.T) {
	var buf bytes.Buffer
	lw := &limitedWriter{w: &buf, limit: 10}

	for _, chunk := range []string{"0123456789", "abcdef"} {
		n, err := lw.Write([]byte(chunk))
		if err != nil || n != len(chunk) {
			t.Fatalf("Write(%q) = (%d, %v)", chunk, n, err)
		}
	}
	if got := buf.String(); got != "6789abcdef" {
		t.Errorf("tail = %q, want %q", got, "6789abcdef")
	}
}

func TestLimitedWriterUnderLimit(t *testing.T) {
	var buf bytes.Buffer
	lw := &limitedWriter{w: &buf, limit: 64}
	lw.Write([]byte("short"))
	if got := buf.String(); got != "short" {
		t.Errorf("buffer = %q, want %q", got, "short")
	}
}

func TestEncoderCacheProbesOnce(t *testing.T) {
	runner := &fakeRunner{results: []Result{
		{ExitCode: 0, Stdout: []byte("V..... h264_nvenc  NVIDIA NVENC H.264 encoder")},
	}}
	cache := NewEncoderCache(newFakeClient(runner), nil)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if !cache.HardwareAvailable(ctx) {
			t.Fatal("nvenc listed by ffmpeg but not detected")
		}
	}
	if runner.callCount() != 1 {
		t.Errorf("encoder probe ran %d times, want 1", runner.callCount())
	}

	args := cache.VideoArgs(ctx)
	if strings.Join(args, " ") != "-c:v h264_nvenc -preset p4 -cq 18" {
		t.Errorf("hardware VideoArgs = %v", args)
	}
}

func TestEncoderCacheSoftwareFallback(t *testing.T) {
	tests := []struct {
		name   string
		runner *fakeRunner
	}{
		{"nvenc absent", &fakeRunner{results: []Result{{ExitCode: 0, Stdout: []byte("V..... libx264")}}}},
		{"probe fails", &fakeRunner{results: []Result{{ExitCode: 1, StderrTail: "boom"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cache := NewEncoderCache(newFakeClient(tt.runner), nil)
			ctx := context.Background()

			if cache.HardwareAvailable(ctx) {
				t.Error("hardware reported available")
			}
			args := cache.VideoArgs(ctx)
			if strings.Join(args, " ") != "-c:v libx264 -preset fast -crf 18" {
				t.Errorf("software VideoArgs = %v", args)
			}
			// Failed probes are memoized too, never retried.
			if tt.runner.callCount() != 1 {
				t.Errorf("encoder probe ran %d times, want 1", tt.runner.callCount())
			}
		})
	}
}
