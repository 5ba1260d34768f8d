package ffmpeg

import (
	"bytes"
	"context"
	"log/slog"
	"os/exec"
	"syscall"
	"time"
)

const maxStderrBytes = 8 * 1024 // 8 KB tail of stderr kept for diagnostics

// Result is the structured outcome of an awaited external process.
type Result struct {
	ExitCode   int
	Stdout     []byte
	StderrTail string
	Duration   time.Duration
}

// IsSuccess returns true when the process exited cleanly.
func (r Result) IsSuccess() bool { return r.ExitCode == 0 }

// Handle is a running external process. Wait blocks until exit; Terminate
// requests cooperative shutdown so an in-flight Wait returns.
type Handle interface {
	Wait() Result
	Terminate() error
}

// Runner starts external media tool processes. The single-method contract
// lets the trim engine run against a fake in tests.
type Runner interface {
	Start(ctx context.Context, bin string, args ...string) (Handle, error)
}

// ExecRunner is the production Runner backed by os/exec. Stdout is captured
// in full (probe output is consumed as JSON); stderr keeps only a bounded
// tail for diagnostics.
type ExecRunner struct {
	logger *slog.Logger
}

func NewExecRunner(logger *slog.Logger) *ExecRunner {
	return &ExecRunner{logger: logger}
}

func (r *ExecRunner) Start(ctx context.Context, bin string, args ...string) (Handle, error) {
	cmd := exec.CommandContext(ctx, bin, args...)

	h := &execHandle{cmd: cmd, started: time.Now()}
	cmd.Stdout = &h.stdout
	cmd.Stderr = &limitedWriter{w: &h.stderr, limit: maxStderrBytes}

	if r.logger != nil {
		r.logger.Debug("starting external process", "bin", bin, "args", args)
	}

	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return h, nil
}

type execHandle struct {
	cmd     *exec.Cmd
	stdout  bytes.Buffer
	stderr  bytes.Buffer
	started time.Time
}

func (h *execHandle) Wait() Result {
	err := h.cmd.Wait()

	exitCode := 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
		}
	}

	return Result{
		ExitCode:   exitCode,
		Stdout:     h.stdout.Bytes(),
		StderrTail: h.stderr.String(),
		Duration:   time.Since(h.started),
	}
}

func (h *execHandle) Terminate() error {
	if h.cmd.Process == nil {
		return nil
	}
	if err := h.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		return h.cmd.Process.Kill()
	}
	return nil
}

// limitedWriter is an io.Writer that keeps only the last `limit` bytes.
type limitedWriter struct {
	w     *bytes.Buffer
	limit int
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	lw.w.Write(p)
	if lw.w.Len() > lw.limit {
		// Keep only the tail
		b := lw.w.Bytes()
		lw.w.Reset()
		lw.w.Write(b[len(b)-lw.limit:])
	}
	return n, nil
}
