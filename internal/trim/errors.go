package trim

import (
	"errors"
	"fmt"
	"strings"
)

// ErrCancelled is reported when a job was terminated by the caller.
var ErrCancelled = errors.New("trim job cancelled")

// SegmentExtractionError is a per-segment ffmpeg failure. It aborts the
// whole job and carries the captured diagnostic stream.
type SegmentExtractionError struct {
	Index  int // 1-based
	Total  int
	Stderr string
}

func (e *SegmentExtractionError) Error() string {
	msg := fmt.Sprintf("segment %d/%d extraction failed", e.Index, e.Total)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + s
	}
	return msg
}

// ConcatenationError is a failure joining the extracted segments.
type ConcatenationError struct {
	Stderr string
}

func (e *ConcatenationError) Error() string {
	msg := "segment concatenation failed"
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + s
	}
	return msg
}
