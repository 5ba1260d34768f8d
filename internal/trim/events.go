package trim

// Status is a job lifecycle state. Jobs move from processing to exactly one
// terminal state; no events follow a terminal one.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
	StatusCancelled  Status = "cancelled"
)

// Terminal reports whether the status ends the job lifecycle.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError || s == StatusCancelled
}

// ProgressEvent is delivered to the job's subscriber at stage boundaries.
type ProgressEvent struct {
	JobID      string  `json:"job_id"`
	Status     Status  `json:"status"`
	Progress   float64 `json:"progress"`
	Message    string  `json:"message"`
	OutputPath string  `json:"output_path,omitempty"`
	Warning    string  `json:"warning,omitempty"`
}

// Sink accepts progress events for one job. Implementations must swallow
// delivery failures: a disconnected subscriber never interrupts the job.
type Sink interface {
	Emit(ev ProgressEvent)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ProgressEvent)

func (f SinkFunc) Emit(ev ProgressEvent) { f(ev) }
