// Package history records completed and in-flight trim jobs so clients can
// list past work after reconnecting. It is an audit trail: live progress
// still flows over the job's event stream.
package history

import "time"

// Job is one trim job's persisted record. Status strings match the values
// delivered on the progress stream.
type Job struct {
	ID         string    `json:"id"`
	SourcePath string    `json:"source_path"`
	OutputPath string    `json:"output_path"`
	Mode       string    `json:"mode"`
	Status     string    `json:"status"`
	Progress   float64   `json:"progress"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
