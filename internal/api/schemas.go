package api

import (
	"time"

	"github.com/cuttothechase/cttc-server/internal/history"
	"github.com/cuttothechase/cttc-server/internal/timeline"
)

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	App     string `json:"app"`
	Version string `json:"version"`
	UptimeS int64  `json:"uptime_s"`
}

// TrimRequest is the payload for both POST /api/process/trim (validation)
// and the first WebSocket message (execution). Removal ranges may carry a
// client-side id field, which is ignored.
type TrimRequest struct {
	SourcePath    string           `json:"source_path"`
	OutputPath    string           `json:"output_path"`
	RemovalRanges []timeline.Range `json:"removal_ranges"`
	CuttingMode   string           `json:"cutting_mode"`
	Overwrite     bool             `json:"overwrite"`
}

type TrimReadyResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type CancelResponse struct {
	Status string `json:"status"`
	JobID  string `json:"job_id"`
}

type ThumbnailsResponse struct {
	Thumbnails []string `json:"thumbnails"`
	Count      int      `json:"count"`
}

type WaveformResponse struct {
	Waveform []float64 `json:"waveform"`
	Samples  int       `json:"samples"`
}

type KeyframesResponse struct {
	Keyframes []float64 `json:"keyframes"`
	Count     int       `json:"count"`
}

type JobResponse struct {
	ID         string  `json:"id"`
	SourcePath string  `json:"source_path"`
	OutputPath string  `json:"output_path"`
	Mode       string  `json:"mode"`
	Status     string  `json:"status"`
	Progress   float64 `json:"progress"`
	Error      string  `json:"error,omitempty"`
	CreatedAt  string  `json:"created_at"`
	UpdatedAt  string  `json:"updated_at"`
}

type JobsResponse struct {
	Jobs []JobResponse `json:"jobs"`
}

func JobToResponse(j *history.Job) JobResponse {
	return JobResponse{
		ID:         j.ID,
		SourcePath: j.SourcePath,
		OutputPath: j.OutputPath,
		Mode:       j.Mode,
		Status:     j.Status,
		Progress:   j.Progress,
		Error:      j.Error,
		CreatedAt:  j.CreatedAt.Format(time.RFC3339),
		UpdatedAt:  j.UpdatedAt.Format(time.RFC3339),
	}
}
