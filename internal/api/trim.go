package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/cuttothechase/cttc-server/internal/files"
	"github.com/cuttothechase/cttc-server/internal/history"
	"github.com/cuttothechase/cttc-server/internal/trim"
)

// Local-only tool: browser clients may connect from a dev server origin.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// buildTrimRequest runs the shared validation for both the REST precheck
// and the WebSocket execution path. On failure it returns an HTTP status
// and message.
func buildTrimRequest(cfg ServerConfig, req TrimRequest) (trim.Request, int, string) {
	source, err := cfg.Files.ValidateVideo(req.SourcePath)
	if err != nil {
		return trim.Request{}, validationStatus(err), err.Error()
	}

	output, err := cfg.Files.ValidateOutput(req.OutputPath, req.Overwrite)
	if err != nil {
		status := validationStatus(err)
		if errors.Is(err, files.ErrOutputExists) {
			status = http.StatusConflict
		}
		return trim.Request{}, status, err.Error()
	}

	if len(req.RemovalRanges) == 0 {
		return trim.Request{}, http.StatusBadRequest, "no removal ranges specified"
	}

	mode, err := trim.ParseMode(req.CuttingMode)
	if err != nil {
		return trim.Request{}, http.StatusBadRequest, err.Error()
	}

	return trim.Request{
		Source:   source,
		Output:   output,
		Removals: req.RemovalRanges,
		Mode:     mode,
	}, 0, ""
}

func validationStatus(err error) int {
	switch {
	case errors.Is(err, files.ErrOutsideRoot):
		return http.StatusForbidden
	case errors.Is(err, files.ErrNotFound), errors.Is(err, files.ErrNotDirectory):
		return http.StatusNotFound
	default:
		return http.StatusBadRequest
	}
}

// trimValidateHandler prechecks a trim request without starting it. The
// actual processing happens over the WebSocket.
func trimValidateHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req TrimRequest
		if err := decodeJSON(r, &req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid JSON body", "BAD_REQUEST")
			return
		}
		if _, status, msg := buildTrimRequest(cfg, req); status != 0 {
			WriteError(w, status, msg, "VALIDATION_FAILED")
			return
		}
		WriteJSON(w, http.StatusOK, TrimReadyResponse{
			Status:  "ready",
			Message: "Connect to the trim WebSocket to start processing.",
		})
	}
}

// trimSocketHandler runs one trim job per connection: the client sends the
// request as its first message, then receives progress events until a
// terminal one. A dropped connection cancels the job.
func trimSocketHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			cfg.Logger.Warn("websocket upgrade failed", "error", err)
			return
		}
		defer conn.Close()

		var req TrimRequest
		if err := conn.ReadJSON(&req); err != nil {
			conn.WriteJSON(trim.ProgressEvent{Status: trim.StatusError, Message: "invalid trim request"})
			return
		}

		trimReq, status, msg := buildTrimRequest(cfg, req)
		if status != 0 {
			conn.WriteJSON(trim.ProgressEvent{Status: trim.StatusError, Message: msg})
			return
		}

		jobID := uuid.NewString()
		now := time.Now().UTC()
		// The request context dies with the upgrade; the job record must not.
		if err := cfg.Repository.CreateJob(context.Background(), &history.Job{
			ID:         jobID,
			SourcePath: trimReq.Source,
			OutputPath: trimReq.Output,
			Mode:       string(trimReq.Mode),
			Status:     string(trim.StatusProcessing),
			CreatedAt:  now,
			UpdatedAt:  now,
		}); err != nil {
			cfg.Logger.Error("failed to record job", "error", err, "job_id", jobID)
		}

		// Reads serve only disconnect detection; the client sends nothing
		// after the request.
		done := make(chan struct{})
		go func() {
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					select {
					case <-done:
					default:
						cfg.Logger.Info("client disconnected, cancelling job", "job_id", jobID)
						cfg.Trimmer.Cancel(jobID)
					}
					return
				}
			}
		}()

		sink := &socketSink{conn: conn, repo: cfg.Repository, logger: cfg.Logger}

		// The job must not die with the request context once the trim is
		// underway; cancellation flows through the registry.
		if _, err := cfg.Trimmer.Run(context.Background(), jobID, trimReq, sink); err != nil {
			cfg.Logger.Warn("trim job ended with error", "job_id", jobID, "error", err)
		}
		close(done)

		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	}
}

// socketSink forwards progress events to the WebSocket and mirrors them
// into job history. Delivery failures are swallowed: a gone subscriber
// never interrupts the job.
type socketSink struct {
	mu     sync.Mutex
	conn   *websocket.Conn
	repo   history.Repository
	logger *slog.Logger
}

func (s *socketSink) Emit(ev trim.ProgressEvent) {
	s.mu.Lock()
	_ = s.conn.WriteJSON(ev)
	s.mu.Unlock()

	ctx := context.Background()
	if err := s.repo.UpdateJobProgress(ctx, ev.JobID, ev.Progress); err != nil && s.logger != nil {
		s.logger.Warn("failed to persist job progress", "error", err, "job_id", ev.JobID)
	}
	if ev.Status.Terminal() {
		errMsg := ""
		if ev.Status == trim.StatusError {
			errMsg = ev.Message
		}
		if err := s.repo.UpdateJobStatus(ctx, ev.JobID, string(ev.Status), errMsg); err != nil && s.logger != nil {
			s.logger.Warn("failed to persist job status", "error", err, "job_id", ev.JobID)
		}
	}
}

func decodeJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func cancelHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID := chi.URLParam(r, "job_id")
		if !cfg.Trimmer.Cancel(jobID) {
			WriteError(w, http.StatusNotFound, "job not found or already completed", "NOT_FOUND")
			return
		}
		WriteJSON(w, http.StatusOK, CancelResponse{Status: "cancelled", JobID: jobID})
	}
}
