package api

import (
	"errors"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cuttothechase/cttc-server/internal/files"
)

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(CORSMiddleware())

	r.Get("/api/health", healthHandler(cfg))

	r.Get("/api/files/browse", browseHandler(cfg))

	r.Route("/api/video", func(r chi.Router) {
		r.Get("/info", videoInfoHandler(cfg))
		r.Get("/stream", videoStreamHandler(cfg))
		r.Get("/keyframes", videoKeyframesHandler(cfg))
		r.Get("/thumbnails", videoThumbnailsHandler(cfg))
		r.Get("/waveform", videoWaveformHandler(cfg))
	})

	r.Route("/api/process", func(r chi.Router) {
		r.Post("/trim", trimValidateHandler(cfg))
		r.Get("/ws/trim", trimSocketHandler(cfg))
		r.Post("/cancel/{job_id}", cancelHandler(cfg))
	})

	r.Get("/api/jobs", listJobsHandler(cfg))
	r.Get("/api/jobs/{id}", getJobHandler(cfg))

	if cfg.StaticDir != "" {
		if _, err := os.Stat(cfg.StaticDir); err == nil {
			r.Handle("/*", http.FileServer(http.Dir(cfg.StaticDir)))
			cfg.Logger.Info("serving frontend", "dir", cfg.StaticDir)
		} else {
			cfg.Logger.Info("no static frontend found, API-only mode", "dir", cfg.StaticDir)
		}
	}

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:  "ok",
			App:     "CutToTheChase",
			Version: cfg.Version,
			UptimeS: int64(time.Since(cfg.StartTime).Seconds()),
		})
	}
}

func browseHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		listing, err := cfg.Files.ListDirectory(r.URL.Query().Get("path"))
		if err != nil {
			writeValidationError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, listing)
	}
}

func videoInfoHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path, ok := validatedSource(w, r, cfg)
		if !ok {
			return
		}
		info, err := cfg.Media.Probe(r.Context(), path)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "PROBE_FAILED")
			return
		}
		WriteJSON(w, http.StatusOK, info)
	}
}

func videoStreamHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path, ok := validatedSource(w, r, cfg)
		if !ok {
			return
		}
		if err := cfg.Streamer.ServeVideo(w, r, path); err != nil {
			cfg.Logger.Error("stream failed", "error", err)
		}
	}
}

func videoKeyframesHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path, ok := validatedSource(w, r, cfg)
		if !ok {
			return
		}
		kf, err := cfg.Media.Keyframes(r.Context(), path)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "KEYFRAMES_FAILED")
			return
		}
		WriteJSON(w, http.StatusOK, KeyframesResponse{Keyframes: kf, Count: len(kf)})
	}
}

func videoThumbnailsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path, ok := validatedSource(w, r, cfg)
		if !ok {
			return
		}
		count := queryInt(r, "count", 100, 10, 500)
		thumbs, err := cfg.Media.Thumbnails(r.Context(), path, count)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "THUMBNAILS_FAILED")
			return
		}
		WriteJSON(w, http.StatusOK, ThumbnailsResponse{Thumbnails: thumbs, Count: len(thumbs)})
	}
}

func videoWaveformHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path, ok := validatedSource(w, r, cfg)
		if !ok {
			return
		}
		samples := queryInt(r, "samples", 1000, 100, 10000)
		data, err := cfg.Media.Waveform(r.Context(), path, samples)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "WAVEFORM_FAILED")
			return
		}
		WriteJSON(w, http.StatusOK, WaveformResponse{Waveform: data, Samples: len(data)})
	}
}

func listJobsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := queryInt(r, "limit", 50, 1, 500)
		jobs, err := cfg.Repository.ListJobs(r.Context(), limit)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list jobs", "INTERNAL_ERROR")
			return
		}
		resp := JobsResponse{Jobs: make([]JobResponse, len(jobs))}
		for i, j := range jobs {
			resp.Jobs[i] = JobToResponse(j)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func getJobHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job, err := cfg.Repository.GetJob(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to load job", "INTERNAL_ERROR")
			return
		}
		if job == nil {
			WriteError(w, http.StatusNotFound, "job not found", "NOT_FOUND")
			return
		}
		WriteJSON(w, http.StatusOK, JobToResponse(job))
	}
}

// validatedSource resolves the "path" query parameter through the media
// root checks shared by all video endpoints.
func validatedSource(w http.ResponseWriter, r *http.Request, cfg ServerConfig) (string, bool) {
	raw := r.URL.Query().Get("path")
	if raw == "" {
		WriteError(w, http.StatusBadRequest, "missing path parameter", "BAD_REQUEST")
		return "", false
	}
	path, err := cfg.Files.ValidateVideo(raw)
	if err != nil {
		writeValidationError(w, err)
		return "", false
	}
	return path, true
}

func writeValidationError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, files.ErrOutsideRoot):
		WriteError(w, http.StatusForbidden, err.Error(), "FORBIDDEN")
	case errors.Is(err, files.ErrNotFound), errors.Is(err, files.ErrNotDirectory):
		WriteError(w, http.StatusNotFound, err.Error(), "NOT_FOUND")
	default:
		WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
	}
}

func queryInt(r *http.Request, name string, def, min, max int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		return def
	}
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
