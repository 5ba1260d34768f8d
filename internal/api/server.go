// Package api is the HTTP/WebSocket surface: file browsing, video
// inspection and streaming, and the trim job lifecycle.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cuttothechase/cttc-server/internal/ffmpeg"
	"github.com/cuttothechase/cttc-server/internal/files"
	"github.com/cuttothechase/cttc-server/internal/history"
	"github.com/cuttothechase/cttc-server/internal/trim"
)

// MediaService is the media-inspection capability handlers depend on.
// *ffmpeg.Client implements it.
type MediaService interface {
	Probe(ctx context.Context, path string) (*ffmpeg.MediaInfo, error)
	Keyframes(ctx context.Context, path string) ([]float64, error)
	Thumbnails(ctx context.Context, path string, count int) ([]string, error)
	Waveform(ctx context.Context, path string, samples int) ([]float64, error)
}

// TrimService runs and cancels trim jobs. *trim.Engine implements it.
type TrimService interface {
	Run(ctx context.Context, jobID string, req trim.Request, sink trim.Sink) (string, error)
	Cancel(jobID string) bool
}

// VideoStreamer serves a validated file with byte-range support.
type VideoStreamer interface {
	ServeVideo(w http.ResponseWriter, r *http.Request, path string) error
}

type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

type ServerConfig struct {
	Port       int
	StaticDir  string
	Files      *files.Manager
	Media      MediaService
	Trimmer    TrimService
	Streamer   VideoStreamer
	Repository history.Repository
	Logger     *slog.Logger
	StartTime  time.Time
	Version    string
}

func NewServer(cfg ServerConfig) *Server {
	router := NewRouter(cfg)

	return &Server{
		httpServer: &http.Server{
			Addr:        fmt.Sprintf(":%d", cfg.Port),
			Handler:     router,
			ReadTimeout: 15 * time.Second,
			// Streaming responses and long-lived trim sockets rule out
			// a write timeout.
			WriteTimeout: 0,
			IdleTimeout:  60 * time.Second,
		},
		logger: cfg.Logger,
	}
}

func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Addr() string {
	return s.httpServer.Addr
}
