package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cuttothechase/cttc-server/internal/api"
	"github.com/cuttothechase/cttc-server/internal/config"
	"github.com/cuttothechase/cttc-server/internal/db"
	"github.com/cuttothechase/cttc-server/internal/ffmpeg"
	"github.com/cuttothechase/cttc-server/internal/files"
	"github.com/cuttothechase/cttc-server/internal/history"
	"github.com/cuttothechase/cttc-server/internal/logging"
	"github.com/cuttothechase/cttc-server/internal/stream"
	"github.com/cuttothechase/cttc-server/internal/trim"
)

func newServeCommand(loadConfig func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the trim server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			return runServer(cfg)
		},
	}
}

func runServer(cfg *config.Config) error {
	startTime := time.Now()

	if err := os.MkdirAll(cfg.DataDir(), 0755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel())
	logger.Info("starting cttc server",
		"version", config.Version,
		"media_root", logging.SanitizePath(cfg.MediaRoot()),
		"data_dir", logging.SanitizePath(cfg.DataDir()),
	)

	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	repo := history.NewRepository(database.Conn())

	manager, err := files.NewManager(cfg.MediaRoot(), cfg.MaxFileBytes(), logging.WithComponent(logger, "files"))
	if err != nil {
		return err
	}

	client, err := ffmpeg.NewClient(
		ffmpeg.NewExecRunner(logging.WithComponent(logger, "exec")),
		cfg.FFmpeg(), cfg.FFprobe(),
		logging.WithComponent(logger, "ffmpeg"),
	)
	if err != nil {
		return err
	}

	engine := trim.NewEngine(client,
		ffmpeg.NewEncoderCache(client, logging.WithComponent(logger, "encoders")),
		logging.WithComponent(logger, "trim"),
	)

	server := api.NewServer(api.ServerConfig{
		Port:       cfg.Port(),
		StaticDir:  cfg.StaticDir(),
		Files:      manager,
		Media:      client,
		Trimmer:    engine,
		Streamer:   stream.NewStreamer(logging.WithComponent(logger, "stream")),
		Repository: repo,
		Logger:     logging.WithComponent(logger, "api"),
		StartTime:  startTime,
		Version:    config.Version,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		logger.Info("received signal, shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
