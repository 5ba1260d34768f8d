// Package config provides configuration management for the CutToTheChase
// server. Values come from built-in defaults, an optional TOML file, and
// environment variable overrides, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pelletier/go-toml/v2"
)

const (
	// Default values
	DefaultPort     = 8585
	DefaultLogLevel = "info"
	DefaultDataDir  = ".cttc"

	// Environment variable names
	EnvPort      = "CTTC_PORT"
	EnvLogLevel  = "CTTC_LOG_LEVEL"
	EnvMediaRoot = "CTTC_MEDIA_ROOT"
	EnvDataDir   = "CTTC_DATA_DIR"
	EnvStaticDir = "CTTC_STATIC_DIR"
	EnvFFmpeg    = "CTTC_FFMPEG"
	EnvFFprobe   = "CTTC_FFPROBE"

	// Database filename
	DBFilename = "cttc.db"

	// DefaultMaxFileBytes caps source files at 10 GB.
	DefaultMaxFileBytes = 10 * 1024 * 1024 * 1024

	// ConfigFilename is looked up under the data dir when no explicit
	// config path is given.
	ConfigFilename = "config.toml"
)

// Config holds the resolved server configuration.
type Config struct {
	port         int
	logLevel     string
	mediaRoot    string
	dataDir      string
	staticDir    string
	ffmpegBin    string
	ffprobeBin   string
	maxFileBytes int64
}

// fileConfig is the TOML file shape. Every field is optional.
type fileConfig struct {
	Port         int    `toml:"port"`
	LogLevel     string `toml:"log_level"`
	MediaRoot    string `toml:"media_root"`
	DataDir      string `toml:"data_dir"`
	StaticDir    string `toml:"static_dir"`
	FFmpeg       string `toml:"ffmpeg"`
	FFprobe      string `toml:"ffprobe"`
	MaxFileBytes int64  `toml:"max_file_bytes"`
}

// Load builds the configuration. When path is empty, <dataDir>/config.toml
// is read if it exists; a missing default file is not an error, but an
// explicitly named file must exist.
func Load(path string) (*Config, error) {
	cfg := &Config{
		port:         DefaultPort,
		logLevel:     DefaultLogLevel,
		mediaRoot:    "/media",
		dataDir:      defaultDataDir(),
		maxFileBytes: DefaultMaxFileBytes,
	}

	explicit := path != ""
	if !explicit {
		path = filepath.Join(cfg.dataDir, ConfigFilename)
	}

	if data, err := os.ReadFile(path); err == nil {
		var fc fileConfig
		if err := toml.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
		cfg.applyFile(fc)
	} else if explicit {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyFile(fc fileConfig) {
	if fc.Port != 0 {
		c.port = fc.Port
	}
	if fc.LogLevel != "" {
		c.logLevel = fc.LogLevel
	}
	if fc.MediaRoot != "" {
		c.mediaRoot = fc.MediaRoot
	}
	if fc.DataDir != "" {
		c.dataDir = fc.DataDir
	}
	if fc.StaticDir != "" {
		c.staticDir = fc.StaticDir
	}
	if fc.FFmpeg != "" {
		c.ffmpegBin = fc.FFmpeg
	}
	if fc.FFprobe != "" {
		c.ffprobeBin = fc.FFprobe
	}
	if fc.MaxFileBytes > 0 {
		c.maxFileBytes = fc.MaxFileBytes
	}
}

func (c *Config) applyEnv() error {
	if p := os.Getenv(EnvPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		if port < 1 || port > 65535 {
			return fmt.Errorf("invalid %s: port must be between 1 and 65535", EnvPort)
		}
		c.port = port
	}
	if ll := os.Getenv(EnvLogLevel); ll != "" {
		c.logLevel = ll
	}
	if mr := os.Getenv(EnvMediaRoot); mr != "" {
		c.mediaRoot = mr
	}
	if dd := os.Getenv(EnvDataDir); dd != "" {
		c.dataDir = dd
	}
	if sd := os.Getenv(EnvStaticDir); sd != "" {
		c.staticDir = sd
	}
	if b := os.Getenv(EnvFFmpeg); b != "" {
		c.ffmpegBin = b
	}
	if b := os.Getenv(EnvFFprobe); b != "" {
		c.ffprobeBin = b
	}
	return nil
}

// Port returns the HTTP server port
func (c *Config) Port() int {
	return c.port
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *Config) LogLevel() string {
	return c.logLevel
}

// MediaRoot returns the directory tree browsing and trimming are confined to.
func (c *Config) MediaRoot() string {
	return c.mediaRoot
}

// DataDir returns the data directory path
func (c *Config) DataDir() string {
	return c.dataDir
}

// DBPath returns the full path to the SQLite database file
func (c *Config) DBPath() string {
	return filepath.Join(c.dataDir, DBFilename)
}

// StaticDir returns the optional frontend asset directory ("" = API only).
func (c *Config) StaticDir() string {
	return c.staticDir
}

// FFmpeg returns the configured ffmpeg binary ("" = resolve from PATH).
func (c *Config) FFmpeg() string {
	return c.ffmpegBin
}

// FFprobe returns the configured ffprobe binary ("" = resolve from PATH).
func (c *Config) FFprobe() string {
	return c.ffprobeBin
}

// MaxFileBytes returns the source file size cap in bytes.
func (c *Config) MaxFileBytes() int64 {
	return c.maxFileBytes
}

// defaultDataDir returns the default data directory path
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home is not available
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

// Version information (set at build time via ldflags)
var (
	Version   = "1.0.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
