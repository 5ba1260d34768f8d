// Package files confines all filesystem access to the configured media
// root: path validation for trim sources and outputs, and directory
// browsing for clients picking a file.
package files

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Validation failures exposed to transport layers.
var (
	ErrOutsideRoot  = errors.New("access denied: path is outside the media directory")
	ErrNotFound     = errors.New("file not found")
	ErrNotDirectory = errors.New("directory not found")
	ErrUnsupported  = errors.New("unsupported file format")
	ErrTooLarge     = errors.New("file exceeds the size limit")
	ErrEmptyFile    = errors.New("file is empty")
	ErrOutputExists = errors.New("output file already exists")
)

// videoExtensions are the container formats accepted as trim sources.
var videoExtensions = map[string]bool{
	".mp4": true, ".mkv": true, ".avi": true, ".mov": true,
	".webm": true, ".wmv": true, ".flv": true, ".m4v": true,
	".mpg": true, ".mpeg": true, ".ts": true, ".vob": true,
	".3gp": true, ".ogv": true,
}

// IsVideoFile reports whether the path carries a recognised video extension.
func IsVideoFile(path string) bool {
	return videoExtensions[strings.ToLower(filepath.Ext(path))]
}

// FileEntry is one browsable item under the media root.
type FileEntry struct {
	Name      string `json:"name"`
	Path      string `json:"path"`
	IsDir     bool   `json:"is_dir"`
	Size      int64  `json:"size,omitempty"`
	Modified  int64  `json:"modified"`
	Extension string `json:"extension,omitempty"`
}

// DirectoryListing is the browsable view of one directory. Parent is empty
// at the media root so clients cannot navigate above it.
type DirectoryListing struct {
	Path    string      `json:"path"`
	Parent  string      `json:"parent,omitempty"`
	Entries []FileEntry `json:"entries"`
}

// Manager performs all path checks against a resolved media root.
type Manager struct {
	root     string
	maxBytes int64
	logger   *slog.Logger
}

// NewManager resolves the media root once. Symlinks in the root itself are
// followed so later prefix checks compare like with like.
func NewManager(root string, maxBytes int64, logger *slog.Logger) (*Manager, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve media root: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	return &Manager{root: abs, maxBytes: maxBytes, logger: logger}, nil
}

// Root returns the resolved media root.
func (m *Manager) Root() string { return m.root }

// resolve canonicalises a candidate path. Symlinks are followed when the
// path exists; a non-existent path is still cleaned and absolutised so the
// containment check cannot be bypassed with "..".
func (m *Manager) resolve(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}
	return abs, nil
}

func (m *Manager) withinRoot(resolved string) bool {
	return resolved == m.root || strings.HasPrefix(resolved, m.root+string(filepath.Separator))
}

// ValidateVideo checks that path names a readable, supported video file
// inside the media root and returns its canonical form.
func (m *Manager) ValidateVideo(path string) (string, error) {
	resolved, err := m.resolve(path)
	if err != nil || !m.withinRoot(resolved) {
		return "", ErrOutsideRoot
	}

	fi, err := os.Stat(resolved)
	if err != nil || fi.IsDir() {
		return "", ErrNotFound
	}
	if !IsVideoFile(resolved) {
		return "", ErrUnsupported
	}
	if fi.Size() > m.maxBytes {
		return "", fmt.Errorf("%w: %.1f GB", ErrTooLarge, float64(fi.Size())/(1<<30))
	}
	if fi.Size() == 0 {
		return "", ErrEmptyFile
	}
	return resolved, nil
}

// ValidateOutput checks that path is a legal destination for a trim result:
// inside the media root, in an existing directory, with a video extension.
// An existing file at the destination is rejected unless overwrite is set.
func (m *Manager) ValidateOutput(path string, overwrite bool) (string, error) {
	resolved, err := m.resolve(path)
	if err != nil || !m.withinRoot(resolved) {
		return "", ErrOutsideRoot
	}
	if !IsVideoFile(resolved) {
		return "", ErrUnsupported
	}
	if fi, err := os.Stat(filepath.Dir(resolved)); err != nil || !fi.IsDir() {
		return "", ErrNotDirectory
	}
	if _, err := os.Stat(resolved); err == nil && !overwrite {
		return "", fmt.Errorf("%w: %s", ErrOutputExists, filepath.Base(resolved))
	}
	return resolved, nil
}

// ListDirectory returns the directories and video files under path, which
// defaults to the media root. Hidden entries and non-video files are
// skipped; entries that cannot be stat'ed are logged and dropped.
func (m *Manager) ListDirectory(path string) (*DirectoryListing, error) {
	if path == "" {
		path = m.root
	}

	resolved, err := m.resolve(path)
	if err != nil || !m.withinRoot(resolved) {
		return nil, ErrOutsideRoot
	}
	if fi, err := os.Stat(resolved); err != nil || !fi.IsDir() {
		return nil, ErrNotDirectory
	}

	dirEntries, err := os.ReadDir(resolved)
	if err != nil {
		return nil, fmt.Errorf("cannot read directory %s: %w", resolved, err)
	}

	entries := make([]FileEntry, 0, len(dirEntries))
	for _, de := range dirEntries {
		name := de.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		full := filepath.Join(resolved, name)
		fi, err := os.Stat(full)
		if err != nil {
			if m.logger != nil {
				m.logger.Warn("cannot stat entry", "path", full, "error", err)
			}
			continue
		}

		isDir := fi.IsDir()
		ext := ""
		if !isDir {
			ext = strings.ToLower(filepath.Ext(name))
			if !videoExtensions[ext] {
				continue
			}
		}

		entry := FileEntry{
			Name:      name,
			Path:      full,
			IsDir:     isDir,
			Modified:  fi.ModTime().Unix(),
			Extension: ext,
		}
		if !isDir {
			entry.Size = fi.Size()
		}
		entries = append(entries, entry)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })

	listing := &DirectoryListing{Path: resolved, Entries: entries}
	if resolved != m.root {
		listing.Parent = filepath.Dir(resolved)
	}
	return listing, nil
}
