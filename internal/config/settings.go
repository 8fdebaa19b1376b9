package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/schell/privateer/internal/ledger"
	"github.com/schell/privateer/internal/logctx"
	"github.com/spf13/afero"
)

const (
	dirPerm  = 0o755
	filePerm = 0o600

	DefaultTransmissionHost = "localhost"
	DefaultTransmissionPort = 9091
)

// TransmissionSettings holds the daemon connection parameters.
type TransmissionSettings struct {
	Host     string `json:"host"`
	Port     uint16 `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// Settings is the user-editable, file-backed configuration document. A
// destination whose directory is empty has copying disabled; attempts to copy
// there are skipped, not failed.
type Settings struct {
	Transmission TransmissionSettings `json:"transmission"`
	MoviesDir    string               `json:"movies_dir"`
	ShowsDir     string               `json:"shows_dir"`
}

// DefaultSettings points at a local daemon with no destinations configured.
func DefaultSettings() Settings {
	return Settings{
		Transmission: TransmissionSettings{
			Host: DefaultTransmissionHost,
			Port: DefaultTransmissionPort,
		},
	}
}

// DirFor returns the configured directory for a destination, or "" when
// copying to it is disabled.
func (s Settings) DirFor(d ledger.Destination) string {
	switch d {
	case ledger.DestinationMovies:
		return s.MoviesDir
	case ledger.DestinationShows:
		return s.ShowsDir
	}

	return ""
}

// SettingsError represents a failure to persist the settings file.
type SettingsError struct {
	Op   string
	Path string
	Err  error
}

func (e *SettingsError) Error() string {
	return fmt.Sprintf("settings %s failed for %s: %v", e.Op, e.Path, e.Err)
}

func (e *SettingsError) Unwrap() error {
	return e.Err
}

// SettingsStore reads and writes the settings document wholesale, same
// discipline as the ledger store.
type SettingsStore struct {
	fs   afero.Fs
	path string
}

func NewSettingsStore(fs afero.Fs, path string) *SettingsStore {
	return &SettingsStore{fs: fs, path: path}
}

// Load reads the settings file, falling back to defaults when it is missing
// or unparsable.
func (s *SettingsStore) Load(ctx context.Context) Settings {
	logger := logctx.LoggerFromContext(ctx)

	data, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("failed to read settings, using defaults", "path", s.path, "err", err)
		}

		return DefaultSettings()
	}

	settings := DefaultSettings()
	if err := json.Unmarshal(data, &settings); err != nil {
		logger.Warn("settings are unparsable, using defaults", "path", s.path, "err", err)

		return DefaultSettings()
	}

	return settings
}

// Save overwrites the settings file, creating parent directories as needed.
func (s *SettingsStore) Save(ctx context.Context, settings Settings) error {
	dir := filepath.Dir(s.path)
	if err := s.fs.MkdirAll(dir, dirPerm); err != nil {
		return &SettingsError{Op: "mkdir", Path: dir, Err: err}
	}

	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return &SettingsError{Op: "marshal", Path: s.path, Err: err}
	}

	if err := afero.WriteFile(s.fs, s.path, data, filePerm); err != nil {
		return &SettingsError{Op: "write", Path: s.path, Err: err}
	}

	return nil
}
