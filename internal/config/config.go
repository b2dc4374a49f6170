package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Node identifies this edge node and its road geometry.
type Node struct {
	ID           string  `toml:"id"`
	Lat          float64 `toml:"lat"`
	Long         float64 `toml:"long"`
	LaneCount    int     `toml:"lane_count"`
	DefaultSpeed int     `toml:"default_speed"`
}

// Paths contains directory configuration for daemon state.
type Paths struct {
	DataDir  string `toml:"data_dir"`
	LogDir   string `toml:"log_dir"`
	MediaDir string `toml:"media_dir"`
}

// Camera contains frame-acquisition configuration. Source selects between a
// live capture device and a video file played back at the target rate.
type Camera struct {
	Source      string `toml:"source"`
	DeviceIndex int    `toml:"device_index"`
	VideoPath   string `toml:"video_path"`
	Loop        bool   `toml:"loop"`
	FPS         int    `toml:"fps"`
	Width       int    `toml:"width"`
	Height      int    `toml:"height"`
}

// Model describes one detection model. The order of [[models]] entries in the
// configuration file is the order the dispatcher runs them in, which also
// decides which model's detection wins when two fire on the same frame.
type Model struct {
	Name       string   `toml:"name"`
	Path       string   `toml:"path"`
	ConfigPath string   `toml:"config_path"`
	Enabled    bool     `toml:"enabled"`
	Confidence float64  `toml:"confidence"`
	Classes    []string `toml:"classes"`
}

// Network contains Central Unit connection settings. ConfirmationTimeout is
// the number of seconds to wait for an instruction after a report before the
// awaiting state is released; zero disables the timeout.
type Network struct {
	ServerURL           string `toml:"server_url"`
	HeartbeatInterval   int    `toml:"heartbeat_interval"`
	ReportTimeout       int    `toml:"report_timeout"`
	ConfirmationTimeout int    `toml:"confirmation_timeout"`
}

// Failures contains sliding-window failure-tracking thresholds.
type Failures struct {
	Threshold     int `toml:"threshold"`
	WindowSeconds int `toml:"window_seconds"`
	MaxHistory    int `toml:"max_history"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config is the root configuration shared by the daemon and the CLI.
type Config struct {
	Node     Node     `toml:"node"`
	Paths    Paths    `toml:"paths"`
	Camera   Camera   `toml:"camera"`
	Models   []Model  `toml:"models"`
	Network  Network  `toml:"network"`
	Failures Failures `toml:"failures"`
	Logging  Logging  `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return ExpandPath("~/.config/safespace/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized. When no file exists the
// repository defaults are returned and exists is false.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := ExpandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("safespace.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir, c.Paths.MediaDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// EnabledModels returns the enabled model entries in configuration order.
func (c *Config) EnabledModels() []Model {
	enabled := make([]Model, 0, len(c.Models))
	for _, m := range c.Models {
		if m.Enabled {
			enabled = append(enabled, m)
		}
	}
	return enabled
}

// SocketPath returns the IPC socket location for the daemon.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.DataDir, "safespaced.sock")
}

// JournalPath returns the sqlite journal location for the daemon.
func (c *Config) JournalPath() string {
	return filepath.Join(c.Paths.DataDir, "journal.db")
}

// ExpandPath expands a leading ~ and returns the absolute form of path.
func ExpandPath(path string) (string, error) {
	cleaned := strings.TrimSpace(path)
	if cleaned == "" {
		return "", nil
	}
	if cleaned == "~" || strings.HasPrefix(cleaned, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if cleaned == "~" {
			cleaned = home
		} else {
			cleaned = filepath.Join(home, cleaned[2:])
		}
	}
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
