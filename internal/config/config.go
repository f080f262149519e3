package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains state and log directory configuration.
type Paths struct {
	StateDir string `toml:"state_dir"`
	LogDir   string `toml:"log_dir"`
	QueueDB  string `toml:"queue_db"`
}

// MP4Box contains configuration for the external muxer.
type MP4Box struct {
	Binary             string `toml:"binary"`
	KillTimeoutSeconds int    `toml:"kill_timeout_seconds"`
}

// Queue contains configuration for job persistence and processing.
type Queue struct {
	Persist                bool   `toml:"persist"`
	StopTimeoutSeconds     int    `toml:"stop_timeout_seconds"`
	AutoStart              bool   `toml:"auto_start"`
	ClearCompletedSchedule string `toml:"clear_completed_schedule"`
}

// API contains configuration for the daemon HTTP API.
type API struct {
	Bind  string `toml:"bind"`
	Token string `toml:"token"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic        string `toml:"ntfy_topic"`
	RequestTimeout   int    `toml:"request_timeout"`
	OnComplete       bool   `toml:"on_complete"`
	OnFailure        bool   `toml:"on_failure"`
	OnQueueCompleted bool   `toml:"on_queue_completed"`
}

// Config encapsulates all configuration values for mp4forge.
//
// Configuration sections by subsystem:
//   - Paths: state, log, and queue database locations
//   - MP4Box: muxer executable and shutdown grace period
//   - Queue: persistence, stop timeout, auto start, and cleanup schedule
//   - API: daemon HTTP bind address and bearer token
//   - Logging: log format and level
//   - Notifications: ntfy push notification settings
type Config struct {
	ConfigVersion int           `toml:"config_version"`
	Paths         Paths         `toml:"paths"`
	MP4Box        MP4Box        `toml:"mp4box"`
	Queue         Queue         `toml:"queue"`
	API           API           `toml:"api"`
	Logging       Logging       `toml:"logging"`
	Notifications Notifications `toml:"notifications"`

	// BackupPath is set when Load moved an incompatible config file aside.
	BackupPath string `toml:"-"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	if dir, ok := portableDir(); ok {
		return filepath.Join(dir, configFileName), nil
	}
	if base, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok && strings.TrimSpace(base) != "" {
		return expandPath(filepath.Join(base, appName, configFileName))
	}
	return expandPath("~/.config/mp4forge/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		data, err := os.ReadFile(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}

		var header struct {
			ConfigVersion int `toml:"config_version"`
		}
		if err := toml.Unmarshal(data, &header); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}

		if header.ConfigVersion != 0 && header.ConfigVersion != CurrentVersion {
			backup, err := backupConfig(resolvedPath, header.ConfigVersion)
			if err != nil {
				return nil, "", false, err
			}
			cfg.BackupPath = backup
			exists = false
		} else if err := toml.Unmarshal(data, &cfg); err != nil {
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

// backupConfig renames an incompatible config file to <path>.v<N>.bak.
func backupConfig(path string, version int) (string, error) {
	target := fmt.Sprintf("%s.v%d.bak", path, version)
	if err := os.Rename(path, target); err != nil {
		return "", fmt.Errorf("backup config version %d: %w", version, err)
	}
	return target, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
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

	projectPath, err := filepath.Abs("mp4forge.toml")
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
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir, filepath.Dir(c.Paths.QueueDB)} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// MP4BoxBinary returns the muxer executable, resolved during normalization.
func (c *Config) MP4BoxBinary() string {
	if strings.TrimSpace(c.MP4Box.Binary) == "" {
		return mp4boxBinaryName
	}
	return c.MP4Box.Binary
}

// LockPath returns the daemon's single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, defaultLockFileName)
}

// KillTimeout bounds how long a terminated MP4Box gets before it is killed.
func (c *Config) KillTimeout() time.Duration {
	return time.Duration(c.MP4Box.KillTimeoutSeconds) * time.Second
}

// StopTimeout bounds how long stopping the processor waits for the in-flight job.
func (c *Config) StopTimeout() time.Duration {
	return time.Duration(c.Queue.StopTimeoutSeconds) * time.Second
}

// NotificationTimeout returns the ntfy HTTP request timeout.
func (c *Config) NotificationTimeout() time.Duration {
	return time.Duration(c.Notifications.RequestTimeout) * time.Second
}

// detectMP4Box looks for the muxer on PATH under both common spellings.
func detectMP4Box() string {
	for _, name := range []string{mp4boxBinaryName, mp4boxLowercaseBinaryName} {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}
	return ""
}

func portableDir() (string, bool) {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(portableModeEnv)))
	switch value {
	case "1", "true", "yes", "on":
	default:
		return "", false
	}
	exe, err := os.Executable()
	if err != nil {
		return "", false
	}
	return filepath.Dir(exe), true
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
