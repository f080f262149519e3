package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/google/uuid"

	"mp4forge/internal/config"
	"mp4forge/internal/daemon"
	"mp4forge/internal/deps"
	"mp4forge/internal/logging"
)

// PIDFileName is written to the state directory while the daemon runs.
const PIDFileName = "mp4forged.pid"

// Options configures daemon process runtime behavior.
type Options struct {
	ConfigPath  string
	LogLevel    string
	Development bool
	Version     string
}

// Run starts the mp4forge daemon and blocks until ctx ends or the process
// receives SIGINT or SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return errors.New("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if opts.Development {
		cfg.Logging.Format = "console"
		cfg.Logging.Level = "debug"
	}
	if opts.LogLevel != "" {
		cfg.Logging.Level = opts.LogLevel
	}
	logger, err := logging.NewFromConfig(cfg, "mp4forged")
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logger = logger.With(logging.String(logging.FieldSessionID, uuid.NewString()))

	if cfg.BackupPath != "" {
		logging.WarnWithContext(logger, "config version mismatch; using defaults", "config_backed_up",
			logging.String("backup", cfg.BackupPath),
			logging.String(logging.FieldErrorHint, "run mp4forge config init to write a current config"),
			logging.String(logging.FieldImpact, "custom settings are ignored until the config is recreated"),
		)
	}
	logDependencySnapshot(logger, cfg)

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}
	pidPath := filepath.Join(cfg.Paths.StateDir, PIDFileName)

	d, err := daemon.New(cfg, logger,
		daemon.WithConfigPath(opts.ConfigPath),
		daemon.WithVersion(opts.Version),
	)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	if err := d.Start(signalCtx); err != nil {
		logger.Error("daemon start failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "daemon_start_failed"),
			logging.String(logging.FieldErrorHint, "check configuration, the api bind address, and queue database access"),
		)
		return err
	}
	defer d.Stop()

	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	<-signalCtx.Done()
	logger.Info("mp4forge daemon shutting down")
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	attrs := []logging.Attr{logging.String(logging.FieldEventType, "dependency_snapshot")}
	for _, status := range deps.CheckBinaries(deps.Requirements(cfg)) {
		attrs = append(attrs,
			logging.Bool(status.Name+"_available", status.Available),
			logging.String(status.Name+"_binary", status.Command),
		)
		if !status.Available && !status.Optional {
			logging.WarnWithContext(logger, "required dependency missing", "dependency_missing",
				logging.String("dependency", status.Name),
				logging.String("detail", status.Detail),
				logging.String(logging.FieldErrorHint, "install GPAC or set mp4box.binary"),
				logging.String(logging.FieldImpact, "jobs fail until MP4Box is available"),
			)
		}
	}
	logger.Info("dependency snapshot", logging.Args(attrs...)...)
}
