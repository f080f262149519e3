package main

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"mp4forge/internal/daemonctl"
	"mp4forge/internal/daemonrun"
)

const (
	daemonBinaryName = "mp4forged"
	daemonStartWait  = 10 * time.Second
	daemonStopGrace  = 15 * time.Second
)

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	var logLevel string

	start := &cobra.Command{
		Use:   "start",
		Short: "Start the mp4forged daemon in the background",
		RunE: func(cmd *cobra.Command, args []string) error {
			return startDaemon(cmd, ctx, logLevel)
		},
	}
	start.Flags().StringVar(&logLevel, "log-level", "", "Daemon log level override")

	stop := &cobra.Command{
		Use:   "stop",
		Short: "Stop the running daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return stopDaemon(cmd, ctx)
		},
	}

	var restartLogLevel string
	restart := &cobra.Command{
		Use:   "restart",
		Short: "Restart the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := stopDaemon(cmd, ctx); err != nil {
				return err
			}
			return startDaemon(cmd, ctx, restartLogLevel)
		},
	}
	restart.Flags().StringVar(&restartLogLevel, "log-level", "", "Daemon log level override")

	return []*cobra.Command{start, stop, restart}
}

func startDaemon(cmd *cobra.Command, ctx *commandContext, logLevel string) error {
	client, err := ctx.client()
	if err != nil {
		return err
	}
	exe, err := daemonExecutable()
	if err != nil {
		return err
	}
	result, err := daemonctl.EnsureStarted(cmd.Context(), client, exe, daemonctl.LaunchOptions{
		ConfigPath: ctx.configPath,
		LogLevel:   logLevel,
	}, daemonStartWait)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	switch result.State {
	case daemonctl.StartStateAlreadyRunning:
		fmt.Fprintf(out, "Daemon already running (pid %d)\n", result.PID)
	default:
		fmt.Fprintf(out, "Daemon started (pid %d) at %s\n", result.PID, client.BaseURL())
	}
	return nil
}

func stopDaemon(cmd *cobra.Command, ctx *commandContext) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	client, err := ctx.client()
	if err != nil {
		return err
	}
	pidPath := filepath.Join(cfg.Paths.StateDir, daemonrun.PIDFileName)
	result, err := daemonctl.Stop(cmd.Context(), client, pidPath, daemonStopGrace)
	out := cmd.OutOrStdout()
	if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
		fmt.Fprintln(out, "Daemon is not running")
		return nil
	}
	if err != nil {
		return err
	}
	if result.ForcedKill {
		fmt.Fprintf(out, "Daemon killed (pid %d)\n", result.PID)
		return nil
	}
	fmt.Fprintf(out, "Daemon stopped (pid %d)\n", result.PID)
	return nil
}

// daemonExecutable prefers an mp4forged binary installed next to this one.
func daemonExecutable() (string, error) {
	if self, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(self), daemonBinaryName)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	path, err := exec.LookPath(daemonBinaryName)
	if err != nil {
		return "", fmt.Errorf("locate %s: %w", daemonBinaryName, err)
	}
	return path, nil
}
