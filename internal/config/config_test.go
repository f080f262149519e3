package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"mp4forge/internal/config"
)

func isolateEnv(t *testing.T) string {
	t.Helper()
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("PORTABLE_MODE", "")
	t.Setenv("MP4BOX_PATH", "")
	t.Setenv("MP4FORGE_API_TOKEN", "")
	t.Setenv("PATH", t.TempDir())
	return tempHome
}

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := isolateEnv(t)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}
	if resolved != filepath.Join(tempHome, ".config", "mp4forge", "config.toml") {
		t.Fatalf("unexpected resolved path: %q", resolved)
	}

	wantState := filepath.Join(tempHome, ".local", "share", "mp4forge")
	if cfg.Paths.StateDir != wantState {
		t.Fatalf("unexpected state dir: got %q want %q", cfg.Paths.StateDir, wantState)
	}
	if cfg.Paths.QueueDB != filepath.Join(wantState, "queue.db") {
		t.Fatalf("unexpected queue db: %q", cfg.Paths.QueueDB)
	}
	if cfg.Paths.LogDir != filepath.Join(wantState, "logs") {
		t.Fatalf("unexpected log dir: %q", cfg.Paths.LogDir)
	}
	if cfg.API.Bind != "127.0.0.1:7488" {
		t.Fatalf("unexpected api bind: %q", cfg.API.Bind)
	}
	if !cfg.Queue.Persist {
		t.Fatal("expected persistence enabled by default")
	}
	if cfg.MP4BoxBinary() != "MP4Box" {
		t.Fatalf("expected fallback binary name, got %q", cfg.MP4BoxBinary())
	}
	if cfg.StopTimeout().Seconds() != 30 {
		t.Fatalf("unexpected stop timeout: %s", cfg.StopTimeout())
	}
}

func TestLoadDetectsMP4BoxOnPath(t *testing.T) {
	isolateEnv(t)
	binDir := t.TempDir()
	stub := filepath.Join(binDir, "mp4box")
	if err := os.WriteFile(stub, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	t.Setenv("PATH", binDir)

	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.MP4BoxBinary() != stub {
		t.Fatalf("expected detected binary %q, got %q", stub, cfg.MP4BoxBinary())
	}
}

func TestLoadCustomConfigOverrides(t *testing.T) {
	isolateEnv(t)
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.toml")

	payload := map[string]any{
		"config_version": config.CurrentVersion,
		"paths": map[string]any{
			"state_dir": filepath.Join(dir, "state"),
		},
		"mp4box": map[string]any{
			"binary":               "/opt/gpac/bin/MP4Box",
			"kill_timeout_seconds": 5,
		},
		"queue": map[string]any{
			"persist":                  false,
			"auto_start":               true,
			"clear_completed_schedule": "@daily",
		},
		"api": map[string]any{
			"bind":  "0.0.0.0:9000",
			"token": "secret",
		},
		"logging": map[string]any{
			"format": "JSON",
			"level":  "Debug",
		},
	}
	data, err := toml.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected existing config at %q, got %q exists=%v", configPath, resolved, exists)
	}
	if cfg.Queue.Persist {
		t.Fatal("expected persistence disabled")
	}
	if !cfg.Queue.AutoStart {
		t.Fatal("expected auto start enabled")
	}
	if cfg.MP4BoxBinary() != "/opt/gpac/bin/MP4Box" {
		t.Fatalf("unexpected binary: %q", cfg.MP4BoxBinary())
	}
	if cfg.KillTimeout().Seconds() != 5 {
		t.Fatalf("unexpected kill timeout: %s", cfg.KillTimeout())
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "debug" {
		t.Fatalf("expected normalized logging, got %+v", cfg.Logging)
	}
	if cfg.API.Token != "secret" {
		t.Fatalf("unexpected token: %q", cfg.API.Token)
	}
	if cfg.Paths.QueueDB != filepath.Join(dir, "state", "queue.db") {
		t.Fatalf("unexpected queue db: %q", cfg.Paths.QueueDB)
	}
}

func TestLoadBacksUpIncompatibleVersion(t *testing.T) {
	isolateEnv(t)
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.toml")
	content := "config_version = 99\n[api]\nbind = \"0.0.0.0:1\"\n"
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if exists {
		t.Fatal("expected incompatible config to be treated as absent")
	}
	wantBackup := configPath + ".v99.bak"
	if cfg.BackupPath != wantBackup {
		t.Fatalf("unexpected backup path: %q", cfg.BackupPath)
	}
	if _, err := os.Stat(wantBackup); err != nil {
		t.Fatalf("expected backup file: %v", err)
	}
	if _, err := os.Stat(configPath); !os.IsNotExist(err) {
		t.Fatalf("expected original config moved aside, stat err=%v", err)
	}
	if cfg.API.Bind != "127.0.0.1:7488" {
		t.Fatalf("expected default bind after backup, got %q", cfg.API.Bind)
	}
}

func TestValidateRejectsBadSchedule(t *testing.T) {
	cfg := config.Default()
	cfg.Queue.ClearCompletedSchedule = "every tuesday"
	cfg.Logging.Format = "console"
	cfg.Logging.Level = "info"
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "queue.clear_completed_schedule") {
		t.Fatalf("expected schedule validation error, got %v", err)
	}
}

func TestValidateRejectsUnknownLogFormat(t *testing.T) {
	cfg := config.Default()
	cfg.Logging.Format = "xml"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for log format")
	}
}

func TestPortableModeKeepsConfigBesideExecutable(t *testing.T) {
	isolateEnv(t)
	t.Setenv("PORTABLE_MODE", "1")

	exe, err := os.Executable()
	if err != nil {
		t.Skipf("executable path unavailable: %v", err)
	}
	path, err := config.DefaultConfigPath()
	if err != nil {
		t.Fatalf("DefaultConfigPath: %v", err)
	}
	if path != filepath.Join(filepath.Dir(exe), "config.toml") {
		t.Fatalf("unexpected portable config path: %q", path)
	}
	if got := config.Default().Paths.StateDir; got != filepath.Join(filepath.Dir(exe), "data") {
		t.Fatalf("unexpected portable state dir: %q", got)
	}
}

func TestCreateSampleIsLoadable(t *testing.T) {
	isolateEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample: %v", err)
	}
	if !exists {
		t.Fatal("expected sample config to exist")
	}
	if cfg.ConfigVersion != config.CurrentVersion {
		t.Fatalf("unexpected config version %d", cfg.ConfigVersion)
	}
}
