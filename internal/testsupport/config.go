package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"mp4forge/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.QueueDB = filepath.Join(base, "state", "queue.db")
	cfgVal.API.Bind = "127.0.0.1:0"
	cfgVal.MP4Box.Binary = filepath.Join(base, "bin", "MP4Box")
	cfgVal.Queue.StopTimeoutSeconds = 5

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithoutPersistence disables the SQLite mirror.
func WithoutPersistence() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Queue.Persist = false
	}
}

// WithAutoStart enables queue.auto_start.
func WithAutoStart() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Queue.AutoStart = true
	}
}

// WithAPIToken requires a bearer token on the HTTP API.
func WithAPIToken(token string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.API.Token = token
	}
}

// WithStubMP4Box writes a shell script standing in for MP4Box and points the
// config at it. The script body runs with the MP4Box arguments in "$@".
func WithStubMP4Box(body string) ConfigOption {
	return func(b *configBuilder) {
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		target := filepath.Join(binDir, "MP4Box")
		script := []byte("#!/bin/sh\n" + body + "\n")
		if err := os.WriteFile(target, script, 0o755); err != nil {
			b.t.Fatalf("write stub MP4Box: %v", err)
		}
		b.cfg.MP4Box.Binary = target
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
