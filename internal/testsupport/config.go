package testsupport

import (
	"path/filepath"
	"testing"

	"dynwatch/internal/config"
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
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.RenderDir = filepath.Join(base, "cards")
	cfgVal.Platform.MaxRetries = 0
	cfgVal.Platform.RequestsPerSecond = 0
	cfgVal.Logging.Format = "json"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithPlatformURL points both feed and live endpoints at url (usually an httptest server).
func WithPlatformURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Platform.FeedBaseURL = url
		b.cfg.Platform.LiveBaseURL = url
	}
}

// WithNtfyServer overrides the ntfy server URL.
func WithNtfyServer(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Notifications.NtfyServer = url
	}
}

// WithDynamicLimit overrides the per-cycle dispatch cap.
func WithDynamicLimit(limit int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Polling.DynamicLimit = limit
	}
}

// WithWorkers overrides the scheduler's concurrency bound.
func WithWorkers(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Polling.Workers = n
	}
}

// WithRich toggles rich image-text rendering.
func WithRich(rich bool) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Notifications.Rich = rich
	}
}

// BaseDir exposes the temporary base directory for callers needing extra paths.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
