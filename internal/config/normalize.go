package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizePlatform()
	c.normalizePolling()
	c.normalizeNotifications()
	c.API.Bind = strings.TrimSpace(c.API.Bind)
	c.API.Token = strings.TrimSpace(c.API.Token)
	if c.API.Token == "" {
		if value, ok := os.LookupEnv("DYNWATCH_API_TOKEN"); ok {
			c.API.Token = strings.TrimSpace(value)
		}
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.RenderDir) == "" {
		c.Paths.RenderDir = defaultRenderDir
	}
	if c.Paths.RenderDir, err = expandPath(c.Paths.RenderDir); err != nil {
		return fmt.Errorf("paths.render_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizePlatform() {
	if c.Platform.SessData == "" {
		if value, ok := os.LookupEnv("DYNWATCH_SESSDATA"); ok {
			c.Platform.SessData = strings.TrimSpace(value)
		}
	}
	c.Platform.FeedBaseURL = strings.TrimRight(strings.TrimSpace(c.Platform.FeedBaseURL), "/")
	if c.Platform.FeedBaseURL == "" {
		c.Platform.FeedBaseURL = defaultFeedBaseURL
	}
	c.Platform.LiveBaseURL = strings.TrimRight(strings.TrimSpace(c.Platform.LiveBaseURL), "/")
	if c.Platform.LiveBaseURL == "" {
		c.Platform.LiveBaseURL = defaultLiveBaseURL
	}
	c.Platform.UserAgent = strings.TrimSpace(c.Platform.UserAgent)
	if c.Platform.UserAgent == "" {
		c.Platform.UserAgent = defaultUserAgent
	}
	if c.Platform.RequestTimeout <= 0 {
		c.Platform.RequestTimeout = defaultPlatformTimeout
	}
}

func (c *Config) normalizePolling() {
	if c.Polling.Workers <= 0 {
		c.Polling.Workers = defaultWorkers
	}
	if c.Polling.RecentWindow <= 0 {
		c.Polling.RecentWindow = defaultRecentWindow
	}
	if c.Polling.SubscriptionTimeout <= 0 {
		c.Polling.SubscriptionTimeout = defaultSubscriptionTimeout
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyServer = strings.TrimRight(strings.TrimSpace(c.Notifications.NtfyServer), "/")
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = detectLogFormat(os.Stdout.Fd())
	}
}

// detectLogFormat picks human-readable output for terminals and JSON for
// everything else (journald, pipes, containers).
func detectLogFormat(fd uintptr) string {
	if isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd) {
		return "console"
	}
	return "json"
}
