package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePlatform(); err != nil {
		return err
	}
	if err := c.validatePolling(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	if err := c.validateAPI(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateAPI() error {
	if c.API.Bind == "" {
		return nil
	}
	if _, _, err := net.SplitHostPort(c.API.Bind); err != nil {
		return fmt.Errorf("api.bind: %w", err)
	}
	return nil
}

func (c *Config) validatePlatform() error {
	for key, value := range map[string]string{
		"platform.feed_base_url": c.Platform.FeedBaseURL,
		"platform.live_base_url": c.Platform.LiveBaseURL,
	} {
		if err := validateHTTPURL(value); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
	}
	if c.Platform.RequestsPerSecond < 0 {
		return errors.New("platform.requests_per_second must be zero (unlimited) or positive")
	}
	if c.Platform.MaxRetries < 0 {
		return errors.New("platform.max_retries must be zero or positive")
	}
	return nil
}

func (c *Config) validatePolling() error {
	if c.Polling.IntervalMinutes <= 0 {
		return errors.New("polling.interval_minutes must be positive")
	}
	if c.Polling.DynamicLimit <= 0 {
		return errors.New("polling.dynamic_limit must be positive")
	}
	if c.Polling.RecentWindow > maxRecentWindow {
		return fmt.Errorf("polling.recent_window must be at most %d", maxRecentWindow)
	}
	if c.Polling.Workers > maxWorkers {
		return fmt.Errorf("polling.workers must be at most %d", maxWorkers)
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.NtfyServer == "" {
		return nil
	}
	if err := validateHTTPURL(c.Notifications.NtfyServer); err != nil {
		return fmt.Errorf("notifications.ntfy_server: %w", err)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must be zero (disabled) or positive")
	}
	return nil
}

func validateHTTPURL(value string) error {
	parsed, err := url.Parse(strings.TrimSpace(value))
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return errors.New("host is required")
	}
	return nil
}
