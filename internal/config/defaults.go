package config

const (
	defaultConfigPath           = "~/.config/dynwatch/config.toml"
	defaultDataDir              = "~/.local/share/dynwatch"
	defaultLogDir               = "~/.local/share/dynwatch/logs"
	defaultRenderDir            = "~/.cache/dynwatch/cards"
	defaultFeedBaseURL          = "https://api.bilibili.com"
	defaultLiveBaseURL          = "https://api.live.bilibili.com"
	defaultUserAgent            = "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:109.0) Gecko/20100101 Firefox/115.0"
	defaultPlatformTimeout      = 15
	defaultRequestsPerSecond    = 1.0
	defaultMaxRetries           = 2
	defaultIntervalMinutes      = 20
	defaultDynamicLimit         = 5
	defaultRecentWindow         = 20
	defaultWorkers              = 1
	defaultSubscriptionTimeout  = 120
	defaultNtfyServer           = "https://ntfy.sh"
	defaultNotifyRequestTimeout = 10
	defaultLogLevel             = "info"
	defaultLogRetentionDays     = 30
	maxWorkers                  = 16
	maxRecentWindow             = 500
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:   defaultDataDir,
			LogDir:    defaultLogDir,
			RenderDir: defaultRenderDir,
		},
		Platform: Platform{
			FeedBaseURL:       defaultFeedBaseURL,
			LiveBaseURL:       defaultLiveBaseURL,
			UserAgent:         defaultUserAgent,
			RequestTimeout:    defaultPlatformTimeout,
			RequestsPerSecond: defaultRequestsPerSecond,
			MaxRetries:        defaultMaxRetries,
		},
		Polling: Polling{
			IntervalMinutes:     defaultIntervalMinutes,
			DynamicLimit:        defaultDynamicLimit,
			RecentWindow:        defaultRecentWindow,
			Workers:             defaultWorkers,
			SubscriptionTimeout: defaultSubscriptionTimeout,
		},
		Notifications: Notifications{
			NtfyServer:     defaultNtfyServer,
			RequestTimeout: defaultNotifyRequestTimeout,
			Rich:           true,
		},
		Logging: Logging{
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
