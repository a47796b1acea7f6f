package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"dynwatch/internal/bili"
	"dynwatch/internal/config"
	"dynwatch/internal/daemon"
	"dynwatch/internal/dispatch"
	"dynwatch/internal/logging"
	"dynwatch/internal/notifications"
	"dynwatch/internal/render"
	"dynwatch/internal/scheduler"
	"dynwatch/internal/store"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
	// Once runs a single polling cycle and exits instead of looping.
	Once bool
}

// Run starts the dynwatch daemon and blocks until a signal arrives, ctx is
// cancelled, or polling stops on a persistence failure (returned as the error).
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("dynwatch-%s.log", runID))
	level := cfg.Logging.Level
	if strings.TrimSpace(opts.LogLevel) != "" {
		level = opts.LogLevel
	}
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout", logPath},
		Development: opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update %s link: %v\n", logging.LogFileName, err)
	}
	logging.CleanupOldFiles(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "dynwatch-*.log", Exclude: []string{logPath, logging.CLILogFileName}},
		logging.RetentionTarget{Dir: cfg.Paths.RenderDir, Pattern: render.CardPattern},
	)
	logConfigSnapshot(logger, cfg)

	st, err := store.Open(cfg)
	if err != nil {
		logging.ErrorWithContext(logger, "open subscription store", "store_open_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check data_dir permissions"),
		)
		return err
	}

	sched, err := NewScheduler(cfg, st, logger)
	if err != nil {
		_ = st.Close()
		return err
	}

	if opts.Once {
		defer st.Close()
		summary, err := sched.RunCycle(signalCtx)
		if err != nil {
			return err
		}
		logger.Info("single cycle finished",
			logging.String(logging.FieldEventType, "single_cycle_finished"),
			logging.Int("notified", summary.Notified),
		)
		return nil
	}

	pidPath := cfg.PIDPath()
	if err := writePIDFile(pidPath); err != nil {
		_ = st.Close()
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	d, err := daemon.New(cfg, st, sched, logger)
	if err != nil {
		_ = st.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "stop the other instance or remove a stale lock file"),
			logging.String(logging.FieldImpact, "no subscriptions are polled"),
		)
		return err
	}

	select {
	case <-signalCtx.Done():
		logger.Info("dynwatch daemon shutting down", logging.String(logging.FieldEventType, "daemon_shutdown"))
		return nil
	case <-d.Done():
		return d.Err()
	}
}

// NewScheduler wires the platform client, renderer, and notifier into a
// scheduler over st. The command surface uses it for one-off test sends.
func NewScheduler(cfg *config.Config, st scheduler.Store, logger *slog.Logger) (*scheduler.Scheduler, error) {
	platform := bili.New(cfg.Platform, logger)
	renderer, err := render.New(cfg.Paths.RenderDir)
	if err != nil {
		return nil, fmt.Errorf("init renderer: %w", err)
	}
	dispatcher := dispatch.New(renderer, notifications.NewService(cfg), cfg.Notifications.Rich, logger)
	return scheduler.New(cfg, scheduler.Deps{
		Feeds:      platform,
		Live:       platform,
		Store:      st,
		Dispatcher: dispatcher,
	}, logger), nil
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, logging.LogFileName)
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logConfigSnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	logger.Info("configuration snapshot",
		logging.String(logging.FieldEventType, "config_snapshot"),
		logging.String("database", cfg.DatabasePath()),
		logging.String("feed_base_url", cfg.Platform.FeedBaseURL),
		logging.Bool("sessdata_present", strings.TrimSpace(cfg.Platform.SessData) != ""),
		logging.Any("interval_minutes", cfg.Polling.IntervalMinutes),
		logging.Int("dynamic_limit", cfg.Polling.DynamicLimit),
		logging.Int("workers", cfg.Polling.Workers),
		logging.String("ntfy_server", cfg.Notifications.NtfyServer),
		logging.Bool("rich", cfg.Notifications.Rich),
		logging.Bool("api_enabled", strings.TrimSpace(cfg.API.Bind) != ""),
	)
}
