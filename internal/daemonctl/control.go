package daemonctl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gofrs/flock"

	"dynwatch/internal/api"
	"dynwatch/internal/config"
	"dynwatch/internal/store"
)

// LaunchOptions controls daemon process launch behavior.
type LaunchOptions struct {
	ConfigPath string
	LogLevel   string
}

type StartState string

const (
	StartStateStarted        StartState = "started"
	StartStateAlreadyRunning StartState = "already_running"
)

// StartResult captures daemon start orchestration state.
type StartResult struct {
	State    StartState
	Launched bool
	PID      int
}

// ErrDaemonNotRunning indicates no process holds the daemon lock.
var ErrDaemonNotRunning = errors.New("daemon not running")

// Launch starts a detached `dynwatch run` process.
func Launch(executablePath string, opts LaunchOptions) error {
	if strings.TrimSpace(executablePath) == "" {
		return fmt.Errorf("resolve executable: executable path is empty")
	}

	args := []string{"run"}
	if cfg := strings.TrimSpace(opts.ConfigPath); cfg != "" {
		args = append(args, "--config", cfg)
	}
	if level := strings.TrimSpace(opts.LogLevel); level != "" {
		args = append(args, "--log-level", level)
	}

	proc := exec.Command(executablePath, args...)
	proc.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := proc.Start(); err != nil {
		return fmt.Errorf("launch daemon: %w", err)
	}
	return proc.Process.Release()
}

// ProcessInfo reports whether some process holds the daemon lock and, when
// the pid file is readable, that process's pid.
func ProcessInfo(cfg *config.Config) (bool, int, error) {
	if cfg == nil {
		return false, 0, errors.New("configuration not available")
	}
	lock := flock.New(cfg.LockPath())
	acquired, err := lock.TryLock()
	if err != nil {
		return false, 0, fmt.Errorf("probe daemon lock: %w", err)
	}
	if acquired {
		_ = lock.Unlock()
		return false, 0, nil
	}
	pid, _ := readPIDFile(cfg.PIDPath())
	return true, pid, nil
}

// WaitForStart polls until the daemon lock is held or timeout elapses.
func WaitForStart(cfg *config.Config, timeout time.Duration) (int, error) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		running, pid, err := ProcessInfo(cfg)
		if err != nil {
			return 0, err
		}
		if running {
			return pid, nil
		}
		time.Sleep(200 * time.Millisecond)
	}
	return 0, fmt.Errorf("daemon failed to start within %s; check %s", timeout, cfg.Paths.LogDir)
}

// EnsureStarted launches the daemon unless one is already running.
func EnsureStarted(cfg *config.Config, executablePath string, opts LaunchOptions, waitTimeout time.Duration) (StartResult, error) {
	running, pid, err := ProcessInfo(cfg)
	if err != nil {
		return StartResult{}, err
	}
	if running {
		return StartResult{State: StartStateAlreadyRunning, PID: pid}, nil
	}
	if err := Launch(executablePath, opts); err != nil {
		return StartResult{}, err
	}
	pid, err = WaitForStart(cfg, waitTimeout)
	if err != nil {
		return StartResult{}, err
	}
	return StartResult{State: StartStateStarted, Launched: true, PID: pid}, nil
}

// WaitForShutdown waits for the daemon lock to be released.
func WaitForShutdown(cfg *config.Config, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		running, _, err := ProcessInfo(cfg)
		if err != nil {
			return err
		}
		if !running {
			return nil
		}
		time.Sleep(200 * time.Millisecond)
	}
	return fmt.Errorf("daemon did not stop within %s", timeout)
}

// StopResult captures daemon stop/termination outcome.
type StopResult struct {
	ForcedKill bool
	PID        int
}

// RestartResult captures stop/start outcomes for daemon restart.
type RestartResult struct {
	WasRunning bool
	Stop       StopResult
	Start      StartResult
}

// StopAndTerminate sends SIGTERM and force-kills the process if it still holds
// the lock after gracePeriod.
func StopAndTerminate(cfg *config.Config, gracePeriod time.Duration) (StopResult, error) {
	running, pid, err := ProcessInfo(cfg)
	if err != nil {
		return StopResult{}, err
	}
	if !running {
		return StopResult{}, ErrDaemonNotRunning
	}
	if pid <= 0 {
		return StopResult{}, fmt.Errorf("daemon lock is held but pid file %s is missing", cfg.PIDPath())
	}
	if pid == os.Getpid() {
		return StopResult{}, fmt.Errorf("refusing to signal current process (pid %d)", pid)
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return StopResult{}, fmt.Errorf("locate daemon process %d: %w", pid, err)
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return StopResult{}, fmt.Errorf("signal daemon process %d: %w", pid, err)
	}
	result := StopResult{PID: pid}
	if WaitForShutdown(cfg, gracePeriod) == nil {
		return result, nil
	}

	if err := proc.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return result, fmt.Errorf("kill daemon process %d: %w", pid, err)
	}
	if err := os.Remove(cfg.PIDPath()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return result, fmt.Errorf("remove pid file: %w", err)
	}
	result.ForcedKill = true
	return result, nil
}

// Restart stops the daemon if running, then ensures it is started.
func Restart(cfg *config.Config, executablePath string, opts LaunchOptions, stopGracePeriod, startWaitTimeout time.Duration) (RestartResult, error) {
	stopResult, stopErr := StopAndTerminate(cfg, stopGracePeriod)
	if stopErr != nil && !errors.Is(stopErr, ErrDaemonNotRunning) {
		return RestartResult{}, stopErr
	}

	startResult, err := EnsureStarted(cfg, executablePath, opts, startWaitTimeout)
	if err != nil {
		return RestartResult{}, err
	}

	return RestartResult{
		WasRunning: stopErr == nil,
		Stop:       stopResult,
		Start:      startResult,
	}, nil
}

// StatusLine is one labelled row of `dynwatch status` output.
type StatusLine struct {
	Label    string
	Severity string
	Detail   string
}

// Snapshot is the daemon status plus derived readiness lines.
type Snapshot struct {
	Status api.DaemonStatus
	// Live is set when Status came from the running daemon's API rather than
	// the store on disk.
	Live  bool
	Lines []StatusLine
}

// BuildStatusSnapshot asks the running daemon for its status and falls back
// to reading the store directly when the API is disabled or unreachable.
func BuildStatusSnapshot(ctx context.Context, cfg *config.Config) (*Snapshot, error) {
	if cfg == nil {
		return nil, errors.New("configuration not available")
	}
	running, pid, err := ProcessInfo(cfg)
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{}
	if running {
		client, clientErr := api.NewClient(cfg.API.Bind, cfg.API.Token)
		if clientErr == nil {
			status, statusErr := client.Status(ctx)
			if statusErr == nil {
				snap.Status = status
				snap.Live = true
			}
		}
	}

	if !snap.Live {
		snap.Status = api.DaemonStatus{
			Running:      running,
			PID:          pid,
			DatabasePath: cfg.DatabasePath(),
			LockFilePath: cfg.LockPath(),
		}
		queryCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		st, openErr := store.Open(cfg)
		if openErr == nil {
			subs, listErr := st.List(queryCtx, "")
			_ = st.Close()
			if listErr == nil {
				snap.Status.Subscriptions = len(subs)
			}
		}
	}

	snap.Lines = BuildSystemChecks(cfg, snap.Status, snap.Live)
	return snap, nil
}

// BuildSystemChecks resolves status lines that combine runtime state and config checks.
func BuildSystemChecks(cfg *config.Config, status api.DaemonStatus, live bool) []StatusLine {
	lines := make([]StatusLine, 0, 6)
	switch {
	case status.Running && status.PID > 0:
		lines = append(lines, StatusLine{Label: "Dynwatch", Severity: "ok", Detail: fmt.Sprintf("Running (pid %d)", status.PID)})
	case status.Running:
		lines = append(lines, StatusLine{Label: "Dynwatch", Severity: "ok", Detail: "Running"})
	default:
		lines = append(lines, StatusLine{Label: "Dynwatch", Severity: "warn", Detail: "Not running (run `dynwatch start`)"})
	}

	lines = append(lines, ConfigChecks(cfg)...)

	switch {
	case strings.TrimSpace(cfg.API.Bind) == "":
		lines = append(lines, StatusLine{Label: "Status API", Severity: "info", Detail: "Disabled"})
	case live:
		lines = append(lines, StatusLine{Label: "Status API", Severity: "ok", Detail: cfg.API.Bind})
	case status.Running:
		lines = append(lines, StatusLine{Label: "Status API", Severity: "warn", Detail: "Unreachable at " + cfg.API.Bind})
	default:
		lines = append(lines, StatusLine{Label: "Status API", Severity: "info", Detail: "Inactive (daemon not running)"})
	}

	if status.Scheduler.LastError != "" {
		lines = append(lines, StatusLine{Label: "Polling", Severity: "error", Detail: status.Scheduler.LastError})
	}
	if cycle := status.Scheduler.LastCycle; cycle != nil {
		severity := "ok"
		if cycle.FetchFailures > 0 || cycle.DeliveryFailures > 0 || cycle.LiveUnavailable {
			severity = "warn"
		}
		detail := fmt.Sprintf("%d/%d processed, %d notified, %d fetch failures, %d delivery failures (%s)",
			cycle.Processed, cycle.Subscriptions, cycle.Notified, cycle.FetchFailures, cycle.DeliveryFailures, cycle.FinishedAt)
		lines = append(lines, StatusLine{Label: "Last cycle", Severity: severity, Detail: detail})
	}
	return lines
}

// ConfigChecks reports readiness that depends only on configuration.
func ConfigChecks(cfg *config.Config) []StatusLine {
	lines := make([]StatusLine, 0, 2)
	if strings.TrimSpace(cfg.Platform.SessData) != "" {
		lines = append(lines, StatusLine{Label: "Platform session", Severity: "ok", Detail: "Cookie configured"})
	} else {
		lines = append(lines, StatusLine{Label: "Platform session", Severity: "info", Detail: "Anonymous (feeds may be rate limited)"})
	}

	if strings.TrimSpace(cfg.Notifications.NtfyServer) != "" {
		lines = append(lines, StatusLine{Label: "Notifications", Severity: "ok", Detail: cfg.Notifications.NtfyServer})
	} else {
		lines = append(lines, StatusLine{Label: "Notifications", Severity: "warn", Detail: "Not configured (ntfy_server is empty)"})
	}
	return lines
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid pid file %s", path)
	}
	return pid, nil
}
