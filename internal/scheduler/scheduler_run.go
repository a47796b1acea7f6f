package scheduler

import (
	"context"
	"errors"
	"time"

	"dynwatch/internal/logging"
)

// ErrAlreadyRunning is returned by Start when the loop is active.
var ErrAlreadyRunning = errors.New("scheduler already running")

// Start begins background polling. The loop ends on Stop, when ctx is
// cancelled, or on a persistence failure, which Err then reports.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true
	s.lastErr = nil
	s.done = make(chan struct{})
	done := s.done
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		defer close(done)
		err := s.Run(runCtx)
		s.mu.Lock()
		s.running = false
		if err != nil {
			s.lastErr = err
		}
		s.mu.Unlock()
	}()
	return nil
}

// Stop requests shutdown and waits for the in-flight cycle to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}

// Done is closed when a loop started by Start exits.
func (s *Scheduler) Done() <-chan struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.done == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return s.done
}

// Err returns the fatal error that ended the loop, if any.
func (s *Scheduler) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// Run executes cycles until ctx is cancelled (returning nil) or a cycle
// reports a persistence failure (returning it).
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler started",
		logging.String(logging.FieldEventType, "scheduler_started"),
		logging.Duration("interval", s.interval),
		logging.Int("workers", s.workers),
	)
	for {
		if ctx.Err() != nil {
			break
		}
		if _, err := s.RunCycle(ctx); err != nil {
			logging.ErrorWithContext(s.logger, "scheduler stopping on persistence failure", "scheduler_fatal",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check subscription database path and permissions"),
			)
			return err
		}
		if !s.sleep(ctx) {
			break
		}
	}
	s.logger.Info("scheduler stopped", logging.String(logging.FieldEventType, "scheduler_stopped"))
	return nil
}

func (s *Scheduler) sleep(ctx context.Context) bool {
	timer := time.NewTimer(s.interval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// StatusSummary is a snapshot of scheduler health.
type StatusSummary struct {
	Running   bool
	LastError string
	LastCycle *CycleSummary
}

// Status returns the latest scheduler information.
func (s *Scheduler) Status() StatusSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	summary := StatusSummary{Running: s.running}
	if s.lastErr != nil {
		summary.LastError = s.lastErr.Error()
	}
	if s.lastCycle != nil {
		copy := *s.lastCycle
		summary.LastCycle = &copy
	}
	return summary
}

func (s *Scheduler) setLastCycle(summary CycleSummary) {
	s.mu.Lock()
	s.lastCycle = &summary
	s.mu.Unlock()
}
