// Package schedule owns the repeating capture trigger. The scheduler is an
// explicit object with injected persistence, and captures are single-flight:
// a trigger firing while a capture is still running is skipped, never run
// concurrently against the same page.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dtnitsch/deck-digest/models"
	"github.com/dtnitsch/deck-digest/pkg/state"
)

// CaptureFunc runs one capture. Errors are logged and do not alter the
// trigger; the next scheduled firing proceeds normally.
type CaptureFunc func(ctx context.Context, selectors []string, mode models.OutputMode) error

// Persistence receives the scheduler configuration and last-run marker;
// satisfied by *state.Store.
type Persistence interface {
	SaveCaptureConfig(cfg state.CaptureConfig) error
	TouchCapture(at time.Time) error
}

// Settings is the validated trigger configuration.
type Settings struct {
	Interval  time.Duration
	Delay     time.Duration
	Selectors []string
	Mode      models.OutputMode
}

// Status reports the trigger state.
type Status struct {
	Running bool
	NextRun time.Time
}

// Scheduler drives periodic and on-demand captures.
type Scheduler struct {
	capture CaptureFunc
	store   Persistence
	logger  *slog.Logger

	mu       sync.Mutex
	running  bool
	settings Settings
	delayT   *time.Timer
	cron     *cron.Cron
	nextRun  time.Time

	inFlight atomic.Bool
}

func New(capture CaptureFunc, store Persistence, logger *slog.Logger) *Scheduler {
	return &Scheduler{capture: capture, store: store, logger: logger}
}

// Start validates the settings, persists them, and installs the repeating
// trigger: the first capture fires after Delay, subsequent captures every
// Interval. Errors are reported synchronously and leave the state unchanged.
func (s *Scheduler) Start(settings Settings) error {
	if settings.Interval <= 0 {
		return fmt.Errorf("schedule: interval must be > 0, got %s", settings.Interval)
	}
	if settings.Delay < 0 {
		return fmt.Errorf("schedule: delay must be >= 0, got %s", settings.Delay)
	}
	if settings.Mode == "" {
		settings.Mode = models.OutputAuto
	}

	if err := s.store.SaveCaptureConfig(state.CaptureConfig{
		IntervalMinutes: int(settings.Interval / time.Minute),
		DelayMinutes:    int(settings.Delay / time.Minute),
		Selectors:       settings.Selectors,
		OutputMode:      string(settings.Mode),
	}); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancelLocked()
	s.settings = settings
	s.running = true
	s.nextRun = time.Now().Add(settings.Delay)

	s.delayT = time.AfterFunc(settings.Delay, func() {
		s.fire()
		s.installCron()
	})

	s.logger.Info("capture trigger installed", "interval", settings.Interval, "delay", settings.Delay)
	return nil
}

func (s *Scheduler) installCron() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	c := cron.New()
	// AddFunc only fails on an unparseable spec; @every with a positive
	// duration always parses.
	_, _ = c.AddFunc(fmt.Sprintf("@every %s", s.settings.Interval), s.fire)
	c.Start()
	s.cron = c
	s.nextRun = time.Now().Add(s.settings.Interval)
}

// Stop cancels future triggers. An in-flight capture is not interrupted.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked()
	s.running = false
	s.logger.Info("capture trigger stopped")
}

func (s *Scheduler) cancelLocked() {
	if s.delayT != nil {
		s.delayT.Stop()
		s.delayT = nil
	}
	if s.cron != nil {
		s.cron.Stop()
		s.cron = nil
	}
}

// CaptureOnce runs a capture immediately regardless of trigger state, with
// optional overrides. It does not change running/stopped and honors the
// single-flight guard.
func (s *Scheduler) CaptureOnce(ctx context.Context, overrideSelectors []string, overrideMode models.OutputMode) error {
	s.mu.Lock()
	selectors := s.settings.Selectors
	mode := s.settings.Mode
	s.mu.Unlock()

	if overrideSelectors != nil {
		selectors = overrideSelectors
	}
	if overrideMode != "" {
		mode = overrideMode
	}
	if mode == "" {
		mode = models.OutputAuto
	}

	if !s.inFlight.CompareAndSwap(false, true) {
		return fmt.Errorf("schedule: a capture is already in flight")
	}
	defer s.inFlight.Store(false)

	return s.runCapture(ctx, selectors, mode)
}

// fire is the trigger callback.
func (s *Scheduler) fire() {
	if !s.inFlight.CompareAndSwap(false, true) {
		s.logger.Warn("skipping trigger, capture still in flight")
		return
	}
	defer s.inFlight.Store(false)

	s.mu.Lock()
	selectors := s.settings.Selectors
	mode := s.settings.Mode
	if s.cron != nil {
		s.nextRun = time.Now().Add(s.settings.Interval)
	}
	s.mu.Unlock()

	if err := s.runCapture(context.Background(), selectors, mode); err != nil {
		s.logger.Error("scheduled capture failed", "error", err)
	}
}

func (s *Scheduler) runCapture(ctx context.Context, selectors []string, mode models.OutputMode) error {
	err := s.capture(ctx, selectors, mode)
	if err != nil {
		return err
	}
	// Last-run advances even when the capture wrote no file.
	if touchErr := s.store.TouchCapture(time.Now()); touchErr != nil {
		s.logger.Warn("failed to persist last capture time", "error", touchErr)
	}
	return nil
}

// CurrentStatus reports whether the trigger is installed and when it fires
// next.
func (s *Scheduler) CurrentStatus() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := Status{Running: s.running}
	if !s.running {
		return status
	}
	if s.cron != nil {
		if entries := s.cron.Entries(); len(entries) > 0 {
			status.NextRun = entries[0].Next
			return status
		}
	}
	status.NextRun = s.nextRun
	return status
}
