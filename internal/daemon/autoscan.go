package daemon

import (
	"errors"
	"time"

	"github.com/BENZOOgataga/DeepSearch/internal/api"
	"github.com/BENZOOgataga/DeepSearch/internal/search"
	"go.uber.org/zap"
)

// autoScanTick is how often the scheduler re-reads the config. The scan
// interval itself is enforced against the last successful start, so config
// changes apply within one tick instead of one full interval.
const autoScanTick = time.Minute

// Scheduler periodically starts a keyword scan when auto-scan is enabled.
type Scheduler struct {
	svc    *api.Service
	logger *zap.Logger
	tick   time.Duration
	done   chan struct{}

	lastRun time.Time
}

// NewScheduler creates the auto-scan scheduler. It does nothing until Start.
func NewScheduler(svc *api.Service, logger *zap.Logger) *Scheduler {
	return &Scheduler{svc: svc, logger: logger, tick: autoScanTick}
}

// Start launches the scheduler loop.
func (s *Scheduler) Start() {
	s.done = make(chan struct{})
	go s.loop()
}

// Stop terminates the scheduler loop. Safe to call if never started.
func (s *Scheduler) Stop() {
	if s.done != nil {
		close(s.done)
		s.done = nil
	}
}

func (s *Scheduler) loop() {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()
	done := s.done
	for {
		select {
		case <-ticker.C:
			s.maybeScan()
		case <-done:
			return
		}
	}
}

func (s *Scheduler) maybeScan() {
	enabled, interval := s.svc.AutoScan()
	if !enabled || time.Since(s.lastRun) < interval {
		return
	}
	err := s.svc.StartKeywordScan("autoscan")
	switch {
	case err == nil:
		s.lastRun = time.Now()
		s.logger.Info("auto scan started")
	case errors.Is(err, search.ErrAlreadyRunning):
		// A manual scan is in flight; try again next tick.
	default:
		s.lastRun = time.Now()
		s.logger.Warn("auto scan not started", zap.Error(err))
	}
}
