// Package poll implements the 1-second scheduler sweep that drives
// external command lifecycle for every resource: launching overdue
// monitor probes, reaping finished start/stop/monitor commands, and
// killing commands that have overrun their timeout.
//
// A ctx/cancel/WaitGroup goroutine ticks on a time.Ticker and walks the
// resource registry each tick.
package poll

import (
	"context"
	"sync"
	"time"

	"github.com/icsd/icsd/internal/attrs"
	"github.com/icsd/icsd/internal/resource"
	"go.uber.org/zap"
)

// Registry is the set of resources the scheduler sweeps each tick.
// internal/engine.Engine implements this.
type Registry interface {
	Resources() []*resource.Resource
}

// Config controls the scheduler's tick interval and startup probe
// concurrency cap.
type Config struct {
	Interval time.Duration
	// StartupBurst caps how many resources may have a probe command
	// in flight at once during the first sweep after a cold start, so a
	// fleet of thousands of resources doesn't fork thousands of monitor
	// processes in the same second.
	StartupBurst int
}

// DefaultConfig returns a 1-second tick with a startup probe cap of 30
// concurrent commands.
func DefaultConfig() Config {
	return Config{Interval: time.Second, StartupBurst: 30}
}

// Scheduler is the poll sweep goroutine.
type Scheduler struct {
	registry Registry
	sup      resource.Supervisor
	cfg      Config
	log      *zap.SugaredLogger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Scheduler. sup is the same Supervisor the resources'
// events use to enqueue follow-on events and raise alerts.
func New(registry Registry, sup resource.Supervisor, cfg Config, log *zap.SugaredLogger) *Scheduler {
	return &Scheduler{
		registry: registry,
		sup:      sup,
		cfg:      cfg,
		log:      log,
	}
}

// Start probes every resource once, bounded to StartupBurst commands in
// flight at a time, then launches the periodic sweep goroutine. Start
// blocks until the startup probe pass completes, so a caller that
// brings AutoStart groups online right after Start returns is
// guaranteed every resource has already reported a state at least once.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.ctx = ctx
	s.cancel = cancel

	s.startupProbe(ctx)

	s.wg.Add(1)
	go s.run()
	s.log.Infow("poll scheduler started", "interval", s.cfg.Interval)
}

// startupProbe drives one poll cycle per enabled resource to
// completion before returning, launching at most StartupBurst
// MonitorPrograms concurrently via Resource.Poll and reaping each with
// CheckCmd/TimedOutCmd the same way sweep does on every tick. A
// resource whose MonitorProgram is empty never shows a command in
// flight, so it's considered probed as soon as one settle tick has
// passed since dispatch.
func (s *Scheduler) startupProbe(ctx context.Context) {
	pending := map[string]bool{}
	for _, r := range s.registry.Resources() {
		if r.Bag.GetBool(attrs.Enabled) {
			pending[r.Name] = true
		}
	}
	if len(pending) == 0 {
		return
	}

	const settle = 100 * time.Millisecond
	dispatchedAt := map[string]time.Time{}

	ticker := time.NewTicker(settle)
	defer ticker.Stop()

	for len(pending) > 0 {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		inFlight := 0
		for _, r := range s.registry.Resources() {
			if r.HasCmd() {
				inFlight++
			}
		}

		for _, r := range s.registry.Resources() {
			if !pending[r.Name] {
				continue
			}
			switch {
			case r.HasCmd():
				if r.CheckCmd() {
					r.HandleCmd(s.sup)
					delete(pending, r.Name)
				} else if r.TimedOutCmd(s.sup) {
					delete(pending, r.Name)
				}
			case !dispatchedAt[r.Name].IsZero():
				// Dispatched last tick and never showed a command in
				// flight: MonitorProgram is empty, nothing to reap.
				delete(pending, r.Name)
			case inFlight < s.cfg.StartupBurst:
				r.Poll(s.sup)
				dispatchedAt[r.Name] = time.Now()
				inFlight++
			}
		}
	}

	s.log.Infow("startup probe complete", "resources", len(dispatchedAt))
}

// Stop cancels the sweep goroutine and waits for it to exit.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

// sweep runs one pass over every resource, matching Node.poll_updater's
// per-resource branch: a command already in flight is checked for
// completion or timeout; a resource mid start/stop transition is left
// alone; everything else is offered to UpdatePoll.
func (s *Scheduler) sweep() {
	for _, r := range s.registry.Resources() {
		if !r.Bag.GetBool(attrs.Enabled) {
			continue
		}

		switch {
		case r.HasCmd():
			if r.CheckCmd() {
				r.HandleCmd(s.sup)
			} else {
				r.TimedOutCmd(s.sup)
			}
		case resource.IsTransition(r.State):
			continue
		default:
			r.UpdatePoll(s.sup)
		}
	}
}
