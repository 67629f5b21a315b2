// Package scheduler runs the gateway's background work: cron-scheduled cache
// warming and the periodic backend readiness probe.
package scheduler

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Akansha-Mulchandani/GAIA/internal/client"
	"github.com/Akansha-Mulchandani/GAIA/internal/metrics"
)

const (
	warmTimeout  = 10 * time.Second
	probeTimeout = 3 * time.Second
)

// Refresher re-fetches a read endpoint into the shared cache.
type Refresher interface {
	Refresh(ctx context.Context, path string, opts client.CacheOptions) (json.RawMessage, error)
}

// Config configures a Scheduler.
type Config struct {
	Refresher Refresher
	Targets   []WarmTarget
	// WarmOnStart refreshes every target once when the scheduler starts.
	WarmOnStart bool

	// Probe checks backend reachability; nil disables the probe loop.
	Probe         func(ctx context.Context) error
	ProbeInterval time.Duration
	// OnProbe receives the result of each probe.
	OnProbe func(up bool)

	Logger *slog.Logger
}

// Scheduler runs background tasks for the gateway.
type Scheduler struct {
	cfg      Config
	cron     *cron.Cron
	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	logger   *slog.Logger
}

// New creates a new Scheduler.
func New(cfg Config) *Scheduler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ProbeInterval <= 0 {
		cfg.ProbeInterval = 15 * time.Second
	}
	return &Scheduler{
		cfg:    cfg,
		cron:   cron.New(cron.WithParser(parser)),
		stop:   make(chan struct{}),
		logger: logger,
	}
}

// Start registers the warm targets and begins all background goroutines.
func (s *Scheduler) Start() error {
	if s.cfg.Refresher != nil {
		for _, target := range s.cfg.Targets {
			if _, err := s.cron.AddFunc(target.Schedule, func() { s.warm(target) }); err != nil {
				return err
			}
			s.logger.Info("cache warm target registered", "path", target.Path, "schedule", target.Schedule)
		}
		if s.cfg.WarmOnStart {
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				for _, target := range s.cfg.Targets {
					s.warm(target)
				}
			}()
		}
	}
	s.cron.Start()

	if s.cfg.Probe != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := s.probeOnce(context.Background()); err != nil {
				s.logger.Warn("backend probe failed", "error", err)
			}
			s.runLoop("backend-probe", s.cfg.ProbeInterval, s.probeOnce)
		}()
	}
	return nil
}

// Stop signals all background goroutines to stop and waits for running jobs.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
		if s.cron != nil {
			<-s.cron.Stop().Done()
		}
		s.wg.Wait()
	})
}

func (s *Scheduler) runLoop(name string, interval time.Duration, fn func(context.Context) error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := fn(ctx); err != nil {
				s.logger.Error("scheduler loop error", "loop", name, "error", err)
			}
			cancel()
		}
	}
}

// warm refreshes one target. Failures are logged and never fatal.
func (s *Scheduler) warm(target WarmTarget) {
	ctx, cancel := context.WithTimeout(context.Background(), warmTimeout)
	defer cancel()

	opts := client.DefaultCacheOptions()
	opts.Retries = 0
	if _, err := s.cfg.Refresher.Refresh(ctx, target.Path, opts); err != nil {
		metrics.CacheWarms.WithLabelValues(target.Path, "error").Inc()
		s.logger.Warn("cache warm failed", "path", target.Path, "error", err)
		return
	}
	metrics.CacheWarms.WithLabelValues(target.Path, "ok").Inc()
	s.logger.Debug("cache warmed", "path", target.Path)
}

func (s *Scheduler) probeOnce(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	err := s.cfg.Probe(ctx)
	up := err == nil
	if up {
		metrics.BackendUp.Set(1)
	} else {
		metrics.BackendUp.Set(0)
	}
	if s.cfg.OnProbe != nil {
		s.cfg.OnProbe(up)
	}
	return err
}
