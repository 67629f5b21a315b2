package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/Akansha-Mulchandani/GAIA/internal/core"
)

// DefaultPollInterval is the fallback polling period.
const DefaultPollInterval = 800 * time.Millisecond

// FetchFunc reads the current state of job id. It must not retry; a failed
// tick is simply skipped.
type FetchFunc func(ctx context.Context, id int) (*core.Job, error)

// Poller periodically reads a job until told to stop.
type Poller struct {
	Fetch    FetchFunc
	Interval time.Duration
	Logger   *slog.Logger
}

// Run polls job id every Interval and hands each observation to observe.
// It returns when ctx is done or observe returns true.
func (p *Poller) Run(ctx context.Context, id int, observe func(*core.Job) (stop bool)) {
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			job, err := p.Fetch(ctx, id)
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				logger.Debug("job poll failed", "job_id", id, "error", err)
				continue
			}
			if job == nil {
				continue
			}
			if observe(job) {
				return
			}
		}
	}
}

// IsPollTerminal decides whether a polled job has finished. A completed job
// only counts once its results are attached.
func IsPollTerminal(job *core.Job) bool {
	if !job.Status.IsTerminal() {
		return false
	}
	return job.Status != core.StatusCompleted || job.HasResults()
}
