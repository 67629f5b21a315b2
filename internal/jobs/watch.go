package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"github.com/Akansha-Mulchandani/GAIA/internal/core"
	"github.com/Akansha-Mulchandani/GAIA/internal/metrics"
	"github.com/Akansha-Mulchandani/GAIA/internal/realtime"
)

// ErrStopped is returned by Wait when the watch was torn down before the job
// reached a terminal state.
var ErrStopped = errors.New("job watch stopped before completion")

// EventSource is the subset of the realtime client a watch needs.
type EventSource interface {
	On(event string, h realtime.Handler) (off func())
}

// WatchConfig configures Watch. At least one of Poller and Events must be set.
type WatchConfig struct {
	JobID  int
	Poller *Poller
	Events EventSource
	Logger *slog.Logger

	// OnProgress receives non-terminal observations. It is never called after
	// OnTerminal.
	OnProgress func(job *core.Job)
	// OnTerminal is called exactly once with the first terminal observation.
	OnTerminal func(job *core.Job, source string)
}

// Watcher follows one job until it is terminal or stopped.
type Watcher struct {
	id     int
	cell   *TerminalCell
	cancel context.CancelFunc
	logger *slog.Logger

	onProgress func(*core.Job)
	onTerminal func(*core.Job, string)

	// mu serialises callbacks so progress never follows the terminal update.
	mu sync.Mutex

	offMu sync.Mutex
	offs  []func()

	ctx       context.Context
	poller    *Poller
	startOnce sync.Once
}

// Watch subscribes to realtime events for cfg.JobID, then starts the poller.
// Whichever path first observes a terminal state wins; the other is torn
// down immediately.
func Watch(ctx context.Context, cfg WatchConfig) (*Watcher, error) {
	w, err := Subscribe(ctx, cfg)
	if err != nil {
		return nil, err
	}
	w.StartPolling()
	return w, nil
}

// Subscribe registers the realtime handlers for cfg.JobID without polling.
// Callers issue the job-starting command after Subscribe returns and then
// call StartPolling, so no event emitted by the run is missed.
func Subscribe(ctx context.Context, cfg WatchConfig) (*Watcher, error) {
	if cfg.Poller == nil && cfg.Events == nil {
		return nil, errors.New("watch needs a poller or an event source")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	watchCtx, cancel := context.WithCancel(ctx)
	w := &Watcher{
		id:         cfg.JobID,
		cell:       NewTerminalCell(),
		cancel:     cancel,
		logger:     logger,
		onProgress: cfg.OnProgress,
		onTerminal: cfg.OnTerminal,
		ctx:        watchCtx,
		poller:     cfg.Poller,
	}

	if cfg.Events != nil {
		w.offs = append(w.offs,
			cfg.Events.On(core.EventSimProgress, w.handleProgressEvent),
			cfg.Events.On(core.EventSimCompleted, w.handleCompletedEvent),
		)
	}

	// Cancellation of the caller's context tears down the subscriptions too.
	go func() {
		<-watchCtx.Done()
		w.unsubscribe()
	}()

	return w, nil
}

// StartPolling starts the poller, if any. It is a no-op after the first call
// and once the watch is stopped or terminal.
func (w *Watcher) StartPolling() {
	if w.poller == nil {
		return
	}
	w.startOnce.Do(func() {
		if w.ctx.Err() != nil {
			return
		}
		go w.poller.Run(w.ctx, w.id, w.observePoll)
	})
}

// Wait blocks until the job is terminal, the watch is stopped, or ctx is done.
func (w *Watcher) Wait(ctx context.Context) (*core.Job, error) {
	select {
	case <-w.cell.Done():
		job, _, _ := w.cell.Get()
		return job, nil
	case <-w.ctx.Done():
		if job, _, ok := w.cell.Get(); ok {
			return job, nil
		}
		return nil, ErrStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Stop tears down both the poller and the event subscriptions. It is safe to
// call repeatedly and from within callbacks.
func (w *Watcher) Stop() {
	w.cancel()
	w.unsubscribe()
}

// Done is closed once the job reached a terminal state.
func (w *Watcher) Done() <-chan struct{} {
	return w.cell.Done()
}

// Result returns the terminal job and the path that observed it.
func (w *Watcher) Result() (job *core.Job, source string, ok bool) {
	return w.cell.Get()
}

func (w *Watcher) unsubscribe() {
	w.offMu.Lock()
	offs := w.offs
	w.offs = nil
	w.offMu.Unlock()
	for _, off := range offs {
		off()
	}
}

func (w *Watcher) progress(job *core.Job) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cell.IsSet() || w.onProgress == nil {
		return
	}
	w.onProgress(job)
}

func (w *Watcher) finish(job *core.Job, source string) {
	w.mu.Lock()
	won := w.cell.Set(job, source)
	if won {
		metrics.JobTerminal.WithLabelValues(string(job.Status), source).Inc()
		w.logger.Info("job reached terminal state",
			"job_id", w.id,
			"status", job.Status,
			"source", source,
		)
		if w.onTerminal != nil {
			w.onTerminal(job, source)
		}
	}
	w.mu.Unlock()

	if won {
		w.Stop()
	}
}

func (w *Watcher) observePoll(job *core.Job) bool {
	job.Progress = core.ClampProgress(job.Progress)
	if IsPollTerminal(job) {
		w.finish(job, SourcePoll)
		return true
	}
	w.progress(job)
	return false
}

func (w *Watcher) handleProgressEvent(ev *core.Event) {
	var p core.ProgressEvent
	if err := json.Unmarshal(ev.Data, &p); err != nil || p.SimulationID != w.id {
		return
	}
	w.progress(&core.Job{
		ID:       p.SimulationID,
		Status:   core.StatusRunning,
		Phase:    p.Phase,
		Progress: core.ClampProgress(p.Progress),
	})
}

func (w *Watcher) handleCompletedEvent(ev *core.Event) {
	var c core.CompletedEvent
	if err := json.Unmarshal(ev.Data, &c); err != nil || c.SimulationID != w.id {
		return
	}
	w.finish(&core.Job{
		ID:       c.SimulationID,
		Status:   core.StatusCompleted,
		Phase:    string(core.StatusCompleted),
		Progress: 100,
		Results:  c.Results,
	}, SourceRealtime)
}
