// Package jobs tracks long-running backend jobs to their terminal state by
// racing a realtime subscription against a polling fallback.
package jobs

import (
	"sync"

	"github.com/Akansha-Mulchandani/GAIA/internal/core"
)

// Sources of a terminal observation.
const (
	SourceRealtime = "realtime"
	SourcePoll     = "poll"
)

// TerminalCell is a single-assignment slot for a job's terminal state.
// Only the first Set succeeds; later writers are no-ops.
type TerminalCell struct {
	mu     sync.Mutex
	done   chan struct{}
	job    *core.Job
	source string
}

// NewTerminalCell creates an empty cell.
func NewTerminalCell() *TerminalCell {
	return &TerminalCell{done: make(chan struct{})}
}

// Set records job as terminal. It returns true only for the first caller.
func (c *TerminalCell) Set(job *core.Job, source string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.job != nil {
		return false
	}
	c.job = job
	c.source = source
	close(c.done)
	return true
}

// Done is closed once the cell holds a value.
func (c *TerminalCell) Done() <-chan struct{} {
	return c.done
}

// IsSet reports whether a terminal state was recorded.
func (c *TerminalCell) IsSet() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.job != nil
}

// Get returns the recorded job and the source that observed it.
func (c *TerminalCell) Get() (job *core.Job, source string, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.job, c.source, c.job != nil
}
