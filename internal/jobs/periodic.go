// Package jobs runs the background scanners on fixed intervals.
package jobs

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	domainerrors "github.com/crisrs/cris-server/internal/errors"
	"github.com/crisrs/cris-server/internal/metrics"
)

// Func is one run of a job. A returned error aborts that run only.
type Func func(ctx context.Context) error

// Periodic runs a Func on a ticker. A run never overlaps a previous run of
// the same job; the tick is skipped instead.
type Periodic struct {
	name     string
	interval time.Duration
	fn       Func
	metrics  *metrics.Metrics
	logger   *slog.Logger

	running atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewPeriodic creates a job. It does nothing until Start.
func NewPeriodic(name string, interval time.Duration, fn Func, m *metrics.Metrics, logger *slog.Logger) *Periodic {
	if logger == nil {
		logger = slog.Default()
	}
	return &Periodic{
		name:     name,
		interval: interval,
		fn:       fn,
		metrics:  m,
		logger:   logger.With("job", name),
	}
}

// Name returns the job name used in logs and metrics.
func (p *Periodic) Name() string {
	return p.name
}

// Start launches the ticker loop. The first run happens after one interval.
// Calling Start on a started job does nothing.
func (p *Periodic) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}

	ctx, p.cancel = context.WithCancel(ctx)
	p.done = make(chan struct{})

	go func() {
		defer close(p.done)

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				p.RunOnce(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()

	p.logger.Info("job scheduled", "interval", p.interval)
}

// Stop cancels the loop and waits for an active run to return.
func (p *Periodic) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// RunOnce runs the job now unless a run is already active. It reports
// whether the job ran. Errors are logged and counted, never returned.
func (p *Periodic) RunOnce(ctx context.Context) bool {
	if !p.running.CompareAndSwap(false, true) {
		p.logger.Debug("previous run still active, skipping")
		p.metrics.ObserveJob(p.name, metrics.StatusSkipped, 0)
		return false
	}
	defer p.running.Store(false)

	start := time.Now()
	err := p.fn(ctx)
	elapsed := time.Since(start)

	if err != nil {
		level := slog.LevelError
		var domainErr *domainerrors.Error
		if domainerrors.As(err, &domainErr) && domainErr.Code.Retryable() {
			level = slog.LevelWarn
		}
		p.logger.Log(ctx, level, "job run failed", "duration", elapsed, "error", err)
		p.metrics.ObserveJob(p.name, metrics.StatusError, elapsed)
		return true
	}
	p.logger.Debug("job run finished", "duration", elapsed)
	p.metrics.ObserveJob(p.name, metrics.StatusOK, elapsed)
	return true
}
