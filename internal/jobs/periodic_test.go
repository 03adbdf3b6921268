package jobs

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/crisrs/cris-server/internal/errors"
	"github.com/crisrs/cris-server/internal/logger"
	"github.com/crisrs/cris-server/internal/metrics"
)

func TestRunOnce_RecordsStatus(t *testing.T) {
	m := metrics.New(nil)
	fail := false
	job := NewPeriodic("dedup", time.Hour, func(context.Context) error {
		if fail {
			return errors.New("index closed")
		}
		return nil
	}, m, logger.Discard())

	assert.True(t, job.RunOnce(context.Background()))
	fail = true
	assert.True(t, job.RunOnce(context.Background()))

	assert.InDelta(t, 1, testutil.ToFloat64(m.JobRunsTotal.WithLabelValues("dedup", metrics.StatusOK)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.JobRunsTotal.WithLabelValues("dedup", metrics.StatusError)), 0)
}

func TestRunOnce_RetryableErrorLogsWarning(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		level string
	}{
		{"unavailable", domainerrors.Wrap(errors.New("connection refused"), domainerrors.CodeUnavailable, "tika"), `"level":"WARN"`},
		{"internal", errors.New("index closed"), `"level":"ERROR"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			log := logger.New(logger.Config{Format: "json", Level: slog.LevelDebug, Writer: &buf})
			job := NewPeriodic("dedup", time.Hour, func(context.Context) error { return tt.err }, nil, log.Logger)

			job.RunOnce(context.Background())
			assert.Contains(t, buf.String(), tt.level)
			assert.Contains(t, buf.String(), `"msg":"job run failed"`)
		})
	}
}

func TestRunOnce_SkipsWhileRunning(t *testing.T) {
	m := metrics.New(nil)
	started := make(chan struct{})
	release := make(chan struct{})
	job := NewPeriodic("claims", time.Hour, func(context.Context) error {
		close(started)
		<-release
		return nil
	}, m, logger.Discard())

	done := make(chan bool)
	go func() { done <- job.RunOnce(context.Background()) }()
	<-started

	assert.False(t, job.RunOnce(context.Background()))
	close(release)
	assert.True(t, <-done)

	assert.InDelta(t, 1, testutil.ToFloat64(m.JobRunsTotal.WithLabelValues("claims", metrics.StatusSkipped)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.JobRunsTotal.WithLabelValues("claims", metrics.StatusOK)), 0)
}

func TestStart_RunsOnTicks(t *testing.T) {
	var runs atomic.Int32
	job := NewPeriodic("dedup", 5*time.Millisecond, func(context.Context) error {
		runs.Add(1)
		return nil
	}, nil, logger.Discard())

	job.Start(context.Background())
	job.Start(context.Background())

	require.Eventually(t, func() bool { return runs.Load() >= 3 }, time.Second, time.Millisecond)

	job.Stop()
	stopped := runs.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, stopped, runs.Load())

	// Stop is idempotent.
	job.Stop()
}

func TestStop_CancelsActiveRun(t *testing.T) {
	started := make(chan struct{})
	var canceled atomic.Bool
	job := NewPeriodic("claims", time.Millisecond, func(ctx context.Context) error {
		select {
		case <-started:
		default:
			close(started)
		}
		<-ctx.Done()
		canceled.Store(true)
		return ctx.Err()
	}, nil, logger.Discard())

	job.Start(context.Background())
	<-started
	job.Stop()

	assert.True(t, canceled.Load())
}
