package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/crisrs/cris-server/internal/claims"
	"github.com/crisrs/cris-server/internal/config"
	"github.com/crisrs/cris-server/internal/dedup"
	"github.com/crisrs/cris-server/internal/jobs"
	"github.com/crisrs/cris-server/internal/logger"
	"github.com/crisrs/cris-server/internal/metrics"
)

// Job names used in logs and metrics.
const (
	JobDedup          = "dedup"
	JobClaimDiscovery = "claim-discovery"
)

// JobsHandle holds the started periodic jobs.
type JobsHandle struct {
	Jobs []*jobs.Periodic
}

// Shutdown implements do.Shutdownable.
func (h *JobsHandle) Shutdown() error {
	for _, j := range h.Jobs {
		j.Stop()
	}
	return nil
}

// ProvideJobs starts the enabled periodic scanners.
func ProvideJobs(i do.Injector) (*JobsHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	m := do.MustInvoke[*metrics.Metrics](i)
	log := do.MustInvoke[*logger.Logger](i)

	jobsLog := log.Component("jobs")
	handle := &JobsHandle{}

	if cfg.Jobs.DedupEnabled {
		scanner := do.MustInvoke[*dedup.Scanner](i)
		handle.Jobs = append(handle.Jobs, jobs.NewPeriodic(JobDedup, cfg.Jobs.DedupInterval,
			func(ctx context.Context) error {
				_, err := scanner.Run(ctx)
				return err
			}, m, jobsLog))
	}

	if cfg.Jobs.ClaimDiscoveryEnabled {
		discovery := do.MustInvoke[*claims.Discovery](i)
		handle.Jobs = append(handle.Jobs, jobs.NewPeriodic(JobClaimDiscovery, cfg.Jobs.ClaimDiscoveryInterval,
			func(ctx context.Context) error {
				_, err := discovery.Run(ctx)
				return err
			}, m, jobsLog))
	}

	for _, j := range handle.Jobs {
		j.Start(context.Background())
	}

	log.Info("Periodic jobs started", "count", len(handle.Jobs))

	return handle, nil
}
