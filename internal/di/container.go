// Package di provides dependency injection configuration for the CRIS indexing server.
package di

import (
	"github.com/samber/do/v2"

	"github.com/crisrs/cris-server/internal/claims"
	"github.com/crisrs/cris-server/internal/config"
	"github.com/crisrs/cris-server/internal/dedup"
	"github.com/crisrs/cris-server/internal/di/providers"
	"github.com/crisrs/cris-server/internal/indexing"
	"github.com/crisrs/cris-server/internal/logger"
	"github.com/crisrs/cris-server/internal/metrics"
	"github.com/crisrs/cris-server/internal/multilingual"
	"github.com/crisrs/cris-server/internal/service"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()
	Register(injector)
	return injector
}

// Register adds every provider to injector. Tools that load configuration
// themselves override ProvideConfig afterwards with do.OverrideValue.
func Register(injector do.Injector) {
	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideMetrics)

	// Storage layer
	do.Provide(injector, providers.ProvideStore)
	do.Provide(injector, providers.ProvideSearchIndex)

	// Indexing and search
	do.Provide(injector, providers.ProvideReducer)
	do.Provide(injector, providers.ProvideIndexingService)
	do.Provide(injector, providers.ProvideSearchService)
	do.Provide(injector, providers.ProvideExtraction)

	// Claims and duplicates
	do.Provide(injector, providers.ProvideNotifier)
	do.Provide(injector, providers.ProvideClaimLimiter)
	do.Provide(injector, providers.ProvideClaimResolver)
	do.Provide(injector, providers.ProvideClaimDiscovery)
	do.Provide(injector, providers.ProvideDedupScanner)

	// Workers
	do.Provide(injector, providers.ProvideJobs)

	// Server
	do.Provide(injector, providers.ProvideOpsServer)
}

// Bootstrap initializes all services and starts the background work.
// This triggers lazy initialization of all core services.
func Bootstrap(injector do.Injector) error {
	if _, err := do.Invoke[*config.Config](injector); err != nil {
		return err
	}
	_ = do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[*metrics.Metrics](injector)

	if _, err := do.Invoke[*providers.StoreHandle](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*providers.SearchIndexHandle](injector); err != nil {
		return err
	}

	_ = do.MustInvoke[*multilingual.Reducer](injector)
	_ = do.MustInvoke[*indexing.Service](injector)
	_ = do.MustInvoke[*service.SearchService](injector)
	_ = do.MustInvoke[*providers.ExtractionHandle](injector)

	_ = do.MustInvoke[*providers.NotifierHandle](injector)
	_ = do.MustInvoke[*claims.Resolver](injector)
	_ = do.MustInvoke[*claims.Discovery](injector)
	_ = do.MustInvoke[*dedup.Scanner](injector)

	// Trigger search reindex if needed, before jobs scan the index
	providers.TriggerSearchReindexIfNeeded(injector)

	// Workers
	_ = do.MustInvoke[*providers.JobsHandle](injector)

	// Server
	_ = do.MustInvoke[*providers.OpsServerHandle](injector)

	return nil
}
