package providers

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/do/v2"

	"github.com/crisrs/cris-server/internal/claims"
	"github.com/crisrs/cris-server/internal/config"
	"github.com/crisrs/cris-server/internal/dedup"
	"github.com/crisrs/cris-server/internal/extraction"
	"github.com/crisrs/cris-server/internal/indexing"
	"github.com/crisrs/cris-server/internal/logger"
	"github.com/crisrs/cris-server/internal/metrics"
	"github.com/crisrs/cris-server/internal/notify"
	"github.com/crisrs/cris-server/internal/ratelimit"
)

// ProvideMetrics provides the Prometheus collectors, registered on the default registry.
func ProvideMetrics(i do.Injector) (*metrics.Metrics, error) {
	return metrics.New(prometheus.DefaultRegisterer), nil
}

// NotifierHandle wraps the notification dispatcher with shutdown capability.
type NotifierHandle struct {
	notify.Dispatcher
	close func() error
}

// Shutdown implements do.Shutdownable.
func (h *NotifierHandle) Shutdown() error {
	if h.close == nil {
		return nil
	}
	return h.close()
}

// ProvideNotifier provides the Kafka dispatcher when brokers are configured,
// and a logging dispatcher otherwise.
func ProvideNotifier(i do.Injector) (*NotifierHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if len(cfg.Notify.KafkaBrokers) == 0 {
		log.Info("Notifications are logged, no Kafka brokers configured")
		return &NotifierHandle{Dispatcher: notify.NewLogDispatcher(log.Component("notify"))}, nil
	}

	d := notify.NewKafkaDispatcher(cfg.Notify.KafkaBrokers, cfg.Notify.KafkaTopic, log.Component("notify"))
	log.Info("Kafka notifications enabled", "brokers", cfg.Notify.KafkaBrokers, "topic", cfg.Notify.KafkaTopic)
	return &NotifierHandle{Dispatcher: d, close: d.Close}, nil
}

// ClaimLimiterHandle wraps the per-user claim limiter with shutdown capability.
type ClaimLimiterHandle struct {
	*ratelimit.UserLimiter
}

// Shutdown implements do.Shutdownable.
func (h *ClaimLimiterHandle) Shutdown() error {
	h.Stop()
	return nil
}

// ProvideClaimLimiter provides the rate limiter for claim and decline calls.
func ProvideClaimLimiter(i do.Injector) (*ClaimLimiterHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	return &ClaimLimiterHandle{UserLimiter: ratelimit.New(cfg.RateLimit.ClaimRPS, cfg.RateLimit.ClaimBurst)}, nil
}

// ProvideClaimResolver provides the interactive claim resolver. There is one
// resolver per process since it owns the claim lock.
func ProvideClaimResolver(i do.Injector) (*claims.Resolver, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	limiter := do.MustInvoke[*ClaimLimiterHandle](i)
	m := do.MustInvoke[*metrics.Metrics](i)
	log := do.MustInvoke[*logger.Logger](i)

	return claims.NewResolver(indexHandle.Index, storeHandle.Store, limiter, m, log.Component("claims")), nil
}

// ProvideClaimDiscovery provides the claim discovery job body.
func ProvideClaimDiscovery(i do.Injector) (*claims.Discovery, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	notifier := do.MustInvoke[*NotifierHandle](i)
	m := do.MustInvoke[*metrics.Metrics](i)
	log := do.MustInvoke[*logger.Logger](i)

	return claims.NewDiscovery(indexHandle.Index, storeHandle.Store, storeHandle.Store, notifier,
		claims.DiscoveryConfig{ChunkSize: cfg.Jobs.ClaimDiscoveryChunk},
		m, log.Component("claim-discovery")), nil
}

// ProvideDedupScanner provides the duplicate scanner job body.
func ProvideDedupScanner(i do.Injector) (*dedup.Scanner, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	m := do.MustInvoke[*metrics.Metrics](i)
	log := do.MustInvoke[*logger.Logger](i)

	return dedup.NewScanner(indexHandle.Index, storeHandle.Store, dedup.Config{
		ChunkSize:     cfg.Jobs.DedupChunkSize,
		MaxCandidates: cfg.Jobs.DedupMaxCandidates,
	}, m, log.Component("dedup")), nil
}

// ExtractionHandle holds the extraction service. Service is nil when no Tika
// server is configured.
type ExtractionHandle struct {
	Service *extraction.Service
}

// ProvideExtraction provides the Tika backed extraction service.
func ProvideExtraction(i do.Injector) (*ExtractionHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	indexer := do.MustInvoke[*indexing.Service](i)
	log := do.MustInvoke[*logger.Logger](i)

	if cfg.Extraction.TikaURL == "" {
		log.Info("File text extraction disabled, no Tika URL configured")
		return &ExtractionHandle{}, nil
	}

	extractor := extraction.NewTikaExtractor(cfg.Extraction.TikaURL, cfg.Extraction.Timeout)
	log.Info("File text extraction enabled", "tika_url", cfg.Extraction.TikaURL)
	return &ExtractionHandle{
		Service: extraction.NewService(extractor, storeHandle.Store, indexer, log.Component("extraction")),
	}, nil
}
