package providers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/samber/do/v2"

	"github.com/crisrs/cris-server/internal/config"
	"github.com/crisrs/cris-server/internal/logger"
	"github.com/crisrs/cris-server/internal/metrics"
	"github.com/crisrs/cris-server/internal/ops"
)

// OpsServerHandle wraps the ops listener with shutdown capability.
// Server is nil when no listen address is configured.
type OpsServerHandle struct {
	Server *http.Server
}

// Shutdown implements do.Shutdownable.
func (h *OpsServerHandle) Shutdown() error {
	if h.Server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Server.Shutdown(ctx)
}

// ProvideOpsServer starts the health and metrics listener.
func ProvideOpsServer(i do.Injector) (*OpsServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	m := do.MustInvoke[*metrics.Metrics](i)
	log := do.MustInvoke[*logger.Logger](i)

	if cfg.Ops.Addr == "" {
		return &OpsServerHandle{}, nil
	}

	handler := ops.NewServer(m, map[string]ops.Check{
		"database": func(context.Context) error { return storeHandle.Ping() },
		"search": func(context.Context) error {
			_, err := indexHandle.Count()
			return err
		},
	}, log.Component("ops"))

	srv := &http.Server{
		Addr:              cfg.Ops.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("Ops server listening", "addr", cfg.Ops.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Ops server failed", "error", err)
		}
	}()

	return &OpsServerHandle{Server: srv}, nil
}
