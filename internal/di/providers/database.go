package providers

import (
	"path/filepath"

	"github.com/samber/do/v2"

	"github.com/crisrs/cris-server/internal/config"
	"github.com/crisrs/cris-server/internal/logger"
	"github.com/crisrs/cris-server/internal/store/sqlite"
)

// StoreHandle wraps the store with shutdown capability.
type StoreHandle struct {
	*sqlite.Store
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideStore provides the relational store, which also serves as the person directory.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	dbPath := filepath.Join(cfg.Data.BasePath, "cris.db")
	db, err := sqlite.Open(dbPath, log.Component("store"))
	if err != nil {
		return nil, err
	}

	log.Info("Database initialized", "path", dbPath)

	return &StoreHandle{Store: db}, nil
}
