package providers

import (
	"context"
	"path/filepath"

	"github.com/samber/do/v2"

	"github.com/crisrs/cris-server/internal/config"
	"github.com/crisrs/cris-server/internal/indexing"
	"github.com/crisrs/cris-server/internal/logger"
	"github.com/crisrs/cris-server/internal/metrics"
	"github.com/crisrs/cris-server/internal/multilingual"
	"github.com/crisrs/cris-server/internal/normalize"
	"github.com/crisrs/cris-server/internal/query"
	"github.com/crisrs/cris-server/internal/search"
	"github.com/crisrs/cris-server/internal/service"
)

// SearchIndexHandle wraps the search index with shutdown capability.
type SearchIndexHandle struct {
	*search.Index
}

// Shutdown implements do.Shutdownable.
func (h *SearchIndexHandle) Shutdown() error {
	return h.Close()
}

// ProvideSearchIndex provides the Bleve search index.
func ProvideSearchIndex(i do.Injector) (*SearchIndexHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	index, err := search.NewIndex(search.Options{
		DataPath: filepath.Join(cfg.Data.BasePath, "index"),
		Logger:   log.Component("search"),
	})
	if err != nil {
		return nil, err
	}

	docCount, _ := index.Count()
	log.Info("Search index initialized", "documents", docCount, "created", index.Created())

	return &SearchIndexHandle{Index: index}, nil
}

// ProvideReducer provides the multilingual reducer configured with the
// primary language and its close relatives.
func ProvideReducer(i do.Injector) (*multilingual.Reducer, error) {
	cfg := do.MustInvoke[*config.Config](i)
	return multilingual.NewReducer(normalize.NewLanguages(cfg.Language.Primary, cfg.Language.Related...)), nil
}

// ProvideIndexingService provides the document projection and indexing service.
func ProvideIndexingService(i do.Injector) (*indexing.Service, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	reducer := do.MustInvoke[*multilingual.Reducer](i)
	m := do.MustInvoke[*metrics.Metrics](i)
	log := do.MustInvoke[*logger.Logger](i)

	projector := indexing.NewProjector(reducer, indexing.NewFileTextAggregator(storeHandle.Store, reducer))
	return indexing.NewService(storeHandle.Store, indexHandle.Index, projector, m, log.Component("indexing")), nil
}

// ProvideSearchService provides the search service.
func ProvideSearchService(i do.Injector) (*service.SearchService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	m := do.MustInvoke[*metrics.Metrics](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewSearchService(indexHandle.Index, query.NewBuilder(nil), service.SearchConfig{
		DefaultPageSize: cfg.Search.DefaultPageSize,
		MaxPageSize:     cfg.Search.MaxPageSize,
		ThesisMinMatch:  cfg.Search.ThesisMinMatch,
	}, m, log.Component("search")), nil
}

// TriggerSearchReindexIfNeeded rebuilds the index in the background when it
// was created on this start (first run, mapping change or corruption) and
// the store already holds documents.
func TriggerSearchReindexIfNeeded(i do.Injector) {
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	indexer := do.MustInvoke[*indexing.Service](i)
	log := do.MustInvoke[*logger.Logger](i)

	if !indexHandle.Created() {
		return
	}

	ctx := context.Background()
	ids, err := storeHandle.ListDocumentIDs(ctx, 0, 1)
	if err != nil || len(ids) == 0 {
		return
	}

	log.Info("Search index was recreated but documents exist, triggering reindex")

	go func() {
		n, err := indexer.ReindexAll(context.Background())
		if err != nil {
			log.Error("Initial search reindex failed", "error", err)
			return
		}
		log.Info("Initial search reindex completed", "documents", n)
	}()
}
