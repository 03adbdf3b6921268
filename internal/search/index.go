package search

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/crisrs/cris-server/internal/domain"
	domainerrors "github.com/crisrs/cris-server/internal/errors"
)

// ErrEntryNotFound is returned by FindByID when no entry exists for the id.
var ErrEntryNotFound = domainerrors.NotFound("index entry not found")

// Index wraps a Bleve index of document entries.
//
// Thread safety: All public methods are safe for concurrent use.
// The mutex protects against index corruption during rebuild operations.
type Index struct {
	index  bleve.Index
	path   string
	logger *slog.Logger
	mu     sync.RWMutex

	created bool
}

// Options configures the search index.
type Options struct {
	DataPath string       // Directory for index storage
	Logger   *slog.Logger // Logger for operations (stderr text handler if nil)
}

// mappingVersion is incremented whenever the index mapping changes.
// A mismatch on startup drops the index; callers reindex from the store.
const mappingVersion = "cris-2"

// NewIndex creates or opens a search index.
// If the existing index is corrupted or has an outdated mapping, it's removed and recreated,
// and Created reports true so the caller can run a full reindex.
func NewIndex(opts Options) (*Index, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}

	if err := os.MkdirAll(opts.DataPath, 0o755); err != nil {
		return nil, fmt.Errorf("create index directory: %w", err)
	}

	indexPath := filepath.Join(opts.DataPath, "documents.bleve")
	versionPath := filepath.Join(opts.DataPath, "documents.version")

	var index bleve.Index
	needsRebuild := false

	if _, statErr := os.Stat(indexPath); statErr == nil {
		existingVersion, readErr := os.ReadFile(versionPath)
		switch {
		case readErr != nil:
			logger.Info("search index has no version file, will rebuild", "new_version", mappingVersion)
			needsRebuild = true
		case string(existingVersion) != mappingVersion:
			logger.Info("search index mapping version changed, will rebuild",
				"old_version", string(existingVersion),
				"new_version", mappingVersion,
			)
			needsRebuild = true
		default:
			opened, err := bleve.Open(indexPath)
			if err != nil {
				logger.Warn("failed to open existing index, will recreate", "path", indexPath, "error", err)
				needsRebuild = true
			} else {
				index = opened
			}
		}
	}

	if needsRebuild {
		if err := os.RemoveAll(indexPath); err != nil {
			return nil, fmt.Errorf("remove old index: %w", err)
		}
	}

	created := index == nil
	if created {
		fresh, err := createIndex(indexPath)
		if err != nil {
			return nil, err
		}
		index = fresh
		if err := os.WriteFile(versionPath, []byte(mappingVersion), 0o644); err != nil {
			logger.Warn("failed to write search version file", "error", err)
		}
		logger.Info("created new search index", "path", indexPath, "mapping_version", mappingVersion)
	} else {
		logger.Info("opened existing search index", "path", indexPath)
	}

	return &Index{
		index:   index,
		path:    indexPath,
		logger:  logger,
		created: created,
	}, nil
}

// Created reports whether NewIndex started from an empty index.
func (s *Index) Created() bool {
	return s.created
}

func createIndex(path string) (bleve.Index, error) {
	indexMapping, err := buildIndexMapping()
	if err != nil {
		return nil, err
	}
	index, err := bleve.New(path, indexMapping)
	if err != nil {
		return nil, fmt.Errorf("create index: %w", err)
	}
	return index, nil
}

// Close closes the index and releases resources.
func (s *Index) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index.Close()
}

// Upsert writes the whole entry, replacing any previous version.
func (s *Index) Upsert(_ context.Context, e *Entry) error {
	source, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode entry %d: %w", e.DatabaseID, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.index.Index(e.DocID(), e.ToMap(string(source))); err != nil {
		return fmt.Errorf("index entry %d: %w", e.DatabaseID, err)
	}
	return nil
}

// UpsertAll writes entries in batches.
// For large sets, entries are committed in chunks to bound memory.
func (s *Index) UpsertAll(_ context.Context, entries []*Entry) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	const batchSize = 500

	for i := 0; i < len(entries); i += batchSize {
		end := min(i+batchSize, len(entries))

		batch := s.index.NewBatch()
		for _, e := range entries[i:end] {
			source, err := json.Marshal(e)
			if err != nil {
				return fmt.Errorf("encode entry %d: %w", e.DatabaseID, err)
			}
			if err := batch.Index(e.DocID(), e.ToMap(string(source))); err != nil {
				return fmt.Errorf("batch index %d: %w", e.DatabaseID, err)
			}
		}

		if err := s.index.Batch(batch); err != nil {
			return fmt.Errorf("commit batch %d-%d: %w", i, end, err)
		}
	}

	return nil
}

// Delete removes the entry for a document. Deleting a missing entry is not an error.
func (s *Index) Delete(_ context.Context, id int64) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.index.Delete(DocID(id)); err != nil {
		return fmt.Errorf("delete entry %d: %w", id, err)
	}
	return nil
}

// Count returns the total number of indexed entries.
func (s *Index) Count() (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.DocCount()
}

// FindByID returns the entry for a document, or ErrEntryNotFound.
func (s *Index) FindByID(ctx context.Context, id int64) (*Entry, error) {
	q := bleve.NewDocIDQuery([]string{DocID(id)})
	page, err := s.Run(ctx, q, PageRequest{Size: 1})
	if err != nil {
		return nil, err
	}
	if len(page.Entries) == 0 {
		return nil, ErrEntryNotFound
	}
	return page.Entries[0], nil
}

// FindOrNew returns the entry for a document, or an empty entry keyed by id.
func (s *Index) FindOrNew(ctx context.Context, id int64) (*Entry, error) {
	e, err := s.FindByID(ctx, id)
	if domainerrors.Is(err, ErrEntryNotFound) {
		return NewEntry(id), nil
	}
	return e, err
}

// FindByTypeIn pages through entries of any of the given types, ordered by id.
func (s *Index) FindByTypeIn(ctx context.Context, types []domain.DocumentType, page PageRequest) (*Page, error) {
	disjuncts := make([]query.Query, len(types))
	for i, t := range types {
		tq := bleve.NewTermQuery(string(t))
		tq.SetField(FieldType)
		disjuncts[i] = tq
	}
	page.Sort = []string{FieldDatabaseID}
	return s.Run(ctx, bleve.NewDisjunctionQuery(disjuncts...), page)
}

// FindByAuthorID pages through entries listing authorID in an author slot,
// ordered by id. UnresolvedID enumerates entries with unclaimed slots.
func (s *Index) FindByAuthorID(ctx context.Context, authorID int64, page PageRequest) (*Page, error) {
	tq := bleve.NewTermQuery(IDTerm(authorID))
	tq.SetField(FieldAuthorIDs)
	page.Sort = []string{FieldDatabaseID}
	return s.Run(ctx, tq, page)
}

// FindByClaimer pages through entries where personID holds a claim.
func (s *Index) FindByClaimer(ctx context.Context, personID int64, page PageRequest) (*Page, error) {
	tq := bleve.NewTermQuery(IDTerm(personID))
	tq.SetField(FieldClaimedPersonIDs)
	if len(page.Sort) == 0 {
		page.Sort = []string{FieldDatabaseID}
	}
	return s.Run(ctx, tq, page)
}

// All pages through every entry ordered by id.
func (s *Index) All(ctx context.Context, page PageRequest) (*Page, error) {
	page.Sort = []string{FieldDatabaseID}
	return s.Run(ctx, bleve.NewMatchAllQuery(), page)
}

// Run executes a query tree and decodes one page of entries.
// Without an explicit sort, hits are ordered by score with the id as tie-breaker.
func (s *Index) Run(ctx context.Context, q query.Query, page PageRequest) (*Page, error) {
	page = page.normalized()

	req := bleve.NewSearchRequestOptions(q, page.Size, page.Offset(), false)
	req.Fields = []string{FieldSource}
	if len(page.Sort) > 0 {
		req.SortBy(page.Sort)
	} else {
		req.SortBy([]string{"-_score", FieldDatabaseID})
	}

	s.mu.RLock()
	res, err := s.index.SearchInContext(ctx, req)
	s.mu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("execute search: %w", err)
	}

	out := &Page{
		Entries: make([]*Entry, 0, len(res.Hits)),
		Total:   res.Total,
		Number:  page.Number,
		Size:    page.Size,
	}
	for _, hit := range res.Hits {
		source, ok := hit.Fields[FieldSource].(string)
		if !ok {
			s.logger.Warn("index hit without stored source", "doc_id", hit.ID)
			continue
		}
		var e Entry
		if err := json.Unmarshal([]byte(source), &e); err != nil {
			return nil, fmt.Errorf("decode entry %s: %w", hit.ID, err)
		}
		out.Entries = append(out.Entries, &e)
	}
	return out, nil
}

// Rebuild drops the existing index and creates a new one.
//
// IMPORTANT: This acquires an exclusive lock and blocks all other operations.
func (s *Index) Rebuild() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.index.Close(); err != nil {
		return fmt.Errorf("close index: %w", err)
	}
	if err := os.RemoveAll(s.path); err != nil {
		return fmt.Errorf("remove index: %w", err)
	}

	index, err := createIndex(s.path)
	if err != nil {
		return err
	}
	s.index = index
	s.logger.Info("rebuilt search index", "path", s.path)

	return nil
}
