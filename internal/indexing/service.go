package indexing

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/crisrs/cris-server/internal/domain"
	domainerrors "github.com/crisrs/cris-server/internal/errors"
	"github.com/crisrs/cris-server/internal/metrics"
	"github.com/crisrs/cris-server/internal/search"
)

// reindexPageSize bounds how many documents a full reindex holds at once.
const reindexPageSize = 200

// DocumentSource reads canonical documents.
type DocumentSource interface {
	GetDocument(ctx context.Context, id int64) (*domain.Document, error)
	ListDocumentIDs(ctx context.Context, afterID int64, limit int) ([]int64, error)
}

// EntryStore is the part of the search index the service writes to.
type EntryStore interface {
	FindOrNew(ctx context.Context, id int64) (*search.Entry, error)
	Upsert(ctx context.Context, e *search.Entry) error
	UpsertAll(ctx context.Context, entries []*search.Entry) error
	Delete(ctx context.Context, id int64) error
	Rebuild() error
}

// Service keeps index entries in step with document writes.
type Service struct {
	docs      DocumentSource
	entries   EntryStore
	projector *Projector
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewService creates an indexing service.
func NewService(docs DocumentSource, entries EntryStore, projector *Projector, m *metrics.Metrics, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		docs:      docs,
		entries:   entries,
		projector: projector,
		metrics:   m,
		logger:    logger,
	}
}

// IndexDocument refreshes the entry of one document. Call it after every
// create, update or approval change. An approval-gated document that is not
// approved has its entry removed instead.
func (s *Service) IndexDocument(ctx context.Context, id int64) error {
	doc, err := s.docs.GetDocument(ctx, id)
	if err != nil {
		return fmt.Errorf("load document %d: %w", id, err)
	}

	if !doc.Searchable() {
		if err := s.entries.Delete(ctx, id); err != nil {
			return err
		}
		s.metrics.IndexWrite("delete", 1)
		s.logger.Debug("removed entry of unapproved document", "document_id", id, "status", doc.ApprovalStatus)
		return nil
	}

	existing, err := s.entries.FindOrNew(ctx, id)
	if err != nil {
		return fmt.Errorf("load entry %d: %w", id, err)
	}

	entry, err := s.projector.Project(ctx, doc, existing)
	if err != nil {
		return fmt.Errorf("project document %d: %w", id, err)
	}
	if err := s.entries.Upsert(ctx, entry); err != nil {
		return err
	}
	s.metrics.IndexWrite("upsert", 1)

	s.logger.Debug("indexed document", "document_id", id, "type", doc.Type)
	return nil
}

// DeleteDocument removes the entry of a deleted document.
func (s *Service) DeleteDocument(ctx context.Context, id int64) error {
	if err := s.entries.Delete(ctx, id); err != nil {
		return err
	}
	s.metrics.IndexWrite("delete", 1)
	return nil
}

// ReindexAll drops the index and projects every searchable document again.
// Claims are lost; the next discovery run repopulates them.
func (s *Service) ReindexAll(ctx context.Context) (int, error) {
	s.logger.Info("starting full reindex")

	if err := s.entries.Rebuild(); err != nil {
		return 0, fmt.Errorf("rebuild index: %w", err)
	}

	var (
		afterID int64
		total   int
	)
	for {
		ids, err := s.docs.ListDocumentIDs(ctx, afterID, reindexPageSize)
		if err != nil {
			return total, fmt.Errorf("list documents: %w", err)
		}

		entries := make([]*search.Entry, 0, len(ids))
		for _, id := range ids {
			doc, err := s.docs.GetDocument(ctx, id)
			if domainerrors.Is(err, domainerrors.ErrNotFound) {
				continue // deleted since the id page was read
			}
			if err != nil {
				return total, fmt.Errorf("load document %d: %w", id, err)
			}
			if !doc.Searchable() {
				continue
			}
			entry, err := s.projector.Project(ctx, doc, nil)
			if err != nil {
				s.logger.Warn("failed to project document", "document_id", id, "error", err)
				continue
			}
			entries = append(entries, entry)
		}

		if len(entries) > 0 {
			if err := s.entries.UpsertAll(ctx, entries); err != nil {
				return total, fmt.Errorf("index documents: %w", err)
			}
			s.metrics.IndexWrite("upsert", len(entries))
			total += len(entries)
		}

		if len(ids) < reindexPageSize {
			break
		}
		afterID = ids[len(ids)-1]
	}

	s.logger.Info("full reindex complete", "documents", total)
	return total, nil
}
