package extraction

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/crisrs/cris-server/internal/domain"
	domainerrors "github.com/crisrs/cris-server/internal/errors"
	"github.com/crisrs/cris-server/internal/validation"
)

// FileStore reads attached files and stores their extracted text.
type FileStore interface {
	GetFile(ctx context.Context, fileID int64) (*domain.DocumentFile, error)
	GetFileText(ctx context.Context, fileID int64) (*domain.FileText, error)
	SaveFileText(ctx context.Context, ft *domain.FileText) error
}

// Reindexer refreshes the index entry of a document.
type Reindexer interface {
	IndexDocument(ctx context.Context, id int64) error
}

// Service stores extraction results and reindexes the owning document.
type Service struct {
	extractor Extractor
	files     FileStore
	indexer   Reindexer
	validator *validation.Validator
	logger    *slog.Logger
}

// detection is the extractor's language guess. Anything that is not a short
// lowercase code is dropped so the body falls into the other-language bucket.
type detection struct {
	Language string `json:"language" validate:"omitempty,langtag"`
}

// NewService creates an extraction service.
func NewService(extractor Extractor, files FileStore, indexer Reindexer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		extractor: extractor,
		files:     files,
		indexer:   indexer,
		validator: validation.New(),
		logger:    logger,
	}
}

// ExtractFile extracts the text of fileID from r, stores it and reindexes
// documentID. Proof files are never extracted. Descriptions already stored for
// the file are kept.
func (s *Service) ExtractFile(ctx context.Context, fileID, documentID int64, r io.Reader) error {
	file, err := s.files.GetFile(ctx, fileID)
	if err != nil {
		return err
	}
	if file.DocumentID != documentID {
		return domainerrors.Validationf("file %d does not belong to document %d", fileID, documentID)
	}
	if file.IsProof {
		s.logger.Debug("skipping proof file", "file_id", fileID, "document_id", documentID)
		return nil
	}

	text, language, err := s.extractor.Extract(ctx, r)
	if err != nil {
		return fmt.Errorf("extract file %d: %w", fileID, err)
	}
	if err := s.validator.Validate(detection{Language: language}); err != nil {
		s.logger.Warn("discarding detected language", "file_id", fileID, "language", language)
		language = ""
	}

	ft := &domain.FileText{FileID: fileID, Text: text, Language: language}
	existing, err := s.files.GetFileText(ctx, fileID)
	switch {
	case err == nil:
		ft.Descriptions = existing.Descriptions
	case !domainerrors.Is(err, domainerrors.ErrNotFound):
		return err
	}

	if err := s.files.SaveFileText(ctx, ft); err != nil {
		return err
	}
	s.logger.Info("file text extracted",
		"file_id", fileID,
		"document_id", documentID,
		"language", language,
		"chars", len(text),
	)

	if err := s.indexer.IndexDocument(ctx, documentID); err != nil {
		return fmt.Errorf("reindex document %d: %w", documentID, err)
	}
	return nil
}
