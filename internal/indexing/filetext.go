package indexing

import (
	"context"
	"fmt"

	"github.com/crisrs/cris-server/internal/domain"
	domainerrors "github.com/crisrs/cris-server/internal/errors"
	"github.com/crisrs/cris-server/internal/multilingual"
)

// FileTextSource returns the extraction output of one file.
type FileTextSource interface {
	GetFileText(ctx context.Context, fileID int64) (*domain.FileText, error)
}

// FileTextAggregator folds the extracted text of a document's files into the
// two full-text buckets.
type FileTextAggregator struct {
	source  FileTextSource
	reducer *multilingual.Reducer
}

// NewFileTextAggregator creates an aggregator reading from source.
func NewFileTextAggregator(source FileTextSource, reducer *multilingual.Reducer) *FileTextAggregator {
	return &FileTextAggregator{source: source, reducer: reducer}
}

// Aggregate returns the full-text buckets for files.
// Proof files and files that have not been extracted yet are skipped.
// A file's body goes to the bucket of its detected language; description
// fragments go by their own language tag.
func (a *FileTextAggregator) Aggregate(ctx context.Context, files []domain.DocumentFile) (multilingual.Buckets, error) {
	c := a.reducer.Collector()
	for _, f := range files {
		if f.IsProof {
			continue
		}
		ft, err := a.source.GetFileText(ctx, f.ID)
		if domainerrors.Is(err, domainerrors.ErrNotFound) {
			continue
		}
		if err != nil {
			return multilingual.Buckets{}, fmt.Errorf("file %d text: %w", f.ID, err)
		}

		c.Add(ft.Language, ft.Text)
		for _, d := range ft.Descriptions {
			c.Add(d.LanguageTag, multilingual.StripHTML(d.Content))
		}
	}
	return c.Buckets(), nil
}
