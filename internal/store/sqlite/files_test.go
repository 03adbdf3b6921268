package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/crisrs/cris-server/internal/domain"
	domainerrors "github.com/crisrs/cris-server/internal/errors"
)

func TestFileText(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	doc := makeTestDocument()
	if err := s.SaveDocument(ctx, doc); err != nil {
		t.Fatalf("SaveDocument: %v", err)
	}
	fileID := doc.Files[0].ID

	f, err := s.GetFile(ctx, fileID)
	if err != nil {
		t.Fatalf("GetFile: %v", err)
	}
	if f.FileName != "paper.pdf" || f.DocumentID != doc.ID {
		t.Errorf("GetFile: got %+v", f)
	}

	if _, err := s.GetFileText(ctx, fileID); !errors.Is(err, domainerrors.ErrNotFound) {
		t.Fatalf("expected not found before extraction, got %v", err)
	}

	ft := &domain.FileText{
		FileID:       fileID,
		Text:         "extracted body",
		Language:     "en",
		Descriptions: []domain.MultiLingualContent{{LanguageTag: "EN", Content: "Supplement", Priority: 1}},
	}
	if err := s.SaveFileText(ctx, ft); err != nil {
		t.Fatalf("SaveFileText: %v", err)
	}

	ft.Text = "re-extracted body"
	ft.Descriptions = nil
	if err := s.SaveFileText(ctx, ft); err != nil {
		t.Fatalf("SaveFileText (replace): %v", err)
	}

	got, err := s.GetFileText(ctx, fileID)
	if err != nil {
		t.Fatalf("GetFileText: %v", err)
	}
	if got.Text != "re-extracted body" || got.Language != "en" || len(got.Descriptions) != 0 {
		t.Errorf("GetFileText: got %+v", got)
	}
}

func TestSaveFileText_MissingFile(t *testing.T) {
	s := newTestStore(t)

	err := s.SaveFileText(context.Background(), &domain.FileText{FileID: 404, Text: "x"})
	if !errors.Is(err, domainerrors.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
