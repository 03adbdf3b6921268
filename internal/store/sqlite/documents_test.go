package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/crisrs/cris-server/internal/domain"
	domainerrors "github.com/crisrs/cris-server/internal/errors"
)

// makeTestDocument creates a domain.Document with sensible defaults for testing.
func makeTestDocument() *domain.Document {
	return &domain.Document{
		Type: domain.TypeJournalPublication,
		Title: []domain.MultiLingualContent{
			{LanguageTag: "SR", Content: "Рад", Priority: 1},
			{LanguageTag: "EN", Content: "Paper", Priority: 2},
		},
		Subtitle:       []domain.MultiLingualContent{{LanguageTag: "EN", Content: "A study", Priority: 1}},
		Keywords:       []domain.MultiLingualContent{{LanguageTag: "EN", Content: "graphs", Priority: 1}},
		DocumentDate:   "15.03.2020.",
		DOI:            "10.1000/xyz",
		ApprovalStatus: domain.ApprovalApproved,
		Contributions: []domain.Contribution{
			{Role: domain.RoleAuthor, OrderNumber: 1, Name: domain.PersonName{FirstName: "Ana", LastName: "Petrović"}, InstitutionIDs: []int64{100}},
		},
		Files: []domain.DocumentFile{{FileName: "paper.pdf"}, {FileName: "proof.pdf", IsProof: true}},
	}
}

func TestSaveAndGetDocument(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	doc := makeTestDocument()
	if err := s.SaveDocument(ctx, doc); err != nil {
		t.Fatalf("SaveDocument: %v", err)
	}
	if doc.ID == 0 {
		t.Fatal("expected document id to be assigned")
	}
	if doc.Contributions[0].ID == 0 || doc.Contributions[0].DocumentID != doc.ID {
		t.Fatalf("contribution ids not written back: %+v", doc.Contributions[0])
	}

	got, err := s.GetDocument(ctx, doc.ID)
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}

	if got.Type != domain.TypeJournalPublication {
		t.Errorf("Type: got %q", got.Type)
	}
	if len(got.Title) != 2 || got.Title[0].Content != "Рад" || got.Title[1].Content != "Paper" {
		t.Errorf("Title: got %+v", got.Title)
	}
	if len(got.Subtitle) != 1 || len(got.Keywords) != 1 || len(got.Description) != 0 {
		t.Errorf("texts: subtitle=%v keywords=%v description=%v", got.Subtitle, got.Keywords, got.Description)
	}
	if got.DocumentDate != "15.03.2020." || got.DOI != "10.1000/xyz" {
		t.Errorf("scalars: date=%q doi=%q", got.DocumentDate, got.DOI)
	}
	if !got.IsApproved() {
		t.Errorf("ApprovalStatus: got %q", got.ApprovalStatus)
	}
	if len(got.Contributions) != 1 {
		t.Fatalf("Contributions: got %d", len(got.Contributions))
	}
	c := got.Contributions[0]
	if c.PersonID != nil || c.Name.LastName != "Petrović" || len(c.InstitutionIDs) != 1 || c.InstitutionIDs[0] != 100 {
		t.Errorf("contribution: got %+v", c)
	}
	if len(got.Files) != 2 || got.Files[0].IsProof || !got.Files[1].IsProof {
		t.Errorf("Files: got %+v", got.Files)
	}
}

func TestSaveDocument_ReplacesNestedRecords(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	doc := makeTestDocument()
	if err := s.SaveDocument(ctx, doc); err != nil {
		t.Fatalf("SaveDocument: %v", err)
	}
	keptID := doc.Contributions[0].ID

	doc.Keywords = nil
	doc.Contributions = append(doc.Contributions, domain.Contribution{
		Role: domain.RoleAuthor, OrderNumber: 2, Name: domain.PersonName{FirstName: "Marko", LastName: "Marković"},
	})
	doc.Files = doc.Files[:1]
	if err := s.SaveDocument(ctx, doc); err != nil {
		t.Fatalf("SaveDocument (update): %v", err)
	}

	got, err := s.GetDocument(ctx, doc.ID)
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if len(got.Keywords) != 0 {
		t.Errorf("keywords should be removed, got %+v", got.Keywords)
	}
	if len(got.Contributions) != 2 || got.Contributions[0].ID != keptID {
		t.Errorf("contributions: got %+v", got.Contributions)
	}
	if len(got.Files) != 1 {
		t.Errorf("files: got %+v", got.Files)
	}
}

func TestSaveDocument_RejectsUnknownType(t *testing.T) {
	s := newTestStore(t)

	doc := makeTestDocument()
	doc.Type = "BOOK"
	err := s.SaveDocument(context.Background(), doc)
	if !errors.Is(err, domainerrors.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestGetDocument_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetDocument(context.Background(), 404)
	if !errors.Is(err, domainerrors.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestResearchOutputs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	thesis := makeTestDocument()
	thesis.Type = domain.TypeThesis
	thesis.ResearchOutputIDs = []int64{30, 10, 30}
	if err := s.SaveDocument(ctx, thesis); err != nil {
		t.Fatalf("SaveDocument: %v", err)
	}

	got, err := s.GetDocument(ctx, thesis.ID)
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if len(got.ResearchOutputIDs) != 2 || got.ResearchOutputIDs[0] != 10 || got.ResearchOutputIDs[1] != 30 {
		t.Errorf("ResearchOutputIDs: got %v", got.ResearchOutputIDs)
	}
}

func TestSetApprovalStatusAndDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	doc := makeTestDocument()
	if err := s.SaveDocument(ctx, doc); err != nil {
		t.Fatalf("SaveDocument: %v", err)
	}

	if err := s.SetApprovalStatus(ctx, doc.ID, domain.ApprovalDeclined); err != nil {
		t.Fatalf("SetApprovalStatus: %v", err)
	}
	got, err := s.GetDocument(ctx, doc.ID)
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if got.ApprovalStatus != domain.ApprovalDeclined {
		t.Errorf("ApprovalStatus: got %q", got.ApprovalStatus)
	}

	if err := s.DeleteDocument(ctx, doc.ID); err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}
	if err := s.DeleteDocument(ctx, doc.ID); !errors.Is(err, domainerrors.ErrNotFound) {
		t.Errorf("second delete: expected not found, got %v", err)
	}

	contributions, err := s.GetContributionsForDocument(ctx, doc.ID)
	if err != nil {
		t.Fatalf("GetContributionsForDocument: %v", err)
	}
	if len(contributions) != 0 {
		t.Errorf("contributions should cascade, got %d", len(contributions))
	}
}

func TestListDocumentIDs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := s.SaveDocument(ctx, makeTestDocument()); err != nil {
			t.Fatalf("SaveDocument: %v", err)
		}
	}

	first, err := s.ListDocumentIDs(ctx, 0, 3)
	if err != nil {
		t.Fatalf("ListDocumentIDs: %v", err)
	}
	if len(first) != 3 {
		t.Fatalf("first page: got %v", first)
	}

	rest, err := s.ListDocumentIDs(ctx, first[2], 3)
	if err != nil {
		t.Fatalf("ListDocumentIDs: %v", err)
	}
	if len(rest) != 2 || rest[0] <= first[2] {
		t.Errorf("second page: got %v", rest)
	}
}
