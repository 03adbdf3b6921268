package sqlite

import (
	"context"
	"testing"
)

func TestDeclinedClaims(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	doc := makeTestDocument()
	if err := s.SaveDocument(ctx, doc); err != nil {
		t.Fatalf("SaveDocument: %v", err)
	}
	p := createPerson(t, s, "Ana", "Petrović", nil)

	ok, err := s.CanBeClaimedByPerson(ctx, p.ID, doc.ID)
	if err != nil {
		t.Fatalf("CanBeClaimedByPerson: %v", err)
	}
	if !ok {
		t.Fatal("expected claimable before decline")
	}

	if err := s.SaveDeclinedClaim(ctx, p.ID, doc.ID); err != nil {
		t.Fatalf("SaveDeclinedClaim: %v", err)
	}
	if err := s.SaveDeclinedClaim(ctx, p.ID, doc.ID); err != nil {
		t.Fatalf("SaveDeclinedClaim (again): %v", err)
	}

	ok, err = s.CanBeClaimedByPerson(ctx, p.ID, doc.ID)
	if err != nil {
		t.Fatalf("CanBeClaimedByPerson: %v", err)
	}
	if ok {
		t.Error("expected not claimable after decline")
	}
}
