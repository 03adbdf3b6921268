package sqlite

import (
	"context"
	"fmt"
)

// SaveDeclinedClaim records that a person rejected authorship of a document.
// Declining twice is not an error.
func (s *Store) SaveDeclinedClaim(ctx context.Context, personID, documentID int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO declined_claims (person_id, document_id, declined_at)
		VALUES (?, ?, ?)
		ON CONFLICT(person_id, document_id) DO NOTHING`,
		personID, documentID, formatTime(s.now()))
	if err != nil {
		return fmt.Errorf("save declined claim: %w", err)
	}
	return nil
}

// CanBeClaimedByPerson reports whether no decline exists for the pair.
func (s *Store) CanBeClaimedByPerson(ctx context.Context, personID, documentID int64) (bool, error) {
	var declined bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM declined_claims WHERE person_id = ? AND document_id = ?)`,
		personID, documentID).Scan(&declined)
	if err != nil {
		return false, fmt.Errorf("check declined claim: %w", err)
	}
	return !declined, nil
}
