package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/crisrs/cris-server/internal/domain"
	domainerrors "github.com/crisrs/cris-server/internal/errors"
)

// SaveDuplicateSuggestion records a suspected duplicate pair. Re-detecting an
// existing pair refreshes its run id and timestamp. Returns NOT_FOUND when
// either document is no longer stored.
func (s *Store) SaveDuplicateSuggestion(ctx context.Context, d domain.DuplicateSuggestion) error {
	if d.FoundAt.IsZero() {
		d.FoundAt = s.now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO duplicate_suggestions (document_id, duplicate_id, run_id, found_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(document_id, duplicate_id) DO UPDATE SET
			run_id = excluded.run_id,
			found_at = excluded.found_at`,
		d.DocumentID, d.DuplicateID, d.RunID, formatTime(d.FoundAt))
	if err != nil {
		if isForeignKeyError(err) {
			return domainerrors.NotFoundf("document %d or %d not found", d.DocumentID, d.DuplicateID)
		}
		return fmt.Errorf("save duplicate suggestion: %w", err)
	}
	return nil
}

// ListDuplicateSuggestions returns suggestions, newest first.
func (s *Store) ListDuplicateSuggestions(ctx context.Context, limit, offset int) ([]domain.DuplicateSuggestion, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT document_id, duplicate_id, run_id, found_at
		FROM duplicate_suggestions
		ORDER BY found_at DESC, document_id, duplicate_id
		LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query duplicate suggestions: %w", err)
	}
	defer rows.Close()

	var out []domain.DuplicateSuggestion
	for rows.Next() {
		var (
			d       domain.DuplicateSuggestion
			foundAt string
		)
		if err := rows.Scan(&d.DocumentID, &d.DuplicateID, &d.RunID, &foundAt); err != nil {
			return nil, fmt.Errorf("scan duplicate suggestion: %w", err)
		}
		if d.FoundAt, err = parseTime(foundAt); err != nil {
			return nil, fmt.Errorf("parse found_at: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
