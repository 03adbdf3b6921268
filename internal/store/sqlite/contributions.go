package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/crisrs/cris-server/internal/domain"
	domainerrors "github.com/crisrs/cris-server/internal/errors"
)

// contributionColumns is the ordered list of columns selected in contribution queries.
// Must match the scan order in scanContribution.
const contributionColumns = `id, document_id, role, order_number, person_id,
	first_name, other_name, last_name, institution_ids`

// scanContribution scans a sql.Row (or sql.Rows via its Scan method) into a domain.Contribution.
func scanContribution(scanner interface{ Scan(dest ...any) error }) (*domain.Contribution, error) {
	var (
		c            domain.Contribution
		role         string
		personID     sql.NullInt64
		institutions string
	)

	err := scanner.Scan(
		&c.ID,
		&c.DocumentID,
		&role,
		&c.OrderNumber,
		&personID,
		&c.Name.FirstName,
		&c.Name.OtherName,
		&c.Name.LastName,
		&institutions,
	)
	if err != nil {
		return nil, err
	}

	c.Role = domain.ContributionRole(role)
	c.PersonID = int64Ptr(personID)
	if err := json.Unmarshal([]byte(institutions), &c.InstitutionIDs); err != nil {
		return nil, fmt.Errorf("unmarshal institution ids: %w", err)
	}
	if len(c.InstitutionIDs) == 0 {
		c.InstitutionIDs = nil
	}

	return &c, nil
}

func (s *Store) queryContributions(ctx context.Context, where string, args ...any) ([]domain.Contribution, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+contributionColumns+` FROM contributions WHERE `+where+` ORDER BY role, order_number, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("query contributions: %w", err)
	}
	defer rows.Close()

	var out []domain.Contribution
	for rows.Next() {
		c, err := scanContribution(rows)
		if err != nil {
			return nil, fmt.Errorf("scan contribution: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// GetContributionsForDocument returns every contribution of a document,
// grouped by role and in authorship order.
func (s *Store) GetContributionsForDocument(ctx context.Context, documentID int64) ([]domain.Contribution, error) {
	return s.queryContributions(ctx, `document_id = ?`, documentID)
}

// BindContribution links an unresolved contribution to a person.
// Returns CONFLICT if the contribution is already bound, NOT_FOUND if it does not exist.
func (s *Store) BindContribution(ctx context.Context, contributionID, personID int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE contributions SET person_id = ? WHERE id = ? AND person_id IS NULL`,
		personID, contributionID)
	if err != nil {
		return fmt.Errorf("bind contribution: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 1 {
		return nil
	}

	var bound sql.NullInt64
	err = s.db.QueryRowContext(ctx, `SELECT person_id FROM contributions WHERE id = ?`, contributionID).Scan(&bound)
	if errors.Is(err, sql.ErrNoRows) {
		return domainerrors.NotFoundf("contribution %d not found", contributionID)
	}
	if err != nil {
		return fmt.Errorf("get contribution: %w", err)
	}
	return domainerrors.Conflictf("contribution %d already bound to person %d", contributionID, bound.Int64)
}
