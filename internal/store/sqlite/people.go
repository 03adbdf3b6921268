package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/crisrs/cris-server/internal/domain"
	domainerrors "github.com/crisrs/cris-server/internal/errors"
	"github.com/crisrs/cris-server/internal/normalize"
)

// CreatePerson inserts a person and its employments. A zero ID is assigned.
func (s *Store) CreatePerson(ctx context.Context, p *domain.PersonSummary) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO persons (id, first_name, other_name, last_name, name_folded, user_id)
		VALUES (NULLIF(?, 0), ?, ?, ?, ?, ?)`,
		p.ID,
		p.Name.FirstName,
		p.Name.OtherName,
		p.Name.LastName,
		normalize.FoldName(p.Name.Display()),
		nullInt64Ptr(p.UserID),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return domainerrors.Conflictf("person %d or user link already exists", p.ID)
		}
		return fmt.Errorf("insert person: %w", err)
	}
	if p.ID == 0 {
		if p.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("person id: %w", err)
		}
	}

	for _, institutionID := range p.EmploymentInstitutionIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO person_employments (person_id, institution_id) VALUES (?, ?)`,
			p.ID, institutionID); err != nil {
			return fmt.Errorf("insert employment: %w", err)
		}
	}

	return tx.Commit()
}

// GetPerson returns a person with employments.
func (s *Store) GetPerson(ctx context.Context, id int64) (*domain.PersonSummary, error) {
	people, err := s.queryPeople(ctx, `id = ?`, []any{id}, 1, 0)
	if err != nil {
		return nil, err
	}
	if len(people) == 0 {
		return nil, domainerrors.NotFoundf("person %d not found", id)
	}
	return &people[0], nil
}

// FindPeopleByNameTokens returns people whose folded name contains every token
// as a whole word. page is 0-based.
func (s *Store) FindPeopleByNameTokens(ctx context.Context, tokens []string, page, size int) ([]domain.PersonSummary, error) {
	var (
		conds []string
		args  []any
	)
	for _, tok := range tokens {
		tok = normalize.FoldName(tok)
		if tok == "" {
			continue
		}
		conds = append(conds, `(' ' || name_folded || ' ') LIKE ? ESCAPE '\'`)
		args = append(args, "% "+escapeLike(tok)+" %")
	}
	if len(conds) == 0 {
		return nil, nil
	}
	if size <= 0 {
		size = 10
	}
	return s.queryPeople(ctx, strings.Join(conds, " AND "), args, size, page*size)
}

// GetPersonIDForUser returns the person linked to a user account.
func (s *Store) GetPersonIDForUser(ctx context.Context, userID int64) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `SELECT id FROM persons WHERE user_id = ?`, userID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, domainerrors.NotFoundf("no person linked to user %d", userID)
	}
	if err != nil {
		return 0, fmt.Errorf("get person for user: %w", err)
	}
	return id, nil
}

func (s *Store) queryPeople(ctx context.Context, where string, args []any, limit, offset int) ([]domain.PersonSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, first_name, other_name, last_name, user_id
		FROM persons
		WHERE `+where+`
		ORDER BY id
		LIMIT ? OFFSET ?`, append(args, limit, offset)...)
	if err != nil {
		return nil, fmt.Errorf("query persons: %w", err)
	}
	defer rows.Close()

	var (
		people []domain.PersonSummary
		ids    []any
	)
	for rows.Next() {
		var (
			p      domain.PersonSummary
			userID sql.NullInt64
		)
		if err := rows.Scan(&p.ID, &p.Name.FirstName, &p.Name.OtherName, &p.Name.LastName, &userID); err != nil {
			return nil, fmt.Errorf("scan person: %w", err)
		}
		p.UserID = int64Ptr(userID)
		people = append(people, p)
		ids = append(ids, p.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(people) == 0 {
		return people, nil
	}

	employments, err := s.employmentsFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range people {
		people[i].EmploymentInstitutionIDs = employments[people[i].ID]
	}
	return people, nil
}

func (s *Store) employmentsFor(ctx context.Context, personIDs []any) (map[int64][]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT person_id, institution_id
		FROM person_employments
		WHERE person_id IN (`+placeholders(len(personIDs))+`)
		ORDER BY person_id, institution_id`, personIDs...)
	if err != nil {
		return nil, fmt.Errorf("query employments: %w", err)
	}
	defer rows.Close()

	out := make(map[int64][]int64, len(personIDs))
	for rows.Next() {
		var personID, institutionID int64
		if err := rows.Scan(&personID, &institutionID); err != nil {
			return nil, fmt.Errorf("scan employment: %w", err)
		}
		out[personID] = append(out[personID], institutionID)
	}
	return out, rows.Err()
}
