// Package claims matches unresolved author slots to people and lets those
// people claim or decline authorship.
package claims

import (
	"context"

	"github.com/crisrs/cris-server/internal/domain"
	"github.com/crisrs/cris-server/internal/search"
)

// EntryIndex is the part of the search index claims read and write.
type EntryIndex interface {
	FindByID(ctx context.Context, id int64) (*search.Entry, error)
	FindByAuthorID(ctx context.Context, authorID int64, page search.PageRequest) (*search.Page, error)
	FindByClaimer(ctx context.Context, personID int64, page search.PageRequest) (*search.Page, error)
	Upsert(ctx context.Context, e *search.Entry) error
}

// Store is the relational state behind claims.
type Store interface {
	GetContributionsForDocument(ctx context.Context, documentID int64) ([]domain.Contribution, error)
	BindContribution(ctx context.Context, contributionID, personID int64) error
	SaveDeclinedClaim(ctx context.Context, personID, documentID int64) error
	CanBeClaimedByPerson(ctx context.Context, personID, documentID int64) (bool, error)
	GetPersonIDForUser(ctx context.Context, userID int64) (int64, error)
}

// PersonDirectory looks people up by name. page is 0-based.
type PersonDirectory interface {
	FindPeopleByNameTokens(ctx context.Context, tokens []string, page, size int) ([]domain.PersonSummary, error)
}
