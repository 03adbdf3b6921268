package claims

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/crisrs/cris-server/internal/domain"
	domainerrors "github.com/crisrs/cris-server/internal/errors"
	"github.com/crisrs/cris-server/internal/metrics"
	"github.com/crisrs/cris-server/internal/search"
)

// Claim outcomes recorded in metrics.
const (
	OutcomeBound    = "bound"
	OutcomeNoop     = "noop"
	OutcomeDeclined = "declined"
	OutcomeError    = "error"
)

// Limiter throttles interactive actions per user.
type Limiter interface {
	Check(userID int64) error
}

// Resolver runs the interactive claim operations. ClaimDocument and
// DeclineClaim serialize on one mutex covering the read of the claims, the
// contribution write and the entry write.
type Resolver struct {
	mu sync.Mutex

	index   EntryIndex
	store   Store
	limiter Limiter
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewResolver creates a resolver. limiter may be nil.
func NewResolver(index EntryIndex, store Store, limiter Limiter, m *metrics.Metrics, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		index:   index,
		store:   store,
		limiter: limiter,
		metrics: m,
		logger:  logger,
	}
}

// FindPotentialClaims pages through the entries the user's person could claim.
func (r *Resolver) FindPotentialClaims(ctx context.Context, userID int64, page search.PageRequest) (*search.Page, error) {
	personID, err := r.store.GetPersonIDForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return r.index.FindByClaimer(ctx, personID, page)
}

// ClaimDocument binds the user's person to the author slot they were proposed
// for and drops every claim on the entry; discovery repopulates the rest.
// If the person no longer holds a claim (another claim won), it does nothing.
func (r *Resolver) ClaimDocument(ctx context.Context, userID, documentID int64) error {
	outcome, err := r.claim(ctx, userID, documentID)
	if err != nil {
		outcome = OutcomeError
	}
	r.metrics.ClaimAction("claim", outcome)
	return err
}

func (r *Resolver) claim(ctx context.Context, userID, documentID int64) (string, error) {
	if err := r.checkLimit(userID); err != nil {
		return "", err
	}
	personID, err := r.store.GetPersonIDForUser(ctx, userID)
	if err != nil {
		return "", err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	e, err := r.index.FindByID(ctx, documentID)
	if err != nil {
		return "", err
	}

	c, ok := e.ClaimFor(personID)
	if !ok {
		r.logger.Debug("claim no longer available", "document_id", documentID, "person_id", personID)
		return OutcomeNoop, nil
	}
	if c.Ordinal < 0 || c.Ordinal >= len(e.AuthorIDs) {
		panic(fmt.Sprintf("claims: ordinal %d out of range for %d author slots of document %d",
			c.Ordinal, len(e.AuthorIDs), documentID))
	}

	contributions, err := r.store.GetContributionsForDocument(ctx, documentID)
	if err != nil {
		return "", fmt.Errorf("contributions of %d: %w", documentID, err)
	}
	authors := domain.ContributionsWithRole(contributions, domain.RoleAuthor)
	if c.Ordinal >= len(authors) {
		// The document lost authors since the entry was written.
		e.ClearClaims()
		return OutcomeNoop, r.index.Upsert(ctx, e)
	}

	err = r.store.BindContribution(ctx, authors[c.Ordinal].ID, personID)
	switch {
	case domainerrors.Is(err, domainerrors.ErrConflict):
		// Slot was filled through another path; the claim is stale.
		e.ClearClaims()
		if bound := authors[c.Ordinal].PersonID; bound != nil {
			e.AuthorIDs[c.Ordinal] = *bound
		}
		return OutcomeNoop, r.index.Upsert(ctx, e)
	case err != nil:
		return "", fmt.Errorf("bind contribution: %w", err)
	}

	e.AuthorIDs[c.Ordinal] = personID
	e.ClearClaims()
	if err := r.index.Upsert(ctx, e); err != nil {
		return "", err
	}

	r.logger.Info("authorship claimed",
		"document_id", documentID,
		"person_id", personID,
		"ordinal", c.Ordinal,
	)
	return OutcomeBound, nil
}

// DeclineClaim records that the user's person is not an author of the
// document and drops every claim they hold on it. Discovery never proposes
// the pair again.
func (r *Resolver) DeclineClaim(ctx context.Context, userID, documentID int64) error {
	err := r.decline(ctx, userID, documentID)
	outcome := OutcomeDeclined
	if err != nil {
		outcome = OutcomeError
	}
	r.metrics.ClaimAction("decline", outcome)
	return err
}

func (r *Resolver) decline(ctx context.Context, userID, documentID int64) error {
	if err := r.checkLimit(userID); err != nil {
		return err
	}
	personID, err := r.store.GetPersonIDForUser(ctx, userID)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.store.SaveDeclinedClaim(ctx, personID, documentID); err != nil {
		return err
	}

	e, err := r.index.FindByID(ctx, documentID)
	if domainerrors.Is(err, search.ErrEntryNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if e.RemoveClaimsOf(personID) == 0 {
		return nil
	}
	return r.index.Upsert(ctx, e)
}

func (r *Resolver) checkLimit(userID int64) error {
	if r.limiter == nil {
		return nil
	}
	return r.limiter.Check(userID)
}
