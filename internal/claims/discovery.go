package claims

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/crisrs/cris-server/internal/domain"
	"github.com/crisrs/cris-server/internal/id"
	"github.com/crisrs/cris-server/internal/metrics"
	"github.com/crisrs/cris-server/internal/normalize"
	"github.com/crisrs/cris-server/internal/notify"
	"github.com/crisrs/cris-server/internal/search"
)

// Defaults used when DiscoveryConfig leaves a field zero.
const (
	DefaultChunkSize         = 20
	DefaultCandidatesPerSlot = 20
)

// DiscoveryConfig controls the size of a discovery step.
type DiscoveryConfig struct {
	ChunkSize         int // entries per page
	CandidatesPerSlot int // people fetched per unresolved slot
}

// DiscoveryResult summarizes one run.
type DiscoveryResult struct {
	RunID    string
	Pages    int
	Entries  int // entries with an unresolved author that were processed
	Claims   int // claims attached
	Notified int // users notified
}

// Discovery proposes claimers for unresolved author slots. It does not take
// the Resolver's lock; a claim racing a discovery write is repaired by the
// next run.
type Discovery struct {
	index    EntryIndex
	store    Store
	people   PersonDirectory
	notifier notify.Dispatcher
	cfg      DiscoveryConfig
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewDiscovery creates a discovery job.
func NewDiscovery(index EntryIndex, store Store, people PersonDirectory, notifier notify.Dispatcher, cfg DiscoveryConfig, m *metrics.Metrics, logger *slog.Logger) *Discovery {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.CandidatesPerSlot <= 0 {
		cfg.CandidatesPerSlot = DefaultCandidatesPerSlot
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Discovery{
		index:    index,
		store:    store,
		people:   people,
		notifier: notifier,
		cfg:      cfg,
		metrics:  m,
		logger:   logger,
	}
}

// Run walks every entry with an unresolved author slot, replaces its claims
// with freshly discovered ones and notifies each affected user once.
// An I/O error aborts the run; users are still notified about the claims
// written before the failure.
func (d *Discovery) Run(ctx context.Context) (DiscoveryResult, error) {
	runID, err := id.Generate(id.PrefixDiscovery)
	if err != nil {
		return DiscoveryResult{}, err
	}
	res := DiscoveryResult{RunID: runID}
	perUser := make(map[int64]int)

	log := d.logger.With("run_id", runID)

	runErr := d.scan(ctx, &res, perUser)
	res.Notified = d.notifyUsers(ctx, runID, perUser)
	d.metrics.ClaimsProposed(res.Claims)

	if runErr != nil {
		return res, runErr
	}
	log.Info("claim discovery finished",
		"pages", res.Pages,
		"entries", res.Entries,
		"claims", res.Claims,
		"notified", res.Notified,
	)
	return res, nil
}

func (d *Discovery) scan(ctx context.Context, res *DiscoveryResult, perUser map[int64]int) error {
	for number := 0; ; number++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		page, err := d.index.FindByAuthorID(ctx, search.UnresolvedID, search.PageRequest{Number: number, Size: d.cfg.ChunkSize})
		if err != nil {
			return fmt.Errorf("load page %d: %w", number, err)
		}
		res.Pages++

		for _, e := range page.Entries {
			claimers, err := d.discover(ctx, e)
			if err != nil {
				return err
			}
			if err := d.index.Upsert(ctx, e); err != nil {
				return fmt.Errorf("write claims of %d: %w", e.DatabaseID, err)
			}
			res.Entries++
			res.Claims += len(e.Claims)
			for _, p := range claimers {
				if p.UserID != nil {
					perUser[*p.UserID]++
				}
			}
		}

		if page.IsLast() {
			return nil
		}
	}
}

// discover clears e's claims and attaches a claim for every acceptable
// candidate of every unresolved slot. It returns the distinct people claimed.
func (d *Discovery) discover(ctx context.Context, e *search.Entry) ([]domain.PersonSummary, error) {
	e.ClearClaims()

	slots := e.UnresolvedAuthorSlots()
	if len(slots) == 0 {
		return nil, nil
	}

	contributions, err := d.store.GetContributionsForDocument(ctx, e.DatabaseID)
	if err != nil {
		return nil, fmt.Errorf("contributions of %d: %w", e.DatabaseID, err)
	}
	authors := domain.ContributionsWithRole(contributions, domain.RoleAuthor)
	if !slotsMatch(e, slots, authors) {
		// Entry is older than the store; the next projection fixes it.
		d.logger.Warn("index entry out of date, skipping",
			"document_id", e.DatabaseID,
			"author_slots", len(e.AuthorIDs),
			"authors", len(authors),
		)
		return nil, nil
	}

	var claimed []domain.PersonSummary
	for _, ordinal := range slots {
		c := authors[ordinal]
		tokens := normalize.NameTokens(c.Name.Display())
		if len(tokens) == 0 {
			continue
		}

		candidates, err := d.people.FindPeopleByNameTokens(ctx, tokens, 0, d.cfg.CandidatesPerSlot)
		if err != nil {
			return nil, fmt.Errorf("find people for %q: %w", strings.Join(tokens, " "), err)
		}

		for _, p := range candidates {
			ok, err := d.accept(ctx, e, c, p)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			e.AddClaim(search.Claim{PersonID: p.ID, Ordinal: ordinal})
			if !slices.ContainsFunc(claimed, func(q domain.PersonSummary) bool { return q.ID == p.ID }) {
				claimed = append(claimed, p)
			}
		}
	}
	return claimed, nil
}

// slotsMatch reports whether e's author slots line up with the stored
// authors: same length, and every unresolved slot is unresolved in the store.
func slotsMatch(e *search.Entry, slots []int, authors []domain.Contribution) bool {
	if len(authors) != len(e.AuthorIDs) {
		return false
	}
	unresolved := 0
	for _, c := range authors {
		if c.PersonID == nil {
			unresolved++
		}
	}
	if unresolved != len(slots) {
		return false
	}
	for _, ordinal := range slots {
		if authors[ordinal].PersonID != nil {
			return false
		}
	}
	return true
}

// accept reports whether p may claim the slot filled by c on e.
func (d *Discovery) accept(ctx context.Context, e *search.Entry, c domain.Contribution, p domain.PersonSummary) (bool, error) {
	if e.HasAuthor(p.ID) {
		return false, nil
	}
	if len(c.InstitutionIDs) > 0 && len(p.EmploymentInstitutionIDs) > 0 &&
		!slices.ContainsFunc(c.InstitutionIDs, func(inst int64) bool {
			return slices.Contains(p.EmploymentInstitutionIDs, inst)
		}) {
		return false, nil
	}
	ok, err := d.store.CanBeClaimedByPerson(ctx, p.ID, e.DatabaseID)
	if err != nil {
		return false, fmt.Errorf("check decline of %d for %d: %w", p.ID, e.DatabaseID, err)
	}
	return ok, nil
}

func (d *Discovery) notifyUsers(ctx context.Context, runID string, perUser map[int64]int) int {
	if d.notifier == nil {
		return 0
	}
	users := make([]int64, 0, len(perUser))
	for userID := range perUser {
		users = append(users, userID)
	}
	slices.Sort(users)

	sent := 0
	for _, userID := range users {
		err := d.notifier.Notify(ctx, userID, notify.Payload{
			Kind:  notify.KindClaimsDiscovered,
			Count: perUser[userID],
			RunID: runID,
		})
		if err != nil {
			d.logger.Warn("failed to notify user", "user_id", userID, "error", err)
			continue
		}
		sent++
	}
	return sent
}
