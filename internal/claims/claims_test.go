package claims

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crisrs/cris-server/internal/domain"
	domainerrors "github.com/crisrs/cris-server/internal/errors"
	"github.com/crisrs/cris-server/internal/indexing"
	"github.com/crisrs/cris-server/internal/logger"
	"github.com/crisrs/cris-server/internal/metrics"
	"github.com/crisrs/cris-server/internal/multilingual"
	"github.com/crisrs/cris-server/internal/normalize"
	"github.com/crisrs/cris-server/internal/notify"
	"github.com/crisrs/cris-server/internal/search"
	"github.com/crisrs/cris-server/internal/store/sqlite"
)

type sentNotification struct {
	userID  int64
	payload notify.Payload
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
}

func (n *recordingNotifier) Notify(_ context.Context, userID int64, p notify.Payload) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotification{userID: userID, payload: p})
	return nil
}

type denyAll struct{}

func (denyAll) Check(int64) error { return domainerrors.RateLimited("slow down") }

type testEnv struct {
	store     *sqlite.Store
	index     *search.Index
	indexer   *indexing.Service
	discovery *Discovery
	resolver  *Resolver
	notifier  *recordingNotifier
}

func setup(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()

	store, err := sqlite.Open(filepath.Join(dir, "cris.db"), logger.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	index, err := search.NewIndex(search.Options{DataPath: filepath.Join(dir, "index"), Logger: logger.Discard()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })

	reducer := multilingual.NewReducer(normalize.NewLanguages("sr", "hr"))
	projector := indexing.NewProjector(reducer, indexing.NewFileTextAggregator(store, reducer))
	m := metrics.New(nil)
	notifier := &recordingNotifier{}

	return &testEnv{
		store:     store,
		index:     index,
		indexer:   indexing.NewService(store, index, projector, m, logger.Discard()),
		discovery: NewDiscovery(index, store, store, notifier, DiscoveryConfig{ChunkSize: 2}, m, logger.Discard()),
		resolver:  NewResolver(index, store, nil, m, logger.Discard()),
		notifier:  notifier,
	}
}

func ptr(v int64) *int64 { return &v }

func unresolvedAuthor(order int, first, last string, institutions ...int64) domain.Contribution {
	return domain.Contribution{
		Role:           domain.RoleAuthor,
		OrderNumber:    order,
		Name:           domain.PersonName{FirstName: first, LastName: last},
		InstitutionIDs: institutions,
	}
}

// addDocument saves and indexes a document and returns its id.
func (env *testEnv) addDocument(t *testing.T, contributions ...domain.Contribution) int64 {
	t.Helper()
	doc := &domain.Document{
		Type: domain.TypeJournalPublication,
		Title: []domain.MultiLingualContent{
			{LanguageTag: "SR", Content: "Рад", Priority: 1},
			{LanguageTag: "EN", Content: "Paper", Priority: 2},
		},
		DocumentDate:   "15.03.2020.",
		ApprovalStatus: domain.ApprovalApproved,
		Contributions:  contributions,
	}
	require.NoError(t, env.store.SaveDocument(context.Background(), doc))
	require.NoError(t, env.indexer.IndexDocument(context.Background(), doc.ID))
	return doc.ID
}

func (env *testEnv) addPerson(t *testing.T, id int64, first, last string, userID *int64, employments ...int64) {
	t.Helper()
	require.NoError(t, env.store.CreatePerson(context.Background(), &domain.PersonSummary{
		ID:                       id,
		Name:                     domain.PersonName{FirstName: first, LastName: last},
		UserID:                   userID,
		EmploymentInstitutionIDs: employments,
	}))
}

func (env *testEnv) entry(t *testing.T, documentID int64) *search.Entry {
	t.Helper()
	e, err := env.index.FindByID(context.Background(), documentID)
	require.NoError(t, err)
	return e
}

func (env *testEnv) discover(t *testing.T) DiscoveryResult {
	t.Helper()
	res, err := env.discovery.Run(context.Background())
	require.NoError(t, err)
	return res
}

func TestEndToEnd_DiscoverAndClaim(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	docID := env.addDocument(t, unresolvedAuthor(1, "Ana", "Petrović"))

	e := env.entry(t, docID)
	assert.Equal(t, 2020, e.Year)
	assert.Equal(t, "Ana Petrović", e.AuthorNames)
	assert.Equal(t, []int64{search.UnresolvedID}, e.AuthorIDs)

	env.addPerson(t, 7, "Ana", "Petrović", ptr(70))

	res := env.discover(t)
	assert.Equal(t, 1, res.Entries)
	assert.Equal(t, 1, res.Claims)

	e = env.entry(t, docID)
	assert.Equal(t, []search.Claim{{PersonID: 7, Ordinal: 0}}, e.Claims)

	require.NoError(t, env.resolver.ClaimDocument(ctx, 70, docID))

	e = env.entry(t, docID)
	assert.Equal(t, []int64{7}, e.AuthorIDs)
	assert.Empty(t, e.Claims)

	contributions, err := env.store.GetContributionsForDocument(ctx, docID)
	require.NoError(t, err)
	require.Len(t, contributions, 1)
	require.NotNil(t, contributions[0].PersonID)
	assert.Equal(t, int64(7), *contributions[0].PersonID)

	// A later projection keeps the binding.
	require.NoError(t, env.indexer.IndexDocument(ctx, docID))
	assert.Equal(t, []int64{7}, env.entry(t, docID).AuthorIDs)
}

func TestDiscovery_DeclineIsPermanent(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	docID := env.addDocument(t, unresolvedAuthor(1, "Ana", "Petrović"))
	env.addPerson(t, 7, "Ana", "Petrović", ptr(70))
	env.addPerson(t, 8, "Ana", "Petrović", ptr(80))

	env.discover(t)
	require.Len(t, env.entry(t, docID).Claims, 2)

	require.NoError(t, env.resolver.DeclineClaim(ctx, 80, docID))
	assert.Equal(t, []search.Claim{{PersonID: 7, Ordinal: 0}}, env.entry(t, docID).Claims)

	env.discover(t)
	assert.Equal(t, []search.Claim{{PersonID: 7, Ordinal: 0}}, env.entry(t, docID).Claims)
}

func TestDiscovery_AffiliationMustIntersect(t *testing.T) {
	env := setup(t)

	docID := env.addDocument(t, unresolvedAuthor(1, "Ana", "Petrović", 100))
	env.addPerson(t, 7, "Ana", "Petrović", nil, 200)
	env.addPerson(t, 8, "Ana", "Petrović", nil, 100, 300)
	env.addPerson(t, 9, "Ana", "Petrović", nil)

	env.discover(t)

	var claimers []int64
	for _, c := range env.entry(t, docID).Claims {
		claimers = append(claimers, c.PersonID)
	}
	assert.ElementsMatch(t, []int64{8, 9}, claimers)
}

func TestDiscovery_BoundAuthorIsNotClaimer(t *testing.T) {
	env := setup(t)

	env.addPerson(t, 7, "Ana", "Petrović", nil)
	env.addPerson(t, 8, "Ana", "Petrović", nil)
	bound := unresolvedAuthor(1, "Ana", "Petrović")
	bound.PersonID = ptr(7)
	docID := env.addDocument(t, bound, unresolvedAuthor(2, "Ana", "Petrović"))

	env.discover(t)

	assert.Equal(t, []search.Claim{{PersonID: 8, Ordinal: 1}}, env.entry(t, docID).Claims)
}

func TestDiscovery_SkipsEntryWithShiftedSlots(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	env.addPerson(t, 7, "Ana", "Petrović", ptr(70))
	env.addPerson(t, 9, "Marko", "Marković", nil)
	bound := unresolvedAuthor(2, "Marko", "Marković")
	bound.PersonID = ptr(9)
	docID := env.addDocument(t, unresolvedAuthor(1, "Ana", "Petrović"), bound)
	require.Equal(t, []int64{search.UnresolvedID, 9}, env.entry(t, docID).AuthorIDs)

	// Same number of unresolved slots, but in the other position.
	e := env.entry(t, docID)
	e.AuthorIDs = []int64{9, search.UnresolvedID}
	require.NoError(t, env.index.Upsert(ctx, e))

	res := env.discover(t)
	assert.Zero(t, res.Claims)
	assert.Empty(t, env.entry(t, docID).Claims)
	assert.Empty(t, env.notifier.sent)
}

func TestDiscovery_NotifiesOncePerUser(t *testing.T) {
	env := setup(t)

	for i := 0; i < 3; i++ {
		env.addDocument(t, unresolvedAuthor(1, "Ana", "Petrović"))
	}
	env.addPerson(t, 7, "Ana", "Petrović", ptr(70))
	env.addPerson(t, 8, "Ana", "Petrović", nil)

	res := env.discover(t)

	assert.Equal(t, 3, res.Entries)
	assert.Equal(t, 2, res.Pages)
	assert.Equal(t, 1, res.Notified)
	require.Len(t, env.notifier.sent, 1)
	assert.Equal(t, int64(70), env.notifier.sent[0].userID)
	assert.Equal(t, notify.KindClaimsDiscovered, env.notifier.sent[0].payload.Kind)
	assert.Equal(t, 3, env.notifier.sent[0].payload.Count)
	assert.Equal(t, res.RunID, env.notifier.sent[0].payload.RunID)
}

func TestDiscovery_ReplacesStaleClaims(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	docID := env.addDocument(t, unresolvedAuthor(1, "Ana", "Petrović"))
	e := env.entry(t, docID)
	e.Claims = []search.Claim{{PersonID: 99, Ordinal: 0}}
	require.NoError(t, env.index.Upsert(ctx, e))

	env.discover(t)

	assert.Empty(t, env.entry(t, docID).Claims)
}

func TestClaimDocument_NotAClaimerIsNoop(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	docID := env.addDocument(t, unresolvedAuthor(1, "Ana", "Petrović"))
	env.addPerson(t, 7, "Ana", "Petrović", ptr(70))
	env.addPerson(t, 8, "Jovan", "Jović", ptr(80))
	env.discover(t)

	require.NoError(t, env.resolver.ClaimDocument(ctx, 80, docID))

	e := env.entry(t, docID)
	assert.Equal(t, []int64{search.UnresolvedID}, e.AuthorIDs)
	assert.Len(t, e.Claims, 1)
}

func TestClaimDocument_ClearsEveryClaim(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	docID := env.addDocument(t,
		unresolvedAuthor(1, "Ana", "Petrović"),
		unresolvedAuthor(2, "Marko", "Marković"),
	)
	env.addPerson(t, 7, "Ana", "Petrović", ptr(70))
	env.addPerson(t, 8, "Marko", "Marković", ptr(80))
	env.discover(t)
	require.Len(t, env.entry(t, docID).Claims, 2)

	require.NoError(t, env.resolver.ClaimDocument(ctx, 80, docID))

	e := env.entry(t, docID)
	assert.Equal(t, []int64{search.UnresolvedID, 8}, e.AuthorIDs)
	assert.Empty(t, e.Claims)

	// The other slot is offered again on the next run.
	env.discover(t)
	assert.Equal(t, []search.Claim{{PersonID: 7, Ordinal: 0}}, env.entry(t, docID).Claims)
}

func TestClaimDocument_ConcurrentClaimsBindOnce(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	docID := env.addDocument(t, unresolvedAuthor(1, "Ana", "Petrović"))
	env.addPerson(t, 7, "Ana", "Petrović", ptr(70))
	env.addPerson(t, 8, "Ana", "Petrović", ptr(80))
	env.discover(t)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, userID := range []int64{70, 80} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = env.resolver.ClaimDocument(ctx, userID, docID)
		}()
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	e := env.entry(t, docID)
	assert.Empty(t, e.Claims)
	require.Len(t, e.AuthorIDs, 1)
	assert.Contains(t, []int64{7, 8}, e.AuthorIDs[0])

	contributions, err := env.store.GetContributionsForDocument(ctx, docID)
	require.NoError(t, err)
	require.NotNil(t, contributions[0].PersonID)
	assert.Equal(t, e.AuthorIDs[0], *contributions[0].PersonID)
}

func TestClaimDocument_OrdinalOutOfRangePanics(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	docID := env.addDocument(t, unresolvedAuthor(1, "Ana", "Petrović"))
	env.addPerson(t, 7, "Ana", "Petrović", ptr(70))

	e := env.entry(t, docID)
	e.Claims = []search.Claim{{PersonID: 7, Ordinal: 3}}
	require.NoError(t, env.index.Upsert(ctx, e))

	assert.Panics(t, func() {
		_ = env.resolver.ClaimDocument(ctx, 70, docID)
	})
}

func TestClaimDocument_UnknownUser(t *testing.T) {
	env := setup(t)

	docID := env.addDocument(t, unresolvedAuthor(1, "Ana", "Petrović"))

	err := env.resolver.ClaimDocument(context.Background(), 12345, docID)
	assert.True(t, domainerrors.Is(err, domainerrors.ErrNotFound))
}

func TestClaimDocument_MissingEntry(t *testing.T) {
	env := setup(t)
	env.addPerson(t, 7, "Ana", "Petrović", ptr(70))

	err := env.resolver.ClaimDocument(context.Background(), 70, 404)
	assert.ErrorIs(t, err, search.ErrEntryNotFound)
}

func TestResolver_RateLimited(t *testing.T) {
	env := setup(t)
	resolver := NewResolver(env.index, env.store, denyAll{}, nil, logger.Discard())

	err := resolver.ClaimDocument(context.Background(), 70, 1)
	assert.True(t, domainerrors.Is(err, domainerrors.ErrRateLimited))

	err = resolver.DeclineClaim(context.Background(), 70, 1)
	assert.True(t, domainerrors.Is(err, domainerrors.ErrRateLimited))
}

func TestDeclineClaim_WithoutEntry(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	env.addPerson(t, 7, "Ana", "Petrović", ptr(70))

	docID := env.addDocument(t, unresolvedAuthor(1, "Ana", "Petrović"))
	require.NoError(t, env.indexer.DeleteDocument(ctx, docID))

	require.NoError(t, env.resolver.DeclineClaim(ctx, 70, docID))

	ok, err := env.store.CanBeClaimedByPerson(ctx, 7, docID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFindPotentialClaims(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	first := env.addDocument(t, unresolvedAuthor(1, "Ana", "Petrović"))
	second := env.addDocument(t, unresolvedAuthor(1, "Ana", "Petrović"))
	env.addDocument(t, unresolvedAuthor(1, "Jovan", "Jović"))
	env.addPerson(t, 7, "Ana", "Petrović", ptr(70))
	env.discover(t)

	page, err := env.resolver.FindPotentialClaims(ctx, 70, search.PageRequest{Size: 10})
	require.NoError(t, err)

	var got []int64
	for _, e := range page.Entries {
		got = append(got, e.DatabaseID)
	}
	assert.Equal(t, []int64{first, second}, got)
}
