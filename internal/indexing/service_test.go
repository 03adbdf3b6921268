package indexing

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crisrs/cris-server/internal/domain"
	"github.com/crisrs/cris-server/internal/logger"
	"github.com/crisrs/cris-server/internal/metrics"
	"github.com/crisrs/cris-server/internal/search"
	"github.com/crisrs/cris-server/internal/store/sqlite"
)

type testEnv struct {
	store   *sqlite.Store
	index   *search.Index
	service *Service
}

func setupService(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()

	store, err := sqlite.Open(filepath.Join(dir, "cris.db"), logger.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	index, err := search.NewIndex(search.Options{DataPath: filepath.Join(dir, "index"), Logger: logger.Discard()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })

	r := testReducer()
	projector := NewProjector(r, NewFileTextAggregator(store, r))
	return &testEnv{
		store:   store,
		index:   index,
		service: NewService(store, index, projector, metrics.New(nil), logger.Discard()),
	}
}

func (env *testEnv) save(t *testing.T, doc *domain.Document) int64 {
	t.Helper()
	doc.ID = 0
	for i := range doc.Contributions {
		doc.Contributions[i].ID = 0
	}
	require.NoError(t, env.store.SaveDocument(context.Background(), doc))
	return doc.ID
}

func TestIndexDocument_Scenario(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	id := env.save(t, scenarioDocument())
	require.NoError(t, env.service.IndexDocument(ctx, id))

	e, err := env.index.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 2020, e.Year)
	assert.Equal(t, "Ana Petrović", e.AuthorNames)
	assert.Equal(t, []int64{search.UnresolvedID}, e.AuthorIDs)
}

func TestIndexDocument_ApprovalGate(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	id := env.save(t, scenarioDocument())
	require.NoError(t, env.service.IndexDocument(ctx, id))

	require.NoError(t, env.store.SetApprovalStatus(ctx, id, domain.ApprovalDeclined))
	require.NoError(t, env.service.IndexDocument(ctx, id))

	_, err := env.index.FindByID(ctx, id)
	assert.ErrorIs(t, err, search.ErrEntryNotFound)
}

func TestIndexDocument_ThesisIndexedInAnyState(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	doc := scenarioDocument()
	doc.Type = domain.TypeThesis
	doc.ApprovalStatus = domain.ApprovalRequested
	id := env.save(t, doc)

	require.NoError(t, env.service.IndexDocument(ctx, id))

	e, err := env.index.FindByID(ctx, id)
	require.NoError(t, err)
	assert.False(t, e.IsApproved)
	assert.Equal(t, domain.TypeThesis, e.Type)
}

func TestIndexDocument_MissingDocument(t *testing.T) {
	env := setupService(t)

	err := env.service.IndexDocument(context.Background(), 404)
	assert.Error(t, err)
}

func TestIndexDocument_PicksUpExtractedText(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	doc := scenarioDocument()
	doc.Files = []domain.DocumentFile{{FileName: "rad.pdf"}}
	id := env.save(t, doc)
	require.NoError(t, env.store.SaveFileText(ctx, &domain.FileText{
		FileID: doc.Files[0].ID, Text: "tekst rada", Language: "sr",
	}))

	require.NoError(t, env.service.IndexDocument(ctx, id))

	e, err := env.index.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "tekst rada", e.FullTextSr)
	assert.Equal(t, "tekst rada", e.FullTextOther)
}

func TestDeleteDocument(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	id := env.save(t, scenarioDocument())
	require.NoError(t, env.service.IndexDocument(ctx, id))
	require.NoError(t, env.service.DeleteDocument(ctx, id))

	_, err := env.index.FindByID(ctx, id)
	assert.ErrorIs(t, err, search.ErrEntryNotFound)
}

func TestReindexAll(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		env.save(t, scenarioDocument())
	}
	hidden := scenarioDocument()
	hidden.ApprovalStatus = domain.ApprovalRequested
	env.save(t, hidden)

	// A stale entry for a document that no longer exists disappears.
	require.NoError(t, env.index.Upsert(ctx, search.NewEntry(999)))

	n, err := env.service.ReindexAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	count, err := env.index.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), count)
}
