package profiles

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/BetselotB/idea-plate/internal/apperr"
	"github.com/BetselotB/idea-plate/internal/identity"
	"github.com/BetselotB/idea-plate/internal/models"
	"github.com/BetselotB/idea-plate/internal/storage"
)

var ada = &identity.Caller{UID: "u1", Email: "ada@example.com", DisplayName: "Ada", EmailVerified: true}

func openStore(t *testing.T) *storage.Store {
	t.Helper()
	store, err := storage.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func seedIdeas(t *testing.T, store *storage.Store, author *identity.Caller, n int) []string {
	t.Helper()
	var ids []string
	for i := 0; i < n; i++ {
		idea, err := store.InsertIdea(context.Background(), models.NewIdea{
			Title:       "idea",
			Description: "desc",
			Category:    models.CategoryOther,
			AuthorID:    author.UID,
			AuthorName:  author.DisplayName,
			AuthorEmail: author.Email,
			Tags:        []string{},
		})
		require.NoError(t, err)
		ids = append(ids, idea.ID)
	}
	return ids
}

// flakyStore fails SetAuthorName for the listed ideas a fixed number of times.
type flakyStore struct {
	*storage.Store
	mu       sync.Mutex
	failures map[string]int
}

func (f *flakyStore) SetAuthorName(ctx context.Context, ideaID, name string) error {
	f.mu.Lock()
	if f.failures[ideaID] > 0 {
		f.failures[ideaID]--
		f.mu.Unlock()
		return apperr.Store("set author name", errors.New("database is locked"))
	}
	f.mu.Unlock()
	return f.Store.SetAuthorName(ctx, ideaID, name)
}

func ptr[T any](v T) *T { return &v }

func TestEnsure(t *testing.T) {
	svc := NewService(openStore(t), nil, 0)
	ctx := context.Background()

	p, err := svc.Ensure(ctx, ada)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", p.Email)
	assert.Equal(t, "Ada", p.DisplayName)

	changed := *ada
	changed.DisplayName = "Other"
	p, err = svc.Ensure(ctx, &changed)
	require.NoError(t, err)
	assert.Equal(t, "Ada", p.DisplayName, "existing profile is not overwritten")

	_, err = svc.Ensure(ctx, nil)
	assert.ErrorIs(t, err, apperr.ErrAuth)
}

func TestGet(t *testing.T) {
	svc := NewService(openStore(t), nil, 0)
	_, err := svc.Get(context.Background(), "ghost")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = svc.Get(context.Background(), "")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestUpsertOwnerOnly(t *testing.T) {
	svc := NewService(openStore(t), nil, 0)
	ctx := context.Background()

	_, err := svc.Upsert(ctx, ada, "u2", models.ProfileFields{Twitter: ptr("@x")})
	assert.ErrorIs(t, err, apperr.ErrAuth)
	_, err = svc.Upsert(ctx, nil, "u1", models.ProfileFields{})
	assert.ErrorIs(t, err, apperr.ErrAuth)
	_, err = svc.Upsert(ctx, ada, "u1", models.ProfileFields{DisplayName: ptr("  ")})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	p, err := svc.Upsert(ctx, ada, "u1", models.ProfileFields{
		LinkedIn: ptr("https://linkedin.com/in/ada"),
		Website:  ptr("https://ada.dev"),
	})
	require.NoError(t, err)
	assert.Equal(t, "https://ada.dev", p.Website)
	assert.Equal(t, "ada@example.com", p.Email)
	assert.Equal(t, "Ada", p.DisplayName)
}

func TestUpsertRenameFansOut(t *testing.T) {
	store := openStore(t)
	core, logs := observer.New(zapcore.InfoLevel)
	svc := NewService(store, zap.New(core), 0)
	ctx := context.Background()
	ids := seedIdeas(t, store, ada, 4)
	other := seedIdeas(t, store, &identity.Caller{UID: "u2", DisplayName: "Bob", Email: "b@example.com"}, 1)

	p, err := svc.Upsert(ctx, ada, "u1", models.ProfileFields{DisplayName: ptr("Ada Lovelace")})
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", p.DisplayName)
	assert.Equal(t, 1, logs.FilterMessage("display name changed").Len())

	for _, id := range ids {
		idea, err := store.GetIdea(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "Ada Lovelace", idea.AuthorName)
	}
	idea, err := store.GetIdea(ctx, other[0])
	require.NoError(t, err)
	assert.Equal(t, "Bob", idea.AuthorName)
}

func TestRenameRetriesWithinPasses(t *testing.T) {
	store := openStore(t)
	ids := seedIdeas(t, store, ada, 3)
	flaky := &flakyStore{Store: store, failures: map[string]int{ids[1]: 2}}
	svc := NewService(flaky, nil, 3)
	ctx := context.Background()

	_, err := svc.Upsert(ctx, ada, "u1", models.ProfileFields{DisplayName: ptr("New")})
	require.NoError(t, err)
	for _, id := range ids {
		idea, err := store.GetIdea(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "New", idea.AuthorName)
	}
}

func TestRenamePartialFailureThenResync(t *testing.T) {
	store := openStore(t)
	ids := seedIdeas(t, store, ada, 3)
	flaky := &flakyStore{Store: store, failures: map[string]int{ids[0]: 5}}
	svc := NewService(flaky, nil, 2)
	ctx := context.Background()

	p, err := svc.Upsert(ctx, ada, "u1", models.ProfileFields{DisplayName: ptr("New")})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrStore)
	require.NotNil(t, p, "profile write is kept")
	assert.Equal(t, "New", p.DisplayName)

	stale, err := store.IdeasWithStaleAuthorName(ctx, "u1", "New")
	require.NoError(t, err)
	assert.Equal(t, []string{ids[0]}, stale)

	flaky.failures[ids[0]] = 0
	require.NoError(t, svc.ResyncAuthorName(ctx, "u1"))
	stale, err = store.IdeasWithStaleAuthorName(ctx, "u1", "New")
	require.NoError(t, err)
	assert.Empty(t, stale)

	require.NoError(t, svc.ResyncAuthorName(ctx, "u1"), "resync is idempotent")
}

func TestResyncMissingProfile(t *testing.T) {
	svc := NewService(openStore(t), nil, 0)
	assert.ErrorIs(t, svc.ResyncAuthorName(context.Background(), "ghost"), apperr.ErrNotFound)
}
