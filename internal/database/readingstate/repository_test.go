package readingstate

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/lectern/internal/entities"
	"github.com/mrlokans/lectern/internal/kv"
)

func setupTestRepo(t *testing.T) *Repository {
	t.Helper()
	store, err := kv.NewFileStore(t.TempDir())
	require.NoError(t, err)
	return NewRepository(store)
}

func TestRepository_LoadMissing(t *testing.T) {
	repo := setupTestRepo(t)

	state, err := repo.Load(context.Background(), entities.BookID("missing"))
	require.NoError(t, err)
	assert.Nil(t, state.LastLocation)
	assert.Empty(t, state.GroundingRef)
}

func TestRepository_FieldUpdatesPreserveEachOther(t *testing.T) {
	ctx := context.Background()
	repo := setupTestRepo(t)
	id := entities.NewBookID([]byte("book"))

	require.NoError(t, repo.SetLastLocation(ctx, id, "epubcfi(/6/8)"))
	require.NoError(t, repo.SetGroundingRef(ctx, id, "kimichat:file-1"))

	state, err := repo.Load(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, state.LastLocation)
	assert.Equal(t, entities.LocationRange("epubcfi(/6/8)"), *state.LastLocation)
	assert.Equal(t, "kimichat:file-1", state.GroundingRef)

	require.NoError(t, repo.SetLastLocation(ctx, id, "epubcfi(/6/10)"))
	state, err = repo.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, entities.LocationRange("epubcfi(/6/10)"), *state.LastLocation)
	assert.Equal(t, "kimichat:file-1", state.GroundingRef)
}

func TestRepository_ConcurrentUpdates(t *testing.T) {
	ctx := context.Background()
	repo := setupTestRepo(t)
	id := entities.NewBookID([]byte("book"))

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		assert.NoError(t, repo.SetLastLocation(ctx, id, "epubcfi(/6/4)"))
	}()
	go func() {
		defer wg.Done()
		assert.NoError(t, repo.SetGroundingRef(ctx, id, "local:doc"))
	}()
	wg.Wait()

	state, err := repo.Load(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, state.LastLocation)
	assert.Equal(t, "local:doc", state.GroundingRef)
}

func TestRepository_WireFormat(t *testing.T) {
	ctx := context.Background()
	repo := setupTestRepo(t)
	id := entities.NewBookID([]byte("book"))

	require.NoError(t, repo.Save(ctx, id, entities.ReadingState{}))
	data, err := repo.store.Get(ctx, kv.Path(entities.ConcernReadingState, id.String()))
	require.NoError(t, err)
	assert.JSONEq(t, `{"location":null}`, string(data))
}
