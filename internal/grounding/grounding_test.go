package grounding

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/lectern/internal/database/readingstate"
	"github.com/mrlokans/lectern/internal/entities"
	"github.com/mrlokans/lectern/internal/kv"
)

type fakeBooks struct {
	data map[entities.BookID][]byte
}

func (f *fakeBooks) Get(_ context.Context, id entities.BookID) (entities.BookMeta, error) {
	if _, ok := f.data[id]; !ok {
		return entities.BookMeta{}, errors.New("book not found")
	}
	return entities.BookMeta{ID: id, Filename: "book.epub"}, nil
}

func (f *fakeBooks) Bytes(_ context.Context, id entities.BookID) ([]byte, error) {
	data, ok := f.data[id]
	if !ok {
		return nil, errors.New("book not found")
	}
	return data, nil
}

type fakeRegistrar struct {
	uploads   atomic.Int32
	textCalls atomic.Int32
	uploadErr error
	release   chan struct{}
}

func (f *fakeRegistrar) GroundingConfig(context.Context) (entities.ProviderConfig, error) {
	return entities.ProviderConfig{ProviderID: entities.ProviderKimiChat}, nil
}

func (f *fakeRegistrar) RegisterDocument(_ context.Context, _ entities.ProviderConfig, _ string, data []byte) (string, error) {
	f.uploads.Add(1)
	if f.release != nil {
		<-f.release
	}
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	return "kimichat:file-" + string(data), nil
}

func (f *fakeRegistrar) DocumentText(_ context.Context, ref string) (string, error) {
	f.textCalls.Add(1)
	return "text of " + ref, nil
}

func setup(t *testing.T) (*Manager, *fakeRegistrar, *readingstate.Repository, entities.BookID) {
	t.Helper()
	store, err := kv.NewFileStore(t.TempDir())
	require.NoError(t, err)

	id := entities.NewBookID([]byte("book"))
	states := readingstate.NewRepository(store)
	registrar := &fakeRegistrar{}
	books := &fakeBooks{data: map[entities.BookID][]byte{id: []byte("book")}}
	return NewManager(books, states, registrar), registrar, states, id
}

func TestGetGroundingRef_UploadsOnce(t *testing.T) {
	m, registrar, states, id := setup(t)
	ctx := context.Background()

	first, err := m.GetGroundingRef(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "kimichat:file-book", first)

	second, err := m.GetGroundingRef(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), registrar.uploads.Load())

	state, err := states.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, first, state.GroundingRef)
}

func TestGetGroundingRef_KeepsLastLocation(t *testing.T) {
	m, _, states, id := setup(t)
	ctx := context.Background()

	require.NoError(t, states.SetLastLocation(ctx, id, "epubcfi(/6/4!/4/2)"))
	_, err := m.GetGroundingRef(ctx, id)
	require.NoError(t, err)

	state, err := states.Load(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, state.LastLocation)
	assert.Equal(t, entities.LocationRange("epubcfi(/6/4!/4/2)"), *state.LastLocation)
}

func TestGetGroundingRef_ConcurrentMissesShareUpload(t *testing.T) {
	m, registrar, _, id := setup(t)
	registrar.release = make(chan struct{})
	ctx := context.Background()

	const callers = 5
	var wg sync.WaitGroup
	refs := make([]string, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			refs[i], errs[i] = m.GetGroundingRef(ctx, id)
		}(i)
	}

	require.Eventually(t, func() bool { return registrar.uploads.Load() >= 1 }, time.Second, 5*time.Millisecond)
	// Give the remaining callers time to join the in-flight call.
	time.Sleep(50 * time.Millisecond)
	close(registrar.release)
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "kimichat:file-book", refs[i])
	}
	assert.Equal(t, int32(1), registrar.uploads.Load())
}

func TestGetGroundingRef_UploadFailure(t *testing.T) {
	m, registrar, states, id := setup(t)
	registrar.uploadErr = errors.New("connection reset")
	ctx := context.Background()

	_, err := m.GetGroundingRef(ctx, id)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, err, registrar.uploadErr)

	state, err := states.Load(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, state.GroundingRef)

	// Not cached, so the next attempt uploads again.
	registrar.uploadErr = nil
	ref, err := m.GetGroundingRef(ctx, id)
	require.NoError(t, err)
	assert.NotEmpty(t, ref)
	assert.Equal(t, int32(2), registrar.uploads.Load())
}

func TestGetGroundingRef_MissingBook(t *testing.T) {
	m, registrar, _, _ := setup(t)

	_, err := m.GetGroundingRef(context.Background(), entities.NewBookID([]byte("other")))
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, int32(0), registrar.uploads.Load())
}

func TestGroundingText_Memoised(t *testing.T) {
	m, registrar, _, id := setup(t)
	ctx := context.Background()

	text, err := m.GroundingText(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "text of kimichat:file-book", text)

	_, err = m.GroundingText(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int32(1), registrar.textCalls.Load())
	assert.Equal(t, int32(1), registrar.uploads.Load())
}

func TestGroundingText_Forget(t *testing.T) {
	m, registrar, _, id := setup(t)
	ctx := context.Background()

	_, err := m.GroundingText(ctx, id)
	require.NoError(t, err)
	m.Forget("kimichat:file-book")
	m.Forget("")

	_, err = m.GroundingText(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int32(2), registrar.textCalls.Load(), "forgotten text is fetched again")
}

func TestGroundingText_Bounded(t *testing.T) {
	store, err := kv.NewFileStore(t.TempDir())
	require.NoError(t, err)
	books := &fakeBooks{data: map[entities.BookID][]byte{}}
	var ids []entities.BookID
	for i := 0; i < maxCachedTexts+3; i++ {
		data := []byte{byte('a' + i)}
		id := entities.NewBookID(data)
		books.data[id] = data
		ids = append(ids, id)
	}
	m := NewManager(books, readingstate.NewRepository(store), &fakeRegistrar{})

	for _, id := range ids {
		_, err := m.GroundingText(context.Background(), id)
		require.NoError(t, err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	assert.Len(t, m.texts, maxCachedTexts)
}
