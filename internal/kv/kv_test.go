package kv

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/lectern/internal/entities"
)

func newFileStore(t *testing.T) Store {
	t.Helper()
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	return store
}

func newGormStore(t *testing.T) Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "records.db")
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&entities.Record{}))
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	})
	return NewGormStore(db)
}

func TestStores(t *testing.T) {
	backends := map[string]func(*testing.T) Store{
		"file": newFileStore,
		"gorm": newGormStore,
	}

	for name, newStore := range backends {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			t.Run("missing record is ErrNotFound", func(t *testing.T) {
				store := newStore(t)
				_, err := store.Get(ctx, Path(entities.ConcernAnnotations, "abc"))
				assert.ErrorIs(t, err, ErrNotFound)
			})

			t.Run("put then get", func(t *testing.T) {
				store := newStore(t)
				p := Path(entities.ConcernAnnotations, "abc")
				require.NoError(t, store.Put(ctx, p, []byte(`[1]`)))

				data, err := store.Get(ctx, p)
				require.NoError(t, err)
				assert.Equal(t, `[1]`, string(data))
			})

			t.Run("put overwrites", func(t *testing.T) {
				store := newStore(t)
				p := Path(entities.ConcernReadingState, "abc")
				require.NoError(t, store.Put(ctx, p, []byte(`{"a":1}`)))
				require.NoError(t, store.Put(ctx, p, []byte(`{"a":2}`)))

				data, err := store.Get(ctx, p)
				require.NoError(t, err)
				assert.Equal(t, `{"a":2}`, string(data))
			})

			t.Run("delete missing is not an error", func(t *testing.T) {
				store := newStore(t)
				assert.NoError(t, store.Delete(ctx, Path(entities.ConcernConversation, "nope")))
			})

			t.Run("delete removes", func(t *testing.T) {
				store := newStore(t)
				p := Path(entities.ConcernConversation, "abc")
				require.NoError(t, store.Put(ctx, p, []byte(`[]`)))
				require.NoError(t, store.Delete(ctx, p))

				_, err := store.Get(ctx, p)
				assert.ErrorIs(t, err, ErrNotFound)
			})

			t.Run("list by prefix", func(t *testing.T) {
				store := newStore(t)
				require.NoError(t, store.Put(ctx, Path(entities.ConcernMetadata, "b"), []byte(`{}`)))
				require.NoError(t, store.Put(ctx, Path(entities.ConcernMetadata, "a"), []byte(`{}`)))
				require.NoError(t, store.Put(ctx, Path(entities.ConcernAnnotations, "a"), []byte(`[]`)))

				paths, err := store.List(ctx, "lectern-data/metadata/")
				require.NoError(t, err)
				assert.Equal(t, []string{
					"lectern-data/metadata/a.json",
					"lectern-data/metadata/b.json",
				}, paths)
			})

			t.Run("rejects escaping paths", func(t *testing.T) {
				store := newStore(t)
				err := store.Put(ctx, "../outside.json", []byte(`{}`))
				assert.ErrorIs(t, err, ErrInvalidPath)
			})
		})
	}
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	store := newFileStore(t)
	p := Path(entities.ConcernReadingState, "book")

	loc := entities.LocationRange("epubcfi(/6/4!/4/2,/1:0,/1:10)")
	require.NoError(t, PutJSON(ctx, store, p, entities.ReadingState{LastLocation: &loc}))

	var state entities.ReadingState
	require.NoError(t, GetJSON(ctx, store, p, &state))
	require.NotNil(t, state.LastLocation)
	assert.Equal(t, loc, *state.LastLocation)
	assert.Empty(t, state.GroundingRef)

	require.NoError(t, store.Put(ctx, p, []byte("{broken")))
	err := GetJSON(ctx, store, p, &state)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestPathHelpers(t *testing.T) {
	assert.Equal(t, "lectern-data/annotations/abc.json", Path(entities.ConcernAnnotations, "abc"))
	assert.Equal(t, "lectern-data/setting.json", GlobalPath(entities.SettingsRecord))
	assert.Equal(t, "abc", IDFromPath("lectern-data/metadata/abc.json"))
}
