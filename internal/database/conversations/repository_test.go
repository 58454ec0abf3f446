package conversations

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/lectern/internal/entities"
	"github.com/mrlokans/lectern/internal/kv"
)

func TestRepository(t *testing.T) {
	ctx := context.Background()
	store, err := kv.NewFileStore(t.TempDir())
	require.NoError(t, err)
	repo := NewRepository(store)
	id := entities.NewBookID([]byte("book"))

	t.Run("missing history is empty", func(t *testing.T) {
		history, err := repo.Load(ctx, id)
		require.NoError(t, err)
		assert.NotNil(t, history)
		assert.Empty(t, history)
	})

	t.Run("history is stored verbatim", func(t *testing.T) {
		history := entities.ConversationHistory{
			{Role: entities.RoleUser, Content: "Who is the narrator?"},
			{Role: entities.RoleAssistant, Content: "network error"},
		}
		require.NoError(t, repo.Save(ctx, id, history))

		loaded, err := repo.Load(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, history, loaded)

		data, err := store.Get(ctx, kv.Path(entities.ConcernConversation, id.String()))
		require.NoError(t, err)
		assert.JSONEq(t, `[{"role":"user","content":"Who is the narrator?"},{"role":"assistant","content":"network error"}]`, string(data))
	})

	t.Run("delete clears history", func(t *testing.T) {
		require.NoError(t, repo.Delete(ctx, id))
		history, err := repo.Load(ctx, id)
		require.NoError(t, err)
		assert.Empty(t, history)
	})
}
