// Package conversations persists the conversation history of each book.
package conversations

import (
	"context"
	"errors"
	"fmt"

	"github.com/mrlokans/lectern/internal/entities"
	"github.com/mrlokans/lectern/internal/kv"
)

// Repository handles conversation records.
type Repository struct {
	store kv.Store
}

// NewRepository creates a new conversations repository.
func NewRepository(store kv.Store) *Repository {
	return &Repository{store: store}
}

// Load returns the saved history of a book, or an empty history.
func (r *Repository) Load(ctx context.Context, id entities.BookID) (entities.ConversationHistory, error) {
	var history entities.ConversationHistory
	err := kv.GetJSON(ctx, r.store, kv.Path(entities.ConcernConversation, id.String()), &history)
	if errors.Is(err, kv.ErrNotFound) {
		return entities.ConversationHistory{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load conversation: %w", err)
	}
	if history == nil {
		history = entities.ConversationHistory{}
	}
	return history, nil
}

// Save overwrites the history of a book with the given messages verbatim.
func (r *Repository) Save(ctx context.Context, id entities.BookID, history entities.ConversationHistory) error {
	if history == nil {
		history = entities.ConversationHistory{}
	}
	if err := kv.PutJSON(ctx, r.store, kv.Path(entities.ConcernConversation, id.String()), history); err != nil {
		return fmt.Errorf("save conversation: %w", err)
	}
	return nil
}

// Delete removes the record of a book.
func (r *Repository) Delete(ctx context.Context, id entities.BookID) error {
	return r.store.Delete(ctx, kv.Path(entities.ConcernConversation, id.String()))
}
