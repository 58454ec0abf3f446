// Package readingstate persists the last reading location and the cached
// grounding reference of each book.
package readingstate

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/mrlokans/lectern/internal/entities"
	"github.com/mrlokans/lectern/internal/kv"
)

// Repository handles reading-state records. Field updates are applied as
// read-modify-write under a lock so that a location save and a grounding
// update for the same book never drop each other's field.
type Repository struct {
	store kv.Store
	mu    sync.Mutex
}

// NewRepository creates a new reading-state repository.
func NewRepository(store kv.Store) *Repository {
	return &Repository{store: store}
}

// Load returns the reading state of a book, or the zero state.
func (r *Repository) Load(ctx context.Context, id entities.BookID) (entities.ReadingState, error) {
	var state entities.ReadingState
	err := kv.GetJSON(ctx, r.store, kv.Path(entities.ConcernReadingState, id.String()), &state)
	if errors.Is(err, kv.ErrNotFound) {
		return entities.ReadingState{}, nil
	}
	if err != nil {
		return entities.ReadingState{}, fmt.Errorf("load reading state: %w", err)
	}
	return state, nil
}

// Save overwrites the reading state of a book.
func (r *Repository) Save(ctx context.Context, id entities.BookID, state entities.ReadingState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.save(ctx, id, state)
}

// SetLastLocation updates the location and keeps the grounding reference.
func (r *Repository) SetLastLocation(ctx context.Context, id entities.BookID, loc entities.LocationRange) error {
	return r.update(ctx, id, func(state *entities.ReadingState) {
		state.LastLocation = &loc
	})
}

// SetGroundingRef updates the grounding reference and keeps the location.
func (r *Repository) SetGroundingRef(ctx context.Context, id entities.BookID, ref string) error {
	return r.update(ctx, id, func(state *entities.ReadingState) {
		state.GroundingRef = ref
	})
}

// Delete removes the record of a book.
func (r *Repository) Delete(ctx context.Context, id entities.BookID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.store.Delete(ctx, kv.Path(entities.ConcernReadingState, id.String()))
}

func (r *Repository) update(ctx context.Context, id entities.BookID, apply func(*entities.ReadingState)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, err := r.Load(ctx, id)
	if err != nil {
		return err
	}
	apply(&state)
	return r.save(ctx, id, state)
}

func (r *Repository) save(ctx context.Context, id entities.BookID, state entities.ReadingState) error {
	if err := kv.PutJSON(ctx, r.store, kv.Path(entities.ConcernReadingState, id.String()), state); err != nil {
		return fmt.Errorf("save reading state: %w", err)
	}
	return nil
}
