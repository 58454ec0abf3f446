// Package annotations persists the annotation list of each book.
//
// # Usage
//
//	repo := annotations.NewRepository(store)
//	list, err := repo.Load(ctx, bookID)
package annotations

import (
	"context"
	"errors"
	"fmt"

	"github.com/mrlokans/lectern/internal/entities"
	"github.com/mrlokans/lectern/internal/kv"
)

// Repository handles annotation records.
type Repository struct {
	store kv.Store
}

// NewRepository creates a new annotations repository.
func NewRepository(store kv.Store) *Repository {
	return &Repository{store: store}
}

// Load returns the saved annotations for a book, or an empty list.
func (r *Repository) Load(ctx context.Context, id entities.BookID) ([]entities.Annotation, error) {
	var list []entities.Annotation
	err := kv.GetJSON(ctx, r.store, kv.Path(entities.ConcernAnnotations, id.String()), &list)
	if errors.Is(err, kv.ErrNotFound) {
		return []entities.Annotation{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load annotations: %w", err)
	}
	if list == nil {
		list = []entities.Annotation{}
	}
	return list, nil
}

// Save overwrites the annotation list of a book.
func (r *Repository) Save(ctx context.Context, id entities.BookID, list []entities.Annotation) error {
	if list == nil {
		list = []entities.Annotation{}
	}
	if err := kv.PutJSON(ctx, r.store, kv.Path(entities.ConcernAnnotations, id.String()), list); err != nil {
		return fmt.Errorf("save annotations: %w", err)
	}
	return nil
}

// Delete removes the record of a book.
func (r *Repository) Delete(ctx context.Context, id entities.BookID) error {
	return r.store.Delete(ctx, kv.Path(entities.ConcernAnnotations, id.String()))
}
