// Package settings persists the global provider settings record.
//
// # Usage
//
//	repo := settings.NewRepository(store)
//	all, err := repo.Load(ctx)
//	err = repo.SetProvider(ctx, entities.ProviderKimiChat, entities.ProviderSetting{Key: "..."})
package settings

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/mrlokans/lectern/internal/entities"
	"github.com/mrlokans/lectern/internal/kv"
)

// Repository handles the settings record.
type Repository struct {
	store kv.Store
	mu    sync.Mutex
}

// NewRepository creates a new settings repository.
func NewRepository(store kv.Store) *Repository {
	return &Repository{store: store}
}

// Load returns the stored settings, or an empty map when none were saved.
func (r *Repository) Load(ctx context.Context) (entities.ProviderSettings, error) {
	all := entities.ProviderSettings{}
	err := kv.GetJSON(ctx, r.store, kv.GlobalPath(entities.SettingsRecord), &all)
	if errors.Is(err, kv.ErrNotFound) {
		return entities.ProviderSettings{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	return all, nil
}

// GetProvider returns one family's entry and whether it exists.
func (r *Repository) GetProvider(ctx context.Context, provider entities.ProviderID) (entities.ProviderSetting, bool, error) {
	all, err := r.Load(ctx)
	if err != nil {
		return entities.ProviderSetting{}, false, err
	}
	setting, ok := all[provider]
	return setting, ok, nil
}

// SetProvider creates or replaces one family's entry.
func (r *Repository) SetProvider(ctx context.Context, provider entities.ProviderID, setting entities.ProviderSetting) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	all, err := r.Load(ctx)
	if err != nil {
		return err
	}
	all[provider] = setting
	return r.save(ctx, all)
}

// DeleteProvider removes one family's entry.
func (r *Repository) DeleteProvider(ctx context.Context, provider entities.ProviderID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	all, err := r.Load(ctx)
	if err != nil {
		return err
	}
	if _, ok := all[provider]; !ok {
		return nil
	}
	delete(all, provider)
	return r.save(ctx, all)
}

func (r *Repository) save(ctx context.Context, all entities.ProviderSettings) error {
	if err := kv.PutJSON(ctx, r.store, kv.GlobalPath(entities.SettingsRecord), all); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}
