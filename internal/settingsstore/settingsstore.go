// Package settingsstore resolves the effective provider configuration.
//
// Priority: settings record > environment > default. Keys entered through
// the settings API are sealed before they reach the record.
package settingsstore

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/mrlokans/lectern/internal/config"
	"github.com/mrlokans/lectern/internal/crypto"
	"github.com/mrlokans/lectern/internal/database/settings"
	"github.com/mrlokans/lectern/internal/entities"
)

const (
	SourceRecord      = "database"
	SourceEnvironment = "environment"
	SourceDefault     = "default"
)

// envVars names the environment variables read for each family.
type envVars struct {
	URL   string
	Key   string
	Model string
}

var providerEnv = map[entities.ProviderID]envVars{
	entities.ProviderDeepSeek: {URL: "DEEPSEEK_URL", Key: "DEEPSEEK_API_KEY", Model: "DEEPSEEK_MODEL"},
	entities.ProviderKimiChat: {URL: "KIMI_URL", Key: "KIMI_API_KEY", Model: "KIMI_MODEL"},
	entities.ProviderLocal:    {URL: "LOCAL_MODEL_URL", Model: "LOCAL_MODEL"},
}

type SettingsStore struct {
	repo     *settings.Repository
	enc      *crypto.Encryptor
	fallback map[entities.ProviderID]entities.ProviderConfig
}

// New creates a settings store. cfg supplies the environment-or-default
// values used when the record has no entry.
func New(repo *settings.Repository, enc *crypto.Encryptor, cfg config.Providers) *SettingsStore {
	return &SettingsStore{
		repo: repo,
		enc:  enc,
		fallback: map[entities.ProviderID]entities.ProviderConfig{
			entities.ProviderDeepSeek: {
				ProviderID:   entities.ProviderDeepSeek,
				BaseEndpoint: cfg.DeepSeekURL,
				Credential:   cfg.DeepSeekKey,
				ModelName:    cfg.DeepSeekModel,
			},
			entities.ProviderKimiChat: {
				ProviderID:   entities.ProviderKimiChat,
				BaseEndpoint: cfg.KimiURL,
				Credential:   cfg.KimiKey,
				ModelName:    cfg.KimiModel,
			},
			entities.ProviderLocal: {
				ProviderID:   entities.ProviderLocal,
				BaseEndpoint: cfg.LocalURL,
				ModelName:    cfg.LocalModel,
			},
		},
	}
}

// ProviderConfig returns the effective configuration of one family.
func (s *SettingsStore) ProviderConfig(ctx context.Context, provider entities.ProviderID) (entities.ProviderConfig, error) {
	cfg, ok := s.fallback[provider]
	if !ok {
		return entities.ProviderConfig{}, fmt.Errorf("unknown provider %q", provider)
	}

	stored, found, err := s.repo.GetProvider(ctx, provider)
	if err != nil {
		return entities.ProviderConfig{}, err
	}
	if !found {
		return cfg, nil
	}

	if stored.URL != "" {
		cfg.BaseEndpoint = stored.URL
	}
	if stored.Model != "" {
		cfg.ModelName = stored.Model
	}
	if stored.Key != "" {
		key, err := s.openKey(stored.Key)
		if err != nil {
			return entities.ProviderConfig{}, fmt.Errorf("open %s key: %w", provider, err)
		}
		cfg.Credential = key
	}
	return cfg, nil
}

// ProviderUpdate changes one family's entry. Nil fields are kept; empty
// strings clear the stored value so the environment or default applies.
type ProviderUpdate struct {
	URL   *string `json:"url"`
	Key   *string `json:"key"`
	Model *string `json:"model"`
}

// UpdateProvider applies an update to the settings record.
func (s *SettingsStore) UpdateProvider(ctx context.Context, provider entities.ProviderID, update ProviderUpdate) error {
	if _, ok := s.fallback[provider]; !ok {
		return fmt.Errorf("unknown provider %q", provider)
	}

	stored, _, err := s.repo.GetProvider(ctx, provider)
	if err != nil {
		return err
	}
	if update.URL != nil {
		stored.URL = *update.URL
	}
	if update.Model != nil {
		stored.Model = *update.Model
	}
	if update.Key != nil {
		sealed, err := s.sealKey(*update.Key)
		if err != nil {
			return fmt.Errorf("seal %s key: %w", provider, err)
		}
		stored.Key = sealed
	}

	if stored == (entities.ProviderSetting{}) {
		return s.repo.DeleteProvider(ctx, provider)
	}
	log.Printf("Settings: updated %s provider", provider)
	return s.repo.SetProvider(ctx, provider, stored)
}

// ClearProvider drops the stored entry of one family.
func (s *SettingsStore) ClearProvider(ctx context.Context, provider entities.ProviderID) error {
	return s.repo.DeleteProvider(ctx, provider)
}

// ProviderInfo describes one family's effective settings for display.
// The key itself is never returned.
type ProviderInfo struct {
	Provider    entities.ProviderID `json:"provider"`
	URL         string              `json:"url"`
	URLSource   string              `json:"url_source"`
	Model       string              `json:"model"`
	ModelSource string              `json:"model_source"`
	HasKey      bool                `json:"has_key"`
	MaskedKey   string              `json:"masked_key,omitempty"`
	KeySource   string              `json:"key_source"`
}

// ProvidersInfo returns the display info of every family.
func (s *SettingsStore) ProvidersInfo(ctx context.Context) ([]ProviderInfo, error) {
	infos := make([]ProviderInfo, 0, len(entities.KnownProviders))
	for _, provider := range entities.KnownProviders {
		cfg, err := s.ProviderConfig(ctx, provider)
		if err != nil {
			return nil, err
		}
		stored, _, err := s.repo.GetProvider(ctx, provider)
		if err != nil {
			return nil, err
		}
		env := providerEnv[provider]
		infos = append(infos, ProviderInfo{
			Provider:    provider,
			URL:         cfg.BaseEndpoint,
			URLSource:   source(stored.URL, env.URL),
			Model:       cfg.ModelName,
			ModelSource: source(stored.Model, env.Model),
			HasKey:      cfg.Credential != "",
			MaskedKey:   maskToken(cfg.Credential),
			KeySource:   source(stored.Key, env.Key),
		})
	}
	return infos, nil
}

func source(stored, envVar string) string {
	if stored != "" {
		return SourceRecord
	}
	if envVar != "" && os.Getenv(envVar) != "" {
		return SourceEnvironment
	}
	return SourceDefault
}

func (s *SettingsStore) sealKey(key string) (string, error) {
	if key == "" || s.enc == nil {
		return key, nil
	}
	return s.enc.Encrypt(key)
}

// openKey accepts sealed values and plain values written by hand.
func (s *SettingsStore) openKey(value string) (string, error) {
	if !crypto.IsSealed(value) {
		return value, nil
	}
	if s.enc == nil {
		return "", fmt.Errorf("key is sealed but no encryption key is configured")
	}
	return s.enc.Decrypt(value)
}

// maskToken returns a masked version of a credential for display
func maskToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 8 {
		return "****"
	}
	return token[:4] + "****" + token[len(token)-4:]
}
