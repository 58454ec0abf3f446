package entrypoint

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/mrlokans/lectern/internal/audit"
	"github.com/mrlokans/lectern/internal/config"
	"github.com/mrlokans/lectern/internal/conversation"
	"github.com/mrlokans/lectern/internal/crypto"
	"github.com/mrlokans/lectern/internal/database"
	"github.com/mrlokans/lectern/internal/database/annotations"
	"github.com/mrlokans/lectern/internal/database/conversations"
	"github.com/mrlokans/lectern/internal/database/readingstate"
	"github.com/mrlokans/lectern/internal/database/settings"
	"github.com/mrlokans/lectern/internal/diagram"
	"github.com/mrlokans/lectern/internal/entities"
	"github.com/mrlokans/lectern/internal/grounding"
	"github.com/mrlokans/lectern/internal/kv"
	"github.com/mrlokans/lectern/internal/library"
	"github.com/mrlokans/lectern/internal/providers"
	"github.com/mrlokans/lectern/internal/reader"
	"github.com/mrlokans/lectern/internal/settingsstore"
)

const secretFileName = "secret.key"

// App holds the wired services shared by the server and the CLI commands.
type App struct {
	Config *config.Config

	DB      *database.Database // nil for the file backend
	Records kv.Store

	Library      *library.Library
	States       *readingstate.Repository
	Annotations  *annotations.Repository
	Settings     *settingsstore.SettingsStore
	Providers    *providers.Router
	Grounding    *grounding.Manager
	Conversation *conversation.Service
	Auditor      *audit.Auditor
	Diagrams     *diagram.Generator
	Reader       *reader.Manager
}

// Build wires every service from cfg.
func Build(cfg *config.Config) (*App, error) {
	if err := os.MkdirAll(cfg.Storage.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	app := &App{Config: cfg}

	switch cfg.Storage.Backend {
	case config.StorageBackendSQLite:
		db, err := database.NewDatabase(cfg.Storage.DatabasePath)
		if err != nil {
			return nil, err
		}
		app.DB = db
		app.Records = db.Records()
	case config.StorageBackendFile, "":
		store, err := kv.NewFileStore(cfg.Storage.DataDir)
		if err != nil {
			return nil, fmt.Errorf("failed to open record store: %w", err)
		}
		app.Records = store
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}

	blobs, err := newBlobs(cfg)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Library = library.New(blobs, app.Records, cfg.Content.MaxUploadBytes)

	secret, err := loadOrCreateSecret(cfg.Secrets.EncryptionKey, filepath.Join(cfg.Storage.DataDir, secretFileName))
	if err != nil {
		app.Close()
		return nil, err
	}
	enc, err := crypto.NewEncryptorFromSecret(secret)
	if err != nil {
		app.Close()
		return nil, err
	}

	app.Settings = settingsstore.New(settings.NewRepository(app.Records), enc, cfg.Providers)
	app.Providers = providers.NewRouter(app.Settings, app.Records, providers.Options{
		Timeout:           cfg.Providers.RequestTimeout,
		GroundingProvider: entities.ProviderID(cfg.Providers.GroundingProvider),
	})

	app.States = readingstate.NewRepository(app.Records)
	app.Annotations = annotations.NewRepository(app.Records)

	app.Grounding = grounding.NewManager(app.Library, app.States, app.Providers)
	app.Library.OnDelete(func(_ entities.BookID, ref string) { app.Grounding.Forget(ref) })
	app.Conversation = conversation.NewService(app.Providers, app.Grounding, conversations.NewRepository(app.Records), cfg.Conversation.WindowSize)
	app.Auditor = audit.NewAuditor(cfg.Audit.Dir)
	app.Diagrams = diagram.NewGenerator(app.Conversation, nil, app.Auditor)
	app.Reader = reader.NewManager(app.Library, app.Annotations, app.States, cfg.Annotations.FlushDebounce)

	return app, nil
}

// Close flushes the open book and releases the database.
func (a *App) Close() {
	if a.Reader != nil {
		a.Reader.Close(context.Background())
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			log.Printf("Error closing database: %v", err)
		}
	}
}

func newBlobs(cfg *config.Config) (library.BlobStore, error) {
	switch cfg.Content.Backend {
	case config.ContentBackendMinio:
		m := cfg.Content.Minio
		blobs, err := library.NewMinioBlobs(m.Endpoint, m.AccessKey, m.SecretKey, m.Bucket, m.UseSSL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to content bucket: %w", err)
		}
		log.Printf("Book content stored in bucket %s at %s", m.Bucket, m.Endpoint)
		return blobs, nil
	case config.ContentBackendFile, "":
		blobs, err := library.NewFileBlobs(filepath.Join(cfg.Storage.DataDir, "books"))
		if err != nil {
			return nil, fmt.Errorf("failed to open content directory: %w", err)
		}
		return blobs, nil
	default:
		return nil, fmt.Errorf("unknown content backend %q", cfg.Content.Backend)
	}
}

// loadOrCreateSecret returns configured when set. Otherwise the secret is read
// from path, generating it on first start.
func loadOrCreateSecret(configured, path string) (string, error) {
	if configured != "" {
		return configured, nil
	}

	data, err := os.ReadFile(path)
	if err == nil {
		if secret := strings.TrimSpace(string(data)); secret != "" {
			return secret, nil
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("failed to read encryption key: %w", err)
	}

	secret, err := crypto.GenerateKey()
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, []byte(secret+"\n"), 0o600); err != nil {
		return "", fmt.Errorf("failed to persist encryption key: %w", err)
	}
	log.Printf("Generated encryption key at %s (set ENCRYPTION_KEY to override)", path)
	return secret, nil
}
