package http

import (
	"context"

	"github.com/mrlokans/lectern/internal/conversation"
	"github.com/mrlokans/lectern/internal/diagram"
	"github.com/mrlokans/lectern/internal/entities"
	"github.com/mrlokans/lectern/internal/providers"
	"github.com/mrlokans/lectern/internal/reader"
	"github.com/mrlokans/lectern/internal/settingsstore"
)

// This file consolidates the interfaces HTTP controllers depend on.
// Each controller takes only the interface it needs.

// BookStore is the content store.
type BookStore interface {
	Upload(ctx context.Context, filename string, data []byte) (entities.BookMeta, bool, error)
	Get(ctx context.Context, id entities.BookID) (entities.BookMeta, error)
	List(ctx context.Context) ([]entities.BookMeta, error)
	Cover(ctx context.Context, id entities.BookID) ([]byte, string, error)
	Delete(ctx context.Context, id entities.BookID) error
	MaxUploadBytes() int64
}

// ReaderSessions owns the open book view.
type ReaderSessions interface {
	Open(ctx context.Context, id entities.BookID) (*reader.Session, error)
	Current() (*reader.Session, error)
	UpdateLocation(loc entities.LocationRange) error
	SaveLocation(ctx context.Context) (entities.LocationRange, error)
	Close(ctx context.Context)
	Forget(ctx context.Context, id entities.BookID)
}

// ChatService runs conversations about books.
type ChatService interface {
	Ask(ctx context.Context, id entities.BookID, model, question string) (conversation.Exchange, error)
	AskPreset(ctx context.Context, id entities.BookID, model string, prompt conversation.QuickPrompt) (conversation.Exchange, error)
	Explain(ctx context.Context, model, selection, question string) (providers.Completion, error)
	History(ctx context.Context, id entities.BookID) (entities.ConversationHistory, error)
	Clear(ctx context.Context, id entities.BookID) error
}

// DiagramService generates diagrams about books.
type DiagramService interface {
	Generate(ctx context.Context, id entities.BookID, req diagram.Request) (diagram.Status, error)
	Status(id entities.BookID) diagram.Status
}

// ProviderSettings manages the provider settings record.
type ProviderSettings interface {
	ProvidersInfo(ctx context.Context) ([]settingsstore.ProviderInfo, error)
	UpdateProvider(ctx context.Context, provider entities.ProviderID, update settingsstore.ProviderUpdate) error
	ClearProvider(ctx context.Context, provider entities.ProviderID) error
}

// Pinger checks a backing database.
type Pinger interface {
	Ping() error
}
