// Package grounding makes sure each book is uploaded to the grounding
// provider at most once and caches the returned reference in the book's
// reading state.
package grounding

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/mrlokans/lectern/internal/entities"
)

// ErrUnavailable is returned when a book cannot be grounded. Callers show a
// network error instead of failing the whole operation.
var ErrUnavailable = errors.New("grounding unavailable")

// maxCachedTexts bounds the extracted texts kept in memory. Each one is a
// whole book.
const maxCachedTexts = 8

// BookSource loads stored books.
type BookSource interface {
	Get(ctx context.Context, id entities.BookID) (entities.BookMeta, error)
	Bytes(ctx context.Context, id entities.BookID) ([]byte, error)
}

// StateStore keeps the cached reference.
type StateStore interface {
	Load(ctx context.Context, id entities.BookID) (entities.ReadingState, error)
	SetGroundingRef(ctx context.Context, id entities.BookID, ref string) error
}

// Registrar uploads documents and reads their extracted text back.
type Registrar interface {
	GroundingConfig(ctx context.Context) (entities.ProviderConfig, error)
	RegisterDocument(ctx context.Context, cfg entities.ProviderConfig, filename string, data []byte) (string, error)
	DocumentText(ctx context.Context, ref string) (string, error)
}

type Manager struct {
	books     BookSource
	states    StateStore
	registrar Registrar

	inflight singleflight.Group

	mu    sync.RWMutex
	texts map[string]string
}

func NewManager(books BookSource, states StateStore, registrar Registrar) *Manager {
	return &Manager{
		books:     books,
		states:    states,
		registrar: registrar,
		texts:     make(map[string]string),
	}
}

// GetGroundingRef returns the cached reference of a book, uploading the
// book first when there is none. Concurrent misses for one book share a
// single upload.
func (m *Manager) GetGroundingRef(ctx context.Context, id entities.BookID) (string, error) {
	state, err := m.states.Load(ctx, id)
	if err != nil {
		return "", unavailable(err)
	}
	if state.GroundingRef != "" {
		return state.GroundingRef, nil
	}

	v, err, shared := m.inflight.Do(id.String(), func() (any, error) {
		return m.upload(ctx, id)
	})
	if err != nil {
		return "", err
	}
	if shared {
		log.Printf("[GROUNDING] Joined in-flight upload for book %s", id)
	}
	return v.(string), nil
}

func (m *Manager) upload(ctx context.Context, id entities.BookID) (string, error) {
	// A concurrent upload may have finished between the lookup and now.
	state, err := m.states.Load(ctx, id)
	if err != nil {
		return "", unavailable(err)
	}
	if state.GroundingRef != "" {
		return state.GroundingRef, nil
	}

	meta, err := m.books.Get(ctx, id)
	if err != nil {
		return "", unavailable(err)
	}
	data, err := m.books.Bytes(ctx, id)
	if err != nil {
		return "", unavailable(err)
	}
	cfg, err := m.registrar.GroundingConfig(ctx)
	if err != nil {
		return "", unavailable(err)
	}

	log.Printf("[GROUNDING] Uploading book %s (%d bytes) to %s", id, len(data), cfg.ProviderID)
	ref, err := m.registrar.RegisterDocument(ctx, cfg, meta.Filename, data)
	if err != nil {
		log.Printf("[GROUNDING] Upload of book %s failed: %v", id, err)
		return "", unavailable(err)
	}
	if err := m.states.SetGroundingRef(ctx, id, ref); err != nil {
		// The upload succeeded; the next call re-uploads.
		log.Printf("[GROUNDING] Failed to cache reference for book %s: %v", id, err)
	}
	return ref, nil
}

// GroundingText returns the extracted text of a book as seen by the
// grounding provider.
func (m *Manager) GroundingText(ctx context.Context, id entities.BookID) (string, error) {
	ref, err := m.GetGroundingRef(ctx, id)
	if err != nil {
		return "", err
	}

	m.mu.RLock()
	text, ok := m.texts[ref]
	m.mu.RUnlock()
	if ok {
		return text, nil
	}

	text, err = m.registrar.DocumentText(ctx, ref)
	if err != nil {
		return "", unavailable(err)
	}

	m.mu.Lock()
	if _, ok := m.texts[ref]; !ok && len(m.texts) >= maxCachedTexts {
		for old := range m.texts {
			delete(m.texts, old)
			break
		}
	}
	m.texts[ref] = text
	m.mu.Unlock()
	return text, nil
}

// Forget drops the cached text of a reference once its book is deleted.
func (m *Manager) Forget(ref string) {
	if ref == "" {
		return
	}
	m.mu.Lock()
	delete(m.texts, ref)
	m.mu.Unlock()
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %w", ErrUnavailable, err)
}
