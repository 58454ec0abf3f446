// Package reader owns the single open book view: its anchoring engine, the
// remote surface the client renders on and the in-memory reading location.
package reader

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/mrlokans/lectern/internal/anchoring"
	"github.com/mrlokans/lectern/internal/entities"
)

var (
	ErrNotOpen    = errors.New("book is not open")
	ErrNoLocation = errors.New("no reading location to save")
)

// BookGetter checks that a book exists.
type BookGetter interface {
	Get(ctx context.Context, id entities.BookID) (entities.BookMeta, error)
}

// StateStore persists reading positions.
type StateStore interface {
	Load(ctx context.Context, id entities.BookID) (entities.ReadingState, error)
	SetLastLocation(ctx context.Context, id entities.BookID, loc entities.LocationRange) error
}

// Session is the view of one open book.
type Session struct {
	Book    entities.BookMeta
	Engine  *anchoring.Engine
	Surface *anchoring.RemoteSurface

	mu       sync.Mutex
	location *entities.LocationRange
	menu     *anchoring.Menu
}

// Location returns the current in-memory location.
func (s *Session) Location() *entities.LocationRange {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.location == nil {
		return nil
	}
	loc := *s.location
	return &loc
}

// TakeMenu returns the menu opened since the last call, if any.
func (s *Session) TakeMenu() *anchoring.Menu {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.menu
	s.menu = nil
	return m
}

func (s *Session) openMenu(m anchoring.Menu) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.menu = &m
}

type Manager struct {
	books       BookGetter
	annotations anchoring.Store
	states      StateStore
	debounce    time.Duration

	mu      sync.Mutex
	current *Session
}

func NewManager(books BookGetter, annotations anchoring.Store, states StateStore, debounce time.Duration) *Manager {
	return &Manager{
		books:       books,
		annotations: annotations,
		states:      states,
		debounce:    debounce,
	}
}

// Open closes the view of the previous book and opens a new one with its
// stored annotations and last saved location.
func (m *Manager) Open(ctx context.Context, id entities.BookID) (*Session, error) {
	meta, err := m.books.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil {
		m.closeLocked(ctx)
	}

	session := &Session{Book: meta, Surface: anchoring.NewRemoteSurface()}
	session.Engine = anchoring.New(id, m.annotations, session.Surface, anchoring.Options{
		Debounce: m.debounce,
		OnMenu:   session.openMenu,
	})
	if err := session.Engine.Hydrate(ctx); err != nil {
		return nil, err
	}

	state, err := m.states.Load(ctx, id)
	if err != nil {
		log.Printf("[ANCHOR] Could not load reading state for %s: %v", id, err)
	} else {
		session.location = state.LastLocation
	}

	m.current = session
	log.Printf("[ANCHOR] Opened book %s", id)
	return session, nil
}

// Current returns the open session, or ErrNotOpen.
func (m *Manager) Current() (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil, ErrNotOpen
	}
	return m.current, nil
}

// Session returns the open session when it shows the given book.
func (m *Manager) Session(id entities.BookID) (*Session, error) {
	s, err := m.Current()
	if err != nil {
		return nil, err
	}
	if s.Book.ID != id {
		return nil, fmt.Errorf("%w: %s", ErrNotOpen, id)
	}
	return s, nil
}

// UpdateLocation records the current position without persisting it.
func (m *Manager) UpdateLocation(loc entities.LocationRange) error {
	s, err := m.Current()
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.location = &loc
	s.mu.Unlock()
	return nil
}

// SaveLocation persists the current position of the open book.
func (m *Manager) SaveLocation(ctx context.Context) (entities.LocationRange, error) {
	s, err := m.Current()
	if err != nil {
		return "", err
	}
	loc := s.Location()
	if loc == nil {
		return "", ErrNoLocation
	}
	if err := m.states.SetLastLocation(ctx, s.Book.ID, *loc); err != nil {
		return "", err
	}
	return *loc, nil
}

// Close closes the open book, writing pending annotation edits.
func (m *Manager) Close(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != nil {
		m.closeLocked(ctx)
	}
}

// Forget closes the view of a book that is being deleted.
func (m *Manager) Forget(ctx context.Context, id entities.BookID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != nil && m.current.Book.ID == id {
		m.closeLocked(ctx)
	}
}

func (m *Manager) closeLocked(ctx context.Context) {
	id := m.current.Book.ID
	if err := m.current.Engine.Close(ctx); err != nil {
		log.Printf("[ANCHOR] Final flush for book %s failed: %v", id, err)
	}
	m.current = nil
	log.Printf("[ANCHOR] Closed book %s", id)
}
