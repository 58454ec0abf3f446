package anchoring

import (
	"errors"
	"fmt"
	"sync"

	"github.com/mrlokans/lectern/internal/entities"
)

var (
	ErrUnknownRange = errors.New("range was not reported by the client")
	ErrNoOverlay    = errors.New("no overlay for range")
)

// Overlay commands sent back to the client.
const (
	CommandAdd    = "add"
	CommandRemove = "remove"
)

// Command is an overlay change the client has to apply to its rendering.
type Command struct {
	Op    string                  `json:"op"`
	Kind  entities.AnnotationKind `json:"type"`
	Range entities.LocationRange  `json:"cfiRange"`
	Style map[string]string       `json:"styles,omitempty"`
}

type overlayKey struct {
	r    entities.LocationRange
	kind entities.AnnotationKind
}

// RemoteSurface is a Surface whose rendering lives in a browser. The client
// reports the geometry and text of ranges it selects, the surface records
// the overlay changes for the client to pull, and overlay clicks come back
// through Click.
type RemoteSurface struct {
	mu       sync.Mutex
	texts    map[entities.LocationRange]string
	rects    map[entities.LocationRange][]Rect
	offset   Point
	overlays map[overlayKey]func()
	pending  []Command
}

func NewRemoteSurface() *RemoteSurface {
	return &RemoteSurface{
		texts:    make(map[entities.LocationRange]string),
		rects:    make(map[entities.LocationRange][]Rect),
		overlays: make(map[overlayKey]func()),
	}
}

// ReportText records the text the client extracted for a range.
func (s *RemoteSurface) ReportText(r entities.LocationRange, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.texts[r] = text
}

// ReportRects records the current bounding rectangles of a range.
func (s *RemoteSurface) ReportRects(r entities.LocationRange, rects []Rect) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rects[r] = append([]Rect(nil), rects...)
}

// SetContainerOffset records where the rendering container sits on screen.
func (s *RemoteSurface) SetContainerOffset(p Point) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offset = p
}

func (s *RemoteSurface) RangeText(r entities.LocationRange) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	text, ok := s.texts[r]
	if !ok {
		if _, known := s.rects[r]; known {
			return "", nil
		}
		return "", fmt.Errorf("%w: %s", ErrUnknownRange, r)
	}
	return text, nil
}

func (s *RemoteSurface) BoundingRects(r entities.LocationRange) ([]Rect, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rects, ok := s.rects[r]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRange, r)
	}
	return append([]Rect(nil), rects...), nil
}

func (s *RemoteSurface) ContainerOffset() (Point, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.offset, nil
}

func (s *RemoteSurface) AddOverlay(kind entities.AnnotationKind, r entities.LocationRange, style map[string]string, onClick func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overlays[overlayKey{r: r, kind: kind}] = onClick
	s.pending = append(s.pending, Command{Op: CommandAdd, Kind: kind, Range: r, Style: style})
	return nil
}

func (s *RemoteSurface) RemoveOverlay(r entities.LocationRange, kind entities.AnnotationKind) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.overlays, overlayKey{r: r, kind: kind})
	s.pending = append(s.pending, Command{Op: CommandRemove, Kind: kind, Range: r})
	return nil
}

// Drain returns the overlay commands issued since the last call, in order.
func (s *RemoteSurface) Drain() []Command {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.pending
	s.pending = nil
	if out == nil {
		out = []Command{}
	}
	return out
}

// Click dispatches a click on the overlay of a range.
func (s *RemoteSurface) Click(r entities.LocationRange, kind entities.AnnotationKind) error {
	s.mu.Lock()
	onClick, ok := s.overlays[overlayKey{r: r, kind: kind}]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s (%s)", ErrNoOverlay, r, kind)
	}
	if onClick != nil {
		onClick()
	}
	return nil
}
