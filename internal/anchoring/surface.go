package anchoring

import (
	"context"

	"github.com/mrlokans/lectern/internal/entities"
)

// Rect is a bounding rectangle in surface coordinates.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Point is a screen position.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Surface is the rendering engine showing the open book. Location ranges
// are passed through untouched.
type Surface interface {
	RangeText(r entities.LocationRange) (string, error)
	BoundingRects(r entities.LocationRange) ([]Rect, error)
	ContainerOffset() (Point, error)
	AddOverlay(kind entities.AnnotationKind, r entities.LocationRange, style map[string]string, onClick func()) error
	RemoveOverlay(r entities.LocationRange, kind entities.AnnotationKind) error
}

// Store persists the annotation list of a book.
type Store interface {
	Load(ctx context.Context, id entities.BookID) ([]entities.Annotation, error)
	Save(ctx context.Context, id entities.BookID, list []entities.Annotation) error
}

// Menu is an action menu opened at a screen position, either for a fresh
// selection or for an existing annotation whose overlay was clicked.
type Menu struct {
	Position   Point                `json:"position"`
	Selection  *PendingSelection    `json:"selection,omitempty"`
	Annotation *entities.Annotation `json:"annotation,omitempty"`
}

// MenuOpener shows a menu.
type MenuOpener func(Menu)
