package entities

import (
	"fmt"
	"time"
)

// LocationRange is an opaque position token (an EPUB CFI range) produced by
// the rendering surface. It is compared for equality and never parsed.
type LocationRange string

func (r LocationRange) String() string {
	return string(r)
}

type AnnotationKind string

const (
	AnnotationKindHighlight AnnotationKind = "highlight"
	AnnotationKindUnderline AnnotationKind = "underline"
	AnnotationKindMark      AnnotationKind = "mark"
	AnnotationKindNote      AnnotationKind = "note"
)

var annotationKinds = map[AnnotationKind]bool{
	AnnotationKindHighlight: true,
	AnnotationKindUnderline: true,
	AnnotationKindMark:      true,
	AnnotationKindNote:      true,
}

// ParseAnnotationKind validates a kind received from a client.
func ParseAnnotationKind(s string) (AnnotationKind, error) {
	kind := AnnotationKind(s)
	if !annotationKinds[kind] {
		return "", fmt.Errorf("unknown annotation kind %q", s)
	}
	return kind, nil
}

// Annotation is a user mark anchored to a location range.
// Identity is the pair (LocationRange, Kind).
type Annotation struct {
	LocationRange LocationRange     `json:"cfiRange"`
	Text          *string           `json:"text"`
	Kind          AnnotationKind    `json:"type"`
	Note          string            `json:"note,omitempty"`
	Style         map[string]string `json:"styles,omitempty"`
	CreatedAt     time.Time         `json:"createdAt"`
}

// Matches reports whether the annotation has the given identity.
func (a Annotation) Matches(r LocationRange, kind AnnotationKind) bool {
	return a.LocationRange == r && a.Kind == kind
}

// ReadingState is the per-book position record. GroundingRef caches the
// provider-side handle of the uploaded book.
type ReadingState struct {
	LastLocation *LocationRange `json:"location"`
	GroundingRef string         `json:"groundingRef,omitempty"`
}
