// Package diagram asks a model for a diagram of a book, extracts it from the
// reply and renders it.
//
// Each book has one generation state machine:
//
//	Idle -> Requesting -> Extracting -> Rendering -> Ready
//
// Any failure moves to Failed. Ready and Failed stay until Generate is
// called again, which restarts at Requesting.
package diagram

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/mrlokans/lectern/internal/entities"
	"github.com/mrlokans/lectern/internal/extract"
	"github.com/mrlokans/lectern/internal/providers"
)

// FailureMessage is shown for every failed generation.
const FailureMessage = "could not render the diagram"

type Kind string

const (
	KindMermaid Kind = "mermaid"
	KindGraph   Kind = "graph"
)

// ParseKind validates a kind received from a client. Empty means mermaid.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case "", KindMermaid:
		return KindMermaid, nil
	case KindGraph:
		return KindGraph, nil
	default:
		return "", fmt.Errorf("unknown diagram kind %q", s)
	}
}

type State string

const (
	StateIdle       State = "idle"
	StateRequesting State = "requesting"
	StateExtracting State = "extracting"
	StateRendering  State = "rendering"
	StateReady      State = "ready"
	StateFailed     State = "failed"
)

var ErrInProgress = errors.New("diagram generation already in progress")

// Request describes one generation.
type Request struct {
	Kind  Kind
	Model string
	Hint  string
}

// Status is the state of a book's generator.
type Status struct {
	State     State     `json:"state"`
	Kind      Kind      `json:"kind,omitempty"`
	Steps     []State   `json:"steps,omitempty"`
	Message   string    `json:"message,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Output    *Rendered `json:"output,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (s Status) busy() bool {
	switch s.State {
	case StateRequesting, StateExtracting, StateRendering:
		return true
	}
	return false
}

// Asker sends an unrecorded, grounded request about a book.
type Asker interface {
	Query(ctx context.Context, id entities.BookID, model, prompt string) (providers.Completion, error)
}

// Auditor keeps raw replies of failed generations.
type Auditor interface {
	SaveJSON(data any) (string, error)
}

type failedReply struct {
	BookID    entities.BookID `json:"book_id"`
	Kind      Kind            `json:"kind"`
	Model     string          `json:"model"`
	State     State           `json:"failed_in"`
	Reason    string          `json:"reason"`
	Reply     string          `json:"reply"`
	CreatedAt time.Time       `json:"created_at"`
}

type Generator struct {
	asker    Asker
	renderer Renderer
	auditor  Auditor

	mu       sync.Mutex
	statuses map[entities.BookID]*Status
}

// NewGenerator creates a generator. auditor may be nil.
func NewGenerator(asker Asker, renderer Renderer, auditor Auditor) *Generator {
	if renderer == nil {
		renderer = SourceRenderer{}
	}
	return &Generator{
		asker:    asker,
		renderer: renderer,
		auditor:  auditor,
		statuses: make(map[entities.BookID]*Status),
	}
}

// Status returns the current state for a book.
func (g *Generator) Status(id entities.BookID) Status {
	g.mu.Lock()
	defer g.mu.Unlock()
	st, ok := g.statuses[id]
	if !ok {
		return Status{State: StateIdle}
	}
	cp := *st
	cp.Steps = append([]State(nil), st.Steps...)
	return cp
}

func (g *Generator) transition(id entities.BookID, state State) {
	g.mu.Lock()
	defer g.mu.Unlock()
	st := g.statuses[id]
	st.State = state
	st.Steps = append(st.Steps, state)
	st.UpdatedAt = time.Now()
}

// Generate runs the state machine for a book and returns the final status.
// The returned error is the cause of a failure; the status then carries
// FailureMessage.
func (g *Generator) Generate(ctx context.Context, id entities.BookID, req Request) (Status, error) {
	if req.Kind == "" {
		req.Kind = KindMermaid
	}
	g.mu.Lock()
	if st, ok := g.statuses[id]; ok && st.busy() {
		g.mu.Unlock()
		return Status{}, ErrInProgress
	}
	g.statuses[id] = &Status{Kind: req.Kind}
	g.mu.Unlock()

	g.transition(id, StateRequesting)
	completion, err := g.asker.Query(ctx, id, req.Model, prompt(req))
	if err != nil {
		return g.fail(id, req, StateRequesting, "", err)
	}

	g.transition(id, StateExtracting)
	src, err := extractSource(req.Kind, completion.Content)
	if err != nil {
		return g.fail(id, req, StateExtracting, completion.Content, err)
	}

	g.transition(id, StateRendering)
	rendered, err := g.renderer.Render(ctx, src)
	if err != nil {
		return g.fail(id, req, StateRendering, completion.Content, err)
	}

	g.mu.Lock()
	st := g.statuses[id]
	st.Output = &rendered
	g.mu.Unlock()
	g.transition(id, StateReady)
	return g.Status(id), nil
}

func (g *Generator) fail(id entities.BookID, req Request, during State, reply string, cause error) (Status, error) {
	log.Printf("[DIAGRAM] Generation for book %s failed while %s: %v", id, during, cause)

	if g.auditor != nil && reply != "" {
		record := failedReply{
			BookID:    id,
			Kind:      req.Kind,
			Model:     req.Model,
			State:     during,
			Reason:    cause.Error(),
			Reply:     reply,
			CreatedAt: time.Now().UTC(),
		}
		if name, err := g.auditor.SaveJSON(record); err != nil {
			log.Printf("[DIAGRAM] Failed to save reply audit: %v", err)
		} else {
			log.Printf("[DIAGRAM] Saved failed reply to %s", name)
		}
	}

	g.mu.Lock()
	st := g.statuses[id]
	st.Message = FailureMessage
	st.Reason = cause.Error()
	g.mu.Unlock()
	g.transition(id, StateFailed)
	return g.Status(id), cause
}

func extractSource(kind Kind, reply string) (Source, error) {
	switch kind {
	case KindGraph:
		var graph MindMap
		if err := extract.JSONBlock(reply, &graph); err != nil {
			return Source{}, err
		}
		if err := graph.Validate(); err != nil {
			return Source{}, &extract.MalformedPayloadError{Err: err}
		}
		return Source{Kind: kind, Graph: &graph}, nil
	default:
		code, err := extract.FencedBlock(reply, string(KindMermaid))
		if err != nil {
			return Source{}, err
		}
		return Source{Kind: KindMermaid, Code: code}, nil
	}
}

func prompt(req Request) string {
	hint := strings.TrimSpace(req.Hint)
	if req.Kind == KindGraph {
		focus := "Focus on the core content of the book."
		if hint != "" {
			focus = "The user wants the mind map to be about: " + hint + "."
		}
		return graphPrompt + focus
	}

	p := "Based on the content of this book, write a mind map in mermaid syntax. " +
		"Reply with the mermaid code block only and keep the map small."
	if hint != "" {
		p += " The user wants the mind map to be about: " + hint + "."
	}
	return p
}

const graphPrompt = `Based on the content of this book, produce structured mind map data.
1. The central node is the book title at position (0, 0).
2. The main branches cover the plot summary and the main characters.
3. Each main branch has 2-3 child nodes with concise descriptions.
4. Main branches are 200-300 pixels from the centre, child nodes 150-200 pixels from their branch; avoid overlapping nodes.

Reply with a json code block in this format:
{
  "nodes": [
    { "id": "1", "data": { "label": "Title" }, "position": { "x": 0, "y": 0 } },
    { "id": "2", "data": { "label": "Branch" }, "position": { "x": 200, "y": 0 } }
  ],
  "edges": [
    { "id": "e1-2", "source": "1", "target": "2" }
  ]
}

Node ids must be unique, edge ids are 'e' + source + '-' + target, and the map has at most 20 nodes.
`
