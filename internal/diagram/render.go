package diagram

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

const (
	MediaTypeMermaid = "text/vnd.mermaid"
	MediaTypeGraph   = "application/json"
)

// Source is an extracted diagram ready for rendering.
type Source struct {
	Kind  Kind
	Code  string
	Graph *MindMap
}

// Rendered is what the client displays.
type Rendered struct {
	MediaType string `json:"media_type"`
	Body      string `json:"body"`
}

// Renderer turns extracted diagram source into its displayable form.
type Renderer interface {
	Render(ctx context.Context, src Source) (Rendered, error)
}

var mermaidHeaders = []string{
	"mindmap", "graph", "flowchart", "sequenceDiagram", "classDiagram",
	"stateDiagram", "erDiagram", "journey", "gantt", "pie", "timeline", "quadrantChart",
}

// SourceRenderer hands the source to the client, which draws it. It rejects
// mermaid code that does not start with a diagram declaration.
type SourceRenderer struct{}

func (SourceRenderer) Render(_ context.Context, src Source) (Rendered, error) {
	switch src.Kind {
	case KindMermaid:
		if !hasMermaidHeader(src.Code) {
			return Rendered{}, fmt.Errorf("mermaid source has no diagram declaration")
		}
		return Rendered{MediaType: MediaTypeMermaid, Body: src.Code}, nil
	case KindGraph:
		if src.Graph == nil {
			return Rendered{}, ErrEmptyGraph
		}
		body, err := json.Marshal(src.Graph)
		if err != nil {
			return Rendered{}, err
		}
		return Rendered{MediaType: MediaTypeGraph, Body: string(body)}, nil
	default:
		return Rendered{}, fmt.Errorf("unknown diagram kind %q", src.Kind)
	}
}

func hasMermaidHeader(code string) bool {
	for _, line := range strings.Split(code, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "%%") {
			continue
		}
		first := strings.Fields(line)[0]
		for _, h := range mermaidHeaders {
			if strings.HasPrefix(first, h) {
				return true
			}
		}
		return false
	}
	return false
}
