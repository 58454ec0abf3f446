package diagram

import (
	"errors"
	"fmt"
	"strings"
)

// MindMap is the node/edge graph returned for KindGraph.
type MindMap struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

type Node struct {
	ID       string   `json:"id"`
	Data     NodeData `json:"data"`
	Position Position `json:"position"`
}

type NodeData struct {
	Label string `json:"label"`
}

type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type Edge struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
}

var ErrEmptyGraph = errors.New("graph has no nodes")

// Validate checks that node ids are unique and every edge joins known nodes.
// Missing edge ids are filled in as "e<source>-<target>".
func (m *MindMap) Validate() error {
	if len(m.Nodes) == 0 {
		return ErrEmptyGraph
	}
	ids := make(map[string]bool, len(m.Nodes))
	for _, n := range m.Nodes {
		if strings.TrimSpace(n.ID) == "" {
			return errors.New("node without id")
		}
		if ids[n.ID] {
			return fmt.Errorf("duplicate node id %q", n.ID)
		}
		if strings.TrimSpace(n.Data.Label) == "" {
			return fmt.Errorf("node %q has no label", n.ID)
		}
		ids[n.ID] = true
	}
	for i := range m.Edges {
		e := &m.Edges[i]
		if !ids[e.Source] || !ids[e.Target] {
			return fmt.Errorf("edge %s-%s references an unknown node", e.Source, e.Target)
		}
		if e.ID == "" {
			e.ID = "e" + e.Source + "-" + e.Target
		}
	}
	return nil
}
