// Package lineage builds bounded, incrementally expandable evidence graphs
// from a crate's entity map.
package lineage

import (
	"errors"
	"fmt"
	"strings"

	"crateprov/internal/crate"
)

var (
	ErrEntityNotFound = errors.New("entity not found in crate")
	ErrNodeNotFound   = errors.New("node not found in graph")
)

// NodeType is the closed set of node variants a lineage graph can hold.
type NodeType string

const (
	NodeDataset           NodeType = "Dataset"
	NodeComputation       NodeType = "Computation"
	NodeSoftware          NodeType = "Software"
	NodeSample            NodeType = "Sample"
	NodeInstrument        NodeType = "Instrument"
	NodeExperiment        NodeType = "Experiment"
	NodeDatasetCollection NodeType = "DatasetCollection"
	NodeUnknown           NodeType = "Unknown"
)

func nodeTypeOf(e *crate.Entity) NodeType {
	switch e.Kind() {
	case crate.KindDataset:
		return NodeDataset
	case crate.KindComputation:
		return NodeComputation
	case crate.KindSoftware:
		return NodeSoftware
	case crate.KindSample:
		return NodeSample
	case crate.KindInstrument:
		return NodeInstrument
	case crate.KindExperiment:
		return NodeExperiment
	default:
		return NodeUnknown
	}
}

// Node is one vertex of a lineage graph. Collection nodes stand in for a
// multi-valued relationship and reveal their members one expansion at a time.
type Node struct {
	ID          string        `json:"id"`
	Type        NodeType      `json:"type"`
	Label       string        `json:"label"`
	Description string        `json:"description,omitempty"`
	Expandable  bool          `json:"expandable"`
	Expanded    bool          `json:"expanded"`
	Source      *crate.Entity `json:"source,omitempty"`

	// Collection state.
	Owner         string   `json:"owner,omitempty"`
	Property      string   `json:"property,omitempty"`
	Members       []string `json:"members,omitempty"`
	Remaining     []string `json:"remaining,omitempty"`
	ExpandedCount int      `json:"expandedCount,omitempty"`
}

func (n *Node) IsCollection() bool { return n.Type == NodeDatasetCollection }

// Edge is a directed relationship. Its identity is (Source, Relation, Target).
type Edge struct {
	ID       string `json:"id"`
	Source   string `json:"source"`
	Target   string `json:"target"`
	Label    string `json:"label"`
	Relation string `json:"relation"`
}

// EdgeID derives the edge identifier from its identity triple.
func EdgeID(source, relation, target string) string {
	return source + "->" + target + ":" + relation
}

// Graph is the visible part of a lineage. Nodes and edges keep insertion
// order; inserting a known id is a no-op.
type Graph struct {
	RootID   string   `json:"root"`
	Nodes    []*Node  `json:"nodes"`
	Edges    []Edge   `json:"edges"`
	Warnings []string `json:"warnings,omitempty"`

	nodes map[string]*Node
	edges map[string]bool
}

func newGraph(rootID string) *Graph {
	return &Graph{
		RootID: rootID,
		Nodes:  []*Node{},
		Edges:  []Edge{},
		nodes:  make(map[string]*Node),
		edges:  make(map[string]bool),
	}
}

// Node returns the node with the given id.
func (g *Graph) Node(id string) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// HasEdge reports whether the (source, relation, target) edge exists.
func (g *Graph) HasEdge(source, relation, target string) bool {
	return g.edges[EdgeID(source, relation, target)]
}

// addNode inserts n unless its id is taken, and returns the node held by
// the graph.
func (g *Graph) addNode(n *Node) (*Node, bool) {
	if existing, ok := g.nodes[n.ID]; ok {
		return existing, false
	}
	g.nodes[n.ID] = n
	g.Nodes = append(g.Nodes, n)
	return n, true
}

func (g *Graph) addEdge(source, relation, label, target string) (Edge, bool) {
	e := Edge{ID: EdgeID(source, relation, target), Source: source, Target: target, Label: label, Relation: relation}
	if g.edges[e.ID] {
		return e, false
	}
	g.edges[e.ID] = true
	g.Edges = append(g.Edges, e)
	return e, true
}

func (g *Graph) warnf(format string, args ...any) {
	g.Warnings = append(g.Warnings, fmt.Sprintf(format, args...))
}

// Expansion lists what one expansion step added. Updated is the expanded
// node after the step.
type Expansion struct {
	NewNodes []*Node `json:"newNodes"`
	NewEdges []Edge  `json:"newEdges"`
	Updated  *Node   `json:"updated"`
}

func (x *Expansion) Empty() bool { return len(x.NewNodes) == 0 && len(x.NewEdges) == 0 }

func entityLabel(e *crate.Entity) string {
	if name := strings.TrimSpace(e.Name); name != "" {
		return name
	}
	return e.ID
}
