package lineage

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// JSON renders the visible graph with nodes and edges in insertion order.
func (g *Graph) JSON() ([]byte, error) {
	return json.MarshalIndent(g, "", "  ")
}

// Mermaid renders the graph as a left-to-right flowchart.
func (g *Graph) Mermaid() string {
	ids := mermaidIDs(g.Nodes)

	var sb strings.Builder
	sb.WriteString("flowchart LR\n")
	for _, n := range g.Nodes {
		left, right := mermaidShape(n.Type)
		sb.WriteString(fmt.Sprintf("    %s%s\"%s\"%s\n", ids[n.ID], left, mermaidText(n.Label), right))
	}
	for _, e := range g.Edges {
		sb.WriteString(fmt.Sprintf("    %s -->|%s| %s\n", ids[e.Source], mermaidText(e.Label), ids[e.Target]))
	}
	for _, n := range g.Nodes {
		if n.Expandable {
			sb.WriteString(fmt.Sprintf("    class %s expandable\n", ids[n.ID]))
		}
	}
	sb.WriteString("    classDef expandable stroke-dasharray: 5 5\n")
	return sb.String()
}

func mermaidShape(t NodeType) (string, string) {
	switch t {
	case NodeDataset:
		return "[(", ")]"
	case NodeComputation:
		return "[[", "]]"
	case NodeSoftware:
		return "{{", "}}"
	case NodeSample, NodeInstrument:
		return "([", "])"
	case NodeExperiment:
		return "[/", "/]"
	case NodeDatasetCollection:
		return "[", "]"
	case NodeUnknown:
		return "(", ")"
	}
	return "(", ")"
}

var mermaidInvalid = regexp.MustCompile(`[^a-z0-9_]`)

// mermaidIDs assigns each node a stable identifier mermaid accepts. Entity
// ids that sanitize to the same string get a numeric suffix.
func mermaidIDs(nodes []*Node) map[string]string {
	out := make(map[string]string, len(nodes))
	used := make(map[string]int, len(nodes))
	for _, n := range nodes {
		id := sanitizeMermaidID(n.ID)
		if c := used[id]; c > 0 {
			used[id] = c + 1
			id = fmt.Sprintf("%s_%d", id, c)
		} else {
			used[id] = 1
		}
		out[n.ID] = id
	}
	return out
}

func sanitizeMermaidID(v string) string {
	v = strings.TrimSpace(strings.ToLower(v))
	v = strings.TrimPrefix(v, "ark:59852/")
	v = mermaidInvalid.ReplaceAllString(strings.ReplaceAll(v, "-", "_"), "_")
	if v == "" {
		return "node"
	}
	if v[0] >= '0' && v[0] <= '9' {
		v = "n_" + v
	}
	return v
}

func mermaidText(s string) string {
	s = strings.ReplaceAll(s, `"`, "#quot;")
	s = strings.ReplaceAll(s, "|", "#124;")
	return strings.ReplaceAll(s, "\n", " ")
}
