package lineage

import (
	"fmt"

	"crateprov/internal/crate"
)

// Config controls automatic expansion.
type Config struct {
	// MaxDepth is the number of relationship hops Build expands from the root.
	MaxDepth int
	// RevealPerExpand is how many collection members one expansion reveals.
	RevealPerExpand int
}

func DefaultConfig() Config {
	return Config{
		MaxDepth:        2,
		RevealPerExpand: 1,
	}
}

// Builder turns an entity map into lineage graphs. It never mutates the map.
type Builder struct {
	entities map[string]*crate.Entity
	cfg      Config
}

func NewBuilder(entities map[string]*crate.Entity, cfg Config) *Builder {
	if cfg.MaxDepth < 0 {
		cfg.MaxDepth = 0
	}
	if cfg.RevealPerExpand <= 0 {
		cfg.RevealPerExpand = 1
	}
	return &Builder{entities: entities, cfg: cfg}
}

type queueItem struct {
	id    string
	depth int
}

// Build creates the graph for rootID and expands it breadth-first up to
// MaxDepth hops. Nodes first reached at MaxDepth are left unexpanded.
func (b *Builder) Build(rootID string) (*Graph, error) {
	root, ok := b.entities[rootID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrEntityNotFound, rootID)
	}

	g := newGraph(rootID)
	g.addNode(b.entityNode(root))

	visitedDepth := map[string]int{rootID: 0}
	queue := []queueItem{{id: rootID, depth: 0}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.depth >= b.cfg.MaxDepth {
			continue
		}

		x, err := b.Expand(g, cur.id)
		if err != nil {
			return nil, err
		}
		nextDepth := cur.depth + 1
		for _, e := range x.NewEdges {
			prev, seen := visitedDepth[e.Target]
			if !seen || nextDepth < prev {
				visitedDepth[e.Target] = nextDepth
				queue = append(queue, queueItem{id: e.Target, depth: nextDepth})
			}
		}
	}
	return g, nil
}

// Expand performs one expansion step on nodeID. An entity node follows its
// relationship properties once; later calls return an empty expansion. A
// collection node reveals its next members.
func (b *Builder) Expand(g *Graph, nodeID string) (*Expansion, error) {
	n, ok := g.Node(nodeID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, nodeID)
	}
	if n.IsCollection() {
		return b.RevealNext(g, n), nil
	}

	x := &Expansion{Updated: n}
	if n.Expanded || n.Source == nil {
		return x, nil
	}
	n.Expanded = true
	n.Expandable = false

	for _, rel := range relationsFor(n.Type) {
		ids := refsOf(n.Source, rel.property)
		if rel.collapse {
			ids = b.resolvable(g, n.ID, rel.property, ids)
			if len(ids) > 1 {
				b.linkCollection(g, n, rel, ids, x)
				continue
			}
		}
		for _, id := range ids {
			b.link(g, n.ID, id, rel.property, rel.label, x)
		}
	}
	return x, nil
}

// RevealNext adds the next RevealPerExpand members of a collection and
// advances its cursor past them. Unresolved members are skipped with a
// warning and never counted. An exhausted collection reports not
// expandable.
func (b *Builder) RevealNext(g *Graph, c *Node) *Expansion {
	x := &Expansion{Updated: c}
	for i := 0; i < b.cfg.RevealPerExpand && len(c.Remaining) > 0; {
		next := c.Remaining[0]
		c.Remaining = c.Remaining[1:]
		if _, ok := b.entities[next]; !ok {
			g.warnf("unresolved reference %s in %s of %s", next, RelContains, c.ID)
			continue
		}
		b.link(g, c.ID, next, RelContains, RelContains, x)
		c.ExpandedCount++
		i++
	}
	c.Expanded = c.ExpandedCount > 0
	c.Expandable = len(c.Remaining) > 0
	c.Label = collectionLabel(c)
	return x
}

// resolvable drops the ids that name no entity, warning once for each.
func (b *Builder) resolvable(g *Graph, from, relation string, ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := b.entities[id]; !ok {
			g.warnf("unresolved reference %s in %s of %s", id, relation, from)
			continue
		}
		out = append(out, id)
	}
	return out
}

func (b *Builder) link(g *Graph, from, to, relation, label string, x *Expansion) {
	target, ok := b.entities[to]
	if !ok {
		g.warnf("unresolved reference %s in %s of %s", to, relation, from)
		return
	}
	node, added := g.addNode(b.entityNode(target))
	if added {
		x.NewNodes = append(x.NewNodes, node)
	}
	if e, added := g.addEdge(from, relation, label, node.ID); added {
		x.NewEdges = append(x.NewEdges, e)
	}
}

func (b *Builder) linkCollection(g *Graph, owner *Node, rel relation, members []string, x *Expansion) {
	c := &Node{
		ID:          collectionID(owner.ID, rel.property),
		Type:        NodeDatasetCollection,
		Description: fmt.Sprintf("A collection of %d entities in %s of %s", len(members), rel.property, owner.Label),
		Expandable:  true,
		Owner:       owner.ID,
		Property:    rel.property,
		Members:     members,
		Remaining:   append([]string(nil), members...),
	}
	c.Label = collectionLabel(c)
	node, added := g.addNode(c)
	if added {
		x.NewNodes = append(x.NewNodes, node)
	}
	if e, added := g.addEdge(owner.ID, rel.property, rel.label, node.ID); added {
		x.NewEdges = append(x.NewEdges, e)
	}
}

func (b *Builder) entityNode(e *crate.Entity) *Node {
	t := nodeTypeOf(e)
	return &Node{
		ID:          e.ID,
		Type:        t,
		Label:       entityLabel(e),
		Description: e.Description,
		Expandable:  hasRelations(e, t),
		Source:      e,
	}
}

func collectionLabel(c *Node) string {
	title := collectionTitles[c.Property]
	switch {
	case c.ExpandedCount == 0:
		return fmt.Sprintf("%s (%d)", title, len(c.Members))
	case len(c.Remaining) > 0:
		return fmt.Sprintf("%s (%d more)", title, len(c.Remaining))
	default:
		return title + " (All Shown)"
	}
}
