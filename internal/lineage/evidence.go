package lineage

import (
	"fmt"

	"crateprov/internal/crate"
)

const evidenceGraphType = "evi:EvidenceGraph"

// EvidenceDocument is the nested JSON-LD form of a full lineage, rooted at
// Owner. Unlike Graph it is not bounded by depth; each entity is expanded
// once and later occurrences are bare @id references.
type EvidenceDocument struct {
	Type        string         `json:"@type"`
	ID          string         `json:"@id"`
	Owner       string         `json:"owner"`
	Description string         `json:"description"`
	Name        string         `json:"name"`
	Graph       map[string]any `json:"@graph"`
}

// NewEvidenceDocument walks every relationship reachable from rootID.
func NewEvidenceDocument(entities map[string]*crate.Entity, rootID string) (*EvidenceDocument, error) {
	root, ok := entities[rootID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrEntityNotFound, rootID)
	}
	name := root.Name
	if name == "" {
		name = "Unknown"
	}
	w := &evidenceWalker{entities: entities, processed: make(map[string]bool)}
	return &EvidenceDocument{
		Type:        evidenceGraphType,
		ID:          rootID + "-evidence-graph",
		Owner:       rootID,
		Description: "Evidence graph for " + name,
		Name:        "Evidence Graph - " + name,
		Graph:       w.walk(rootID),
	}, nil
}

type evidenceWalker struct {
	entities  map[string]*crate.Entity
	processed map[string]bool
}

func (w *evidenceWalker) walk(id string) map[string]any {
	e, ok := w.entities[id]
	if !ok || w.processed[id] {
		return map[string]any{"@id": id}
	}
	w.processed[id] = true

	out := baseEvidenceNode(e)
	for _, rel := range relationsFor(nodeTypeOf(e)) {
		ids := refsOf(e, rel.property)
		if len(ids) == 0 {
			continue
		}
		switch rel.property {
		case RelGeneratedBy:
			out[rel.property] = w.walk(ids[0])
		case RelUsedSoftware:
			refs := make([]map[string]any, 0, len(ids))
			for _, sid := range ids {
				if sw, ok := w.entities[sid]; ok {
					refs = append(refs, baseEvidenceNode(sw))
				} else {
					refs = append(refs, map[string]any{"@id": sid})
				}
			}
			out[rel.property] = refs
		default:
			used := make([]map[string]any, 0, len(ids))
			for _, uid := range ids {
				used = append(used, w.walk(uid))
			}
			out[rel.property] = used
		}
	}
	return out
}

func baseEvidenceNode(e *crate.Entity) map[string]any {
	return map[string]any{
		"@id":         e.ID,
		"@type":       e.Type,
		"name":        e.Name,
		"description": e.Description,
	}
}
