package lineage

import "crateprov/internal/crate"

const (
	RelGeneratedBy    = "generatedBy"
	RelUsedSoftware   = "usedSoftware"
	RelUsedDataset    = "usedDataset"
	RelUsedSample     = "usedSample"
	RelUsedInstrument = "usedInstrument"
	RelUsedTreatment  = "usedTreatment"
	RelUsedStain      = "usedStain"
	RelContains       = "contains"
)

// relation is one relationship property followed when a node expands.
// Collapsing properties with more than one member become a collection node.
type relation struct {
	property string
	label    string
	collapse bool
}

var (
	producedBy = []relation{
		{RelGeneratedBy, "generated by", false},
	}
	computationRelations = []relation{
		{RelUsedSoftware, "used software", false},
		{RelUsedDataset, "used dataset", true},
		{RelUsedSample, "used sample", false},
		{RelUsedInstrument, "used instrument", false},
	}
	experimentRelations = []relation{
		{RelUsedSoftware, "used software", false},
		{RelUsedDataset, "used dataset", true},
		{RelUsedSample, "used sample", true},
		{RelUsedInstrument, "used instrument", true},
		{RelUsedTreatment, "used treatment", true},
		{RelUsedStain, "used stain", true},
	}
)

func relationsFor(t NodeType) []relation {
	switch t {
	case NodeDataset, NodeSample, NodeInstrument:
		return producedBy
	case NodeComputation:
		return computationRelations
	case NodeExperiment:
		return experimentRelations
	case NodeSoftware, NodeDatasetCollection, NodeUnknown:
		return nil
	}
	return nil
}

func refsOf(e *crate.Entity, property string) []string {
	switch property {
	case RelGeneratedBy:
		return e.GeneratedBy.IDs()
	case RelUsedSoftware:
		return e.UsedSoftware.IDs()
	case RelUsedDataset:
		return e.UsedDataset.IDs()
	case RelUsedSample:
		return e.UsedSample.IDs()
	case RelUsedInstrument:
		return e.UsedInstrument.IDs()
	case RelUsedTreatment:
		return e.UsedTreatment.IDs()
	case RelUsedStain:
		return e.UsedStain.IDs()
	}
	return nil
}

func hasRelations(e *crate.Entity, t NodeType) bool {
	for _, rel := range relationsFor(t) {
		if len(refsOf(e, rel.property)) > 0 {
			return true
		}
	}
	return false
}

var collectionTitles = map[string]string{
	RelUsedDataset:    "Input Datasets",
	RelUsedSample:     "Samples",
	RelUsedInstrument: "Instruments",
	RelUsedTreatment:  "Treatments",
	RelUsedStain:      "Stains",
}

func collectionID(owner, property string) string {
	return owner + "#" + property + "-collection"
}
