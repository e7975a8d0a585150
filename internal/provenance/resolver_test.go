package provenance

import (
	"path/filepath"
	"testing"
	"time"

	"crateprov/internal/augment"
	"crateprov/internal/capture"
	"crateprov/internal/crate"
	"crateprov/internal/index"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testIDs struct{}

func (testIDs) GenerateID(kind crate.Kind, name string) string { return crate.NewID(kind, name) }

func newTestResolver(t *testing.T, root string, active []*crate.Entity, refs ...*index.EntityIndex) *Resolver {
	t.Helper()
	return &Resolver{
		root:       capture.Normalize(root),
		active:     index.Build(root, active, false),
		references: refs,
		ids:        testIDs{},
		author:     crate.Values{"Unknown"},
		keywords:   crate.Values{"computation"},
		now:        func() time.Time { return fixedNow },
	}
}

func TestResolve_Order(t *testing.T) {
	root := t.TempDir()
	known := writeFile(t, filepath.Join(root, "known.csv"), "k")
	fresh := writeFile(t, filepath.Join(root, "fresh.csv"), "f")
	both := writeFile(t, filepath.Join(root, "both.csv"), "b")
	outside := writeFile(t, filepath.Join(t.TempDir(), "outside.csv"), "o")

	refRoot := t.TempDir()
	shared := writeFile(t, filepath.Join(refRoot, "shared.csv"), "s")
	ref := index.Build(refRoot, []*crate.Entity{
		{ID: "ref-1", ContentURL: crate.Values{"file:///shared.csv"}},
	}, true)

	r := newTestResolver(t, root, []*crate.Entity{
		{ID: "known-1", ContentURL: crate.Values{"file:///known.csv"}},
	}, ref)

	reads := []capture.NormalizedPath{
		capture.Normalize(known),
		capture.Normalize(fresh),
		capture.Normalize(both),
		capture.Normalize(outside),
		capture.Normalize(shared),
		capture.Normalize(filepath.Join(root, "gone.csv")),
		"s3://bucket/remote.csv",
		capture.Normalize(known),
	}
	writes := []capture.NormalizedPath{
		capture.Normalize(both),
		capture.Normalize(filepath.Join(root, "result.csv")),
		"/dev/null",
	}

	res, err := r.Resolve(reads, writes, nil)
	require.NoError(t, err)

	byName := map[string]ResolvedDataset{}
	for _, in := range res.Inputs {
		byName[in.Name] = in
	}
	assert.Len(t, res.Inputs, 3)
	assert.Equal(t, OriginActive, byName["known.csv"].Origin)
	assert.Equal(t, "known-1", byName["known.csv"].GUID)
	assert.Equal(t, OriginReference, byName["shared.csv"].Origin)
	assert.Equal(t, "ref-1", byName["shared.csv"].GUID)
	assert.Equal(t, OriginNew, byName["fresh.csv"].Origin)
	assert.Equal(t, "Input dataset", byName["fresh.csv"].Entity.Description)
	assert.NotContains(t, byName, "both.csv")
	assert.NotContains(t, byName, "outside.csv")
	assert.Equal(t, 2, res.Reused)
	assert.Len(t, res.NewInputs(), 1)

	require.Len(t, res.Outputs, 2)
	assert.Equal(t, "both.csv", res.Outputs[0].Name)
	assert.Equal(t, "result.csv", res.Outputs[1].Name)
	assert.Equal(t, "Output dataset", res.Outputs[1].Entity.Description)
	assert.Equal(t, crate.Values{"file:///result.csv"}, res.Outputs[1].Entity.ContentURL)

	require.Len(t, res.Warnings, 1)
	assert.Equal(t, string(capture.Normalize(filepath.Join(root, "gone.csv"))), res.Warnings[0].Path)
}

func TestResolve_IntermediateRuleBeatsIndex(t *testing.T) {
	root := t.TempDir()
	known := writeFile(t, filepath.Join(root, "known.csv"), "k")
	r := newTestResolver(t, root, []*crate.Entity{
		{ID: "known-1", ContentURL: crate.Values{"file:///known.csv"}},
	})

	p := capture.Normalize(known)
	res, err := r.Resolve([]capture.NormalizedPath{p}, []capture.NormalizedPath{p}, nil)
	require.NoError(t, err)
	assert.Empty(t, res.Inputs)
	assert.Equal(t, 0, res.Reused)
	require.Len(t, res.Outputs, 1)
	assert.NotEqual(t, "known-1", res.Outputs[0].GUID)
}

func TestResolve_Empty(t *testing.T) {
	r := newTestResolver(t, t.TempDir(), nil)
	_, err := r.Resolve(nil, nil, nil)
	assert.ErrorIs(t, err, ErrNoFileIO)
}

func TestAssemble_LinksAndOrder(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "in.csv"), "i")
	r := newTestResolver(t, root, []*crate.Entity{
		{ID: "old", ContentURL: crate.Values{"file:///old.csv"}},
	})
	writeFile(t, filepath.Join(root, "old.csv"), "o")

	res, err := r.Resolve(
		[]capture.NormalizedPath{capture.Normalize(filepath.Join(root, "in.csv")), capture.Normalize(filepath.Join(root, "old.csv"))},
		[]capture.NormalizedPath{capture.Normalize(filepath.Join(root, "out.csv"))},
		nil)
	require.NoError(t, err)

	asm, err := Assemble(r.ids, res, nil, Execution{
		Name:         "step",
		Language:     "python",
		SoftwarePath: "software/step.py",
		Format:       "py",
		Author:       crate.Values{"Unknown"},
		Time:         fixedNow,
	})
	require.NoError(t, err)

	elems := asm.Elements()
	require.Len(t, elems, 4)
	assert.Equal(t, asm.Software, elems[0])
	assert.Equal(t, "in.csv", elems[1].Name)
	assert.Equal(t, "out.csv", elems[2].Name)
	assert.Equal(t, asm.Computation, elems[3])

	comp := asm.Computation
	assert.ElementsMatch(t, []string{"old", elems[1].ID}, comp.UsedDataset.IDs())
	assert.Equal(t, []string{elems[2].ID}, comp.Generated.IDs())
	assert.Equal(t, []string{comp.ID}, elems[2].GeneratedBy.IDs())
	assert.Equal(t, "1.0", asm.Software.Version)
	assert.Equal(t, "Unknown", comp.RunBy)

	for _, g := range comp.Generated.IDs() {
		assert.NotContains(t, comp.UsedDataset.IDs(), g)
	}
}

func TestAssemble_RejectsOverlap(t *testing.T) {
	res := &Resolution{
		Inputs:  []ResolvedDataset{{Name: "a.csv", GUID: "same", Origin: OriginActive}},
		Outputs: []ResolvedDataset{{Name: "a.csv", GUID: "same", Origin: OriginNew, Entity: &crate.Entity{ID: "same", Name: "a.csv"}}},
	}
	_, err := Assemble(testIDs{}, res, augment.FallbackDescriptions(fixedNow), Execution{Name: "x", Time: fixedNow})
	assert.ErrorIs(t, err, ErrInvariant)
}
