package crate

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_CreatesPlaceholderCrate(t *testing.T) {
	root := t.TempDir()
	s, err := Init(root, InitOptions{Author: []string{"Ada"}})
	require.NoError(t, err)

	entities, err := s.ReadEntityMap(context.Background())
	require.NoError(t, err)
	require.Contains(t, entities, "./")
	rootEntity := entities["./"]
	assert.True(t, rootEntity.IsCrateRoot())
	assert.True(t, strings.HasPrefix(rootEntity.Name, "Research Project "))
	assert.Equal(t, Values{"Ada"}, rootEntity.Author)
	assert.Contains(t, entities, MetadataFile)
}

func TestInit_KeepsExistingCrateUnlessStartClean(t *testing.T) {
	root := t.TempDir()
	s, err := Init(root, InitOptions{Name: "Study"})
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, s.AppendEntities(ctx, []*Entity{{ID: "ark:59852/dataset-a", Type: Values{TypeDataset}}}))

	again, err := Init(root, InitOptions{Name: "Other"})
	require.NoError(t, err)
	entities, err := again.ReadEntityMap(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Study", entities["./"].Name)
	assert.Contains(t, entities, "ark:59852/dataset-a")

	clean, err := Init(root, InitOptions{StartClean: true})
	require.NoError(t, err)
	entities, err = clean.ReadEntityMap(ctx)
	require.NoError(t, err)
	assert.Len(t, entities, 2)
	assert.Empty(t, entities["./"].HasPart)
}

func TestAppendEntities_ExtendsGraphAndHasPart(t *testing.T) {
	s, err := Init(t.TempDir(), InitOptions{})
	require.NoError(t, err)
	ctx := context.Background()

	sw := &Entity{ID: "ark:59852/software-x", Type: Values{TypeSoftware}, Name: "x"}
	out := &Entity{
		ID:          "ark:59852/dataset-out",
		Type:        Values{TypeDataset},
		ContentURL:  Values{ContentURL("results/out.csv")},
		GeneratedBy: NewRefs("ark:59852/computation-x"),
	}
	comp := &Entity{
		ID:           "ark:59852/computation-x",
		Type:         Values{TypeComputation},
		UsedSoftware: NewRefs(sw.ID),
		Generated:    NewRefs(out.ID),
	}
	require.NoError(t, s.AppendEntities(ctx, []*Entity{sw, out, comp}))

	entities, err := s.ReadEntityMap(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{sw.ID, out.ID, comp.ID}, entities["./"].HasPart.IDs())
	assert.Equal(t, KindComputation, entities[comp.ID].Kind())
	assert.Equal(t, []string{comp.ID}, entities[out.ID].GeneratedBy.IDs())
	assert.Equal(t, "file:///results/out.csv", entities[out.ID].ContentURL.First())

	ordered, err := s.ReadEntities(ctx)
	require.NoError(t, err)
	var ids []string
	for _, e := range ordered {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []string{sw.ID, out.ID, comp.ID}, ids[len(ids)-3:])
}

func TestAppendEntities_DuplicateLeavesFileUntouched(t *testing.T) {
	s, err := Init(t.TempDir(), InitOptions{})
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, s.AppendEntities(ctx, []*Entity{{ID: "a", Type: Values{TypeDataset}}}))

	before, err := os.ReadFile(s.Path())
	require.NoError(t, err)

	err = s.AppendEntities(ctx, []*Entity{{ID: "b"}, {ID: "a"}})
	assert.ErrorIs(t, err, ErrDuplicateID)

	after, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestOpenReadOnly_RejectsWritesAndAcceptsFilePath(t *testing.T) {
	root := t.TempDir()
	_, err := Init(root, InitOptions{})
	require.NoError(t, err)

	ro, err := OpenReadOnly(filepath.Join(root, MetadataFile))
	require.NoError(t, err)
	assert.Equal(t, root, ro.Root())
	assert.ErrorIs(t, ro.AppendEntities(context.Background(), []*Entity{{ID: "x"}}), ErrReadOnly)

	_, err = Open(filepath.Join(root, "missing"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReadEntityMap_PreservesUnknownContent(t *testing.T) {
	root := t.TempDir()
	doc := `{
  "@context": {"@vocab": "https://schema.org/"},
  "customTopLevel": {"keep": true},
  "@graph": [
    {"@id": "ro-crate-metadata.json", "@type": "CreativeWork", "about": {"@id": "ark:59852/rocrate-study"}},
    {"@id": "ark:59852/rocrate-study", "@type": ["Dataset", "https://w3id.org/EVI#ROCrate"], "hasPart": [{"@id": "ark:59852/dataset-raw"}], "funder": "NIH"},
    {"@id": "ark:59852/dataset-raw", "@type": "EVI:Dataset", "contentUrl": "file:///raw.csv", "author": [{"name": "Bo"}], "extra": [1, 2]},
    {"@id": "ark:59852/experiment-e1", "@type": "Experiment", "usedSample": "ark:59852/sample-s1"}
  ]
}`
	require.NoError(t, os.WriteFile(filepath.Join(root, MetadataFile), []byte(doc), 0o644))

	s, err := Open(root)
	require.NoError(t, err)
	ctx := context.Background()

	entities, err := s.ReadEntityMap(ctx)
	require.NoError(t, err)
	assert.Equal(t, KindDataset, entities["ark:59852/dataset-raw"].Kind())
	assert.Equal(t, Values{"Bo"}, entities["ark:59852/dataset-raw"].Author)
	assert.Equal(t, []string{"ark:59852/sample-s1"}, entities["ark:59852/experiment-e1"].UsedSample.IDs())
	assert.Equal(t, KindExperiment, entities["ark:59852/experiment-e1"].Kind())

	require.NoError(t, s.AppendEntities(ctx, []*Entity{{ID: "ark:59852/dataset-new", Type: Values{TypeDataset}}}))

	data, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	var top map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &top))
	assert.JSONEq(t, `{"keep": true}`, string(top["customTopLevel"]))

	var graph []map[string]any
	require.NoError(t, json.Unmarshal(top["@graph"], &graph))
	require.Len(t, graph, 5)
	assert.Equal(t, "NIH", graph[1]["funder"])
	assert.Len(t, graph[1]["hasPart"], 2)
	assert.Equal(t, []any{float64(1), float64(2)}, graph[2]["extra"])
}

func TestNewID(t *testing.T) {
	id := NewID(KindDataset, "My Input File.csv")
	assert.True(t, strings.HasPrefix(id, "ark:59852/dataset-my-input-file-csv-"), id)
	assert.NotEqual(t, id, NewID(KindDataset, "My Input File.csv"))
	assert.True(t, strings.HasPrefix(NewID(KindSoftware, "***"), "ark:59852/software-"))
}

func TestRelativeContentPath(t *testing.T) {
	rel, ok := RelativeContentPath("file:///data/in.csv")
	assert.True(t, ok)
	assert.Equal(t, "data/in.csv", rel)

	_, ok = RelativeContentPath("https://example.org/in.csv")
	assert.False(t, ok)
	_, ok = RelativeContentPath("")
	assert.False(t, ok)
}
