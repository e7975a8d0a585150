package capture

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshot_ChangedDetectsNewAndModifiedFiles(t *testing.T) {
	root := t.TempDir()
	keep := filepath.Join(root, "keep.csv")
	edit := filepath.Join(root, "edit.csv")
	require.NoError(t, os.WriteFile(keep, []byte("same"), 0o644))
	require.NoError(t, os.WriteFile(edit, []byte("before"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "ro-crate-metadata.json"), []byte("{}"), 0o644))

	s := NewSnapshotter(testConfig, "ro-crate-metadata.json")
	before, err := s.Take(root)
	require.NoError(t, err)
	assert.Len(t, before.Files, 2)

	require.NoError(t, os.WriteFile(edit, []byte("after"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "results"), 0o755))
	created := filepath.Join(root, "results", "new.json")
	require.NoError(t, os.WriteFile(created, []byte("{}"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "ro-crate-metadata.json"), []byte(`{"@graph":[]}`), 0o644))

	after, err := s.Take(root)
	require.NoError(t, err)

	assert.Equal(t, []NormalizedPath{Normalize(edit), Normalize(created)}, before.Changed(after))
}

func TestSnapshot_SkipsIgnoredDirectories(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".git", "objects"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".git", "objects", "x"), []byte("obj"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "__pycache__"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "__pycache__", "m.pyc"), []byte{1}, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "data.csv"), []byte("x"), 0o644))

	snap, err := NewSnapshotter(testConfig).Take(root)
	require.NoError(t, err)
	assert.Len(t, snap.Files, 1)
	_, ok := snap.Files[Normalize(filepath.Join(root, "data.csv"))]
	assert.True(t, ok)
}

func TestSnapshot_MissingRootFails(t *testing.T) {
	_, err := NewSnapshotter(testConfig).Take(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}
