package capture

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/minio/highwayhash"
)

var snapshotKey = []byte("0123456789ABCDEF0123456789ABCDEF")

// Snapshot fingerprints every trackable file below a root directory.
// Comparing two snapshots taken around a child process reveals the files it
// created or modified.
type Snapshot struct {
	Root  NormalizedPath
	Files map[NormalizedPath]uint64
}

// Snapshotter walks a tree and hashes file contents.
type Snapshotter struct {
	classifier *Classifier
	ignored    []string
}

// NewSnapshotter returns a walker that skips excluded paths plus the given
// directory or file names (for example the crate metadata file).
func NewSnapshotter(cfg Config, ignored ...string) *Snapshotter {
	return &Snapshotter{
		classifier: NewClassifier(cfg.ExcludedPatterns),
		ignored:    append([]string{".git", "node_modules"}, ignored...),
	}
}

// Take walks root and returns its snapshot. Unreadable files are skipped.
func (s *Snapshotter) Take(root string) (*Snapshot, error) {
	normalizedRoot := Normalize(root)
	snap := &Snapshot{Root: normalizedRoot, Files: make(map[NormalizedPath]uint64)}

	err := filepath.WalkDir(string(normalizedRoot), func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == string(normalizedRoot) {
				return err
			}
			return nil
		}
		if s.isIgnored(d.Name()) && path != string(normalizedRoot) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		if !s.classifier.Trackable(path) {
			return nil
		}
		sum, err := hashFile(path)
		if err != nil {
			return nil
		}
		snap.Files[NormalizedPath(path)] = sum
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot %s: %w", root, err)
	}
	return snap, nil
}

func (s *Snapshotter) isIgnored(name string) bool {
	for _, ign := range s.ignored {
		if name == ign {
			return true
		}
	}
	return false
}

// Changed returns the files present in after that are new or whose content
// differs from s, sorted.
func (s *Snapshot) Changed(after *Snapshot) []NormalizedPath {
	var out []NormalizedPath
	for path, sum := range after.Files {
		if prev, ok := s.Files[path]; !ok || prev != sum {
			out = append(out, path)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func hashFile(path string) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	h, err := highwayhash.New64(snapshotKey)
	if err != nil {
		return 0, err
	}
	if _, err := io.Copy(h, f); err != nil {
		return 0, err
	}
	return h.Sum64(), nil
}
