package capture

import (
	"path/filepath"
	"strings"
)

// NormalizedPath is an absolute, cleaned path. Two references point at the
// same file iff their normalized forms are equal.
type NormalizedPath string

func (p NormalizedPath) String() string { return string(p) }

// DefaultExcludedPatterns lists path fragments that never count as evidence:
// interpreter caches, temp directories and vendored library trees.
var DefaultExcludedPatterns = []string{
	".matplotlib",
	".ipython",
	".jupyter",
	"site-packages",
	"/tmp/",
	"__pycache__",
	"/pkg/mod/",
	"/go-build",
}

// Classifier decides whether a path reference is worth tracking.
type Classifier struct {
	excluded []string
}

// NewClassifier builds a classifier. A nil slice selects DefaultExcludedPatterns;
// an empty non-nil slice disables exclusion entirely.
func NewClassifier(patterns []string) *Classifier {
	if patterns == nil {
		patterns = DefaultExcludedPatterns
	}
	excluded := make([]string, 0, len(patterns))
	for _, p := range patterns {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			excluded = append(excluded, p)
		}
	}
	return &Classifier{excluded: excluded}
}

// Trackable reports whether path should be recorded. The check is lexical:
// it never touches the filesystem.
func (c *Classifier) Trackable(path string) bool {
	if strings.TrimSpace(path) == "" {
		return false
	}
	lower := strings.ToLower(lexicalPath(path))
	for _, p := range c.excluded {
		if strings.Contains(lower, p) {
			return false
		}
	}
	return true
}

// Normalize resolves path to its canonical absolute form. Symlinks are
// resolved for the longest existing prefix, so a file that does not exist yet
// still normalizes consistently with its parent directory.
func Normalize(path string) NormalizedPath {
	if isRemoteURL(path) {
		return NormalizedPath(path)
	}
	abs := lexicalPath(path)
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return NormalizedPath(resolved)
	}
	dir, base := filepath.Split(abs)
	if resolved, err := filepath.EvalSymlinks(dir); err == nil {
		return NormalizedPath(filepath.Join(resolved, base))
	}
	return NormalizedPath(abs)
}

// Within reports whether p lies inside root (or is root itself).
func Within(root, p NormalizedPath) bool {
	if isRemoteURL(string(p)) {
		return false
	}
	rel, err := filepath.Rel(string(root), string(p))
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func lexicalPath(path string) string {
	path = strings.TrimPrefix(path, "file://")
	if isRemoteURL(path) {
		return path
	}
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

func isRemoteURL(path string) bool {
	if strings.HasPrefix(path, "file://") {
		return false
	}
	idx := strings.Index(path, "://")
	return idx > 0 && !strings.ContainsAny(path[:idx], `/\`)
}
