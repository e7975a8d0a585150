// Package index maps file paths to the crate entities that already describe
// them.
package index

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"crateprov/internal/capture"
	"crateprov/internal/crate"
)

var ErrReadOnlyIndex = errors.New("reference index is read-only")

// Entry is the entity registered for one path.
type Entry struct {
	GUID        string
	IsReference bool
}

// EntityIndex maps normalized paths to entity ids. The index of the active
// crate grows with each successful append; reference indices never change.
type EntityIndex struct {
	mu        sync.RWMutex
	root      capture.NormalizedPath
	reference bool
	entries   map[capture.NormalizedPath]Entry
}

// Build indexes every non-root entity that has a local contentUrl. Content
// URLs are resolved against root. Entities are given in crate order; when
// several claim the same path the last one wins, so a file written by many
// runs maps to its newest generation.
func Build(root string, entities []*crate.Entity, reference bool) *EntityIndex {
	idx := &EntityIndex{
		root:      capture.Normalize(root),
		reference: reference,
		entries:   make(map[capture.NormalizedPath]Entry),
	}

	for _, e := range entities {
		if e == nil || e.IsCrateRoot() {
			continue
		}
		for _, u := range e.ContentURL {
			rel, ok := crate.RelativeContentPath(u)
			if !ok {
				continue
			}
			path := capture.Normalize(filepath.Join(string(idx.root), filepath.FromSlash(rel)))
			idx.entries[path] = Entry{GUID: e.ID, IsReference: reference}
		}
	}
	return idx
}

func (i *EntityIndex) Root() capture.NormalizedPath { return i.root }

func (i *EntityIndex) IsReference() bool { return i.reference }

// Lookup returns the entry registered for path.
func (i *EntityIndex) Lookup(path capture.NormalizedPath) (Entry, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	e, ok := i.entries[path]
	return e, ok
}

// Add registers guid for path. Reference indices reject writes.
func (i *EntityIndex) Add(path capture.NormalizedPath, guid string) error {
	if i.reference {
		return fmt.Errorf("%w: %s", ErrReadOnlyIndex, i.root)
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	i.entries[path] = Entry{GUID: guid}
	return nil
}

func (i *EntityIndex) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.entries)
}
