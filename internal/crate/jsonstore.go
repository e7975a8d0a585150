package crate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	descriptorID = MetadataFile
	rootID       = "./"
	conformsTo   = "https://w3id.org/ro/crate/1.2"
)

var defaultContext = json.RawMessage(`{"@vocab":"https://schema.org/","EVI":"https://w3id.org/EVI#"}`)

// JSONStore keeps the crate graph in ro-crate-metadata.json. Unknown
// top-level keys and graph elements are carried through untouched.
type JSONStore struct {
	mu       sync.Mutex
	root     string
	path     string
	readOnly bool
}

// InitOptions describe the root dataset of a crate created by Init.
type InitOptions struct {
	Name        string
	Description string
	Author      []string
	Keywords    []string
	// StartClean drops every graph element except the descriptor and root.
	StartClean bool
}

// Init opens the crate at root, creating a placeholder crate when no
// metadata file exists yet.
func Init(root string, opts InitOptions) (*JSONStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create crate directory: %w", err)
	}
	s := &JSONStore{root: abs, path: filepath.Join(abs, MetadataFile)}

	doc, err := s.load()
	switch {
	case errors.Is(err, ErrNotFound):
		doc = newDocument(opts)
	case err != nil:
		return nil, err
	case opts.StartClean:
		doc.graph = doc.graph[:min(len(doc.graph), 2)]
		if err := doc.updateRoot(func(root map[string]json.RawMessage) error {
			root["hasPart"] = json.RawMessage(`[]`)
			return nil
		}); err != nil {
			return nil, err
		}
	default:
		return s, nil
	}

	if err := s.save(doc); err != nil {
		return nil, err
	}
	return s, nil
}

// Open opens an existing crate for appending.
func Open(root string) (*JSONStore, error) {
	return open(root, false)
}

// OpenReadOnly opens an existing crate that must never be written. path may
// name the crate directory or its metadata file.
func OpenReadOnly(path string) (*JSONStore, error) {
	return open(path, true)
}

func open(path string, readOnly bool) (*JSONStore, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	if filepath.Base(abs) == MetadataFile {
		abs = filepath.Dir(abs)
	}
	s := &JSONStore{root: abs, path: filepath.Join(abs, MetadataFile), readOnly: readOnly}
	if _, err := os.Stat(s.path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, s.path)
		}
		return nil, err
	}
	return s, nil
}

func (s *JSONStore) Root() string { return s.root }

// Path returns the metadata file location.
func (s *JSONStore) Path() string { return s.path }

func (s *JSONStore) ReadOnly() bool { return s.readOnly }

func (s *JSONStore) GenerateID(kind Kind, name string) string { return NewID(kind, name) }

// ReadEntities returns every graph element that has an @id, in @graph order.
func (s *JSONStore) ReadEntities(ctx context.Context) ([]*Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	out := make([]*Entity, 0, len(doc.graph))
	for i, raw := range doc.graph {
		var e Entity
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil, fmt.Errorf("invalid @graph element %d: %w", i, err)
		}
		if e.ID == "" {
			continue
		}
		out = append(out, &e)
	}
	return out, nil
}

// ReadEntityMap returns every graph element that has an @id, keyed by id.
func (s *JSONStore) ReadEntityMap(ctx context.Context) (map[string]*Entity, error) {
	entities, err := s.ReadEntities(ctx)
	if err != nil {
		return nil, err
	}
	return EntityMap(entities), nil
}

// AppendEntities adds entities to the graph and to the root's hasPart, then
// replaces the metadata file atomically. Nothing is written on error.
func (s *JSONStore) AppendEntities(ctx context.Context, entities []*Entity) error {
	if s.readOnly {
		return ErrReadOnly
	}
	if len(entities) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}
	existing, err := doc.ids()
	if err != nil {
		return err
	}

	ids := make([]string, 0, len(entities))
	for _, e := range entities {
		if e == nil || e.ID == "" {
			return fmt.Errorf("entity without @id")
		}
		if existing[e.ID] {
			return fmt.Errorf("%w: %s", ErrDuplicateID, e.ID)
		}
		existing[e.ID] = true
		raw, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("failed to encode %s: %w", e.ID, err)
		}
		doc.graph = append(doc.graph, raw)
		ids = append(ids, e.ID)
	}

	err = doc.updateRoot(func(root map[string]json.RawMessage) error {
		var parts Refs
		if raw, ok := root["hasPart"]; ok {
			if err := json.Unmarshal(raw, &parts); err != nil {
				return fmt.Errorf("invalid root hasPart: %w", err)
			}
		}
		parts = append(parts, NewRefs(ids...)...)
		raw, err := json.Marshal(parts)
		if err != nil {
			return err
		}
		root["hasPart"] = raw
		return nil
	})
	if err != nil {
		return err
	}
	return s.save(doc)
}

// document is the decoded metadata file.
type document struct {
	top   map[string]json.RawMessage
	graph []json.RawMessage
}

func newDocument(opts InitOptions) *document {
	name := opts.Name
	if name == "" {
		name = "Research Project " + time.Now().Format("20060102")
	}
	desc := opts.Description
	if desc == "" {
		desc = "Automatically created crate for tracked computations"
	}
	author := Values(opts.Author)
	if len(author) == 0 {
		author = Values{"Unknown"}
	}
	keywords := Values(opts.Keywords)
	if len(keywords) == 0 {
		keywords = Values{"computation"}
	}

	descriptor, _ := json.Marshal(map[string]any{
		"@id":        descriptorID,
		"@type":      "CreativeWork",
		"conformsTo": Ref{ID: conformsTo},
		"about":      Ref{ID: rootID},
	})
	root, _ := json.Marshal(map[string]any{
		"@id":           rootID,
		"@type":         []string{"Dataset", TypeROCrate},
		"name":          name,
		"description":   desc,
		"author":        author,
		"keywords":      keywords,
		"datePublished": time.Now().Format("2006-01-02"),
		"hasPart":       Refs{},
	})
	return &document{
		top:   map[string]json.RawMessage{"@context": defaultContext},
		graph: []json.RawMessage{descriptor, root},
	}
}

func (d *document) ids() (map[string]bool, error) {
	out := make(map[string]bool, len(d.graph))
	for i, raw := range d.graph {
		var head struct {
			ID string `json:"@id"`
		}
		if err := json.Unmarshal(raw, &head); err != nil {
			return nil, fmt.Errorf("invalid @graph element %d: %w", i, err)
		}
		if head.ID != "" {
			out[head.ID] = true
		}
	}
	return out, nil
}

// rootIndex locates the root dataset: the element the descriptor is about,
// else the element carrying the ROCrate type, else the second element.
func (d *document) rootIndex() int {
	about := rootID
	if len(d.graph) > 0 {
		var desc struct {
			About Refs `json:"about"`
		}
		if json.Unmarshal(d.graph[0], &desc) == nil && len(desc.About) > 0 {
			about = desc.About[0].ID
		}
	}
	for i, raw := range d.graph {
		var e Entity
		if json.Unmarshal(raw, &e) != nil {
			continue
		}
		if e.ID == about || e.IsCrateRoot() {
			return i
		}
	}
	if len(d.graph) > 1 {
		return 1
	}
	return -1
}

func (d *document) updateRoot(fn func(map[string]json.RawMessage) error) error {
	i := d.rootIndex()
	if i < 0 {
		return fmt.Errorf("crate has no root dataset")
	}
	var root map[string]json.RawMessage
	if err := json.Unmarshal(d.graph[i], &root); err != nil {
		return fmt.Errorf("invalid root dataset: %w", err)
	}
	if err := fn(root); err != nil {
		return err
	}
	raw, err := json.Marshal(root)
	if err != nil {
		return err
	}
	d.graph[i] = raw
	return nil
}

func (s *JSONStore) load() (*document, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, s.path)
		}
		return nil, err
	}
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", s.path, err)
	}
	doc := &document{top: top}
	if raw, ok := top["@graph"]; ok {
		if err := json.Unmarshal(raw, &doc.graph); err != nil {
			return nil, fmt.Errorf("invalid @graph in %s: %w", s.path, err)
		}
	}
	return doc, nil
}

func (s *JSONStore) save(doc *document) error {
	graph, err := json.Marshal(doc.graph)
	if err != nil {
		return err
	}
	doc.top["@graph"] = graph
	if _, ok := doc.top["@context"]; !ok {
		doc.top["@context"] = defaultContext
	}
	data, err := json.MarshalIndent(doc.top, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.root, ".ro-crate-metadata-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp metadata file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace %s: %w", s.path, err)
	}
	return nil
}
