package provenance

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"crateprov/internal/capture"
	"crateprov/internal/crate"
	"crateprov/internal/index"
)

// Origin says where a resolved dataset's entity lives.
type Origin int

const (
	OriginNew Origin = iota
	OriginActive
	OriginReference
)

func (o Origin) String() string {
	switch o {
	case OriginActive:
		return "active"
	case OriginReference:
		return "reference"
	default:
		return "new"
	}
}

// ResolvedDataset is one input or output of a run. Entity is set only for
// datasets minted by this run.
type ResolvedDataset struct {
	Path   capture.NormalizedPath
	Name   string
	GUID   string
	Origin Origin
	Entity *crate.Entity
}

func (d ResolvedDataset) IsNew() bool { return d.Origin == OriginNew }

// Resolution is the outcome of mapping a run's paths onto entities.
type Resolution struct {
	Inputs   []ResolvedDataset
	Outputs  []ResolvedDataset
	Reused   int
	Warnings []Warning
}

// NewInputs returns the inputs that must be appended to the crate.
func (r *Resolution) NewInputs() []ResolvedDataset {
	var out []ResolvedDataset
	for _, d := range r.Inputs {
		if d.IsNew() {
			out = append(out, d)
		}
	}
	return out
}

// Resolver maps observed paths onto existing or new Dataset entities.
type Resolver struct {
	root       capture.NormalizedPath
	active     *index.EntityIndex
	references []*index.EntityIndex
	ids        IDGenerator
	author     crate.Values
	keywords   crate.Values
	now        func() time.Time
}

// IDGenerator mints entity identifiers; crate.Store implementations satisfy it.
type IDGenerator interface {
	GenerateID(kind crate.Kind, name string) string
}

// Resolve applies, per input path in reads ∪ manual: existence check,
// the intermediate-file rule, active index, reference indices, then the
// crate-root check. Every write inside the crate root becomes a new output.
// Results are ordered by path.
func (r *Resolver) Resolve(reads, writes []capture.NormalizedPath, manual []string) (*Resolution, error) {
	if len(reads) == 0 && len(writes) == 0 && len(manual) == 0 {
		return nil, ErrNoFileIO
	}

	res := &Resolution{}
	written := make(map[capture.NormalizedPath]bool, len(writes))
	for _, w := range writes {
		written[w] = true
	}

	for _, path := range r.inputCandidates(reads, manual) {
		if !isLocal(path) {
			continue
		}
		if _, err := os.Stat(string(path)); err != nil {
			res.Warnings = append(res.Warnings, Warning{Path: string(path), Message: "input file does not exist"})
			continue
		}
		if written[path] {
			continue
		}
		if entry, ok := r.active.Lookup(path); ok {
			res.Inputs = append(res.Inputs, ResolvedDataset{Path: path, Name: baseName(path), GUID: entry.GUID, Origin: OriginActive})
			res.Reused++
			continue
		}
		if entry, ok := r.lookupReference(path); ok {
			res.Inputs = append(res.Inputs, ResolvedDataset{Path: path, Name: baseName(path), GUID: entry.GUID, Origin: OriginReference})
			res.Reused++
			continue
		}
		if !capture.Within(r.root, path) {
			continue
		}
		res.Inputs = append(res.Inputs, r.mint(path, "Input dataset"))
	}

	for _, path := range sortedUnique(writes) {
		if !isLocal(path) || !capture.Within(r.root, path) {
			continue
		}
		res.Outputs = append(res.Outputs, r.mint(path, "Output dataset"))
	}

	return res, nil
}

func (r *Resolver) inputCandidates(reads []capture.NormalizedPath, manual []string) []capture.NormalizedPath {
	all := append([]capture.NormalizedPath(nil), reads...)
	for _, m := range manual {
		m = strings.TrimSpace(m)
		if m == "" {
			continue
		}
		if !filepath.IsAbs(m) && !strings.Contains(m, "://") {
			m = filepath.Join(string(r.root), m)
		}
		all = append(all, capture.Normalize(m))
	}
	return sortedUnique(all)
}

func (r *Resolver) lookupReference(path capture.NormalizedPath) (index.Entry, bool) {
	for _, ref := range r.references {
		if entry, ok := ref.Lookup(path); ok {
			return entry, true
		}
	}
	return index.Entry{}, false
}

func (r *Resolver) mint(path capture.NormalizedPath, description string) ResolvedDataset {
	name := baseName(path)
	rel, _ := filepath.Rel(string(r.root), string(path))
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	if format == "" {
		format = "unknown"
	}
	e := &crate.Entity{
		ID:            r.ids.GenerateID(crate.KindDataset, name),
		Type:          crate.Values{crate.TypeDataset},
		Name:          name,
		Description:   description,
		Author:        r.author,
		Keywords:      r.keywords,
		Version:       "1.0",
		Format:        format,
		ContentURL:    crate.Values{crate.ContentURL(filepath.ToSlash(rel))},
		DatePublished: r.now().Format(time.RFC3339),
	}
	return ResolvedDataset{Path: path, Name: name, GUID: e.ID, Origin: OriginNew, Entity: e}
}

func baseName(p capture.NormalizedPath) string { return filepath.Base(string(p)) }

func isLocal(p capture.NormalizedPath) bool { return filepath.IsAbs(string(p)) }

func sortedUnique(paths []capture.NormalizedPath) []capture.NormalizedPath {
	seen := make(map[capture.NormalizedPath]bool, len(paths))
	out := make([]capture.NormalizedPath, 0, len(paths))
	for _, p := range paths {
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
