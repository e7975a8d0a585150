package provenance

import (
	"fmt"
	"time"

	"crateprov/internal/augment"
	"crateprov/internal/crate"
)

// Execution describes the tracked unit itself.
type Execution struct {
	Name     string
	Language string
	// SoftwarePath is the crate-relative path the code is persisted at.
	SoftwarePath string
	Format       string
	Version      string
	Author       crate.Values
	Keywords     crate.Values
	Time         time.Time
}

// Assembly is the batch appended for one run.
type Assembly struct {
	Software    *crate.Entity
	Computation *crate.Entity
	NewInputs   []*crate.Entity
	Outputs     []*crate.Entity
}

// Elements returns the append order: software, new inputs, outputs,
// computation.
func (a *Assembly) Elements() []*crate.Entity {
	out := make([]*crate.Entity, 0, len(a.NewInputs)+len(a.Outputs)+2)
	out = append(out, a.Software)
	out = append(out, a.NewInputs...)
	out = append(out, a.Outputs...)
	return append(out, a.Computation)
}

// Assemble builds the Software and Computation entities for res, applies
// descriptions to newly minted datasets and links outputs back to the
// Computation. Reused datasets are referenced, never copied.
func Assemble(ids IDGenerator, res *Resolution, desc *augment.Descriptions, exec Execution) (*Assembly, error) {
	if desc == nil {
		desc = augment.FallbackDescriptions(exec.Time)
	}
	ts := exec.Time.Format(time.RFC3339)

	software := &crate.Entity{
		ID:           ids.GenerateID(crate.KindSoftware, exec.Name),
		Type:         crate.Values{crate.TypeSoftware},
		Name:         exec.Name,
		Description:  nonEmpty(desc.Software, "Code executed"),
		Author:       exec.Author,
		Keywords:     exec.Keywords,
		Version:      nonEmpty(exec.Version, "1.0"),
		FileFormat:   exec.Format,
		Language:     exec.Language,
		ContentURL:   crate.Values{crate.ContentURL(exec.SoftwarePath)},
		DateModified: ts,
	}

	computation := &crate.Entity{
		ID:           ids.GenerateID(crate.KindComputation, "Computation_"+exec.Name),
		Type:         crate.Values{crate.TypeComputation},
		Name:         "Computation_" + exec.Name,
		Description:  nonEmpty(desc.Computation, "Computation executed"),
		Keywords:     exec.Keywords,
		RunBy:        exec.Author.First(),
		DateCreated:  ts,
		UsedSoftware: crate.NewRefs(software.ID),
	}

	asm := &Assembly{Software: software, Computation: computation}
	used := make(map[string]bool, len(res.Inputs))
	for _, in := range res.Inputs {
		computation.UsedDataset = append(computation.UsedDataset, crate.Ref{ID: in.GUID})
		used[in.GUID] = true
		if in.IsNew() {
			applyDescription(in.Entity, desc.Inputs)
			asm.NewInputs = append(asm.NewInputs, in.Entity)
		}
	}
	for _, out := range res.Outputs {
		if used[out.GUID] {
			return nil, fmt.Errorf("%w: %s is both used and generated by %s", ErrInvariant, out.GUID, computation.ID)
		}
		applyDescription(out.Entity, desc.Outputs)
		out.Entity.GeneratedBy = crate.NewRefs(computation.ID)
		computation.Generated = append(computation.Generated, crate.Ref{ID: out.GUID})
		asm.Outputs = append(asm.Outputs, out.Entity)
	}
	return asm, nil
}

func applyDescription(e *crate.Entity, byName map[string]string) {
	if d, ok := byName[e.Name]; ok && d != "" {
		e.Description = d
	}
}

func nonEmpty(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
