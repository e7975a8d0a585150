// Package crate reads and appends the metadata graph of a crate: a directory
// plus a single ro-crate-metadata.json file describing Datasets, Software,
// Computations and their relationships.
package crate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Kind is the closed set of entity kinds the tracker and lineage builder
// distinguish.
type Kind string

const (
	KindDataset     Kind = "Dataset"
	KindSoftware    Kind = "Software"
	KindComputation Kind = "Computation"
	KindSample      Kind = "Sample"
	KindInstrument  Kind = "Instrument"
	KindExperiment  Kind = "Experiment"
	KindUnknown     Kind = ""
)

// EVI type IRIs written for newly minted entities.
const (
	TypeDataset     = "https://w3id.org/EVI#Dataset"
	TypeSoftware    = "https://w3id.org/EVI#Software"
	TypeComputation = "https://w3id.org/EVI#Computation"
	TypeROCrate     = "https://w3id.org/EVI#ROCrate"
)

// kindOrder is the precedence used when an entity carries several types.
var kindOrder = []Kind{KindDataset, KindComputation, KindSoftware, KindSample, KindInstrument, KindExperiment}

// Entity is one element of the crate's @graph. Only the properties the
// provenance core reads or writes are modelled.
type Entity struct {
	ID            string `json:"@id"`
	Type          Values `json:"@type,omitempty"`
	Name          string `json:"name,omitempty"`
	Description   string `json:"description,omitempty"`
	Author        Values `json:"author,omitempty"`
	Keywords      Values `json:"keywords,omitempty"`
	Version       string `json:"version,omitempty"`
	Format        string `json:"format,omitempty"`
	FileFormat    string `json:"fileFormat,omitempty"`
	ContentURL    Values `json:"contentUrl,omitempty"`
	Language      string `json:"programmingLanguage,omitempty"`
	RunBy         string `json:"runBy,omitempty"`
	DatePublished string `json:"datePublished,omitempty"`
	DateCreated   string `json:"dateCreated,omitempty"`
	DateModified  string `json:"dateModified,omitempty"`

	GeneratedBy    Refs `json:"generatedBy,omitempty"`
	UsedSoftware   Refs `json:"usedSoftware,omitempty"`
	UsedDataset    Refs `json:"usedDataset,omitempty"`
	UsedSample     Refs `json:"usedSample,omitempty"`
	UsedInstrument Refs `json:"usedInstrument,omitempty"`
	UsedTreatment  Refs `json:"usedTreatment,omitempty"`
	UsedStain      Refs `json:"usedStain,omitempty"`
	Generated      Refs `json:"generated,omitempty"`
	HasPart        Refs `json:"hasPart,omitempty"`
}

// Kind classifies the entity by its @type values. The first type that names
// a known kind wins, matching by substring so both "Dataset" and
// "https://w3id.org/EVI#Dataset" are recognised.
func (e *Entity) Kind() Kind {
	if e == nil {
		return KindUnknown
	}
	for _, t := range e.Type {
		for _, k := range kindOrder {
			if strings.Contains(t, string(k)) {
				return k
			}
		}
	}
	return KindUnknown
}

// IsCrateRoot reports whether the entity is the crate's root dataset.
func (e *Entity) IsCrateRoot() bool {
	if e == nil {
		return false
	}
	for _, t := range e.Type {
		if strings.Contains(t, "ROCrate") {
			return true
		}
	}
	return false
}

// Values is a JSON-LD property that may be a single string or a list.
type Values []string

func (v Values) First() string {
	if len(v) == 0 {
		return ""
	}
	return v[0]
}

func (v Values) MarshalJSON() ([]byte, error) {
	if len(v) == 1 {
		return json.Marshal(v[0])
	}
	return json.Marshal([]string(v))
}

func (v *Values) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*v = nil
		return nil
	}
	if len(data) > 0 && data[0] == '[' {
		var raw []json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		out := make(Values, 0, len(raw))
		for _, item := range raw {
			if s, ok := scalarString(item); ok {
				out = append(out, s)
			}
		}
		*v = out
		return nil
	}
	if s, ok := scalarString(data); ok {
		*v = Values{s}
		return nil
	}
	*v = nil
	return nil
}

// scalarString accepts a JSON string, or an object carrying @id or name.
func scalarString(data json.RawMessage) (string, bool) {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return s, true
	}
	var obj struct {
		ID   string `json:"@id"`
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &obj); err == nil {
		if obj.ID != "" {
			return obj.ID, true
		}
		if obj.Name != "" {
			return obj.Name, true
		}
	}
	return "", false
}

// Ref is a JSON-LD reference to another entity.
type Ref struct {
	ID string `json:"@id"`
}

// Refs is a relationship property. On input it accepts a bare id string, a
// {"@id": ...} object, or a list mixing both; it is always written as a list
// of objects.
type Refs []Ref

// NewRefs builds a reference list from ids, skipping empty ones.
func NewRefs(ids ...string) Refs {
	out := make(Refs, 0, len(ids))
	for _, id := range ids {
		if id != "" {
			out = append(out, Ref{ID: id})
		}
	}
	return out
}

// IDs returns the referenced ids in order, without empties or duplicates.
func (r Refs) IDs() []string {
	seen := make(map[string]bool, len(r))
	out := make([]string, 0, len(r))
	for _, ref := range r {
		if ref.ID == "" || seen[ref.ID] {
			continue
		}
		seen[ref.ID] = true
		out = append(out, ref.ID)
	}
	return out
}

func (r *Refs) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*r = nil
		return nil
	}
	var items []json.RawMessage
	if data[0] == '[' {
		if err := json.Unmarshal(data, &items); err != nil {
			return fmt.Errorf("invalid reference list: %w", err)
		}
	} else {
		items = []json.RawMessage{data}
	}
	out := make(Refs, 0, len(items))
	for _, item := range items {
		var id string
		if err := json.Unmarshal(item, &id); err == nil {
			out = append(out, Ref{ID: id})
			continue
		}
		var ref Ref
		if err := json.Unmarshal(item, &ref); err == nil && ref.ID != "" {
			out = append(out, ref)
		}
	}
	*r = out
	return nil
}
